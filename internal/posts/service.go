package posts

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/bluehorizon/skydesk/internal/drafts"
	"github.com/bluehorizon/skydesk/pkg/enums"
	pkgerrors "github.com/bluehorizon/skydesk/pkg/errors"
	"github.com/bluehorizon/skydesk/pkg/gateway"
	"github.com/bluehorizon/skydesk/pkg/logger"
	"github.com/bluehorizon/skydesk/pkg/outbox"
	"github.com/bluehorizon/skydesk/pkg/types"
)

const createPostVersion = 1

// Delivery states reported back to the caller.
const (
	StatusSent   = "sent"
	StatusQueued = "queued"
)

type identityProvider interface {
	CurrentIdentity(ctx context.Context) (string, error)
}

type mutationSender interface {
	Send(ctx context.Context, m gateway.Mutation) (gateway.Receipt, error)
}

type mutationQueue interface {
	Enqueue(ctx context.Context, identity string, payload json.RawMessage, reason string) (uuid.UUID, error)
}

type draftClearer interface {
	Clear(ctx context.Context, key string) error
}

// Result tells the caller whether the post went out now or was queued.
type Result struct {
	Status     string `json:"status"`
	URI        string `json:"uri,omitempty"`
	MutationID string `json:"mutation_id,omitempty"`
}

type ServiceParams struct {
	Logger     *logger.Logger
	Identities identityProvider
	Gateway    mutationSender
	Outbox     mutationQueue
	Drafts     draftClearer
	Now        func() time.Time
}

// Service is the write path for new posts: try the remote now, fall back to
// the outbox on a queueable failure.
type Service struct {
	logg       *logger.Logger
	identities identityProvider
	gateway    mutationSender
	outbox     mutationQueue
	drafts     draftClearer
	validate   *validator.Validate
	now        func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Identities == nil {
		return nil, errors.New("identity provider is required")
	}
	if params.Gateway == nil {
		return nil, errors.New("gateway is required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox is required")
	}
	if params.Drafts == nil {
		return nil, errors.New("draft store is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		logg:       params.Logger,
		identities: params.Identities,
		gateway:    params.Gateway,
		outbox:     params.Outbox,
		drafts:     params.Drafts,
		validate:   validator.New(),
		now:        now,
	}, nil
}

// Create publishes c. NOT_AUTHENTICATED, NETWORK_TRANSIENT and
// REMOTE_REJECTED failures are queued and reported as success; anything else
// is returned and the draft is kept.
func (s *Service) Create(ctx context.Context, c types.Composition) (Result, error) {
	if c.IsEmpty() {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "post has no text or images")
	}
	if err := s.validate.Struct(c); err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid post")
	}

	identity, err := s.identities.CurrentIdentity(ctx)
	if err != nil {
		return Result{}, err
	}
	ctx = s.logg.WithIdentity(ctx, identity)

	body := toCreatePost(c, s.now().UTC())
	draftKey := drafts.ContextKey(c.ReplyTo, c.QuoteOf)

	receipt, sendErr := s.gateway.Send(ctx, gateway.Mutation{Kind: enums.MutationKindCreatePost, Body: body})
	if sendErr == nil {
		s.clearDraft(ctx, draftKey)
		return Result{Status: StatusSent, URI: receipt.URI}, nil
	}
	if !pkgerrors.IsQueueable(sendErr) {
		s.logg.Warn(s.logg.WithField(ctx, "error", sendErr.Error()), "post rejected; draft kept")
		return Result{}, sendErr
	}

	payload, err := outbox.Encode(enums.MutationKindCreatePost, createPostVersion, body, body.CreatedAt)
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode queued post")
	}
	id, err := s.outbox.Enqueue(ctx, identity, payload, sendErr.Error())
	if err != nil {
		return Result{}, err
	}
	s.clearDraft(ctx, draftKey)
	return Result{Status: StatusQueued, MutationID: id.String()}, nil
}

func (s *Service) clearDraft(ctx context.Context, key string) {
	if err := s.drafts.Clear(ctx, key); err != nil {
		s.logg.Error(s.logg.WithField(ctx, "draft_key", key), "failed to clear draft after post", err)
	}
}

func toCreatePost(c types.Composition, now time.Time) gateway.CreatePost {
	body := gateway.CreatePost{
		Text:      c.Text,
		ReplyTo:   c.ReplyTo,
		QuoteOf:   c.QuoteOf,
		CreatedAt: now,
	}
	for _, img := range c.Images {
		body.Images = append(body.Images, gateway.Image{Path: img.Path, Alt: img.Alt})
	}
	return body
}
