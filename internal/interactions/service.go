// Package interactions sends likes, reposts, follows, mutes and blocks, and
// their undos. They go straight to the remote: a failure is returned to the
// caller and nothing is queued.
package interactions

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/bluehorizon/skydesk/pkg/enums"
	pkgerrors "github.com/bluehorizon/skydesk/pkg/errors"
	"github.com/bluehorizon/skydesk/pkg/gateway"
	"github.com/bluehorizon/skydesk/pkg/logger"
)

type mutationSender interface {
	Send(ctx context.Context, m gateway.Mutation) (gateway.Receipt, error)
}

type ServiceParams struct {
	Logger  *logger.Logger
	Gateway mutationSender
	Now     func() time.Time
}

type Service struct {
	logg     *logger.Logger
	gateway  mutationSender
	validate *validator.Validate
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Gateway == nil {
		return nil, errors.New("gateway is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		logg:     params.Logger,
		gateway:  params.Gateway,
		validate: validator.New(),
		now:      now,
	}, nil
}

// Like likes the post at uri. cid may be empty.
func (s *Service) Like(ctx context.Context, uri, cid string) (gateway.Receipt, error) {
	return s.send(ctx, enums.MutationKindLike, s.postSubject(uri, cid))
}

// Unlike deletes the like record at likeURI.
func (s *Service) Unlike(ctx context.Context, likeURI string) error {
	return s.undo(ctx, enums.MutationKindUnlike, likeURI)
}

func (s *Service) Repost(ctx context.Context, uri, cid string) (gateway.Receipt, error) {
	return s.send(ctx, enums.MutationKindRepost, s.postSubject(uri, cid))
}

func (s *Service) Unrepost(ctx context.Context, repostURI string) error {
	return s.undo(ctx, enums.MutationKindUnrepost, repostURI)
}

func (s *Service) Follow(ctx context.Context, did string) (gateway.Receipt, error) {
	return s.send(ctx, enums.MutationKindFollow, s.actorSubject(did))
}

func (s *Service) Unfollow(ctx context.Context, followURI string) error {
	return s.undo(ctx, enums.MutationKindUnfollow, followURI)
}

func (s *Service) Block(ctx context.Context, did string) (gateway.Receipt, error) {
	return s.send(ctx, enums.MutationKindBlock, s.actorSubject(did))
}

func (s *Service) Unblock(ctx context.Context, blockURI string) error {
	return s.undo(ctx, enums.MutationKindUnblock, blockURI)
}

// Mute hides actor's content for this account. Mutes are private and
// create no record.
func (s *Service) Mute(ctx context.Context, actor string) error {
	_, err := s.send(ctx, enums.MutationKindMute, gateway.Actor{Actor: strings.TrimSpace(actor)})
	return err
}

func (s *Service) Unmute(ctx context.Context, actor string) error {
	_, err := s.send(ctx, enums.MutationKindUnmute, gateway.Actor{Actor: strings.TrimSpace(actor)})
	return err
}

func (s *Service) postSubject(uri, cid string) gateway.PostSubject {
	return gateway.PostSubject{URI: strings.TrimSpace(uri), CID: strings.TrimSpace(cid), CreatedAt: s.now().UTC()}
}

func (s *Service) actorSubject(did string) gateway.ActorSubject {
	return gateway.ActorSubject{DID: strings.TrimSpace(did), CreatedAt: s.now().UTC()}
}

func (s *Service) undo(ctx context.Context, kind enums.MutationKind, uri string) error {
	_, err := s.send(ctx, kind, gateway.RecordURI{URI: strings.TrimSpace(uri)})
	return err
}

func (s *Service) send(ctx context.Context, kind enums.MutationKind, body any) (gateway.Receipt, error) {
	if err := s.validate.Struct(body); err != nil {
		return gateway.Receipt{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+string(kind))
	}
	ctx = s.logg.WithField(ctx, "kind", string(kind))
	receipt, err := s.gateway.Send(ctx, gateway.Mutation{Kind: kind, Body: body})
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "interaction failed")
		return gateway.Receipt{}, err
	}
	s.logg.Debug(s.logg.WithField(ctx, "record_uri", receipt.URI), "interaction sent")
	return receipt, nil
}
