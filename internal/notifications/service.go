package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bluehorizon/skydesk/internal/cache"
	"github.com/bluehorizon/skydesk/pkg/enums"
	pkgerrors "github.com/bluehorizon/skydesk/pkg/errors"
	"github.com/bluehorizon/skydesk/pkg/gateway"
	"github.com/bluehorizon/skydesk/pkg/pagination"
)

type identityProvider interface {
	CurrentIdentity(ctx context.Context) (string, error)
}

type remote interface {
	Fetch(ctx context.Context, req gateway.Request) (json.RawMessage, error)
	Send(ctx context.Context, m gateway.Mutation) (gateway.Receipt, error)
}

type reader interface {
	Read(ctx context.Context, identity, key string, fetch cache.Fetcher) (json.RawMessage, error)
}

// UnreadCount is the snapshot shape of the unread counter.
type UnreadCount struct {
	Count int `json:"count"`
}

type Service struct {
	identities identityProvider
	gateway    remote
	cache      reader
	now        func() time.Time
}

func NewService(identities identityProvider, gw remote, cache reader) (*Service, error) {
	if identities == nil {
		return nil, errors.New("identity provider is required")
	}
	if gw == nil {
		return nil, errors.New("gateway is required")
	}
	if cache == nil {
		return nil, errors.New("notifications cache is required")
	}
	return &Service{identities: identities, gateway: gw, cache: cache, now: time.Now}, nil
}

// List returns a page of notifications. Every cursor is cached.
func (s *Service) List(ctx context.Context, page pagination.Params) (json.RawMessage, error) {
	identity, err := s.identities.CurrentIdentity(ctx)
	if err != nil {
		return nil, err
	}
	req := gateway.Request{
		Resource: enums.ResourceNotifications,
		Cursor:   strings.TrimSpace(page.Cursor),
		Limit:    pagination.NormalizeLimit(page.Limit),
	}
	return s.cache.Read(ctx, identity, req.Cursor, func(ctx context.Context) (json.RawMessage, error) {
		return s.gateway.Fetch(ctx, req)
	})
}

// UnreadCount asks the remote for the unread counter. It is never cached.
func (s *Service) UnreadCount(ctx context.Context) (int, error) {
	raw, err := s.gateway.Fetch(ctx, gateway.Request{Resource: enums.ResourceUnreadCount})
	if err != nil {
		return 0, err
	}
	var out UnreadCount
	if err := json.Unmarshal(raw, &out); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode unread count")
	}
	return out.Count, nil
}

// MarkRead moves the seen marker to now. Failures are returned, not queued.
func (s *Service) MarkRead(ctx context.Context) error {
	_, err := s.gateway.Send(ctx, gateway.Mutation{
		Kind: enums.MutationKindMarkNotificationsRead,
		Body: gateway.MarkSeen{SeenAt: s.now().UTC()},
	})
	return err
}
