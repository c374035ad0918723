package timeline

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/bluehorizon/skydesk/internal/cache"
	"github.com/bluehorizon/skydesk/pkg/enums"
	pkgerrors "github.com/bluehorizon/skydesk/pkg/errors"
	"github.com/bluehorizon/skydesk/pkg/gateway"
	"github.com/bluehorizon/skydesk/pkg/pagination"
)

type identityProvider interface {
	CurrentIdentity(ctx context.Context) (string, error)
}

type fetcher interface {
	Fetch(ctx context.Context, req gateway.Request) (json.RawMessage, error)
}

type reader interface {
	Read(ctx context.Context, identity, key string, fetch cache.Fetcher) (json.RawMessage, error)
}

// Service reads the home timeline, author and custom feeds, and threads.
type Service struct {
	identities identityProvider
	gateway    fetcher
	cache      reader
}

func NewService(identities identityProvider, gw fetcher, cache reader) (*Service, error) {
	if identities == nil {
		return nil, errors.New("identity provider is required")
	}
	if gw == nil {
		return nil, errors.New("gateway is required")
	}
	if cache == nil {
		return nil, errors.New("timeline cache is required")
	}
	return &Service{identities: identities, gateway: gw, cache: cache}, nil
}

// Get returns a page of the home timeline. Only the root page is cached.
func (s *Service) Get(ctx context.Context, page pagination.Params) (json.RawMessage, error) {
	identity, err := s.identities.CurrentIdentity(ctx)
	if err != nil {
		return nil, err
	}
	req := gateway.Request{
		Resource: enums.ResourceTimeline,
		Cursor:   strings.TrimSpace(page.Cursor),
		Limit:    pagination.NormalizeLimit(page.Limit),
	}
	return s.cache.Read(ctx, identity, req.Cursor, func(ctx context.Context) (json.RawMessage, error) {
		return s.gateway.Fetch(ctx, req)
	})
}

// AuthorFeed fetches an actor's posts straight from the remote.
func (s *Service) AuthorFeed(ctx context.Context, actor string, page pagination.Params) (json.RawMessage, error) {
	return s.passThrough(ctx, enums.ResourceAuthorFeed, "actor", actor, page)
}

// CustomFeed fetches a page of a feed generator, identified by its at:// URI.
func (s *Service) CustomFeed(ctx context.Context, feedURI string, page pagination.Params) (json.RawMessage, error) {
	return s.passThrough(ctx, enums.ResourceCustomFeed, "feed", feedURI, page)
}

// Thread fetches a post with its ancestors and replies.
func (s *Service) Thread(ctx context.Context, uri string) (json.RawMessage, error) {
	return s.passThrough(ctx, enums.ResourceThread, "uri", uri, pagination.Params{})
}

func (s *Service) passThrough(ctx context.Context, resource enums.ResourceType, field, key string, page pagination.Params) (json.RawMessage, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, field+" is required").WithDetails(map[string]any{"field": field})
	}
	return s.gateway.Fetch(ctx, gateway.Request{
		Resource: resource,
		Key:      key,
		Cursor:   strings.TrimSpace(page.Cursor),
		Limit:    pagination.NormalizeLimit(page.Limit),
	})
}
