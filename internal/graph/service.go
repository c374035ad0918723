// Package graph reads the social graph: followers, follows and lists. None
// of these reads are cached.
package graph

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/bluehorizon/skydesk/pkg/enums"
	pkgerrors "github.com/bluehorizon/skydesk/pkg/errors"
	"github.com/bluehorizon/skydesk/pkg/gateway"
	"github.com/bluehorizon/skydesk/pkg/pagination"
)

type fetcher interface {
	Fetch(ctx context.Context, req gateway.Request) (json.RawMessage, error)
}

type Service struct {
	gateway fetcher
}

func NewService(gw fetcher) (*Service, error) {
	if gw == nil {
		return nil, errors.New("gateway is required")
	}
	return &Service{gateway: gw}, nil
}

func (s *Service) Followers(ctx context.Context, actor string, page pagination.Params) (json.RawMessage, error) {
	return s.fetch(ctx, enums.ResourceFollowers, "actor", actor, page)
}

func (s *Service) Follows(ctx context.Context, actor string, page pagination.Params) (json.RawMessage, error) {
	return s.fetch(ctx, enums.ResourceFollows, "actor", actor, page)
}

// ActorLists returns the lists actor created.
func (s *Service) ActorLists(ctx context.Context, actor string, page pagination.Params) (json.RawMessage, error) {
	return s.fetch(ctx, enums.ResourceActorLists, "actor", actor, page)
}

// List returns a list's metadata and a page of its members.
func (s *Service) List(ctx context.Context, uri string, page pagination.Params) (json.RawMessage, error) {
	return s.fetch(ctx, enums.ResourceList, "uri", uri, page)
}

// ListFeed returns recent posts by a list's members.
func (s *Service) ListFeed(ctx context.Context, uri string, page pagination.Params) (json.RawMessage, error) {
	return s.fetch(ctx, enums.ResourceListFeed, "uri", uri, page)
}

func (s *Service) fetch(ctx context.Context, resource enums.ResourceType, field, key string, page pagination.Params) (json.RawMessage, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, field+" is required").WithDetails(map[string]any{"field": field})
	}
	if field == "uri" && !strings.HasPrefix(key, "at://") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "uri must be an at:// uri").WithDetails(map[string]any{"field": field})
	}
	return s.gateway.Fetch(ctx, gateway.Request{
		Resource: resource,
		Key:      key,
		Cursor:   strings.TrimSpace(page.Cursor),
		Limit:    pagination.NormalizeLimit(page.Limit),
	})
}
