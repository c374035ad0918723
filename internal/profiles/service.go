package profiles

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/bluehorizon/skydesk/internal/cache"
	"github.com/bluehorizon/skydesk/pkg/enums"
	pkgerrors "github.com/bluehorizon/skydesk/pkg/errors"
	"github.com/bluehorizon/skydesk/pkg/gateway"
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
		return nil, errors.New("profile cache is required")
	}
	return &Service{identities: identities, gateway: gw, cache: cache}, nil
}

// Get returns the profile for handle, cached per handle.
func (s *Service) Get(ctx context.Context, handle string) (json.RawMessage, error) {
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	if handle == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "handle is required")
	}
	identity, err := s.identities.CurrentIdentity(ctx)
	if err != nil {
		return nil, err
	}
	return s.cache.Read(ctx, identity, handle, func(ctx context.Context) (json.RawMessage, error) {
		return s.gateway.Fetch(ctx, gateway.Request{Resource: enums.ResourceProfile, Key: handle})
	})
}
