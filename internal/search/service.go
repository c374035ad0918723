// Package search runs post and actor searches against the remote.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/bluehorizon/skydesk/pkg/enums"
	pkgerrors "github.com/bluehorizon/skydesk/pkg/errors"
	"github.com/bluehorizon/skydesk/pkg/gateway"
	"github.com/bluehorizon/skydesk/pkg/pagination"
)

const (
	SortLatest = "latest"
	SortTop    = "top"

	maxQueryRunes = 256
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

// Posts searches post text. sort is "latest" (the default) or "top".
func (s *Service) Posts(ctx context.Context, query, sort string, page pagination.Params) (json.RawMessage, error) {
	q, err := normalizeQuery(query)
	if err != nil {
		return nil, err
	}
	switch sort = strings.TrimSpace(sort); sort {
	case "":
		sort = SortLatest
	case SortLatest, SortTop:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sort must be latest or top").WithDetails(map[string]any{"field": "sort"})
	}
	return s.gateway.Fetch(ctx, gateway.Request{
		Resource: enums.ResourceSearchPosts,
		Key:      q,
		Sort:     sort,
		Cursor:   strings.TrimSpace(page.Cursor),
		Limit:    pagination.NormalizeLimit(page.Limit),
	})
}

// Actors searches handles and display names.
func (s *Service) Actors(ctx context.Context, query string, page pagination.Params) (json.RawMessage, error) {
	q, err := normalizeQuery(query)
	if err != nil {
		return nil, err
	}
	return s.gateway.Fetch(ctx, gateway.Request{
		Resource: enums.ResourceSearchActors,
		Key:      q,
		Cursor:   strings.TrimSpace(page.Cursor),
		Limit:    pagination.NormalizeLimit(page.Limit),
	})
}

func normalizeQuery(query string) (string, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "search query is required").WithDetails(map[string]any{"field": "q"})
	}
	if utf8.RuneCountInString(q) > maxQueryRunes {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "search query is too long").WithDetails(map[string]any{"field": "q", "max": maxQueryRunes})
	}
	return q, nil
}
