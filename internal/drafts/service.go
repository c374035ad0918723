package drafts

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	pkgerrors "github.com/bluehorizon/skydesk/pkg/errors"
	"github.com/bluehorizon/skydesk/pkg/logger"
	"github.com/bluehorizon/skydesk/pkg/types"
)

// Service is the draft store used by the compose flow.
type Service struct {
	repo *Repository
	logg *logger.Logger
	now  func() time.Time
}

func NewService(repo *Repository, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, errors.New("draft repository is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{repo: repo, logg: logg, now: time.Now}, nil
}

// Save stores c under key, or clears the slot when c is empty.
func (s *Service) Save(ctx context.Context, key string, c types.Composition) error {
	if key == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "draft context key is required")
	}
	if c.IsEmpty() {
		return s.Clear(ctx, key)
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode draft")
	}
	return s.repo.Upsert(ctx, key, payload, s.now().UTC())
}

// Load returns the draft for key, or nil when there is none.
func (s *Service) Load(ctx context.Context, key string) (*types.Composition, error) {
	row, err := s.repo.Find(ctx, key)
	if err != nil || row == nil {
		return nil, err
	}
	var c types.Composition
	if err := json.Unmarshal(row.Payload, &c); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode draft")
	}
	return &c, nil
}

// Clear removes the draft for key; missing drafts are not an error.
func (s *Service) Clear(ctx context.Context, key string) error {
	return s.repo.Delete(ctx, key)
}
