package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bluehorizon/skydesk/pkg/db/models"
	"github.com/bluehorizon/skydesk/pkg/enums"
	pkgerrors "github.com/bluehorizon/skydesk/pkg/errors"
	"github.com/bluehorizon/skydesk/pkg/gateway"
	"github.com/bluehorizon/skydesk/pkg/logger"
	"github.com/bluehorizon/skydesk/pkg/metrics"
	"github.com/bluehorizon/skydesk/pkg/notify"
	"github.com/bluehorizon/skydesk/pkg/pagination"
)

type mutationRepository interface {
	Insert(ctx context.Context, row models.QueuedMutation) error
	FetchDue(ctx context.Context, identity string, now time.Time, limit int) ([]models.QueuedMutation, error)
	Get(ctx context.Context, id uuid.UUID) (*models.QueuedMutation, error)
	ListByOwner(ctx context.Context, identity string, statuses []enums.MutationStatus, page pagination.Params) ([]models.QueuedMutation, string, error)
	Transition(ctx context.Context, id uuid.UUID, to enums.MutationStatus, guard Guard, updates map[string]any) error
}

type mutationResolver interface {
	Resolve(payload json.RawMessage) (gateway.Mutation, error)
}

// gatewayRunner is satisfied by *gateway.Handle.
type gatewayRunner interface {
	Do(ctx context.Context, fn func(ctx context.Context, gw gateway.Gateway) error) error
}

type ServiceParams struct {
	Logger     *logger.Logger
	Repository mutationRepository
	Registry   mutationResolver
	Gateway    gatewayRunner
	Notifier   notify.Notifier
	Metrics    *metrics.OutboxMetrics
	Policy     RetryPolicy
	BatchSize  int
	Now        func() time.Time
}

// Service owns the outbox table: it records failed writes and retries them.
type Service struct {
	logg      *logger.Logger
	repo      mutationRepository
	registry  mutationResolver
	gateway   gatewayRunner
	notifier  notify.Notifier
	metrics   *metrics.OutboxMetrics
	policy    RetryPolicy
	batchSize int
	now       func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Repository == nil {
		return nil, errors.New("outbox repository is required")
	}
	if params.Registry == nil {
		return nil, errors.New("decoder registry is required")
	}
	if params.Gateway == nil {
		return nil, errors.New("gateway handle is required")
	}
	notifier := params.Notifier
	if notifier == nil {
		notifier = notify.Discard{}
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		logg:      params.Logger,
		repo:      params.Repository,
		registry:  params.Registry,
		gateway:   params.Gateway,
		notifier:  notifier,
		metrics:   params.Metrics,
		policy:    params.Policy.withDefaults(),
		batchSize: batch,
		now:       now,
	}, nil
}

// Enqueue durably records a mutation whose immediate delivery failed with a
// queueable error. The row is due immediately.
func (s *Service) Enqueue(ctx context.Context, identity string, payload json.RawMessage, reason string) (uuid.UUID, error) {
	if identity == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeNotAuthenticated, "queued mutations need an owning identity")
	}
	if len(payload) == 0 {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeInternal, "queued mutation payload is empty")
	}

	now := s.now().UTC()
	row := models.QueuedMutation{
		ID:            uuid.New(),
		OwnerIdentity: identity,
		Payload:       payload,
		Status:        enums.MutationStatusQueued,
		Attempts:      1,
		NextRetryAt:   now,
		LastError:     reason,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Insert(ctx, row); err != nil {
		return uuid.Nil, err
	}
	s.metrics.IncTransition(string(enums.MutationStatusQueued))

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"mutation_id": row.ID.String(),
		"identity":    identity,
		"reason":      reason,
	})
	s.logg.Info(logCtx, "mutation queued for retry")
	s.notifier.Publish(ctx, enums.EventMutationQueued, notify.MutationPayload{ID: row.ID.String()})
	return row.ID, nil
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	Selected int
	Sent     int
	Requeued int
	Failed   int
	Skipped  int
}

// Sweep retries due rows for identity. Gateway errors are recorded per row;
// storage errors abort the rest of the batch and are returned.
func (s *Service) Sweep(ctx context.Context, identity string) (SweepResult, error) {
	var result SweepResult
	if identity == "" {
		return result, nil
	}
	ctx = s.logg.WithIdentity(ctx, identity)

	rows, err := s.repo.FetchDue(ctx, identity, s.now().UTC(), s.batchSize)
	if err != nil {
		return result, err
	}
	s.metrics.ObserveSweep(len(rows))
	result.Selected = len(rows)
	if len(rows) == 0 {
		return result, nil
	}

	err = s.gateway.Do(ctx, func(ctx context.Context, gw gateway.Gateway) error {
		for _, row := range rows {
			if err := s.attempt(ctx, gw, row, &result); err != nil {
				return err
			}
		}
		return nil
	})
	if pkgerrors.IsCode(err, pkgerrors.CodeNotAuthenticated) {
		s.logg.Debug(ctx, "outbox sweep skipped; no session attached")
		return result, nil
	}
	return result, err
}

func (s *Service) attempt(ctx context.Context, gw gateway.Gateway, row models.QueuedMutation, result *SweepResult) error {
	ctx = s.logg.WithFields(ctx, map[string]any{
		"mutation_id": row.ID.String(),
		"attempts":    row.Attempts,
		"status":      string(row.Status),
	})

	mutation, err := s.registry.Resolve(row.Payload)
	if err != nil {
		now := s.now().UTC()
		markErr := s.transition(ctx, row.ID, enums.MutationStatusFailed, Guard{Attempts: row.Attempts}, map[string]any{
			"attempts":      row.Attempts + 1,
			"last_error":    fmt.Sprintf("invalid payload: %v", err),
			"next_retry_at": now,
			"updated_at":    now,
		})
		if markErr != nil {
			return s.ignoreConflict(markErr, result)
		}
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "queued mutation payload malformed; abandoned")
		result.Failed++
		return nil
	}

	// Claim the row as fetched. A concurrent sweep that already sent or
	// requeued it has bumped attempts or next_retry_at, so the claim misses.
	claimedAt := s.now().UTC()
	claim := Guard{Attempts: row.Attempts, DueBy: claimedAt}
	if err := s.transition(ctx, row.ID, enums.MutationStatusRetrying, claim, map[string]any{"updated_at": claimedAt}); err != nil {
		return s.ignoreConflict(err, result)
	}
	owned := Guard{Attempts: row.Attempts}

	_, sendErr := gw.SendMutation(ctx, mutation)
	now := s.now().UTC()

	if sendErr == nil {
		if err := s.transition(ctx, row.ID, enums.MutationStatusSent, owned, map[string]any{
			"sent_at":    now,
			"updated_at": now,
		}); err != nil {
			return s.ignoreConflict(err, result)
		}
		result.Sent++
		s.logg.Info(ctx, "queued mutation delivered")
		s.notifier.Publish(ctx, enums.EventMutationSent, notify.MutationPayload{ID: row.ID.String()})
		return nil
	}

	attempts := row.Attempts + 1
	ctx = s.logg.WithFields(ctx, map[string]any{"error": sendErr.Error(), "next_attempts": attempts})

	if s.policy.Exhausted(attempts) {
		if err := s.transition(ctx, row.ID, enums.MutationStatusFailed, owned, map[string]any{
			"attempts":      attempts,
			"last_error":    sendErr.Error(),
			"next_retry_at": now,
			"updated_at":    now,
		}); err != nil {
			return s.ignoreConflict(err, result)
		}
		result.Failed++
		s.logg.Warn(ctx, "queued mutation exhausted retries; abandoned")
		return nil
	}

	next := now.Add(s.policy.Delay(row.Attempts))
	if err := s.transition(ctx, row.ID, enums.MutationStatusQueued, owned, map[string]any{
		"attempts":      attempts,
		"last_error":    sendErr.Error(),
		"next_retry_at": next,
		"updated_at":    now,
	}); err != nil {
		return s.ignoreConflict(err, result)
	}
	result.Requeued++
	s.logg.Warn(s.logg.WithField(ctx, "next_retry_at", next.Format(time.RFC3339)), "queued mutation delivery failed; will retry")
	return nil
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to enums.MutationStatus, guard Guard, updates map[string]any) error {
	if err := s.repo.Transition(ctx, id, to, guard, updates); err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
			s.logg.Warn(s.logg.WithField(ctx, "to", string(to)), "queued mutation changed state underneath the sweep")
		}
		return err
	}
	s.metrics.IncTransition(string(to))
	return nil
}

func (s *Service) ignoreConflict(err error, result *SweepResult) error {
	if pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		result.Skipped++
		return nil
	}
	return err
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.QueuedMutation, error) {
	return s.repo.Get(ctx, id)
}

// ListPending returns rows that have not reached a terminal status.
func (s *Service) ListPending(ctx context.Context, identity string) ([]models.QueuedMutation, error) {
	rows, _, err := s.repo.ListByOwner(ctx, identity, enums.DueStatuses(), pagination.Params{Limit: pagination.MaxLimit})
	return rows, err
}

// List pages through the identity's rows in the given statuses (all when empty).
func (s *Service) List(ctx context.Context, identity string, statuses []enums.MutationStatus, page pagination.Params) ([]models.QueuedMutation, string, error) {
	return s.repo.ListByOwner(ctx, identity, statuses, page)
}
