package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bluehorizon/skydesk/api/responses"
	"github.com/bluehorizon/skydesk/api/validators"
	"github.com/bluehorizon/skydesk/internal/cron"
	"github.com/bluehorizon/skydesk/pkg/db/models"
	"github.com/bluehorizon/skydesk/pkg/enums"
	pkgerrors "github.com/bluehorizon/skydesk/pkg/errors"
	"github.com/bluehorizon/skydesk/pkg/logger"
	"github.com/bluehorizon/skydesk/pkg/outbox"
	"github.com/bluehorizon/skydesk/pkg/pagination"
)

type IdentityProvider interface {
	CurrentIdentity(ctx context.Context) (string, error)
}

type OutboxService interface {
	Get(ctx context.Context, id uuid.UUID) (*models.QueuedMutation, error)
	List(ctx context.Context, identity string, statuses []enums.MutationStatus, page pagination.Params) ([]models.QueuedMutation, string, error)
	ListPending(ctx context.Context, identity string) ([]models.QueuedMutation, error)
}

// SweepTrigger is satisfied by the scheduler; a manual sweep is a request for
// an immediate run of the scheduled job so it shares that job's lock.
type SweepTrigger interface {
	Trigger(job string) bool
}

// MutationDTO is the outward view of a queued mutation.
type MutationDTO struct {
	ID          string               `json:"id"`
	Kind        enums.MutationKind   `json:"kind,omitempty"`
	Status      enums.MutationStatus `json:"status"`
	Attempts    int                  `json:"attempts"`
	NextRetryAt time.Time            `json:"nextRetryAt"`
	LastError   string               `json:"lastError,omitempty"`
	CreatedAt   time.Time            `json:"createdAt"`
	SentAt      *time.Time           `json:"sentAt,omitempty"`
	Payload     json.RawMessage      `json:"payload"`
}

type mutationListResponse struct {
	Mutations  []MutationDTO `json:"mutations"`
	NextCursor string        `json:"nextCursor,omitempty"`
}

func toMutationDTO(row models.QueuedMutation) MutationDTO {
	dto := MutationDTO{
		ID:          row.ID.String(),
		Status:      row.Status,
		Attempts:    row.Attempts,
		NextRetryAt: row.NextRetryAt,
		LastError:   row.LastError,
		CreatedAt:   row.CreatedAt,
		SentAt:      row.SentAt,
		Payload:     row.Payload,
	}
	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(row.Payload, &envelope); err == nil {
		dto.Kind = envelope.Kind
	}
	return dto
}

func parseStatuses(parts []string) ([]enums.MutationStatus, error) {
	var out []enums.MutationStatus
	for _, part := range parts {
		status, err := enums.ParseMutationStatus(part)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter").WithDetails(map[string]any{"field": "status"})
		}
		out = append(out, status)
	}
	return out, nil
}

// ListMutations pages through the signed-in identity's outbox rows,
// optionally filtered by ?status=queued,failed.
func ListMutations(identities IdentityProvider, svc OutboxService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		statuses, err := parseStatuses(validators.ParseList(r, "status"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		identity, err := identities.CurrentIdentity(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, next, err := svc.List(r.Context(), identity, statuses, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resp := mutationListResponse{Mutations: make([]MutationDTO, 0, len(rows)), NextCursor: next}
		for _, row := range rows {
			resp.Mutations = append(resp.Mutations, toMutationDTO(row))
		}
		responses.WriteSuccess(w, resp)
	}
}

// PendingMutations lists every row of the signed-in identity that can still
// be delivered, so the shell can badge unconfirmed posts.
func PendingMutations(identities IdentityProvider, svc OutboxService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := identities.CurrentIdentity(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.ListPending(r.Context(), identity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resp := mutationListResponse{Mutations: make([]MutationDTO, 0, len(rows))}
		for _, row := range rows {
			resp.Mutations = append(resp.Mutations, toMutationDTO(row))
		}
		responses.WriteSuccess(w, resp)
	}
}

func GetMutation(identities IdentityProvider, svc OutboxService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "mutationId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid mutation id"))
			return
		}
		identity, err := identities.CurrentIdentity(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		row, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if row.OwnerIdentity != identity {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "mutation not found"))
			return
		}
		responses.WriteSuccess(w, toMutationDTO(*row))
	}
}

// SweepOutbox asks the scheduler to run the outbox sweep now. The response
// is sent before the sweep finishes; scheduled is false when the job is not
// registered.
func SweepOutbox(identities IdentityProvider, trigger SweepTrigger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := identities.CurrentIdentity(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if trigger == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "scheduler is not running"))
			return
		}
		scheduled := trigger.Trigger(cron.OutboxSweepJobName)
		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]bool{"scheduled": scheduled})
	}
}
