package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/bluehorizon/skydesk/pkg/db"
	"github.com/bluehorizon/skydesk/pkg/db/models"
	"github.com/bluehorizon/skydesk/pkg/enums"
	pkgerrors "github.com/bluehorizon/skydesk/pkg/errors"
	"github.com/bluehorizon/skydesk/pkg/pagination"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(ctx context.Context, row models.QueuedMutation) error {
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return dbpkg.StorageError(err, "insert queued mutation")
	}
	return nil
}

// FetchDue returns up to limit rows owned by identity that are due at now,
// oldest first.
func (r *Repository) FetchDue(ctx context.Context, identity string, now time.Time, limit int) ([]models.QueuedMutation, error) {
	var rows []models.QueuedMutation
	err := r.db.WithContext(ctx).
		Where("owner_identity = ?", identity).
		Where("status IN ?", enums.DueStatuses()).
		Where("next_retry_at <= ?", now).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, dbpkg.StorageError(err, "fetch due mutations")
	}
	return rows, nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.QueuedMutation, error) {
	var row models.QueuedMutation
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("queued mutation %s not found", id))
		}
		return nil, dbpkg.StorageError(err, "load queued mutation")
	}
	return &row, nil
}

// ListByOwner returns one page of the identity's rows in the given statuses,
// newest first, plus the cursor for the next page.
func (r *Repository) ListByOwner(ctx context.Context, identity string, statuses []enums.MutationStatus, page pagination.Params) ([]models.QueuedMutation, string, error) {
	cursor, err := pagination.ParseKeyset(page.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	q := r.db.WithContext(ctx).Where("owner_identity = ?", identity)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	if cursor != nil {
		q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.QueuedMutation
	err = q.Order("created_at DESC").
		Order("id DESC").
		Limit(page.Fetch()).
		Find(&rows).Error
	if err != nil {
		return nil, "", dbpkg.StorageError(err, "list queued mutations")
	}

	rows, more := pagination.Trim(rows, page)
	if !more {
		return rows, "", nil
	}
	last := rows[len(rows)-1]
	return rows, pagination.Keyset{CreatedAt: last.CreatedAt, ID: last.ID}.Encode(), nil
}

// Guard narrows a transition to the row version the caller observed. Zero
// fields are not checked.
type Guard struct {
	// Attempts must equal the stored attempt counter.
	Attempts int
	// DueBy requires next_retry_at <= DueBy.
	DueBy time.Time
}

// Transition moves a row to status `to`, applying extra column updates. The
// update only matches rows whose current status may legally precede `to`,
// so terminal rows can never be rewritten, and whose columns satisfy guard.
func (r *Repository) Transition(ctx context.Context, id uuid.UUID, to enums.MutationStatus, guard Guard, updates map[string]any) error {
	from := enums.PredecessorsOf(to)
	if len(from) == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("no status may transition to %s", to))
	}

	values := map[string]any{"status": to}
	for k, v := range updates {
		values[k] = v
	}

	query := r.db.WithContext(ctx).
		Model(&models.QueuedMutation{}).
		Where("id = ? AND status IN ?", id, from)
	if guard.Attempts > 0 {
		query = query.Where("attempts = ?", guard.Attempts)
	}
	if !guard.DueBy.IsZero() {
		query = query.Where("next_retry_at <= ?", guard.DueBy)
	}
	res := query.Updates(values)
	if res.Error != nil {
		return dbpkg.StorageError(res.Error, fmt.Sprintf("transition mutation to %s", to))
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("mutation %s cannot move to %s", id, to)).
			WithDetails(map[string]any{"id": id.String(), "to": to})
	}
	return nil
}
