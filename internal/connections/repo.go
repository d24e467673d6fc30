package connections

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/linkedge-backend/pkg/db/models"
	"github.com/angelmondragon/linkedge-backend/pkg/enums"
)

// pendingPairIndex is the partial unique index allowing one PENDING request
// per unordered pair.
const pendingPairIndex = "ux_connection_requests_pending_pair"

// Repository persists connection requests, edges and the people projection.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) CreateRequest(ctx context.Context, req *models.ConnectionRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *Repository) FindRequest(ctx context.Context, id uuid.UUID) (*models.ConnectionRequest, error) {
	var req models.ConnectionRequest
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

// FindRequestForUpdate reads the request under a row lock held until the
// surrounding transaction ends.
func (r *Repository) FindRequestForUpdate(ctx context.Context, id uuid.UUID) (*models.ConnectionRequest, error) {
	var req models.ConnectionRequest
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// FindPending returns the PENDING request from requesterID to targetID.
func (r *Repository) FindPending(ctx context.Context, requesterID, targetID uuid.UUID) (*models.ConnectionRequest, error) {
	var req models.ConnectionRequest
	err := r.db.WithContext(ctx).
		Where("requester_id = ? AND target_id = ? AND state = ?", requesterID, targetID, enums.ConnectionRequestPending).
		Order("created_at DESC").
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// PendingBetween reports whether a PENDING request exists in either direction.
func (r *Repository) PendingBetween(ctx context.Context, a, b uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ConnectionRequest{}).
		Where("state = ?", enums.ConnectionRequestPending).
		Where("(requester_id = ? AND target_id = ?) OR (requester_id = ? AND target_id = ?)", a, b, b, a).
		Count(&count).Error
	return count > 0, err
}

// HasRejected reports whether requesterID was ever rejected by targetID.
func (r *Repository) HasRejected(ctx context.Context, requesterID, targetID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ConnectionRequest{}).
		Where("requester_id = ? AND target_id = ? AND state = ?", requesterID, targetID, enums.ConnectionRequestRejected).
		Count(&count).Error
	return count > 0, err
}

// Decide moves a PENDING request to state. Zero rows affected means the
// request was no longer pending.
func (r *Repository) Decide(ctx context.Context, id uuid.UUID, state enums.ConnectionRequestState, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ConnectionRequest{}).
		Where("id = ? AND state = ?", id, enums.ConnectionRequestPending).
		Updates(map[string]any{
			"state":      state,
			"decided_at": at,
			"updated_at": at,
		})
	return res.RowsAffected, res.Error
}

func (r *Repository) ListIncoming(ctx context.Context, userID uuid.UUID) ([]models.ConnectionRequest, error) {
	var rows []models.ConnectionRequest
	err := r.db.WithContext(ctx).
		Where("target_id = ? AND state = ?", userID, enums.ConnectionRequestPending).
		Order("created_at DESC, id DESC").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) EdgeExists(ctx context.Context, a, b uuid.UUID) (bool, error) {
	low, high := models.CanonicalPair(a, b)
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ConnectionEdge{}).
		Where("user_low = ? AND user_high = ?", low, high).
		Count(&count).Error
	return count > 0, err
}

// InsertEdge is idempotent: an existing edge for the pair is left untouched.
func (r *Repository) InsertEdge(ctx context.Context, edge models.ConnectionEdge) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&edge).Error
}

// ListAcceptedWithoutEdge finds ACCEPTED requests decided after since whose
// pair has no edge.
func (r *Repository) ListAcceptedWithoutEdge(ctx context.Context, since time.Time, limit int) ([]models.ConnectionRequest, error) {
	var rows []models.ConnectionRequest
	err := r.db.WithContext(ctx).
		Table("connection_requests AS cr").
		Select("cr.*").
		Joins(`LEFT JOIN connection_edges ce ON
			(ce.user_low = cr.requester_id AND ce.user_high = cr.target_id) OR
			(ce.user_low = cr.target_id AND ce.user_high = cr.requester_id)`).
		Where("cr.state = ? AND cr.decided_at >= ? AND ce.request_id IS NULL", enums.ConnectionRequestAccepted, since).
		Order("cr.decided_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// UpsertPerson inserts or renames a person in the projection.
func (r *Repository) UpsertPerson(ctx context.Context, person models.Person) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
		}).
		Create(&person).Error
}
