//go:generate mockgen -destination=mock/store.go -package=mock heartbridge-api/store Store

package store

import (
	"context"
	"errors"

	"heartbridge-api/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrConflict  = errors.New("conditional update did not match")
	ErrDuplicate = errors.New("duplicate key")
)

// Column names used in request patches.
const (
	ColStatus             = "status"
	ColUpdatedAt          = "updated_at"
	ColCompletedAt        = "completed_at"
	ColApprovedBy         = "review_approved_by"
	ColApprovedAt         = "review_approved_at"
	ColRejectedBy         = "review_rejected_by"
	ColRejectedAt         = "review_rejected_at"
	ColRejectionReason    = "review_rejection_reason"
	ColAdminNotes         = "review_admin_notes"
	ColVolunteerID        = "volunteer_user_id"
	ColVolunteerName      = "volunteer_name"
	ColVolunteerEmail     = "volunteer_email"
	ColVolunteerPhone     = "volunteer_phone"
	ColVolunteerAssigned  = "volunteer_assigned_at"
	ColVolunteerStarted   = "volunteer_started_at"
	ColVolunteerCompleted = "volunteer_completed_at"
	ColRatingValue        = "rating_value"
	ColRatingFeedback     = "rating_feedback"
	ColRatedAt            = "rating_rated_at"
	ColCancelledAt        = "cancellation_at"
	ColCancelReason       = "cancellation_reason"
)

// Condition is the precondition of ConditionalUpdateRequest.
type Condition struct {
	Status     models.RequestStatus
	Unassigned bool // volunteer not yet bound
	Unrated    bool // rating not yet given
}

type RequestFilter struct {
	Statuses    []models.RequestStatus
	RequesterID string
	VolunteerID string
	Type        models.RequestType
	Urgency     models.Urgency
	Unassigned  bool
}

type UserFilter struct {
	Role  models.UserRole
	State models.AccountState
	// Skill keeps volunteers listing it among their skills.
	Skill models.RequestType
	// Location is a case-insensitive substring match.
	Location string
}

// AccountStore persists user accounts.
type AccountStore interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) error
	UpdateUser(ctx context.Context, id string, patch map[string]any) error
	ListUsers(ctx context.Context, f UserFilter) ([]models.User, error)
	// IncrementCompletedRequests adds one to the volunteer's counter in a single statement.
	IncrementCompletedRequests(ctx context.Context, volunteerID string) error
	// RefreshVolunteerRating recomputes the volunteer's mean rating from rated requests.
	RefreshVolunteerRating(ctx context.Context, volunteerID string) error
}

// RequestStore persists assistance requests and their status history.
type RequestStore interface {
	CreateRequest(ctx context.Context, r *models.Request) error
	GetRequest(ctx context.Context, id string) (*models.Request, error)
	// ConditionalUpdateRequest applies patch only if the stored row still satisfies cond.
	// It returns ErrConflict when no row matched.
	ConditionalUpdateRequest(ctx context.Context, id string, cond Condition, patch map[string]any) error
	ListRequests(ctx context.Context, f RequestFilter) ([]models.Request, error)
	AppendHistory(ctx context.Context, h *models.RequestStatusHistory) error
	ListHistory(ctx context.Context, requestID string) ([]models.RequestStatusHistory, error)
}

// Store is the single persistence dependency of the workflow engine.
type Store interface {
	AccountStore
	RequestStore
	// Atomic runs fn against a transactional Store; any error rolls everything back.
	Atomic(ctx context.Context, fn func(s Store) error) error
}
