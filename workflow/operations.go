package workflow

import (
	"context"
	"strings"
	"time"

	"heartbridge-api/apperror"
	"heartbridge-api/auth"
	"heartbridge-api/models"
	"heartbridge-api/statemachine"
	"heartbridge-api/store"
	"heartbridge-api/validation"
)

type CreateInput struct {
	Type        models.RequestType `json:"type" validate:"required,oneof=shopping medicine daily-tasks transportation companionship"`
	Description string             `json:"description" validate:"required,max=1000"`
	Urgency     models.Urgency     `json:"urgency" validate:"omitempty,oneof=low medium high"`
	Notes       string             `json:"notes" validate:"max=500"`
}

type ReviewInput struct {
	Notes string `json:"admin_notes" validate:"max=1000"`
}

type RejectInput struct {
	Reason string `json:"rejection_reason" validate:"required,max=500"`
	Notes  string `json:"admin_notes" validate:"max=1000"`
}

type CancelInput struct {
	Reason string `json:"reason" validate:"max=500"`
}

type RateInput struct {
	Rating   int    `json:"rating" validate:"required,min=1,max=5"`
	Feedback string `json:"feedback" validate:"max=500"`
}

// Create submits a new pending request on behalf of an elderly user.
func (e *Engine) Create(ctx context.Context, actor auth.Identity, in CreateInput) (*models.Request, error) {
	if !e.authz.Authorize(actor, models.RoleElderly) {
		return nil, apperror.Forbidden("only elderly users can create requests")
	}
	in.Description = strings.TrimSpace(in.Description)
	if in.Urgency == "" {
		in.Urgency = models.UrgencyMedium
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	status, err := statemachine.Next("", statemachine.OpCreate, actor.Role)
	if err != nil {
		return nil, err
	}

	requester, err := e.loadUser(ctx, e.store, actor.UserID)
	if err != nil {
		return nil, err
	}
	now := e.now()
	req := &models.Request{
		Requester: models.RequesterInfo{
			UserID:   requester.ID,
			Name:     requester.Name,
			Email:    requester.Email,
			Phone:    requester.Phone,
			Location: requester.Location,
			Age:      requester.Age,
		},
		Type:        in.Type,
		Description: in.Description,
		Urgency:     in.Urgency,
		Notes:       in.Notes,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = e.store.Atomic(ctx, func(tx store.Store) error {
		if err := tx.CreateRequest(ctx, req); err != nil {
			return storageError("failed to create request", err)
		}
		return tx.AppendHistory(ctx, &models.RequestStatusHistory{
			RequestID: req.ID,
			ToStatus:  status,
			Operation: string(statemachine.OpCreate),
			ChangedBy: actor.UserID,
			Note:      "Request submitted",
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, storageError("failed to create request", err)
	}
	e.log.InfoContext(ctx, "request created", "request_id", req.ID, "requester", actor.UserID, "type", req.Type)
	return req, nil
}

func (e *Engine) Approve(ctx context.Context, actor auth.Identity, id string, in ReviewInput) (*models.Request, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	return e.apply(ctx, actor, id, step{
		op:    statemachine.OpApprove,
		roles: []models.UserRole{models.RoleAdmin},
		patch: func(_ context.Context, _ store.Store, _ *models.Request, now time.Time) (map[string]any, error) {
			return map[string]any{
				store.ColApprovedBy: actor.UserID,
				store.ColApprovedAt: now,
				store.ColAdminNotes: in.Notes,
			}, nil
		},
		note: "Approved by admin",
	})
}

func (e *Engine) Reject(ctx context.Context, actor auth.Identity, id string, in RejectInput) (*models.Request, error) {
	in.Reason = strings.TrimSpace(in.Reason)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	return e.apply(ctx, actor, id, step{
		op:    statemachine.OpReject,
		roles: []models.UserRole{models.RoleAdmin},
		patch: func(_ context.Context, _ store.Store, _ *models.Request, now time.Time) (map[string]any, error) {
			return map[string]any{
				store.ColRejectedBy:      actor.UserID,
				store.ColRejectedAt:      now,
				store.ColRejectionReason: in.Reason,
				store.ColAdminNotes:      in.Notes,
			}, nil
		},
		note: "Rejected: " + in.Reason,
	})
}

// Assign binds the calling volunteer to an approved request. Only one volunteer
// can ever win; later callers get ErrAlreadyAssigned while the winner still holds
// the request. Once it is completed or cancelled, assign is an invalid transition.
func (e *Engine) Assign(ctx context.Context, actor auth.Identity, id string) (*models.Request, error) {
	return e.apply(ctx, actor, id, step{
		op:    statemachine.OpAssign,
		roles: []models.UserRole{models.RoleVolunteer},
		check: func(r *models.Request) error {
			if r.Volunteer.UserID != nil && inFlight(r.Status) {
				return alreadyAssigned(r)
			}
			return nil
		},
		cond: func(c *store.Condition) { c.Unassigned = true },
		patch: func(ctx context.Context, tx store.Store, _ *models.Request, now time.Time) (map[string]any, error) {
			v, err := e.loadUser(ctx, tx, actor.UserID)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				store.ColVolunteerID:       v.ID,
				store.ColVolunteerName:     v.Name,
				store.ColVolunteerEmail:    v.Email,
				store.ColVolunteerPhone:    v.Phone,
				store.ColVolunteerAssigned: now,
			}, nil
		},
		note: "Volunteer accepted the request",
	})
}

// Start marks an assigned request as being worked on by its volunteer.
func (e *Engine) Start(ctx context.Context, actor auth.Identity, id string) (*models.Request, error) {
	return e.apply(ctx, actor, id, step{
		op:    statemachine.OpStart,
		roles: []models.UserRole{models.RoleVolunteer},
		check: assignedVolunteerOnly(actor),
		patch: func(_ context.Context, _ store.Store, _ *models.Request, now time.Time) (map[string]any, error) {
			return map[string]any{store.ColVolunteerStarted: now}, nil
		},
		note: "Volunteer started the request",
	})
}

// Complete finishes the request and credits the volunteer in the same transaction.
func (e *Engine) Complete(ctx context.Context, actor auth.Identity, id string) (*models.Request, error) {
	return e.apply(ctx, actor, id, step{
		op:    statemachine.OpComplete,
		roles: []models.UserRole{models.RoleVolunteer},
		check: assignedVolunteerOnly(actor),
		patch: func(_ context.Context, _ store.Store, _ *models.Request, now time.Time) (map[string]any, error) {
			return map[string]any{
				store.ColCompletedAt:        now,
				store.ColVolunteerCompleted: now,
			}, nil
		},
		after: func(ctx context.Context, tx store.Store, r *models.Request) error {
			if err := tx.IncrementCompletedRequests(ctx, *r.Volunteer.UserID); err != nil {
				return storageError("failed to update volunteer counter", err)
			}
			return nil
		},
		note: "Volunteer completed the request",
	})
}

// Cancel withdraws a request before work starts. The requester or the system may cancel.
func (e *Engine) Cancel(ctx context.Context, actor auth.Identity, id string, in CancelInput) (*models.Request, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	return e.apply(ctx, actor, id, cancelStep(actor, in.Reason))
}

func cancelStep(actor auth.Identity, reason string) step {
	return step{
		op:    statemachine.OpCancel,
		roles: []models.UserRole{models.RoleElderly, models.RoleSystem},
		check: func(r *models.Request) error {
			if actor.Role != models.RoleSystem && !r.IsRequester(actor.UserID) {
				return apperror.Forbidden("This request does not belong to you")
			}
			return nil
		},
		patch: func(_ context.Context, _ store.Store, _ *models.Request, now time.Time) (map[string]any, error) {
			return map[string]any{
				store.ColCancelledAt:  now,
				store.ColCancelReason: reason,
			}, nil
		},
		note: "Cancelled: " + reason,
	}
}

// Rate records the requester's one-time rating of a completed request and
// refreshes the volunteer's aggregate rating.
func (e *Engine) Rate(ctx context.Context, actor auth.Identity, id string, in RateInput) (*models.Request, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	return e.apply(ctx, actor, id, step{
		op:    statemachine.OpRate,
		roles: []models.UserRole{models.RoleElderly},
		check: func(r *models.Request) error {
			if !r.IsRequester(actor.UserID) {
				return apperror.Forbidden("This request does not belong to you")
			}
			if r.Rating.Value != nil {
				ae := apperror.Conflict(apperror.ErrAlreadyRated.Code, "This request has already been rated")
				ae.Details = map[string]any{"rating": *r.Rating.Value}
				return ae
			}
			return nil
		},
		cond: func(c *store.Condition) { c.Unrated = true },
		patch: func(_ context.Context, _ store.Store, _ *models.Request, now time.Time) (map[string]any, error) {
			return map[string]any{
				store.ColRatingValue:    in.Rating,
				store.ColRatingFeedback: in.Feedback,
				store.ColRatedAt:        now,
			}, nil
		},
		after: func(ctx context.Context, tx store.Store, r *models.Request) error {
			if r.Volunteer.UserID == nil {
				return nil
			}
			if err := tx.RefreshVolunteerRating(ctx, *r.Volunteer.UserID); err != nil {
				return storageError("failed to update volunteer rating", err)
			}
			return nil
		},
		note: "Rated by requester",
	})
}

func assignedVolunteerOnly(actor auth.Identity) func(*models.Request) error {
	return func(r *models.Request) error {
		if r.Volunteer.UserID != nil && !r.IsAssignedTo(actor.UserID) {
			return apperror.Forbidden("You are not the assigned volunteer for this request")
		}
		return nil
	}
}

// inFlight reports whether a bound volunteer still holds a request in status s.
func inFlight(s models.RequestStatus) bool {
	return s == models.StatusAssigned || s == models.StatusInProgress
}

func alreadyAssigned(r *models.Request) error {
	ae := apperror.Conflict(apperror.ErrAlreadyAssigned.Code, "This request has already been accepted by another volunteer")
	ae.Details = map[string]any{"current_status": r.Status}
	return ae
}
