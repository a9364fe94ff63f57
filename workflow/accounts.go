package workflow

import (
	"context"
	"errors"

	"heartbridge-api/apperror"
	"heartbridge-api/auth"
	"heartbridge-api/models"
	"heartbridge-api/statemachine"
	"heartbridge-api/store"
)

const deletionReason = "account deleted"

// cancellable are the statuses a requester's deletion cancels.
var cancellable = []models.RequestStatus{models.StatusPending, models.StatusApproved, models.StatusAssigned}

// ListUsers returns accounts for the admin console. Skill and location narrow a
// volunteer search.
func (e *Engine) ListUsers(ctx context.Context, actor auth.Identity, f store.UserFilter) ([]models.User, error) {
	if !e.authz.Authorize(actor, models.RoleAdmin) {
		return nil, apperror.Forbidden("Only admins can list users")
	}
	if f.Role != "" && !f.Role.Valid() {
		return nil, apperror.Validation("Validation failed", map[string]string{"role": "must be one of: elderly, volunteer, admin"})
	}
	switch f.State {
	case "", models.AccountActive, models.AccountDeactivated, models.AccountDeleted:
	default:
		return nil, apperror.Validation("Validation failed", map[string]string{"state": "must be one of: active, deactivated, deleted"})
	}
	if f.Skill != "" && !validType(f.Skill) {
		return nil, apperror.Validation("Validation failed", map[string]string{"skill": "is not a known request type"})
	}
	users, err := e.store.ListUsers(ctx, f)
	if err != nil {
		return nil, storageError("failed to list users", err)
	}
	return users, nil
}

func (e *Engine) Deactivate(ctx context.Context, actor auth.Identity, userID string) (*models.User, error) {
	if !e.authz.Authorize(actor, models.RoleAdmin) {
		return nil, apperror.Forbidden("Only admins can deactivate accounts")
	}
	if actor.UserID == userID {
		return nil, apperror.Validation("You cannot deactivate your own account", nil)
	}
	return e.changeAccountState(ctx, actor, userID, models.EventDeactivate, nil)
}

func (e *Engine) Reactivate(ctx context.Context, actor auth.Identity, userID string) (*models.User, error) {
	if !e.authz.Authorize(actor, models.RoleAdmin) {
		return nil, apperror.Forbidden("Only admins can reactivate accounts")
	}
	return e.changeAccountState(ctx, actor, userID, models.EventReactivate, nil)
}

// DeleteAccount soft-deletes an account, by its owner or an admin. A deleted
// requester's pending, approved and assigned requests are cancelled by the system
// in the same transaction; other requests are left as they are.
func (e *Engine) DeleteAccount(ctx context.Context, actor auth.Identity, userID string) (*models.User, error) {
	self := actor.UserID == userID && e.authz.Authorize(actor, models.RoleElderly, models.RoleVolunteer, models.RoleAdmin)
	if !self && !e.authz.Authorize(actor, models.RoleAdmin) {
		return nil, apperror.Forbidden("You can only delete your own account")
	}
	return e.changeAccountState(ctx, actor, userID, models.EventDelete, func(tx store.Store, u *models.User) error {
		if u.Role != models.RoleElderly {
			return nil
		}
		return e.cancelOpenRequests(ctx, tx, u.ID)
	})
}

func (e *Engine) changeAccountState(ctx context.Context, actor auth.Identity, userID string, ev models.AccountEvent,
	cascade func(tx store.Store, u *models.User) error) (*models.User, error) {
	err := e.store.Atomic(ctx, func(tx store.Store) error {
		u, err := e.loadUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		next, err := u.State.Apply(ev)
		if err != nil {
			ae := apperror.New(apperror.KindInvalidTransition, "invalid_account_transition", err.Error())
			ae.Details = map[string]any{"account_state": u.State, "event": ev}
			return ae
		}
		patch := map[string]any{"state": next}
		if next == models.AccountDeleted {
			patch["deleted_at"] = e.now()
		}
		if err := tx.UpdateUser(ctx, u.ID, patch); err != nil {
			return storageError("failed to update account", err)
		}
		if cascade != nil {
			if err := cascade(tx, u); err != nil {
				return err
			}
		}
		e.log.InfoContext(ctx, "account state changed",
			"user_id", u.ID, "event", ev, "from", u.State, "to", next, "actor", actor.UserID)
		return nil
	})
	if errors.Is(err, store.ErrConflict) {
		return nil, apperror.Conflict("concurrent_update", "A request of this account changed concurrently, please retry")
	}
	if err != nil {
		return nil, err
	}
	return e.loadUser(ctx, e.store, userID)
}

// cancelOpenRequests cancels every cancellable request of requesterID as the system actor.
func (e *Engine) cancelOpenRequests(ctx context.Context, tx store.Store, requesterID string) error {
	open, err := tx.ListRequests(ctx, store.RequestFilter{RequesterID: requesterID, Statuses: cancellable})
	if err != nil {
		return storageError("failed to list requests", err)
	}
	st := cancelStep(auth.System, deletionReason)
	for i := range open {
		req := &open[i]
		err := e.commit(ctx, tx, auth.System, req, st)
		if errors.Is(err, store.ErrConflict) {
			// moved since it was listed; re-check once
			if req, err = e.load(ctx, tx, req.ID); err != nil {
				return err
			}
			if !statemachine.Permits(req.Status, statemachine.OpCancel) {
				continue
			}
			err = e.commit(ctx, tx, auth.System, req, st)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
