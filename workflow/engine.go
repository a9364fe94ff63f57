// Package workflow runs the assistance request lifecycle: it checks the caller's
// capabilities, validates the transition against the state machine and commits
// the new status with its metadata as one atomic unit.
package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"heartbridge-api/apperror"
	"heartbridge-api/auth"
	"heartbridge-api/models"
	"heartbridge-api/ranking"
	"heartbridge-api/statemachine"
	"heartbridge-api/store"
)

// Authorizer answers role capability checks. *auth.Gate satisfies it.
type Authorizer interface {
	Authorize(id auth.Identity, required ...models.UserRole) bool
}

type Config struct {
	// RetryOnConflict re-reads and re-validates once when a conditional update loses a race.
	RetryOnConflict bool
	Weights         ranking.Weights
	RankingLimit    int
	Now             func() time.Time
	Logger          *slog.Logger
}

type Engine struct {
	store store.Store
	authz Authorizer
	cfg   Config
	log   *slog.Logger
	now   func() time.Time
}

func New(s store.Store, authz Authorizer, cfg Config) *Engine {
	e := &Engine{store: s, authz: authz, cfg: cfg, log: cfg.Logger, now: cfg.Now}
	if e.log == nil {
		e.log = slog.Default()
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.cfg.Weights == (ranking.Weights{}) {
		e.cfg.Weights = ranking.DefaultWeights
	}
	return e
}

// step describes one guarded status change.
type step struct {
	op    statemachine.Operation
	roles []models.UserRole
	// check runs against the freshly loaded request before the state machine is consulted.
	check func(r *models.Request) error
	// cond narrows the conditional update beyond the expected status.
	cond func(c *store.Condition)
	// patch returns the metadata columns written with the new status.
	patch func(ctx context.Context, tx store.Store, r *models.Request, now time.Time) (map[string]any, error)
	// after runs inside the same transaction, once the update has matched.
	after func(ctx context.Context, tx store.Store, r *models.Request) error
	note  string
}

// apply performs st on request id for actor, retrying once on a lost race when configured.
func (e *Engine) apply(ctx context.Context, actor auth.Identity, id string, st step) (*models.Request, error) {
	if !e.authz.Authorize(actor, st.roles...) {
		return nil, apperror.Forbidden("role '" + string(actor.Role) + "' cannot " + string(st.op) + " requests")
	}

	attempts := 1
	if e.cfg.RetryOnConflict {
		attempts = 2
	}
	for i := 0; i < attempts; i++ {
		req, err := e.load(ctx, e.store, id)
		if err != nil {
			return nil, err
		}
		err = e.store.Atomic(ctx, func(tx store.Store) error {
			return e.commit(ctx, tx, actor, req, st)
		})
		if errors.Is(err, store.ErrConflict) {
			e.log.WarnContext(ctx, "conditional update lost a race",
				"request_id", id, "operation", st.op, "attempt", i+1)
			continue
		}
		if err != nil {
			return nil, err
		}
		return e.reload(ctx, id)
	}
	return nil, apperror.Conflict("concurrent_update", "The request was modified concurrently, please retry")
}

// commit validates st against req and writes it through tx. It returns
// store.ErrConflict untouched so the caller can retry.
func (e *Engine) commit(ctx context.Context, tx store.Store, actor auth.Identity, req *models.Request, st step) error {
	if st.check != nil {
		if err := st.check(req); err != nil {
			return err
		}
	}
	to, err := statemachine.Next(req.Status, st.op, actor.Role)
	if err != nil {
		return err
	}

	now := e.now()
	patch := map[string]any{}
	if st.patch != nil {
		if patch, err = st.patch(ctx, tx, req, now); err != nil {
			return err
		}
	}
	patch[store.ColStatus] = to
	patch[store.ColUpdatedAt] = now

	cond := store.Condition{Status: req.Status}
	if st.cond != nil {
		st.cond(&cond)
	}
	if err := tx.ConditionalUpdateRequest(ctx, req.ID, cond, patch); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return err
		}
		return storageError("failed to update request", err)
	}
	if st.after != nil {
		if err := st.after(ctx, tx, req); err != nil {
			return err
		}
	}
	if err := tx.AppendHistory(ctx, &models.RequestStatusHistory{
		RequestID:  req.ID,
		FromStatus: req.Status,
		ToStatus:   to,
		Operation:  string(st.op),
		ChangedBy:  actor.UserID,
		Note:       st.note,
		CreatedAt:  now,
	}); err != nil {
		return storageError("failed to record status history", err)
	}

	e.log.InfoContext(ctx, "request transition",
		"request_id", req.ID, "operation", st.op, "from", req.Status, "to", to, "actor", actor.UserID)
	return nil
}

func (e *Engine) load(ctx context.Context, s store.RequestStore, id string) (*models.Request, error) {
	req, err := s.GetRequest(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperror.NotFound("Request")
	}
	if err != nil {
		return nil, storageError("failed to load request", err)
	}
	return req, nil
}

// reload reads back a request after a committed transition and rejects a row
// whose populated sections do not fit its status.
func (e *Engine) reload(ctx context.Context, id string) (*models.Request, error) {
	req, err := e.load(ctx, e.store, id)
	if err != nil {
		return nil, err
	}
	if err := req.CheckInvariants(); err != nil {
		e.log.ErrorContext(ctx, "request inconsistent after transition", "request_id", id, "err", err)
		return nil, apperror.Internal("request is in an inconsistent state", err)
	}
	return req, nil
}

func (e *Engine) loadUser(ctx context.Context, s store.AccountStore, id string) (*models.User, error) {
	u, err := s.GetUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperror.NotFound("User")
	}
	if err != nil {
		return nil, storageError("failed to load user", err)
	}
	return u, nil
}

// storageError wraps unexpected store failures as Internal, leaving typed errors as they are.
func storageError(msg string, err error) error {
	var ae *apperror.Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, store.ErrNotFound) {
		return apperror.NotFound("Record")
	}
	return apperror.Internal(msg, err)
}
