package workflow

import (
	"context"

	"heartbridge-api/apperror"
	"heartbridge-api/auth"
	"heartbridge-api/models"
	"heartbridge-api/ranking"
	"heartbridge-api/store"
)

// Volunteer list scopes.
const (
	ScopeAvailable = "available"
	ScopeMine      = "mine"
)

// ListOptions filters List. Which fields apply depends on the caller's role.
type ListOptions struct {
	Scope       string
	Status      models.RequestStatus
	Type        models.RequestType
	Urgency     models.Urgency
	RequesterID string
	VolunteerID string
}

// Get returns a request the caller may see: requesters see their own, volunteers
// see open requests and their own assignments, admins see everything.
func (e *Engine) Get(ctx context.Context, actor auth.Identity, id string) (*models.Request, error) {
	req, err := e.load(ctx, e.store, id)
	if err != nil {
		return nil, err
	}
	if !e.canView(actor, req) {
		return nil, apperror.Forbidden("You do not have access to this request")
	}
	return req, nil
}

func (e *Engine) canView(actor auth.Identity, r *models.Request) bool {
	switch {
	case e.authz.Authorize(actor, models.RoleAdmin):
		return true
	case e.authz.Authorize(actor, models.RoleElderly):
		return r.IsRequester(actor.UserID)
	case e.authz.Authorize(actor, models.RoleVolunteer):
		return r.IsAssignedTo(actor.UserID) ||
			(r.Status == models.StatusApproved && r.Volunteer.UserID == nil)
	}
	return false
}

// List returns the requests visible to the caller, newest first.
func (e *Engine) List(ctx context.Context, actor auth.Identity, opts ListOptions) ([]models.Request, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	f := store.RequestFilter{Type: opts.Type, Urgency: opts.Urgency}
	if opts.Status != "" {
		f.Statuses = []models.RequestStatus{opts.Status}
	}

	switch {
	case e.authz.Authorize(actor, models.RoleAdmin):
		f.RequesterID = opts.RequesterID
		f.VolunteerID = opts.VolunteerID
	case e.authz.Authorize(actor, models.RoleElderly):
		f.RequesterID = actor.UserID
	case e.authz.Authorize(actor, models.RoleVolunteer):
		if opts.Scope == ScopeMine {
			f.VolunteerID = actor.UserID
		} else {
			f.Statuses = []models.RequestStatus{models.StatusApproved}
			f.Unassigned = true
		}
	default:
		return nil, apperror.Forbidden("You do not have access to requests")
	}

	requests, err := e.store.ListRequests(ctx, f)
	if err != nil {
		return nil, storageError("failed to list requests", err)
	}
	return requests, nil
}

func (o ListOptions) validate() error {
	fields := map[string]string{}
	if o.Status != "" && !o.Status.Valid() {
		fields["status"] = "is not a known status"
	}
	if o.Type != "" && !validType(o.Type) {
		fields["type"] = "is not a known request type"
	}
	switch o.Urgency {
	case "", models.UrgencyLow, models.UrgencyMedium, models.UrgencyHigh:
	default:
		fields["urgency"] = "must be one of: low, medium, high"
	}
	switch o.Scope {
	case "", ScopeAvailable, ScopeMine:
	default:
		fields["scope"] = "must be one of: available, mine"
	}
	if len(fields) > 0 {
		return apperror.Validation("Validation failed", fields)
	}
	return nil
}

func validType(t models.RequestType) bool {
	for _, v := range models.AllRequestTypes {
		if v == t {
			return true
		}
	}
	return false
}

// History returns the status audit trail of a request the caller may see.
func (e *Engine) History(ctx context.Context, actor auth.Identity, id string) ([]models.RequestStatusHistory, error) {
	if _, err := e.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	h, err := e.store.ListHistory(ctx, id)
	if err != nil {
		return nil, storageError("failed to load history", err)
	}
	return h, nil
}

// Rankings computes the volunteer leaderboard from completed requests.
func (e *Engine) Rankings(ctx context.Context, actor auth.Identity) ([]ranking.VolunteerRanking, error) {
	if !e.authz.Authorize(actor, models.RoleElderly, models.RoleVolunteer, models.RoleAdmin) {
		return nil, apperror.Forbidden("You do not have access to rankings")
	}
	completed, err := e.store.ListRequests(ctx, store.RequestFilter{
		Statuses: []models.RequestStatus{models.StatusCompleted},
	})
	if err != nil {
		return nil, storageError("failed to list requests", err)
	}
	return ranking.Top(ranking.ComputeVolunteerRankings(completed, e.cfg.Weights), e.cfg.RankingLimit), nil
}

// MyStats returns the dashboard statistics for the caller's role.
func (e *Engine) MyStats(ctx context.Context, actor auth.Identity) (any, error) {
	switch {
	case e.authz.Authorize(actor, models.RoleElderly):
		requests, err := e.store.ListRequests(ctx, store.RequestFilter{RequesterID: actor.UserID})
		if err != nil {
			return nil, storageError("failed to list requests", err)
		}
		return ranking.ComputeRequesterStats(requests), nil
	case e.authz.Authorize(actor, models.RoleVolunteer):
		requests, err := e.store.ListRequests(ctx, store.RequestFilter{VolunteerID: actor.UserID})
		if err != nil {
			return nil, storageError("failed to list requests", err)
		}
		return ranking.ComputeVolunteerStats(requests, actor.UserID, e.now()), nil
	case e.authz.Authorize(actor, models.RoleAdmin):
		return e.Summary(ctx, actor)
	}
	return nil, apperror.Forbidden("No statistics for this role")
}

// Summary is the admin overview of requests and accounts.
func (e *Engine) Summary(ctx context.Context, actor auth.Identity) (*ranking.Summary, error) {
	if !e.authz.Authorize(actor, models.RoleAdmin) {
		return nil, apperror.Forbidden("Only admins can view the summary")
	}
	requests, err := e.store.ListRequests(ctx, store.RequestFilter{})
	if err != nil {
		return nil, storageError("failed to list requests", err)
	}
	users, err := e.store.ListUsers(ctx, store.UserFilter{})
	if err != nil {
		return nil, storageError("failed to list users", err)
	}
	s := ranking.ComputeSummary(requests, users)
	return &s, nil
}

// UserStats counts active accounts per role. It is public.
func (e *Engine) UserStats(ctx context.Context) (map[models.UserRole]int, error) {
	users, err := e.store.ListUsers(ctx, store.UserFilter{State: models.AccountActive})
	if err != nil {
		return nil, storageError("failed to list users", err)
	}
	return ranking.RoleCounts(users), nil
}
