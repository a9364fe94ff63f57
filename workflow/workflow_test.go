package workflow_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"heartbridge-api/apperror"
	"heartbridge-api/auth"
	"heartbridge-api/models"
	"heartbridge-api/store"
	"heartbridge-api/store/storetest"
	"heartbridge-api/workflow"

	"go.uber.org/goleak"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixture struct {
	engine *workflow.Engine
	store  store.Store
	db     *gorm.DB
	elder  auth.Identity
	other  auth.Identity
	admin  auth.Identity
	volA   auth.Identity
	volB   auth.Identity
}

func identity(u *models.User) auth.Identity {
	return auth.Identity{UserID: u.ID, Role: u.Role}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, db := storetest.New(t)
	return &fixture{
		engine: workflow.New(s, auth.NewGate(nil, s), workflow.Config{RetryOnConflict: true}),
		store:  s,
		db:     db,
		elder:  identity(storetest.SeedUser(t, s, "Edna", models.RoleElderly)),
		other:  identity(storetest.SeedUser(t, s, "Olive", models.RoleElderly)),
		admin:  identity(storetest.SeedUser(t, s, "Ada", models.RoleAdmin)),
		volA:   identity(storetest.SeedUser(t, s, "Val", models.RoleVolunteer)),
		volB:   identity(storetest.SeedUser(t, s, "Vic", models.RoleVolunteer)),
	}
}

func (f *fixture) create(t *testing.T) *models.Request {
	t.Helper()
	r, err := f.engine.Create(context.Background(), f.elder, workflow.CreateInput{
		Type:        models.TypeShopping,
		Description: "Groceries for the week",
		Urgency:     models.UrgencyHigh,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return consistent(t, r)
}

func (f *fixture) approved(t *testing.T) *models.Request {
	t.Helper()
	r := f.create(t)
	approved, err := f.engine.Approve(context.Background(), f.admin, r.ID, workflow.ReviewInput{})
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	return consistent(t, approved)
}

func (f *fixture) completed(t *testing.T) *models.Request {
	t.Helper()
	ctx := context.Background()
	r := f.approved(t)
	assigned, err := f.engine.Assign(ctx, f.volA, r.ID)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	consistent(t, assigned)
	done, err := f.engine.Complete(ctx, f.volA, r.ID)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	return consistent(t, done)
}

// consistent fails the test when r's populated sections do not fit its status.
func consistent(t *testing.T, r *models.Request) *models.Request {
	t.Helper()
	if err := r.CheckInvariants(); err != nil {
		t.Fatalf("request %s: %v", r.ID, err)
	}
	return r
}

func wantKind(t *testing.T, err error, kind apperror.Kind) {
	t.Helper()
	if !apperror.IsKind(err, kind) {
		t.Fatalf("expected %s error, got %v", kind, err)
	}
}

func TestScenarioRejectThenAssign(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.create(t)
	if r.Status != models.StatusPending || r.Urgency != models.UrgencyHigh {
		t.Fatalf("created = %+v", r)
	}

	rejected, err := f.engine.Reject(ctx, f.admin, r.ID, workflow.RejectInput{Reason: "duplicate-request"})
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if rejected.Status != models.StatusRejected || rejected.Review.RejectionReason != "duplicate-request" {
		t.Fatalf("rejected = %+v", rejected)
	}
	consistent(t, rejected)

	_, err = f.engine.Assign(ctx, f.volA, r.ID)
	wantKind(t, err, apperror.KindInvalidTransition)
	var ae *apperror.Error
	if errors.As(err, &ae) && ae.Details["current_status"] != models.StatusRejected {
		t.Fatalf("details = %v", ae.Details)
	}
}

func TestScenarioSecondVolunteerConflicts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.approved(t)

	if _, err := f.engine.Assign(ctx, f.volA, r.ID); err != nil {
		t.Fatalf("Assign A: %v", err)
	}
	_, err := f.engine.Assign(ctx, f.volB, r.ID)
	if !errors.Is(err, apperror.ErrAlreadyAssigned) {
		t.Fatalf("expected AlreadyAssigned, got %v", err)
	}
	wantKind(t, err, apperror.KindConflict)

	done, err := f.engine.Complete(ctx, f.volA, r.ID)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if done.Status != models.StatusCompleted || done.CompletedAt == nil || done.Volunteer.CompletedAt == nil {
		t.Fatalf("completed = %+v", done)
	}
	consistent(t, done)
	vol, _ := f.store.GetUser(ctx, f.volA.UserID)
	if vol.Volunteer.CompletedRequests != 1 {
		t.Fatalf("completed_requests = %d, want 1", vol.Volunteer.CompletedRequests)
	}
}

func TestScenarioRateOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.completed(t)

	rated, err := f.engine.Rate(ctx, f.elder, r.ID, workflow.RateInput{Rating: 4, Feedback: "Great help"})
	if err != nil {
		t.Fatalf("Rate: %v", err)
	}
	if rated.Status != models.StatusCompleted || *rated.Rating.Value != 4 {
		t.Fatalf("rated = %+v", rated)
	}
	consistent(t, rated)

	_, err = f.engine.Rate(ctx, f.elder, r.ID, workflow.RateInput{Rating: 2})
	if !errors.Is(err, apperror.ErrAlreadyRated) {
		t.Fatalf("expected AlreadyRated, got %v", err)
	}
	got, _ := f.store.GetRequest(ctx, r.ID)
	if *got.Rating.Value != 4 || got.Rating.Feedback != "Great help" {
		t.Fatalf("rating changed: %+v", got.Rating)
	}
	vol, _ := f.store.GetUser(ctx, f.volA.UserID)
	if vol.Volunteer.Rating != 4 {
		t.Fatalf("volunteer rating = %v, want 4", vol.Volunteer.Rating)
	}
}

func TestScenarioDeleteAccountCascades(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	done := f.completed(t)
	pending := f.create(t)
	foreign, err := f.engine.Create(ctx, f.other, workflow.CreateInput{Type: models.TypeMedicine, Description: "Pharmacy run"})
	if err != nil {
		t.Fatalf("Create other: %v", err)
	}

	user, err := f.engine.DeleteAccount(ctx, f.elder, f.elder.UserID)
	if err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}
	if user.State != models.AccountDeleted || user.DeletedAt == nil {
		t.Fatalf("user = %+v", user)
	}

	got, _ := f.store.GetRequest(ctx, pending.ID)
	if got.Status != models.StatusCancelled || got.Cancellation.Reason != "account deleted" {
		t.Fatalf("pending request = %s (%q), want cancelled", got.Status, got.Cancellation.Reason)
	}
	consistent(t, got)
	history, _ := f.store.ListHistory(ctx, pending.ID)
	if last := history[len(history)-1]; last.ChangedBy != auth.System.UserID || last.ToStatus != models.StatusCancelled {
		t.Fatalf("last history = %+v", last)
	}

	if got, _ := f.store.GetRequest(ctx, done.ID); got.Status != models.StatusCompleted {
		t.Fatalf("completed request changed to %s", got.Status)
	}
	if got, _ := f.store.GetRequest(ctx, foreign.ID); got.Status != models.StatusPending {
		t.Fatalf("another requester's request changed to %s", got.Status)
	}

	_, err = f.engine.DeleteAccount(ctx, f.elder, f.elder.UserID)
	wantKind(t, err, apperror.KindInvalidTransition)
}

func TestConcurrentAssignHasOneWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.approved(t)

	volunteers := []auth.Identity{f.volA, f.volB}
	for i := 0; i < 6; i++ {
		volunteers = append(volunteers, identity(storetest.SeedUser(t, f.store, "Extra", models.RoleVolunteer)))
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins []string
		errs []error
	)
	for _, v := range volunteers {
		wg.Add(1)
		go func(v auth.Identity) {
			defer wg.Done()
			_, err := f.engine.Assign(ctx, v, r.ID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			wins = append(wins, v.UserID)
		}(v)
	}
	wg.Wait()

	if len(wins) != 1 {
		t.Fatalf("winners = %v, want exactly one", wins)
	}
	for _, err := range errs {
		wantKind(t, err, apperror.KindConflict)
	}
	got, _ := f.store.GetRequest(ctx, r.ID)
	if got.Status != models.StatusAssigned || !got.IsAssignedTo(wins[0]) {
		t.Fatalf("request = %s bound to %v, want %s", got.Status, got.Volunteer.UserID, wins[0])
	}
}

func TestReviewIsNotReenterable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.approved(t)

	_, err := f.engine.Approve(ctx, f.admin, r.ID, workflow.ReviewInput{})
	wantKind(t, err, apperror.KindInvalidTransition)
	_, err = f.engine.Reject(ctx, f.admin, r.ID, workflow.RejectInput{Reason: "late"})
	wantKind(t, err, apperror.KindInvalidTransition)
}

func TestStartThenComplete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.approved(t)
	if _, err := f.engine.Assign(ctx, f.volA, r.ID); err != nil {
		t.Fatalf("Assign: %v", err)
	}

	_, err := f.engine.Start(ctx, f.volB, r.ID)
	wantKind(t, err, apperror.KindForbidden)

	started, err := f.engine.Start(ctx, f.volA, r.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if started.Status != models.StatusInProgress || started.Volunteer.StartedAt == nil {
		t.Fatalf("started = %+v", started)
	}
	consistent(t, started)

	// cancel is closed once work has started
	_, err = f.engine.Cancel(ctx, f.elder, r.ID, workflow.CancelInput{})
	wantKind(t, err, apperror.KindInvalidTransition)

	done, err := f.engine.Complete(ctx, f.volA, r.ID)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	consistent(t, done)

	history, err := f.engine.History(ctx, f.elder, r.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	want := []models.RequestStatus{
		models.StatusPending, models.StatusApproved, models.StatusAssigned,
		models.StatusInProgress, models.StatusCompleted,
	}
	if len(history) != len(want) {
		t.Fatalf("history has %d entries, want %d", len(history), len(want))
	}
	for i, h := range history {
		if h.ToStatus != want[i] {
			t.Fatalf("history[%d] = %s, want %s", i, h.ToStatus, want[i])
		}
	}
}

func TestForbiddenActors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pending := f.create(t)
	done := f.completed(t)

	tests := []struct {
		name string
		call func() error
		kind apperror.Kind
	}{
		{"volunteer approves", func() error {
			_, err := f.engine.Approve(ctx, f.volA, pending.ID, workflow.ReviewInput{})
			return err
		}, apperror.KindForbidden},
		{"elderly assigns", func() error {
			_, err := f.engine.Assign(ctx, f.elder, pending.ID)
			return err
		}, apperror.KindForbidden},
		{"admin creates", func() error {
			_, err := f.engine.Create(ctx, f.admin, workflow.CreateInput{Type: models.TypeShopping, Description: "x"})
			return err
		}, apperror.KindForbidden},
		{"other elderly cancels", func() error {
			_, err := f.engine.Cancel(ctx, f.other, pending.ID, workflow.CancelInput{})
			return err
		}, apperror.KindForbidden},
		{"other elderly rates", func() error {
			_, err := f.engine.Rate(ctx, f.other, done.ID, workflow.RateInput{Rating: 5})
			return err
		}, apperror.KindForbidden},
		{"other volunteer completes", func() error {
			_, err := f.engine.Complete(ctx, f.volB, done.ID)
			return err
		}, apperror.KindForbidden},
		{"rate pending", func() error {
			_, err := f.engine.Rate(ctx, f.elder, pending.ID, workflow.RateInput{Rating: 5})
			return err
		}, apperror.KindInvalidTransition},
		{"complete unassigned", func() error {
			_, err := f.engine.Complete(ctx, f.volA, pending.ID)
			return err
		}, apperror.KindInvalidTransition},
		{"rating out of range", func() error {
			_, err := f.engine.Rate(ctx, f.elder, done.ID, workflow.RateInput{Rating: 6})
			return err
		}, apperror.KindValidation},
		{"reject without reason", func() error {
			_, err := f.engine.Reject(ctx, f.admin, pending.ID, workflow.RejectInput{Reason: "  "})
			return err
		}, apperror.KindValidation},
		{"unknown request", func() error {
			_, err := f.engine.Approve(ctx, f.admin, "missing", workflow.ReviewInput{})
			return err
		}, apperror.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wantKind(t, tt.call(), tt.kind)
		})
	}

	// failed transitions leave the record untouched
	got, _ := f.store.GetRequest(ctx, pending.ID)
	if got.Status != models.StatusPending || got.Review.ApprovedBy != nil {
		t.Fatalf("pending request mutated: %+v", got)
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Create(context.Background(), f.elder, workflow.CreateInput{Type: "gardening", Urgency: "urgent"})
	var ae *apperror.Error
	if !errors.As(err, &ae) || ae.Kind != apperror.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, field := range []string{"type", "description", "urgency"} {
		if _, ok := ae.Fields[field]; !ok {
			t.Errorf("missing field error for %q in %v", field, ae.Fields)
		}
	}
}

func TestVisibilityAndListing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pending := f.create(t)
	open := f.approved(t)
	mine := f.approved(t)
	if _, err := f.engine.Assign(ctx, f.volA, mine.ID); err != nil {
		t.Fatalf("Assign: %v", err)
	}

	if _, err := f.engine.Get(ctx, f.other, pending.ID); !apperror.IsKind(err, apperror.KindForbidden) {
		t.Fatalf("other elderly saw the request: %v", err)
	}
	if _, err := f.engine.Get(ctx, f.volA, pending.ID); !apperror.IsKind(err, apperror.KindForbidden) {
		t.Fatalf("volunteer saw a pending request: %v", err)
	}
	if _, err := f.engine.Get(ctx, f.volB, mine.ID); !apperror.IsKind(err, apperror.KindForbidden) {
		t.Fatalf("volunteer saw another volunteer's assignment: %v", err)
	}
	if _, err := f.engine.Get(ctx, f.volB, open.ID); err != nil {
		t.Fatalf("volunteer could not see an open request: %v", err)
	}

	tests := []struct {
		name  string
		actor auth.Identity
		opts  workflow.ListOptions
		want  int
	}{
		{"elderly own", f.elder, workflow.ListOptions{}, 3},
		{"other elderly", f.other, workflow.ListOptions{}, 0},
		{"volunteer available", f.volB, workflow.ListOptions{}, 1},
		{"volunteer mine", f.volA, workflow.ListOptions{Scope: workflow.ScopeMine}, 1},
		{"admin all", f.admin, workflow.ListOptions{}, 3},
		{"admin by status", f.admin, workflow.ListOptions{Status: models.StatusApproved}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.engine.List(ctx, tt.actor, tt.opts)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(got) != tt.want {
				t.Fatalf("got %d requests, want %d", len(got), tt.want)
			}
		})
	}

	_, err := f.engine.List(ctx, f.admin, workflow.ListOptions{Status: "done"})
	wantKind(t, err, apperror.KindValidation)
}

func TestStatusesStayValid(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.create(t)
	f.approved(t)
	done := f.completed(t)
	if _, err := f.engine.Rate(ctx, f.elder, done.ID, workflow.RateInput{Rating: 5}); err != nil {
		t.Fatalf("Rate: %v", err)
	}
	cancelled := f.create(t)
	if _, err := f.engine.Cancel(ctx, f.elder, cancelled.ID, workflow.CancelInput{Reason: "not needed"}); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	rejected := f.create(t)
	if _, err := f.engine.Reject(ctx, f.admin, rejected.ID, workflow.RejectInput{Reason: "out of area"}); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	withdrawn := f.approved(t)
	if _, err := f.engine.Assign(ctx, f.volB, withdrawn.ID); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if _, err := f.engine.Cancel(ctx, f.elder, withdrawn.ID, workflow.CancelInput{}); err != nil {
		t.Fatalf("Cancel assigned: %v", err)
	}
	working := f.approved(t)
	if _, err := f.engine.Assign(ctx, f.volA, working.ID); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if _, err := f.engine.Start(ctx, f.volA, working.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}

	all, err := f.engine.List(ctx, f.admin, workflow.ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	for i := range all {
		if !all[i].Status.Valid() {
			t.Fatalf("invalid status %q", all[i].Status)
		}
		if err := all[i].CheckInvariants(); err != nil {
			t.Fatalf("request %s: %v", all[i].ID, err)
		}
	}
}

func TestAssignAfterTerminalIsInvalid(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	done := f.completed(t)
	cancelled := f.approved(t)
	if _, err := f.engine.Assign(ctx, f.volA, cancelled.ID); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if _, err := f.engine.Cancel(ctx, f.elder, cancelled.ID, workflow.CancelInput{Reason: "family helped"}); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	tests := []struct {
		name   string
		actor  auth.Identity
		id     string
		status models.RequestStatus
	}{
		{"completed, other volunteer", f.volB, done.ID, models.StatusCompleted},
		{"completed, same volunteer", f.volA, done.ID, models.StatusCompleted},
		{"cancelled, other volunteer", f.volB, cancelled.ID, models.StatusCancelled},
		{"cancelled, same volunteer", f.volA, cancelled.ID, models.StatusCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.Assign(ctx, tt.actor, tt.id)
			wantKind(t, err, apperror.KindInvalidTransition)
			var ae *apperror.Error
			if !errors.As(err, &ae) || ae.Code != "invalid_transition" || ae.Details["current_status"] != tt.status {
				t.Fatalf("error = %v", err)
			}
		})
	}

	// a held request still reports the conflict
	held := f.approved(t)
	if _, err := f.engine.Assign(ctx, f.volA, held.ID); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if _, err := f.engine.Start(ctx, f.volA, held.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	_, err := f.engine.Assign(ctx, f.volB, held.ID)
	if !errors.Is(err, apperror.ErrAlreadyAssigned) {
		t.Fatalf("assign on in-progress = %v, want AlreadyAssigned", err)
	}
}

func TestInconsistentRowIsInternal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.create(t)

	// a rating on a request that never completed
	if err := f.db.Model(&models.Request{}).Where("id = ?", r.ID).
		Update(store.ColRatingValue, 3).Error; err != nil {
		t.Fatalf("corrupt row: %v", err)
	}
	_, err := f.engine.Approve(ctx, f.admin, r.ID, workflow.ReviewInput{})
	wantKind(t, err, apperror.KindInternal)
}

func TestAccountLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.engine.Deactivate(ctx, f.volA, f.volB.UserID)
	wantKind(t, err, apperror.KindForbidden)
	_, err = f.engine.Deactivate(ctx, f.admin, f.admin.UserID)
	wantKind(t, err, apperror.KindValidation)

	u, err := f.engine.Deactivate(ctx, f.admin, f.volB.UserID)
	if err != nil || u.State != models.AccountDeactivated {
		t.Fatalf("Deactivate = %v, %v", u, err)
	}
	_, err = f.engine.Deactivate(ctx, f.admin, f.volB.UserID)
	wantKind(t, err, apperror.KindInvalidTransition)

	u, err = f.engine.Reactivate(ctx, f.admin, f.volB.UserID)
	if err != nil || u.State != models.AccountActive {
		t.Fatalf("Reactivate = %v, %v", u, err)
	}

	_, err = f.engine.DeleteAccount(ctx, f.volA, f.elder.UserID)
	wantKind(t, err, apperror.KindForbidden)
	if u, err = f.engine.DeleteAccount(ctx, f.admin, f.volB.UserID); err != nil || u.State != models.AccountDeleted {
		t.Fatalf("admin delete = %v, %v", u, err)
	}
	_, err = f.engine.Reactivate(ctx, f.admin, f.volB.UserID)
	wantKind(t, err, apperror.KindInvalidTransition)

	stats, err := f.engine.UserStats(ctx)
	if err != nil {
		t.Fatalf("UserStats: %v", err)
	}
	if stats[models.RoleVolunteer] != 1 || stats[models.RoleElderly] != 2 {
		t.Fatalf("user stats = %v", stats)
	}
}

func TestRankingsAndStats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for i := 0; i < 2; i++ {
		done := f.completed(t)
		if _, err := f.engine.Rate(ctx, f.elder, done.ID, workflow.RateInput{Rating: 5}); err != nil {
			t.Fatalf("Rate: %v", err)
		}
	}

	rankings, err := f.engine.Rankings(ctx, f.volB)
	if err != nil {
		t.Fatalf("Rankings: %v", err)
	}
	if len(rankings) != 1 || rankings[0].VolunteerID != f.volA.UserID || rankings[0].Score != 9 {
		t.Fatalf("rankings = %+v", rankings)
	}

	stats, err := f.engine.MyStats(ctx, f.volA)
	if err != nil {
		t.Fatalf("MyStats: %v", err)
	}
	if stats == nil {
		t.Fatalf("no stats for volunteer")
	}

	_, err = f.engine.Summary(ctx, f.elder)
	wantKind(t, err, apperror.KindForbidden)
	summary, err := f.engine.Summary(ctx, f.admin)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if summary.RequestsByStatus[models.StatusCompleted] != 2 {
		t.Fatalf("summary = %+v", summary)
	}
}
