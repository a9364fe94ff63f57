package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"heartbridge-api/models"
	"heartbridge-api/store"
	"heartbridge-api/store/storetest"

	"go.uber.org/goleak"
	"gorm.io/datatypes"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newRequest(t *testing.T, s store.Store, requester *models.User, status models.RequestStatus) *models.Request {
	t.Helper()
	r := &models.Request{
		Requester:   models.RequesterInfo{UserID: requester.ID, Name: requester.Name},
		Type:        models.TypeShopping,
		Description: "weekly groceries",
		Urgency:     models.UrgencyMedium,
		Status:      status,
	}
	if err := s.CreateRequest(context.Background(), r); err != nil {
		t.Fatalf("create request: %v", err)
	}
	return r
}

func TestConditionalUpdateRequest(t *testing.T) {
	ctx := context.Background()
	s, _ := storetest.New(t)
	elder := storetest.SeedUser(t, s, "Edna", models.RoleElderly)
	req := newRequest(t, s, elder, models.StatusPending)

	err := s.ConditionalUpdateRequest(ctx, req.ID, store.Condition{Status: models.StatusApproved},
		map[string]any{store.ColStatus: models.StatusAssigned})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict on status mismatch, got %v", err)
	}

	now := time.Now()
	err = s.ConditionalUpdateRequest(ctx, req.ID, store.Condition{Status: models.StatusPending},
		map[string]any{store.ColStatus: models.StatusApproved, store.ColApprovedBy: "admin", store.ColApprovedAt: now})
	if err != nil {
		t.Fatalf("conditional update: %v", err)
	}
	got, err := s.GetRequest(ctx, req.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.StatusApproved || got.Review.ApprovedBy == nil || *got.Review.ApprovedBy != "admin" {
		t.Fatalf("unexpected request after update: %+v", got)
	}
}

func TestConditionalUpdateUnassignedGuard(t *testing.T) {
	ctx := context.Background()
	s, _ := storetest.New(t)
	elder := storetest.SeedUser(t, s, "Edna", models.RoleElderly)
	req := newRequest(t, s, elder, models.StatusApproved)

	assign := func(volunteer string) error {
		return s.ConditionalUpdateRequest(ctx, req.ID,
			store.Condition{Status: models.StatusApproved, Unassigned: true},
			map[string]any{store.ColVolunteerID: volunteer, store.ColVolunteerAssigned: time.Now()})
	}
	if err := assign("v1"); err != nil {
		t.Fatalf("first assign: %v", err)
	}
	if err := assign("v2"); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("second assign should conflict, got %v", err)
	}
	got, _ := s.GetRequest(ctx, req.ID)
	if got.Volunteer.UserID == nil || *got.Volunteer.UserID != "v1" {
		t.Fatalf("volunteer overwritten: %+v", got.Volunteer)
	}
}

func TestGetMissing(t *testing.T) {
	s, _ := storetest.New(t)
	if _, err := s.GetRequest(context.Background(), "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetUser(context.Background(), "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	s, _ := storetest.New(t)
	u := &models.User{Name: "A", Email: "Same@Example.com", PasswordHash: "x", Role: models.RoleElderly}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("create: %v", err)
	}
	dup := &models.User{Name: "B", Email: "same@example.com", PasswordHash: "x", Role: models.RoleVolunteer}
	if err := s.CreateUser(ctx, dup); err == nil {
		t.Fatalf("expected duplicate email to fail")
	}
	found, err := s.FindUserByEmail(ctx, " SAME@example.com ")
	if err != nil || found.ID != u.ID {
		t.Fatalf("FindUserByEmail = %v, %v", found, err)
	}
}

func TestVolunteerCounters(t *testing.T) {
	ctx := context.Background()
	s, _ := storetest.New(t)
	elder := storetest.SeedUser(t, s, "Edna", models.RoleElderly)
	vol := storetest.SeedUser(t, s, "Val", models.RoleVolunteer)

	for i := 0; i < 2; i++ {
		if err := s.IncrementCompletedRequests(ctx, vol.ID); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}
	if err := s.IncrementCompletedRequests(ctx, elder.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("increment on non-volunteer should be ErrNotFound, got %v", err)
	}

	for _, rating := range []int{4, 5} {
		r := newRequest(t, s, elder, models.StatusCompleted)
		err := s.ConditionalUpdateRequest(ctx, r.ID, store.Condition{Status: models.StatusCompleted, Unrated: true},
			map[string]any{store.ColVolunteerID: vol.ID, store.ColRatingValue: rating})
		if err != nil {
			t.Fatalf("rate: %v", err)
		}
	}
	if err := s.RefreshVolunteerRating(ctx, vol.ID); err != nil {
		t.Fatalf("refresh rating: %v", err)
	}

	got, _ := s.GetUser(ctx, vol.ID)
	if got.Volunteer.CompletedRequests != 2 {
		t.Fatalf("completed_requests = %d, want 2", got.Volunteer.CompletedRequests)
	}
	if got.Volunteer.Rating != 4.5 {
		t.Fatalf("rating = %v, want 4.5", got.Volunteer.Rating)
	}
}

func TestAtomicRollsBack(t *testing.T) {
	ctx := context.Background()
	s, _ := storetest.New(t)
	elder := storetest.SeedUser(t, s, "Edna", models.RoleElderly)
	req := newRequest(t, s, elder, models.StatusPending)

	boom := errors.New("boom")
	err := s.Atomic(ctx, func(tx store.Store) error {
		if err := tx.ConditionalUpdateRequest(ctx, req.ID, store.Condition{Status: models.StatusPending},
			map[string]any{store.ColStatus: models.StatusCancelled}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	got, _ := s.GetRequest(ctx, req.ID)
	if got.Status != models.StatusPending {
		t.Fatalf("status = %s after rollback, want pending", got.Status)
	}
}

func TestListRequestsFilters(t *testing.T) {
	ctx := context.Background()
	s, _ := storetest.New(t)
	a := storetest.SeedUser(t, s, "A", models.RoleElderly)
	b := storetest.SeedUser(t, s, "B", models.RoleElderly)
	newRequest(t, s, a, models.StatusPending)
	newRequest(t, s, a, models.StatusApproved)
	newRequest(t, s, b, models.StatusApproved)

	mine, err := s.ListRequests(ctx, store.RequestFilter{RequesterID: a.ID})
	if err != nil || len(mine) != 2 {
		t.Fatalf("requester filter = %d, %v", len(mine), err)
	}
	open, _ := s.ListRequests(ctx, store.RequestFilter{Statuses: []models.RequestStatus{models.StatusApproved}, Unassigned: true})
	if len(open) != 2 {
		t.Fatalf("approved+unassigned = %d, want 2", len(open))
	}
}

func TestHistory(t *testing.T) {
	ctx := context.Background()
	s, _ := storetest.New(t)
	for _, to := range []models.RequestStatus{models.StatusPending, models.StatusApproved} {
		if err := s.AppendHistory(ctx, &models.RequestStatusHistory{RequestID: "r1", ToStatus: to}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	h, err := s.ListHistory(ctx, "r1")
	if err != nil || len(h) != 2 || h[1].ToStatus != models.StatusApproved {
		t.Fatalf("history = %+v, %v", h, err)
	}
}

func TestListUsersVolunteerSearch(t *testing.T) {
	ctx := context.Background()
	s, _ := storetest.New(t)
	profile := func(u *models.User, location string, skills ...models.RequestType) {
		t.Helper()
		err := s.UpdateUser(ctx, u.ID, map[string]any{
			"location":         location,
			"volunteer_skills": datatypes.NewJSONSlice(skills),
		})
		if err != nil {
			t.Fatalf("update %s: %v", u.Name, err)
		}
	}
	shopper := storetest.SeedUser(t, s, "Val", models.RoleVolunteer)
	profile(shopper, "North Springfield", models.TypeShopping, models.TypeMedicine)
	driver := storetest.SeedUser(t, s, "Vic", models.RoleVolunteer)
	profile(driver, "Shelbyville", models.TypeTransportation)
	idle := storetest.SeedUser(t, s, "Viv", models.RoleVolunteer)
	profile(idle, "Springfield")
	storetest.SeedUser(t, s, "Edna", models.RoleElderly)

	tests := []struct {
		name string
		f    store.UserFilter
		want []string
	}{
		{"skill", store.UserFilter{Role: models.RoleVolunteer, Skill: models.TypeMedicine}, []string{shopper.ID}},
		{"other skill", store.UserFilter{Role: models.RoleVolunteer, Skill: models.TypeTransportation}, []string{driver.ID}},
		{"nobody", store.UserFilter{Role: models.RoleVolunteer, Skill: models.TypeCompanionship}, nil},
		{"location ignores case", store.UserFilter{Role: models.RoleVolunteer, Location: "springFIELD"}, []string{shopper.ID, idle.ID}},
		{"skill and location", store.UserFilter{Role: models.RoleVolunteer, Skill: models.TypeShopping, Location: "shelby"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users, err := s.ListUsers(ctx, tt.f)
			if err != nil {
				t.Fatalf("ListUsers: %v", err)
			}
			if len(users) != len(tt.want) {
				t.Fatalf("got %d users, want %d", len(users), len(tt.want))
			}
			found := map[string]bool{}
			for _, u := range users {
				found[u.ID] = true
			}
			for _, id := range tt.want {
				if !found[id] {
					t.Fatalf("user %s missing from %+v", id, users)
				}
			}
		})
	}
}
