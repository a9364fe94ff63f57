package ranking

import (
	"time"

	"heartbridge-api/models"
)

// RequesterStats summarizes one elderly user's requests.
type RequesterStats struct {
	Total     int                          `json:"total"`
	ByStatus  map[models.RequestStatus]int `json:"by_status"`
	Active    int                          `json:"active"`
	Completed int                          `json:"completed"`
	Rated     int                          `json:"rated"`
}

// ComputeRequesterStats counts requests per status. Active covers every
// non-terminal status.
func ComputeRequesterStats(requests []models.Request) RequesterStats {
	s := RequesterStats{ByStatus: statusCounts(requests)}
	for i := range requests {
		r := &requests[i]
		s.Total++
		if !r.Status.Terminal() {
			s.Active++
		}
		if r.Status == models.StatusCompleted {
			s.Completed++
			if r.Rating.Value != nil {
				s.Rated++
			}
		}
	}
	return s
}

type VolunteerStats struct {
	Completed          int                        `json:"completed"`
	Active             int                        `json:"active"`
	CompletedThisMonth int                        `json:"completed_this_month"`
	AverageRating      float64                    `json:"average_rating"`
	ByType             map[models.RequestType]int `json:"by_type"`
	Badge              Badge                      `json:"badge"`
	ImpactScore        int                        `json:"impact_score"`
}

// ComputeVolunteerStats summarizes the requests bound to volunteerID as of now.
func ComputeVolunteerStats(requests []models.Request, volunteerID string, now time.Time) VolunteerStats {
	s := VolunteerStats{ByType: map[models.RequestType]int{}}
	var ratingSum, rated int
	for i := range requests {
		r := &requests[i]
		if !r.IsAssignedTo(volunteerID) {
			continue
		}
		switch r.Status {
		case models.StatusAssigned, models.StatusInProgress:
			s.Active++
		case models.StatusCompleted:
			s.Completed++
			s.ByType[r.Type]++
			if at := activityTime(r); at.Year() == now.Year() && at.Month() == now.Month() {
				s.CompletedThisMonth++
			}
			if r.Rating.Value != nil {
				ratingSum += *r.Rating.Value
				rated++
			}
		}
	}
	if rated > 0 {
		s.AverageRating = float64(ratingSum) / float64(rated)
	}
	s.Badge = BadgeFor(s.Completed)
	s.ImpactScore = s.Completed*10 + s.CompletedThisMonth*5
	return s
}

// Summary is the admin dashboard overview.
type Summary struct {
	TotalRequests     int                          `json:"total_requests"`
	RequestsByStatus  map[models.RequestStatus]int `json:"requests_by_status"`
	RequestsByUrgency map[models.Urgency]int       `json:"requests_by_urgency"`
	PendingReview     int                          `json:"pending_review"`
	ActiveUsersByRole map[models.UserRole]int      `json:"active_users_by_role"`
	DeactivatedUsers  int                          `json:"deactivated_users"`
	DeletedUsers      int                          `json:"deleted_users"`
	AverageRating     float64                      `json:"average_rating"`
}

func ComputeSummary(requests []models.Request, users []models.User) Summary {
	s := Summary{
		TotalRequests:     len(requests),
		RequestsByStatus:  statusCounts(requests),
		RequestsByUrgency: map[models.Urgency]int{},
		ActiveUsersByRole: RoleCounts(users),
	}
	var ratingSum, rated int
	for i := range requests {
		r := &requests[i]
		s.RequestsByUrgency[r.Urgency]++
		if r.Rating.Value != nil {
			ratingSum += *r.Rating.Value
			rated++
		}
	}
	s.PendingReview = s.RequestsByStatus[models.StatusPending]
	if rated > 0 {
		s.AverageRating = float64(ratingSum) / float64(rated)
	}
	for i := range users {
		switch users[i].State {
		case models.AccountDeactivated:
			s.DeactivatedUsers++
		case models.AccountDeleted:
			s.DeletedUsers++
		}
	}
	return s
}

// RoleCounts counts active accounts per role. Every stored role is present, possibly zero.
func RoleCounts(users []models.User) map[models.UserRole]int {
	counts := map[models.UserRole]int{
		models.RoleElderly:   0,
		models.RoleVolunteer: 0,
		models.RoleAdmin:     0,
	}
	for i := range users {
		if users[i].Active() {
			counts[users[i].Role]++
		}
	}
	return counts
}

func statusCounts(requests []models.Request) map[models.RequestStatus]int {
	counts := make(map[models.RequestStatus]int, len(models.AllStatuses))
	for _, st := range models.AllStatuses {
		counts[st] = 0
	}
	for i := range requests {
		counts[requests[i].Status]++
	}
	return counts
}
