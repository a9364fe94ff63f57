// Package ranking derives the volunteer leaderboard and per-user statistics
// from stored requests. Every function is pure: it reads its input and
// returns new values without touching the stores.
package ranking

import (
	"sort"
	"time"

	"heartbridge-api/models"
)

// Weights are the coefficients of the composite leaderboard score.
type Weights struct {
	CompletedTask float64
	AverageRating float64
}

// DefaultWeights scores a volunteer as completed*2 + average rating.
var DefaultWeights = Weights{CompletedTask: 2, AverageRating: 1}

type Badge string

const (
	BadgeSuperHelper Badge = "super-helper"
	BadgeHelper      Badge = "helper"
	BadgeNewHelper   Badge = "new-helper"
)

// BadgeFor returns the badge earned by a volunteer with the given number of completed tasks.
func BadgeFor(completed int) Badge {
	switch {
	case completed >= 10:
		return BadgeSuperHelper
	case completed >= 5:
		return BadgeHelper
	case completed >= 1:
		return BadgeNewHelper
	}
	return ""
}

type VolunteerRanking struct {
	Rank           int                  `json:"rank"`
	VolunteerID    string               `json:"volunteer_id"`
	Name           string               `json:"name"`
	CompletedTasks int                  `json:"completed_tasks"`
	RatedTasks     int                  `json:"rated_tasks"`
	AverageRating  float64              `json:"average_rating"`
	Specialties    []models.RequestType `json:"specialties"`
	LastActivity   time.Time            `json:"last_activity"`
	Score          float64              `json:"score"`
	Badge          Badge                `json:"badge"`
}

type tally struct {
	ranking   VolunteerRanking
	ratingSum int
	types     map[models.RequestType]bool
}

// ComputeVolunteerRankings groups completed requests by their bound volunteer and
// orders the volunteers by score, then most recent activity, then volunteer ID.
// Requests that are not completed or carry no volunteer are ignored.
func ComputeVolunteerRankings(requests []models.Request, w Weights) []VolunteerRanking {
	byVolunteer := map[string]*tally{}
	for i := range requests {
		r := &requests[i]
		if r.Status != models.StatusCompleted || r.Volunteer.UserID == nil {
			continue
		}
		id := *r.Volunteer.UserID
		t, ok := byVolunteer[id]
		if !ok {
			t = &tally{
				ranking: VolunteerRanking{VolunteerID: id},
				types:   map[models.RequestType]bool{},
			}
			byVolunteer[id] = t
		}
		t.ranking.CompletedTasks++
		if r.Volunteer.Name != "" {
			t.ranking.Name = r.Volunteer.Name
		}
		if r.Rating.Value != nil {
			t.ratingSum += *r.Rating.Value
			t.ranking.RatedTasks++
		}
		t.types[r.Type] = true
		if at := activityTime(r); at.After(t.ranking.LastActivity) {
			t.ranking.LastActivity = at
		}
	}

	out := make([]VolunteerRanking, 0, len(byVolunteer))
	for _, t := range byVolunteer {
		v := t.ranking
		if v.RatedTasks > 0 {
			v.AverageRating = float64(t.ratingSum) / float64(v.RatedTasks)
		}
		v.Specialties = sortedTypes(t.types)
		v.Score = float64(v.CompletedTasks)*w.CompletedTask + v.AverageRating*w.AverageRating
		v.Badge = BadgeFor(v.CompletedTasks)
		out = append(out, v)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.LastActivity.Equal(b.LastActivity) {
			return a.LastActivity.After(b.LastActivity)
		}
		return a.VolunteerID < b.VolunteerID
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// Top returns at most n rankings; n <= 0 returns all of them.
func Top(rankings []VolunteerRanking, n int) []VolunteerRanking {
	if n <= 0 || n >= len(rankings) {
		return rankings
	}
	return rankings[:n]
}

func activityTime(r *models.Request) time.Time {
	switch {
	case r.Volunteer.CompletedAt != nil:
		return *r.Volunteer.CompletedAt
	case r.CompletedAt != nil:
		return *r.CompletedAt
	}
	return r.UpdatedAt
}

func sortedTypes(set map[models.RequestType]bool) []models.RequestType {
	types := make([]models.RequestType, 0, len(set))
	for t := range set {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
