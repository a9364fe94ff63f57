package models

import (
	"fmt"
	"time"
)

// Stage is a typed view of a Request: one variant per status, each carrying
// exactly the fields that exist in that status.
type Stage interface {
	Status() RequestStatus
	isStage()
}

type Approval struct {
	By    string
	At    time.Time
	Notes string
}

type Assignment struct {
	VolunteerID string
	Name        string
	AssignedAt  time.Time
}

type Rating struct {
	Value    int
	Feedback string
	RatedAt  time.Time
}

type PendingStage struct{}

type ApprovedStage struct {
	Approval Approval
}

type RejectedStage struct {
	By     string
	At     time.Time
	Reason string
	Notes  string
}

type AssignedStage struct {
	Approval   Approval
	Assignment Assignment
}

type InProgressStage struct {
	Approval   Approval
	Assignment Assignment
	StartedAt  time.Time
}

type CompletedStage struct {
	Approval    Approval
	Assignment  Assignment
	CompletedAt time.Time
	Rating      *Rating // nil until the requester rates
}

type CancelledStage struct {
	At     time.Time
	Reason string
	// Approval and Assignment keep whatever had been reached before cancelling.
	Approval   *Approval
	Assignment *Assignment
}

func (PendingStage) Status() RequestStatus    { return StatusPending }
func (ApprovedStage) Status() RequestStatus   { return StatusApproved }
func (RejectedStage) Status() RequestStatus   { return StatusRejected }
func (AssignedStage) Status() RequestStatus   { return StatusAssigned }
func (InProgressStage) Status() RequestStatus { return StatusInProgress }
func (CompletedStage) Status() RequestStatus  { return StatusCompleted }
func (CancelledStage) Status() RequestStatus  { return StatusCancelled }

func (PendingStage) isStage()    {}
func (ApprovedStage) isStage()   {}
func (RejectedStage) isStage()   {}
func (AssignedStage) isStage()   {}
func (InProgressStage) isStage() {}
func (CompletedStage) isStage()  {}
func (CancelledStage) isStage()  {}

// Stage builds the typed variant for r, failing when a section is present
// that the status does not allow, or missing one it requires.
func (r *Request) Stage() (Stage, error) {
	bad := func(what string) error {
		return fmt.Errorf("request %s in status %s: %s", r.ID, r.Status, what)
	}
	if r.Rating.present() && r.Status != StatusCompleted {
		return nil, bad("rating present")
	}
	if r.Cancellation.present() && r.Status != StatusCancelled {
		return nil, bad("cancellation present")
	}

	switch r.Status {
	case StatusPending:
		if r.Review.present() || r.Volunteer.present() {
			return nil, bad("review or volunteer present")
		}
		return PendingStage{}, nil

	case StatusApproved:
		if r.Volunteer.present() {
			return nil, bad("volunteer present")
		}
		a, ok := r.approval()
		if !ok {
			return nil, bad("approval missing")
		}
		return ApprovedStage{Approval: a}, nil

	case StatusRejected:
		rv := r.Review
		if rv.RejectedBy == nil || rv.RejectedAt == nil || rv.ApprovedBy != nil || r.Volunteer.present() {
			return nil, bad("rejection fields inconsistent")
		}
		return RejectedStage{By: *rv.RejectedBy, At: *rv.RejectedAt, Reason: rv.RejectionReason, Notes: rv.AdminNotes}, nil

	case StatusAssigned, StatusInProgress, StatusCompleted:
		a, ok := r.approval()
		if !ok {
			return nil, bad("approval missing")
		}
		as, ok := r.assignment()
		if !ok {
			return nil, bad("volunteer missing")
		}
		switch r.Status {
		case StatusAssigned:
			return AssignedStage{Approval: a, Assignment: as}, nil
		case StatusInProgress:
			if r.Volunteer.StartedAt == nil {
				return nil, bad("start time missing")
			}
			return InProgressStage{Approval: a, Assignment: as, StartedAt: *r.Volunteer.StartedAt}, nil
		}
		if r.CompletedAt == nil {
			return nil, bad("completion time missing")
		}
		cs := CompletedStage{Approval: a, Assignment: as, CompletedAt: *r.CompletedAt}
		if r.Rating.present() {
			rt := Rating{Value: *r.Rating.Value, Feedback: r.Rating.Feedback}
			if r.Rating.RatedAt != nil {
				rt.RatedAt = *r.Rating.RatedAt
			}
			cs.Rating = &rt
		}
		return cs, nil

	case StatusCancelled:
		if !r.Cancellation.present() {
			return nil, bad("cancellation missing")
		}
		cs := CancelledStage{At: *r.Cancellation.At, Reason: r.Cancellation.Reason}
		if a, ok := r.approval(); ok {
			cs.Approval = &a
		}
		if as, ok := r.assignment(); ok {
			cs.Assignment = &as
		}
		return cs, nil
	}
	return nil, bad("unknown status")
}

// CheckInvariants reports whether the populated sections match the status.
func (r *Request) CheckInvariants() error {
	_, err := r.Stage()
	return err
}

func (r *Request) approval() (Approval, bool) {
	rv := r.Review
	if rv.ApprovedBy == nil || rv.ApprovedAt == nil || rv.RejectedBy != nil {
		return Approval{}, false
	}
	return Approval{By: *rv.ApprovedBy, At: *rv.ApprovedAt, Notes: rv.AdminNotes}, true
}

func (r *Request) assignment() (Assignment, bool) {
	v := r.Volunteer
	if v.UserID == nil || v.AssignedAt == nil {
		return Assignment{}, false
	}
	return Assignment{VolunteerID: *v.UserID, Name: v.Name, AssignedAt: *v.AssignedAt}, true
}
