package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RequestStatus represents all possible states of an assistance request
type RequestStatus string

const (
	StatusPending    RequestStatus = "pending"
	StatusApproved   RequestStatus = "approved"
	StatusAssigned   RequestStatus = "assigned"
	StatusInProgress RequestStatus = "in-progress"
	StatusCompleted  RequestStatus = "completed"
	StatusRejected   RequestStatus = "rejected"
	StatusCancelled  RequestStatus = "cancelled"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []RequestStatus{
	StatusPending, StatusApproved, StatusAssigned, StatusInProgress,
	StatusCompleted, StatusRejected, StatusCancelled,
}

func (s RequestStatus) Valid() bool {
	for _, v := range AllStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Terminal reports whether no further status change is possible.
func (s RequestStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusRejected || s == StatusCancelled
}

type RequestType string

const (
	TypeShopping       RequestType = "shopping"
	TypeMedicine       RequestType = "medicine"
	TypeDailyTasks     RequestType = "daily-tasks"
	TypeTransportation RequestType = "transportation"
	TypeCompanionship  RequestType = "companionship"
)

var AllRequestTypes = []RequestType{
	TypeShopping, TypeMedicine, TypeDailyTasks, TypeTransportation, TypeCompanionship,
}

type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// RequesterInfo is a snapshot of the requester taken at creation time.
type RequesterInfo struct {
	UserID   string `json:"user_id" gorm:"size:36;not null;index"`
	Name     string `json:"name" gorm:"size:100;not null"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Location string `json:"location" gorm:"size:200"`
	Age      int    `json:"age"`
}

// AdminReview is populated once an admin approves or rejects the request.
type AdminReview struct {
	ApprovedBy      *string    `json:"approved_by,omitempty" gorm:"size:36"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	RejectedBy      *string    `json:"rejected_by,omitempty" gorm:"size:36"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty" gorm:"size:500"`
	AdminNotes      string     `json:"admin_notes,omitempty" gorm:"size:1000"`
}

func (r AdminReview) present() bool {
	return r.ApprovedBy != nil || r.RejectedBy != nil
}

// VolunteerAssignment is populated from the moment a volunteer accepts the request.
type VolunteerAssignment struct {
	UserID      *string    `json:"user_id,omitempty" gorm:"size:36;index"`
	Name        string     `json:"name,omitempty" gorm:"size:100"`
	Email       string     `json:"email,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	AssignedAt  *time.Time `json:"assigned_at,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (v VolunteerAssignment) present() bool { return v.UserID != nil }

// RatingInfo is the requester's one-time feedback on a completed request.
type RatingInfo struct {
	Value    *int       `json:"value,omitempty"`
	Feedback string     `json:"feedback,omitempty" gorm:"size:500"`
	RatedAt  *time.Time `json:"rated_at,omitempty"`
}

func (r RatingInfo) present() bool { return r.Value != nil }

type Cancellation struct {
	At     *time.Time `json:"cancelled_at,omitempty"`
	Reason string     `json:"reason,omitempty" gorm:"size:500"`
}

func (c Cancellation) present() bool { return c.At != nil }

type Request struct {
	ID           string              `json:"id" gorm:"primaryKey;size:36"`
	Requester    RequesterInfo       `json:"requester" gorm:"embedded;embeddedPrefix:requester_"`
	Type         RequestType         `json:"type" gorm:"size:32;not null;index:idx_type_urgency"`
	Description  string              `json:"description" gorm:"size:1000;not null"`
	Urgency      Urgency             `json:"urgency" gorm:"size:16;not null;default:'medium';index:idx_type_urgency"`
	Notes        string              `json:"notes,omitempty" gorm:"size:500"`
	Status       RequestStatus       `json:"status" gorm:"size:16;not null;default:'pending';index"`
	Review       AdminReview         `json:"admin_approval" gorm:"embedded;embeddedPrefix:review_"`
	Volunteer    VolunteerAssignment `json:"volunteer" gorm:"embedded;embeddedPrefix:volunteer_"`
	Rating       RatingInfo          `json:"rating" gorm:"embedded;embeddedPrefix:rating_"`
	Cancellation Cancellation        `json:"cancellation" gorm:"embedded;embeddedPrefix:cancellation_"`
	CreatedAt    time.Time           `json:"date_created" gorm:"index"`
	UpdatedAt    time.Time           `json:"date_modified"`
	CompletedAt  *time.Time          `json:"date_completed,omitempty"`
}

// BeforeCreate assigns a UUID when the caller did not.
func (r *Request) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// MarshalJSON omits the sections that are not populated for the current status.
func (r Request) MarshalJSON() ([]byte, error) {
	type out struct {
		ID            string               `json:"id"`
		Requester     RequesterInfo        `json:"requester"`
		Type          RequestType          `json:"type"`
		Description   string               `json:"description"`
		Urgency       Urgency              `json:"urgency"`
		Notes         string               `json:"notes,omitempty"`
		Status        RequestStatus        `json:"status"`
		Review        *AdminReview         `json:"admin_approval,omitempty"`
		Volunteer     *VolunteerAssignment `json:"volunteer,omitempty"`
		Rating        *RatingInfo          `json:"rating,omitempty"`
		Cancellation  *Cancellation        `json:"cancellation,omitempty"`
		DateCreated   time.Time            `json:"date_created"`
		DateModified  time.Time            `json:"date_modified"`
		DateCompleted *time.Time           `json:"date_completed,omitempty"`
	}
	o := out{
		ID:            r.ID,
		Requester:     r.Requester,
		Type:          r.Type,
		Description:   r.Description,
		Urgency:       r.Urgency,
		Notes:         r.Notes,
		Status:        r.Status,
		DateCreated:   r.CreatedAt,
		DateModified:  r.UpdatedAt,
		DateCompleted: r.CompletedAt,
	}
	if r.Review.present() {
		o.Review = &r.Review
	}
	if r.Volunteer.present() {
		o.Volunteer = &r.Volunteer
	}
	if r.Rating.present() {
		o.Rating = &r.Rating
	}
	if r.Cancellation.present() {
		o.Cancellation = &r.Cancellation
	}
	return json.Marshal(o)
}

// IsRequester reports whether userID created the request.
func (r *Request) IsRequester(userID string) bool {
	return r.Requester.UserID == userID
}

// IsAssignedTo reports whether userID is the bound volunteer.
func (r *Request) IsAssignedTo(userID string) bool {
	return r.Volunteer.UserID != nil && *r.Volunteer.UserID == userID
}

// RequestStatusHistory records every status change for auditing.
type RequestStatusHistory struct {
	ID         uint          `json:"id" gorm:"primaryKey"`
	RequestID  string        `json:"request_id" gorm:"size:36;not null;index"`
	FromStatus RequestStatus `json:"from_status"`
	ToStatus   RequestStatus `json:"to_status" gorm:"not null"`
	Operation  string        `json:"operation" gorm:"size:16"`
	ChangedBy  string        `json:"changed_by" gorm:"size:36"` // user ID, or "system"
	Note       string        `json:"note"`
	CreatedAt  time.Time     `json:"created_at"`
}
