package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// UserRole defines allowed roles in the system
type UserRole string

const (
	RoleElderly   UserRole = "elderly"
	RoleVolunteer UserRole = "volunteer"
	RoleAdmin     UserRole = "admin"
	// RoleSystem is never issued in a token; it drives cascade cancellations.
	RoleSystem UserRole = "system"
)

// Valid reports whether r is a role a stored account may hold.
func (r UserRole) Valid() bool {
	switch r {
	case RoleElderly, RoleVolunteer, RoleAdmin:
		return true
	}
	return false
}

// VolunteerProfile holds volunteer-only data, stored inline on the users table.
type VolunteerProfile struct {
	Skills            datatypes.JSONSlice[RequestType] `json:"skills"`
	AvailabilityDays  datatypes.JSONSlice[string]      `json:"availability_days"`
	TimeSlots         datatypes.JSONSlice[string]      `json:"time_slots"`
	MaxDistance       int                              `json:"max_distance" gorm:"default:10"`
	CompletedRequests int                              `json:"completed_requests" gorm:"not null;default:0"`
	Rating            float64                          `json:"rating" gorm:"not null;default:0"`
	Verified          bool                             `json:"verified" gorm:"default:false"`
}

// EmergencyContact is the elderly-only contact person.
type EmergencyContact struct {
	Name         string `json:"name" validate:"max=100"`
	Phone        string `json:"phone" validate:"omitempty,phone"`
	Relationship string `json:"relationship" validate:"max=50"`
}

type User struct {
	ID               string           `json:"id" gorm:"primaryKey;size:36"`
	Name             string           `json:"name" gorm:"size:100;not null"`
	Email            string           `json:"email" gorm:"uniqueIndex;size:191;not null"`
	PasswordHash     string           `json:"-" gorm:"not null"`
	Role             UserRole         `json:"role" gorm:"size:16;not null;index"`
	Phone            string           `json:"phone"`
	Location         string           `json:"location" gorm:"size:200"`
	Age              int              `json:"age,omitempty"`
	Bio              string           `json:"bio,omitempty" gorm:"size:500"`
	Volunteer        VolunteerProfile `json:"volunteer_info" gorm:"embedded;embeddedPrefix:volunteer_"`
	EmergencyContact EmergencyContact `json:"emergency_contact" gorm:"embedded;embeddedPrefix:emergency_"`
	State            AccountState     `json:"account_state" gorm:"size:16;not null;default:'active';index"`
	LastLoginAt      *time.Time       `json:"last_login_at,omitempty"`
	DeletedAt        *time.Time       `json:"deleted_at,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// BeforeCreate assigns a UUID and defaults the lifecycle state.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.State == "" {
		u.State = AccountActive
	}
	return nil
}

// Active reports whether the account may authenticate and act.
func (u *User) Active() bool { return u.State == AccountActive }
