package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"heartbridge-api/apperror"
	"heartbridge-api/models"
	"heartbridge-api/store"
	"heartbridge-api/validation"

	"gorm.io/datatypes"
)

type RegisterInput struct {
	Name     string          `json:"name" validate:"required,max=100"`
	Email    string          `json:"email" validate:"required,email"`
	Password string          `json:"password" validate:"required,strongpassword"`
	Role     models.UserRole `json:"role" validate:"required,oneof=elderly volunteer"`
	Phone    string          `json:"phone" validate:"omitempty,phone"`
	Location string          `json:"location" validate:"max=200"`
	Age      int             `json:"age" validate:"omitempty,min=1,max=120"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ChangePasswordInput struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,strongpassword"`
}

// VolunteerProfileInput carries the volunteer-only profile fields.
type VolunteerProfileInput struct {
	Skills           []models.RequestType `json:"skills" validate:"omitempty,dive,oneof=shopping medicine daily-tasks transportation companionship"`
	AvailabilityDays []string             `json:"availability_days" validate:"omitempty,dive,oneof=monday tuesday wednesday thursday friday saturday sunday"`
	TimeSlots        []string             `json:"time_slots" validate:"omitempty,dive,oneof=morning afternoon evening anytime"`
	MaxDistance      *int                 `json:"max_distance" validate:"omitempty,min=1,max=500"`
}

// ProfileInput is a partial profile update; nil fields are left unchanged.
type ProfileInput struct {
	Name             *string                  `json:"name" validate:"omitempty,min=1,max=100"`
	Phone            *string                  `json:"phone" validate:"omitempty,phone"`
	Location         *string                  `json:"location" validate:"omitempty,max=200"`
	Age              *int                     `json:"age" validate:"omitempty,min=1,max=120"`
	Bio              *string                  `json:"bio" validate:"omitempty,max=500"`
	Volunteer        *VolunteerProfileInput   `json:"volunteer_info"`
	EmergencyContact *models.EmergencyContact `json:"emergency_contact"`
}

// Service manages accounts: registration, login and profile maintenance.
type Service struct {
	accounts store.AccountStore
	tokens   *TokenIssuer
	log      *slog.Logger
	now      func() time.Time
}

func NewService(accounts store.AccountStore, tokens *TokenIssuer, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{accounts: accounts, tokens: tokens, log: log, now: time.Now}
}

// Register creates an elderly or volunteer account and returns it with a fresh token.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, string, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	if err := validation.Struct(in); err != nil {
		return nil, "", err
	}

	if _, err := s.accounts.FindUserByEmail(ctx, in.Email); err == nil {
		return nil, "", emailTaken()
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, "", apperror.Internal("failed to check email", err)
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, "", apperror.Internal("failed to hash password", err)
	}

	user := &models.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		Phone:        in.Phone,
		Location:     in.Location,
		Age:          in.Age,
	}
	if in.Role == models.RoleVolunteer {
		user.Volunteer.MaxDistance = 10
	}
	if err := s.accounts.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, "", emailTaken()
		}
		return nil, "", apperror.Internal("failed to create user", err)
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, "", apperror.Internal("failed to generate token", err)
	}
	s.log.InfoContext(ctx, "account registered", "user_id", user.ID, "role", user.Role)
	return user, token, nil
}

// Login checks credentials, records the login time and issues a token.
func (s *Service) Login(ctx context.Context, in LoginInput) (*models.User, string, error) {
	if err := validation.Struct(in); err != nil {
		return nil, "", err
	}
	user, err := s.accounts.FindUserByEmail(ctx, in.Email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, "", apperror.Unauthenticated("Invalid email or password")
	}
	if err != nil {
		return nil, "", apperror.Internal("failed to load account", err)
	}
	if !CheckPassword(user.PasswordHash, in.Password) {
		return nil, "", apperror.Unauthenticated("Invalid email or password")
	}
	if !user.Active() {
		return nil, "", apperror.Unauthenticated("Your account is " + string(user.State))
	}

	now := s.now()
	if err := s.accounts.UpdateUser(ctx, user.ID, map[string]any{"last_login_at": now}); err != nil {
		return nil, "", apperror.Internal("failed to record login", err)
	}
	user.LastLoginAt = &now

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, "", apperror.Internal("failed to generate token", err)
	}
	return user, token, nil
}

// Profile returns the caller's own account.
func (s *Service) Profile(ctx context.Context, id Identity) (*models.User, error) {
	user, err := s.accounts.GetUser(ctx, id.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperror.NotFound("User")
	}
	if err != nil {
		return nil, apperror.Internal("failed to load account", err)
	}
	return user, nil
}

func (s *Service) ChangePassword(ctx context.Context, id Identity, in ChangePasswordInput) error {
	if err := validation.Struct(in); err != nil {
		return err
	}
	user, err := s.Profile(ctx, id)
	if err != nil {
		return err
	}
	if !CheckPassword(user.PasswordHash, in.CurrentPassword) {
		return apperror.Validation("Current password is incorrect",
			map[string]string{"current_password": "is incorrect"})
	}
	hash, err := HashPassword(in.NewPassword)
	if err != nil {
		return apperror.Internal("failed to hash password", err)
	}
	if err := s.accounts.UpdateUser(ctx, user.ID, map[string]any{"password_hash": hash}); err != nil {
		return apperror.Internal("failed to update password", err)
	}
	s.log.InfoContext(ctx, "password changed", "user_id", user.ID)
	return nil
}

// UpdateProfile applies the non-nil fields of in. Volunteer fields are accepted only
// from volunteers and the emergency contact only from elderly users.
func (s *Service) UpdateProfile(ctx context.Context, id Identity, in ProfileInput) (*models.User, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	user, err := s.Profile(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Volunteer != nil && user.Role != models.RoleVolunteer {
		return nil, apperror.Validation("Validation failed",
			map[string]string{"volunteer_info": "is only available to volunteers"})
	}
	if in.EmergencyContact != nil && user.Role != models.RoleElderly {
		return nil, apperror.Validation("Validation failed",
			map[string]string{"emergency_contact": "is only available to elderly users"})
	}

	patch := map[string]any{}
	if in.Name != nil {
		patch["name"] = strings.TrimSpace(*in.Name)
	}
	if in.Phone != nil {
		patch["phone"] = *in.Phone
	}
	if in.Location != nil {
		patch["location"] = *in.Location
	}
	if in.Age != nil {
		patch["age"] = *in.Age
	}
	if in.Bio != nil {
		patch["bio"] = *in.Bio
	}
	if v := in.Volunteer; v != nil {
		if v.Skills != nil {
			patch["volunteer_skills"] = datatypes.NewJSONSlice(v.Skills)
		}
		if v.AvailabilityDays != nil {
			patch["volunteer_availability_days"] = datatypes.NewJSONSlice(v.AvailabilityDays)
		}
		if v.TimeSlots != nil {
			patch["volunteer_time_slots"] = datatypes.NewJSONSlice(v.TimeSlots)
		}
		if v.MaxDistance != nil {
			patch["volunteer_max_distance"] = *v.MaxDistance
		}
	}
	if ec := in.EmergencyContact; ec != nil {
		patch["emergency_name"] = ec.Name
		patch["emergency_phone"] = ec.Phone
		patch["emergency_relationship"] = ec.Relationship
	}
	if len(patch) == 0 {
		return user, nil
	}

	if err := s.accounts.UpdateUser(ctx, user.ID, patch); err != nil {
		return nil, apperror.Internal("failed to update profile", err)
	}
	return s.Profile(ctx, id)
}

// BootstrapAdmin creates the admin account if no account uses email yet.
// It reports whether an account was created.
func (s *Service) BootstrapAdmin(ctx context.Context, name, email, password string) (bool, error) {
	if email == "" {
		return false, nil
	}
	if _, err := s.accounts.FindUserByEmail(ctx, email); err == nil {
		return false, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return false, err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return false, err
	}
	admin := &models.User{Name: name, Email: email, PasswordHash: hash, Role: models.RoleAdmin}
	if err := s.accounts.CreateUser(ctx, admin); err != nil {
		return false, err
	}
	s.log.InfoContext(ctx, "admin account created", "user_id", admin.ID, "email", admin.Email)
	return true, nil
}

func emailTaken() error {
	return apperror.Conflict(apperror.ErrEmailTaken.Code, "An account with this email already exists")
}
