package store

import (
	"context"
	"strings"

	"heartbridge-api/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func (s *GormStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.conn(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *GormStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.conn(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&u).Error
	if err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *GormStore) CreateUser(ctx context.Context, u *models.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	return translate(s.conn(ctx).Create(u).Error)
}

func (s *GormStore) UpdateUser(ctx context.Context, id string, patch map[string]any) error {
	res := s.conn(ctx).Model(&models.User{}).Where("id = ?", id).Updates(patch)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) ListUsers(ctx context.Context, f UserFilter) ([]models.User, error) {
	var users []models.User
	query := s.conn(ctx)
	if f.Role != "" {
		query = query.Where("role = ?", f.Role)
	}
	if f.State != "" {
		query = query.Where("state = ?", f.State)
	}
	if f.Skill != "" {
		query = query.Where(datatypes.JSONArrayQuery("volunteer_skills").Contains(string(f.Skill)))
	}
	if loc := strings.TrimSpace(f.Location); loc != "" {
		query = query.Where("LOWER(location) LIKE ?", "%"+strings.ToLower(loc)+"%")
	}
	if err := query.Order("created_at asc").Order("id asc").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (s *GormStore) IncrementCompletedRequests(ctx context.Context, volunteerID string) error {
	res := s.conn(ctx).Model(&models.User{}).
		Where("id = ? AND role = ?", volunteerID, models.RoleVolunteer).
		Update("volunteer_completed_requests", gorm.Expr("volunteer_completed_requests + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) RefreshVolunteerRating(ctx context.Context, volunteerID string) error {
	var row struct {
		Avg *float64
	}
	err := s.conn(ctx).Model(&models.Request{}).
		Select("AVG(rating_value * 1.0) AS avg").
		Where("volunteer_user_id = ? AND rating_value IS NOT NULL", volunteerID).
		Scan(&row).Error
	if err != nil {
		return err
	}
	rating := 0.0
	if row.Avg != nil {
		rating = *row.Avg
	}
	res := s.conn(ctx).Model(&models.User{}).Where("id = ?", volunteerID).Update("volunteer_rating", rating)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
