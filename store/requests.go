package store

import (
	"context"

	"heartbridge-api/models"
)

func (s *GormStore) CreateRequest(ctx context.Context, r *models.Request) error {
	return translate(s.conn(ctx).Create(r).Error)
}

func (s *GormStore) GetRequest(ctx context.Context, id string) (*models.Request, error) {
	var r models.Request
	if err := s.conn(ctx).First(&r, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &r, nil
}

func (s *GormStore) ConditionalUpdateRequest(ctx context.Context, id string, cond Condition, patch map[string]any) error {
	query := s.conn(ctx).Model(&models.Request{}).Where("id = ? AND status = ?", id, cond.Status)
	if cond.Unassigned {
		query = query.Where("volunteer_user_id IS NULL")
	}
	if cond.Unrated {
		query = query.Where("rating_value IS NULL")
	}
	res := query.Updates(patch)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

func (s *GormStore) ListRequests(ctx context.Context, f RequestFilter) ([]models.Request, error) {
	var requests []models.Request
	query := s.conn(ctx)
	if len(f.Statuses) > 0 {
		query = query.Where("status IN ?", f.Statuses)
	}
	if f.RequesterID != "" {
		query = query.Where("requester_user_id = ?", f.RequesterID)
	}
	if f.VolunteerID != "" {
		query = query.Where("volunteer_user_id = ?", f.VolunteerID)
	}
	if f.Type != "" {
		query = query.Where("type = ?", f.Type)
	}
	if f.Urgency != "" {
		query = query.Where("urgency = ?", f.Urgency)
	}
	if f.Unassigned {
		query = query.Where("volunteer_user_id IS NULL")
	}
	if err := query.Order("created_at desc").Order("id asc").Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

func (s *GormStore) AppendHistory(ctx context.Context, h *models.RequestStatusHistory) error {
	return s.conn(ctx).Create(h).Error
}

func (s *GormStore) ListHistory(ctx context.Context, requestID string) ([]models.RequestStatusHistory, error) {
	var history []models.RequestStatusHistory
	err := s.conn(ctx).Where("request_id = ?", requestID).Order("created_at asc").Order("id asc").Find(&history).Error
	return history, err
}
