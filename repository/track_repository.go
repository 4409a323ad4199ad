package repository

import (
	"context"
	"errors"

	"DMPlayer/model"

	"gorm.io/gorm"
)

// TrackRepository 音轨数据访问接口
type TrackRepository interface {
	Create(ctx context.Context, track *model.Track) error
	GetByID(ctx context.Context, projectID, id string) (*model.Track, error)
	ListByProject(ctx context.Context, projectID string) ([]*model.Track, error)
	Delete(ctx context.Context, projectID, id string) error
}

type gormTrackRepository struct {
	db *gorm.DB
}

// NewGormTrackRepository 创建 GORM 音轨仓库
func NewGormTrackRepository(db *gorm.DB) TrackRepository {
	return &gormTrackRepository{db: db}
}

func (r *gormTrackRepository) Create(ctx context.Context, track *model.Track) error {
	return r.db.WithContext(ctx).Create(track).Error
}

func (r *gormTrackRepository) GetByID(ctx context.Context, projectID, id string) (*model.Track, error) {
	var track model.Track
	err := r.db.WithContext(ctx).
		Where("id = ? AND project_id = ?", id, projectID).
		First(&track).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &track, nil
}

func (r *gormTrackRepository) ListByProject(ctx context.Context, projectID string) ([]*model.Track, error) {
	var tracks []*model.Track
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&tracks).Error
	return tracks, err
}

func (r *gormTrackRepository) Delete(ctx context.Context, projectID, id string) error {
	return affected(r.db.WithContext(ctx).
		Where("id = ? AND project_id = ?", id, projectID).
		Delete(&model.Track{}))
}
