package repository

import (
	"context"
	"errors"

	"DMPlayer/model"

	"gorm.io/gorm"
)

// CueRepository 提示点数据访问接口，列表总是按时间升序
type CueRepository interface {
	Create(ctx context.Context, cue *model.CuePoint) error
	GetByID(ctx context.Context, projectID, id string) (*model.CuePoint, error)
	ListByProject(ctx context.Context, projectID string) ([]*model.CuePoint, error)
	UpdateTime(ctx context.Context, projectID, id string, seconds float64) error
	Delete(ctx context.Context, projectID, id string) error
}

type gormCueRepository struct {
	db *gorm.DB
}

// NewGormCueRepository 创建 GORM 提示点仓库
func NewGormCueRepository(db *gorm.DB) CueRepository {
	return &gormCueRepository{db: db}
}

func (r *gormCueRepository) Create(ctx context.Context, cue *model.CuePoint) error {
	return r.db.WithContext(ctx).Create(cue).Error
}

func (r *gormCueRepository) GetByID(ctx context.Context, projectID, id string) (*model.CuePoint, error) {
	var cue model.CuePoint
	err := r.db.WithContext(ctx).
		Where("id = ? AND project_id = ?", id, projectID).
		First(&cue).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cue, nil
}

func (r *gormCueRepository) ListByProject(ctx context.Context, projectID string) ([]*model.CuePoint, error) {
	var cues []*model.CuePoint
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("time ASC").
		Find(&cues).Error
	return cues, err
}

func (r *gormCueRepository) UpdateTime(ctx context.Context, projectID, id string, seconds float64) error {
	return affected(r.db.WithContext(ctx).Model(&model.CuePoint{}).
		Where("id = ? AND project_id = ?", id, projectID).
		Update("time", seconds))
}

func (r *gormCueRepository) Delete(ctx context.Context, projectID, id string) error {
	return affected(r.db.WithContext(ctx).
		Where("id = ? AND project_id = ?", id, projectID).
		Delete(&model.CuePoint{}))
}
