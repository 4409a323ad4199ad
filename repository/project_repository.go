package repository

import (
	"context"
	"errors"

	"DMPlayer/model"

	"gorm.io/gorm"
)

// ProjectRepository 项目数据访问接口
type ProjectRepository interface {
	Create(ctx context.Context, project *model.Project) error
	GetByID(ctx context.Context, id string) (*model.Project, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]*model.Project, error)
	ListPublic(ctx context.Context) ([]*model.Project, error)
	Update(ctx context.Context, project *model.Project) error
	// Delete 删除项目及其音轨、提示点
	Delete(ctx context.Context, id string) error
	// GetDetail 获取项目详情，提示点按时间升序
	GetDetail(ctx context.Context, id string) (*model.ProjectDetail, error)
}

type gormProjectRepository struct {
	db *gorm.DB
}

// NewGormProjectRepository 创建 GORM 项目仓库
func NewGormProjectRepository(db *gorm.DB) ProjectRepository {
	return &gormProjectRepository{db: db}
}

func (r *gormProjectRepository) Create(ctx context.Context, project *model.Project) error {
	return r.db.WithContext(ctx).Create(project).Error
}

func (r *gormProjectRepository) GetByID(ctx context.Context, id string) (*model.Project, error) {
	var project model.Project
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&project).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &project, nil
}

func (r *gormProjectRepository) ListByOwner(ctx context.Context, ownerID int64) ([]*model.Project, error) {
	var projects []*model.Project
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&projects).Error
	return projects, err
}

func (r *gormProjectRepository) ListPublic(ctx context.Context) ([]*model.Project, error) {
	var projects []*model.Project
	err := r.db.WithContext(ctx).
		Where("public = ?", true).
		Order("created_at DESC").
		Find(&projects).Error
	return projects, err
}

// Update 只更新名称和公开状态
func (r *gormProjectRepository) Update(ctx context.Context, project *model.Project) error {
	tx := r.db.WithContext(ctx).Model(&model.Project{}).
		Where("id = ?", project.ID).
		Updates(map[string]interface{}{"name": project.Name, "public": project.Public})
	return affected(tx)
}

func (r *gormProjectRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", id).Delete(&model.CuePoint{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", id).Delete(&model.Track{}).Error; err != nil {
			return err
		}
		return affected(tx.Where("id = ?", id).Delete(&model.Project{}))
	})
}

func (r *gormProjectRepository) GetDetail(ctx context.Context, id string) (*model.ProjectDetail, error) {
	project, err := r.GetByID(ctx, id)
	if err != nil || project == nil {
		return nil, err
	}

	detail := &model.ProjectDetail{Project: *project, Tracks: []model.Track{}, CuePoints: []model.CuePoint{}}
	db := r.db.WithContext(ctx)
	if err := db.Where("project_id = ?", id).Order("created_at ASC").Find(&detail.Tracks).Error; err != nil {
		return nil, err
	}
	if err := db.Where("project_id = ?", id).Order("time ASC").Find(&detail.CuePoints).Error; err != nil {
		return nil, err
	}
	var owner model.User
	if err := db.Select("artist_name").First(&owner, project.OwnerID).Error; err == nil {
		detail.Owner = owner.ArtistName
	}
	return detail, nil
}
