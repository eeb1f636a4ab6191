package history

import (
	"errors"

	"gorm.io/gorm"
)

// Repository Run 数据访问层
type Repository struct {
	db *gorm.DB
}

// NewRepository 创建 Repository 并迁移表结构
func NewRepository(db *gorm.DB) (*Repository, error) {
	if err := db.AutoMigrate(&Run{}); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

// Create 保存执行记录
func (r *Repository) Create(run *Run) error {
	return r.db.Create(run).Error
}

// GetByRunID 根据 run ID 获取记录
func (r *Repository) GetByRunID(runID string) (*Run, error) {
	var run Run
	err := r.db.Where("run_id = ?", runID).First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return &run, nil
}

// List 按时间倒序列出记录
func (r *Repository) List(status *RunStatus, limit, offset int) ([]Run, error) {
	var runs []Run
	query := r.db.Model(&Run{})

	if status != nil {
		query = query.Where("status = ?", *status)
	}

	if limit > 0 {
		query = query.Limit(limit)
	}

	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Order("id DESC").Find(&runs).Error
	return runs, err
}

// Count 统计记录数量
func (r *Repository) Count(status *RunStatus) (int64, error) {
	var count int64
	query := r.db.Model(&Run{})
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	err := query.Count(&count).Error
	return count, err
}

// DeleteByRunID 删除记录
func (r *Repository) DeleteByRunID(runID string) error {
	result := r.db.Where("run_id = ?", runID).Delete(&Run{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRunNotFound
	}
	return nil
}

// 错误定义
var (
	ErrRunNotFound = errors.New("run not found")
)
