package repository

import (
	"context"

	"testbank_backend/internal/model"

	"gorm.io/gorm"
)

type LessonRepository struct {
	DB *gorm.DB
}

func NewLessonRepository(db *gorm.DB) *LessonRepository {
	return &LessonRepository{DB: db}
}

func (r *LessonRepository) FindByID(ctx context.Context, id uint) (*model.Lesson, error) {
	var l model.Lesson
	if err := r.DB.WithContext(ctx).First(&l, id).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

// ListByLevel levelID 为 0 时返回全部课程
func (r *LessonRepository) ListByLevel(ctx context.Context, levelID uint) ([]model.Lesson, error) {
	var lessons []model.Lesson
	query := r.DB.WithContext(ctx).Model(&model.Lesson{})
	if levelID > 0 {
		query = query.Where("level_id = ?", levelID)
	}
	err := query.Order("name asc").Find(&lessons).Error
	return lessons, err
}

func (r *LessonRepository) ListTopics(ctx context.Context, lessonID uint) ([]model.Topic, error) {
	var topics []model.Topic
	err := r.DB.WithContext(ctx).Where("lesson_id = ?", lessonID).Order("name asc").Find(&topics).Error
	return topics, err
}

func (r *LessonRepository) ListDifficulties(ctx context.Context) ([]model.Difficulty, error) {
	var ds []model.Difficulty
	err := r.DB.WithContext(ctx).Order("sort_order asc").Find(&ds).Error
	return ds, err
}

// FindTopics 按 ID 加载主题，包含已软删除的主题
func (r *LessonRepository) FindTopics(ctx context.Context, ids []uint) ([]model.Topic, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var topics []model.Topic
	err := r.DB.WithContext(ctx).Unscoped().Where("id IN ?", ids).Find(&topics).Error
	return topics, err
}
