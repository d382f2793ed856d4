package service

import (
	"context"
	"errors"

	"testbank_backend/internal/model"
	"testbank_backend/internal/repository"
	"testbank_backend/internal/util"

	"gorm.io/gorm"
)

// CatalogService 开考前的课程、主题、难度查询
type CatalogService struct {
	Lessons *repository.LessonRepository
}

func NewCatalogService(lessons *repository.LessonRepository) *CatalogService {
	return &CatalogService{Lessons: lessons}
}

// ListLessons levelID 为 0 时返回全部课程
func (s *CatalogService) ListLessons(ctx context.Context, levelID uint) ([]model.Lesson, error) {
	lessons, err := s.Lessons.ListByLevel(ctx, levelID)
	if err != nil {
		return nil, util.StorageError("list lessons", err)
	}
	return lessons, nil
}

func (s *CatalogService) ListTopics(ctx context.Context, lessonID uint) ([]model.Topic, error) {
	if _, err := s.Lessons.FindByID(ctx, lessonID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrInvalidLesson
		}
		return nil, util.StorageError("find lesson", err)
	}
	topics, err := s.Lessons.ListTopics(ctx, lessonID)
	if err != nil {
		return nil, util.StorageError("list topics", err)
	}
	return topics, nil
}

func (s *CatalogService) ListDifficulties(ctx context.Context) ([]model.Difficulty, error) {
	ds, err := s.Lessons.ListDifficulties(ctx)
	if err != nil {
		return nil, util.StorageError("list difficulties", err)
	}
	return ds, nil
}
