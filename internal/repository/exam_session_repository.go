package repository

import (
	"context"
	"time"

	"testbank_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ExamSessionRepository struct {
	DB *gorm.DB
}

func NewExamSessionRepository(db *gorm.DB) *ExamSessionRepository {
	return &ExamSessionRepository{DB: db}
}

// WithTx 返回绑定到事务的仓储
func (r *ExamSessionRepository) WithTx(tx *gorm.DB) *ExamSessionRepository {
	return &ExamSessionRepository{DB: tx}
}

// Create 会话与题目顺序在同一事务内写入
func (r *ExamSessionRepository) Create(ctx context.Context, session *model.ExamSession, questionIDs []uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(session).Error; err != nil {
			return err
		}
		if len(questionIDs) == 0 {
			return nil
		}
		links := make([]model.SessionQuestion, len(questionIDs))
		for i, qid := range questionIDs {
			links[i] = model.SessionQuestion{
				SessionID:    session.ID,
				QuestionID:   qid,
				DisplayOrder: i + 1,
			}
		}
		return tx.Create(&links).Error
	})
}

func (r *ExamSessionRepository) FindByID(ctx context.Context, id string) (*model.ExamSession, error) {
	var s model.ExamSession
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// LockByID 行级锁读取会话（SELECT ... FOR UPDATE），须在事务内调用
func (r *ExamSessionRepository) LockByID(ctx context.Context, id string) (*model.ExamSession, error) {
	var s model.ExamSession
	err := r.DB.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Links 冻结题目，按展示顺序
func (r *ExamSessionRepository) Links(ctx context.Context, sessionID string) ([]model.SessionQuestion, error) {
	var links []model.SessionQuestion
	err := r.DB.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("display_order asc").
		Find(&links).Error
	return links, err
}

func (r *ExamSessionRepository) CountLinks(ctx context.Context, sessionID string) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&model.SessionQuestion{}).Where("session_id = ?", sessionID).Count(&n).Error
	return n, err
}

// MarkGraded 仅当会话尚未结束时写入成绩，返回是否写入成功
func (r *ExamSessionRepository) MarkGraded(ctx context.Context, sessionID string, finishedAt time.Time, score, correct int) (bool, error) {
	res := r.DB.WithContext(ctx).
		Model(&model.ExamSession{}).
		Where("id = ? AND finished_at IS NULL", sessionID).
		Updates(map[string]interface{}{
			"finished_at":   finishedAt,
			"score":         score,
			"correct_count": correct,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// HistoryRow 学生考试记录列表行
type HistoryRow struct {
	model.ExamSession
	LessonName string `json:"lessonName"`
}

func (r *ExamSessionRepository) ListByOwner(ctx context.Context, ownerID uint) ([]HistoryRow, error) {
	var rows []HistoryRow
	err := r.DB.WithContext(ctx).
		Table("exam_sessions").
		Select("exam_sessions.*, lessons.name AS lesson_name").
		Joins("LEFT JOIN lessons ON lessons.id = exam_sessions.lesson_id").
		Where("exam_sessions.owner_id = ?", ownerID).
		Order("exam_sessions.started_at desc").
		Scan(&rows).Error
	return rows, err
}

// FindWithLesson 会话概要，附带课程名称
func (r *ExamSessionRepository) FindWithLesson(ctx context.Context, id string) (*HistoryRow, error) {
	var row HistoryRow
	res := r.DB.WithContext(ctx).
		Table("exam_sessions").
		Select("exam_sessions.*, lessons.name AS lesson_name").
		Joins("LEFT JOIN lessons ON lessons.id = exam_sessions.lesson_id").
		Where("exam_sessions.id = ?", id).
		Limit(1).
		Scan(&row)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &row, nil
}
