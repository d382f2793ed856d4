package repository

import (
	"context"

	"testbank_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ExamAnswerRepository struct {
	DB *gorm.DB
}

func NewExamAnswerRepository(db *gorm.DB) *ExamAnswerRepository {
	return &ExamAnswerRepository{DB: db}
}

func (r *ExamAnswerRepository) WithTx(tx *gorm.DB) *ExamAnswerRepository {
	return &ExamAnswerRepository{DB: tx}
}

// Upsert 同一会话同一题目只保留最新一次选择
func (r *ExamAnswerRepository) Upsert(ctx context.Context, answers []model.ExamAnswer) error {
	if len(answers) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}, {Name: "question_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"option_id", "answered_at"}),
		}).
		Create(&answers).Error
}

func (r *ExamAnswerRepository) ListBySession(ctx context.Context, sessionID string) ([]model.ExamAnswer, error) {
	var answers []model.ExamAnswer
	err := r.DB.WithContext(ctx).Where("session_id = ?", sessionID).Order("question_id asc").Find(&answers).Error
	return answers, err
}

func (r *ExamAnswerRepository) CountBySession(ctx context.Context, sessionID string) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&model.ExamAnswer{}).Where("session_id = ?", sessionID).Count(&n).Error
	return n, err
}

// CountCorrect 统计选中正确选项的已答题数，仅计入冻结题目
func (r *ExamAnswerRepository) CountCorrect(ctx context.Context, sessionID string) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).
		Model(&model.ExamAnswer{}).
		Joins("JOIN options ON options.id = exam_answers.option_id AND options.question_id = exam_answers.question_id").
		Joins("JOIN exam_session_questions ON exam_session_questions.session_id = exam_answers.session_id AND exam_session_questions.question_id = exam_answers.question_id").
		Where("exam_answers.session_id = ? AND options.is_correct = ?", sessionID, true).
		Count(&n).Error
	return n, err
}
