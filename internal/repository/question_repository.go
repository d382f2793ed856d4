package repository

import (
	"context"

	"testbank_backend/internal/model"

	"gorm.io/gorm"
)

type QuestionRepository struct {
	DB *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) *QuestionRepository {
	return &QuestionRepository{DB: db}
}

func (r *QuestionRepository) WithTx(tx *gorm.DB) *QuestionRepository {
	return &QuestionRepository{DB: tx}
}

// PoolFilter 候选题池过滤条件，TopicIDs 为空表示课程下全部主题，DifficultyID 为空表示不限难度
type PoolFilter struct {
	LessonID     uint
	TopicIDs     []uint
	DifficultyID *uint
}

// EligibleIDs 返回满足条件的题目 ID，按 ID 升序
func (r *QuestionRepository) EligibleIDs(ctx context.Context, f PoolFilter) ([]uint, error) {
	query := r.DB.WithContext(ctx).
		Model(&model.Question{}).
		Joins("JOIN topics ON topics.id = questions.topic_id AND topics.deleted_at IS NULL").
		Where("topics.lesson_id = ?", f.LessonID)
	if len(f.TopicIDs) > 0 {
		query = query.Where("questions.topic_id IN ?", f.TopicIDs)
	}
	if f.DifficultyID != nil {
		query = query.Where("questions.difficulty_id = ?", *f.DifficultyID)
	}

	var ids []uint
	err := query.Order("questions.id asc").Pluck("questions.id", &ids).Error
	return ids, err
}

// FindWithOptions 按 ID 加载题目及选项，不保证顺序
func (r *QuestionRepository) FindWithOptions(ctx context.Context, ids []uint) ([]model.Question, error) {
	return r.findWithOptions(r.DB.WithContext(ctx), ids, false)
}

// FindFrozen 加载会话冻结的题目，包含出题方已软删除的题目
func (r *QuestionRepository) FindFrozen(ctx context.Context, ids []uint) ([]model.Question, error) {
	return r.findWithOptions(r.DB.WithContext(ctx).Unscoped(), ids, true)
}

func (r *QuestionRepository) findWithOptions(db *gorm.DB, ids []uint, unscoped bool) ([]model.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var qs []model.Question
	err := db.
		Preload("Options", func(tx *gorm.DB) *gorm.DB {
			if unscoped {
				tx = tx.Unscoped()
			}
			return tx.Order("options.id asc")
		}).
		Where("id IN ?", ids).
		Find(&qs).Error
	return qs, err
}

// OptionOwners 返回选项 ID 到所属题目 ID 的映射，包含已软删除的选项
func (r *QuestionRepository) OptionOwners(ctx context.Context, optionIDs []uint) (map[uint]uint, error) {
	owners := make(map[uint]uint, len(optionIDs))
	if len(optionIDs) == 0 {
		return owners, nil
	}
	var opts []model.Option
	err := r.DB.WithContext(ctx).
		Unscoped().
		Select("id", "question_id").
		Where("id IN ?", optionIDs).
		Find(&opts).Error
	if err != nil {
		return nil, err
	}
	for _, o := range opts {
		owners[o.ID] = o.QuestionID
	}
	return owners, nil
}
