package service

import (
	"context"
	"errors"

	"testbank_backend/internal/config"
	"testbank_backend/internal/model"
	"testbank_backend/internal/repository"
	"testbank_backend/internal/util"
	"testbank_backend/pkg/logger"
	"testbank_backend/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ReviewOption 回顾中的选项，同时给出正确与选中标记
type ReviewOption struct {
	ID         uint   `json:"id"`
	Text       string `json:"text"`
	IsCorrect  bool   `json:"isCorrect"`
	IsSelected bool   `json:"isSelected"`
}

// ReviewRecord 单题回顾。未作答时 SelectedOptionID 与 IsCorrect 均为 nil，
// 是否归类为“未作答”由调用方决定
type ReviewRecord struct {
	QuestionID       uint           `json:"questionId"`
	DisplayOrder     int            `json:"displayOrder"`
	TopicID          uint           `json:"topicId"`
	TopicName        string         `json:"topicName"`
	DifficultyID     uint           `json:"difficultyId"`
	DifficultyName   string         `json:"difficultyName"`
	Text             string         `json:"text"`
	Options          []ReviewOption `json:"options"`
	SelectedOptionID *uint          `json:"selectedOptionId"`
	IsCorrect        *bool          `json:"isCorrect"`
}

type ReviewAssembler struct {
	Sessions  *repository.ExamSessionRepository
	Answers   *repository.ExamAnswerRepository
	Questions *repository.QuestionRepository
	Lessons   *repository.LessonRepository
	Policy    *config.ExamPolicy
}

func NewReviewAssembler(sessions *repository.ExamSessionRepository, answers *repository.ExamAnswerRepository, questions *repository.QuestionRepository, lessons *repository.LessonRepository, policy *config.ExamPolicy) *ReviewAssembler {
	return &ReviewAssembler{
		Sessions:  sessions,
		Answers:   answers,
		Questions: questions,
		Lessons:   lessons,
		Policy:    policy,
	}
}

// Review 按冻结顺序重建整场考试的作答详情，只读
func (a *ReviewAssembler) Review(ctx context.Context, sessionID string, callerID uint) (records []ReviewRecord, err error) {
	ctx, span := tracing.Start(ctx, "ReviewAssembler.Review", attribute.String("session_id", sessionID))
	defer func() { tracing.End(span, err) }()

	session, err := a.Sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrSessionNotFound
		}
		return nil, util.StorageError("find session", err)
	}
	if session.OwnerID != callerID {
		return nil, util.ErrForbidden
	}
	if !session.Completed() && !a.allowInProgress() {
		return nil, util.ErrReviewNotAvailable
	}

	return a.assemble(ctx, session.ID)
}

func (a *ReviewAssembler) allowInProgress() bool {
	if a.Policy == nil {
		return config.DefaultExamConfig().AllowInProgressReview
	}
	return a.Policy.Load().AllowInProgressReview
}

// assemble 不做归属校验，供归档等内部调用
func (a *ReviewAssembler) assemble(ctx context.Context, sessionID string) ([]ReviewRecord, error) {
	links, err := a.Sessions.Links(ctx, sessionID)
	if err != nil {
		return nil, util.StorageError("load session questions", err)
	}
	if len(links) == 0 {
		return []ReviewRecord{}, nil
	}

	ids := make([]uint, len(links))
	for i, l := range links {
		ids[i] = l.QuestionID
	}
	questions, err := a.Questions.FindFrozen(ctx, ids)
	if err != nil {
		return nil, util.StorageError("load questions", err)
	}
	byID := make(map[uint]model.Question, len(questions))
	topicSet := make(map[uint]struct{})
	for _, q := range questions {
		byID[q.ID] = q
		topicSet[q.TopicID] = struct{}{}
	}

	topicIDs := make([]uint, 0, len(topicSet))
	for id := range topicSet {
		topicIDs = append(topicIDs, id)
	}
	topics, err := a.Lessons.FindTopics(ctx, topicIDs)
	if err != nil {
		return nil, util.StorageError("load topics", err)
	}
	topicNames := make(map[uint]string, len(topics))
	for _, t := range topics {
		topicNames[t.ID] = t.Name
	}

	difficulties, err := a.Lessons.ListDifficulties(ctx)
	if err != nil {
		return nil, util.StorageError("load difficulties", err)
	}
	difficultyNames := make(map[uint]string, len(difficulties))
	for _, d := range difficulties {
		difficultyNames[d.ID] = d.Name
	}

	answers, err := a.Answers.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, util.StorageError("load answers", err)
	}
	selected := make(map[uint]uint, len(answers))
	for _, ans := range answers {
		selected[ans.QuestionID] = ans.OptionID
	}

	records := make([]ReviewRecord, 0, len(links))
	for _, l := range links {
		q, ok := byID[l.QuestionID]
		if !ok {
			// 题目被硬删除：保留占位记录，回顾条数与冻结题数一致
			logger.Log.Warn("Frozen exam question missing from bank",
				zap.String("session_id", sessionID),
				zap.Uint("question_id", l.QuestionID),
				zap.Int("display_order", l.DisplayOrder),
			)
			records = append(records, missingRecord(l, selected))
			continue
		}
		rec := ReviewRecord{
			QuestionID:     q.ID,
			DisplayOrder:   l.DisplayOrder,
			TopicID:        q.TopicID,
			TopicName:      topicNames[q.TopicID],
			DifficultyID:   q.DifficultyID,
			DifficultyName: difficultyNames[q.DifficultyID],
			Text:           q.Text,
			Options:        make([]ReviewOption, len(q.Options)),
		}
		optionID, answered := selected[q.ID]
		for i, o := range q.Options {
			rec.Options[i] = ReviewOption{
				ID:         o.ID,
				Text:       o.Text,
				IsCorrect:  o.IsCorrect,
				IsSelected: answered && o.ID == optionID,
			}
		}
		if answered {
			id := optionID
			correct := false
			for _, o := range q.Options {
				if o.ID == optionID {
					correct = o.IsCorrect
					break
				}
			}
			rec.SelectedOptionID = &id
			rec.IsCorrect = &correct
		}
		records = append(records, rec)
	}
	return records, nil
}

// missingRecord 题目已不存在时的占位，只保留顺序与所选选项
func missingRecord(l model.SessionQuestion, selected map[uint]uint) ReviewRecord {
	rec := ReviewRecord{
		QuestionID:   l.QuestionID,
		DisplayOrder: l.DisplayOrder,
		Options:      []ReviewOption{},
	}
	if optionID, ok := selected[l.QuestionID]; ok {
		correct := false
		rec.SelectedOptionID = &optionID
		rec.IsCorrect = &correct
	}
	return rec
}
