package service

import (
	"context"
	"errors"
	"time"

	"testbank_backend/internal/config"
	"testbank_backend/internal/model"
	"testbank_backend/internal/repository"
	"testbank_backend/internal/util"
	"testbank_backend/pkg/logger"
	"testbank_backend/pkg/monitoring"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AnswerInput 学生提交的单题答案
type AnswerInput struct {
	QuestionID uint `json:"questionId" binding:"required"`
	OptionID   uint `json:"optionId" binding:"required"`
}

// RecordResult Saved 为本次去重后写入的答案数，Answered 为会话累计已答题数；finalize 时 Graded 非空
type RecordResult struct {
	Saved    int          `json:"saved"`
	Answered int          `json:"answered"`
	Graded   *GradeResult `json:"graded,omitempty"`
}

type AnswerRecorder struct {
	DB        *gorm.DB
	Sessions  *repository.ExamSessionRepository
	Answers   *repository.ExamAnswerRepository
	Questions *repository.QuestionRepository
	Grader    *Grader
	Policy    *config.ExamPolicy
	Now       func() time.Time
}

func NewAnswerRecorder(db *gorm.DB, sessions *repository.ExamSessionRepository, answers *repository.ExamAnswerRepository, questions *repository.QuestionRepository, grader *Grader, policy *config.ExamPolicy) *AnswerRecorder {
	return &AnswerRecorder{
		DB:        db,
		Sessions:  sessions,
		Answers:   answers,
		Questions: questions,
		Grader:    grader,
		Policy:    policy,
		Now:       defaultNow,
	}
}

// Record 在单个事务内完成：锁定会话、校验归属、校验是否已结束、校验时限、
// 校验题目/选项属于冻结题集、写入答案，finalize 时同一事务内评分。
// 任一步失败整个事务回滚，不保留部分答案。
func (r *AnswerRecorder) Record(ctx context.Context, sessionID string, callerID uint, answers []AnswerInput, finalize bool) (*RecordResult, error) {
	var result RecordResult
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		session, err := r.Sessions.WithTx(tx).LockByID(ctx, sessionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return util.ErrSessionNotFound
			}
			return util.StorageError("lock session", err)
		}

		if session.OwnerID != callerID {
			return util.ErrForbidden
		}
		if session.Completed() {
			return util.ErrAlreadyCompleted
		}

		now := r.Now()
		if now.After(session.Deadline().Add(r.grace())) {
			return util.ErrDeadlineExceeded
		}

		deduped := dedupeAnswers(answers)
		if err := r.checkReferences(ctx, tx, session.ID, deduped); err != nil {
			return err
		}

		rows := make([]model.ExamAnswer, len(deduped))
		for i, a := range deduped {
			rows[i] = model.ExamAnswer{
				SessionID:  session.ID,
				QuestionID: a.QuestionID,
				OptionID:   a.OptionID,
				AnsweredAt: now,
			}
		}
		if err := r.Answers.WithTx(tx).Upsert(ctx, rows); err != nil {
			return util.StorageError("save answers", err)
		}
		result.Saved = len(rows)

		answered, err := r.Answers.WithTx(tx).CountBySession(ctx, session.ID)
		if err != nil {
			return util.StorageError("count answers", err)
		}
		result.Answered = int(answered)

		if !finalize {
			return nil
		}
		graded, err := r.Grader.gradeTx(ctx, tx, session, now)
		if err != nil {
			return err
		}
		result.Graded = graded
		return nil
	})

	monitoring.ObserveSubmission(submissionOutcome(err, finalize))
	if err != nil {
		logger.Log.Info("Answer submission rejected",
			zap.String("session_id", sessionID),
			zap.Uint("caller_id", callerID),
			zap.Bool("finalize", finalize),
			zap.Error(err),
		)
		return nil, err
	}
	return &result, nil
}

func (r *AnswerRecorder) grace() time.Duration {
	if r.Policy == nil {
		return 0
	}
	return r.Policy.Load().SubmitGrace()
}

// checkReferences 每个答案的题目必须属于会话冻结题集，选项必须属于该题目
func (r *AnswerRecorder) checkReferences(ctx context.Context, tx *gorm.DB, sessionID string, answers []AnswerInput) error {
	if len(answers) == 0 {
		return nil
	}

	links, err := r.Sessions.WithTx(tx).Links(ctx, sessionID)
	if err != nil {
		return util.StorageError("load session questions", err)
	}
	frozen := make(map[uint]struct{}, len(links))
	for _, l := range links {
		frozen[l.QuestionID] = struct{}{}
	}

	optionIDs := make([]uint, 0, len(answers))
	for _, a := range answers {
		if _, ok := frozen[a.QuestionID]; !ok {
			return util.ErrInvalidReference
		}
		optionIDs = append(optionIDs, a.OptionID)
	}

	owners, err := r.Questions.WithTx(tx).OptionOwners(ctx, optionIDs)
	if err != nil {
		return util.StorageError("load options", err)
	}
	for _, a := range answers {
		if qid, ok := owners[a.OptionID]; !ok || qid != a.QuestionID {
			return util.ErrInvalidReference
		}
	}
	return nil
}

// dedupeAnswers 同一题目多次出现时保留最后一次，顺序按首次出现
func dedupeAnswers(answers []AnswerInput) []AnswerInput {
	index := make(map[uint]int, len(answers))
	out := make([]AnswerInput, 0, len(answers))
	for _, a := range answers {
		if i, ok := index[a.QuestionID]; ok {
			out[i] = a
			continue
		}
		index[a.QuestionID] = len(out)
		out = append(out, a)
	}
	return out
}

func submissionOutcome(err error, finalize bool) string {
	switch {
	case err == nil && finalize:
		return "graded"
	case err == nil:
		return "saved"
	case errors.Is(err, util.ErrForbidden):
		return "forbidden"
	case errors.Is(err, util.ErrAlreadyCompleted):
		return "already_completed"
	case errors.Is(err, util.ErrDeadlineExceeded):
		return "deadline_exceeded"
	case errors.Is(err, util.ErrInvalidReference):
		return "invalid_reference"
	case errors.Is(err, util.ErrSessionNotFound):
		return "not_found"
	default:
		return "error"
	}
}
