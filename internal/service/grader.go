package service

import (
	"context"
	"errors"
	"math"
	"time"

	"testbank_backend/internal/model"
	"testbank_backend/internal/repository"
	"testbank_backend/internal/util"
	"testbank_backend/pkg/logger"
	"testbank_backend/pkg/monitoring"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// GradeResult 考试成绩，TotalCount 为冻结题目数（未作答计为错误）
type GradeResult struct {
	SessionID    string    `json:"sessionId"`
	Score        int       `json:"score"`
	CorrectCount int       `json:"correctCount"`
	TotalCount   int       `json:"totalCount"`
	FinishedAt   time.Time `json:"finishedAt"`
}

type Grader struct {
	DB       *gorm.DB
	Sessions *repository.ExamSessionRepository
	Answers  *repository.ExamAnswerRepository
	Now      func() time.Time
}

func NewGrader(db *gorm.DB, sessions *repository.ExamSessionRepository, answers *repository.ExamAnswerRepository) *Grader {
	return &Grader{
		DB:       db,
		Sessions: sessions,
		Answers:  answers,
		Now:      defaultNow,
	}
}

// ComputeScore round(100 * correct / total)，total 为 0 时得 0 分
func ComputeScore(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(correct) / float64(total)))
}

// Grade 结束并评分；已结束的会话直接返回已存储的成绩，不重新计算
func (g *Grader) Grade(ctx context.Context, sessionID string) (*GradeResult, error) {
	var result *GradeResult
	err := g.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		session, err := g.Sessions.WithTx(tx).LockByID(ctx, sessionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return util.ErrSessionNotFound
			}
			return util.StorageError("lock session", err)
		}
		if session.Completed() {
			result = storedResult(session)
			return nil
		}
		result, err = g.gradeTx(ctx, tx, session, g.Now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// gradeTx 在调用方事务内评分，finishedAt 由调用方传入，与其时限校验使用同一时刻；
// 成绩写入带 finished_at IS NULL 条件，保证只写一次
func (g *Grader) gradeTx(ctx context.Context, tx *gorm.DB, session *model.ExamSession, finishedAt time.Time) (*GradeResult, error) {
	total, err := g.Sessions.WithTx(tx).CountLinks(ctx, session.ID)
	if err != nil {
		return nil, util.StorageError("count session questions", err)
	}
	correct, err := g.Answers.WithTx(tx).CountCorrect(ctx, session.ID)
	if err != nil {
		return nil, util.StorageError("count correct answers", err)
	}

	score := ComputeScore(int(correct), int(total))

	ok, err := g.Sessions.WithTx(tx).MarkGraded(ctx, session.ID, finishedAt, score, int(correct))
	if err != nil {
		return nil, util.StorageError("store grade", err)
	}
	if !ok {
		return nil, util.ErrAlreadyCompleted
	}

	monitoring.ScorePercent.Observe(float64(score))
	logger.Log.Info("Exam session graded",
		zap.String("session_id", session.ID),
		zap.Uint("owner_id", session.OwnerID),
		zap.Int("score", score),
		zap.Int64("correct", correct),
		zap.Int64("total", total),
	)

	return &GradeResult{
		SessionID:    session.ID,
		Score:        score,
		CorrectCount: int(correct),
		TotalCount:   int(total),
		FinishedAt:   finishedAt,
	}, nil
}

func storedResult(session *model.ExamSession) *GradeResult {
	res := &GradeResult{
		SessionID:  session.ID,
		TotalCount: session.QuestionCount,
		FinishedAt: *session.FinishedAt,
	}
	if session.Score != nil {
		res.Score = *session.Score
	}
	if session.CorrectCount != nil {
		res.CorrectCount = *session.CorrectCount
	}
	return res
}

// defaultNow 服务端时钟，截断到毫秒以与数据库精度一致
func defaultNow() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
