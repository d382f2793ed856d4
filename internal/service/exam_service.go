package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
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

type StartExamRequest struct {
	LessonID         uint   `json:"lessonId" binding:"required"`
	TopicIDs         []uint `json:"topicIds"`
	DifficultyID     *uint  `json:"difficultyId"`
	Count            int    `json:"count" binding:"required"`
	TimeLimitMinutes int    `json:"timeLimitMinutes" binding:"required"`
}

// ExamOption 下发给学生的选项，不含正确性
type ExamOption struct {
	ID   uint   `json:"id"`
	Text string `json:"text"`
}

type ExamQuestion struct {
	ID           uint         `json:"id"`
	DisplayOrder int          `json:"displayOrder"`
	TopicID      uint         `json:"topicId"`
	DifficultyID uint         `json:"difficultyId"`
	Text         string       `json:"text"`
	Options      []ExamOption `json:"options"`
}

type StartExamResponse struct {
	SessionID        string         `json:"sessionId"`
	StartedAt        time.Time      `json:"startedAt"`
	Deadline         time.Time      `json:"deadline"`
	TimeLimitMinutes int            `json:"timeLimitMinutes"`
	Questions        []ExamQuestion `json:"questions"`
}

type AnswersRequest struct {
	Answers []AnswerInput `json:"answers" binding:"dive"`
}

// SessionSummary 考试记录，Status 与 DurationSeconds 为推导值
type SessionSummary struct {
	SessionID        string     `json:"sessionId"`
	LessonID         uint       `json:"lessonId"`
	LessonName       string     `json:"lessonName"`
	TopicIDs         []uint     `json:"topicIds"`
	DifficultyID     *uint      `json:"difficultyId,omitempty"`
	QuestionCount    int        `json:"questionCount"`
	TimeLimitMinutes int        `json:"timeLimitMinutes"`
	StartedAt        time.Time  `json:"startedAt"`
	Deadline         time.Time  `json:"deadline"`
	FinishedAt       *time.Time `json:"finishedAt,omitempty"`
	Score            *int       `json:"score,omitempty"`
	CorrectCount     *int       `json:"correctCount,omitempty"`
	Status           string     `json:"status"`
	DurationSeconds  *int64     `json:"durationSeconds,omitempty"`
}

type ExamService struct {
	Selector *QuestionSelector
	Sessions *repository.ExamSessionRepository
	Recorder *AnswerRecorder
	Reviews  *ReviewAssembler
	Archive  *ArchiveService
	Policy   *config.ExamPolicy
	Now      func() time.Time

	// archives 跟踪进行中的归档协程，退出前由 WaitArchives 等待
	archives sync.WaitGroup
}

func NewExamService(selector *QuestionSelector, sessions *repository.ExamSessionRepository, recorder *AnswerRecorder, reviews *ReviewAssembler, archive *ArchiveService, policy *config.ExamPolicy) *ExamService {
	return &ExamService{
		Selector: selector,
		Sessions: sessions,
		Recorder: recorder,
		Reviews:  reviews,
		Archive:  archive,
		Policy:   policy,
		Now:      defaultNow,
	}
}

func (s *ExamService) policy() config.ExamConfig {
	if s.Policy == nil {
		return config.DefaultExamConfig()
	}
	return s.Policy.Load()
}

// StartExam 抽题并创建会话，开考时间以服务端时钟为准
func (s *ExamService) StartExam(ctx context.Context, ownerID uint, req StartExamRequest) (*StartExamResponse, error) {
	p := s.policy()
	if req.Count < 1 || req.Count > p.MaxQuestionCount {
		return nil, util.InvalidRequest("count must be between 1 and %d", p.MaxQuestionCount)
	}
	if req.TimeLimitMinutes < 1 || req.TimeLimitMinutes > p.MaxTimeLimitMinutes {
		return nil, util.InvalidRequest("timeLimitMinutes must be between 1 and %d", p.MaxTimeLimitMinutes)
	}

	questions, err := s.Selector.Select(ctx, SelectCriteria{
		LessonID:     req.LessonID,
		TopicIDs:     req.TopicIDs,
		DifficultyID: req.DifficultyID,
		Count:        req.Count,
	})
	if err != nil {
		return nil, err
	}

	ids := make([]uint, len(questions))
	for i, q := range questions {
		ids[i] = q.ID
	}

	session := &model.ExamSession{
		OwnerID:          ownerID,
		LessonID:         req.LessonID,
		TopicIDs:         util.JoinUintIDs(req.TopicIDs),
		DifficultyID:     req.DifficultyID,
		QuestionCount:    len(questions),
		TimeLimitMinutes: req.TimeLimitMinutes,
		StartedAt:        s.Now(),
	}
	if err := s.Sessions.Create(ctx, session, ids); err != nil {
		return nil, util.StorageError("create session", err)
	}

	monitoring.SessionsStarted.WithLabelValues(strconv.FormatUint(uint64(req.LessonID), 10)).Inc()
	logger.Log.Info("Exam session started",
		zap.String("session_id", session.ID),
		zap.Uint("owner_id", ownerID),
		zap.Uint("lesson_id", req.LessonID),
		zap.Int("requested", req.Count),
		zap.Int("selected", len(questions)),
		zap.Int("time_limit_minutes", req.TimeLimitMinutes),
	)

	resp := &StartExamResponse{
		SessionID:        session.ID,
		StartedAt:        session.StartedAt,
		Deadline:         session.Deadline(),
		TimeLimitMinutes: session.TimeLimitMinutes,
		Questions:        make([]ExamQuestion, len(questions)),
	}
	for i, q := range questions {
		eq := ExamQuestion{
			ID:           q.ID,
			DisplayOrder: i + 1,
			TopicID:      q.TopicID,
			DifficultyID: q.DifficultyID,
			Text:         q.Text,
			Options:      make([]ExamOption, len(q.Options)),
		}
		for j, o := range q.Options {
			eq.Options[j] = ExamOption{ID: o.ID, Text: o.Text}
		}
		resp.Questions[i] = eq
	}
	return resp, nil
}

// SaveAnswers 保存作答进度，不结束考试
func (s *ExamService) SaveAnswers(ctx context.Context, sessionID string, callerID uint, answers []AnswerInput) (*RecordResult, error) {
	res, err := s.Recorder.Record(ctx, sessionID, callerID, answers, false)
	if err != nil {
		return nil, err
	}
	logger.Log.Debug("Exam answers saved", zap.String("session_id", sessionID), zap.Int("saved", res.Saved))
	return res, nil
}

// SubmitExam 保存答案并立即评分；成功后异步归档回顾快照
func (s *ExamService) SubmitExam(ctx context.Context, sessionID string, callerID uint, answers []AnswerInput) (*GradeResult, error) {
	res, err := s.Recorder.Record(ctx, sessionID, callerID, answers, true)
	if err != nil {
		return nil, err
	}
	if s.Archive != nil && s.Archive.Enabled {
		s.archives.Add(1)
		go func() {
			defer s.archives.Done()
			s.archive(sessionID)
		}()
	}
	return res.Graded, nil
}

// WaitArchives 等待已提交的归档完成，ctx 到期时放弃等待
func (s *ExamService) WaitArchives(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.archives.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ExamService) archive(sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.Archive.Timeout)
	defer cancel()

	records, err := s.Reviews.assemble(ctx, sessionID)
	if err == nil {
		err = s.Archive.ArchiveReview(ctx, sessionID, records)
	}
	if err != nil {
		logger.Log.Warn("Exam review archive failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// GetHistory 学生全部考试记录，最新在前
func (s *ExamService) GetHistory(ctx context.Context, ownerID uint) ([]SessionSummary, error) {
	rows, err := s.Sessions.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, util.StorageError("list sessions", err)
	}
	now := s.Now()
	grace := s.policy().SubmitGrace()
	items := make([]SessionSummary, len(rows))
	for i := range rows {
		items[i] = summarize(&rows[i], now, grace)
	}
	return items, nil
}

// GetSummary 单场考试概要，仅限本人
func (s *ExamService) GetSummary(ctx context.Context, sessionID string, callerID uint) (*SessionSummary, error) {
	row, err := s.Sessions.FindWithLesson(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrSessionNotFound
		}
		return nil, util.StorageError("find session", err)
	}
	if row.OwnerID != callerID {
		return nil, util.ErrForbidden
	}
	summary := summarize(row, s.Now(), s.policy().SubmitGrace())
	return &summary, nil
}

func (s *ExamService) GetReview(ctx context.Context, sessionID string, callerID uint) ([]ReviewRecord, error) {
	return s.Reviews.Review(ctx, sessionID, callerID)
}

func summarize(row *repository.HistoryRow, now time.Time, grace time.Duration) SessionSummary {
	item := SessionSummary{
		SessionID:        row.ID,
		LessonID:         row.LessonID,
		LessonName:       row.LessonName,
		TopicIDs:         util.SplitUintIDs(row.TopicIDs),
		DifficultyID:     row.DifficultyID,
		QuestionCount:    row.QuestionCount,
		TimeLimitMinutes: row.TimeLimitMinutes,
		StartedAt:        row.StartedAt,
		Deadline:         row.Deadline(),
		FinishedAt:       row.FinishedAt,
		Score:            row.Score,
		CorrectCount:     row.CorrectCount,
	}
	switch {
	case row.Completed():
		item.Status = util.SessionStatusCompleted
		d := int64(row.FinishedAt.Sub(row.StartedAt) / time.Second)
		item.DurationSeconds = &d
	case now.After(row.Deadline().Add(grace)):
		item.Status = util.SessionStatusExpired
	default:
		item.Status = util.SessionStatusInProgress
	}
	return item
}
