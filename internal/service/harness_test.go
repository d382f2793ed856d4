package service

import (
	"context"
	"testing"
	"time"

	"testbank_backend/internal/config"
	"testbank_backend/internal/model"
	"testbank_backend/internal/repository"
	"testbank_backend/internal/testutil"

	"gorm.io/gorm"
)

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

func (c *fixedClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type harness struct {
	db       *gorm.DB
	clock    *fixedClock
	policy   *config.ExamPolicy
	sessions *repository.ExamSessionRepository
	answers  *repository.ExamAnswerRepository
	selector *QuestionSelector
	grader   *Grader
	recorder *AnswerRecorder
	reviews  *ReviewAssembler
	exams    *ExamService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db := testutil.DB(t)
	clock := &fixedClock{now: time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)}
	policy := config.NewExamPolicy(config.DefaultExamConfig())

	lessons := repository.NewLessonRepository(db)
	questions := repository.NewQuestionRepository(db)
	sessions := repository.NewExamSessionRepository(db)
	answers := repository.NewExamAnswerRepository(db)

	selector := NewQuestionSelector(lessons, questions, nil, policy)
	grader := NewGrader(db, sessions, answers)
	grader.Now = clock.Now
	recorder := NewAnswerRecorder(db, sessions, answers, questions, grader, policy)
	recorder.Now = clock.Now
	reviews := NewReviewAssembler(sessions, answers, questions, lessons, policy)
	exams := NewExamService(selector, sessions, recorder, reviews, nil, policy)
	exams.Now = clock.Now

	return &harness{
		db:       db,
		clock:    clock,
		policy:   policy,
		sessions: sessions,
		answers:  answers,
		selector: selector,
		grader:   grader,
		recorder: recorder,
		reviews:  reviews,
		exams:    exams,
	}
}

// seedLesson 创建一个课程、一个主题和 n 道 Easy 题目
func (h *harness) seedLesson(t *testing.T, n int) (model.Lesson, []model.Question) {
	t.Helper()
	lesson := testutil.Lesson(t, h.db, 1, "Algebra")
	topic := testutil.Topic(t, h.db, lesson.ID, "Equations")
	easy := testutil.Difficulties(t, h.db)[0]
	return lesson, testutil.Questions(t, h.db, topic.ID, easy.ID, n)
}

// startWith 直接以给定题目创建会话，绕开随机抽题
func (h *harness) startWith(t *testing.T, ownerID, lessonID uint, limitMinutes int, qs []model.Question) *model.ExamSession {
	t.Helper()
	ids := make([]uint, len(qs))
	for i, q := range qs {
		ids[i] = q.ID
	}
	s := &model.ExamSession{
		OwnerID:          ownerID,
		LessonID:         lessonID,
		QuestionCount:    len(qs),
		TimeLimitMinutes: limitMinutes,
		StartedAt:        h.clock.Now(),
	}
	if err := h.sessions.Create(context.Background(), s, ids); err != nil {
		t.Fatalf("create session: %v", err)
	}
	return s
}
