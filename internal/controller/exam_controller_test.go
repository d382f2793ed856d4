package controller

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"testbank_backend/internal/config"
	"testbank_backend/internal/model"
	"testbank_backend/internal/repository"
	"testbank_backend/internal/service"
	"testbank_backend/internal/testutil"
	"testbank_backend/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.DB(t)
	policy := config.NewExamPolicy(config.DefaultExamConfig())
	lessons := repository.NewLessonRepository(db)
	questions := repository.NewQuestionRepository(db)
	sessions := repository.NewExamSessionRepository(db)
	answers := repository.NewExamAnswerRepository(db)

	selector := service.NewQuestionSelector(lessons, questions, nil, policy)
	grader := service.NewGrader(db, sessions, answers)
	recorder := service.NewAnswerRecorder(db, sessions, answers, questions, grader, policy)
	reviews := service.NewReviewAssembler(sessions, answers, questions, lessons, policy)
	exams := NewExamController(service.NewExamService(selector, sessions, recorder, reviews, nil, policy))
	catalog := NewCatalogController(service.NewCatalogService(lessons))

	r := gin.New()
	// 以 X-User 头模拟身份提供方
	r.Use(func(c *gin.Context) {
		if id := util.MustParseUint(c.GetHeader("X-User")); id > 0 {
			c.Set("user", &util.Claims{UserID: id, Role: model.Student, LevelID: 1})
		}
		c.Next()
	})
	g := r.Group("/api/exams")
	g.GET("/lessons", catalog.ListLessons)
	g.GET("/lessons/:lessonId/topics", catalog.ListTopics)
	g.GET("/difficulties", catalog.ListDifficulties)
	g.POST("/start", exams.StartExam)
	g.GET("/history", exams.GetHistory)
	g.PUT("/:id/answers", exams.SaveAnswers)
	g.POST("/:id/submit", exams.SubmitExam)
	g.GET("/:id/summary", exams.GetSummary)
	g.GET("/:id/review", exams.GetReview)
	return r, db
}

func do(t *testing.T, r *gin.Engine, method, path string, user string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User", user)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: decode %q: %v", method, path, w.Body.String(), err)
	}
	return w.Code, env
}

func TestExamFlowOverHTTP(t *testing.T) {
	r, db := newTestRouter(t)
	lesson := testutil.Lesson(t, db, 1, "Algebra")
	topic := testutil.Topic(t, db, lesson.ID, "Equations")
	easy := testutil.Difficulties(t, db)[0]
	qs := testutil.Questions(t, db, topic.ID, easy.ID, 4)
	byID := make(map[uint]model.Question, len(qs))
	for _, q := range qs {
		byID[q.ID] = q
	}

	code, env := do(t, r, http.MethodPost, "/api/exams/start", "1", service.StartExamRequest{
		LessonID:         lesson.ID,
		Count:            4,
		TimeLimitMinutes: 15,
	})
	if code != http.StatusCreated {
		t.Fatalf("start: expected 201, got %d (%s)", code, env.Message)
	}
	var started service.StartExamResponse
	if err := json.Unmarshal(env.Data, &started); err != nil {
		t.Fatalf("decode start: %v", err)
	}
	if len(started.Questions) != 4 {
		t.Fatalf("expected 4 questions, got %d", len(started.Questions))
	}
	if bytes.Contains(env.Data, []byte("isCorrect")) {
		t.Fatalf("start response leaks correctness: %s", env.Data)
	}

	first, second := started.Questions[0], started.Questions[1]
	answers := service.AnswersRequest{Answers: []service.AnswerInput{
		{QuestionID: first.ID, OptionID: testutil.CorrectOption(byID[first.ID])},
		{QuestionID: second.ID, OptionID: testutil.WrongOption(byID[second.ID])},
	}}

	code, _ = do(t, r, http.MethodPost, "/api/exams/"+started.SessionID+"/submit", "2", answers)
	if code != http.StatusForbidden {
		t.Fatalf("foreign submit: expected 403, got %d", code)
	}

	bad := service.AnswersRequest{Answers: []service.AnswerInput{{QuestionID: first.ID, OptionID: 99999}}}
	code, _ = do(t, r, http.MethodPut, "/api/exams/"+started.SessionID+"/answers", "1", bad)
	if code != http.StatusBadRequest {
		t.Fatalf("invalid reference: expected 400, got %d", code)
	}

	code, env = do(t, r, http.MethodPost, "/api/exams/"+started.SessionID+"/submit", "1", answers)
	if code != http.StatusOK {
		t.Fatalf("submit: expected 200, got %d (%s)", code, env.Message)
	}
	var graded service.GradeResult
	if err := json.Unmarshal(env.Data, &graded); err != nil {
		t.Fatalf("decode grade: %v", err)
	}
	if graded.Score != 25 || graded.CorrectCount != 1 || graded.TotalCount != 4 {
		t.Fatalf("unexpected grade %+v", graded)
	}

	code, _ = do(t, r, http.MethodPost, "/api/exams/"+started.SessionID+"/submit", "1", answers)
	if code != http.StatusConflict {
		t.Fatalf("resubmit: expected 409, got %d", code)
	}

	code, env = do(t, r, http.MethodGet, "/api/exams/"+started.SessionID+"/review", "1", nil)
	if code != http.StatusOK {
		t.Fatalf("review: expected 200, got %d", code)
	}
	var records []service.ReviewRecord
	if err := json.Unmarshal(env.Data, &records); err != nil {
		t.Fatalf("decode review: %v", err)
	}
	if len(records) != 4 || records[3].SelectedOptionID != nil {
		t.Fatalf("unexpected review %s", env.Data)
	}

	code, _ = do(t, r, http.MethodGet, "/api/exams/"+started.SessionID+"/review", "2", nil)
	if code != http.StatusForbidden {
		t.Fatalf("foreign review: expected 403, got %d", code)
	}

	code, env = do(t, r, http.MethodGet, "/api/exams/history", "1", nil)
	if code != http.StatusOK {
		t.Fatalf("history: expected 200, got %d", code)
	}
	var history []service.SessionSummary
	if err := json.Unmarshal(env.Data, &history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(history) != 1 || history[0].Status != util.SessionStatusCompleted || *history[0].Score != 25 {
		t.Fatalf("unexpected history %s", env.Data)
	}

	code, _ = do(t, r, http.MethodGet, "/api/exams/"+started.SessionID+"/summary", "1", nil)
	if code != http.StatusOK {
		t.Fatalf("summary: expected 200, got %d", code)
	}
}

func TestStartExamErrors(t *testing.T) {
	r, db := newTestRouter(t)
	lesson := testutil.Lesson(t, db, 1, "Algebra")

	cases := []struct {
		name string
		body interface{}
		want int
	}{
		{"malformed body", "not an object", http.StatusBadRequest},
		{"missing count", map[string]interface{}{"lessonId": lesson.ID, "timeLimitMinutes": 10}, http.StatusBadRequest},
		{"count over limit", service.StartExamRequest{LessonID: lesson.ID, Count: 1000, TimeLimitMinutes: 10}, http.StatusBadRequest},
		{"unknown lesson", service.StartExamRequest{LessonID: 4040, Count: 5, TimeLimitMinutes: 10}, http.StatusNotFound},
	}
	for _, tc := range cases {
		if code, _ := do(t, r, http.MethodPost, "/api/exams/start", "1", tc.body); code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, code)
		}
	}

	if code, _ := do(t, r, http.MethodPost, "/api/exams/start", "", service.StartExamRequest{LessonID: lesson.ID, Count: 1, TimeLimitMinutes: 1}); code != http.StatusUnauthorized {
		t.Fatalf("anonymous start: expected 401, got %d", code)
	}
}

func TestCatalogEndpoints(t *testing.T) {
	r, db := newTestRouter(t)
	lesson := testutil.Lesson(t, db, 1, "Algebra")
	testutil.Lesson(t, db, 2, "Calculus")
	testutil.Topic(t, db, lesson.ID, "Equations")
	testutil.Topic(t, db, lesson.ID, "Inequalities")

	code, env := do(t, r, http.MethodGet, "/api/exams/lessons", "1", nil)
	if code != http.StatusOK {
		t.Fatalf("lessons: expected 200, got %d", code)
	}
	var lessons []model.Lesson
	if err := json.Unmarshal(env.Data, &lessons); err != nil {
		t.Fatalf("decode lessons: %v", err)
	}
	if len(lessons) != 1 || lessons[0].Name != "Algebra" {
		t.Fatalf("expected only the student's level lessons, got %s", env.Data)
	}

	code, env = do(t, r, http.MethodGet, "/api/exams/lessons/"+strconv.FormatUint(uint64(lesson.ID), 10)+"/topics", "1", nil)
	if code != http.StatusOK {
		t.Fatalf("topics: expected 200, got %d", code)
	}
	var topics []model.Topic
	if err := json.Unmarshal(env.Data, &topics); err != nil || len(topics) != 2 {
		t.Fatalf("unexpected topics %s (%v)", env.Data, err)
	}

	if code, _ := do(t, r, http.MethodGet, "/api/exams/lessons/4040/topics", "1", nil); code != http.StatusNotFound {
		t.Fatalf("unknown lesson topics: expected 404, got %d", code)
	}
	if code, _ := do(t, r, http.MethodGet, "/api/exams/lessons/abc/topics", "1", nil); code != http.StatusBadRequest {
		t.Fatalf("bad lesson id: expected 400, got %d", code)
	}

	code, env = do(t, r, http.MethodGet, "/api/exams/difficulties", "1", nil)
	var ds []model.Difficulty
	if code != http.StatusOK || json.Unmarshal(env.Data, &ds) != nil || len(ds) != 3 || ds[0].Name != "Easy" {
		t.Fatalf("unexpected difficulties %d %s", code, env.Data)
	}
}
