package testutil

import (
	"fmt"
	"testing"

	"testbank_backend/internal/model"

	"gorm.io/gorm"
)

func Lesson(tb testing.TB, db *gorm.DB, levelID uint, name string) model.Lesson {
	tb.Helper()
	l := model.Lesson{LevelID: levelID, Name: name}
	if err := db.Create(&l).Error; err != nil {
		tb.Fatalf("create lesson: %v", err)
	}
	return l
}

func Topic(tb testing.TB, db *gorm.DB, lessonID uint, name string) model.Topic {
	tb.Helper()
	t := model.Topic{LessonID: lessonID, Name: name}
	if err := db.Create(&t).Error; err != nil {
		tb.Fatalf("create topic: %v", err)
	}
	return t
}

// Questions 创建 n 道四选一题目，第一个选项为正确答案
func Questions(tb testing.TB, db *gorm.DB, topicID, difficultyID uint, n int) []model.Question {
	tb.Helper()
	qs := make([]model.Question, n)
	for i := range qs {
		q := model.Question{
			TopicID:      topicID,
			DifficultyID: difficultyID,
			Text:         fmt.Sprintf("topic %d question %d", topicID, i+1),
		}
		for j := 0; j < 4; j++ {
			q.Options = append(q.Options, model.Option{
				Text:      fmt.Sprintf("option %c", 'A'+j),
				IsCorrect: j == 0,
			})
		}
		if err := db.Create(&q).Error; err != nil {
			tb.Fatalf("create question: %v", err)
		}
		qs[i] = q
	}
	return qs
}

// CorrectOption 与 WrongOption 按 Questions 的约定取选项
func CorrectOption(q model.Question) uint {
	for _, o := range q.Options {
		if o.IsCorrect {
			return o.ID
		}
	}
	return 0
}

func WrongOption(q model.Question) uint {
	for _, o := range q.Options {
		if !o.IsCorrect {
			return o.ID
		}
	}
	return 0
}

func AnswerCount(tb testing.TB, db *gorm.DB, sessionID string) int64 {
	tb.Helper()
	var n int64
	if err := db.Model(&model.ExamAnswer{}).Where("session_id = ?", sessionID).Count(&n).Error; err != nil {
		tb.Fatalf("count answers: %v", err)
	}
	return n
}
