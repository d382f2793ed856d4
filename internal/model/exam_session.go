package model

import "time"

// ExamSession 一次考试会话。FinishedAt 为空表示进行中；Score 仅在 FinishedAt 写入后才有值
// swagger:model ExamSession
type ExamSession struct {
	UUIDBase

	OwnerID          uint       `gorm:"index;not null" json:"ownerId"`
	LessonID         uint       `gorm:"index;not null" json:"lessonId"`
	TopicIDs         string     `gorm:"size:500" json:"topicIds"` // 开考时的主题过滤，逗号分隔，空表示全部
	DifficultyID     *uint      `json:"difficultyId,omitempty"`
	QuestionCount    int        `gorm:"not null" json:"questionCount"`
	TimeLimitMinutes int        `gorm:"not null" json:"timeLimitMinutes"`
	StartedAt        time.Time  `gorm:"not null" json:"startedAt"`
	FinishedAt       *time.Time `json:"finishedAt,omitempty"`
	Score            *int       `json:"score,omitempty"`
	CorrectCount     *int       `json:"correctCount,omitempty"`
}

func (ExamSession) TableName() string {
	return "exam_sessions"
}

func (s *ExamSession) Completed() bool {
	return s.FinishedAt != nil
}

// Deadline 作答截止时间，以服务端开考时间为准
func (s *ExamSession) Deadline() time.Time {
	return s.StartedAt.Add(time.Duration(s.TimeLimitMinutes) * time.Minute)
}

// SessionQuestion 开考时冻结的题目及顺序，创建后不再变化
type SessionQuestion struct {
	SessionID    string `gorm:"primaryKey;type:varchar(36);uniqueIndex:idx_session_order,priority:1" json:"sessionId"`
	QuestionID   uint   `gorm:"primaryKey;autoIncrement:false" json:"questionId"`
	DisplayOrder int    `gorm:"not null;uniqueIndex:idx_session_order,priority:2" json:"displayOrder"`
}

func (SessionQuestion) TableName() string {
	return "exam_session_questions"
}
