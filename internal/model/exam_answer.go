package model

import "time"

// ExamAnswer 每个会话每道题至多一条，重复提交覆盖
type ExamAnswer struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID  string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_answer_session_question,priority:1" json:"sessionId"`
	QuestionID uint      `gorm:"not null;uniqueIndex:idx_answer_session_question,priority:2" json:"questionId"`
	OptionID   uint      `gorm:"not null" json:"optionId"`
	AnsweredAt time.Time `gorm:"not null" json:"answeredAt"`
}

func (ExamAnswer) TableName() string {
	return "exam_answers"
}
