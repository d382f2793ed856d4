package model

// Question 题库中的单选题，由出题方维护，考试核心只读
// swagger:model Question
type Question struct {
	BaseModel

	TopicID      uint     `gorm:"index;not null" json:"topicId"`
	DifficultyID uint     `gorm:"index;not null" json:"difficultyId"`
	Text         string   `gorm:"type:text;not null" json:"text"`
	Options      []Option `gorm:"foreignKey:QuestionID" json:"options,omitempty"`
}

func (Question) TableName() string {
	return "questions"
}

// Option 每道题有且仅有一个 IsCorrect 选项
// swagger:model Option
type Option struct {
	BaseModel

	QuestionID uint   `gorm:"index;not null" json:"questionId"`
	Text       string `gorm:"type:text;not null" json:"text"`
	IsCorrect  bool   `gorm:"default:false" json:"-"`
}

func (Option) TableName() string {
	return "options"
}
