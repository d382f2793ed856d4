package model

// swagger:model Lesson
type Lesson struct {
	BaseModel

	LevelID uint   `gorm:"index" json:"levelId"`
	Name    string `gorm:"size:200;not null" json:"name"`
}

func (Lesson) TableName() string {
	return "lessons"
}

// swagger:model Topic
type Topic struct {
	BaseModel

	LessonID uint   `gorm:"index;not null" json:"lessonId"`
	Name     string `gorm:"size:200;not null" json:"name"`
}

func (Topic) TableName() string {
	return "topics"
}

// swagger:model Difficulty
type Difficulty struct {
	BaseModel

	Name      string `gorm:"size:50;not null" json:"name"`
	SortOrder int    `gorm:"default:0" json:"sortOrder"`
}

func (Difficulty) TableName() string {
	return "difficulties"
}
