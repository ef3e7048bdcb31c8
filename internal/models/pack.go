package models

import "time"

type Pack struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ModuleID  uint      `json:"module_id" gorm:"not null;index"`
	Name      string    `json:"name" gorm:"not null;size:200"`
	CreatedAt time.Time `json:"created_at"`

	Questions []Question `json:"questions,omitempty" gorm:"foreignKey:PackID;constraint:OnDelete:CASCADE"`
}

func (Pack) TableName() string {
	return "packs"
}

// Question ranks are dense (1..N) within a pack. The (pack_id, rank) unique
// constraint is created as deferrable by the migration so swaps can commit.
type Question struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	PackID    uint      `json:"pack_id" gorm:"not null;index"`
	Rank      int       `json:"rank" gorm:"column:rank;not null"`
	Content   string    `json:"content" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at"`

	Answers []Answer `json:"answers,omitempty" gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE"`
}

func (Question) TableName() string {
	return "questions"
}

type Answer struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	QuestionID uint   `json:"question_id" gorm:"not null;index"`
	Content    string `json:"content" gorm:"type:text;not null"`
	IsCorrect  bool   `json:"is_correct" gorm:"not null;default:false"`
}

func (Answer) TableName() string {
	return "answers"
}

// QuestionRank is one entry of a pack's ordering.
type QuestionRank struct {
	QuestionID uint `json:"question_id"`
	Rank       int  `json:"rank"`
}
