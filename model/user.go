package model

import "time"

// User is an artist account that owns projects.
type User struct {
	ID           int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Email        string    `json:"email" gorm:"size:255;uniqueIndex;not null"`
	ArtistName   string    `json:"artistName" gorm:"size:100;not null"`
	Description  string    `json:"description,omitempty" gorm:"type:text"`
	PasswordHash string    `json:"-" gorm:"size:255;not null"` // Not exposed in API responses
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}
