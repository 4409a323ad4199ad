package model

import "time"

// Project groups the tracks and cue points of one cue-switching mix.
type Project struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	OwnerID   int64     `json:"ownerId" gorm:"index;not null"`
	Name      string    `json:"name" gorm:"size:200;not null"`
	Public    bool      `json:"public" gorm:"default:false;index"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (Project) TableName() string {
	return "projects"
}

// Track is an uploaded MP3 file of a project. Immutable once stored.
type Track struct {
	ID           string    `json:"id" gorm:"primaryKey;size:36"`
	ProjectID    string    `json:"projectId" gorm:"size:36;index;not null"`
	OriginalName string    `json:"originalName" gorm:"size:255;not null"`
	DisplayName  string    `json:"displayName" gorm:"size:255"` // ID3 title, falls back to the file name
	ObjectKey    string    `json:"-" gorm:"size:512;not null"`  // storage key, served through the audio route
	Size         int64     `json:"size"`
	Duration     float64   `json:"duration"` // seconds
	CreatedAt    time.Time `json:"createdAt"`
}

// TableName 指定表名
func (Track) TableName() string {
	return "tracks"
}

// CuePoint is a timeline position (seconds) at which playback switches track.
type CuePoint struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	ProjectID string    `json:"projectId" gorm:"size:36;index;not null"`
	Time      float64   `json:"time" gorm:"not null"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// TableName 指定表名
func (CuePoint) TableName() string {
	return "cue_points"
}

// ProjectDetail is a project with its tracks and cue points, cues sorted by time.
type ProjectDetail struct {
	Project
	Owner     string     `json:"owner,omitempty"` // artist name
	Tracks    []Track    `json:"tracks"`
	CuePoints []CuePoint `json:"cuePoints"`
}

// Models lists every persisted model, in migration order.
func Models() []interface{} {
	return []interface{}{&User{}, &Project{}, &Track{}, &CuePoint{}}
}
