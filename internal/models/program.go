package models

import (
	"time"

	"gorm.io/datatypes"
)

// Program statuses.
const (
	ProgramStatusDraft     = "draft"
	ProgramStatusPublished = "published"
	ProgramStatusCompleted = "completed"
)

// Program is a mentorship program owned by the GitHub user who created it.
type Program struct {
	ID           uint                        `gorm:"primaryKey" json:"-"`
	Key          string                      `gorm:"size:160;uniqueIndex;not null" json:"key"`
	Name         string                      `gorm:"size:255;not null" json:"name"`
	Description  string                      `gorm:"type:text" json:"description"`
	MenteesLimit int                         `gorm:"not null;default:0" json:"mentees_limit"`
	StartedAt    *time.Time                  `json:"started_at"`
	EndedAt      *time.Time                  `json:"ended_at"`
	Tags         datatypes.JSONSlice[string] `json:"tags"`
	Domains      datatypes.JSONSlice[string] `json:"domains"`
	AdminLogins  datatypes.JSONSlice[string] `json:"admin_logins"`
	Status       string                      `gorm:"size:32;not null;default:draft;index" json:"status"`
	OwnerLogin   string                      `gorm:"size:64;not null;index" json:"owner_login"`
	CreatedAt    time.Time                   `json:"created_at"`
	UpdatedAt    time.Time                   `json:"updated_at"`
}

// IsAdmin reports whether login owns or administers the program.
func (p Program) IsAdmin(login string) bool {
	if login == "" {
		return false
	}
	if p.OwnerLogin == login {
		return true
	}
	for _, admin := range p.AdminLogins {
		if admin == login {
			return true
		}
	}
	return false
}
