package models

import (
	"time"

	"gorm.io/datatypes"
)

// Searchable is implemented by records served from a listing index.
type Searchable interface {
	IndexName() string
	// SearchColumns are matched with a case-insensitive substring query.
	SearchColumns() []string
	// RankText is the text relevance is ranked against.
	RankText() string
	// DefaultOrder orders results for the empty query.
	DefaultOrder() string
}

// Project is an OWASP project listed on the projects page.
type Project struct {
	ID                uint                        `gorm:"primaryKey" json:"-"`
	Key               string                      `gorm:"size:128;uniqueIndex;not null" json:"key"`
	Name              string                      `gorm:"size:255;not null" json:"name"`
	Summary           string                      `gorm:"type:text" json:"summary"`
	Level             string                      `gorm:"size:32;index" json:"level"`
	Type              string                      `gorm:"size:32" json:"type"`
	URL               string                      `gorm:"size:512" json:"url"`
	Leaders           datatypes.JSONSlice[string] `json:"leaders"`
	Topics            datatypes.JSONSlice[string] `json:"topics"`
	Languages         datatypes.JSONSlice[string] `json:"languages"`
	StarsCount        int                         `json:"stars_count"`
	ForksCount        int                         `json:"forks_count"`
	ContributorsCount int                         `json:"contributors_count"`
	UpdatedAt         time.Time                   `json:"updated_at"`
}

func (Project) IndexName() string { return "projects" }
func (Project) SearchColumns() []string { return []string{"name", "summary", "level", "type"} }
func (p Project) RankText() string { return p.Name }
func (Project) DefaultOrder() string { return "stars_count DESC, name ASC" }

// Chapter is a local OWASP chapter.
type Chapter struct {
	ID        uint                        `gorm:"primaryKey" json:"-"`
	Key       string                      `gorm:"size:128;uniqueIndex;not null" json:"key"`
	Name      string                      `gorm:"size:255;not null" json:"name"`
	Summary   string                      `gorm:"type:text" json:"summary"`
	Region    string                      `gorm:"size:128;index" json:"region"`
	Country   string                      `gorm:"size:128" json:"country"`
	City      string                      `gorm:"size:128" json:"city"`
	URL       string                      `gorm:"size:512" json:"url"`
	Leaders   datatypes.JSONSlice[string] `json:"leaders"`
	UpdatedAt time.Time                   `json:"updated_at"`
}

func (Chapter) IndexName() string { return "chapters" }
func (Chapter) SearchColumns() []string { return []string{"name", "summary", "region", "country", "city"} }
func (c Chapter) RankText() string { return c.Name }
func (Chapter) DefaultOrder() string { return "name ASC" }

// Committee is an OWASP committee.
type Committee struct {
	ID        uint                        `gorm:"primaryKey" json:"-"`
	Key       string                      `gorm:"size:128;uniqueIndex;not null" json:"key"`
	Name      string                      `gorm:"size:255;not null" json:"name"`
	Summary   string                      `gorm:"type:text" json:"summary"`
	URL       string                      `gorm:"size:512" json:"url"`
	Leaders   datatypes.JSONSlice[string] `json:"leaders"`
	UpdatedAt time.Time                   `json:"updated_at"`
}

func (Committee) IndexName() string { return "committees" }
func (Committee) SearchColumns() []string { return []string{"name", "summary"} }
func (c Committee) RankText() string { return c.Name }
func (Committee) DefaultOrder() string { return "name ASC" }

// Issue is an open contribution opportunity shown on the contribute page.
type Issue struct {
	ID             uint                        `gorm:"primaryKey" json:"-"`
	Key            string                      `gorm:"size:255;uniqueIndex;not null" json:"key"`
	Title          string                      `gorm:"size:512;not null" json:"title"`
	Summary        string                      `gorm:"type:text" json:"summary"`
	ProjectName    string                      `gorm:"size:255;index" json:"project_name"`
	ProjectURL     string                      `gorm:"size:512" json:"project_url"`
	RepositoryName string                      `gorm:"size:255" json:"repository_name"`
	URL            string                      `gorm:"size:512" json:"url"`
	Labels         datatypes.JSONSlice[string] `json:"labels"`
	OpenedAt       time.Time                   `gorm:"index" json:"opened_at"`
	UpdatedAt      time.Time                   `json:"updated_at"`
}

func (Issue) IndexName() string { return "issues" }
func (Issue) SearchColumns() []string { return []string{"title", "summary", "project_name", "repository_name"} }
func (i Issue) RankText() string { return i.Title }
func (Issue) DefaultOrder() string { return "opened_at DESC" }
