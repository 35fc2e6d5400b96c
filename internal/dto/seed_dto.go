package dto

import (
	"time"

	"github.com/owasp-nest/nest-api/internal/models"
)

// SeedProjectsRequest upserts projects into the database index.
type SeedProjectsRequest struct {
	Items []SeedProject `json:"items" validate:"required,min=1,max=500,dive"`
}

// SeedProject is one project record.
type SeedProject struct {
	Key               string   `json:"key" validate:"required,max=128"`
	Name              string   `json:"name" validate:"required,max=255"`
	Summary           string   `json:"summary"`
	Level             string   `json:"level" validate:"omitempty,max=32"`
	Type              string   `json:"type" validate:"omitempty,max=32"`
	URL               string   `json:"url" validate:"omitempty,url"`
	Leaders           []string `json:"leaders"`
	Topics            []string `json:"topics"`
	Languages         []string `json:"languages"`
	StarsCount        int      `json:"stars_count" validate:"min=0"`
	ForksCount        int      `json:"forks_count" validate:"min=0"`
	ContributorsCount int      `json:"contributors_count" validate:"min=0"`
}

// SeedChaptersRequest upserts chapters into the database index.
type SeedChaptersRequest struct {
	Items []SeedChapter `json:"items" validate:"required,min=1,max=500,dive"`
}

// SeedChapter is one chapter record.
type SeedChapter struct {
	Key     string   `json:"key" validate:"required,max=128"`
	Name    string   `json:"name" validate:"required,max=255"`
	Summary string   `json:"summary"`
	Region  string   `json:"region" validate:"omitempty,max=128"`
	Country string   `json:"country" validate:"omitempty,max=128"`
	City    string   `json:"city" validate:"omitempty,max=128"`
	URL     string   `json:"url" validate:"omitempty,url"`
	Leaders []string `json:"leaders"`
}

// SeedCommitteesRequest upserts committees into the database index.
type SeedCommitteesRequest struct {
	Items []SeedCommittee `json:"items" validate:"required,min=1,max=500,dive"`
}

// SeedCommittee is one committee record.
type SeedCommittee struct {
	Key     string   `json:"key" validate:"required,max=128"`
	Name    string   `json:"name" validate:"required,max=255"`
	Summary string   `json:"summary"`
	URL     string   `json:"url" validate:"omitempty,url"`
	Leaders []string `json:"leaders"`
}

// SeedIssuesRequest upserts contribution issues into the database index.
type SeedIssuesRequest struct {
	Items []SeedIssue `json:"items" validate:"required,min=1,max=500,dive"`
}

// SeedIssue is one issue record.
type SeedIssue struct {
	Key            string    `json:"key" validate:"required,max=255"`
	Title          string    `json:"title" validate:"required,max=512"`
	Summary        string    `json:"summary"`
	ProjectName    string    `json:"project_name" validate:"omitempty,max=255"`
	ProjectURL     string    `json:"project_url" validate:"omitempty,url"`
	RepositoryName string    `json:"repository_name" validate:"omitempty,max=255"`
	URL            string    `json:"url" validate:"omitempty,url"`
	Labels         []string  `json:"labels"`
	OpenedAt       time.Time `json:"opened_at"`
}

// SeedProgramsRequest imports mentorship programs.
type SeedProgramsRequest struct {
	Items []SeedProgram `json:"items" validate:"required,min=1,max=500,dive"`
}

// SeedProgram is one program record.
type SeedProgram struct {
	Key          string     `json:"key" validate:"omitempty,max=160"`
	Name         string     `json:"name" validate:"required,max=255"`
	Description  string     `json:"description"`
	MenteesLimit int        `json:"mentees_limit" validate:"min=0,max=10000"`
	StartedAt    *time.Time `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at"`
	Tags         []string   `json:"tags"`
	Domains      []string   `json:"domains"`
	AdminLogins  []string   `json:"admin_logins"`
	Status       string     `json:"status" validate:"omitempty,oneof=draft published completed"`
	OwnerLogin   string     `json:"owner_login" validate:"required,max=64"`
}

// SeedResponse reports how many rows a seed request touched.
type SeedResponse struct {
	Index    string `json:"index"`
	Affected int64  `json:"affected"`
}

// ToModel converts the seed record.
func (s SeedProject) ToModel() models.Project {
	return models.Project{
		Key:               s.Key,
		Name:              s.Name,
		Summary:           s.Summary,
		Level:             s.Level,
		Type:              s.Type,
		URL:               s.URL,
		Leaders:           s.Leaders,
		Topics:            s.Topics,
		Languages:         s.Languages,
		StarsCount:        s.StarsCount,
		ForksCount:        s.ForksCount,
		ContributorsCount: s.ContributorsCount,
	}
}

// ToModel converts the seed record.
func (s SeedChapter) ToModel() models.Chapter {
	return models.Chapter{
		Key:     s.Key,
		Name:    s.Name,
		Summary: s.Summary,
		Region:  s.Region,
		Country: s.Country,
		City:    s.City,
		URL:     s.URL,
		Leaders: s.Leaders,
	}
}

// ToModel converts the seed record.
func (s SeedCommittee) ToModel() models.Committee {
	return models.Committee{
		Key:     s.Key,
		Name:    s.Name,
		Summary: s.Summary,
		URL:     s.URL,
		Leaders: s.Leaders,
	}
}

// ToModel converts the seed record.
func (s SeedIssue) ToModel() models.Issue {
	return models.Issue{
		Key:            s.Key,
		Title:          s.Title,
		Summary:        s.Summary,
		ProjectName:    s.ProjectName,
		ProjectURL:     s.ProjectURL,
		RepositoryName: s.RepositoryName,
		URL:            s.URL,
		Labels:         s.Labels,
		OpenedAt:       s.OpenedAt,
	}
}

// ToModel converts the seed record.
func (s SeedProgram) ToModel() models.Program {
	return models.Program{
		Key:          s.Key,
		Name:         s.Name,
		Description:  s.Description,
		MenteesLimit: s.MenteesLimit,
		StartedAt:    s.StartedAt,
		EndedAt:      s.EndedAt,
		Tags:         s.Tags,
		Domains:      s.Domains,
		AdminLogins:  s.AdminLogins,
		Status:       s.Status,
		OwnerLogin:   s.OwnerLogin,
	}
}
