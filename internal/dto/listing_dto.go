package dto

import (
	"time"

	"github.com/owasp-nest/nest-api/internal/models"
)

// ListingQuery is the query string of a listing request.
type ListingQuery struct {
	Query string `query:"q" validate:"max=200"`
	Page  int    `query:"page" validate:"omitempty,min=1"`
}

// ListingResponse is the rendered state of a listing page.
type ListingResponse[T any] struct {
	Index      string `json:"index"`
	Title      string `json:"title"`
	Query      string `json:"query"`
	Page       int    `json:"page"`
	TotalPages int    `json:"total_pages"`
	IsLoaded   bool   `json:"is_loaded"`
	Items      []T    `json:"items"`
}

// ProjectCard is a project as shown on the projects page.
type ProjectCard struct {
	Key               string   `json:"key"`
	Name              string   `json:"name"`
	Summary           string   `json:"summary"`
	Level             string   `json:"level"`
	Type              string   `json:"type"`
	URL               string   `json:"url"`
	Leaders           Leaders  `json:"leaders"`
	Topics            []string `json:"topics"`
	Languages         []string `json:"languages"`
	StarsCount        int      `json:"stars_count"`
	ForksCount        int      `json:"forks_count"`
	ContributorsCount int      `json:"contributors_count"`
}

// ChapterCard is a chapter as shown on the chapters page.
type ChapterCard struct {
	Key     string  `json:"key"`
	Name    string  `json:"name"`
	Summary string  `json:"summary"`
	Region  string  `json:"region"`
	Country string  `json:"country"`
	City    string  `json:"city"`
	URL     string  `json:"url"`
	Leaders Leaders `json:"leaders"`
}

// CommitteeCard is a committee as shown on the committees page.
type CommitteeCard struct {
	Key     string  `json:"key"`
	Name    string  `json:"name"`
	Summary string  `json:"summary"`
	URL     string  `json:"url"`
	Leaders Leaders `json:"leaders"`
}

// IssueCard is a contribution opportunity as shown on the contribute page.
type IssueCard struct {
	Key            string    `json:"key"`
	Title          string    `json:"title"`
	Summary        string    `json:"summary"`
	ProjectName    string    `json:"project_name"`
	ProjectURL     string    `json:"project_url"`
	RepositoryName string    `json:"repository_name"`
	URL            string    `json:"url"`
	Labels         []string  `json:"labels"`
	OpenedAt       time.Time `json:"opened_at"`
}

// NewProjectCard maps a stored project.
func NewProjectCard(project models.Project) ProjectCard {
	return ProjectCard{
		Key:               project.Key,
		Name:              project.Name,
		Summary:           project.Summary,
		Level:             project.Level,
		Type:              project.Type,
		URL:               project.URL,
		Leaders:           LeadersFrom(project.Leaders),
		Topics:            nonNil(project.Topics),
		Languages:         nonNil(project.Languages),
		StarsCount:        project.StarsCount,
		ForksCount:        project.ForksCount,
		ContributorsCount: project.ContributorsCount,
	}
}

// NewChapterCard maps a stored chapter.
func NewChapterCard(chapter models.Chapter) ChapterCard {
	return ChapterCard{
		Key:     chapter.Key,
		Name:    chapter.Name,
		Summary: chapter.Summary,
		Region:  chapter.Region,
		Country: chapter.Country,
		City:    chapter.City,
		URL:     chapter.URL,
		Leaders: LeadersFrom(chapter.Leaders),
	}
}

// NewCommitteeCard maps a stored committee.
func NewCommitteeCard(committee models.Committee) CommitteeCard {
	return CommitteeCard{
		Key:     committee.Key,
		Name:    committee.Name,
		Summary: committee.Summary,
		URL:     committee.URL,
		Leaders: LeadersFrom(committee.Leaders),
	}
}

// NewIssueCard maps a stored issue.
func NewIssueCard(issue models.Issue) IssueCard {
	return IssueCard{
		Key:            issue.Key,
		Title:          issue.Title,
		Summary:        issue.Summary,
		ProjectName:    issue.ProjectName,
		ProjectURL:     issue.ProjectURL,
		RepositoryName: issue.RepositoryName,
		URL:            issue.URL,
		Labels:         nonNil(issue.Labels),
		OpenedAt:       issue.OpenedAt,
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
