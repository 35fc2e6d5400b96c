package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/owasp-nest/nest-api/internal/models"
)

var (
	// ErrSeedDisabled indicates the seeding tools are disabled by configuration.
	ErrSeedDisabled = errors.New("seeding is disabled")
	// ErrSeedUnauthorized indicates the provided token is invalid.
	ErrSeedUnauthorized = errors.New("invalid seed token")
)

// Upserter writes records keyed by their natural key.
type Upserter[T any] interface {
	UpsertBatch(ctx context.Context, items []T) (int64, error)
}

// IndexInvalidator drops cached listing pages for an index.
type IndexInvalidator interface {
	Invalidate(ctx context.Context, index string) error
}

// SeedRepositories groups the index writers used by seeding.
type SeedRepositories struct {
	Projects   Upserter[models.Project]
	Chapters   Upserter[models.Chapter]
	Committees Upserter[models.Committee]
	Issues     Upserter[models.Issue]
	Programs   Upserter[models.Program]
}

// SeedService loads directory records into the database search backend.
type SeedService interface {
	SeedProjects(ctx context.Context, token string, items []models.Project) (int64, error)
	SeedChapters(ctx context.Context, token string, items []models.Chapter) (int64, error)
	SeedCommittees(ctx context.Context, token string, items []models.Committee) (int64, error)
	SeedIssues(ctx context.Context, token string, items []models.Issue) (int64, error)
	SeedPrograms(ctx context.Context, token string, items []models.Program) (int64, error)
}

type seedService struct {
	repos       SeedRepositories
	invalidator IndexInvalidator
	enabled     bool
	token       string
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	now         func() time.Time
}

// NewSeedService constructs a seeding service. invalidator may be nil.
func NewSeedService(repos SeedRepositories, invalidator IndexInvalidator, enabled bool, token string, logger zerolog.Logger) SeedService {
	return &seedService{
		repos:       repos,
		invalidator: invalidator,
		enabled:     enabled,
		token:       token,
		sanitizer:   bluemonday.UGCPolicy(),
		logger:      logger.With().Str("component", "seed_service").Logger(),
		now:         time.Now,
	}
}

func (s *seedService) SeedProjects(ctx context.Context, token string, items []models.Project) (int64, error) {
	for i := range items {
		items[i].Key = normalizeKey(items[i].Key, items[i].Name)
	}
	return seedIndex(ctx, s, token, models.Project{}.IndexName(), s.repos.Projects, items)
}

func (s *seedService) SeedChapters(ctx context.Context, token string, items []models.Chapter) (int64, error) {
	for i := range items {
		items[i].Key = normalizeKey(items[i].Key, items[i].Name)
	}
	return seedIndex(ctx, s, token, models.Chapter{}.IndexName(), s.repos.Chapters, items)
}

func (s *seedService) SeedCommittees(ctx context.Context, token string, items []models.Committee) (int64, error) {
	for i := range items {
		items[i].Key = normalizeKey(items[i].Key, items[i].Name)
	}
	return seedIndex(ctx, s, token, models.Committee{}.IndexName(), s.repos.Committees, items)
}

func (s *seedService) SeedIssues(ctx context.Context, token string, items []models.Issue) (int64, error) {
	now := s.now()
	for i := range items {
		items[i].Key = strings.TrimSpace(items[i].Key)
		if items[i].OpenedAt.IsZero() {
			items[i].OpenedAt = now
		}
	}
	return seedIndex(ctx, s, token, models.Issue{}.IndexName(), s.repos.Issues, items)
}

// SeedPrograms imports mentorship programs. Programs are not a listing
// index, so no listing cache is invalidated.
func (s *seedService) SeedPrograms(ctx context.Context, token string, items []models.Program) (int64, error) {
	for i := range items {
		items[i].Key = normalizeKey(items[i].Key, items[i].Name)
		items[i].Name = strings.TrimSpace(items[i].Name)
		items[i].Description = strings.TrimSpace(s.sanitizer.Sanitize(items[i].Description))
		items[i].OwnerLogin = strings.TrimSpace(items[i].OwnerLogin)
		if items[i].Status == "" {
			items[i].Status = models.ProgramStatusDraft
		}
	}
	return seedRecords(ctx, s, token, "programs", s.repos.Programs, items)
}

func seedIndex[T any](ctx context.Context, s *seedService, token, index string, repo Upserter[T], items []T) (int64, error) {
	affected, err := seedRecords(ctx, s, token, index, repo, items)
	if err != nil {
		return 0, err
	}

	if s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx, index); err != nil {
			s.logger.Warn().Err(err).Str("index", index).Msg("failed to invalidate listing cache")
		}
	}
	return affected, nil
}

func seedRecords[T any](ctx context.Context, s *seedService, token, target string, repo Upserter[T], items []T) (int64, error) {
	if !s.enabled || repo == nil {
		return 0, ErrSeedDisabled
	}
	if !s.validateToken(token) {
		return 0, ErrSeedUnauthorized
	}

	affected, err := repo.UpsertBatch(ctx, items)
	if err != nil {
		return 0, err
	}

	s.logger.Info().Str("target", target).Int64("affected", affected).Msg("records seeded")
	return affected, nil
}

func (s *seedService) validateToken(token string) bool {
	expected := strings.TrimSpace(s.token)
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.TrimSpace(token))) == 1
}

func normalizeKey(key, name string) string {
	if trimmed := strings.TrimSpace(key); trimmed != "" {
		return trimmed
	}
	return Slugify(name)
}
