package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/owasp-nest/nest-api/internal/models"
)

type recordingUpserter[T any] struct {
	items []T
	err   error
}

func (r *recordingUpserter[T]) UpsertBatch(_ context.Context, items []T) (int64, error) {
	r.items = items
	if r.err != nil {
		return 0, r.err
	}
	return int64(len(items)), nil
}

type recordingInvalidator struct {
	indexes []string
	err     error
}

func (r *recordingInvalidator) Invalidate(_ context.Context, index string) error {
	r.indexes = append(r.indexes, index)
	return r.err
}

func TestSeedServiceTokenGuard(t *testing.T) {
	projects := &recordingUpserter[models.Project]{}
	svc := NewSeedService(SeedRepositories{Projects: projects}, nil, true, "secret", testLogger())

	_, err := svc.SeedProjects(context.Background(), "wrong", []models.Project{{Name: "ZAP"}})
	require.ErrorIs(t, err, ErrSeedUnauthorized)
	require.Nil(t, projects.items)

	affected, err := svc.SeedProjects(context.Background(), " secret ", []models.Project{{Name: "OWASP Juice Shop"}})
	require.NoError(t, err)
	require.Equal(t, int64(1), affected)
	require.Equal(t, "owasp-juice-shop", projects.items[0].Key)
}

func TestSeedServiceDisabled(t *testing.T) {
	svc := NewSeedService(SeedRepositories{Chapters: &recordingUpserter[models.Chapter]{}}, nil, false, "secret", testLogger())

	_, err := svc.SeedChapters(context.Background(), "secret", []models.Chapter{{Key: "london"}})
	require.ErrorIs(t, err, ErrSeedDisabled)

	enabledWithoutRepo := NewSeedService(SeedRepositories{}, nil, true, "secret", testLogger())
	_, err = enabledWithoutRepo.SeedCommittees(context.Background(), "secret", []models.Committee{{Key: "x"}})
	require.ErrorIs(t, err, ErrSeedDisabled)
}

func TestSeedServiceInvalidatesListingCache(t *testing.T) {
	issues := &recordingUpserter[models.Issue]{}
	invalidator := &recordingInvalidator{err: errors.New("redis down")}
	svc := NewSeedService(SeedRepositories{Issues: issues}, invalidator, true, "secret", testLogger()).(*seedService)
	fixed := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	affected, err := svc.SeedIssues(context.Background(), "secret", []models.Issue{{Key: " owasp/nest#7 ", Title: "Fix"}})
	require.NoError(t, err)
	require.Equal(t, int64(1), affected)
	require.Equal(t, []string{"issues"}, invalidator.indexes)
	require.Equal(t, "owasp/nest#7", issues.items[0].Key)
	require.Equal(t, fixed, issues.items[0].OpenedAt)
}

func TestSeedServicePropagatesRepositoryErrors(t *testing.T) {
	committees := &recordingUpserter[models.Committee]{err: errors.New("db down")}
	invalidator := &recordingInvalidator{}
	svc := NewSeedService(SeedRepositories{Committees: committees}, invalidator, true, "secret", testLogger())

	_, err := svc.SeedCommittees(context.Background(), "secret", []models.Committee{{Name: "Education"}})
	require.EqualError(t, err, "db down")
	require.Empty(t, invalidator.indexes)
}

func TestSeedServiceProgramsNormalizesWithoutInvalidatingListings(t *testing.T) {
	programs := &recordingUpserter[models.Program]{}
	invalidator := &recordingInvalidator{}
	svc := NewSeedService(SeedRepositories{Programs: programs}, invalidator, true, "secret", testLogger())

	affected, err := svc.SeedPrograms(context.Background(), "secret", []models.Program{{
		Name:        " GSoC 2025 ",
		Description: `<p>Summer</p><script>alert(1)</script>`,
		OwnerLogin:  " alice ",
	}})
	require.NoError(t, err)
	require.Equal(t, int64(1), affected)
	require.Empty(t, invalidator.indexes)

	stored := programs.items[0]
	require.Equal(t, "gsoc-2025", stored.Key)
	require.Equal(t, "GSoC 2025", stored.Name)
	require.Equal(t, "<p>Summer</p>", stored.Description)
	require.Equal(t, "alice", stored.OwnerLogin)
	require.Equal(t, models.ProgramStatusDraft, stored.Status)

	_, err = svc.SeedPrograms(context.Background(), "wrong", []models.Program{{Name: "Other"}})
	require.ErrorIs(t, err, ErrSeedUnauthorized)
}
