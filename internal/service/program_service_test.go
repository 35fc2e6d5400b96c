package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/owasp-nest/nest-api/internal/dto"
	"github.com/owasp-nest/nest-api/internal/models"
	"github.com/owasp-nest/nest-api/internal/programform"
	"github.com/owasp-nest/nest-api/internal/repository"
	"github.com/owasp-nest/nest-api/pkg/nestgraphql"
)

type programRepoStub struct {
	programs map[string]models.Program
	listErr  error
	created  int
	updated  int
}

func newProgramRepoStub(programs ...models.Program) *programRepoStub {
	stub := &programRepoStub{programs: make(map[string]models.Program)}
	for _, program := range programs {
		stub.programs[program.Key] = program
	}
	return stub
}

func (r *programRepoStub) List(_ context.Context, filter repository.ProgramFilter) ([]models.Program, int64, error) {
	if r.listErr != nil {
		return nil, 0, r.listErr
	}
	keys := make([]string, 0, len(r.programs))
	for key := range r.programs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	result := make([]models.Program, 0)
	for _, key := range keys {
		program := r.programs[key]
		if filter.Login != "" && !program.IsAdmin(filter.Login) {
			continue
		}
		if filter.Status != "" && program.Status != filter.Status {
			continue
		}
		result = append(result, program)
	}
	return result, int64(len(result)), nil
}

func (r *programRepoStub) GetByKey(_ context.Context, key string) (models.Program, error) {
	program, ok := r.programs[key]
	if !ok {
		return models.Program{}, gorm.ErrRecordNotFound
	}
	return program, nil
}

func (r *programRepoStub) KeyExists(_ context.Context, key string) (bool, error) {
	_, ok := r.programs[key]
	return ok, nil
}

func (r *programRepoStub) Create(_ context.Context, program *models.Program) error {
	r.created++
	program.CreatedAt = time.Now()
	r.programs[program.Key] = *program
	return nil
}

func (r *programRepoStub) Update(_ context.Context, program *models.Program) error {
	r.updated++
	r.programs[program.Key] = *program
	return nil
}

func (r *programRepoStub) UpsertBatch(_ context.Context, programs []models.Program) (int64, error) {
	for _, program := range programs {
		r.programs[program.Key] = program
	}
	return int64(len(programs)), nil
}

type publishedEvent struct {
	subject string
	event   ProgramEvent
}

type publisherStub struct {
	events []publishedEvent
}

func (p *publisherStub) Publish(subject string, data []byte) error {
	var event ProgramEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return err
	}
	p.events = append(p.events, publishedEvent{subject: subject, event: event})
	return nil
}

type graphQLStub struct {
	programs []nestgraphql.Program
	err      error
	bearer   string
}

func (g *graphQLStub) MyPrograms(_ context.Context, bearer string) ([]nestgraphql.Program, error) {
	g.bearer = bearer
	return g.programs, g.err
}

func strPtr(value string) *string {
	return &value
}

func textPtr(value string) *dto.FieldText {
	text := dto.FieldText(value)
	return &text
}

func newProgramServiceForTest(repo repository.ProgramRepository, publisher EventPublisher) ProgramService {
	return NewProgramService(repo, NewDatabaseProgramQuery(repo), validator.New(), publisher, "nest.programs", testLogger())
}

func TestProgramServiceCreatePersistsSanitizedProgram(t *testing.T) {
	repo := newProgramRepoStub(models.Program{Key: "appsec-mentoring", Name: "Other Owner", OwnerLogin: "carol"})
	publisher := &publisherStub{}
	svc := newProgramServiceForTest(repo, publisher)

	resp, err := svc.Create(context.Background(), Actor{Login: "alice"}, dto.ProgramFormRequest{
		Name:         strPtr("  AppSec Mentoring "),
		Description:  strPtr(`<p>Learn</p><script>alert(1)</script>`),
		MenteesLimit: textPtr("12"),
		StartedAt:    strPtr("2024-01-01"),
		EndedAt:      strPtr("2024-06-30"),
		Tags:         strPtr("appsec, web ,"),
	})
	require.NoError(t, err)
	require.Equal(t, "appsec-mentoring-2", resp.Key)
	require.Equal(t, "AppSec Mentoring", resp.Name)
	require.Equal(t, "<p>Learn</p>", resp.Description)
	require.Equal(t, 12, resp.MenteesLimit)
	require.Equal(t, []string{"appsec", "web"}, resp.Tags)
	require.Equal(t, models.ProgramStatusDraft, resp.Status)
	require.Equal(t, "alice", resp.OwnerLogin)
	require.NotNil(t, resp.StartedAt)
	require.Equal(t, "2024-01-01", resp.StartedAt.Format("2006-01-02"))

	require.Len(t, publisher.events, 1)
	require.Equal(t, "nest.programs.created", publisher.events[0].subject)
	require.Equal(t, "program.created", publisher.events[0].event.Type)
	require.Equal(t, "appsec-mentoring-2", publisher.events[0].event.Key)
}

func TestProgramServiceCreateRejectsInvalidForm(t *testing.T) {
	repo := newProgramRepoStub()
	svc := newProgramServiceForTest(repo, nil)

	_, err := svc.Create(context.Background(), Actor{Login: "alice"}, dto.ProgramFormRequest{
		Name:         strPtr("   "),
		MenteesLimit: textPtr("5.5"),
	})

	var formErr *FormError
	require.ErrorAs(t, err, &formErr)
	require.Contains(t, formErr.Details(), "name")
	require.Contains(t, formErr.Details(), "menteesLimit")
	require.Zero(t, repo.created)
}

func TestProgramServiceCreateRejectsOversizedMenteesLimit(t *testing.T) {
	repo := newProgramRepoStub()
	svc := newProgramServiceForTest(repo, nil)

	_, err := svc.Create(context.Background(), Actor{Login: "alice"}, dto.ProgramFormRequest{
		Name:         strPtr("Huge Program"),
		MenteesLimit: textPtr("1e20"),
	})

	var formErr *FormError
	require.ErrorAs(t, err, &formErr)
	require.Equal(t, "Mentees limit must be at most 10000", formErr.Details()["menteesLimit"])
	require.Zero(t, repo.created)
	require.Empty(t, repo.programs)
}

func TestProgramServiceCreateRejectsDuplicateName(t *testing.T) {
	repo := newProgramRepoStub(models.Program{Key: "test-program", Name: "test program", OwnerLogin: "alice"})
	svc := newProgramServiceForTest(repo, nil)

	_, err := svc.Create(context.Background(), Actor{Login: "alice"}, dto.ProgramFormRequest{Name: strPtr("Test Program")})

	var formErr *FormError
	require.ErrorAs(t, err, &formErr)
	require.Equal(t, programform.DuplicateNameMessage, formErr.Details()["name"])
	require.Zero(t, repo.created)
}

func TestProgramServiceCreateRejectsAdminLogins(t *testing.T) {
	svc := newProgramServiceForTest(newProgramRepoStub(), nil)

	_, err := svc.Create(context.Background(), Actor{Login: "alice"}, dto.ProgramFormRequest{
		Name:        strPtr("Fresh"),
		AdminLogins: strPtr("bob"),
	})
	require.ErrorIs(t, err, programform.ErrUnknownField)
}

func TestProgramServiceCreateSurvivesQueryFailure(t *testing.T) {
	repo := newProgramRepoStub()
	repo.listErr = errors.New("database unavailable")
	svc := newProgramServiceForTest(repo, nil)

	resp, err := svc.Create(context.Background(), Actor{Login: "alice"}, dto.ProgramFormRequest{Name: strPtr("Resilient")})
	require.NoError(t, err)
	require.Equal(t, "resilient", resp.Key)
	require.Equal(t, 1, repo.created)
}

func TestProgramServiceUpdateAllowsOwnNameAndChecksAccess(t *testing.T) {
	started := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := newProgramRepoStub(
		models.Program{Key: "test-key", Name: "Test Program", OwnerLogin: "alice", StartedAt: &started, Status: models.ProgramStatusDraft},
		models.Program{Key: "other-key", Name: "Other Program", OwnerLogin: "alice"},
	)
	publisher := &publisherStub{}
	svc := newProgramServiceForTest(repo, publisher)

	resp, err := svc.Update(context.Background(), Actor{Login: "alice"}, "test-key", dto.ProgramFormRequest{
		Name:        strPtr("test program"),
		Status:      strPtr(models.ProgramStatusPublished),
		AdminLogins: strPtr("bob, carol"),
	})
	require.NoError(t, err)
	require.Equal(t, "test-key", resp.Key)
	require.Equal(t, "test program", resp.Name)
	require.Equal(t, models.ProgramStatusPublished, resp.Status)
	require.Equal(t, []string{"bob", "carol"}, resp.AdminLogins)
	require.Equal(t, "2024-01-01", resp.StartedAt.Format("2006-01-02"))
	require.Equal(t, "nest.programs.updated", publisher.events[0].subject)

	_, err = svc.Update(context.Background(), Actor{Login: "alice"}, "test-key", dto.ProgramFormRequest{Name: strPtr("Other Program")})
	var formErr *FormError
	require.ErrorAs(t, err, &formErr)
	require.Equal(t, programform.DuplicateNameMessage, formErr.Details()["name"])

	_, err = svc.Update(context.Background(), Actor{Login: "mallory"}, "test-key", dto.ProgramFormRequest{})
	require.ErrorIs(t, err, ErrProgramForbidden)

	_, err = svc.Update(context.Background(), Actor{Login: "alice"}, "missing", dto.ProgramFormRequest{})
	require.ErrorIs(t, err, ErrProgramNotFound)

	_, err = svc.Update(context.Background(), Actor{Login: "bob"}, "test-key", dto.ProgramFormRequest{Description: strPtr("co-admin edit")})
	require.NoError(t, err)
}

func TestProgramServiceValidateShowsTouchedErrorsOnly(t *testing.T) {
	svc := newProgramServiceForTest(newProgramRepoStub(), nil)

	resp, err := svc.Validate(context.Background(), Actor{Login: "alice"}, dto.ProgramValidateRequest{
		Fields: dto.ProgramFormRequest{
			Name:         strPtr(""),
			MenteesLimit: textPtr("-3"),
			StartedAt:    strPtr("2024-12-31"),
			EndedAt:      strPtr("2024-01-01"),
		},
		Touched: []string{"menteesLimit"},
	})
	require.NoError(t, err)
	require.False(t, resp.Valid)
	require.Equal(t, map[string]string{"menteesLimit": "Mentees limit must be a non-negative whole number"}, resp.Errors)
	require.Equal(t, []string{"menteesLimit"}, resp.Touched)

	_, err = svc.Validate(context.Background(), Actor{Login: "alice"}, dto.ProgramValidateRequest{Touched: []string{"adminLogins"}})
	require.ErrorIs(t, err, programform.ErrUnknownField)
}

func TestProgramServiceListMine(t *testing.T) {
	repo := newProgramRepoStub(
		models.Program{Key: "a", Name: "A", OwnerLogin: "alice", Status: models.ProgramStatusDraft},
		models.Program{Key: "b", Name: "B", OwnerLogin: "bob", Status: models.ProgramStatusDraft},
	)
	svc := newProgramServiceForTest(repo, nil)

	resp, err := svc.ListMine(context.Background(), Actor{Login: "alice"}, dto.ProgramListRequest{})
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	require.Equal(t, "a", resp.Items[0].Key)
	require.Equal(t, dto.PaginationMeta{Page: 1, PageSize: 20, TotalItems: 1, TotalPages: 1}, resp.Pagination)

	_, err = svc.ListMine(context.Background(), Actor{Login: "alice"}, dto.ProgramListRequest{Status: "archived"})
	var validationErrs validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrs)
}

func TestGraphQLProgramQueryForwardsTokenAndKeepsNil(t *testing.T) {
	client := &graphQLStub{}
	query := NewGraphQLProgramQuery(client).ForActor(Actor{Login: "alice", Token: "jwt"})

	refs, err := query.MyPrograms(context.Background())
	require.NoError(t, err)
	require.Nil(t, refs)
	require.Equal(t, "jwt", client.bearer)

	client.programs = []nestgraphql.Program{{Key: "k", Name: "N"}}
	refs, err = query.MyPrograms(context.Background())
	require.NoError(t, err)
	require.Equal(t, []programform.ProgramRef{{Key: "k", Name: "N"}}, refs)
}

func TestSlugify(t *testing.T) {
	require.Equal(t, "owasp-top-10-2025", Slugify("  OWASP Top 10: 2025! "))
	require.Equal(t, "", Slugify("!!!"))
}
