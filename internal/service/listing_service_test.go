package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/owasp-nest/nest-api/internal/dto"
	"github.com/owasp-nest/nest-api/internal/search"
)

type searchCall struct {
	index string
	query string
	page  int
}

type projectSearchStub struct {
	mu         sync.Mutex
	calls      []searchCall
	totalPages int
	err        error
}

func (s *projectSearchStub) Search(_ context.Context, index, query string, page int) (search.Page[dto.ProjectCard], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, searchCall{index: index, query: query, page: page})
	if s.err != nil {
		return search.Page[dto.ProjectCard]{}, s.err
	}
	return search.Page[dto.ProjectCard]{
		Items:      []dto.ProjectCard{{Key: query, Name: "result", Leaders: dto.NoLeaders()}},
		TotalPages: s.totalPages,
	}, nil
}

func TestListingServicePageReplaysQueryAndClampsPage(t *testing.T) {
	stub := &projectSearchStub{totalPages: 3}
	svc := NewListingService(ListingClients{Projects: stub}, 0, validator.New(), testLogger())

	result, err := svc.Page(context.Background(), "projects", dto.ListingQuery{Query: "zap", Page: 9})
	require.NoError(t, err)

	resp, ok := result.(dto.ListingResponse[dto.ProjectCard])
	require.True(t, ok)
	require.Equal(t, "projects", resp.Index)
	require.Equal(t, "OWASP Projects", resp.Title)
	require.Equal(t, "zap", resp.Query)
	require.Equal(t, 3, resp.Page)
	require.True(t, resp.IsLoaded)
	require.Equal(t, []searchCall{
		{index: "projects", query: "zap", page: 1},
		{index: "projects", query: "zap", page: 3},
	}, stub.calls)
}

func TestListingServicePageKeepsQueryVerbatim(t *testing.T) {
	stub := &projectSearchStub{totalPages: 1}
	svc := NewListingService(ListingClients{Projects: stub}, 0, validator.New(), testLogger())

	result, err := svc.Page(context.Background(), "projects", dto.ListingQuery{Query: " juice shop "})
	require.NoError(t, err)
	resp := result.(dto.ListingResponse[dto.ProjectCard])
	require.Equal(t, " juice shop ", resp.Query)
	require.Equal(t, []searchCall{{index: "projects", query: " juice shop ", page: 1}}, stub.calls)
}

func TestListingServicePageFirstPageOnly(t *testing.T) {
	stub := &projectSearchStub{totalPages: 1}
	svc := NewListingService(ListingClients{Projects: stub}, 0, validator.New(), testLogger())

	result, err := svc.Page(context.Background(), "projects", dto.ListingQuery{})
	require.NoError(t, err)
	resp := result.(dto.ListingResponse[dto.ProjectCard])
	require.Equal(t, 1, resp.Page)
	require.Len(t, stub.calls, 1)
}

func TestListingServicePageBackendFailureStillLoads(t *testing.T) {
	stub := &projectSearchStub{err: errors.New("search down")}
	svc := NewListingService(ListingClients{Projects: stub}, 0, validator.New(), testLogger())

	result, err := svc.Page(context.Background(), "projects", dto.ListingQuery{Query: "nest"})
	require.NoError(t, err)
	resp := result.(dto.ListingResponse[dto.ProjectCard])
	require.True(t, resp.IsLoaded)
	require.Empty(t, resp.Items)
	require.NotNil(t, resp.Items)
}

func TestListingServiceUnknownIndexAndValidation(t *testing.T) {
	svc := NewListingService(ListingClients{Projects: &projectSearchStub{}}, 0, validator.New(), testLogger())

	require.Equal(t, []string{"projects"}, svc.Indexes())

	_, err := svc.Page(context.Background(), "chapters", dto.ListingQuery{})
	require.ErrorIs(t, err, ErrUnknownIndex)

	_, err = svc.Page(context.Background(), "projects", dto.ListingQuery{Page: -1})
	var validationErrs validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrs)
}
