package service

import (
	"context"

	"github.com/owasp-nest/nest-api/internal/programform"
	"github.com/owasp-nest/nest-api/internal/repository"
	"github.com/owasp-nest/nest-api/pkg/nestgraphql"
)

// Actor is the authenticated caller of a program operation.
type Actor struct {
	Login string
	// Token is forwarded to upstream APIs that act on the caller's behalf.
	Token string
}

// ProgramQuerySource builds the uniqueness query client for a caller.
type ProgramQuerySource interface {
	ForActor(actor Actor) programform.QueryClient
}

// ProgramQuerySourceFunc adapts a function to ProgramQuerySource.
type ProgramQuerySourceFunc func(actor Actor) programform.QueryClient

// ForActor calls f.
func (f ProgramQuerySourceFunc) ForActor(actor Actor) programform.QueryClient {
	return f(actor)
}

// NewDatabaseProgramQuery answers myPrograms from the local programs table.
func NewDatabaseProgramQuery(repo repository.ProgramRepository) ProgramQuerySource {
	return ProgramQuerySourceFunc(func(actor Actor) programform.QueryClient {
		return ownerProgramsQuery{repo: repo, login: actor.Login}
	})
}

type ownerProgramsQuery struct {
	repo  repository.ProgramRepository
	login string
}

func (q ownerProgramsQuery) MyPrograms(ctx context.Context) ([]programform.ProgramRef, error) {
	programs, _, err := q.repo.List(ctx, repository.ProgramFilter{Login: q.login})
	if err != nil {
		return nil, err
	}
	refs := make([]programform.ProgramRef, 0, len(programs))
	for _, program := range programs {
		refs = append(refs, programform.ProgramRef{Key: program.Key, Name: program.Name})
	}
	return refs, nil
}

// GraphQLPrograms is the part of the GraphQL client used for uniqueness checks.
type GraphQLPrograms interface {
	MyPrograms(ctx context.Context, bearer string) ([]nestgraphql.Program, error)
}

// NewGraphQLProgramQuery answers myPrograms from the Nest GraphQL API using the caller's token.
func NewGraphQLProgramQuery(client GraphQLPrograms) ProgramQuerySource {
	return ProgramQuerySourceFunc(func(actor Actor) programform.QueryClient {
		return programform.QueryFunc(func(ctx context.Context) ([]programform.ProgramRef, error) {
			programs, err := client.MyPrograms(ctx, actor.Token)
			if err != nil {
				return nil, err
			}
			if programs == nil {
				return nil, nil
			}
			refs := make([]programform.ProgramRef, 0, len(programs))
			for _, program := range programs {
				refs = append(refs, programform.ProgramRef{Key: program.Key, Name: program.Name})
			}
			return refs, nil
		})
	})
}
