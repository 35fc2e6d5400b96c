package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/owasp-nest/nest-api/internal/config"
	"github.com/owasp-nest/nest-api/internal/database"
	"github.com/owasp-nest/nest-api/internal/dto"
	"github.com/owasp-nest/nest-api/internal/handler"
	"github.com/owasp-nest/nest-api/internal/middleware"
	"github.com/owasp-nest/nest-api/internal/models"
	"github.com/owasp-nest/nest-api/internal/repository"
	"github.com/owasp-nest/nest-api/internal/router"
	"github.com/owasp-nest/nest-api/internal/search"
	"github.com/owasp-nest/nest-api/internal/service"
	"github.com/owasp-nest/nest-api/pkg/algolia"
	"github.com/owasp-nest/nest-api/pkg/nestgraphql"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("%v", err)
	}

	probes := map[string]handler.HealthProbe{"database": database.PingDatabase(db)}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
		probes["redis"] = database.PingRedis(redisClient)
	}

	var publisher service.EventPublisher
	if cfg.NATSURL != "" {
		natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName, logger)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Drain()
		publisher = natsConn
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	indexes := indexRepositories{
		projects:   repository.NewIndexRepository[models.Project](db, cfg.SearchPageSize),
		chapters:   repository.NewIndexRepository[models.Chapter](db, cfg.SearchPageSize),
		committees: repository.NewIndexRepository[models.Committee](db, cfg.SearchPageSize),
		issues:     repository.NewIndexRepository[models.Issue](db, cfg.SearchPageSize),
	}
	programRepo := repository.NewProgramRepository(db)

	clients, err := listingClients(cfg, indexes, logger)
	if err != nil {
		log.Fatalf("failed to configure search backend: %v", err)
	}

	var invalidator service.IndexInvalidator
	if redisClient != nil {
		projects := search.NewCachedClient(clients.Projects, redisClient, cfg.SearchCacheTTL, logger)
		clients.Projects = projects
		clients.Chapters = search.NewCachedClient(clients.Chapters, redisClient, cfg.SearchCacheTTL, logger)
		clients.Committees = search.NewCachedClient(clients.Committees, redisClient, cfg.SearchCacheTTL, logger)
		clients.Issues = search.NewCachedClient(clients.Issues, redisClient, cfg.SearchCacheTTL, logger)
		invalidator = projects
	}

	queries, err := programQueries(cfg, programRepo, logger)
	if err != nil {
		log.Fatalf("failed to configure program queries: %v", err)
	}

	listingService := service.NewListingService(clients, cfg.SearchDebounce, validate, logger)
	programService := service.NewProgramService(programRepo, queries, validate, publisher, cfg.EventsSubject, logger)
	seedService := service.NewSeedService(service.SeedRepositories{
		Projects:   indexes.projects,
		Chapters:   indexes.chapters,
		Committees: indexes.committees,
		Issues:     indexes.issues,
		Programs:   programRepo,
	}, invalidator, cfg.SeedEnabled, cfg.SeedToken, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{
		Logger:       &logger,
		AllowOrigins: cfg.AllowOrigins,
		AccessLog:    cfg.AppEnv == "development",
	})
	router.Register(app, cfg, router.Dependencies{
		ListingHandler: handler.NewListingHandler(listingService, logger),
		ProgramHandler: handler.NewProgramHandler(programService, logger),
		SeedHandler:    handler.NewSeedHandler(seedService, validate, logger),
		HealthProbes:   probes,
		JWTMiddleware:  middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	logger.Info().Str("address", cfg.HTTPAddress()).Str("search_backend", cfg.SearchBackend).Msg("server started")
	waitForShutdown(app, logger)
}

type indexRepositories struct {
	projects   *repository.IndexRepository[models.Project]
	chapters   *repository.IndexRepository[models.Chapter]
	committees *repository.IndexRepository[models.Committee]
	issues     *repository.IndexRepository[models.Issue]
}

// listingClients builds the uncached search client of every listing index.
func listingClients(cfg config.Config, indexes indexRepositories, logger zerolog.Logger) (service.ListingClients, error) {
	if cfg.SearchBackend == config.BackendAlgolia {
		client, err := algolia.New(algolia.Config{
			AppID:       cfg.AlgoliaAppID,
			APIKey:      cfg.AlgoliaAPIKey,
			BaseURL:     cfg.AlgoliaBaseURL,
			IndexPrefix: cfg.AlgoliaPrefix,
			HitsPerPage: cfg.SearchPageSize,
			Timeout:     cfg.HTTPTimeout,
			RetryMax:    cfg.HTTPRetryMax,
		}, logger)
		if err != nil {
			return service.ListingClients{}, err
		}
		return service.ListingClients{
			Projects:   search.NewRemoteClient[dto.ProjectCard](client, logger),
			Chapters:   search.NewRemoteClient[dto.ChapterCard](client, logger),
			Committees: search.NewRemoteClient[dto.CommitteeCard](client, logger),
			Issues:     search.NewRemoteClient[dto.IssueCard](client, logger),
		}, nil
	}

	return service.ListingClients{
		Projects:   search.Map[models.Project](indexes.projects, dto.NewProjectCard),
		Chapters:   search.Map[models.Chapter](indexes.chapters, dto.NewChapterCard),
		Committees: search.Map[models.Committee](indexes.committees, dto.NewCommitteeCard),
		Issues:     search.Map[models.Issue](indexes.issues, dto.NewIssueCard),
	}, nil
}

// programQueries selects where the name-uniqueness check reads the caller's programs from.
func programQueries(cfg config.Config, repo repository.ProgramRepository, logger zerolog.Logger) (service.ProgramQuerySource, error) {
	if cfg.ProgramsSource != config.BackendGraphQL {
		return service.NewDatabaseProgramQuery(repo), nil
	}

	client, err := nestgraphql.New(nestgraphql.Config{
		URL:      cfg.GraphQLURL,
		Timeout:  cfg.HTTPTimeout,
		RetryMax: cfg.HTTPRetryMax,
	}, logger)
	if err != nil {
		return nil, err
	}
	return service.NewGraphQLProgramQuery(client), nil
}

func waitForShutdown(app *fiber.App, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
