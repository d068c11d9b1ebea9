package main

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/retailcore/user-management/internal/config"
	"github.com/retailcore/user-management/internal/event"
	httptransport "github.com/retailcore/user-management/internal/http"
	"github.com/retailcore/user-management/internal/http/handler"
	httpmiddleware "github.com/retailcore/user-management/internal/http/middleware"
	"github.com/retailcore/user-management/internal/repository"
	"github.com/retailcore/user-management/internal/server"
	"github.com/retailcore/user-management/internal/service"
	"github.com/retailcore/user-management/internal/token"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newAWSConfig,
			newRepository,
			newPublisher,
			newTokenGenerator,
			newUserService,
			newClientService,
			newOAuthService,
			service.NewDiscoveryService,
			handler.NewOAuthHandler,
			handler.NewUserHandler,
			newAuthMiddleware,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newAWSConfig() (aws.Config, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return awsconfig.LoadDefaultConfig(ctx)
}

func newRepository(lc fx.Lifecycle, cfg config.Config, awsCfg aws.Config, logger *zap.Logger) (repository.Repository, error) {
	switch cfg.RepositoryDriver {
	case config.DriverMemory:
		return repository.NewMemoryRepository(), nil

	case config.DriverDynamoDB:
		return repository.NewDynamoDBRepository(dynamodb.NewFromConfig(awsCfg), cfg.TableName, logger), nil

	case config.DriverPostgres:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}

		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				pool.Close()
				return nil
			},
		})
		return repository.NewPostgresRepository(pool), nil

	default:
		return nil, fmt.Errorf("unknown repository driver %q", cfg.RepositoryDriver)
	}
}

func newPublisher(cfg config.Config, awsCfg aws.Config, logger *zap.Logger) event.Publisher {
	if cfg.UserCreatedTopicARN == "" {
		return event.NoopPublisher{}
	}
	return event.NewSNSPublisher(sns.NewFromConfig(awsCfg), cfg.UserCreatedTopicARN, logger)
}

func newTokenGenerator(cfg config.Config) *token.Generator {
	return token.NewGenerator(cfg.SessionTokenSecret, cfg.SessionTokenTTL)
}

func newUserService(repo repository.Repository, publisher event.Publisher, tokens *token.Generator, logger *zap.Logger) *service.UserService {
	return service.NewUserService(repo, publisher, tokens, logger)
}

func newClientService(repo repository.Repository, logger *zap.Logger) *service.ClientService {
	return service.NewClientService(repo, repo, logger)
}

func newOAuthService(repo repository.Repository, cfg config.Config, logger *zap.Logger) *service.OAuthService {
	return service.NewOAuthService(repo, cfg.AuthCodeTTL, cfg.AccessTokenTTL, logger)
}

func newAuthMiddleware(tokens *token.Generator) *httpmiddleware.Auth {
	return &httpmiddleware.Auth{Tokens: tokens}
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}
