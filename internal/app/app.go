// Package app assembles the federation core from configuration. It is shared
// by the server and the operator CLI.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/dtroode/journal-exchange/internal/api/grpc/health"
	"github.com/dtroode/journal-exchange/internal/archive"
	"github.com/dtroode/journal-exchange/internal/config"
	"github.com/dtroode/journal-exchange/internal/federation"
	"github.com/dtroode/journal-exchange/internal/logger"
	"github.com/dtroode/journal-exchange/internal/model"
	"github.com/dtroode/journal-exchange/internal/repository/memory"
	"github.com/dtroode/journal-exchange/internal/repository/postgres"
	"github.com/dtroode/journal-exchange/internal/service"
	"github.com/dtroode/journal-exchange/internal/storage/local"
	storage "github.com/dtroode/journal-exchange/internal/storage/minio"
	"github.com/dtroode/journal-exchange/internal/token"
)

type blobStore interface {
	model.Storage
	health.Pinger
}

// App holds the wired components.
type App struct {
	Config     *config.Config
	Logger     *logger.Logger
	Tokens     *service.TokenService
	Archives   *archive.Engine
	Federation *service.Federation
	// Probes are the dependencies reported by the health endpoint.
	Probes map[string]health.Pinger

	closers []func() error
}

// New connects storage and repositories and builds the services.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: log, Probes: make(map[string]health.Pinger)}

	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Probes["storage"] = blobs

	users, submissions, err := a.newRepositories(ctx, cfg)
	if err != nil {
		return nil, err
	}

	peers, err := federation.LoadRegistry(cfg.Federation.PeersFile)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to load peers: %w", err)
	}
	if peers.Len() == 0 {
		log.Warn("No federation peers configured, every instance is trusted")
	}

	a.Tokens = service.NewTokenService(token.NewJWT(cfg.JWT.Secret), log)
	a.Archives = archive.NewEngine(blobs, cfg.Federation.MaxArchiveBytes, log)
	client := federation.NewClient(cfg.Instance.BaseURL, cfg.Federation.Timeout, cfg.Federation.MaxArchiveBytes, log)

	a.Federation = service.NewFederation(users, submissions, a.Archives, a.Tokens, client, peers, service.FederationConfig{
		LocalBaseURL:     cfg.Instance.BaseURL,
		InstanceCode:     cfg.Instance.Code,
		DefaultAvatarURL: cfg.DefaultAvatarURL,
	}, log)

	return a, nil
}

// Close releases connections in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) newRepositories(ctx context.Context, cfg *config.Config) (model.UserStore, model.SubmissionStore, error) {
	if cfg.Database.DSN == "" {
		a.Logger.Warn("DATABASE_DSN is empty, submissions are kept in memory")
		return memory.NewUserRepository(), memory.NewSubmissionRepository(), nil
	}

	db, err := postgres.NewConnection(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	a.closers = append(a.closers, db.Close)
	a.Probes["database"] = db

	return postgres.NewUserRepository(db), postgres.NewSubmissionRepository(db), nil
}

func newBlobStore(ctx context.Context, cfg *config.Config) (blobStore, error) {
	if cfg.Storage.Backend == config.BackendMinIO {
		mc, err := minio.New(cfg.MinIO.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
			Secure: cfg.MinIO.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create minio client: %w", err)
		}
		store, err := storage.NewClient(ctx, mc, cfg.MinIO.Bucket)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize minio storage: %w", err)
		}
		return store, nil
	}

	store, err := local.NewStore(cfg.Storage.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize local storage: %w", err)
	}
	return store, nil
}
