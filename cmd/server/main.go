package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	grpchealth "google.golang.org/grpc/health"

	"github.com/dtroode/journal-exchange/internal/api/grpc/health"
	grpcRouter "github.com/dtroode/journal-exchange/internal/api/grpc/router"
	grpcServer "github.com/dtroode/journal-exchange/internal/api/grpc/server"
	httpRouter "github.com/dtroode/journal-exchange/internal/api/http/router"
	httpServer "github.com/dtroode/journal-exchange/internal/api/http/server"
	"github.com/dtroode/journal-exchange/internal/app"
	"github.com/dtroode/journal-exchange/internal/config"
	"github.com/dtroode/journal-exchange/internal/logger"
	"github.com/dtroode/journal-exchange/internal/model"
	"github.com/dtroode/journal-exchange/internal/server"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

func main() {
	showVersion := pflag.BoolP("version", "v", false, "print build information and exit")
	checkConfig := pflag.Bool("check-config", false, "validate configuration and exit")
	pflag.Parse()

	if *showVersion {
		logAppVersion()
		return
	}

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	if *checkConfig {
		fmt.Println("configuration is valid")
		return
	}

	lg := logger.NewWithFormat(os.Stdout, cfg.LogLevel, logger.Format(cfg.LogFormat))
	logAppVersion()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, cfg, lg); err != nil {
		lg.Fatal("server stopped with error", "error", err)
	}
	lg.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, lg *logger.Logger) error {
	a, err := app.New(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			lg.Error("failed to close resources", "error", err)
		}
	}()

	healthServer := grpchealth.NewServer()
	reporter := health.NewReporter(healthServer, a.Probes, cfg.HealthInterval, lg)

	servers := []model.Server{
		httpServer.NewHTTPServer(httpRouter.New(a.Federation, a.Tokens, lg).Register(), ":"+cfg.HTTP.Port),
		grpcServer.NewGRPCServer(grpcRouter.New(healthServer, lg).Register(), ":"+cfg.GRPC.Port),
	}

	var sl model.SecurityLayer = server.NewPlainListener()
	if cfg.HTTP.EnableHTTPS {
		sl = server.NewTLSListener(cfg.HTTP.CertFileName, cfg.HTTP.PrivateKeyFileName)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return reporter.Run(gctx)
	})

	for _, s := range servers {
		g.Go(func() error {
			lg.Info("Starting server", "name", s.Name(), "address", s.Address())
			if err := s.Start(sl); err != nil {
				return fmt.Errorf("%s server: %w", s.Name(), err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		lg.Info("shutting down servers")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()

		for _, s := range servers {
			if err := s.Stop(shutdownCtx); err != nil {
				lg.Error("error during server shutdown", "name", s.Name(), "address", s.Address(), "error", err)
			}
		}
		return nil
	})

	return g.Wait()
}

func logAppVersion() {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Printf(tmpl, buildVersion, buildDate, buildCommit)
}
