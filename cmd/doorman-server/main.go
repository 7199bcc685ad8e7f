package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/doorman-labs/doorman/internal/config"
	dbpkg "github.com/doorman-labs/doorman/internal/db"
	"github.com/doorman-labs/doorman/internal/doorman/platform/fake"
	"github.com/doorman-labs/doorman/internal/doorman/service"
	sqlitestore "github.com/doorman-labs/doorman/internal/doorman/store/sqlite"
	"github.com/doorman-labs/doorman/internal/httpapi"
)

func main() {
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "doorman-server ", log.LstdFlags|log.LUTC)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := dbpkg.Open(ctx, dbpkg.Config{Path: cfg.DBPath, Env: cfg.Env})
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer conn.Close()

	writer := dbpkg.NewWorker(conn)
	defer writer.Close()

	requestStore := sqlitestore.NewRequestStore(conn, writer)
	grantStore := sqlitestore.NewGrantStore(conn, writer)

	// Platform client (in-memory guild for now; the gateway adapter that
	// feeds real events lives outside this repo).
	guild := fake.NewGuild("dev-guild")
	if cfg.GuardedChannelID != "" {
		guild.AddVoiceChannel(cfg.GuardedChannelID, "guarded-room", "", false)
	}

	scheduler := service.NewRevokeScheduler()
	grantMgr := service.NewGrantManager(guild, grantStore, scheduler, logger)
	approval := service.NewApprovalResolver(guild, logger)
	knockSvc := service.NewKnockService(requestStore, grantMgr, approval, guild, guild, service.KnockConfig{
		RequestTTL:       cfg.RequestTTL,
		GrantTTL:         cfg.GrantTTL,
		GuardedChannelID: cfg.GuardedChannelID,
	}, logger)
	watcher := service.NewPresenceWatcher(grantStore, grantMgr, scheduler, cfg.ExitGrace, logger)
	_ = watcher // dispatched by the gateway adapter

	sweeper := service.NewSweeper(requestStore, cfg.SweepInterval, logger)
	if err := sweeper.Start(ctx); err != nil {
		logger.Fatalf("start sweeper: %v", err)
	}
	defer sweeper.Stop()

	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:       logger,
		Addr:         cfg.HTTPAddr,
		Requests:     requestStore,
		Grants:       grantStore,
		KnockService: knockSvc,
	})

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Printf("listening on %s", cfg.HTTPAddr)
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Printf("server exit: %v", err)
	}
}
