package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AdamBeresnev/heat-scheduler/internal/config"
	"github.com/AdamBeresnev/heat-scheduler/internal/db"
	"github.com/AdamBeresnev/heat-scheduler/internal/metrics"
	"github.com/AdamBeresnev/heat-scheduler/internal/service"
	"github.com/AdamBeresnev/heat-scheduler/internal/store"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal("Invalid configuration: ", err)
	}
	flagSet := pflag.NewFlagSet("web", pflag.ExitOnError)
	cfg.AddFlags(flagSet)
	_ = flagSet.Parse(os.Args[1:])

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))

	database := db.InitDB(cfg.DatabasePath)
	defer database.Close()

	if err := db.RunMigrations(database.DB, cfg.MigrationsPath); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	recorder := metrics.NewPrometheus(nil, "")
	competitions := store.NewCompetitionStore(database)
	heats := store.NewHeatStore(database)
	tasks := service.NewTasks(recorder)
	cascades := service.NewCascadeService(database, competitions, heats)

	srv := &server{
		regeneration: service.NewRegenerationService(database, competitions, heats, recorder),
		registration: service.NewRegistrationService(database, competitions, heats, cascades, tasks, recorder),
		cascades:     cascades,
		lanes:        service.NewLaneService(database, competitions, heats),
		schedules:    service.NewScheduleService(competitions, heats),
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("Server starting", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
	tasks.Wait()
}
