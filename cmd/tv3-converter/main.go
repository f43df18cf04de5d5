package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vincentbai/telemetry-converter/internal/config"
	"github.com/vincentbai/telemetry-converter/internal/database"
	"github.com/vincentbai/telemetry-converter/internal/otel"
	"github.com/vincentbai/telemetry-converter/internal/pipeline"
	"github.com/vincentbai/telemetry-converter/internal/routing"
	"github.com/vincentbai/telemetry-converter/internal/server"
)

const serviceName = "tv3-converter"

func main() {
	cfg, err := config.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[TV3] ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	shutdown, err := otel.Setup(ctx, serviceName)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.Printf("%s otel shutdown: %v", serviceName, err)
		}
	}()

	// Initialize database
	db, err := database.NewDatabase(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	routes, err := routing.Load(cfg.RoutesPath)
	if err != nil {
		return err
	}

	stage := pipeline.NewStage(db, routes, cfg.Workers)
	srv := server.NewServer(stage, cfg.Address,
		server.WithMaxBodyBytes(cfg.MaxBodyBytes),
		server.WithShutdownTimeout(cfg.ShutdownTimeout),
	)
	return srv.Start(ctx)
}
