package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/robfig/cron/v3"

	"saldo/internal/cli"
	"saldo/internal/log"
	"saldo/internal/services"
)

func main() {
	once := flag.Bool("once", false, "run a single seeding pass and exit")
	flag.Parse()

	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentSeeder)
	logger.Info("Starting goal-seeder")

	cfg := cli.LoadAndValidateConfig(logger)

	// Seeding writes goals only; it publishes nothing.
	storeCfg := *cfg
	storeCfg.AMQPURL = ""
	res, _ := cli.InitBackend(context.Background(), logger, &storeCfg)
	defer res.Cleanup()

	seeder := services.NewGoalSeeder(res.Store, services.SeedConfig{
		Title:       cfg.GoalSeedTitle,
		Description: "Created automatically for accounts without goals",
		Target:      cfg.SeedTarget(),
		Concurrency: cfg.GoalSeedConcurrency,
	})

	runPass := func(ctx context.Context) {
		passCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()
		if _, err := seeder.Seed(passCtx); err != nil {
			logger.Error("Goal seeding pass failed", log.FieldError, err)
		}
	}

	if *once {
		runPass(context.Background())
		return
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.GoalSeedSchedule, func() { runPass(ctx) }); err != nil {
		logger.Error("Invalid goal seed schedule", log.FieldError, err, "schedule", cfg.GoalSeedSchedule)
		os.Exit(1)
	}
	scheduler.Start()
	logger.Info("Goal seeder scheduled", "schedule", cfg.GoalSeedSchedule, "title", cfg.GoalSeedTitle)

	cli.WaitForShutdown(ctx, done)

	// Wait for a running pass to finish.
	<-scheduler.Stop().Done()
	logger.Info("Goal seeder stopped")
}
