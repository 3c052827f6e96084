package main

import (
	"context"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cppla/learnquest/clock"
	"github.com/cppla/learnquest/config"
	"github.com/cppla/learnquest/routes"
	"github.com/cppla/learnquest/services"
	"github.com/cppla/learnquest/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer func() { _ = utils.Logger.Sync() }()

	clk, err := clock.NewSystem(cfg.Timezone)
	if err != nil {
		utils.Sugar.Fatalf("invalid timezone %q: %v", cfg.Timezone, err)
	}

	db := config.InitDatabase(config.Models()...)

	container := services.NewContainer(services.Deps{
		DB:      db,
		Clock:   clk,
		Config:  cfg,
		Logger:  utils.Logger,
		Metrics: services.NewMetrics(prometheus.DefaultRegisterer),
		Cache:   utils.NewCache(utils.GetRedis()),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	container.Start(ctx)
	defer container.Close()

	r := routes.SetupRouter(container)

	utils.Sugar.Infof("Starting server on port %s (timezone %s)", cfg.AppPort, cfg.Timezone)
	if err := utils.GraceServer(ctx, ":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Errorf("server stopped with error: %v", err)
	}
}
