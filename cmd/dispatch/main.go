package main

import (
	"fmt"
	"os"

	"github.com/opsconsole/dispatch/internal/auth"
	"github.com/opsconsole/dispatch/internal/config"
	"github.com/opsconsole/dispatch/internal/db"
	httphandler "github.com/opsconsole/dispatch/internal/http"
	"github.com/opsconsole/dispatch/internal/http/middleware"
	"github.com/opsconsole/dispatch/internal/logger"
	"github.com/opsconsole/dispatch/internal/notify"
	"github.com/opsconsole/dispatch/internal/offline"
	"github.com/opsconsole/dispatch/internal/repository"
	"github.com/opsconsole/dispatch/internal/service"
	"github.com/opsconsole/dispatch/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment)

	database, err := db.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	localDB, err := db.OpenLocal(cfg.Local.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open local store")
	}

	queue, err := offline.NewQueue(localDB)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init offline queue")
	}

	sessionStore, err := session.NewStore(localDB)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init session store")
	}

	var notifier notify.Notifier
	if cfg.AMQP.URL != "" {
		amqpNotifier, err := notify.NewAMQPNotifier(cfg.AMQP.URL, cfg.AMQP.Exchange, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect broker")
		}
		defer amqpNotifier.Close()
		notifier = amqpNotifier
	} else {
		notifier = notify.NewLogNotifier(log)
	}

	scheduleRepo := repository.NewScheduleRepository(database)
	employeeRepo := repository.NewEmployeeRepository(database)

	scheduleService := service.NewScheduleService(scheduleRepo, log)
	validationService := service.NewValidationService(scheduleRepo, log)

	controllerCfg := service.TripControllerConfig{
		SyncInterval:    cfg.Tracking.SyncInterval,
		StartFixTimeout: cfg.Tracking.StartFixTimeout,
	}
	sessions := httphandler.NewSessionRegistry(scheduleRepo, employeeRepo, queue, notifier, controllerCfg, log)

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)
	handler := httphandler.NewHandler(scheduleService, validationService, sessions, sessionStore, log)
	authMiddleware := middleware.Auth(tokenParser)
	router := httphandler.NewRouter(handler, authMiddleware, cfg.Environment)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	log.Info().Str("addr", addr).Msg("starting dispatch service")

	if err := router.Run(addr); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}
