package main

import (
	"net/http"

	"shopsync/internal/config"
	"shopsync/internal/handlers"
	"shopsync/internal/logging"
	"shopsync/internal/middleware"
	"shopsync/internal/remote"
)

func main() {
	cfg := config.NewConfig()

	sugar, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	middleware.SetLogger(sugar)
	defer func() { _ = sugar.Sync() }()

	hub := remote.NewMemoryStore()

	var persist *handlers.Persistence
	if cfg.DatabaseDSN != "" {
		persist, err = handlers.OpenPersistence(cfg.DatabaseDSN)
		if err != nil {
			sugar.Fatalw("failed to open document storage", "error", err)
		}
		if err := persist.SeedInto(hub); err != nil {
			sugar.Fatalw("failed to seed documents", "error", err)
		}
	} else {
		sugar.Warnw("no DATABASE_URI set, documents are not persisted")
	}

	h := handlers.NewHandler(hub, persist, sugar, cfg)

	sugar.Infow("starting document server",
		"addr", cfg.Addr,
		"persistent", persist != nil,
	)
	if err := http.ListenAndServe(cfg.Addr, h.Router); err != nil {
		sugar.Fatalw("server failed", "error", err)
	}
}
