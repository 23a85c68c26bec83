package main

import (
	"context"
	"os"
	"time"

	"golang-sms-gateway/internal/adapters/db/gormrepo"
	"golang-sms-gateway/internal/config"
	"golang-sms-gateway/internal/logging"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	log := logging.New(logging.FromEnv())

	conf, err := config.FromEnv(":8080")
	if err != nil {
		log.Error("load config", "err", err)
		os.Exit(1)
	}
	if conf.Database.Driver == "memory" {
		log.Info("memory store needs no migration")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	log.Info("connecting to database", "driver", conf.Database.Driver)
	repo, err := gormrepo.Open(conf.Database.Driver, conf.Database.URL)
	if err != nil {
		log.Error("connect database", "err", err)
		os.Exit(1)
	}
	defer repo.Close()

	log.Info("running migrations")
	if err := repo.Migrate(ctx); err != nil {
		log.Error("migration failed", "err", err)
		os.Exit(1)
	}

	tables, err := repo.Tables(ctx)
	if err != nil {
		log.Error("check tables", "err", err)
		os.Exit(1)
	}
	if len(tables) == 0 {
		log.Error("no tables found after migration")
		os.Exit(1)
	}

	log.Info("database ready", "tables", tables)
}
