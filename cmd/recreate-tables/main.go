// recreate-tables drops the users, search_preferences and matches tables and
// creates them again. Every stored row is lost
package main

import (
	"fmt"
	"os"

	"github.com/example/matchbot/internal/config"
	"github.com/example/matchbot/internal/database"
	"github.com/example/matchbot/internal/logger"
)

func main() {
	cfg, err := config.LoadDatabase()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log, err := logger.New(logger.Options{Mode: cfg.Log.Mode, Level: cfg.Log.Level, Dir: cfg.Log.Dir})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	db, err := database.Connect(cfg.DSN)
	if err != nil {
		log.Error("connect failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.RecreateTables(db); err != nil {
		log.Error("recreate tables failed", "error", err)
		db.Close()
		os.Exit(1)
	}
	log.Info("tables recreated", "driver", db.DriverName())
}
