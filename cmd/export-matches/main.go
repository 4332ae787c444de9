// export-matches writes the stored matches of one user to an .xlsx or .csv
// file.
//
//	export-matches <user_id> [file]
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/example/matchbot/internal/config"
	"github.com/example/matchbot/internal/database"
	"github.com/example/matchbot/internal/export"
	"github.com/example/matchbot/internal/logger"
)

func main() {
	if len(os.Args) < 2 || len(os.Args) > 3 {
		fmt.Fprintln(os.Stderr, "usage: export-matches <user_id> [file]")
		os.Exit(2)
	}
	userID, err := strconv.ParseInt(os.Args[1], 10, 64)
	if err != nil || userID <= 0 {
		fmt.Fprintf(os.Stderr, "invalid user id %q\n", os.Args[1])
		os.Exit(2)
	}

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

	exportCfg := export.DefaultExportConfig(userID)
	if len(os.Args) == 3 {
		exportCfg.FilePath = os.Args[2]
	}

	res, err := export.ExportMatches(context.Background(), database.NewMatchRepository(db), exportCfg)
	if err != nil {
		log.Error("export failed", "user_id", userID, "error", err)
		db.Close()
		os.Exit(1)
	}
	log.Info("matches exported", "user_id", userID, "file", res.FilePath, "rows", res.Rows)
}
