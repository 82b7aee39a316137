package main

import (
	"flag"
	"log/slog"
	"os"
	"strings"
	"time"

	"peerlend/config"
	"peerlend/core/genesis"
	"peerlend/core/state"
	"peerlend/observability/logging"
	"peerlend/storage"
)

var genesisAppliedKey = []byte("genesis/applied")

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis spec JSON file (overrides the config GenesisFile)")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("PEERLEND_ENV"))
	logger := logging.Setup("peerlend-init", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("Failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	genesisPath := cfg.GenesisFile
	if strings.TrimSpace(*genesisFlag) != "" {
		genesisPath = *genesisFlag
	}

	spec, err := genesis.LoadSpec(genesisPath)
	if err != nil {
		logger.Error("Failed to load genesis spec", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("Failed to open state database", slog.String("data", cfg.DataDir), slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	manager := state.NewManager(db)

	var applied bool
	ok, err := manager.KVGet(genesisAppliedKey, &applied)
	if err != nil {
		logger.Error("Failed to inspect state database", slog.Any("error", err))
		os.Exit(1)
	}
	if ok && applied {
		logger.Error("State database already initialised", slog.String("data", cfg.DataDir))
		os.Exit(1)
	}

	if _, err := spec.Apply(manager, nil); err != nil {
		logger.Error("Failed to apply genesis spec", slog.Any("error", err))
		os.Exit(1)
	}
	applied = true
	if err := manager.KVPut(genesisAppliedKey, applied); err != nil {
		logger.Error("Failed to mark genesis applied", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("Genesis state initialised",
		slog.String("data", cfg.DataDir),
		slog.String("genesisTime", spec.GenesisTimestamp().Format(time.RFC3339)),
	)
}
