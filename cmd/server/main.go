package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"

	"github.com/agenthands/sleuth/internal/config"
	"github.com/agenthands/sleuth/internal/logging"
	"github.com/agenthands/sleuth/internal/server"
)

func main() {
	log := logging.New("sleuth")
	defer log.Sync()

	if err := godotenv.Load(); err != nil {
		log.Info("no .env file found, using defaults")
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.toml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Warn("could not load config file, using defaults: " + err.Error())
		cfg = config.Default()
	}

	// Env vars override the file for the LLM connection.
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}

	srv, err := server.NewServer(context.Background(), cfg, log)
	if err != nil {
		log.Fatal("failed to initialize server: " + err.Error())
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	r := srv.SetupRouter()
	log.Info("starting server on port " + port)
	if err := r.Run(":" + port); err != nil {
		log.Fatal(err.Error())
	}
}
