// Command migrate applies pending schema migrations and exits. The bot
// refuses to run against an unmigrated schema, so this is the first
// thing a deployment runs.
package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/agentwatch/digest-bot/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	path := os.Getenv("DATABASE_PATH")
	if path == "" {
		path = "digest.db"
	}

	st, err := store.Open(path)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	if err := st.Migrate(context.Background()); err != nil {
		logrus.Fatalf("Migration failed: %v", err)
	}

	logrus.Info("All migrations applied")
}
