package main

import (
	"context"
	"os"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"taskboard/storage"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	log.Info("storage init starting")

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if uri := os.Getenv("DB_URI"); uri != "" {
		name := envOr("TASKS_COLLECTION", "tasks")
		dbName := envOr("DB_NAME", "taskboard")
		m := storage.NewMongo(uri, dbName, name, 30*time.Second)
		coll, err := m.Collection()
		if err != nil {
			log.Fatalf("mongo: %v", err)
		}
		if err := storage.EnsureMongoCollection(ctx, coll.Database(), name); err != nil {
			log.Fatalf("create collection: %v", err)
		}
		if err := m.Close(ctx); err != nil {
			log.WithError(err).Warn("mongo disconnect")
		}
		log.WithField("collection", dbName+"."+name).Info("collection ready")
	}

	if connStr := os.Getenv("STORAGE_CONNECTION_STRING"); connStr != "" {
		if err := storage.EnsureTables(ctx, connStr, []string{envOr("TASKS_TABLE", "tasks")}); err != nil {
			log.Fatalf("create tables: %v", err)
		}
		if err := storage.EnsureQueues(ctx, connStr, []string{os.Getenv("TASK_EVENTS_QUEUE")}); err != nil {
			log.Fatalf("create queues: %v", err)
		}
	}

	log.Info("storage init complete")
}

// envOr matches the server's defaults so both provision the same names.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
