package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"asistencia/internal/attendance"
	"asistencia/internal/config"
	"asistencia/internal/queue"
	"asistencia/internal/store"
)

// The worker drains the attendance queue and materializes flat export
// rows so spreadsheet pulls never join live tables.
func main() {
	cfg := config.Load()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)
	if cfg.QueueBackend != "redis" {
		log.Fatalf("worker requires QUEUE_BACKEND=redis, got %q", cfg.QueueBackend)
	}
	q := queue.NewRedisQueue(redisClient.Client, "")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	msgs, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume failed: %v", err)
	}

	repo := attendance.NewRepository(db.Client)
	log.Println("worker consuming attendance queue")

	for {
		select {
		case <-ctx.Done():
			log.Println("worker shutting down")
			return
		case msg, ok := <-msgs:
			if !ok {
				log.Println("queue closed, worker exiting")
				return
			}
			if msg.Type != queue.TypeAttendance {
				log.Printf("skipping message type %q", msg.Type)
				continue
			}
			materialize(ctx, repo, string(msg.Body))
		}
	}
}

func materialize(ctx context.Context, repo *attendance.Repository, attendanceID string) {
	opCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	row, err := repo.ExportRow(opCtx, attendanceID)
	if err != nil {
		log.Printf("export row load failed for %s: %v", attendanceID, err)
		return
	}
	if row == nil {
		// The registration was deleted before the worker got here.
		log.Printf("attendance %s no longer exists, skipping", attendanceID)
		return
	}
	if err := repo.UpsertExportRow(opCtx, *row); err != nil {
		log.Printf("export row upsert failed for %s: %v", attendanceID, err)
		return
	}
	log.Printf("export row materialized for attendance %s", attendanceID)
}
