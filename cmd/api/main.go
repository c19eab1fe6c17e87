package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"asistencia/internal/area"
	"asistencia/internal/attendance"
	"asistencia/internal/cloudinary"
	"asistencia/internal/config"
	"asistencia/internal/device"
	"asistencia/internal/event"
	"asistencia/internal/httpapi"
	"asistencia/internal/jobs"
	"asistencia/internal/queue"
	"asistencia/internal/store"
	"asistencia/internal/student"
	"asistencia/internal/user"
)

func main() {
	cfg := config.Load()
	if cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connect failed: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("database migrate failed: %v", err)
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	if !redisClient.Healthy(ctx) {
		log.Printf("redis not reachable at %s, caching and queueing degraded", cfg.RedisAddr)
	}

	var q queue.Queue
	switch cfg.QueueBackend {
	case "memory":
		q = queue.NewInMemory(1024)
	default:
		q = queue.NewRedisQueue(redisClient.Client, "")
	}

	areaRepo := area.NewRepository(db.Client)
	deviceRepo := device.NewRepository(db.Client)
	studentRepo := student.NewRepository(db.Client)
	userRepo := user.NewRepository(db.Client)
	eventRepo := event.NewRepository(db.Client)
	attendanceRepo := attendance.NewRepository(db.Client)

	areas := area.NewService(areaRepo)
	devices := device.NewService(deviceRepo)
	students := student.NewService(studentRepo)
	users := user.NewService(userRepo)
	events := event.NewService(eventRepo, deviceRepo, areaRepo, redisClient.Client, cfg.ActiveEventCacheTTL, cfg.Location())
	registrar := attendance.NewService(attendanceRepo, eventRepo, deviceRepo, studentRepo, q)

	var cdn *cloudinary.Client
	if cfg.CloudinaryCloudName != "" {
		cdn = cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
	}

	jobs.StartFinalizeJob(ctx, events, cfg.FinalizeInterval)

	server := httpapi.New(cfg, db, redisClient, areas, devices, students, users, events, registrar, cdn)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("api listening on :%s (env=%s tz=%s)", cfg.HTTPPort, cfg.Env, cfg.Timezone)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	log.Println("bye")
}
