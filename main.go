package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"agentspace/config"
	"agentspace/internal/handlers"
	"agentspace/internal/nipr"
	"agentspace/internal/routes"
	"agentspace/models"

	"github.com/gin-gonic/gin"
)

const verificationStallTimeout = 10 * time.Minute

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	config.InitAuth()
	config.ConnectDB()
	config.ConnectRedis()
	if err := config.InitGoogleServices(); err != nil {
		slog.Warn("Gemini disabled", "reason", err)
	}

	if err := config.DB.AutoMigrate(
		&models.User{},
		&models.Role{},
		&models.Permission{},
		&models.Client{},
		&models.Carrier{},
		&models.Product{},
		&models.Deal{},
		&models.CommissionReport{},
		&models.CommissionEntry{},
		&models.PayrollRun{},
		&models.PayrollItem{},
		&models.Quote{},
		&models.VerificationJob{},
	); err != nil {
		slog.Error("auto-migration failed", "error", err)
		os.Exit(1)
	}
	seedRoles()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Verification pipeline: queue, gateway, workers, progress hub.
	queue := nipr.NewQueue(config.DB)
	if err := queue.EnsureIndexes(); err != nil {
		slog.Error("failed to create verification queue indexes", "error", err)
		os.Exit(1)
	}
	handlers.VerificationQueue = queue
	go handlers.VerificationHub.Run()

	if n, err := queue.RequeueStalled(ctx, verificationStallTimeout); err != nil {
		slog.Error("failed to requeue stalled verifications", "error", err)
	} else if n > 0 {
		slog.Info("requeued stalled verification jobs", "count", n)
	}

	var gateway nipr.Gateway
	if baseURL := os.Getenv("NIPR_GATEWAY_URL"); baseURL != "" {
		gateway = nipr.NewHTTPGateway(baseURL)
	} else {
		slog.Warn("NIPR_GATEWAY_URL not set, using local stub gateway")
		gateway = &nipr.StubGateway{StepDelay: 20 * time.Second}
	}
	processor := &nipr.Processor{
		Queue:    queue,
		Gateway:  gateway,
		Notifier: handlers.VerificationHub,
	}
	if config.GeminiClient != nil {
		processor.Reviewer = &nipr.GeminiReviewer{Model: config.GeminiClient}
	}

	workers := 2
	if v := os.Getenv("NIPR_WORKERS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			workers = parsed
		}
	}
	go nipr.Run(ctx, queue, processor, workers, 2*time.Second)

	r := gin.Default()
	r.MaxMultipartMemory = 32 << 20
	r.Static("/static", "./static")
	routes.SetupRoutes(r)

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

// seedRoles makes sure the base roles exist so registration and the
// permission middleware work on a fresh database.
func seedRoles() {
	for _, name := range []string{"admin", "agent"} {
		role := models.Role{Name: name}
		if err := config.DB.Where("name = ?", name).FirstOrCreate(&role).Error; err != nil {
			slog.Error("failed to seed role", "role", name, "error", err)
		}
	}
}
