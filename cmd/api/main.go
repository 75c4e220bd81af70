package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	httpadp "cryptvault-client/internal/adapter/http"
	mw "cryptvault-client/internal/adapter/middleware"
	"cryptvault-client/internal/config"
	"cryptvault-client/internal/infrastructure/logging"
)

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	cfg := config.Load()
	logging.Setup("cryptvault-session", cfg.AppEnv, cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := build(ctx, cfg)
	if err != nil {
		slog.Error("failed to start session", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	h := httpadp.NewHandler(app.loans, app.decryptor)
	lh := httpadp.NewLoanHandler(app.loans)
	ph := httpadp.NewPoolHandler(app.pool, app.metrics)
	dh := httpadp.NewDecryptHandler(app.decryptor, app.pool)

	e := echo.New()
	e.HideBanner = true
	e.Validator = httpadp.NewValidator()
	e.Use(middleware.Logger(), middleware.Recover(), mw.RequestMetrics(app.metrics))

	// mutating routes are idempotent when redis is available
	var idem []echo.MiddlewareFunc
	if app.redis != nil {
		idem = append(idem, mw.Idempotency(mw.IdempotencyConfig{
			Redis:     app.redis,
			TTL:       time.Duration(cfg.IdempTTLSecs) * time.Second,
			Namespace: strconv.FormatUint(cfg.ChainID, 10) + ":" + strings.ToLower(cfg.ContractAddress().Hex()),
		}))
	}

	// routes
	e.GET("/health", h.Health)
	e.GET("/operations", h.Operations)
	e.GET("/metrics", echo.WrapHandler(app.metrics.Handler()))

	e.GET("/pool", ph.GetPool)
	e.POST("/pool/refresh", ph.RefreshPool)

	e.POST("/loans", lh.CreateLoan, idem...)
	e.POST("/loans/:id/fund", lh.FundLoan, idem...)
	e.POST("/loans/:id/repay", lh.RepayLoan, idem...)

	e.GET("/loans/decrypted", dh.ListDecrypted)
	e.POST("/loans/:id/decrypt", dh.DecryptLoan)
	e.GET("/loans/:id/decrypted", dh.GetDecrypted)
	e.DELETE("/session/decrypted", dh.ClearDecrypted)

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	addr := ":" + cfg.AppPort
	slog.Info("starting server", "addr", addr, "chain_id", cfg.ChainID, "contract", cfg.ContractAddress().Hex())
	if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
