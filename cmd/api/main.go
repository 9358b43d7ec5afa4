package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/menu-planning/formgate/config"
	"github.com/menu-planning/formgate/egress"
	"github.com/menu-planning/formgate/ingress"
	ingressredis "github.com/menu-planning/formgate/ingress/redis"
	"github.com/menu-planning/formgate/ingress/signature"
	"github.com/menu-planning/formgate/internal/http/chi"
	"github.com/menu-planning/formgate/metrics"
)

const TIMEOUT = 30 * time.Second

/* main is the application's entry and exit door. It is where every
 * dependency is initialized and wired before the business packages run.
 *
 * Imports flow in one direction only: downward. The app layer (api)
 * imports the business layers (ingress, egress), which import the
 * storage adapters.
 */

func main() {
	cfg, err := config.GetConfig()
	if err != nil {
		fmt.Println(err)
		return
	}
	if err := cfg.Validate(); err != nil {
		fmt.Println(err)
		return
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))

	secret, err := signature.ParseSecret(cfg.WebhookSecret)
	if err != nil {
		fmt.Println(err)
		return
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT,
	)
	defer stop()

	client, err := ingressredis.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer client.Close()

	pipeline := ingress.NewHandler(
		secret,
		ingressredis.NewRateLimiter(client, cfg.RateLimitPerSecond),
		ingressredis.NewReplayStore(client),
		cfg.ReplayTTL(),
		logger,
	).WithPayloadLogging(cfg.LogPayloads)

	policy, err := egress.LoadPolicy(cfg.AllowlistPath)
	if err != nil {
		fmt.Println(err)
		return
	}

	gateway, err := egress.NewGateway(cfg.TypeformBaseURL, cfg.TypeformAPIKey, policy, logger)
	if err != nil {
		fmt.Println(err)
		return
	}
	gateway.WithTimeout(cfg.ProxyTimeout())

	recorder, err := metrics.NewRecorder(metrics.NewRedisCollector(client))
	if err != nil {
		fmt.Println(err)
		return
	}
	defer recorder.Shutdown(ctx)

	r := chi.Handlers(ctx, pipeline, gateway, policy, recorder, cfg.TrustProxyHeaders)
	http.Handle("/", r)
	srv := &http.Server{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		Addr:         ":" + cfg.Port,
		Handler:      http.DefaultServeMux,
	}

	errShutdown := make(chan error, 1)
	go shutdown(srv, ctx, errShutdown)
	fmt.Printf("Listening on port %s\n", cfg.Port)
	err = srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		fmt.Println(err)
		return
	}
	err = <-errShutdown
	if err != nil {
		fmt.Println(err)
		return
	}
}

func shutdown(server *http.Server, ctxShutdown context.Context, errShutdown chan error) {
	<-ctxShutdown.Done()

	ctxTimeout, stop := context.WithTimeout(context.Background(), TIMEOUT)
	defer stop()

	err := server.Shutdown(ctxTimeout)
	switch err {
	case nil:
		fmt.Printf("\nShutting down server...\n")
		errShutdown <- nil
	case context.DeadlineExceeded:
		errShutdown <- fmt.Errorf("Forcing closing the server")
	default:
		errShutdown <- fmt.Errorf("Forcing closing the server")
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
