package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mechanicapp/logger"
	"mechanicapp/server/auth"
	"mechanicapp/server/config"
	"mechanicapp/server/handler"
	"mechanicapp/server/metrics"
	"mechanicapp/server/room"
	"mechanicapp/telemetry"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to relay config file")
	mintFor := pflag.String("mint-token", "", "print a handshake token for this user id and exit")
	mintTTL := pflag.Duration("token-ttl", 24*time.Hour, "lifetime of a minted token")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	verifier := auth.NewVerifier(cfg.JWTSecret)
	if *mintFor != "" {
		tok, err := verifier.Sign(*mintFor, *mintTTL)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(tok)
		return
	}

	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	shutdownTracing := telemetry.Setup(context.Background(), "mechanic-relay", cfg.OTLPEndpoint, log)

	m := metrics.New()
	rooms := room.NewManager(log.Named("rooms"), m.DroppedFrames)
	router := handler.NewRouter(rooms, verifier, cfg.SocketPath, handler.Config{
		MessagesPerSecond: cfg.MessagesPerSecond,
		Metrics:           m,
	}, log)

	srv := &http.Server{
		Handler:     router,
		Addr:        cfg.Addr,
		ReadTimeout: 15 * time.Second,
	}

	log.Info("relay starting", zap.String("addr", cfg.Addr), zap.String("socket_path", cfg.SocketPath))

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	log.Info("shutting down relay")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("relay forced to shutdown", zap.Error(err))
	}
	rooms.Close()
	if err := shutdownTracing(ctx); err != nil {
		log.Warn("tracing shutdown", zap.Error(err))
	}

	log.Info("relay exiting")
}
