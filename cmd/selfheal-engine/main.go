package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/raycarroll/k8s-selfheal-engine/pkg/config"
	"github.com/raycarroll/k8s-selfheal-engine/pkg/engine"
	"github.com/raycarroll/k8s-selfheal-engine/pkg/kube"
	"github.com/raycarroll/k8s-selfheal-engine/pkg/logger"
	"github.com/raycarroll/k8s-selfheal-engine/pkg/metrics"
	"github.com/raycarroll/k8s-selfheal-engine/pkg/server"
)

var rootCmd = &cobra.Command{
	Use:          "selfheal-engine",
	Short:        "Self-healing remediation engine for Kubernetes workloads",
	Long:         "selfheal-engine receives remediation requests, resolves the deployment behind each target and applies conflict-gated memory or replica mutations.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logrus.Fatalf("selfheal-engine: %v", err)
	}
}

func run() error {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logger.Setup(cfg.LogLevel)
	log.Infof("Starting selfheal-engine (listen=%s, max_attempts=%d, request_timeout=%s)",
		cfg.ListenAddr, cfg.MaxAttempts, cfg.RequestTimeout)

	clientset, err := kube.NewClientset(cfg.Kubeconfig, cfg.RequestTimeout)
	if err != nil {
		return err
	}
	store, err := kube.NewClient(clientset)
	if err != nil {
		return err
	}

	eng, err := engine.New(store, metrics.NewSet(), engine.Config{MaxAttempts: cfg.MaxAttempts}, log)
	if err != nil {
		return err
	}

	srv, err := server.New(server.Config{ListenAddr: cfg.ListenAddr, APIToken: cfg.APIToken}, eng, log)
	if err != nil {
		return err
	}

	// Setup signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run()
	}()

	select {
	case <-sigCh:
		log.Info("Received shutdown signal, shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}

	log.Info("Shutdown complete")
	return nil
}
