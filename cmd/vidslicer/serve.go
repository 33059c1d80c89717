package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vidslicer/vidslicer/internal/api"
	"github.com/vidslicer/vidslicer/internal/backend"
	"github.com/vidslicer/vidslicer/internal/config"
	"github.com/vidslicer/vidslicer/internal/logging"
	"github.com/vidslicer/vidslicer/internal/ui"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		headless bool
		port     int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the agent: control API on localhost plus the system tray",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("headless") {
				a.cfg.SetHeadless(headless)
			}
			if cmd.Flags().Changed("port") {
				if err := a.cfg.SetPort(port); err != nil {
					return err
				}
			}
			return a.serve(cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&headless, "headless", false, "Run without the system tray")
	cmd.Flags().IntVar(&port, "port", config.DefaultPort, "Control API port on 127.0.0.1")
	return cmd
}

func (a *app) serve(out io.Writer) error {
	startTime := time.Now()
	logger := a.logger
	logger.Info("starting vidslicer agent", "version", config.Version, "data_dir", a.cfg.DataDir())

	repo, err := a.openStore()
	if err != nil {
		return err
	}

	authToken, err := ensureAuthToken(context.Background(), repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	printBanner(out, a.cfg, authToken)

	ctrl, prober, err := a.newController(a.cfg.DownloadDir())
	if err != nil {
		return err
	}
	health := backend.NewCachedHealth(prober, logging.WithComponent(logger, "health"))

	initCtx, initCancel := context.WithTimeout(context.Background(), a.cfg.RequestTimeout())
	if status, err := health.Refresh(initCtx); err != nil {
		logger.Warn("initial backend probe failed", "error", err)
	} else {
		logger.Info("backend reachable", "status", status.Status)
	}
	ctrl.RefreshHistory(initCtx)
	initCancel()

	apiServer := api.NewServer(api.ServerConfig{
		Port:        a.cfg.Port(),
		Session:     ctrl,
		Tokens:      repo,
		Health:      health,
		HistoryMode: a.cfg.HistoryMode(),
		DownloadDir: a.cfg.DownloadDir(),
		Version:     config.Version,
		Logger:      logging.WithComponent(logger, "api"),
		StartTime:   startTime,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	quitCh := make(chan struct{})
	var quitOnce sync.Once
	quit := func() { quitOnce.Do(func() { close(quitCh) }) }

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var tray *ui.Tray
	if !a.cfg.Headless() {
		tray = ui.NewTray(ui.TrayConfig{
			Session: ctrl,
			APIURL:  fmt.Sprintf("http://127.0.0.1:%d", a.cfg.Port()),
			Logger:  logging.WithComponent(logger, "ui"),
			OnQuit:  quit,
		})
	}

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			quit()
			if tray != nil {
				tray.Quit()
			}
		case <-quitCh:
		}
	}()

	if tray == nil {
		logger.Info("running in headless mode (no system tray)")
		<-quitCh
	} else {
		tray.Run()
		quit()
	}

	logger.Info("initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// configStore is the slice of the repository the token bootstrap needs.
type configStore interface {
	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

// ensureAuthToken returns the stored control API token, minting one on
// first run.
func ensureAuthToken(ctx context.Context, repo configStore) (string, error) {
	existing, err := repo.GetConfig(ctx, api.AuthTokenKey)
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, api.AuthTokenKey, token); err != nil {
		return "", err
	}

	return token, nil
}

func printBanner(out io.Writer, cfg *config.EnvConfig, authToken string) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, "╔═══════════════════════════════════════════════════════════╗")
	fmt.Fprintf(out, "║  %-56s ║\n", "VIDSLICER AGENT v"+config.Version)
	fmt.Fprintln(out, "╠═══════════════════════════════════════════════════════════╣")
	fmt.Fprintf(out, "║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Fprintf(out, "║  Auth Token: %-45s ║\n", authToken)
	fmt.Fprintf(out, "║  Backend:    %-45s ║\n", backendLabel(cfg))
	fmt.Fprintf(out, "║  History:    %-45s ║\n", cfg.HistoryMode())
	fmt.Fprintln(out, "╚═══════════════════════════════════════════════════════════╝")
	fmt.Fprintln(out)
}

func backendLabel(cfg *config.EnvConfig) string {
	if cfg.Offline() {
		return "offline"
	}
	return cfg.APIURL()
}
