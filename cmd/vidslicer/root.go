package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vidslicer/vidslicer/internal/backend"
	"github.com/vidslicer/vidslicer/internal/config"
	"github.com/vidslicer/vidslicer/internal/db"
	"github.com/vidslicer/vidslicer/internal/logging"
	"github.com/vidslicer/vidslicer/internal/session"
	"github.com/vidslicer/vidslicer/internal/store"
)

// app carries what every subcommand needs once flags and env are resolved.
type app struct {
	cfg    *config.EnvConfig
	logger *slog.Logger

	database *db.DB
	repo     *store.SQLiteRepository
}

type rootFlags struct {
	apiURL      string
	downloadDir string
	history     string
	logLevel    string
	offline     bool
}

func newRootCmd() *cobra.Command {
	a := &app{}
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "vidslicer",
		Short:         "Inspect, trim and download online videos through a VidSlicer backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd, flags)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.apiURL, "api-url", "", "Backend API base URL (default "+config.DefaultAPIURL+")")
	pf.StringVar(&flags.downloadDir, "download-dir", "", "Directory downloads are written to")
	pf.StringVar(&flags.history, "history", "", "Clip history source: remote or local")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.BoolVar(&flags.offline, "offline", false, "Use the offline backend stub")

	root.AddCommand(
		newServeCmd(a),
		newInspectCmd(a),
		newDownloadCmd(a),
		newHistoryCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) init(cmd *cobra.Command, flags *rootFlags) error {
	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cfg.SetAPIURL(flags.apiURL)
	cfg.SetDownloadDir(flags.downloadDir)
	cfg.SetLogLevel(flags.logLevel)
	if flags.history != "" {
		if err := cfg.SetHistoryMode(flags.history); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("offline") {
		cfg.SetOffline(flags.offline)
	}

	a.cfg = cfg
	a.logger = logging.NewLogger(cfg.LogLevel())
	return nil
}

// openStore opens the agent database on first use.
func (a *app) openStore() (*store.SQLiteRepository, error) {
	if a.repo != nil {
		return a.repo, nil
	}

	if err := os.MkdirAll(a.cfg.DataDir(), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	database, err := db.New(a.cfg.DBPath(), logging.WithComponent(a.logger, "db"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	a.database = database
	a.repo = store.NewRepository(database.Conn())
	return a.repo, nil
}

func (a *app) close() error {
	if a.database == nil {
		return nil
	}
	err := a.database.Close()
	a.database, a.repo = nil, nil
	return err
}

// backendClient returns the HTTP client, or the stub when running offline.
// The prober reports backend health for the status endpoint.
func (a *app) backendClient() (backend.Client, backend.HealthProber) {
	logger := logging.WithComponent(a.logger, "backend")
	if a.cfg.Offline() {
		logger.Info("offline mode, using backend stub")
		stub := backend.NewStubClient(logger)
		return stub, stub
	}
	client := backend.NewHTTPClient(a.cfg.APIURL(), a.cfg.RequestTimeout(), logger)
	return client, client
}

func (a *app) historyGateway(client backend.Client) (backend.HistoryGateway, error) {
	if a.cfg.HistoryMode() != config.HistoryLocal {
		return client.History(), nil
	}
	repo, err := a.openStore()
	if err != nil {
		return nil, err
	}
	return store.NewLocalHistory(repo, logging.WithComponent(a.logger, "history")), nil
}

// newController wires a session controller against the configured backend.
func (a *app) newController(downloadDir string) (*session.Controller, backend.HealthProber, error) {
	client, prober := a.backendClient()

	history, err := a.historyGateway(client)
	if err != nil {
		return nil, nil, err
	}

	logger := logging.WithComponent(a.logger, "session")
	ctrl := session.NewController(session.Deps{
		Metadata:  client,
		Downloads: client,
		History:   history,
		Saver:     session.DefaultSaver(downloadDir, logger),
		Logger:    logger,
	})
	return ctrl, prober, nil
}
