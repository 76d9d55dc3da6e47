package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/gofrs/flock"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/driveslim/driveslim/internal/config"
	"github.com/driveslim/driveslim/internal/db"
	"github.com/driveslim/driveslim/internal/results"
	"github.com/driveslim/driveslim/internal/server"
	"github.com/driveslim/driveslim/internal/utils"
	"github.com/driveslim/driveslim/internal/version"
)

const (
	configFileName = "config"

	// snapshots superseded longer than this ago are purged at startup
	staleRetention = 7 * 24 * time.Hour
)

var rootCmd = &cobra.Command{
	Use:     "driveslim",
	Short:   "DriveSlim finds and reclaims disk space in synced drive folders",
	Version: version.Detailed(),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(cmd); err != nil {
			return err
		}
		// logs live under the resolved data dir, next to the cache db
		return setupLogging(viper.GetString("data_dir"))
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := &config.Config{
			RootPath:       viper.GetString("root_path"),
			DataDir:        viper.GetString("data_dir"),
			Addr:           viper.GetString("addr"),
			MaxDepth:       viper.GetInt("default_max_depth"),
			UseConcurrency: viper.GetBool("default_use_concurrency"),
			MaxWorkers:     viper.GetInt("default_max_workers"),
			ExcludeGlobs:   viper.GetStringSlice("exclude_globs"),
			Path:           configFilePath(cmd),
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		// all good now, show header
		cmd.SilenceUsage = true
		showHeader()

		return run(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.Flags().SortFlags = false
	rootCmd.Flags().StringP("root", "r", "", "Synced folder to scan")
	rootCmd.Flags().StringP("addr", "a", config.DefaultAddr, "Address to bind the API server")
	rootCmd.Flags().StringP("datadir", "d", config.DefaultDataDir, "DriveSlim data directory")
	rootCmd.Flags().Int("depth", config.DefaultMaxDepth, "Default scan depth (-1 for unlimited)")
	rootCmd.Flags().Int("workers", config.DefaultMaxWorkers, "Default scan worker count")
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "DriveSlim config file")
}

func run(ctx context.Context, cfg *config.Config) error {
	if err := utils.EnsureDir(cfg.DataDir); err != nil {
		return fmt.Errorf("data dir: %w", err)
	}

	// one daemon per data dir, or two processes fight over the cache db
	lock := flock.New(filepath.Join(cfg.DataDir, "driveslim.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire data dir lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another driveslim instance is using '%s'", cfg.DataDir)
	}
	defer lock.Unlock()

	database, err := db.NewSqliteDB(db.WithPath(cfg.CacheDBPath()))
	if err != nil {
		return fmt.Errorf("open cache db: %w", err)
	}
	defer database.Close()

	store, err := results.NewStore(database)
	if err != nil {
		return fmt.Errorf("init result store: %w", err)
	}

	if deleted, err := store.ClearStale(ctx, staleRetention); err != nil {
		slog.Warn("clear stale snapshots failed", "error", err)
	} else if deleted > 0 {
		slog.Info("cleared stale snapshots", "count", deleted)
	}

	svc := server.NewServices(cfg, store)
	srv := server.New(cfg.Addr, svc)

	defer slog.Info("Bye!")
	return srv.Start(ctx)
}

// logFile stays open for the process lifetime once logging is set up.
var logFile *os.File

func logFilePath(dataDir string) string {
	return filepath.Join(dataDir, "logs", "driveslim.log")
}

func setupLogging(dataDir string) error {
	path := logFilePath(dataDir)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	logFile = file

	stdoutHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})
	fileHandler := slog.NewTextHandler(file, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	slog.SetDefault(slog.New(utils.NewMultiLogHandler(stdoutHandler, fileHandler)))
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if logFile != nil {
		logFile.Close()
	}
	if err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) error {
	// a local .env may carry DRIVESLIM_* overrides
	_ = godotenv.Load()

	if cmd.Flag("config").Changed {
		viper.SetConfigFile(configFilePath(cmd))
	} else {
		viper.AddConfigPath(config.DefaultDataDir)
		viper.SetConfigName(configFileName)
		viper.SetConfigType("json")
	}

	if err := viper.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !enoent && !notFound {
			return fmt.Errorf("config read '%s': %w", viper.ConfigFileUsed(), err)
		}
	}

	viper.BindPFlag("root_path", cmd.Flags().Lookup("root"))
	viper.BindPFlag("addr", cmd.Flags().Lookup("addr"))
	viper.BindPFlag("data_dir", cmd.Flags().Lookup("datadir"))
	viper.BindPFlag("default_max_depth", cmd.Flags().Lookup("depth"))
	viper.BindPFlag("default_max_workers", cmd.Flags().Lookup("workers"))
	viper.SetDefault("default_use_concurrency", true)

	viper.SetEnvPrefix("DRIVESLIM")
	viper.AutomaticEnv()

	return nil
}

// configFilePath is where SetRootPath persists changes, whether or not the
// file existed at startup.
func configFilePath(cmd *cobra.Command) string {
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	return cmd.Flag("config").Value.String()
}

func showHeader() {
	color.New(color.FgHiCyan, color.Bold).Println(version.ShortWithApp())
	color.New(color.FgHiBlack).Println("keep synced folders lean")
}
