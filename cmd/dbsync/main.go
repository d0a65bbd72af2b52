package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/openmined/dbsync/internal/config"
	"github.com/openmined/dbsync/internal/transport"
	"github.com/openmined/dbsync/internal/utils"
	"github.com/openmined/dbsync/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var home, _ = os.UserHomeDir()

// configuredLocation is the value of a --from-* flag given without a value.
const configuredLocation = "<configured>"

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dbsync [catalog]",
		Short: "Mirror database build data files into a local directory",
		Long: "dbsync copies the data files listed in a catalog from a local directory or an\n" +
			"FTP, SFTP, HTTPS or S3 source into a local target directory. Files that are\n" +
			"already current are skipped and gzip variants are preferred.",
		Version:       version.Detailed(),
		Args:          cobra.MaximumNArgs(1),
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, args)
			if err != nil {
				return err
			}

			if info, _ := cmd.Flags().GetBool("info"); info {
				return printInfo(cmd.OutOrStdout(), cfg)
			}

			verbose, _ := cmd.Flags().GetBool("verbose")
			logger, closeLog, err := newLogger(cmd.OutOrStdout(), cfg.LogFile, verbose)
			if err != nil {
				return err
			}
			defer closeLog()
			slog.SetDefault(logger)

			if err := cfg.Validate(logger); err != nil {
				return err
			}

			// all good now
			cmd.SilenceUsage = true
			scanDir, _ := cmd.Flags().GetString("scan")
			return runSync(cmd.Context(), cfg, scanDir, logger)
		},
	}

	flags := cmd.Flags()
	flags.SortFlags = false

	sources := make([]string, 0, len(transport.Kinds))
	for _, kind := range transport.Kinds {
		name := "from-" + string(kind)
		short := ""
		if kind == transport.KindLocal {
			short = "f"
		}
		flags.StringP(name, short, "", fmt.Sprintf("Sync from %s (--%s=LOCATION overrides the configured location)", kind, name))
		flags.Lookup(name).NoOptDefVal = configuredLocation
		sources = append(sources, name)
	}
	cmd.MarkFlagsMutuallyExclusive(sources...)

	flags.StringP("to-local", "l", "", "Target directory (defaults to the local source location)")
	flags.BoolP("continue", "c", false, "Keep going when a data file is missing on the source")
	flags.StringSliceP("match", "m", nil, "Only sync descriptors matching these glob patterns")
	flags.StringP("scan", "p", "", "Build the catalog from the SQL load scripts below this directory")
	flags.Int("max-attempts", 0, "Attempts per file before giving up (0 uses the default)")
	flags.Duration("timeout", 0, "Connection timeout (0 uses the default)")
	flags.BoolP("info", "i", false, "Print the resolved configuration and exit")
	flags.BoolP("verbose", "v", false, "Log debug messages")
	cmd.PersistentFlags().String("config", config.DefaultConfigPath, "dbsync config file")
	cmd.PersistentFlags().String("log-file", "", "Also write the log to this file")
	return cmd
}

func main() {
	// Setup root context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("dbsync failed", "error", err)
		stop()
		os.Exit(1)
	}
}

// configKeys are the settings that can come from the environment.
var configKeys = []string{"source", "to_local", "continue", "catalog", "match", "max_attempts", "timeout", "log_file"}

var endpointKeys = []string{"location", "username", "password", "known_hosts", "use_agent", "insecure", "region", "endpoint"}

// loadConfig merges, from lowest to highest priority, the config file, .env
// files, DBSYNC_ environment variables and command line flags.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	v := viper.New()

	configPath := resolveConfigPath(cmd)
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, ok := err.(viper.ConfigFileNotFoundError)
		if !enoent && !ok {
			return nil, fmt.Errorf("config read '%s': %w", configPath, err)
		}
	}

	if err := loadDotEnv(filepath.Join(filepath.Dir(configPath), ".env"), ".env"); err != nil {
		return nil, err
	}

	v.SetEnvPrefix("DBSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range configKeys {
		_ = v.BindEnv(key)
	}
	for _, kind := range transport.Kinds {
		for _, key := range endpointKeys {
			_ = v.BindEnv(string(kind) + "." + key)
		}
	}

	// Bind flags to viper
	flags := cmd.Flags()
	_ = v.BindPFlag("to_local", flags.Lookup("to-local"))
	_ = v.BindPFlag("continue", flags.Lookup("continue"))
	_ = v.BindPFlag("match", flags.Lookup("match"))
	_ = v.BindPFlag("max_attempts", flags.Lookup("max-attempts"))
	_ = v.BindPFlag("timeout", flags.Lookup("timeout"))
	_ = v.BindPFlag("log_file", cmd.Flag("log-file"))
	if len(args) > 0 {
		v.Set("catalog", args[0])
	}

	var cfg config.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config decode '%s': %w", configPath, err)
	}
	cfg.Path = v.ConfigFileUsed()

	for _, kind := range transport.Kinds {
		flag := flags.Lookup("from-" + string(kind))
		if flag == nil || !flag.Changed {
			continue
		}
		cfg.Source = string(kind)
		if location := flag.Value.String(); location != configuredLocation {
			cfg.Endpoint(kind).Location = location
		}
	}

	return &cfg, nil
}

// loadDotEnv loads the existing files among paths. Variables already set in
// the environment win.
func loadDotEnv(paths ...string) error {
	for _, p := range paths {
		if !utils.FileExists(p) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("env file '%s': %w", p, err)
		}
	}
	return nil
}

// newLogger logs to console and, when logFile is set, to that file as well.
func newLogger(console io.Writer, logFile string, verbose bool) (*slog.Logger, func(), error) {
	opts := utils.LogOptions{Console: console, Level: slog.LevelInfo}
	if verbose {
		opts.Level = slog.LevelDebug
	}

	closeLog := func() {}
	if logFile != "" {
		path, err := utils.ResolvePath(logFile)
		if err != nil {
			return nil, nil, fmt.Errorf("log file: %w", err)
		}
		if err := utils.EnsureParent(path); err != nil {
			return nil, nil, fmt.Errorf("log file: %w", err)
		}
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("log file: %w", err)
		}
		opts.File = file
		closeLog = func() { file.Close() }
	}

	return utils.NewLogger(opts), closeLog, nil
}
