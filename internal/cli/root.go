package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/frecency-dev/frecency/internal/config"
	"github.com/frecency-dev/frecency/internal/store"
	"github.com/frecency-dev/frecency/internal/store/boltstore"
	"github.com/frecency-dev/frecency/internal/store/storedefs"
	"github.com/spf13/cobra"
)

// options holds the global flags and the collaborators commands share.
type options struct {
	dbFile     string
	engine     string
	configFile string
	verbose    bool

	now    func() time.Time
	logger *slog.Logger
}

// NewRootCmd builds the frecency command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&options{now: time.Now})
}

func newRootCmd(opts *options) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "frecency",
		Short: "Rank visited directories by frecency",
		Long: "frecency records the directories you visit and lists them ranked by a blend of " +
			"how often and how recently you visited them. Hook it into your shell with `frecency init`.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if opts.verbose {
				level = slog.LevelDebug
			}
			opts.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.dbFile, "db-file", "d", "", "Database file (overrides config and $"+config.EnvDB+")")
	flags.StringVar(&opts.engine, "engine", "", "Storage engine: sqlite or bolt (overrides config)")
	flags.StringVar(&opts.configFile, "config", "", "Config file (default $"+config.EnvConfig+" or ~/.frecency/config.yaml)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Log debug information to stderr")

	rootCmd.AddCommand(newAddCmd(opts))
	rootCmd.AddCommand(newFetchCmd(opts))
	rootCmd.AddCommand(newRemoveNotExistsCmd(opts))
	rootCmd.AddCommand(newRemoveCmd(opts))
	rootCmd.AddCommand(newShowCmd(opts))
	rootCmd.AddCommand(newInitCmd(opts))
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// Main runs the command line and returns the process exit code.
func Main(args []string, stdout, stderr io.Writer) int {
	return run(NewRootCmd(), args, stdout, stderr)
}

func run(cmd *cobra.Command, args []string, stdout, stderr io.Writer) int {
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// config resolves configuration with flags applied last.
func (o *options) config() (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if o.configFile != "" {
		cfg, err = config.Load(o.configFile)
		if err == nil {
			if db := os.Getenv(config.EnvDB); db != "" {
				cfg.Database.Path = db
			}
		}
	} else {
		cfg, err = config.Resolve()
	}
	if err != nil {
		return cfg, err
	}
	if o.engine != "" {
		cfg.Database.Engine = o.engine
	}
	if o.dbFile != "" {
		cfg.Database.Path = o.dbFile
	}
	return cfg, cfg.Validate()
}

// openStore opens the configured engine. The default location's directory is
// created on demand; an explicit location must already have one.
func (o *options) openStore() (storedefs.Store, config.Config, error) {
	cfg, err := o.config()
	if err != nil {
		return nil, cfg, err
	}
	path, err := cfg.DBPath()
	if err != nil {
		return nil, cfg, fmt.Errorf("resolve db path: %w", err)
	}
	if cfg.Database.Path == "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, cfg, fmt.Errorf("create db dir: %w", err)
		}
	}

	o.logger.Debug("opening store", "engine", cfg.Database.Engine, "path", path)

	var s storedefs.Store
	switch cfg.Database.Engine {
	case config.EngineBolt:
		s, err = boltstore.Open(path, boltstore.Options{
			LockTimeout: cfg.Database.LockTimeout,
			Clock:       o.now,
		})
	default:
		var db *store.DB
		db, err = store.Open(path)
		if err == nil {
			db.Clock = o.now
			s = db
		}
	}
	if err != nil {
		return nil, cfg, fmt.Errorf("open database: %w", err)
	}
	return s, cfg, nil
}
