package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/igr88/archetect/internal/branding"
	"github.com/igr88/archetect/internal/cache"
	"github.com/igr88/archetect/internal/config"
	"github.com/igr88/archetect/internal/logging"
	"github.com/spf13/cobra"
)

var (
	buildVersion string
	buildCommit  string
	buildDate    string
)

var (
	verbosity    int
	quiet        bool
	cacheDirFlag string
)

func init() {
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log output (repeatable)")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Only log errors")
	rootCmd.PersistentFlags().StringVar(&cacheDirFlag, "cache-dir", "", "Directory remote sources are cached in")
}

var rootCmd = &cobra.Command{
	Use:   branding.CLIName(),
	Short: branding.Description(),
	Long: branding.DisplayName() + ` renders projects from archetypes: directories of templated
files described by a manifest that declares the variables to ask for.

Archetypes and catalogs may live on the local disk or in git repositories.
Remote sources are cached under ~/` + branding.HomeDir() + `/cache so renders can run offline.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.Load()
	},
}

// Execute runs the root command with build info injected via ldflags.
func Execute(version, commit, date string) error {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// settings returns the loaded configuration with global flag overrides
// applied.
func settings() config.Settings {
	s := config.Current()
	if cacheDirFlag != "" {
		s.CacheDir = cacheDirFlag
	}
	return s
}

func newLogger(w io.Writer) *slog.Logger {
	return logging.New(w, verbosity, quiet)
}

func newStore(s config.Settings, log *slog.Logger) (*cache.Store, error) {
	fetcher, err := cache.NewFetcher(s.Fetcher)
	if err != nil {
		return nil, err
	}
	return cache.New(s.CacheDir, fetcher, log), nil
}
