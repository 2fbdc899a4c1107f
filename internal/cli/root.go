package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mvp-joe/phpintel/internal/config"
	"github.com/mvp-joe/phpintel/internal/engine"
)

var (
	cfgFile   string
	rootPaths []string
	verbose   bool
	quiet     bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "phpintel",
	Short: "PHP completion and go-to-declaration from a project index",
	Long: `phpintel scans PHP projects into a small declaration index and answers
completion and go-to-declaration queries against it.

A project opts in by having a .phpintel directory at its root. The index
lives there, next to an optional config.yml.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is <root>/.phpintel/config.yml)")
	rootCmd.PersistentFlags().StringSliceVarP(&rootPaths, "root", "r", nil, "project root, repeatable (default is the working directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only report warnings and errors")

	// Bind flags to viper
	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
}

// settings are the global flags of one invocation.
type settings struct {
	configFile string
	roots      []string
	verbose    bool
	quiet      bool
}

func currentSettings() settings {
	return settings{
		configFile: viper.GetString("config"),
		roots:      rootPaths,
		verbose:    viper.GetBool("verbose"),
		quiet:      viper.GetBool("quiet"),
	}
}

// newLogger builds the text logger written to w. Verbose wins over quiet.
func newLogger(w io.Writer, verbose, quiet bool) *slog.Logger {
	level := slog.LevelInfo
	switch {
	case verbose:
		level = slog.LevelDebug
	case quiet:
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// resolveRoots returns the absolute project roots, defaulting to the
// working directory.
func resolveRoots(paths []string) ([]string, error) {
	if len(paths) == 0 {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		return []string{wd}, nil
	}
	roots := make([]string, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve root %s: %w", p, err)
		}
		roots = append(roots, abs)
	}
	return roots, nil
}

// loadConfig reads an explicit config file, or the one of the first root.
func loadConfig(configFile string, roots []string) (*config.Config, error) {
	if configFile != "" {
		cfg, err := config.NewFileLoader(configFile).Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		return cfg, nil
	}
	cfg, err := config.LoadConfigFromDir(roots[0])
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// openEngine creates an engine over the roots named by s. Log output goes
// to logOut.
func openEngine(s settings, logOut io.Writer, opts ...engine.Option) (*engine.Engine, *slog.Logger, error) {
	roots, err := resolveRoots(s.roots)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := loadConfig(s.configFile, roots)
	if err != nil {
		return nil, nil, err
	}
	logger := newLogger(logOut, s.verbose, s.quiet)
	opts = append([]engine.Option{engine.WithLogger(logger)}, opts...)
	e, err := engine.New(cfg, roots, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start engine: %w", err)
	}
	return e, logger, nil
}
