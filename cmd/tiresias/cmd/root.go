// Package cmd implements the tiresias command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/tiresias/internal/config"
	"github.com/MeKo-Tech/tiresias/internal/ocr"
	"github.com/MeKo-Tech/tiresias/internal/version"
)

// app carries the state shared by the commands of one command tree.
type app struct {
	v         *viper.Viper
	cfgFile   string
	cfg       *config.Config
	newEngine func(ocr.Config) (ocr.Engine, error)
}

// Option customises a command tree.
type Option func(*app)

// WithEngineFactory replaces the function that opens the OCR engine.
func WithEngineFactory(fn func(ocr.Config) (ocr.Engine, error)) Option {
	return func(a *app) { a.newEngine = fn }
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}

// NewRootCommand builds the command tree with its own configuration state.
func NewRootCommand(opts ...Option) *cobra.Command {
	a := &app{v: viper.New(), newEngine: ocr.NewEngine}
	for _, o := range opts {
		o(a)
	}

	root := &cobra.Command{
		Use:   "tiresias",
		Short: "Locate mine gallery survey photos from the text painted on the walls",
		Long: `tiresias reads the gallery identifiers painted on survey photographs,
matches them against the gallery shapefile and draws where each photo was taken.

It also runs exported object detection models on the same photos.

Examples:
  tiresias locate photos/ --shapefile galeries.shp --out-dir figures
  tiresias galleries neighbors G12 --shapefile galeries.shp
  tiresias detect photo.jpg --benchmark
  tiresias serve --port 8080`,
		SilenceUsage: true,
		Version:      version.Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}
	root.SetVersionTemplate(version.String() + "\n")

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default is tiresias.yaml in ., $HOME, /etc/tiresias or $XDG_CONFIG_HOME/tiresias)")
	pf.BoolP("verbose", "v", false, "verbose output (same as --log-level=debug)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("models-dir", config.DefaultModelsDir, "directory containing ONNX models (or "+config.ModelsDirEnv+")")
	pf.String("shapefile", "", "gallery shapefile (.shp)")
	pf.String("column", "", "attribute column holding the gallery id")
	pf.String("device", "", "inference device: cpu, cuda or cuda:N")

	for flag, key := range map[string]string{
		"verbose":    "verbose",
		"log-level":  "log_level",
		"models-dir": "models_dir",
		"shapefile":  "gallery.shapefile",
		"column":     "gallery.column_id",
		"device":     "device",
	} {
		if err := a.v.BindPFlag(key, pf.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("bind --%s: %v", flag, err))
		}
	}

	root.AddCommand(
		newLocateCommand(a),
		newDetectCommand(a),
		newGalleriesCommand(a),
		newServeCommand(a),
		newConfigCommand(a),
		newVersionCommand(),
	)
	return root
}

// init loads the configuration and sets up logging on the command's error
// stream. Validation is left to the commands that need a usable config.
func (a *app) init(cmd *cobra.Command) error {
	loader := config.NewLoaderWith(a.v)
	cfg, err := loader.LoadWithFileWithoutValidation(a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	slog.SetDefault(slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: logLevel(cfg)})))
	if used := loader.GetConfigFileUsed(); used != "" {
		slog.Debug("configuration loaded", "file", used)
	}
	return nil
}

func logLevel(cfg *config.Config) slog.Level {
	if cfg.Verbose {
		return slog.LevelDebug
	}
	switch cfg.LogLevel {
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

// config returns the validated configuration.
func (a *app) config() (*config.Config, error) {
	if a.cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	if err := a.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return a.cfg, nil
}
