package main

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/jrife/rangeconf/config"
	"github.com/jrife/rangeconf/ddconfig"
	"github.com/jrife/rangeconf/storage/kv"
	"github.com/jrife/rangeconf/storage/kv/plugins"
	"github.com/jrife/rangeconf/utils/log"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app holds what every subcommand needs once the root command
// has loaded the configuration
type app struct {
	cfgPath       string
	logLevel      string
	hexKeys       bool
	logger        *zap.Logger
	store         kv.Store
	configuration *ddconfig.Configuration
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ddconfig",
		Short: "inspect and edit the range configuration of the data distributor",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", "", "path to config file")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "overrides log_level from the config file")
	rootCmd.PersistentFlags().BoolVar(&a.hexKeys, "hex", false, "keys are given and printed hex encoded")

	rootCmd.AddCommand(
		newSetCmd(a),
		newGetCmd(a),
		newListCmd(a),
		newClearCmd(a),
		newSplitCmd(a),
		newMergeCmd(a),
		newCoalesceCmd(a),
	)

	return rootCmd
}

func (a *app) open() error {
	cfg := config.Default()

	if a.cfgPath != "" {
		var err error

		if cfg, err = config.Load(a.cfgPath); err != nil {
			return err
		}
	}

	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}

	logger, err := cfg.NewLogger()

	if err != nil {
		return fmt.Errorf("could not build logger: %w", err)
	}

	plugin := plugins.Plugin(cfg.Store.Driver)

	if plugin == nil {
		return fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	logger.Debug("opening store", zap.String("driver", cfg.Store.Driver))

	store, err := plugin.NewStore(cfg.Store.PluginOptions())

	if err != nil {
		return fmt.Errorf("could not open %s store: %w", cfg.Store.Driver, err)
	}

	a.logger = logger
	a.store = store
	a.configuration = ddconfig.New(ddconfig.Config{
		Prefix: []byte(cfg.Prefix),
		Logger: logger,
	})

	return nil
}

// close releases whatever open acquired. It is safe to call
// when open failed or never ran.
func (a *app) close() error {
	if a.logger != nil {
		defer a.logger.Sync()
	}

	if a.store == nil {
		return nil
	}

	return a.store.Close()
}

func (a *app) context(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()

	if ctx == nil {
		ctx = context.Background()
	}

	ctx = log.WithLogger(ctx, a.logger)

	return log.WithFields(ctx, zap.String("command", cmd.Name()))
}

// key decodes a key given on the command line
func (a *app) key(arg string) ([]byte, error) {
	if !a.hexKeys {
		return []byte(arg), nil
	}

	key, err := hex.DecodeString(arg)

	if err != nil {
		return nil, fmt.Errorf("key %q is not hex encoded: %w", arg, err)
	}

	return key, nil
}

// keys decodes the optional [begin [end]] arguments
func (a *app) keys(args []string) (begin []byte, end []byte, err error) {
	if len(args) > 0 {
		if begin, err = a.key(args[0]); err != nil {
			return nil, nil, err
		}
	}

	if len(args) > 1 {
		if end, err = a.key(args[1]); err != nil {
			return nil, nil, err
		}
	}

	return begin, end, nil
}

func (a *app) format(key []byte) string {
	if key == nil {
		return "end"
	}

	if a.hexKeys {
		return hex.EncodeToString(key)
	}

	return fmt.Sprintf("%q", key)
}
