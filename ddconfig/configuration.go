// Package ddconfig stores the range configuration overrides that
// operators attach to key ranges for the data distributor.
//
// Every override lives in a range map under a namespace prefix.
// Writes to any map of the namespace update a shared change trigger
// so that consumers can cache snapshots cheaply.
package ddconfig

import (
	"github.com/jrife/rangeconf/rangemap"
	"github.com/jrife/rangeconf/storage/kv/tuple"
	"go.uber.org/zap"
)

// DefaultPrefix is the namespace prefix used when none is configured
const DefaultPrefix = "\xff\x02/ddconfig/"

const (
	userRangeConfigName = "userRangeConfig"
	changeTriggerName   = "_changeTrigger"
)

// RangeConfigMap is a range map of RangeConfig values
type RangeConfigMap = rangemap.RangeMap[RangeConfig]

// RangeConfigMapSnapshot is a local snapshot of a RangeConfigMap
type RangeConfigMapSnapshot = rangemap.LocalSnapshot[RangeConfig]

// RangeConfigEntry is a boundary of a RangeConfigMap and its value
type RangeConfigEntry = rangemap.Entry[RangeConfig]

// Config contains configuration for a Configuration
type Config struct {
	// Prefix defaults to DefaultPrefix
	Prefix []byte
	// Logger defaults to zap.L()
	Logger *zap.Logger
}

// Configuration binds the range configuration maps to a prefix
type Configuration struct {
	prefix []byte
	logger *zap.Logger
}

// New creates a Configuration
func New(config Config) *Configuration {
	if config.Prefix == nil {
		config.Prefix = []byte(DefaultPrefix)
	}

	if config.Logger == nil {
		config.Logger = zap.L()
	}

	return &Configuration{prefix: config.Prefix, logger: config.Logger}
}

// Prefix returns the namespace prefix
func (c *Configuration) Prefix() []byte {
	return c.prefix
}

// Trigger returns the change trigger of the namespace
func (c *Configuration) Trigger() rangemap.Trigger {
	return rangemap.NewTrigger(tuple.Subspace(c.prefix, changeTriggerName))
}

// UserRangeConfig returns the map of operator overrides. Each call
// returns a new handle bound to the same keys.
func (c *Configuration) UserRangeConfig() *RangeConfigMap {
	return rangemap.New(rangemap.Config[RangeConfig]{
		Prefix:     tuple.Subspace(c.prefix, userRangeConfigName),
		Trigger:    c.Trigger(),
		KeyCodec:   tuple.BytesCodec{},
		ValueCodec: Codec{},
		Logger:     c.logger.With(zap.String("map", userRangeConfigName)),
	})
}
