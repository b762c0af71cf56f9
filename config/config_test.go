package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jrife/rangeconf/config"
	"github.com/jrife/rangeconf/ddconfig"
	"github.com/jrife/rangeconf/storage/kv"
)

func writeFile(t *testing.T, name string, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)

	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	return path
}

func TestLoad(t *testing.T) {
	etcdConfig := config.Config{
		LogLevel: "debug",
		Prefix:   ddconfig.DefaultPrefix,
		Store: config.Store{
			Driver:      "etcd",
			Endpoints:   []string{"localhost:2379", "localhost:22379"},
			DialTimeout: "2s",
		},
	}

	testCases := map[string]struct {
		name     string
		contents string
		result   config.Config
	}{
		"toml": {
			name: "ddconfig.toml",
			contents: `log_level = "debug"

[store]
driver = "etcd"
endpoints = ["localhost:2379", "localhost:22379"]
dial_timeout = "2s"
`,
			result: etcdConfig,
		},
		"yaml": {
			name: "ddconfig.yaml",
			contents: `log_level: debug
store:
  driver: etcd
  endpoints:
    - localhost:2379
    - localhost:22379
  dial_timeout: 2s
`,
			result: etcdConfig,
		},
		"json": {
			name:     "ddconfig.json",
			contents: `{"log_level": "debug", "store": {"driver": "etcd", "endpoints": ["localhost:2379", "localhost:22379"], "dial_timeout": "2s"}}`,
			result:   etcdConfig,
		},
		"defaults": {
			name:     "ddconfig.yaml",
			contents: `prefix: /cfg/`,
			result: config.Config{
				LogLevel: config.DefaultLogLevel,
				Prefix:   "/cfg/",
				Store:    config.Store{Driver: config.DefaultDriver},
			},
		},
		"bbolt": {
			name: "ddconfig.toml",
			contents: `[store]
driver = "bbolt"
path = "/var/lib/ddconfig.db"
`,
			result: config.Config{
				LogLevel: config.DefaultLogLevel,
				Prefix:   ddconfig.DefaultPrefix,
				Store:    config.Store{Driver: "bbolt", Path: "/var/lib/ddconfig.db"},
			},
		},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			result, err := config.Load(writeFile(t, testCase.name, testCase.contents))

			if err != nil {
				t.Fatalf("expected err to be nil, got %#v", err)
			}

			if diff := cmp.Diff(testCase.result, result); diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestLoadErrors(t *testing.T) {
	testCases := map[string]struct {
		name     string
		contents string
	}{
		"unknown-suffix":      {name: "ddconfig.ini", contents: ""},
		"unknown-driver":      {name: "ddconfig.yaml", contents: "store:\n  driver: leveldb\n"},
		"bbolt-without-path":  {name: "ddconfig.yaml", contents: "store:\n  driver: bbolt\n"},
		"etcd-without-hosts":  {name: "ddconfig.yaml", contents: "store:\n  driver: etcd\n"},
		"bad-log-level":       {name: "ddconfig.yaml", contents: "log_level: loud\n"},
		"bad-dial-timeout":    {name: "ddconfig.json", contents: `{"store": {"driver": "etcd", "endpoints": ["a"], "dial_timeout": "soon"}}`},
		"malformed-json":      {name: "ddconfig.json", contents: `{"store": `},
		"malformed-toml-type": {name: "ddconfig.toml", contents: "log_level = 3\n"},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			if _, err := config.Load(writeFile(t, testCase.name, testCase.contents)); err == nil {
				t.Fatalf("expected an error")
			}
		})
	}

	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}

func TestPluginOptions(t *testing.T) {
	testCases := map[string]struct {
		store   config.Store
		options kv.PluginOptions
	}{
		"memory": {
			store:   config.Store{Driver: "memory"},
			options: kv.PluginOptions{},
		},
		"bbolt": {
			store:   config.Store{Driver: "bbolt", Path: "/tmp/db", Bucket: "b"},
			options: kv.PluginOptions{"path": "/tmp/db", "bucket": "b"},
		},
		"etcd": {
			store:   config.Store{Driver: "etcd", Endpoints: []string{"a:1"}, DialTimeout: "1s", KeyPrefix: "/ddconfig/"},
			options: kv.PluginOptions{"endpoints": []string{"a:1"}, "dial_timeout": "1s", "prefix": "/ddconfig/"},
		},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			if diff := cmp.Diff(testCase.options, testCase.store.PluginOptions()); diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		cfg := config.Default()
		cfg.LogLevel = level

		logger, err := cfg.NewLogger()

		if err != nil {
			t.Fatalf("expected err to be nil for level %s, got %#v", level, err)
		}

		logger.Sync()
	}
}
