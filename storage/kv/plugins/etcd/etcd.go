// Package etcd provides a kv driver backed by an etcd cluster.
// Transactions read at a single etcd revision and commit with
// an etcd Txn guarded by revision compares over everything
// they read, so a transaction that lost a race fails with
// kv.ErrConflict instead of overwriting newer data.
package etcd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jrife/rangeconf/storage/kv"
	"github.com/jrife/rangeconf/storage/kv/keys"
	"github.com/jrife/rangeconf/storage/kv/occ"
	"github.com/jrife/rangeconf/utils/uuid"
	"go.etcd.io/etcd/api/v3/v3rpc/rpctypes"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

const (
	// DriverName is the name of this plugin
	DriverName = "etcd"
	// EndpointsEnv names the environment variable NewTempStore
	// reads a comma separated list of endpoints from
	EndpointsEnv = "RANGECONF_ETCD_ENDPOINTS"
	// DefaultDialTimeout is used when no dial timeout is configured
	DefaultDialTimeout = 5 * time.Second
	// fromKey as a range end means "every key >= start"
	fromKey = "\x00"
)

// ErrNoEndpoints is returned when no etcd endpoints are configured
var ErrNoEndpoints = errors.New("no etcd endpoints configured")

// Plugins returns the plugins provided by this package
func Plugins() []kv.Plugin {
	return []kv.Plugin{
		&Plugin{},
	}
}

var _ kv.Plugin = (*Plugin)(nil)

// Plugin implements kv.Plugin
type Plugin struct {
}

// Name implements kv.Plugin.Name
func (plugin *Plugin) Name() string {
	return DriverName
}

// NewStore implements kv.Plugin.NewStore. "endpoints" is required
// and may be a []string or a comma separated string. "dial_timeout"
// (time.Duration or duration string) and "prefix" (string) are optional.
func (plugin *Plugin) NewStore(options kv.PluginOptions) (kv.Store, error) {
	var config Config

	switch endpoints := options["endpoints"].(type) {
	case []string:
		config.Endpoints = endpoints
	case string:
		config.Endpoints = splitEndpoints(endpoints)
	case nil:
		return nil, fmt.Errorf("\"endpoints\" is required")
	default:
		return nil, fmt.Errorf("\"endpoints\" must be a string or a list of strings")
	}

	switch dialTimeout := options["dial_timeout"].(type) {
	case time.Duration:
		config.DialTimeout = dialTimeout
	case string:
		d, err := time.ParseDuration(dialTimeout)

		if err != nil {
			return nil, fmt.Errorf("\"dial_timeout\" is not a valid duration: %w", err)
		}

		config.DialTimeout = d
	case nil:
	default:
		return nil, fmt.Errorf("\"dial_timeout\" must be a duration")
	}

	if prefix, ok := options["prefix"]; ok {
		if prefixString, ok := prefix.(string); !ok {
			return nil, fmt.Errorf("\"prefix\" must be a string")
		} else {
			config.Prefix = prefixString
		}
	}

	if logger, ok := options["logger"].(*zap.Logger); ok {
		config.Logger = logger
	}

	store, err := New(config)

	if err != nil {
		return nil, err
	}

	return store, nil
}

// NewTempStore implements kv.Plugin.NewTempStore. It connects to
// the endpoints listed in $RANGECONF_ETCD_ENDPOINTS and confines
// the store to a random prefix that Delete removes.
func (plugin *Plugin) NewTempStore() (kv.Store, error) {
	endpoints := splitEndpoints(os.Getenv(EndpointsEnv))

	if len(endpoints) == 0 {
		return nil, ErrNoEndpoints
	}

	return plugin.NewStore(kv.PluginOptions{
		"endpoints": endpoints,
		"prefix":    fmt.Sprintf("/tmp/%s/", uuid.MustUUID()),
	})
}

func splitEndpoints(s string) []string {
	var endpoints []string

	for _, endpoint := range strings.Split(s, ",") {
		if endpoint = strings.TrimSpace(endpoint); endpoint != "" {
			endpoints = append(endpoints, endpoint)
		}
	}

	return endpoints
}

// Config configures an etcd store
type Config struct {
	Endpoints   []string
	DialTimeout time.Duration
	// Prefix confines every key of the store under a prefix
	Prefix string
	Logger *zap.Logger
}

var _ kv.Store = (*Store)(nil)

// Store is a kv.Store backed by etcd
type Store struct {
	client *clientv3.Client
	prefix []byte
}

// New connects to the etcd cluster
func New(config Config) (*Store, error) {
	if len(config.Endpoints) == 0 {
		return nil, ErrNoEndpoints
	}

	if config.DialTimeout == 0 {
		config.DialTimeout = DefaultDialTimeout
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   config.Endpoints,
		DialTimeout: config.DialTimeout,
		DialOptions: []grpc.DialOption{grpc.WithBlock()},
		Logger:      config.Logger,
	})

	if err != nil {
		return nil, fmt.Errorf("could not connect to etcd at %v: %w", config.Endpoints, err)
	}

	return NewWithClient(client, []byte(config.Prefix)), nil
}

// NewWithClient creates a store that uses an existing client.
// Closing the store closes the client.
func NewWithClient(client *clientv3.Client, prefix []byte) *Store {
	return &Store{client: client, prefix: prefix}
}

// Begin implements kv.Store.Begin
func (store *Store) Begin(ctx context.Context, writable bool) (kv.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if store.client.Ctx().Err() != nil {
		return nil, kv.ErrClosed
	}

	txn := occ.New(
		&snapshot{ctx: ctx, client: store.client},
		&committer{ctx: ctx, client: store.client},
		writable,
	)

	return kv.Namespace(txn, store.prefix), nil
}

// Close implements kv.Store.Close
func (store *Store) Close() error {
	return store.client.Close()
}

// Delete implements kv.Store.Delete. It removes every key
// under the store's prefix. Without a prefix it only closes
// the client and leaves the cluster untouched.
func (store *Store) Delete() error {
	if len(store.prefix) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultDialTimeout)
		defer cancel()

		if _, err := store.client.Delete(ctx, string(store.prefix), clientv3.WithPrefix()); err != nil {
			store.client.Close()

			return fmt.Errorf("could not delete prefix %q: %w", store.prefix, err)
		}
	}

	return store.Close()
}

var _ occ.Snapshot = (*snapshot)(nil)

// snapshot reads at the revision of its first read
type snapshot struct {
	ctx      context.Context
	client   *clientv3.Client
	revision int64
}

func (snap *snapshot) Revision() int64 {
	return snap.revision
}

func (snap *snapshot) Scan(r keys.Range, order kv.SortOrder, limit int) ([]occ.Entry, error) {
	if r.Empty() {
		return nil, nil
	}

	sortOrder := clientv3.SortAscend

	if order == kv.SortOrderDesc {
		sortOrder = clientv3.SortDescend
	}

	opts := []clientv3.OpOption{clientv3.WithSort(clientv3.SortByKey, sortOrder), rangeEnd(r)}

	if limit > 0 {
		opts = append(opts, clientv3.WithLimit(int64(limit)))
	}

	if snap.revision > 0 {
		opts = append(opts, clientv3.WithRev(snap.revision))
	}

	resp, err := snap.client.Get(snap.ctx, rangeStart(r), opts...)

	if err != nil {
		return nil, wrapError("could not read range", err)
	}

	if snap.revision == 0 {
		snap.revision = resp.Header.Revision
	}

	entries := make([]occ.Entry, len(resp.Kvs))

	for i, pair := range resp.Kvs {
		entries[i] = occ.Entry{Key: pair.Key, Value: pair.Value, ModRevision: pair.ModRevision}
	}

	return entries, nil
}

var _ occ.Committer = (*committer)(nil)

type committer struct {
	ctx    context.Context
	client *clientv3.Client
}

func (c *committer) Commit(reads occ.ReadSet, writes []occ.Write) error {
	var cmps []clientv3.Cmp

	if reads.Revision > 0 {
		for _, r := range reads.Ranges {
			if r.Empty() {
				continue
			}

			cmp := clientv3.Compare(clientv3.ModRevision(rangeStart(r)), "<", reads.Revision+1)

			if r.Max == nil {
				cmp = cmp.WithRange(fromKey)
			} else {
				cmp = cmp.WithRange(string(r.Max))
			}

			cmps = append(cmps, cmp)
		}

		for key, modRevision := range reads.Observed {
			cmps = append(cmps, clientv3.Compare(clientv3.ModRevision(key), "=", modRevision))
		}
	}

	ops := make([]clientv3.Op, len(writes))

	for i, write := range writes {
		if write.Value == nil {
			ops[i] = clientv3.OpDelete(string(write.Key))
		} else {
			ops[i] = clientv3.OpPut(string(write.Key), string(write.Value))
		}
	}

	resp, err := c.client.Txn(c.ctx).If(cmps...).Then(ops...).Commit()

	if err != nil {
		return wrapError("could not commit transaction", err)
	}

	if !resp.Succeeded {
		return kv.ErrConflict
	}

	return nil
}

func rangeStart(r keys.Range) string {
	if len(r.Min) == 0 {
		// etcd keys can't be empty. This is the smallest key.
		return "\x00"
	}

	return string(r.Min)
}

func rangeEnd(r keys.Range) clientv3.OpOption {
	if r.Max == nil {
		return clientv3.WithFromKey()
	}

	return clientv3.WithRange(string(r.Max))
}

func wrapError(wrap string, err error) error {
	switch {
	case errors.Is(err, rpctypes.ErrCompacted):
		// the snapshot revision is gone. Starting over
		// from a fresh revision resolves it.
		return kv.ErrConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}

	return fmt.Errorf("%s: %w", wrap, err)
}
