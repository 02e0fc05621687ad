package consul

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/hashicorp/consul/api"
	"github.com/mwantia/fsindex/data"
	"github.com/mwantia/fsindex/store"
	"github.com/tidwall/btree"
)

// MaxTxnOps is the number of operations Consul accepts in one transaction.
const MaxTxnOps = 64

var (
	ErrTxnTooLarge = errors.New("consul: transaction exceeds operation limit")
	ErrTxnConflict = errors.New("consul: transaction rolled back")
)

// ConsulStore keeps index rows in the Consul KV store.
//
// Architecture:
//   - Every row is a JSON value stored under <prefix>/<table>/<directory>/<uuidv7>
//   - Begin loads the table prefix into a staged B-tree view
//   - Selects read the view, deletes and inserts modify it and queue KV operations
//   - Deletes by directory or of the whole table become a single delete-tree operation
//   - Other deletes are guarded with check-and-set on the row's modify index
//   - Commit submits the queued operations as a single atomic KV transaction
//
// Limitations:
//   - A transaction is limited to MaxTxnOps operations
//   - Delete-tree operations are not guarded against concurrent writers
//   - Every transaction lists the whole table prefix
type ConsulStore struct {
	client *api.Client
	kv     kvClient

	// Configuration
	config *ConsulStoreConfig
	table  store.Table
}

// ConsulStoreConfig contains configuration options for the Consul store
type ConsulStoreConfig struct {
	// Address of the Consul server (default: "127.0.0.1:8500")
	Address string `yaml:"address"`

	// Token for Consul ACL authentication (optional)
	Token string `yaml:"token,omitempty"`

	// Datacenter to use (optional)
	Datacenter string `yaml:"datacenter,omitempty"`

	// Namespace for Consul Enterprise (optional)
	Namespace string `yaml:"namespace,omitempty"`

	// Prefix for all keys in Consul KV (default: "fsindex")
	Prefix string `yaml:"prefix,omitempty"`
}

// kvClient is the subset of *api.KV used by the store.
type kvClient interface {
	List(prefix string, q *api.QueryOptions) (api.KVPairs, *api.QueryMeta, error)
	Txn(txn api.KVTxnOps, q *api.QueryOptions) (bool, *api.KVTxnResponse, *api.QueryMeta, error)
}

// NewConsulStore creates a new Consul-backed index store
func NewConsulStore(config *ConsulStoreConfig, table store.Table) (*ConsulStore, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}

	if config == nil {
		config = &ConsulStoreConfig{}
	}

	// Set defaults
	if config.Address == "" {
		config.Address = "127.0.0.1:8500"
	}

	if config.Prefix == "" {
		config.Prefix = "fsindex"
	}

	// Create Consul client
	clientConfig := api.DefaultConfig()
	clientConfig.Address = config.Address
	if config.Token != "" {
		clientConfig.Token = config.Token
	}
	if config.Datacenter != "" {
		clientConfig.Datacenter = config.Datacenter
	}
	if config.Namespace != "" {
		clientConfig.Namespace = config.Namespace
	}

	client, err := api.NewClient(clientConfig)
	if err != nil {
		return nil, err
	}

	return &ConsulStore{
		client: client,
		kv:     client.KV(),
		config: config,
		table:  table,
	}, nil
}

// Name returns the identifier name defined for this store
func (*ConsulStore) Name() string {
	return "consul"
}

// Open is part of the lifecycle behaviour and verifies that a cluster leader is reachable.
func (cs *ConsulStore) Open(ctx context.Context) error {
	if cs.client == nil {
		return nil
	}

	leader, err := cs.client.Status().LeaderWithQueryOptions((&api.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to reach consul: %w", err)
	}
	if leader == "" {
		return fmt.Errorf("failed to reach consul: no cluster leader")
	}

	return nil
}

// Close is part of the lifecycle behaviour and gets called when closing this store
func (cs *ConsulStore) Close(ctx context.Context) error {
	// Nothing to clean up - Consul client is stateless
	return nil
}

// tablePrefix returns the key prefix holding all rows, always ending in '/'.
func (cs *ConsulStore) tablePrefix() string {
	prefix := strings.Trim(cs.config.Prefix, "/")
	if prefix == "" {
		return cs.table.String() + "/"
	}
	return prefix + "/" + cs.table.String() + "/"
}

func (cs *ConsulStore) Begin(ctx context.Context) (store.Tx, error) {
	prefix := cs.tablePrefix()

	pairs, _, err := cs.kv.List(prefix, (&api.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to list rows: %w", err)
	}

	view := btree.NewMap[string, stagedRow](0)
	for _, pair := range pairs {
		var row data.IndexRow
		if err := json.Unmarshal(pair.Value, &row); err != nil {
			return nil, fmt.Errorf("failed to decode row '%s': %w", pair.Key, err)
		}
		view.Set(pair.Key, stagedRow{row: row, index: pair.ModifyIndex})
	}

	return &consulTx{
		kv:     cs.kv,
		prefix: prefix,
		view:   view,
	}, nil
}

type stagedRow struct {
	row   data.IndexRow
	index uint64
}

type consulTx struct {
	kv     kvClient
	prefix string
	view   *btree.Map[string, stagedRow]
	ops    api.KVTxnOps
	done   bool
}

func (tx *consulTx) Insert(ctx context.Context, row data.IndexRow) error {
	if tx.done {
		return data.ErrTxDone
	}

	value, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to encode row %s: %w", row, err)
	}

	key := tx.prefix + directoryKey(row.Directory) + "/" + uuid.Must(uuid.NewV7()).String()
	tx.view.Set(key, stagedRow{row: row})
	tx.ops = append(tx.ops, &api.KVTxnOp{
		Verb:  api.KVSet,
		Key:   key,
		Value: value,
	})

	return nil
}

func (tx *consulTx) Delete(ctx context.Context, pred *store.Predicate) (int64, error) {
	if tx.done {
		return 0, data.ErrTxDone
	}

	var matched []string
	tx.view.Scan(func(key string, staged stagedRow) bool {
		if pred.Match(staged.row) {
			matched = append(matched, key)
		}
		return true
	})

	if prefix, ok := tx.treePrefix(pred); ok {
		for _, key := range matched {
			tx.view.Delete(key)
		}
		if len(matched) > 0 {
			// The tree delete supersedes every queued operation below prefix
			tx.dropOps(prefix)
			tx.ops = append(tx.ops, &api.KVTxnOp{
				Verb: api.KVDeleteTree,
				Key:  prefix,
			})
		}
		return int64(len(matched)), nil
	}

	for _, key := range matched {
		staged, _ := tx.view.Delete(key)
		if staged.index == 0 {
			// Inserted by this transaction, drop the pending set instead
			tx.dropOps(key)
			continue
		}

		tx.ops = append(tx.ops, &api.KVTxnOp{
			Verb:  api.KVDeleteCAS,
			Key:   key,
			Index: staged.index,
		})
	}

	return int64(len(matched)), nil
}

// treePrefix returns the key prefix holding exactly the rows pred matches.
// Only whole-table and whole-directory predicates have one.
func (tx *consulTx) treePrefix(pred *store.Predicate) (string, bool) {
	if pred == nil {
		return tx.prefix, true
	}
	if pred.FullDirectory != nil || pred.File != nil || pred.FileIsNull {
		return "", false
	}
	if pred.Directory == nil {
		return tx.prefix, true
	}

	return tx.prefix + directoryKey(*pred.Directory) + "/", true
}

// dropOps removes queued operations on keys starting with prefix.
func (tx *consulTx) dropOps(prefix string) {
	ops := tx.ops[:0]
	for _, op := range tx.ops {
		if !strings.HasPrefix(op.Key, prefix) {
			ops = append(ops, op)
		}
	}
	tx.ops = ops
}

// directoryKey maps a directory basename to one key segment. The root
// directory has an empty basename and maps to an escaped slash, which no
// other basename can produce.
func directoryKey(directory string) string {
	if directory == "" {
		return "%2F"
	}
	return url.PathEscape(directory)
}

func (tx *consulTx) Select(ctx context.Context, pred *store.Predicate) ([]data.IndexRow, error) {
	if tx.done {
		return nil, data.ErrTxDone
	}

	rows := make([]data.IndexRow, 0)
	tx.view.Scan(func(_ string, staged stagedRow) bool {
		if pred.Match(staged.row) {
			rows = append(rows, staged.row)
		}
		return true
	})

	return rows, nil
}

func (tx *consulTx) Commit(ctx context.Context) error {
	if tx.done {
		return data.ErrTxDone
	}
	tx.done = true

	if len(tx.ops) == 0 {
		return nil
	}
	if len(tx.ops) > MaxTxnOps {
		return fmt.Errorf("%w: %d operations", ErrTxnTooLarge, len(tx.ops))
	}

	ok, resp, _, err := tx.kv.Txn(tx.ops, (&api.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	if !ok {
		var reasons []string
		if resp != nil {
			for _, txnErr := range resp.Errors {
				reasons = append(reasons, fmt.Sprintf("op %d: %s", txnErr.OpIndex, txnErr.What))
			}
		}
		return fmt.Errorf("%w: %s", ErrTxnConflict, strings.Join(reasons, "; "))
	}

	return nil
}

func (tx *consulTx) Rollback(ctx context.Context) error {
	// Nothing reached consul before Commit
	tx.done = true
	tx.ops = nil
	return nil
}
