package topology

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v3"
)

// EndpointCache is an on-disk, cold-start cache of server endpoint URLs. It
// exists purely so a restarted coordinator can resolve destinations before
// Raft has replayed its log and Gossip has rebuilt membership; it is not the
// dispatcher's own request state and is never consulted once Raft/Gossip
// report a fresher answer.
type EndpointCache struct {
	db     *badger.DB
	logger *slog.Logger
}

// OpenEndpointCache opens (or creates) the badger-backed cache at dir.
func OpenEndpointCache(dir string, logger *slog.Logger) (*EndpointCache, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts := badger.DefaultOptions(dir).WithLogger(&badgerLogger{logger: logger})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("endpointcache: open: %w", err)
	}

	return &EndpointCache{db: db, logger: logger}, nil
}

// Store persists the endpoint for a server ID.
func (c *EndpointCache) Store(serverID, endpoint string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(serverID), []byte(endpoint))
	})
}

// Lookup returns the cached endpoint for a server ID, if any.
func (c *EndpointCache) Lookup(serverID string) (string, bool, error) {
	var endpoint string
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(serverID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			endpoint = string(val)
			return nil
		})
	})
	if err != nil {
		return "", false, fmt.Errorf("endpointcache: lookup: %w", err)
	}
	return endpoint, endpoint != "", nil
}

// LoadAll returns every cached server ID -> endpoint pair, used to warm the
// in-memory endpoint table at startup.
func (c *EndpointCache) LoadAll() (map[string]string, error) {
	out := make(map[string]string)
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.KeyCopy(nil))
			err := item.Value(func(val []byte) error {
				out[key] = string(val)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("endpointcache: load all: %w", err)
	}
	return out, nil
}

// Close releases the underlying badger database.
func (c *EndpointCache) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// badgerLogger adapts slog.Logger to badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
