package history

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// KV is an ordered key value store.
type KV interface {
	// Iterate returns an iterator over the keys greater than or equal to key, in order.
	Iterate(key []byte) (Iterator, error)
	Set(key, val []byte) error
	Close() error
}

type Iterator interface {
	// Item calls fn with the current key and value, which are only valid during the call,
	// and advances the iterator; io.EOF is returned when there are no more items.
	Item(fn func(key, val []byte) error) error
	Close()
}

// OpenKV opens a store of the given kind: memory, bbolt, badger, or pebble. The persistent
// kinds keep their data in dataDir.
func OpenKV(kind, dataDir string, logger *log.Logger) (KV, error) {
	switch kind {
	case "memory":
		return MakeBTreeKV(), nil
	case "bbolt":
		return MakeBBoltKV(dataDir)
	case "badger":
		return MakeBadgerKV(dataDir, logger)
	case "pebble":
		return MakePebbleKV(dataDir, logger)
	}
	return nil, fmt.Errorf("history: unknown store: %s", kind)
}
