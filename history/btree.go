package history

import (
	"bytes"
	"io"
	"sync"

	"github.com/google/btree"
)

type btreeKV struct {
	mutex sync.Mutex
	tree  *btree.BTree
}

type btreeIterator struct {
	idx   int
	items []btreeItem
}

type btreeItem struct {
	key []byte
	val []byte
}

func (bi btreeItem) Less(item btree.Item) bool {
	bi2 := item.(btreeItem)
	return bytes.Compare(bi.key, bi2.key) < 0
}

// MakeBTreeKV returns an in memory store.
func MakeBTreeKV() KV {
	return &btreeKV{
		tree: btree.New(16),
	}
}

func (bkv *btreeKV) Iterate(key []byte) (Iterator, error) {
	bkv.mutex.Lock()
	tree := bkv.tree.Clone()
	bkv.mutex.Unlock()

	var items []btreeItem
	tree.AscendGreaterOrEqual(btreeItem{key: key},
		func(item btree.Item) bool {
			items = append(items, item.(btreeItem))
			return true
		})

	return &btreeIterator{
		items: items,
	}, nil
}

func (bit *btreeIterator) Item(fn func(key, val []byte) error) error {
	if bit.idx == len(bit.items) {
		return io.EOF
	}

	err := fn(bit.items[bit.idx].key, bit.items[bit.idx].val)
	bit.idx += 1
	return err
}

func (bit *btreeIterator) Close() {
	// Nothing.
}

func (bkv *btreeKV) Set(key, val []byte) error {
	bkv.mutex.Lock()
	defer bkv.mutex.Unlock()

	bkv.tree.ReplaceOrInsert(btreeItem{
		key: append(make([]byte, 0, len(key)), key...),
		val: append(make([]byte, 0, len(val)), val...),
	})
	return nil
}

func (bkv *btreeKV) Close() error {
	return nil
}
