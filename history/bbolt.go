package history

import (
	"errors"
	"io"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"
)

var (
	historyBucket = []byte("history")
)

type bboltKV struct {
	db *bbolt.DB
}

type bboltIterator struct {
	tx   *bbolt.Tx
	cr   *bbolt.Cursor
	key  []byte
	next bool
}

func MakeBBoltKV(dataDir string) (KV, error) {
	err := os.MkdirAll(dataDir, 0755)
	if err != nil {
		return nil, err
	}
	db, err := bbolt.Open(filepath.Join(dataDir, "history.bbolt"), 0644, nil)
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(historyBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return bboltKV{
		db: db,
	}, nil
}

func (bkv bboltKV) Iterate(key []byte) (Iterator, error) {
	tx, err := bkv.db.Begin(false)
	if err != nil {
		return nil, err
	}
	bkt := tx.Bucket(historyBucket)
	if bkt == nil {
		tx.Rollback()
		return nil, errors.New("bbolt: missing history bucket")
	}

	return &bboltIterator{
		tx:  tx,
		cr:  bkt.Cursor(),
		key: append(make([]byte, 0, len(key)), key...),
	}, nil
}

func (bit *bboltIterator) Item(fn func(key, val []byte) error) error {
	var key, val []byte
	if bit.next {
		key, val = bit.cr.Next()
	} else {
		key, val = bit.cr.Seek(bit.key)
		bit.next = true
		bit.key = nil
	}

	if key == nil {
		return io.EOF
	}

	return fn(key, val)
}

func (bit *bboltIterator) Close() {
	if bit.tx != nil {
		bit.tx.Rollback()
	}
}

func (bkv bboltKV) Set(key, val []byte) error {
	return bkv.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(historyBucket).Put(key, val)
	})
}

func (bkv bboltKV) Close() error {
	return bkv.db.Close()
}
