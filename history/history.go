// Package history records the statements executed by a session.
package history

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/leftmike/planexec/engine"
)

const (
	idField   protowire.Number = 1
	textField protowire.Number = 2
	timeField protowire.Number = 3
)

var (
	errClosed = errors.New("history: closed")
)

// Entry is a recorded statement; Seq orders the entries of a history.
type Entry struct {
	engine.QueryRecord
	Seq  uint64
	Time time.Time
}

// QueryHistory is a listener which records every statement executed by the sessions it is
// registered with.
type QueryHistory struct {
	mutex   sync.Mutex
	kv      KV
	lastSeq uint64
	now     func() time.Time
}

// NewQueryHistory returns a history which appends to the entries already in kv.
func NewQueryHistory(kv KV) (*QueryHistory, error) {
	qh := &QueryHistory{
		kv:  kv,
		now: time.Now,
	}

	err := qh.iterate(func(e Entry) error {
		qh.lastSeq = e.Seq
		return nil
	})
	if err != nil {
		return nil, err
	}
	return qh, nil
}

func makeKey(seq uint64) []byte {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], seq)
	return key[:]
}

func (qh *QueryHistory) AddQuery(rec engine.QueryRecord) error {
	qh.mutex.Lock()
	defer qh.mutex.Unlock()

	if qh.kv == nil {
		return errClosed
	}

	seq := qh.lastSeq + 1
	err := qh.kv.Set(makeKey(seq), encodeEntry(Entry{QueryRecord: rec, Time: qh.now()}))
	if err != nil {
		return err
	}
	qh.lastSeq = seq
	return nil
}

func (qh *QueryHistory) iterate(fn func(e Entry) error) error {
	it, err := qh.kv.Iterate(makeKey(0))
	if err != nil {
		return err
	}
	defer it.Close()

	for {
		err = it.Item(
			func(key, val []byte) error {
				if len(key) != 8 {
					return fmt.Errorf("history: bad key: %v", key)
				}
				e, err := decodeEntry(binary.BigEndian.Uint64(key), val)
				if err != nil {
					return err
				}
				return fn(e)
			})
		if err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}
	}
}

// Entries returns every entry in the history, oldest first.
func (qh *QueryHistory) Entries() ([]Entry, error) {
	qh.mutex.Lock()
	defer qh.mutex.Unlock()

	if qh.kv == nil {
		return nil, errClosed
	}

	var entries []Entry
	err := qh.iterate(func(e Entry) error {
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Records returns the statement id and text of every entry in the history, oldest first.
func (qh *QueryHistory) Records() ([]engine.QueryRecord, error) {
	entries, err := qh.Entries()
	if err != nil {
		return nil, err
	}

	recs := make([]engine.QueryRecord, 0, len(entries))
	for _, e := range entries {
		recs = append(recs, e.QueryRecord)
	}
	return recs, nil
}

func (qh *QueryHistory) Close() error {
	qh.mutex.Lock()
	defer qh.mutex.Unlock()

	if qh.kv == nil {
		return nil
	}
	err := qh.kv.Close()
	qh.kv = nil
	return err
}

func encodeEntry(e Entry) []byte {
	var buf []byte
	buf = protowire.AppendTag(buf, idField, protowire.BytesType)
	buf = protowire.AppendString(buf, e.ID)
	buf = protowire.AppendTag(buf, textField, protowire.BytesType)
	buf = protowire.AppendString(buf, e.Text)
	buf = protowire.AppendTag(buf, timeField, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(e.Time.UnixNano()))
	return buf
}

func decodeEntry(seq uint64, buf []byte) (Entry, error) {
	e := Entry{Seq: seq}
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return Entry{}, fmt.Errorf("history: entry %d: %s", seq, protowire.ParseError(n))
		}
		buf = buf[n:]

		switch {
		case num == idField && typ == protowire.BytesType:
			e.ID, n = protowire.ConsumeString(buf)
		case num == textField && typ == protowire.BytesType:
			e.Text, n = protowire.ConsumeString(buf)
		case num == timeField && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(buf)
			e.Time = time.Unix(0, int64(v))
		default:
			n = protowire.ConsumeFieldValue(num, typ, buf)
		}
		if n < 0 {
			return Entry{}, fmt.Errorf("history: entry %d: %s", seq, protowire.ParseError(n))
		}
		buf = buf[n:]
	}
	return e, nil
}
