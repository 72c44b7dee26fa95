package history

import (
	"testing"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/leftmike/planexec/engine"
)

func TestDecodeEntry(t *testing.T) {
	e := Entry{
		QueryRecord: engine.QueryRecord{ID: "01a0-0007", Text: "select 'é'"},
		Time:        time.Unix(1600000000, 123),
	}
	buf := encodeEntry(e)

	// Fields added by later versions are skipped.
	buf = protowire.AppendTag(buf, 99, protowire.BytesType)
	buf = protowire.AppendBytes(buf, []byte("extra"))

	r, err := decodeEntry(7, buf)
	if err != nil {
		t.Fatalf("decodeEntry() failed with %s", err)
	}
	if r.Seq != 7 || r.QueryRecord != e.QueryRecord || !r.Time.Equal(e.Time) {
		t.Errorf("decodeEntry() got %v want %v", r, e)
	}

	_, err = decodeEntry(8, buf[:len(buf)-2])
	if err == nil {
		t.Errorf("decodeEntry() did not fail for a truncated entry")
	}
}
