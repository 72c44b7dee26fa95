package engine_test

import (
	"errors"
	"testing"

	"github.com/leftmike/planexec/engine"
	"github.com/leftmike/planexec/testutil"
)

type named struct {
	name  string
	calls *[]string
	err   error
}

func (n *named) AddQuery(rec engine.QueryRecord) error {
	*n.calls = append(*n.calls, n.name+":"+rec.ID)
	return n.err
}

func TestListeners(t *testing.T) {
	var calls []string
	l1 := &named{name: "l1", calls: &calls}
	l2 := &named{name: "l2", calls: &calls}
	l3 := &named{name: "l3", calls: &calls}

	var ls engine.Listeners
	ls.Register(l1)
	ls.Register(l2)
	ls.Register(l1)
	if ls.Len() != 2 {
		t.Errorf("Len() got %d want 2", ls.Len())
	}

	err := ls.Broadcast(engine.QueryRecord{ID: "q1", Text: "select 1"})
	if err != nil {
		t.Errorf("Broadcast() failed with %s", err)
	}

	ls.Register(l3)
	if !ls.Unregister(l1) {
		t.Errorf("Unregister(l1) got false")
	}
	if ls.Unregister(l1) {
		t.Errorf("Unregister(l1) twice got true")
	}
	ls.Broadcast(engine.QueryRecord{ID: "q2", Text: "select 2"})

	want := []string{"l1:q1", "l2:q1", "l2:q2", "l3:q2"}
	if !testutil.DeepEqual(calls, want) {
		t.Errorf("Broadcast() got %v want %v", calls, want)
	}

	calls = nil
	l2.err = errors.New("l2 failed")
	l3.err = errors.New("l3 failed")
	err = ls.Broadcast(engine.QueryRecord{ID: "q3", Text: "select 3"})
	if err != l2.err {
		t.Errorf("Broadcast() got %v want %s", err, l2.err)
	}
	want = []string{"l2:q3", "l3:q3"}
	if !testutil.DeepEqual(calls, want) {
		t.Errorf("Broadcast() got %v want %v", calls, want)
	}
}

type unregistering struct {
	ls    *engine.Listeners
	calls int
}

func (u *unregistering) AddQuery(rec engine.QueryRecord) error {
	u.calls += 1
	u.ls.Unregister(u)
	return nil
}

func TestListenersUnregisterDuringBroadcast(t *testing.T) {
	var ls engine.Listeners
	var calls []string

	u := &unregistering{ls: &ls}
	l := &named{name: "l", calls: &calls}
	ls.Register(u)
	ls.Register(l)

	ls.Broadcast(engine.QueryRecord{ID: "q1"})
	ls.Broadcast(engine.QueryRecord{ID: "q2"})

	if u.calls != 1 {
		t.Errorf("Broadcast() called unregistered listener %d times", u.calls)
	}
	if !testutil.DeepEqual(calls, []string{"l:q1", "l:q2"}) {
		t.Errorf("Broadcast() got %v", calls)
	}
}
