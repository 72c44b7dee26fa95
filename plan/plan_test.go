package plan_test

import (
	"sync"
	"testing"

	"github.com/leftmike/planexec/plan"
)

func TestActions(t *testing.T) {
	var actions plan.Actions

	id1 := actions.NewActionID()
	id2 := actions.NewActionID()
	if id1 != 1 || id2 != 2 {
		t.Errorf("NewActionID() got %d, %d want 1, 2", id1, id2)
	}
	if wm := actions.LastCancelledID(); wm != 0 {
		t.Errorf("LastCancelledID() got %d want 0", wm)
	}

	actions.Cancel(5)
	actions.Cancel(3)
	if wm := actions.LastCancelledID(); wm != 5 {
		t.Errorf("LastCancelledID() got %d want 5", wm)
	}

	id3 := actions.NewActionID()
	actions.CancelAll()
	if wm := actions.LastCancelledID(); wm <= id3 {
		t.Errorf("CancelAll: LastCancelledID() got %d want > %d", wm, id3)
	}
	if id := actions.NewActionID(); id < actions.LastCancelledID() {
		t.Errorf("NewActionID() got %d after CancelAll; want >= %d", id,
			actions.LastCancelledID())
	}
}

func TestActionsMonotonic(t *testing.T) {
	var actions plan.Actions
	var wg sync.WaitGroup

	for n := 0; n < 8; n += 1 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for i := int64(0); i < 100; i += 1 {
				actions.Cancel(i*8 + int64(n))
			}
		}(n)
	}
	wg.Wait()

	if wm := actions.LastCancelledID(); wm != 99*8+7 {
		t.Errorf("LastCancelledID() got %d want %d", wm, 99*8+7)
	}
}
