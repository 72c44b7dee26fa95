// Package plan holds the statements of a logical query as handed to the engine for
// execution: the queries in order, the post-actions which must always run, and the
// session wide action ids used to cancel plans in flight.
package plan

import (
	"fmt"
	"sync/atomic"

	"github.com/leftmike/planexec/sql"
)

// Query is a single statement of a plan. Later statements may refer to the server assigned
// id of this statement by embedding Placeholder in their text.
type Query struct {
	SQL         string
	Placeholder string
}

// BatchInsert is a statement which is executed once per row, binding the values of each row
// by position.
type BatchInsert struct {
	SQL  string
	Rows []sql.Row
}

type Statement interface {
	fmt.Stringer
	statement()
}

func (Query) statement()       {}
func (BatchInsert) statement() {}

func (q Query) String() string {
	return q.SQL
}

func (bi BatchInsert) String() string {
	return fmt.Sprintf("%s [%d rows]", bi.SQL, len(bi.Rows))
}

type Plan struct {
	Statements  []Statement
	PostActions []string
	Actions     *Actions
}

// Actions generates action ids and tracks the cancellation watermark for a session. Plans
// with an action id less than the watermark are cancelled.
type Actions struct {
	lastID      int64
	cancelledID int64
}

func (a *Actions) NewActionID() int64 {
	return atomic.AddInt64(&a.lastID, 1)
}

func (a *Actions) LastActionID() int64 {
	return atomic.LoadInt64(&a.lastID)
}

func (a *Actions) LastCancelledID() int64 {
	return atomic.LoadInt64(&a.cancelledID)
}

// Cancel raises the watermark to id; the watermark never decreases.
func (a *Actions) Cancel(id int64) {
	for {
		cur := atomic.LoadInt64(&a.cancelledID)
		if id <= cur {
			return
		}
		if atomic.CompareAndSwapInt64(&a.cancelledID, cur, id) {
			return
		}
	}
}

// CancelAll cancels every action generated so far.
func (a *Actions) CancelAll() {
	a.Cancel(a.NewActionID())
}
