package engine

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/leftmike/planexec/plan"
)

type State int

const (
	Pending State = iota
	Running
	PostActions
	Done
	Cancelled
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case PostActions:
		return "post-actions"
	case Done:
		return "done"
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type ExecOptions struct {
	AsTable         bool
	StatementParams StatementParams
}

type placeholder struct {
	token string
	id    string
}

type execution struct {
	state    State
	actionID int64
	entry    *log.Entry
}

func (ex *execution) transition(s State) {
	ex.entry.WithFields(log.Fields{
		"from":  ex.state,
		"state": s,
	}).Debug("plan state")
	ex.state = s
}

// ExecutePlan runs the statements of p in order and returns the result of the last query.
// The id assigned to each query replaces its placeholder in the text of later queries. The
// post-actions of p run once whatever happens to the statements; if a post-action fails, its
// error is returned instead.
func (e *Engine) ExecutePlan(ctx context.Context, p *plan.Plan, opts ExecOptions) (res *Result,
	err error) {

	actions := p.Actions
	if actions == nil {
		actions = &plan.Actions{}
	}

	ex := execution{actionID: actions.NewActionID()}
	ex.entry = e.entry.WithField("action_id", ex.actionID)
	ex.transition(Running)

	defer func() {
		r := recover()

		final := Done
		if r != nil {
			final = Failed
		} else if err == ErrQueryCancelled {
			final = Cancelled
		} else if err != nil {
			final = Failed
		}

		ex.transition(PostActions)
		perr := e.runPostActions(context.WithoutCancel(ctx), p.PostActions)
		if perr != nil {
			if err != nil {
				ex.entry.WithField("error", err.Error()).Warn("error replaced by post-action")
			}
			res.Release()
			res, err = nil, perr
			final = Failed
		}
		ex.transition(final)

		if r != nil {
			panic(r)
		}
	}()

	var placeholders []placeholder
	var last *Result
	for _, stmt := range p.Statements {
		stmt, err = planStatement(stmt)
		if err != nil {
			last.Release()
			return nil, err
		}

		switch stmt := stmt.(type) {
		case plan.BatchInsert:
			err = e.RunBatchInsert(ctx, stmt.SQL, stmt.Rows, opts.StatementParams)
			if err != nil {
				last.Release()
				return nil, err
			}
		case plan.Query:
			query := stmt.SQL
			for _, ph := range placeholders {
				query = strings.ReplaceAll(query, ph.token, ph.id)
			}

			var r *Result
			r, err = e.RunQuery(ctx, query, QueryOptions{AsTable: opts.AsTable})
			if err != nil {
				last.Release()
				return nil, err
			}
			placeholders = addPlaceholder(placeholders, stmt.Placeholder, r.StatementID)

			last.Release()
			last = r
		}

		if ex.actionID < actions.LastCancelledID() {
			last.Release()
			return nil, ErrQueryCancelled
		}
	}

	if last == nil {
		return nil, ErrEmptyResult
	}
	return last, nil
}

// planStatement returns stmt as a plan.Query or a plan.BatchInsert value.
func planStatement(stmt plan.Statement) (plan.Statement, error) {
	switch stmt := stmt.(type) {
	case plan.Query, plan.BatchInsert:
		return stmt, nil
	case *plan.Query:
		if stmt != nil {
			return *stmt, nil
		}
	case *plan.BatchInsert:
		if stmt != nil {
			return *stmt, nil
		}
	}
	return nil, &UnexpectedStatementError{Statement: stmt}
}

func addPlaceholder(placeholders []placeholder, token, id string) []placeholder {
	if token == "" {
		return placeholders
	}
	for pdx := range placeholders {
		if placeholders[pdx].token == token {
			placeholders[pdx].id = id
			return placeholders
		}
	}
	return append(placeholders, placeholder{token: token, id: id})
}

func (e *Engine) runPostActions(ctx context.Context, actions []string) error {
	for _, action := range actions {
		_, err := e.RunQuery(ctx, action, QueryOptions{})
		if err != nil {
			return err
		}
	}
	return nil
}
