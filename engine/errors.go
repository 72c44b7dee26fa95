package engine

import (
	"errors"
	"fmt"
)

var (
	ErrFetchFailed    = errors.New("engine: failed to fetch result")
	ErrEmptyResult    = errors.New("engine: the last statement of the plan did not return a result")
	ErrQueryCancelled = errors.New("engine: query was cancelled")

	ErrUnexpectedStatement = errors.New("engine: unexpected plan statement")
)

type FetchFailedError struct {
	Query string
	Err   error
}

func (ffe *FetchFailedError) Error() string {
	return fmt.Sprintf("engine: failed to fetch result: %s: %s", ffe.Query, ffe.Err)
}

func (ffe *FetchFailedError) Is(err error) bool {
	return err == ErrFetchFailed
}

func (ffe *FetchFailedError) Unwrap() error {
	return ffe.Err
}

type UnexpectedStatementError struct {
	Statement interface{}
}

func (use *UnexpectedStatementError) Error() string {
	return fmt.Sprintf("engine: unexpected plan statement: %T", use.Statement)
}

func (use *UnexpectedStatementError) Is(err error) bool {
	return err == ErrUnexpectedStatement
}
