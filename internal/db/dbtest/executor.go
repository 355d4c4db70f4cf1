// Package dbtest provides an in-memory db.Executor for tests.
package dbtest

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrInjected is returned for statements matched by FailOn
var ErrInjected = errors.New("injected failure")

// RecordingExecutor records every statement and fails those containing one of
// the configured substrings.
type RecordingExecutor struct {
	mu         sync.Mutex
	statements []string
	failOn     []string
	exists     bool
}

// NewRecordingExecutor creates an executor that accepts everything
func NewRecordingExecutor() *RecordingExecutor {
	return &RecordingExecutor{}
}

// FailOn makes statements containing substr fail with ErrInjected
func (e *RecordingExecutor) FailOn(substr string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failOn = append(e.failOn, substr)
}

// SetExists sets the answer of QueryExists
func (e *RecordingExecutor) SetExists(exists bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.exists = exists
}

// Exec records sql and fails it if it matches a FailOn pattern
func (e *RecordingExecutor) Exec(_ context.Context, sql string, _ ...any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.statements = append(e.statements, sql)
	for _, f := range e.failOn {
		if strings.Contains(sql, f) {
			return ErrInjected
		}
	}
	return nil
}

// QueryExists records sql and returns the configured answer
func (e *RecordingExecutor) QueryExists(_ context.Context, sql string, _ ...any) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.statements = append(e.statements, sql)
	return e.exists, nil
}

// Statements returns a copy of everything executed so far
func (e *RecordingExecutor) Statements() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.statements))
	copy(out, e.statements)
	return out
}

// Count returns how many executed statements contain substr
func (e *RecordingExecutor) Count(substr string) int {
	n := 0
	for _, s := range e.Statements() {
		if strings.Contains(s, substr) {
			n++
		}
	}
	return n
}
