package taskforge

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Format(t *testing.T) {
	err := &Error{Op: "Engine.Cancel", Kind: KindConflict, Err: ErrNotCancellable}
	assert.Equal(t, "taskforge: Engine.Cancel (conflict): execution is not cancellable", err.Error())

	bare := &Error{Op: "Engine.Submit", Kind: KindInternal}
	assert.Equal(t, "taskforge: Engine.Submit: internal", bare.Error())

	withCtx := err.WithContext(map[string]any{"execution_id": "e1"})
	assert.Contains(t, withCtx.Error(), "[context: map[execution_id:e1]]")
	assert.Nil(t, err.Context, "WithContext copies")
}

func TestError_Is(t *testing.T) {
	err := newError("Engine.Submit", KindNotFound, ErrToolNotFound)

	assert.ErrorIs(t, err, ErrToolNotFound)
	assert.ErrorIs(t, err, &Error{Kind: KindNotFound})
	assert.ErrorIs(t, err, &Error{Op: "Engine.Submit", Kind: KindNotFound})
	assert.NotErrorIs(t, err, &Error{Op: "Engine.Cancel", Kind: KindNotFound})
	assert.NotErrorIs(t, err, &Error{Kind: KindValidation})
	assert.False(t, err.Is(nil))

	var target *Error
	assert.True(t, errors.As(err, &target))
	assert.Equal(t, "Engine.Submit", target.Op)
}

type mockCloser struct {
	err   error
	calls int
}

func (m *mockCloser) Close() error {
	m.calls++
	return m.err
}

func TestCloseWithLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	CloseWithLog(nil, logger, "nothing")
	assert.Empty(t, buf.String())

	ok := &mockCloser{}
	CloseWithLog(ok, logger, "queue client")
	assert.Equal(t, 1, ok.calls)
	assert.Empty(t, buf.String())

	failing := &mockCloser{err: errors.New("resource busy")}
	CloseWithLog(failing, logger, "database")
	assert.Contains(t, buf.String(), "failed to close resource")
	assert.Contains(t, buf.String(), "resource=database")
	assert.Contains(t, buf.String(), "resource busy")
}
