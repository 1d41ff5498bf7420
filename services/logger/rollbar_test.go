package logsvc

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/user"
)

func newObservedLogger(t *testing.T) (*RollbarLogger, *observer.ObservedLogs) {
	t.Helper()
	obs, logs := observer.New(zapcore.DebugLevel)
	l := NewRollbarLogger(zap.New(obs), testConf())
	l.Enable(false)
	return l, logs
}

func testConf() *core.Config {
	return core.NewTestConfig()
}

func TestRollbarLogger(t *testing.T) {
	l, logs := newObservedLogger(t)

	usr := user.User{ID: "u-1", Username: "ani", Email: "ani@example.com"}
	l.Error("saving booking", errors.New("boom"), map[string]interface{}{"booking_id": "b-1"}, usr)
	l.Info("server started")

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)

	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "saving booking", entries[0].Message)
	fields := entries[0].ContextMap()
	assert.Equal(t, "boom", fields["error"])
	assert.Equal(t, "b-1", fields["booking_id"])
	assert.Equal(t, "u-1", fields["user_id"])

	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	assert.Empty(t, entries[1].ContextMap())
}

func TestPrepareKeepsOneUser(t *testing.T) {
	l, _ := newObservedLogger(t)
	rbArgs, fields := l.prepare("msg", []interface{}{user.User{ID: "a"}, user.User{ID: "b"}, 42})
	assert.Equal(t, []interface{}{"msg", 42}, rbArgs)
	require.Len(t, fields, 2)
	assert.Equal(t, "user_id", fields[0].Key)
	assert.Equal(t, "a", fields[0].String)
	assert.Equal(t, "arg2", fields[1].Key)
}
