package logmirror

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZeroValueMirrorIsNoop(t *testing.T) {
	var m Mirror
	require.NoError(t, m.AppendLine(context.Background(), "ctx", "exec", "code", "stdout", "line"))
	require.NoError(t, m.PublishResult(context.Background(), "ctx", "exec", "code", map[string]int{"x": 1}))
	require.NoError(t, m.Close())
}

func TestNewWithEmptyAddrIsNoop(t *testing.T) {
	m := New("", 0)
	assert.False(t, m.enabled())
	require.NoError(t, m.AppendLine(context.Background(), "ctx", "exec", "code", "stderr", "line"))
	require.NoError(t, m.Close())
}

func TestNewWithAddrIsEnabled(t *testing.T) {
	m := New("127.0.0.1:6379", 0)
	assert.True(t, m.enabled())
	// No connection is made until the first command, so Close is safe
	// without a reachable Redis.
	require.NoError(t, m.Close())
}

func TestKeyNamespacing(t *testing.T) {
	assert.Equal(t, "coderunner:ctx:exec:code:result", key("ctx", "exec", "code", "result"))
	assert.Equal(t, "coderunner:ctx:exec:code:log:stdout", key("ctx", "exec", "code", "log:stdout"))
}
