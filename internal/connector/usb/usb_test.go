package usb

import (
	"context"
	"errors"
	"io"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eugenetaranov/t2/internal/connector"
)

func TestBuildArgs(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
		argv []string
		want []string
	}{
		{
			name: "default bridge",
			argv: []string{"uci", "commit", "wireless"},
			want: []string{"exec", "--", "uci", "commit", "wireless"},
		},
		{
			name: "custom bridge",
			opts: []Option{WithBridge("env")},
			argv: []string{"wifi"},
			want: []string{"wifi"},
		},
		{
			name: "serial",
			opts: []Option{WithSerial("02a3")},
			argv: []string{"wifi"},
			want: []string{"--serial", "02a3", "exec", "--", "wifi"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(tt.opts...)
			assert.Equal(t, tt.want, c.buildArgs(tt.argv))
		})
	}
}

func TestString(t *testing.T) {
	assert.Equal(t, "usb://default", New().String())
	assert.Equal(t, "usb://02a3", New(WithSerial("02a3")).String())
	assert.Equal(t, connector.KindUSB, New().Kind())
}

func TestExecRequiresConnect(t *testing.T) {
	c := New(WithBridge("env"))
	_, err := c.Exec(context.Background(), []string{"true"})
	require.Error(t, err)
}

func TestConnectMissingBridge(t *testing.T) {
	c := New(WithBridge("t2-bridge-that-does-not-exist"))
	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestExecThroughBridge(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("env bridge is unix only")
	}

	ctx := context.Background()
	c := New(WithBridge("env"))
	require.NoError(t, c.Connect(ctx))
	defer c.Close()

	t.Run("stdout", func(t *testing.T) {
		proc, err := c.Exec(ctx, []string{"echo", "hello"})
		require.NoError(t, err)

		out, err := io.ReadAll(proc.Stdout())
		require.NoError(t, err)
		_, _ = io.ReadAll(proc.Stderr())
		require.NoError(t, proc.Wait())

		assert.Equal(t, "hello", strings.TrimSpace(string(out)))
		assert.NotEmpty(t, proc.ID())
	})

	t.Run("stdin", func(t *testing.T) {
		proc, err := c.Exec(ctx, []string{"cat"})
		require.NoError(t, err)

		_, err = io.WriteString(proc.Stdin(), "ssh-rsa AAAA\n")
		require.NoError(t, err)
		require.NoError(t, proc.Stdin().Close())

		out, err := io.ReadAll(proc.Stdout())
		require.NoError(t, err)
		_, _ = io.ReadAll(proc.Stderr())
		require.NoError(t, proc.Wait())

		assert.Equal(t, "ssh-rsa AAAA\n", string(out))
	})

	t.Run("exit status", func(t *testing.T) {
		proc, err := c.Exec(ctx, []string{"sh", "-c", "exit 3"})
		require.NoError(t, err)

		_, _ = io.ReadAll(proc.Stdout())
		_, _ = io.ReadAll(proc.Stderr())
		err = proc.Wait()

		var exitErr *connector.ExitError
		require.True(t, errors.As(err, &exitErr))
		assert.Equal(t, 3, exitErr.Code)
		assert.NoError(t, proc.Close())
	})

	t.Run("close kills", func(t *testing.T) {
		proc, err := c.Exec(ctx, []string{"sleep", "30"})
		require.NoError(t, err)
		assert.NoError(t, proc.Close())
	})
}
