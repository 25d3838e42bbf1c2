package process

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mensylisir/xmadmin/executor"
	"github.com/mensylisir/xmadmin/runtime/runtimetest"
	"github.com/mensylisir/xmadmin/task"
)

func TestSignalTask(t *testing.T) {
	tests := []struct {
		sig  Signal
		want []string
	}{
		{SignalTerm, []string{"kill", "-TERM", "4242"}},
		{SignalKill, []string{"kill", "-KILL", "4242"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.sig), func(t *testing.T) {
			tk, err := NewSignalTask(4242, tt.sig)
			require.NoError(t, err)

			rt := runtimetest.NewRuntime()
			require.NoError(t, task.Run(context.Background(), rt, tk))
			assert.Equal(t, [][]string{tt.want}, rt.R.Argvs())
		})
	}
}

func TestSignalTask_Invalid(t *testing.T) {
	_, err := NewSignalTask(1, SignalKill)
	assert.Error(t, err)
	_, err = NewSignalTask(0, SignalTerm)
	assert.Error(t, err)
	_, err = NewSignalTask(100, Signal("HUP"))
	assert.Error(t, err)
}

func TestReniceTask(t *testing.T) {
	for _, prio := range []int{MinNice, 0, MaxNice} {
		tk, err := NewReniceTask(77, prio)
		require.NoError(t, err)

		rt := runtimetest.NewRuntime()
		require.NoError(t, task.Run(context.Background(), rt, tk))
		require.Len(t, rt.R.Requests(), 1)
		assert.Equal(t, "renice", rt.R.Argvs()[0][0])
	}

	tk, err := NewReniceTask(77, -5)
	require.NoError(t, err)
	rt := runtimetest.NewRuntime()
	require.NoError(t, task.Run(context.Background(), rt, tk))
	assert.Equal(t, [][]string{{"renice", "-n", "-5", "-p", "77"}}, rt.R.Argvs())
}

func TestReniceTask_OutOfRange(t *testing.T) {
	_, err := NewReniceTask(77, -21)
	assert.Error(t, err)
	_, err = NewReniceTask(77, 20)
	assert.Error(t, err)
	_, err = NewReniceTask(-3, 0)
	assert.Error(t, err)
}

func TestSignalTask_NoSuchProcess(t *testing.T) {
	tk, err := NewSignalTask(99999, SignalTerm)
	require.NoError(t, err)

	rt := runtimetest.NewRuntime()
	rt.R.Handler = func(req executor.CommandRequest) executor.CommandResult {
		return runtimetest.Failure(1, "kill: (99999) - No such process")
	}
	err = task.Run(context.Background(), rt, tk)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No such process")
}
