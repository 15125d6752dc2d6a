package engine

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusBoard_Lifecycle(t *testing.T) {
	t.Parallel()

	b := NewStatusBoard()
	require.Len(t, b.All(), len(JobNames))

	start := time.Now()
	b.Begin(JobAnalysis)
	st, _ := b.Get(JobAnalysis)
	assert.True(t, st.Running)

	b.End(JobAnalysis, start, nil)
	st, _ = b.Get(JobAnalysis)
	assert.False(t, st.Running)
	assert.Equal(t, int64(1), st.Runs)
	assert.Zero(t, st.Failures)
	require.NotNil(t, st.LastRunAt)
	assert.Empty(t, st.RecentErrors)

	b.End(JobAnalysis, start, errors.New("boom"))
	st, _ = b.Get(JobAnalysis)
	assert.Equal(t, int64(2), st.Runs)
	assert.Equal(t, int64(1), st.Failures)
	assert.Equal(t, "boom", st.LastError)
	require.Len(t, st.RecentErrors, 1)

	_, ok := b.Get("unknown")
	assert.False(t, ok)
}

func TestStatusBoard_ErrorRingIsBounded(t *testing.T) {
	t.Parallel()

	b := NewStatusBoard()
	for i := range 25 {
		b.RecordError(JobMonitoring, "filter", fmt.Sprintf("err %d", i))
	}

	st, _ := b.Get(JobMonitoring)
	require.Len(t, st.RecentErrors, recentErrorLimit)
	assert.Equal(t, "err 5", st.RecentErrors[0].Message)
	assert.Equal(t, "err 24", st.RecentErrors[recentErrorLimit-1].Message)
}

func TestStatusBoard_GetReturnsCopy(t *testing.T) {
	t.Parallel()

	b := NewStatusBoard()
	b.RecordError(JobCleanup, "prune", "disk full")

	st, _ := b.Get(JobCleanup)
	st.RecentErrors[0].Message = "changed"

	again, _ := b.Get(JobCleanup)
	assert.Equal(t, "disk full", again.RecentErrors[0].Message)
}

func TestHealth_Observe(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cycles  []struct{ outage, data bool }
		want    int
		wantRun int
	}{
		{
			name:   "below threshold",
			cycles: []struct{ outage, data bool }{{true, false}, {true, false}},
			want:   1, wantRun: 2,
		},
		{
			name:   "doubles after threshold",
			cycles: []struct{ outage, data bool }{{true, false}, {true, false}, {true, false}, {true, false}},
			want:   4, wantRun: 4,
		},
		{
			name: "capped",
			cycles: []struct{ outage, data bool }{
				{true, false}, {true, false}, {true, false}, {true, false}, {true, false}, {true, false}, {true, false},
			},
			want: 8, wantRun: 7,
		},
		{
			name:   "data resets",
			cycles: []struct{ outage, data bool }{{true, false}, {true, false}, {true, false}, {true, false}, {false, true}},
			want:   1, wantRun: 0,
		},
		{
			name:   "idle cycle leaves state",
			cycles: []struct{ outage, data bool }{{true, false}, {true, false}, {true, false}, {false, false}},
			want:   2, wantRun: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := NewHealth(3, 8)
			for _, c := range tt.cycles {
				h.Observe(c.outage, c.data)
			}
			assert.Equal(t, tt.want, h.Factor())
			assert.Equal(t, tt.wantRun, h.ConsecutiveOutages())
		})
	}
}
