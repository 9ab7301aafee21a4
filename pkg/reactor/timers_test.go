package reactor

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
)

func TestTimerQueueFiresInDeadlineOrder(t *testing.T) {
	mock := clock.NewMock()
	q := &TimerQueue{Clock: mock}

	var fired []string
	q.Schedule(mock.Now().Add(2*time.Second), func() { fired = append(fired, "b") })
	q.Schedule(mock.Now().Add(1*time.Second), func() { fired = append(fired, "a") })
	q.Schedule(mock.Now().Add(3*time.Second), func() { fired = append(fired, "c") })

	require.Equal(t, 1*time.Second, q.NextTimeout())

	mock.Add(1 * time.Second)
	q.FireDue()
	require.Equal(t, []string{"a"}, fired)
	require.Equal(t, 1*time.Second, q.NextTimeout())

	mock.Add(2 * time.Second)
	q.FireDue()
	require.Equal(t, []string{"a", "b", "c"}, fired)
	require.Equal(t, time.Duration(-1), q.NextTimeout())
}
