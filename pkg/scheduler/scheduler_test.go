package scheduler

import (
	"testing"

	"github.com/RayforceDB/rayforce/pkg/heap"
	"github.com/RayforceDB/rayforce/pkg/value"
	"github.com/RayforceDB/rayforce/pkg/vm"
	"github.com/stretchr/testify/require"
)

func TestPoolRunGathersResultsInSubmissionOrder(t *testing.T) {
	h := heap.New(1, heap.WithPoolOrder(16))
	pool := Create(4, h, 0)
	defer pool.Close()
	pool.Prepare()

	for i := 0; i < 20; i++ {
		i := i
		pool.AddTask(func(ctx *vm.Context) (*value.Value, error) {
			return value.NewI64(int64(i)), nil
		})
	}

	result, err := pool.Run()
	require.NoError(t, err)
	require.Equal(t, int64(20), result.Len())
	for i, v := range result.Elems() {
		require.Equal(t, int64(i), v.I64())
	}
}

func TestPoolRunPropagatesFirstError(t *testing.T) {
	h := heap.New(2, heap.WithPoolOrder(16))
	pool := Create(2, h, 0)
	defer pool.Close()
	pool.Prepare()

	pool.AddTask(func(ctx *vm.Context) (*value.Value, error) {
		return value.NewI64(1), nil
	})
	pool.AddTask(func(ctx *vm.Context) (*value.Value, error) {
		return nil, errBoom
	})

	_, err := pool.Run()
	require.ErrorIs(t, err, errBoom)
}

var errBoom = simpleErr("boom")

type simpleErr string

func (e simpleErr) Error() string { return string(e) }

func TestPoolRunSetsRCSyncOnWorkersPermanently(t *testing.T) {
	h := heap.New(3, heap.WithPoolOrder(16))
	pool := Create(3, h, 0)
	defer pool.Close()
	for _, w := range pool.workers {
		require.True(t, w.ctx.RCSync)
	}
}

func TestSplitByDegradesBelowThreshold(t *testing.T) {
	h := heap.New(4, heap.WithPoolOrder(16))
	pool := Create(4, h, 0)
	defer pool.Close()
	require.Equal(t, 1, pool.SplitBy(100, 0))
	require.Greater(t, pool.SplitBy(1_000_000, 0), 1)
}

func TestChunkAlignedRoundsToPageSize(t *testing.T) {
	c := ChunkAligned(1_000_000, 4, 8)
	bytesPerChunk := c * 8
	require.Equal(t, 0, bytesPerChunk%pageSize)
}

func TestBuildTopologyAssignsWithinLogicalCPUCount(t *testing.T) {
	topo := BuildTopology(8)
	for i := 0; i < 8; i++ {
		require.GreaterOrEqual(t, topo.CPUFor(i), 0)
	}
}

func TestMPMCQueueGrowsOnOverflow(t *testing.T) {
	g := newGrowableQueue(4)
	for i := 0; i < 100; i++ {
		g.enqueue(i)
	}
	seen := make(map[int]bool)
	for i := 0; i < 100; i++ {
		v, ok := g.dequeue()
		require.True(t, ok)
		seen[v.(int)] = true
	}
	require.Len(t, seen, 100)
	_, ok := g.dequeue()
	require.False(t, ok)
}
