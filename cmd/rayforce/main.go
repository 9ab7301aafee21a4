// Command rayforce is the composition root: it wires the heap, the
// worker pool, the query engine and the reactor behind the single
// optional -port flag (spec §6), following the teacher's cmd/noisefs
// startup sequencing (load config, build logger, build the core
// pieces, run, propagate the exit code).
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"

	"golang.org/x/sys/unix"

	"github.com/RayforceDB/rayforce/pkg/config"
	"github.com/RayforceDB/rayforce/pkg/heap"
	"github.com/RayforceDB/rayforce/pkg/ipc"
	"github.com/RayforceDB/rayforce/pkg/logging"
	"github.com/RayforceDB/rayforce/pkg/query"
	"github.com/RayforceDB/rayforce/pkg/reactor"
	"github.com/RayforceDB/rayforce/pkg/rferr"
	"github.com/RayforceDB/rayforce/pkg/scheduler"
	"github.com/RayforceDB/rayforce/pkg/serialize"
	"github.com/RayforceDB/rayforce/pkg/value"
	"github.com/RayforceDB/rayforce/pkg/vm"
)

func main() {
	cfg, err := config.ParseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := logging.New(logging.DefaultConfig()).WithComponent("rayforce")

	mainHeap := heap.New(0, heap.WithPoolOrder(heap.DefaultPoolOrder), heap.WithSwapDir(cfg.SwapDir))
	pool := scheduler.Create(runtime.NumCPU(), mainHeap, 0)
	defer pool.Close()

	h := &evalHandler{heap: mainHeap, pool: pool, logger: logger}

	listenFd := -1
	if cfg.Port != 0 {
		fd, lerr := listenTCP(cfg.Port)
		if lerr != nil {
			logger.Errorf("failed to listen on port %d: %v", cfg.Port, lerr)
			os.Exit(1)
		}
		listenFd = fd
		logger.Infof("listening on port %d", cfg.Port)
	}

	loop, err := reactor.New(listenFd)
	if err != nil {
		logger.Errorf("failed to create reactor: %v", err)
		os.Exit(1)
	}
	loop.SetHandler(h)
	loop.Cancel()

	logger.Infof("rayforce starting (executors=%d)", pool.NumExecutors())
	if err := loop.Run(); err != nil {
		logger.Errorf("reactor failed: %v", err)
		os.Exit(1)
	}
	logger.Infof("rayforce exiting with code %d (errors raised: %d)", loop.ExitCode, pool.Metrics().Total())
	os.Exit(loop.ExitCode)
}

// listenTCP binds and listens on port, returning the raw, non-blocking
// fd the reactor's Poller drives directly (spec §4.9 runs its own
// epoll/kqueue loop rather than net.Listener's).
func listenTCP(port int) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, err
	}
	addr := &unix.SockaddrInet4{Port: port}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.Listen(fd, 128); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

// evalHandler bridges reactor frames into query evaluation (spec §4.9's
// dispatch table): deserialize the payload as a value tree, evaluate it
// against the shared worker pool's main executor, serialize the result.
type evalHandler struct {
	heap   *heap.Heap
	pool   *scheduler.Pool
	logger *logging.Logger
}

// Eval evaluates one request's payload and returns its serialized reply.
// Every request runs against h.heap, the one long-lived heap the reactor
// shares across the whole process's lifetime (spec §9), so a request that
// never returns its allocations back would grow the buddy pools without
// bound as traffic accumulates.
//
// result may share nodes with the decoded request tree expr (a bare
// literal evaluates to itself; an unaggregated projected column is a bare
// pointer into the fetched table's columns, which can itself be a node of
// expr — spec §3's "callers transfer ownership" governs containers built
// during evaluation, not these leaf reads), so once result exists this
// function only ever drops result: dropping both would double-decrement
// whatever they share. When eval fails before producing a result, nothing
// escapes this function and expr is dropped directly instead.
func (h *evalHandler) Eval(id int, payload []byte) ([]byte, error) {
	vmctx := vm.New(h.heap, 0).WithMetrics(h.pool.Metrics())
	vmctx.Pool = h.pool
	expr, _, err := serialize.DecodeValue(vmctx.Heap, payload)
	if err != nil {
		h.logger.Warnf("conn %d: malformed payload: %v", id, err)
		return encodeErrReply(vmctx, err), nil
	}

	result, err := query.EvalTopLevel(vmctx, expr)
	if err != nil {
		h.logger.Warnf("conn %d: eval failed: %v", id, err)
		value.Drop(expr, vmctx.Heap, vmctx.RCSync)
		return encodeErrReply(vmctx, err), nil
	}

	buf, err := serialize.EncodeValue(nil, result)
	if err != nil {
		value.Drop(result, vmctx.Heap, vmctx.RCSync)
		return encodeErrReply(vmctx, err), nil
	}
	// buf now holds an independent copy of result's bytes, so result (and
	// anything of expr it aliases) can be returned to the heap.
	value.Drop(result, vmctx.Heap, vmctx.RCSync)
	return buf, nil
}

func (h *evalHandler) OnOpen(id int) {
	local := ipc.ProtocolVersion{Major: 0, Minor: 1}
	h.logger.Infof("conn %d: handshake complete (local version %d.%d)", id, local.Major, local.Minor)
}

func (h *evalHandler) OnClose(id int) {
	h.logger.Infof("conn %d: closed", id)
}

// encodeErrReply renders err as an ERR-tagged value for the RESP frame
// (spec §7: "forms an ERR-valued RESP frame for failed SYNC requests").
func encodeErrReply(vmctx *vm.Context, err error) []byte {
	rfe, ok := err.(*rferr.Error)
	if !ok {
		rfe = rferr.NewUser(err.Error())
	}
	vmctx.SetErr(rfe)
	buf, encErr := serialize.EncodeValue(nil, value.ErrSentinel())
	if encErr != nil {
		return nil
	}
	return buf
}
