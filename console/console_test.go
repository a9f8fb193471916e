package console

import (
	"context"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	mcnet "github.com/Tnze/go-mc/net"
	"github.com/b1naryth1ef/worldsync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// serveRCON answers every command with "ok: <command>" and records it.
func serveRCON(t *testing.T, password string) (string, <-chan string) {
	t.Helper()

	l, err := mcnet.ListenRCON("127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	commands := make(chan string, 16)
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				if err := conn.AcceptLogin(password); err != nil {
					return
				}
				cmd, err := conn.AcceptCmd()
				if err != nil {
					return
				}
				commands <- cmd
				conn.RespCmd("ok: " + cmd)
			}()
		}
	}()

	return l.Addr().String(), commands
}

func TestClientRun(t *testing.T) {
	addr, commands := serveRCON(t, "hunter2")
	client := New(&worldsync.ConsoleConfigBlock{
		Address:        addr,
		Password:       "hunter2",
		TimeoutSeconds: 5,
	}, zaptest.NewLogger(t))

	resp, err := client.Run(context.Background(), "lightfix 1 2 1 world")
	require.NoError(t, err)
	assert.Equal(t, "ok: lightfix 1 2 1 world", resp)
	assert.Equal(t, "lightfix 1 2 1 world", <-commands)

	resp, err = client.Run(context.Background(), "bluemap reload")
	require.NoError(t, err)
	assert.Equal(t, "ok: bluemap reload", resp)
}

func TestClientWrongPassword(t *testing.T) {
	addr, _ := serveRCON(t, "hunter2")
	client := New(&worldsync.ConsoleConfigBlock{
		Address:        addr,
		Password:       "wrong",
		TimeoutSeconds: 5,
	}, zaptest.NewLogger(t))

	_, err := client.Run(context.Background(), "list")
	assert.Error(t, err)
}

func TestClientUnreachable(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	client := New(&worldsync.ConsoleConfigBlock{
		Address:        addr,
		TimeoutSeconds: 5,
	}, zaptest.NewLogger(t))

	_, err = client.Run(context.Background(), "list")
	assert.Error(t, err)
}

// silentListener accepts connections and never answers. It counts the
// connections the client has closed.
func silentListener(t *testing.T) (string, *atomic.Int32) {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var mu sync.Mutex
	var conns []net.Conn
	t.Cleanup(func() {
		l.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, conn := range conns {
			conn.Close()
		}
	})

	var closed atomic.Int32
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()

			go func() {
				io.Copy(io.Discard, conn)
				closed.Add(1)
			}()
		}
	}()

	return l.Addr().String(), &closed
}

func TestClientTimeout(t *testing.T) {
	addr, _ := silentListener(t)
	client := New(&worldsync.ConsoleConfigBlock{
		Address:        addr,
		TimeoutSeconds: 1,
	}, zaptest.NewLogger(t))

	start := time.Now()
	_, err := client.Run(context.Background(), "list")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestClientClosesTimedOutConnections(t *testing.T) {
	addr, closed := silentListener(t)
	client := New(&worldsync.ConsoleConfigBlock{Address: addr}, zaptest.NewLogger(t))

	const calls = 20
	for i := 0; i < calls; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		_, err := client.Run(ctx, "lightfix 0 0 1 world")
		cancel()
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	}

	assert.Eventually(t, func() bool {
		return closed.Load() == calls
	}, 5*time.Second, 20*time.Millisecond)
}

func TestClientCancelledWithoutDeadline(t *testing.T) {
	addr, closed := silentListener(t)
	client := New(&worldsync.ConsoleConfigBlock{Address: addr}, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err := client.Run(ctx, "list")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Eventually(t, func() bool {
		return closed.Load() == 1
	}, 5*time.Second, 20*time.Millisecond)
}
