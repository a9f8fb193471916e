// Package console talks to the running server's remote console (RCON).
package console

import (
	"context"
	"fmt"
	"net"
	"time"

	mcnet "github.com/Tnze/go-mc/net"
	"github.com/b1naryth1ef/worldsync"
	"go.uber.org/zap"
)

// Client sends commands over RCON, opening a fresh connection for every
// command. The connection carries the context deadline from dial to reply.
type Client struct {
	addr     string
	password string
	timeout  time.Duration
	log      *zap.Logger
}

var _ worldsync.Commander = (*Client)(nil)

func New(cfg *worldsync.ConsoleConfigBlock, log *zap.Logger) *Client {
	return &Client{
		addr:     cfg.Address,
		password: cfg.Password,
		timeout:  cfg.Timeout(),
		log:      log.Named("console"),
	}
}

const (
	packetLogin   = 3
	packetCommand = 2
	failedLoginID = -1
)

// Run sends command and returns the server's reply text. The connection is
// closed before Run returns, including when ctx ends first.
func (c *Client) Run(ctx context.Context, command string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.exchange(ctx, command)
	if err != nil {
		if ctxErr := contextError(ctx); ctxErr != nil {
			return "", fmt.Errorf("rcon %q: %w", command, ctxErr)
		}
	}
	return resp, err
}

// contextError is ctx.Err, also reporting an expired deadline whose timer has
// not fired yet. The socket deadline can trip first.
func contextError(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok && !time.Now().Before(deadline) {
		return context.DeadlineExceeded
	}
	return nil
}

func (c *Client) exchange(ctx context.Context, command string) (string, error) {
	var dialer net.Dialer
	nc, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return "", fmt.Errorf("rcon dial %s: %w", c.addr, err)
	}
	conn := &mcnet.RCONConn{Conn: nc}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		nc.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() {
		nc.SetDeadline(time.Now())
	})
	defer stop()

	if err := conn.WritePacket(0, packetLogin, c.password); err != nil {
		return "", fmt.Errorf("rcon login %s: %w", c.addr, err)
	}
	id, _, _, err := conn.ReadPacket()
	if err != nil {
		return "", fmt.Errorf("rcon login %s: %w", c.addr, err)
	}
	if id == failedLoginID {
		return "", fmt.Errorf("rcon login %s: wrong password", c.addr)
	}

	if err := conn.WritePacket(0, packetCommand, command); err != nil {
		return "", fmt.Errorf("rcon send %q: %w", command, err)
	}

	resp, err := conn.Resp()
	if err != nil {
		return "", fmt.Errorf("rcon response %q: %w", command, err)
	}
	c.log.Debug("rcon", zap.String("command", command), zap.String("response", resp))
	return resp, nil
}
