package resp

import (
	"context"
	"errors"
	"net"
	"time"
)

// ErrClientClosed is returned by Do after Close.
var ErrClientClosed = errors.New("resp: client closed")

// Client issues commands over a single connection, one at a time.
// A Client is not safe for concurrent use.
type Client struct {
	conn  net.Conn
	codec *Codec
}

// Dial connects to a RESP server at addr.
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewClient(conn), nil
}

// NewClient wraps an established connection.
func NewClient(conn net.Conn) *Client {
	return &Client{conn: conn, codec: NewCodec(conn, conn)}
}

// Do sends args as a command and reads one reply. Cancelling ctx
// interrupts a pending write or read.
func (c *Client) Do(ctx context.Context, args ...string) (Frame, error) {
	if c.conn == nil {
		return nil, ErrClientClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	conn := c.conn
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
	defer func() {
		if !stop() {
			_ = conn.SetDeadline(time.Time{})
		}
	}()

	if err := c.codec.Send(Command(args...)); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	reply, err := c.codec.ReadFrame()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	return reply, nil
}

// RemoteAddr returns the server address.
func (c *Client) RemoteAddr() net.Addr {
	if c.conn == nil {
		return nil
	}
	return c.conn.RemoteAddr()
}

// Close closes the connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
