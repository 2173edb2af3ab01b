// Package channel implements the per-peer framed connection the MPC engine
// reads and writes shares on, ports mpc_manager.py's Tallier (scalar) and
// MultiTallier (vector) classes plus tallier.py's TallierSelf loopback.
package channel

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/arthurzam/securevote/pkg/wire"
)

// ErrProtocolAbort names a peer closing the connection or sending
// unparsable data mid-protocol (spec.md §7). No function in this package
// returns it: a dead channel surfaces as ErrClosed from Read or as the error
// ReceiveLoop returns.
var ErrProtocolAbort = errors.New("channel: protocol abort")

// ErrClosed is returned by Read/Write after Close.
var ErrClosed = errors.New("channel: closed")

// Channel is the transport a single MPC instance uses to talk to one peer
// tallier. Width() is 1 for the scalar framing and S for the vector framing,
// fixed at construction time.
type Channel interface {
	// Write serializes values (padded/truncated to Width()) tagged with
	// msgid and flushes them to the peer.
	Write(msgid uint32, values []uint32) error
	// Read blocks until a payload tagged with msgid arrives, or ctx is done.
	Read(ctx context.Context, msgid uint32) ([]uint32, error)
	// Width returns the fixed payload width this channel was built for.
	Width() int
	// ReceiveLoop runs the background frame reader; it returns when the
	// peer closes or ctx is cancelled.
	ReceiveLoop(ctx context.Context) error
	// Close tears down the transport and wakes any pending readers.
	Close() error
}

// TCPChannel wraps a net.Conn-like stream (always TLS in production, see
// pkg/clique) with the scalar/vector framing and msgid demultiplexer.
type TCPChannel struct {
	framer *wire.Framer
	queue  *wire.Queue

	writeMu sync.Mutex
	conn    io.ReadWriteCloser

	closeOnce sync.Once
}

// NewTCPChannel wraps conn with a Framer of the given width.
func NewTCPChannel(conn io.ReadWriteCloser, width int) *TCPChannel {
	return &TCPChannel{
		framer: wire.NewFramer(width),
		queue:  wire.NewQueue(),
		conn:   conn,
	}
}

func (c *TCPChannel) Width() int { return c.framer.Width() }

func (c *TCPChannel) Write(msgid uint32, values []uint32) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.framer.WriteFrame(c.conn, msgid, values)
}

func (c *TCPChannel) Read(ctx context.Context, msgid uint32) ([]uint32, error) {
	values, ok := c.queue.Take(msgid, ctx.Done())
	if !ok {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrClosed
	}
	return values, nil
}

// ReceiveLoop reads frames until the peer closes, delivering each to the
// msgid demultiplexer; ports Tallier.receive_loop.
func (c *TCPChannel) ReceiveLoop(ctx context.Context) error {
	defer c.queue.Abandon()
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msgid, values, err := c.framer.ReadFrame(c.conn)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		c.queue.Deliver(msgid, values)
	}
}

func (c *TCPChannel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.queue.Abandon()
		err = c.conn.Close()
	})
	return err
}

// SelfChannel is the loopback variant used for a tallier's own slot in a
// clique: writes are delivered directly to its own queue, bypassing
// serialization, porting tallier.py's TallierSelf.
type SelfChannel struct {
	width int
	queue *wire.Queue
}

// NewSelfChannel returns a loopback channel of the given width.
func NewSelfChannel(width int) *SelfChannel {
	return &SelfChannel{width: width, queue: wire.NewQueue()}
}

func (s *SelfChannel) Width() int { return s.width }

func (s *SelfChannel) Write(msgid uint32, values []uint32) error {
	padded := make([]uint32, s.width)
	copy(padded, values)
	s.queue.Deliver(msgid, padded)
	return nil
}

func (s *SelfChannel) Read(ctx context.Context, msgid uint32) ([]uint32, error) {
	values, ok := s.queue.Take(msgid, ctx.Done())
	if !ok {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrClosed
	}
	return values, nil
}

// ReceiveLoop has no wire to read for the loopback channel: it blocks until
// ctx is done, then abandons the queue so blocked Reads return ErrClosed.
func (s *SelfChannel) ReceiveLoop(ctx context.Context) error {
	<-ctx.Done()
	s.queue.Abandon()
	return nil
}

func (s *SelfChannel) Close() error {
	s.queue.Abandon()
	return nil
}
