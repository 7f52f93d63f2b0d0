package jdwp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"time"
)

var (
	// ErrConnectionRefused is returned when the target is not accepting
	// connections on the requested address.
	ErrConnectionRefused = errors.New("connection refused by jdwp target")

	// ErrHandshakeFailed is returned when the peer does not answer the
	// JDWP handshake correctly.
	ErrHandshakeFailed = errors.New("jdwp handshake failed")

	// ErrConnectionClosed is returned for commands issued on (or
	// outstanding across) a closed connection.
	ErrConnectionClosed = errors.New("jdwp connection closed")

	// ErrTimeout is returned when a command's reply did not arrive
	// within the caller's deadline. The reply, if it ever arrives, is
	// dropped by the read loop.
	ErrTimeout = errors.New("timed out waiting for jdwp reply")
)

// Conn is a single full-duplex JDWP connection. One goroutine reads the
// socket continuously and routes replies to waiting callers by packet
// id, so any number of commands may be outstanding concurrently.
// Commands hit the wire in issue order; replies match by id regardless
// of arrival order.
type Conn struct {
	sock  net.Conn
	sizes IDSizes

	writeMu sync.Mutex // serializes frame writes

	mu       sync.Mutex
	pending  map[uint32]chan *Packet
	nextID   uint32
	closed   bool
	closeErr error
}

// DialTimeout bounds the TCP connect and handshake phase.
const DialTimeout = 10 * time.Second

// Dial connects to a JDWP target, performs the handshake and negotiates
// identifier sizes.
func Dial(ctx context.Context, host string, port int) (*Conn, error) {
	d := net.Dialer{Timeout: DialTimeout}
	sock, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, fmt.Sprint(port)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionRefused, err)
	}

	if err := handshake(sock); err != nil {
		sock.Close()
		return nil, err
	}

	c := &Conn{
		sock:    sock,
		sizes:   DefaultIDSizes(),
		pending: make(map[uint32]chan *Packet),
	}
	go c.readLoop()

	sizes, err := c.idSizes(ctx)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("%w: idsizes negotiation: %v", ErrHandshakeFailed, err)
	}
	c.sizes = sizes

	return c, nil
}

func handshake(sock net.Conn) error {
	sock.SetDeadline(time.Now().Add(DialTimeout))
	defer sock.SetDeadline(time.Time{})

	if _, err := sock.Write(Handshake); err != nil {
		return fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	reply := make([]byte, len(Handshake))
	if _, err := io.ReadFull(sock, reply); err != nil {
		return fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	if string(reply) != string(Handshake) {
		return fmt.Errorf("%w: unexpected banner %q", ErrHandshakeFailed, reply)
	}
	return nil
}

// Sizes returns the negotiated identifier widths.
func (c *Conn) Sizes() IDSizes { return c.sizes }

// Closed reports whether the connection has been torn down.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close tears down the socket. Every outstanding waiter is completed
// with ErrConnectionClosed.
func (c *Conn) Close() error {
	c.fail(ErrConnectionClosed)
	return nil
}

// fail marks the connection dead and wakes all waiters. Idempotent.
func (c *Conn) fail(err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.closeErr = err
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	c.sock.Close()
	for _, ch := range pending {
		close(ch)
	}
}

// readLoop continuously decodes incoming packets. Replies are routed to
// their waiter; command packets from the VM (events) have no waiter and
// are logged and discarded, as are replies whose waiter already gave up.
func (c *Conn) readLoop() {
	for {
		p, err := ReadPacket(c.sock)
		if err != nil {
			if errors.Is(err, ErrMalformedPacket) {
				c.fail(err)
			} else {
				c.fail(fmt.Errorf("%w: %v", ErrConnectionClosed, err))
			}
			return
		}

		if !p.IsReply() {
			if p.CmdSet == CmdSetEvent && p.Cmd == CmdEventComposite {
				log.Printf("jdwp: discarding unsolicited event packet id=%d (%d bytes)", p.ID, len(p.Data))
			} else {
				log.Printf("jdwp: discarding unexpected command packet id=%d set=%d cmd=%d", p.ID, p.CmdSet, p.Cmd)
			}
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[p.ID]
		if ok {
			delete(c.pending, p.ID)
		}
		c.mu.Unlock()

		if !ok {
			// Late reply for a timed-out request.
			log.Printf("jdwp: dropping stale reply id=%d", p.ID)
			continue
		}
		ch <- p
	}
}

// Send issues one command and waits for its matched reply. A non-zero
// reply error code surfaces as *CommandError. Context expiry completes
// the wait with ErrTimeout while the read loop reaps the reply later.
func (c *Conn) Send(ctx context.Context, cmdSet, cmd byte, payload []byte) ([]byte, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, c.closeErr
	}
	c.nextID++
	id := c.nextID
	ch := make(chan *Packet, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	p := &Packet{ID: id, CmdSet: cmdSet, Cmd: cmd, Data: payload}
	c.writeMu.Lock()
	err := WritePacket(c.sock, p)
	c.writeMu.Unlock()
	if err != nil {
		c.abandon(id)
		c.fail(fmt.Errorf("%w: write: %v", ErrConnectionClosed, err))
		return nil, c.closeErr
	}

	select {
	case reply, ok := <-ch:
		if !ok {
			return nil, c.closeErr
		}
		if reply.ErrorCode != 0 {
			return nil, &CommandError{Code: reply.ErrorCode}
		}
		return reply.Data, nil
	case <-ctx.Done():
		c.abandon(id)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, ctx.Err()
	}
}

// abandon removes a waiter so a late reply is dropped by the read loop.
func (c *Conn) abandon(id uint32) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// idSizes fetches the identifier widths from the target.
func (c *Conn) idSizes(ctx context.Context) (IDSizes, error) {
	data, err := c.Send(ctx, CmdSetVirtualMachine, CmdVMIDSizes, nil)
	if err != nil {
		return IDSizes{}, err
	}
	d := NewDecoder(c.sizes, data)
	sizes := IDSizes{
		FieldID:         int(d.Int()),
		MethodID:        int(d.Int()),
		ObjectID:        int(d.Int()),
		ReferenceTypeID: int(d.Int()),
		FrameID:         int(d.Int()),
	}
	if err := d.Err(); err != nil {
		return IDSizes{}, err
	}
	return sizes, nil
}
