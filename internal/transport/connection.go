package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	lserrors "lockstep/internal/errors"
	"lockstep/internal/metrics"
	"lockstep/util"
)

// SocketStatus is the connection state observed by polling.
type SocketStatus int

const (
	SocketClosed SocketStatus = iota
	SocketResolving
	SocketConnecting
	SocketConnected
	SocketFailed
)

func (s SocketStatus) String() string {
	switch s {
	case SocketClosed:
		return "closed"
	case SocketResolving:
		return "resolving"
	case SocketConnecting:
		return "connecting"
	case SocketConnected:
		return "connected"
	case SocketFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Options tune a Connection.
type Options struct {
	Timeout time.Duration // resolve + connect budget; 0 means none
	NoDNS   bool
	Logger  *util.Logger
	Metrics *metrics.Collector
}

// Connection is a packet connection whose connect, reads and writes run
// on background goroutines.  The owner polls Status and Receive from a
// single thread and queues outbound packets with QueuePacket.
type Connection struct {
	dialer  Dialer
	opts    Options
	log     *util.Logger
	metrics *metrics.Collector

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	status  SocketStatus
	err     error
	conn    PacketConn
	inbox   [][]byte
	outbox  [][]byte
	wake    chan struct{}
	started bool
	closed  bool
}

// NewConnection returns an idle connection that will dial through d.
func NewConnection(d Dialer, opts Options) *Connection {
	log := opts.Logger
	if log == nil {
		log = util.NewLogger(0)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		dialer:  d,
		opts:    opts,
		log:     log,
		metrics: opts.Metrics,
		ctx:     ctx,
		cancel:  cancel,
		wake:    make(chan struct{}, 1),
	}
}

// Connect starts connecting to host:port in the background.  It returns
// immediately; progress is visible through Status.
func (c *Connection) Connect(host string, port int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return lserrors.ErrNotConnected
	}
	if c.started {
		return errors.New("transport: connection already started")
	}
	c.started = true
	c.status = SocketResolving

	c.wg.Add(1)
	go c.run(host, port)
	return nil
}

// run resolves, dials, then pumps packets until the connection ends.
func (c *Connection) run(host string, port int) {
	defer c.wg.Done()

	ctx := c.ctx
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	addr, err := c.resolve(ctx, host, port)
	if err != nil {
		c.fail(lserrors.Wrap("resolve", util.FormatAddr(host, port), err))
		return
	}

	c.setStatus(SocketConnecting)
	c.log.Verbose("connecting to %s", addr)

	pc, err := c.dialer.Dial(ctx, addr)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = lserrors.ErrTimeout
		}
		c.fail(lserrors.Wrap("dial", addr, err))
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		pc.Close()
		return
	}
	c.conn = pc
	c.status = SocketConnected
	c.mu.Unlock()

	c.metrics.Connected()
	c.log.Verbose("connected to %s", addr)

	c.wg.Add(1)
	go c.writeLoop(pc, addr)
	c.readLoop(pc, addr)
}

func (c *Connection) resolve(ctx context.Context, host string, port int) (string, error) {
	if nd, ok := c.dialer.(NameDialer); ok && nd.DialsByName() {
		return util.ResolveAddr(host, port, c.opts.NoDNS)
	}
	addrs, err := util.LookupHost(ctx, host, c.opts.NoDNS)
	if err != nil {
		return "", err
	}
	if len(addrs) == 0 {
		return "", &net.DNSError{Err: "no addresses", Name: host}
	}
	c.log.Debug("resolved %s to %v", host, addrs)
	return util.FormatAddr(addrs[0], port), nil
}

func (c *Connection) readLoop(pc PacketConn, addr string) {
	for {
		p, err := pc.ReadPacket()
		if err != nil {
			c.lost(lserrors.Wrap("read", addr, err))
			return
		}
		c.metrics.PacketReceived(len(p))
		c.mu.Lock()
		c.inbox = append(c.inbox, p)
		c.mu.Unlock()
	}
}

func (c *Connection) writeLoop(pc PacketConn, addr string) {
	defer c.wg.Done()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.wake:
		}

		c.mu.Lock()
		batch := c.outbox
		c.outbox = nil
		c.mu.Unlock()

		for _, p := range batch {
			if err := pc.WritePacket(p); err != nil {
				c.lost(lserrors.Wrap("write", addr, err))
				return
			}
			c.metrics.PacketSent(len(p))
		}
	}
}

// QueuePacket appends p to the send queue.  Packets queued before the
// connection is up are sent once it is.
func (c *Connection) QueuePacket(p []byte) error {
	c.mu.Lock()
	if c.closed || c.status == SocketFailed {
		c.mu.Unlock()
		return lserrors.ErrNotConnected
	}
	c.outbox = append(c.outbox, p)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
	return nil
}

// Receive drains and returns every packet received since the last call.
func (c *Connection) Receive() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	in := c.inbox
	c.inbox = nil
	return in
}

// Status returns the current socket status.
func (c *Connection) Status() SocketStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Err returns the error that ended the connection, if any.
func (c *Connection) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// fail records a connect failure.
func (c *Connection) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.status = SocketFailed
	c.err = err
	c.metrics.RecordError(err.Error())
}

// lost records the end of an established connection.
func (c *Connection) lost(err error) {
	c.mu.Lock()
	if c.closed || c.status != SocketConnected {
		c.mu.Unlock()
		return
	}
	c.status = SocketClosed
	if !errors.Is(err, io.EOF) {
		c.err = err
		c.metrics.RecordError(err.Error())
	}
	pc := c.conn
	c.mu.Unlock()

	// Unblock the other pump.
	pc.Close()
	c.cancel()
}

func (c *Connection) setStatus(s SocketStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.status = s
	}
}

// Close tears the connection down and waits for its goroutines.  It is
// safe to call more than once and from any state.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.status = SocketClosed
	pc := c.conn
	c.outbox = nil
	c.inbox = nil
	c.mu.Unlock()

	c.cancel()
	var err error
	if pc != nil {
		err = pc.Close()
	}
	c.wg.Wait()
	return err
}
