package transport

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// Default sizes, matching what a full-speed CDC-ACM endpoint delivers.
const (
	DefaultReadChunk  = 256
	DefaultWriteChunk = 256
)

// Logger receives transport diagnostics. It is satisfied by the bootloader
// Logger and by logging.Logger.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Conn is a buffered connection to a board. A background goroutine moves
// everything the port delivers into a RingBuffer; the programmer drains it
// with Read or ReadFull.
//
// Open, Close and configuration calls are serialised internally, but a Conn
// must only run one programming batch at a time.
type Conn struct {
	open       Opener
	ring       *RingBuffer
	logger     Logger
	readChunk  int
	writeChunk int

	mu      sync.Mutex
	port    Port
	baud    int
	done    chan struct{}
	stopped chan struct{}
	avail   chan struct{}
	readErr error
	wg      sync.WaitGroup

	listenersMu sync.Mutex
	listeners   []func(n int)
}

// ConnOption configures a Conn.
type ConnOption func(*Conn)

// WithRingSize sets the receive buffer capacity.
func WithRingSize(n int) ConnOption {
	return func(c *Conn) {
		c.ring = NewRingBuffer(n)
	}
}

// WithConnLogger sets a logger for transport events.
func WithConnLogger(l Logger) ConnOption {
	return func(c *Conn) {
		c.logger = l
	}
}

// WithReadChunk sets how many bytes the reader goroutine asks the port for
// at a time.
func WithReadChunk(n int) ConnOption {
	return func(c *Conn) {
		if n > 0 {
			c.readChunk = n
		}
	}
}

// NewConn returns a closed connection that uses open to reach the board.
//
// Example:
//
//	conn := transport.NewConn(func(baud int) (transport.Port, error) {
//	    return serialport.Open("/dev/ttyACM0", baud)
//	})
//	if err := conn.Open(57600); err != nil {
//	    log.Fatal(err)
//	}
//	defer conn.Close()
func NewConn(open Opener, opts ...ConnOption) *Conn {
	if open == nil {
		panic("opener cannot be nil")
	}
	c := &Conn{
		open:       open,
		readChunk:  DefaultReadChunk,
		writeChunk: DefaultWriteChunk,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.ring == nil {
		c.ring = NewRingBuffer(DefaultRingSize)
	}
	return c
}

// Open opens the port at baud and starts the reader goroutine. Opening an
// open connection is a no-op.
func (c *Conn) Open(baud int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.port != nil {
		return nil
	}

	port, err := c.open(baud)
	if err != nil {
		return fmt.Errorf("open port: %w", err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		c.logError("reset input buffer", "error", err)
	}

	c.port = port
	c.baud = baud
	c.done = make(chan struct{})
	c.stopped = make(chan struct{})
	c.avail = make(chan struct{}, 1)
	c.readErr = nil
	c.ring.Clear()

	c.wg.Add(1)
	go c.readLoop(port, c.done, c.stopped, c.avail)

	c.logDebug("port opened", "baud", baud)
	return nil
}

// Close stops the reader goroutine and closes the port.
func (c *Conn) Close() error {
	c.mu.Lock()
	port := c.port
	if port == nil {
		c.mu.Unlock()
		return nil
	}
	close(c.done)
	err := port.Close()
	c.port = nil
	c.mu.Unlock()

	c.wg.Wait()
	c.logDebug("port closed")
	return err
}

// IsOpen reports whether the connection is open.
func (c *Conn) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.port != nil
}

func (c *Conn) readLoop(port Port, done, stopped, avail chan struct{}) {
	defer c.wg.Done()
	defer close(stopped)

	buf := make([]byte, c.readChunk)
	for {
		select {
		case <-done:
			return
		default:
		}

		n, err := port.Read(buf)
		if n > 0 {
			c.ring.Add(buf[:n])
			select {
			case avail <- struct{}{}:
			default:
			}
			c.notify(n)
		}
		if err != nil {
			select {
			case <-done:
				return
			default:
			}
			c.logError("read failed", "error", err)
			c.mu.Lock()
			c.readErr = err
			c.mu.Unlock()
			return
		}
	}
}

func (c *Conn) notify(n int) {
	c.listenersMu.Lock()
	listeners := c.listeners
	c.listenersMu.Unlock()

	for _, fn := range listeners {
		fn(n)
	}
}

// OnRead registers fn to be called from the reader goroutine with the number
// of bytes each time data arrives. fn must not block.
func (c *Conn) OnRead(fn func(n int)) {
	c.listenersMu.Lock()
	c.listeners = append(c.listeners, fn)
	c.listenersMu.Unlock()
}

// Read moves buffered bytes into p without blocking and returns the count.
func (c *Conn) Read(p []byte) int {
	return c.ring.Get(p)
}

// ReadFull waits until len(p) bytes have been received or timeout elapses.
// It returns the number of bytes copied and ErrTimeout, ErrClosed or the
// port's read error when fewer than len(p) arrived.
func (c *Conn) ReadFull(p []byte, timeout time.Duration) (int, error) {
	c.mu.Lock()
	if c.port == nil {
		c.mu.Unlock()
		return 0, ErrClosed
	}
	avail, stopped := c.avail, c.stopped
	c.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	n := 0
	for {
		n += c.ring.Get(p[n:])
		if n == len(p) {
			return n, nil
		}

		select {
		case <-avail:
		case <-stopped:
			n += c.ring.Get(p[n:])
			if n == len(p) {
				return n, nil
			}
			return n, c.stopErr()
		case <-timer.C:
			return n, ErrTimeout
		}
	}
}

func (c *Conn) stopErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr != nil && !errors.Is(c.readErr, io.EOF) {
		return fmt.Errorf("read: %w", c.readErr)
	}
	return ErrClosed
}

// Write sends p to the board in chunks no larger than the write chunk size.
func (c *Conn) Write(p []byte) (int, error) {
	c.mu.Lock()
	port := c.port
	c.mu.Unlock()
	if port == nil {
		return 0, ErrClosed
	}

	written := 0
	for written < len(p) {
		end := written + c.writeChunk
		if end > len(p) {
			end = len(p)
		}
		n, err := port.Write(p[written:end])
		written += n
		if err != nil {
			return written, fmt.Errorf("write: %w", err)
		}
	}
	return written, nil
}

// SetBaudRate changes the line speed of the open port.
func (c *Conn) SetBaudRate(baud int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.port == nil {
		return ErrClosed
	}
	if baud == c.baud {
		return nil
	}
	if err := c.port.SetBaudRate(baud); err != nil {
		return fmt.Errorf("set baud rate %d: %w", baud, err)
	}
	c.baud = baud
	return nil
}

// BaudRate returns the current line speed, or the last one used if closed.
func (c *Conn) BaudRate() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.baud
}

// ClearBuffer discards everything received so far.
func (c *Conn) ClearBuffer() {
	c.ring.Clear()
	c.mu.Lock()
	avail := c.avail
	c.mu.Unlock()
	if avail != nil {
		select {
		case <-avail:
		default:
		}
	}
}

// Overruns returns how many received bytes were lost to a full buffer.
func (c *Conn) Overruns() uint64 {
	return c.ring.Overruns()
}

func (c *Conn) logDebug(msg string, keysAndValues ...interface{}) {
	if c.logger != nil {
		c.logger.Debug(msg, keysAndValues...)
	}
}

func (c *Conn) logError(msg string, keysAndValues ...interface{}) {
	if c.logger != nil {
		c.logger.Error(msg, keysAndValues...)
	}
}
