package transport

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRingBufferFIFO(t *testing.T) {
	r := NewRingBuffer(8)
	r.Add([]byte{1, 2, 3})
	r.Add([]byte{4, 5})

	p := make([]byte, 4)
	if n := r.Get(p); n != 4 || !bytes.Equal(p, []byte{1, 2, 3, 4}) {
		t.Fatalf("Get = %d % X, want 4 01 02 03 04", n, p)
	}
	if n := r.Get(p); n != 1 || p[0] != 5 {
		t.Fatalf("Get = %d % X, want 1 05", n, p[:n])
	}
	if n := r.Get(p); n != 0 {
		t.Fatalf("Get on empty buffer = %d, want 0", n)
	}
}

func TestRingBufferOverwritesOldest(t *testing.T) {
	r := NewRingBuffer(4)
	r.Add([]byte{1, 2, 3, 4, 5})

	p := make([]byte, 8)
	n := r.Get(p)
	if !bytes.Equal(p[:n], []byte{2, 3, 4, 5}) {
		t.Errorf("Get = % X, want 02 03 04 05", p[:n])
	}
	if r.Overruns() != 1 {
		t.Errorf("Overruns = %d, want 1", r.Overruns())
	}
}

func TestRingBufferWrapAround(t *testing.T) {
	r := NewRingBuffer(4)
	p := make([]byte, 3)
	for i := 0; i < 10; i++ {
		in := []byte{byte(i), byte(i + 1), byte(i + 2)}
		r.Add(in)
		if n := r.Get(p); n != 3 || !bytes.Equal(p, in) {
			t.Fatalf("iteration %d: Get = % X, want % X", i, p[:n], in)
		}
	}
	if r.Overruns() != 0 {
		t.Errorf("Overruns = %d, want 0", r.Overruns())
	}
}

func TestRingBufferClear(t *testing.T) {
	r := NewRingBuffer(0)
	if r.Cap() != DefaultRingSize {
		t.Errorf("Cap = %d, want %d", r.Cap(), DefaultRingSize)
	}
	r.Add([]byte{1, 2, 3})
	r.Clear()
	if r.Len() != 0 {
		t.Errorf("Len after Clear = %d", r.Len())
	}
	if n := r.Get(make([]byte, 3)); n != 0 {
		t.Errorf("Get after Clear = %d", n)
	}
}

func TestRingBufferConcurrent(t *testing.T) {
	r := NewRingBuffer(64)
	const total = 10000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; i++ {
			r.Add([]byte{byte(i)})
			if r.Len() > 32 {
				time.Sleep(time.Microsecond)
			}
		}
	}()

	got := 0
	p := make([]byte, 16)
	deadline := time.Now().Add(5 * time.Second)
	for got+int(r.Overruns()) < total && time.Now().Before(deadline) {
		got += r.Get(p)
	}
	wg.Wait()
	got += r.Get(p)

	if got+int(r.Overruns()) != total {
		t.Errorf("received %d + lost %d, want %d", got, r.Overruns(), total)
	}
}

// pipePort is an in-memory Port. Bytes pushed with feed are returned by Read.
type pipePort struct {
	in      chan []byte
	written bytes.Buffer
	writes  [][]byte
	closed  chan struct{}
	baud    int
	readErr error
	mu      sync.Mutex
}

func newPipePort(baud int) *pipePort {
	return &pipePort{in: make(chan []byte, 16), closed: make(chan struct{}), baud: baud}
}

func (p *pipePort) feed(b []byte) { p.in <- b }

func (p *pipePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	err := p.readErr
	p.mu.Unlock()
	if err != nil {
		return 0, err
	}
	select {
	case data := <-p.in:
		return copy(b, data), nil
	case <-p.closed:
		return 0, errors.New("port closed")
	case <-time.After(5 * time.Millisecond):
		return 0, nil
	}
}

func (p *pipePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.written.Write(b)
	p.writes = append(p.writes, append([]byte(nil), b...))
	return len(b), nil
}

func (p *pipePort) Close() error {
	close(p.closed)
	return nil
}

func (p *pipePort) SetBaudRate(baud int) error {
	p.mu.Lock()
	p.baud = baud
	p.mu.Unlock()
	return nil
}

func (p *pipePort) ResetInputBuffer() error { return nil }

func openPipe(t *testing.T) (*Conn, *pipePort) {
	t.Helper()
	var port *pipePort
	conn := NewConn(func(baud int) (Port, error) {
		port = newPipePort(baud)
		return port, nil
	})
	if err := conn.Open(57600); err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn, port
}

func TestConnReadFull(t *testing.T) {
	conn, port := openPipe(t)

	go func() {
		port.feed([]byte("CAT"))
		time.Sleep(10 * time.Millisecond)
		port.feed([]byte("ERIN"))
	}()

	p := make([]byte, 7)
	n, err := conn.ReadFull(p, time.Second)
	if err != nil {
		t.Fatalf("ReadFull: %v", err)
	}
	if n != 7 || string(p) != "CATERIN" {
		t.Errorf("ReadFull = %d %q", n, p)
	}
}

func TestConnReadFullTimeout(t *testing.T) {
	conn, port := openPipe(t)
	port.feed([]byte{0x0D})

	p := make([]byte, 3)
	start := time.Now()
	n, err := conn.ReadFull(p, 50*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if n != 1 || p[0] != 0x0D {
		t.Errorf("n = %d, want the 1 byte that arrived", n)
	}
	if time.Since(start) < 50*time.Millisecond {
		t.Error("ReadFull returned before the timeout")
	}
}

func TestConnReadFullAfterReaderFailure(t *testing.T) {
	conn, port := openPipe(t)

	port.mu.Lock()
	port.readErr = errors.New("device unplugged")
	port.mu.Unlock()

	_, err := conn.ReadFull(make([]byte, 1), time.Second)
	if err == nil || !bytes.Contains([]byte(err.Error()), []byte("device unplugged")) {
		t.Fatalf("err = %v, want the port's read error", err)
	}
}

func TestConnClosed(t *testing.T) {
	conn := NewConn(func(baud int) (Port, error) { return newPipePort(baud), nil })

	if conn.IsOpen() {
		t.Error("new Conn should be closed")
	}
	if _, err := conn.Write([]byte{1}); !errors.Is(err, ErrClosed) {
		t.Errorf("Write err = %v, want ErrClosed", err)
	}
	if _, err := conn.ReadFull(make([]byte, 1), time.Millisecond); !errors.Is(err, ErrClosed) {
		t.Errorf("ReadFull err = %v, want ErrClosed", err)
	}
	if err := conn.SetBaudRate(1200); !errors.Is(err, ErrClosed) {
		t.Errorf("SetBaudRate err = %v, want ErrClosed", err)
	}
	if err := conn.Close(); err != nil {
		t.Errorf("Close of closed Conn = %v", err)
	}
}

func TestConnOpenError(t *testing.T) {
	conn := NewConn(func(int) (Port, error) { return nil, errors.New("no such device") })
	err := conn.Open(57600)
	if err == nil || !bytes.Contains([]byte(err.Error()), []byte("no such device")) {
		t.Fatalf("err = %v", err)
	}
	if conn.IsOpen() {
		t.Error("Conn should stay closed after a failed open")
	}
}

func TestConnWriteChunks(t *testing.T) {
	conn, port := openPipe(t)

	data := bytes.Repeat([]byte{0xAB}, DefaultWriteChunk*2+10)
	n, err := conn.Write(data)
	if err != nil || n != len(data) {
		t.Fatalf("Write = %d, %v", n, err)
	}

	port.mu.Lock()
	defer port.mu.Unlock()
	if len(port.writes) != 3 {
		t.Errorf("%d port writes, want 3", len(port.writes))
	}
	if !bytes.Equal(port.written.Bytes(), data) {
		t.Error("written data differs")
	}
}

func TestConnOnReadAndClearBuffer(t *testing.T) {
	conn, port := openPipe(t)

	var notified int64
	conn.OnRead(func(n int) { atomic.AddInt64(&notified, int64(n)) })

	port.feed([]byte{1, 2, 3})
	if _, err := conn.ReadFull(make([]byte, 1), time.Second); err != nil {
		t.Fatalf("ReadFull: %v", err)
	}
	// the listener runs after the data is buffered
	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt64(&notified) != 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := atomic.LoadInt64(&notified); got != 3 {
		t.Errorf("listener saw %d bytes, want 3", got)
	}

	conn.ClearBuffer()
	if n := conn.Read(make([]byte, 8)); n != 0 {
		t.Errorf("Read after ClearBuffer = %d", n)
	}
}

func TestConnBaudRate(t *testing.T) {
	conn, port := openPipe(t)

	if conn.BaudRate() != 57600 {
		t.Errorf("BaudRate = %d", conn.BaudRate())
	}
	if err := conn.SetBaudRate(115200); err != nil {
		t.Fatalf("SetBaudRate: %v", err)
	}
	if conn.BaudRate() != 115200 {
		t.Errorf("BaudRate = %d after change", conn.BaudRate())
	}
	port.mu.Lock()
	defer port.mu.Unlock()
	if port.baud != 115200 {
		t.Errorf("port baud = %d", port.baud)
	}
}

func TestConnReopen(t *testing.T) {
	opens := 0
	conn := NewConn(func(baud int) (Port, error) {
		opens++
		return newPipePort(baud), nil
	})
	for i := 0; i < 3; i++ {
		if err := conn.Open(57600); err != nil {
			t.Fatalf("Open %d: %v", i, err)
		}
		if err := conn.Open(57600); err != nil {
			t.Fatalf("second Open %d: %v", i, err)
		}
		if err := conn.Close(); err != nil {
			t.Fatalf("Close %d: %v", i, err)
		}
	}
	if opens != 3 {
		t.Errorf("opener called %d times, want 3", opens)
	}
}

func TestTouch(t *testing.T) {
	var gotBaud int
	var port *pipePort
	err := Touch(context.Background(), func(baud int) (Port, error) {
		gotBaud = baud
		port = newPipePort(baud)
		return port, nil
	}, ResetBaudRate, time.Millisecond)
	if err != nil {
		t.Fatalf("Touch: %v", err)
	}
	if gotBaud != 1200 {
		t.Errorf("opened at %d baud, want 1200", gotBaud)
	}
	select {
	case <-port.closed:
	default:
		t.Error("port was not closed")
	}
}

func TestTouchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Touch(ctx, func(baud int) (Port, error) { return newPipePort(baud), nil }, ResetBaudRate, time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
