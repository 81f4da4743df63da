// Package transport moves bytes between the host and a board.
//
// A Port is the raw link supplied by a backend:
//
//   - transport/serialport: any OS serial port (go.bug.st/serial)
//   - transport/tty: POSIX terminals (github.com/pkg/term)
//   - transport/usbcdc: direct USB CDC-ACM access (github.com/google/gousb)
//
// Conn wraps a Port with a receive RingBuffer fed by a background goroutine,
// giving the programmer non-blocking Read and deadline-bound ReadFull:
//
//	conn := transport.NewConn(opener)
//	if err := conn.Open(57600); err != nil {
//	    return err
//	}
//	defer conn.Close()
//
//	conn.Write([]byte{'S'})
//	id := make([]byte, 7)
//	n, err := conn.ReadFull(id, 5*time.Second)
package transport
