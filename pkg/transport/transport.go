package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
)

var (
	// ErrTransport is a failed send or lost link, session-fatal.
	ErrTransport = errors.New("transport failure")

	ErrNotConnected = errors.New("transport not connected")
)

// Transport is the narrow surface of the device link. SendMessage is
// synchronous: it returns once the link has accepted the packet, which is
// what the pipeline's backpressure hangs on.
type Transport interface {
	Connect() error
	Disconnect() error
	IsConnected() bool
	SendMessage(tag byte, payload []byte) error
}

// each packet goes out as tag, big-endian payload length, payload
func writeFrame(w io.Writer, tag byte, payload []byte) error {
	var hdr [3]byte
	hdr[0] = tag
	binary.BigEndian.PutUint16(hdr[1:], uint16(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return nil
}

// Writer frames packets onto an io.Writer. Useful as a file or stdout sink
// when no device is around.
type Writer struct {
	w         io.Writer
	connected bool
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (t *Writer) Connect() error {
	t.connected = true
	return nil
}

func (t *Writer) Disconnect() error {
	t.connected = false
	if c, ok := t.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (t *Writer) IsConnected() bool {
	return t.connected
}

func (t *Writer) SendMessage(tag byte, payload []byte) error {
	if !t.connected {
		return ErrNotConnected
	}
	return writeFrame(t.w, tag, payload)
}

// TCP dials a relay address on Connect and frames packets over the socket.
type TCP struct {
	addr string
	conn net.Conn
}

func NewTCP(addr string) *TCP {
	return &TCP{addr: addr}
}

func (t *TCP) Connect() error {
	conn, err := net.Dial("tcp", t.addr)
	if err != nil {
		return fmt.Errorf("%w: connect %s: %v", ErrTransport, t.addr, err)
	}
	t.conn = conn
	return nil
}

func (t *TCP) Disconnect() error {
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return nil
}

func (t *TCP) IsConnected() bool {
	return t.conn != nil
}

func (t *TCP) SendMessage(tag byte, payload []byte) error {
	if t.conn == nil {
		return ErrNotConnected
	}
	return writeFrame(t.conn, tag, payload)
}
