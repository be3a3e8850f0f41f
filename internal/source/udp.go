package source

import (
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
)

// UDPReader receives scroll readings reported by the display frontend as
// small text datagrams of the form "position viewport content". The most
// recent sample is retained and returned by Read.
type UDPReader struct {
	conn   net.PacketConn
	notify func()

	mu     sync.Mutex
	sample Sample
	seen   bool

	done chan struct{}
}

// NewUDPReader listens on addr for scroll report datagrams. notify is
// invoked after every accepted datagram; it must not be nil.
func NewUDPReader(addr string, notify func()) (*UDPReader, error) {
	if notify == nil {
		return nil, errors.New("source: udp reader requires a notify func")
	}

	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen udp %s: %w", addr, err)
	}

	r := &UDPReader{
		conn:   conn,
		notify: notify,
		done:   make(chan struct{}),
	}
	go r.receive()
	return r, nil
}

// LocalAddr returns the bound listen address. Useful for tests.
func (r *UDPReader) LocalAddr() net.Addr {
	return r.conn.LocalAddr()
}

func (r *UDPReader) receive() {
	defer close(r.done)

	buf := make([]byte, 256)
	for {
		n, _, err := r.conn.ReadFrom(buf)
		if err != nil {
			// Closed connection ends the loop; anything else is a
			// transient datagram error.
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Printf("udp source: read error: %v", err)
			continue
		}

		var pos, viewport, content float64
		if _, err := fmt.Sscanf(string(buf[:n]), "%g %g %g", &pos, &viewport, &content); err != nil {
			log.Printf("udp source: malformed datagram %q", buf[:n])
			continue
		}

		r.mu.Lock()
		r.sample = Sample{Position: pos, ViewportHeight: viewport, ContentHeight: content}
		r.seen = true
		r.mu.Unlock()

		r.notify()
	}
}

// Read returns the most recently received sample. It returns ErrNoReading
// until the first datagram arrives.
func (r *UDPReader) Read() (Sample, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.seen {
		return Sample{}, ErrNoReading
	}
	return r.sample, nil
}

// Close stops the receive loop and releases the socket.
func (r *UDPReader) Close() error {
	err := r.conn.Close()
	<-r.done
	return err
}
