// Package transport owns the single UDP listener socket this server reads
// from, and hands outbound sends off to short-lived sockets opened and
// closed per datagram.
package transport

import (
	"context"
	"log/slog"
	"net"
)

// MaxDatagramSize bounds a single read; larger UDP payloads are truncated
// by the kernel before we ever see them.
const MaxDatagramSize = 1400

// Datagram is one inbound UDP payload paired with its source address.
type Datagram struct {
	Payload []byte
	Src     *net.UDPAddr
}

// Listener owns the server's single receiving UDP socket.
type Listener struct {
	conn *net.UDPConn
}

// Listen binds a UDP socket on bindAddr:port.
func Listen(bindAddr string, port int) (*Listener, error) {
	addr := &net.UDPAddr{IP: net.ParseIP(bindAddr), Port: port}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, err
	}
	return &Listener{conn: conn}, nil
}

// Close releases the listening socket.
func (l *Listener) Close() error {
	return l.conn.Close()
}

// LocalAddr returns the address the listener is bound to, useful when the
// configured port is 0 and the kernel picked one.
func (l *Listener) LocalAddr() *net.UDPAddr {
	return l.conn.LocalAddr().(*net.UDPAddr)
}

// Serve reads datagrams until ctx is canceled, calling handle for each
// non-empty one it receives. Empty reads are dropped silently.
func (l *Listener) Serve(ctx context.Context, handle func(Datagram)) error {
	go func() {
		<-ctx.Done()
		_ = l.conn.Close()
	}()

	buf := make([]byte, MaxDatagramSize)
	for {
		n, src, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			slog.Warn("[Transport] read error, continuing", "error", err)
			continue
		}
		if n == 0 {
			continue
		}
		payload := make([]byte, n)
		copy(payload, buf[:n])
		handle(Datagram{Payload: payload, Src: src})
	}
}

// Send opens a fresh ephemeral UDP socket to addr, writes payload once,
// and closes it. Socket errors are logged and never retried or surfaced
// to the caller beyond the log line.
func Send(addr *net.UDPAddr, payload []byte) {
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		slog.Error("[Transport] send: dial failed", "addr", addr, "error", err)
		return
	}
	defer conn.Close()

	if _, err := conn.Write(payload); err != nil {
		slog.Error("[Transport] send: write failed", "addr", addr, "error", err)
	}
}
