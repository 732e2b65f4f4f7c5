package control

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net"
	"sync"
	"time"
)

const (
	residentHost = "127.0.0.1"
	pingRequest  = "PING\n"
	pongResponse = "PONG\n"
)

// tcpServer implements Server over TCP loopback.
type tcpServer struct {
	ports    PortRange
	lis      net.Listener
	incoming chan *tcpConn
	port     int
	once     sync.Once
}

func newTcpServer(r PortRange) Server {
	return &tcpServer{ports: r.Normalize(), incoming: make(chan *tcpConn, 8)}
}

// Start binds ONLY the start port of the range. If occupied, another resident owns it
// and Start fails.
func (s *tcpServer) Start(ctx context.Context) error {
	if s.lis != nil {
		return nil
	}
	addr := fmt.Sprintf("%s:%d", residentHost, s.ports.Start)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		log.Printf("control: failed to bind %s: %v", addr, err)
		return fmt.Errorf("control port %d in use, is another bot running? %w", s.ports.Start, err)
	}
	s.lis = lis
	s.port = s.ports.Start
	log.Printf("control: listening on %s", addr)
	go s.acceptLoop(ctx, lis)
	return nil
}

func (s *tcpServer) Port() int { return s.port }

func (s *tcpServer) acceptLoop(ctx context.Context, lis net.Listener) {
	for {
		c, err := lis.Accept()
		if err != nil {
			return
		}
		remote := c.RemoteAddr().String()
		_ = c.SetDeadline(time.Now().Add(3 * time.Second))
		br := bufio.NewReader(c)
		line, _ := br.ReadString('\n')
		bw := bufio.NewWriter(c)
		if line == pingRequest {
			log.Printf("DEBUG: control: PING from %s -> PONG", remote)
			_, _ = bw.WriteString(pongResponse)
			_ = bw.Flush()
			_ = c.Close()
			continue
		}

		cmd := parseCommand(line)
		switch cmd {
		case CommandStatus, CommandStart, CommandStop:
		default:
			log.Printf("control: unknown command %q from %s", cmd, remote)
			_, _ = bw.WriteString("ERROR\nunknown command " + cmd)
			_ = bw.Flush()
			_ = c.Close()
			continue
		}
		log.Printf("control: %s from %s", cmd, remote)
		select {
		case s.incoming <- &tcpConn{c: c, r: Request{Command: cmd}, w: bw}:
		case <-ctx.Done():
			_ = c.Close()
			return
		}
	}
}

func (s *tcpServer) Next(ctx context.Context) (Conn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case tc := <-s.incoming:
		return tc, nil
	}
}

// Close stops accepting. Pending connections are dropped.
func (s *tcpServer) Close() error {
	s.once.Do(func() {
		if s.lis != nil {
			_ = s.lis.Close()
		}
	})
	return nil
}

type tcpConn struct {
	c net.Conn
	r Request
	w *bufio.Writer
}

func (tc *tcpConn) Request() Request { return tc.r }

func (tc *tcpConn) RespondOK(text string) error {
	if _, err := tc.w.WriteString("OK\n" + text); err != nil {
		return err
	}
	return tc.w.Flush()
}

func (tc *tcpConn) RespondError(msg string) error {
	if _, err := tc.w.WriteString("ERROR\n" + msg); err != nil {
		return err
	}
	return tc.w.Flush()
}

func (tc *tcpConn) Close() error { return tc.c.Close() }
