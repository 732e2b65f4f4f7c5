package control

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"
)

type tcpClient struct {
	ports PortRange
}

func newTcpClient(r PortRange) Client { return &tcpClient{ports: r.Normalize()} }

func (c *tcpClient) Send(ctx context.Context, command string) (bool, string, error) {
	deadline := 2 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 {
			deadline = d
		}
	}
	cmd := parseCommand(command)
	for port := c.ports.Start; port <= c.ports.End; port++ {
		if err := ctx.Err(); err != nil {
			return false, "", err
		}
		addr := net.JoinHostPort(residentHost, strconv.Itoa(port))
		if !ping(addr, deadline) {
			continue
		}
		text, err := c.exchange(addr, cmd, deadline)
		return true, text, err
	}
	return false, "", nil
}

func (c *tcpClient) exchange(addr, cmd string, timeout time.Duration) (string, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return "", err
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))

	w := bufio.NewWriter(conn)
	if _, err := w.WriteString(cmd + "\n"); err != nil {
		return "", err
	}
	if err := w.Flush(); err != nil {
		return "", err
	}

	br := bufio.NewReader(conn)
	status, err := br.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read status: %w", err)
	}
	body, _ := io.ReadAll(br)
	switch status {
	case "OK\n":
		return string(body), nil
	case "ERROR\n":
		return "", errors.New(string(body))
	default:
		return "", fmt.Errorf("unexpected response %q", status)
	}
}
