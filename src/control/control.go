package control

// This file defines the API of the resident bot's loopback control channel.

import (
	"context"
	"strings"
)

// Commands understood by the resident.
const (
	CommandStatus = "STATUS"
	CommandStart  = "START"
	CommandStop   = "STOP"
)

// Server owns the TCP endpoint. Binding it also marks this process as the resident.
type Server interface {
	// Start begins listening on the first port of the range and accepting clients.
	Start(ctx context.Context) error
	// Port returns the bound TCP port, or 0 if not started.
	Port() int
	// Next returns the next accepted command connection, or ctx error.
	Next(ctx context.Context) (Conn, error)
	// Close releases ownership and stops accepting clients.
	Close() error
}

// Conn is one client connection carrying one command.
type Conn interface {
	Request() Request
	// RespondOK sends "OK" followed by text.
	RespondOK(text string) error
	// RespondError sends "ERROR" followed by a human-readable message.
	RespondError(msg string) error
	Close() error
}

// Request is a single parsed command line.
type Request struct {
	Command string
}

// Client talks to a resident found in the port range.
type Client interface {
	// Send scans the range, performs the PING handshake and sends command to the first
	// resident. If no resident is found it returns found=false, err=nil.
	Send(ctx context.Context, command string) (found bool, text string, err error)
}

func NewServer(r PortRange) Server { return newTcpServer(r) }

func NewClient(r PortRange) Client { return newTcpClient(r) }

func parseCommand(line string) string {
	return strings.ToUpper(strings.TrimSpace(line))
}
