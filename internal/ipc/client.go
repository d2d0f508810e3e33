package ipc

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/bnema/wayidle/internal/logger"
)

// ErrNotRunning is returned when no daemon listens on the socket
var ErrNotRunning = errors.New("wayidle daemon is not running")

// Client queries a running wayidle daemon
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a client for socketPath, or DefaultSocketPath when it is empty
func NewClient(socketPath string) (*Client, error) {
	if socketPath == "" {
		var err error
		socketPath, err = DefaultSocketPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get socket path: %w", err)
		}
	}

	return &Client{
		socketPath: socketPath,
		timeout:    5 * time.Second,
	}, nil
}

// SetTimeout changes the per-request timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
}

// Status asks the daemon for the current idle state
func (c *Client) Status() (Status, error) {
	msg, err := NewStatusRequest()
	if err != nil {
		return Status{}, fmt.Errorf("failed to create status message: %w", err)
	}

	response, err := c.sendMessage(msg)
	if err != nil {
		return Status{}, err
	}
	return ParseStatus(response)
}

// IsRunning reports whether a daemon answers on the socket
func (c *Client) IsRunning() bool {
	_, err := c.Status()
	return err == nil
}

// sendMessage sends a message and returns the response
func (c *Client) sendMessage(msg *structpb.Struct) (*structpb.Struct, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		if isNotListening(err) {
			return nil, ErrNotRunning
		}
		return nil, fmt.Errorf("failed to connect to wayidle: %w", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			logger.Errorf("Failed to close IPC connection: %v", err)
		}
	}()

	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		logger.Warnf("Failed to set connection deadline: %v", err)
	}

	if err := writeMessage(conn, msg); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	response, err := readMessage(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return response, nil
}

// isNotListening checks whether dialing failed because nobody listens on the socket
func isNotListening(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ENOENT)
}
