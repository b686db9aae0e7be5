package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"

	"lectern/internal/runner"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// StartRun asks the daemon to launch a transcription run.
func (c *Client) StartRun(run runner.Request) (*StartRunResponse, error) {
	var resp StartRunResponse
	if err := c.client.Call("Lectern.StartRun", StartRunRequest{Run: run}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TogglePause pauses or resumes the active run.
func (c *Client) TogglePause(paused bool) (*PauseResponse, error) {
	var resp PauseResponse
	if err := c.client.Call("Lectern.TogglePause", PauseRequest{Paused: paused}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StopRun asks the active run to stop at the next safe point.
func (c *Client) StopRun() (*StopRunResponse, error) {
	var resp StopRunResponse
	if err := c.client.Call("Lectern.StopRun", StopRunRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Lectern.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Events fetches run events after a sequence number.
func (c *Client) Events(req EventsRequest) (*EventsResponse, error) {
	var resp EventsResponse
	if err := c.client.Call("Lectern.Events", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// History lists past runs, newest first.
func (c *Client) History(limit int) (*HistoryResponse, error) {
	var resp HistoryResponse
	if err := c.client.Call("Lectern.History", HistoryRequest{Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.client.Call("Lectern.TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Shutdown asks the daemon process to exit.
func (c *Client) Shutdown(force bool) (*ShutdownResponse, error) {
	var resp ShutdownResponse
	if err := c.client.Call("Lectern.Shutdown", ShutdownRequest{Force: force}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
