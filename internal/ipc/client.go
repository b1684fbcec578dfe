package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"

	"quenc/internal/queue"
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

// Submit enqueues a task and returns its id.
func (c *Client) Submit(task queue.Task) (*SubmitResponse, error) {
	var resp SubmitResponse
	if err := c.client.Call("Quenc.Submit", SubmitRequest{Task: task}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// List fetches the queue contents.
func (c *Client) List() (*ListResponse, error) {
	var resp ListResponse
	if err := c.client.Call("Quenc.List", ListRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Progress fetches the live snapshot for one task.
func (c *Client) Progress(id string) (*ProgressResponse, error) {
	var resp ProgressResponse
	if err := c.client.Call("Quenc.Progress", ProgressRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AllProgress fetches every live snapshot.
func (c *Client) AllProgress() (*AllProgressResponse, error) {
	var resp AllProgressResponse
	if err := c.client.Call("Quenc.AllProgress", AllProgressRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Scan enqueues every media file under root.
func (c *Client) Scan(root string) (*ScanResponse, error) {
	var resp ScanResponse
	if err := c.client.Call("Quenc.Scan", ScanRequest{Root: root}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ScanProgress fetches the running scan counter.
func (c *Client) ScanProgress() (*ScanProgressResponse, error) {
	var resp ScanProgressResponse
	if err := c.client.Call("Quenc.ScanProgress", ScanProgressRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Remove deletes a non-running task.
func (c *Client) Remove(id string) (*RemoveResponse, error) {
	var resp RemoveResponse
	if err := c.client.Call("Quenc.Remove", RemoveRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Cancel stops a queued or running task.
func (c *Client) Cancel(id string) (*CancelResponse, error) {
	var resp CancelResponse
	if err := c.client.Call("Quenc.Cancel", CancelRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status fetches daemon health.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Quenc.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
