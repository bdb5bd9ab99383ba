package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

const serviceName = "Wallp"

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
		return c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func call[Resp any](c *Client, method string, req any) (*Resp, error) {
	var resp Resp
	if err := c.client.Call(serviceName+"."+method, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests the daemon to stop and exit.
func (c *Client) Stop() (*StopResponse, error) {
	return call[StopResponse](c, "Stop", StopRequest{})
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	return call[StatusResponse](c, "Status", StatusRequest{})
}

// Change queues a wallpaper change.
func (c *Client) Change(req ChangeRequest) (*ChangeResponse, error) {
	return call[ChangeResponse](c, "Change", req)
}

// ScheduleSet installs or replaces the timed change.
func (c *Client) ScheduleSet(req ScheduleSetRequest) (*ScheduleSetResponse, error) {
	return call[ScheduleSetResponse](c, "ScheduleSet", req)
}

// ScheduleRemove removes the timed change.
func (c *Client) ScheduleRemove() (*ScheduleRemoveResponse, error) {
	return call[ScheduleRemoveResponse](c, "ScheduleRemove", ScheduleRemoveRequest{})
}

// ScheduleList returns scheduled jobs.
func (c *Client) ScheduleList() (*ScheduleListResponse, error) {
	return call[ScheduleListResponse](c, "ScheduleList", ScheduleListRequest{})
}

// History returns recently staged images.
func (c *Client) History(limit int) (*HistoryResponse, error) {
	return call[HistoryResponse](c, "History", HistoryRequest{Limit: limit})
}

// Sources lists image sources.
func (c *Client) Sources() (*SourcesResponse, error) {
	return call[SourcesResponse](c, "Sources", SourcesRequest{})
}

// LogTail returns log lines from the daemon.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	return call[LogTailResponse](c, "LogTail", req)
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	return call[TestNotificationResponse](c, "TestNotification", TestNotificationRequest{})
}
