package bridge

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client calls a bridge. It redials after a failed call and is not safe for
// concurrent use.
type Client struct {
	addr    string
	timeout time.Duration
	rpc     *rpc.Client
}

// NewClient ...
func NewClient(addr string, timeout time.Duration) *Client {
	return &Client{
		addr:    addr,
		timeout: timeout,
	}
}

func (c *Client) getConnection() error {
	if c.rpc == nil {
		conn, err := net.DialTimeout("tcp", c.addr, c.timeout)
		if err != nil {
			return err
		}

		c.rpc = jsonrpc.NewClient(conn)
	}

	return nil
}

func (c *Client) call(method string, args interface{}, reply interface{}) error {
	if err := c.getConnection(); err != nil {
		return err
	}

	if err := c.rpc.Call(ServiceName+"."+method, args, reply); err != nil {
		c.rpc.Close()
		c.rpc = nil
		return err
	}

	return nil
}

// SubmitTx ...
func (c *Client) SubmitTx(tx []byte) (string, error) {
	var hash string
	err := c.call("SubmitTx", tx, &hash)
	return hash, err
}

// GetAccount ...
func (c *Client) GetAccount(id string, data ...string) (*AccountReply, error) {
	account := new(AccountReply)
	if err := c.call("GetAccount", AccountArgs{ID: id, Data: data}, account); err != nil {
		return nil, err
	}
	return account, nil
}

// GetNetworkID ...
func (c *Client) GetNetworkID() (string, error) {
	var name string
	err := c.call("GetNetworkID", Empty{}, &name)
	return name, err
}

// Close ...
func (c *Client) Close() error {
	if c.rpc == nil {
		return nil
	}
	err := c.rpc.Close()
	c.rpc = nil
	return err
}
