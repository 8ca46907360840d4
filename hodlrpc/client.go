package hodlrpc

import (
	"fmt"
	"net/rpc"
	"net/rpc/jsonrpc"

	"golang.org/x/net/websocket"
)

// A HodlClient talks to a hodld over its websocket.
type HodlClient struct {
	rpccon *rpc.Client
}

// Dial connects to the RPC server at host:port.
func Dial(addr string) (*HodlClient, error) {
	ws, err := websocket.Dial(fmt.Sprintf("ws://%s/ws", addr), "", fmt.Sprintf("http://%s/", addr))
	if err != nil {
		return nil, err
	}
	return &HodlClient{rpccon: jsonrpc.NewClient(ws)}, nil
}

// Call runs HodlRPC.method.
func (c *HodlClient) Call(method string, args interface{}, reply interface{}) error {
	return c.rpccon.Call("HodlRPC."+method, args, reply)
}

func (c *HodlClient) Close() error {
	return c.rpccon.Close()
}
