package hodlrpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/rpc"
	"net/rpc/jsonrpc"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/websocket"

	"github.com/mit-dci/hodl/lncore"
	"github.com/mit-dci/hodl/logging"
	"github.com/mit-dci/hodl/node"
)

/*
Remote Procedure Calls
RPCs are how people tell the hodl node what to do.  Every method takes an
args struct and fills in a reply, net/rpc style, and the codec is JSON-RPC
over a websocket at /ws.
*/

// A HodlRPC is the user I/O interface; it owns the node and answers calls
// about invoices and peers.
type HodlRPC struct {
	Node      *node.Node
	OffButton chan bool

	// Timeout bounds each call that does network work.
	Timeout time.Duration
}

// DefaultCallTimeout is used when Timeout is zero.
const DefaultCallTimeout = time.Minute

// NewHodlRPC wraps n.
func NewHodlRPC(n *node.Node) *HodlRPC {
	return &HodlRPC{
		Node:      n,
		OffButton: make(chan bool, 1),
		Timeout:   DefaultCallTimeout,
	}
}

func (r *HodlRPC) ctx() (context.Context, context.CancelFunc) {
	t := r.Timeout
	if t == 0 {
		t = DefaultCallTimeout
	}
	return context.WithTimeout(context.Background(), t)
}

// Handler builds the router with the RPC websocket at /ws, prometheus at
// /metrics and a liveness check at /healthz.
func Handler(rpcl *HodlRPC) (http.Handler, error) {
	srv := rpc.NewServer()
	if err := srv.RegisterName("HodlRPC", rpcl); err != nil {
		return nil, err
	}

	mux := chi.NewRouter()
	mux.Use(middleware.Recoverer)
	mux.Handle("/ws", websocket.Handler(func(ws *websocket.Conn) {
		logging.Debugf("rpc: connection from %s\n", ws.Request().RemoteAddr)
		srv.ServeCodec(jsonrpc.NewServerCodec(ws))
	}))
	mux.Handle("/metrics", promhttp.Handler())
	mux.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(rpcl.Node.Lifecycle().String()))
	})
	return mux, nil
}

// RPCListen serves on addr until ctx is done.
func RPCListen(ctx context.Context, rpcl *HodlRPC, addr string) error {
	h, err := Handler(rpcl)
	if err != nil {
		return err
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return Serve(ctx, h, lis)
}

// Serve runs h on lis until ctx is done, then shuts down.
func Serve(ctx context.Context, h http.Handler, lis net.Listener) error {
	hs := &http.Server{Handler: h, ReadHeaderTimeout: 10 * time.Second}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		hs.Shutdown(sctx)
	}()

	logging.Infof("rpc: listening on %s\n", lis.Addr())
	err := hs.Serve(lis)
	if errors.Is(err, http.ErrServerClosed) {
		<-done
		return nil
	}
	return err
}

// rpcErr tags err with its class so clients can tell a bad request from a
// broken node.  net/rpc only carries the string.
func rpcErr(err error) error {
	if err == nil {
		return nil
	}
	c := lncore.ClassifyError(err)
	return fmt.Errorf("%s error %d: %w", c, c.StatusCode(), err)
}

// ErrorClassOf reads the class back out of an error a client got.
func ErrorClassOf(err error) lncore.ErrorClass {
	if err == nil {
		return lncore.ServerError
	}
	if strings.HasPrefix(err.Error(), lncore.ClientError.String()+" error") {
		return lncore.ClientError
	}
	return lncore.ServerError
}
