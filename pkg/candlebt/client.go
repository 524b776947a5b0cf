// Package candlebt is the Go SDK for the candlebt backtest server.
package candlebt

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls the BacktestService over gRPC.
type Client struct {
	conn   grpc.ClientConnInterface
	closer func() error
}

// Dial creates a client for the server at addr (host:port) over an
// insecure connection.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	return &Client{conn: conn, closer: conn.Close}, nil
}

// NewClient wraps an existing connection. Close does not close conn.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Close releases the connection opened by Dial.
func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}

// ListStrategies returns the strategies the server can run.
func (c *Client) ListStrategies(ctx context.Context) ([]StrategyInfo, error) {
	var out StrategyList
	if err := c.call(ctx, MethodListStrategies, struct{}{}, &out); err != nil {
		return nil, err
	}
	return out.Strategies, nil
}

// RunBacktest runs one backtest on the server.
func (c *Client) RunBacktest(ctx context.Context, req RunRequest) (*RunResult, error) {
	var out RunResult
	if err := c.call(ctx, MethodRunBacktest, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RunBatch runs req for every symbol in symbols.
func (c *Client) RunBatch(ctx context.Context, req RunRequest, symbols []string) ([]RunResult, error) {
	var out BatchResult
	if err := c.call(ctx, MethodRunBatch, BatchRequest{RunRequest: req, Symbols: symbols}, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// ClearCache empties the server's fetch cache and returns how many entries
// were dropped.
func (c *Client) ClearCache(ctx context.Context) (int64, error) {
	var out ClearCacheResult
	if err := c.call(ctx, MethodClearCache, struct{}{}, &out); err != nil {
		return 0, err
	}
	return out.Removed, nil
}

func (c *Client) call(ctx context.Context, method string, in, out any) error {
	req, err := Encode(in)
	if err != nil {
		return err
	}
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, FullMethod(method), req, resp); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	return Decode(resp, out)
}
