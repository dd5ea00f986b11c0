package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/ava-labs/libevm/common/hexutil"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/containerman17/op-batches/batch-ingestion/consts"
	"github.com/containerman17/op-batches/batch-ingestion/metrics"
)

type Config struct {
	URL           string
	Chain         string // metrics label
	BatchSize     int
	MaxRetries    int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	Timeout       time.Duration
	Logger        *zap.Logger
}

// Client is a JSON-RPC session that retries transport errors, 429s and 5xx
// responses with exponential backoff.
type Client struct {
	http      *resty.Client
	url       string
	chain     string
	batchSize int
	logger    *zap.Logger
}

func NewClient(cfg Config) *Client {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = consts.FetcherBatchSize
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = consts.FetcherMaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = consts.FetcherRetryDelay
	}
	if cfg.MaxRetryDelay <= 0 {
		cfg.MaxRetryDelay = consts.FetcherMaxRetryDelay
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = consts.FetcherHTTPTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	logger := cfg.Logger.With(zap.String("component", "rpc"), zap.String("chain", cfg.Chain))

	httpClient := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(cfg.RetryDelay).
		SetRetryMaxWaitTime(cfg.MaxRetryDelay).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			code := resp.StatusCode()
			return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
		}).
		AddRetryHook(func(resp *resty.Response, err error) {
			metrics.RPCRequestsTotal.WithLabelValues(cfg.Chain, "error").Inc()
			if err != nil {
				logger.Warn("rpc request failed, retrying", zap.Error(err))
				return
			}
			logger.Warn("rpc request failed, retrying", zap.Int("status", resp.StatusCode()))
		})

	return &Client{
		http:      httpClient,
		url:       cfg.URL,
		chain:     cfg.Chain,
		batchSize: cfg.BatchSize,
		logger:    logger,
	}
}

func (c *Client) post(ctx context.Context, body any) ([]byte, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post(c.url)
	if err != nil {
		metrics.RPCRequestsTotal.WithLabelValues(c.chain, "error").Inc()
		return nil, fmt.Errorf("rpc request failed: %w", err)
	}
	if resp.IsError() {
		metrics.RPCRequestsTotal.WithLabelValues(c.chain, "error").Inc()
		return nil, fmt.Errorf("rpc request failed: HTTP %d", resp.StatusCode())
	}
	metrics.RPCRequestsTotal.WithLabelValues(c.chain, "success").Inc()
	return resp.Body(), nil
}

func (c *Client) call(ctx context.Context, method string, params []interface{}, result any) error {
	body, err := c.post(ctx, JSONRPCRequest{Jsonrpc: "2.0", Method: method, Params: params, ID: 1})
	if err != nil {
		return err
	}

	var rpcResp JSONRPCResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("RPC error: %s", rpcResp.Error.Message)
	}
	if err := json.Unmarshal(rpcResp.Result, result); err != nil {
		return fmt.Errorf("failed to unmarshal %s result: %w", method, err)
	}
	return nil
}

// BlockNumber returns the chain head.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var head hexutil.Uint64
	if err := c.call(ctx, "eth_blockNumber", []interface{}{}, &head); err != nil {
		return 0, err
	}
	return uint64(head), nil
}

// ChainID returns the EVM chain id.
func (c *Client) ChainID(ctx context.Context) (uint64, error) {
	var id hexutil.Uint64
	if err := c.call(ctx, "eth_chainId", []interface{}{}, &id); err != nil {
		return 0, err
	}
	return uint64(id), nil
}

func (c *Client) batchCall(ctx context.Context, requests []JSONRPCRequest) ([]JSONRPCResponse, error) {
	if len(requests) == 0 {
		return []JSONRPCResponse{}, nil
	}

	body, err := c.post(ctx, requests)
	if err != nil {
		return nil, err
	}

	var responses []JSONRPCResponse
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&responses); err != nil {
		return nil, fmt.Errorf("failed to unmarshal batch response: %w", err)
	}
	if len(responses) != len(requests) {
		return nil, fmt.Errorf("batch response count mismatch: sent %d, got %d", len(requests), len(responses))
	}

	sort.Slice(responses, func(i, j int) bool {
		return responses[i].ID < responses[j].ID
	})

	for i, resp := range responses {
		if resp.ID != requests[i].ID {
			return nil, fmt.Errorf("batch response ID mismatch at index %d: expected %d, got %d", i, requests[i].ID, resp.ID)
		}
		if resp.Error != nil {
			return nil, fmt.Errorf("RPC error in batch at index %d (ID %d): %s", i, resp.ID, resp.Error.Message)
		}
		if len(resp.Result) == 0 || string(resp.Result) == "null" {
			return nil, fmt.Errorf("empty result in batch response at index %d (ID %d)", i, resp.ID)
		}
	}
	return responses, nil
}

// Blocks fetches every block in [from, to) with full transactions, in order.
func (c *Client) Blocks(ctx context.Context, from, to uint64) ([]Block, error) {
	if to < from {
		return nil, fmt.Errorf("invalid block span %d-%d", from, to)
	}

	blocks := make([]Block, 0, to-from)
	for start := from; start < to; start += uint64(c.batchSize) {
		end := min(start+uint64(c.batchSize), to)

		requests := make([]JSONRPCRequest, 0, end-start)
		for n := start; n < end; n++ {
			requests = append(requests, JSONRPCRequest{
				Jsonrpc: "2.0",
				Method:  "eth_getBlockByNumber",
				Params:  []interface{}{hexutil.EncodeUint64(n), true},
				ID:      int(n - start),
			})
		}

		responses, err := c.batchCall(ctx, requests)
		if err != nil {
			return nil, fmt.Errorf("blocks %d-%d: %w", start, end, err)
		}

		for _, resp := range responses {
			var hdr blockHeader
			if err := json.Unmarshal(resp.Result, &hdr); err != nil {
				return nil, fmt.Errorf("failed to unmarshal block at index %d: %w", resp.ID, err)
			}
			if hdr.Number == nil || hdr.Timestamp == nil {
				return nil, fmt.Errorf("block at index %d is missing number or timestamp", resp.ID)
			}
			want := start + uint64(resp.ID)
			if uint64(*hdr.Number) != want {
				return nil, fmt.Errorf("block number mismatch: expected %d, got %d", want, uint64(*hdr.Number))
			}
			// Stored as one JSONL line, whatever formatting the node used.
			var raw bytes.Buffer
			if err := json.Compact(&raw, resp.Result); err != nil {
				return nil, fmt.Errorf("failed to compact block %d: %w", want, err)
			}
			blocks = append(blocks, Block{
				Number:    uint64(*hdr.Number),
				Timestamp: uint64(*hdr.Timestamp),
				Raw:       raw.Bytes(),
			})
		}
	}
	return blocks, nil
}
