// Package consts contains all tunable constants in one place
package consts

import "time"

// =============================================================================
// RPC - Batch sizes, timeouts and retries
// =============================================================================

const (
	// FetcherBatchSize is the number of eth_getBlockByNumber calls per JSON-RPC batch
	FetcherBatchSize = 50

	// FetcherMaxRetries for failed RPC calls
	FetcherMaxRetries = 20

	// FetcherRetryDelay base delay between retries (exponential backoff)
	FetcherRetryDelay = 500 * time.Millisecond

	// FetcherMaxRetryDelay caps the backoff
	FetcherMaxRetryDelay = 10 * time.Second

	// FetcherHTTPTimeout for RPC requests
	FetcherHTTPTimeout = 30 * time.Second
)

// =============================================================================
// Runner - Batch execution
// =============================================================================

const (
	// RunnerDefaultWorkers when WORKERS is not set
	RunnerDefaultWorkers = 4

	// RunnerSerialWorkers selects serial execution, useful when debugging
	RunnerSerialWorkers = -1

	// FollowPollInterval between ingestion rounds when following the chain head
	FollowPollInterval = 30 * time.Second
)

// =============================================================================
// Server - HTTP API and WebSocket streaming
// =============================================================================

const (
	// ServerListenAddr is the HTTP/WebSocket server address
	ServerListenAddr = ":9090"

	// MetricsListenAddr is the Prometheus metrics server address
	MetricsListenAddr = ":9091"

	// ServerTipPollInterval when waiting for the next batch to be ingested
	ServerTipPollInterval = 500 * time.Millisecond

	// ServerMaxPlanBatches caps the batches returned by one plan request
	ServerMaxPlanBatches = 10000
)
