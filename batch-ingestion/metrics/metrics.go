package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	// BatchesPlanned counts batches produced by the splitter per chain
	BatchesPlanned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestion_batches_planned_total",
			Help: "Total number of batches planned",
		},
		[]string{"chain"},
	)

	// BatchesIngested counts batches written with a completion marker
	BatchesIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestion_batches_ingested_total",
			Help: "Total number of batches ingested",
		},
		[]string{"chain"},
	)

	// BatchesSkipped counts batches skipped because a marker already exists
	BatchesSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestion_batches_skipped_total",
			Help: "Total number of batches skipped as already complete",
		},
		[]string{"chain"},
	)

	// BatchesFailed counts batches that could not be ingested
	BatchesFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestion_batches_failed_total",
			Help: "Total number of batches that failed",
		},
		[]string{"chain"},
	)

	// BlocksTotal counts blocks fetched per chain
	BlocksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestion_blocks_total",
			Help: "Total number of blocks fetched",
		},
		[]string{"chain"},
	)

	// LastCompletedBlock is the exclusive end of the highest completed batch
	LastCompletedBlock = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ingestion_last_completed_block",
			Help: "Exclusive end of the highest completed batch",
		},
		[]string{"chain"},
	)

	// ChainHead shows the latest block number on the chain
	ChainHead = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ingestion_chain_head",
			Help: "Latest block number on the chain",
		},
		[]string{"chain"},
	)

	// RPCRequestsTotal counts RPC HTTP requests per chain and status
	RPCRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestion_rpc_requests_total",
			Help: "Total RPC HTTP requests",
		},
		[]string{"chain", "status"},
	)
)

func init() {
	prometheus.MustRegister(BatchesPlanned)
	prometheus.MustRegister(BatchesIngested)
	prometheus.MustRegister(BatchesSkipped)
	prometheus.MustRegister(BatchesFailed)
	prometheus.MustRegister(BlocksTotal)
	prometheus.MustRegister(LastCompletedBlock)
	prometheus.MustRegister(ChainHead)
	prometheus.MustRegister(RPCRequestsTotal)
}

// InitChain initializes all metrics for a chain with zero values
// This ensures metrics appear in Prometheus even before any events
func InitChain(chain string) {
	BatchesPlanned.WithLabelValues(chain).Add(0)
	BatchesIngested.WithLabelValues(chain).Add(0)
	BatchesSkipped.WithLabelValues(chain).Add(0)
	BatchesFailed.WithLabelValues(chain).Add(0)
	BlocksTotal.WithLabelValues(chain).Add(0)
	LastCompletedBlock.WithLabelValues(chain).Set(0)
	ChainHead.WithLabelValues(chain).Set(0)
	RPCRequestsTotal.WithLabelValues(chain, "success").Add(0)
	RPCRequestsTotal.WithLabelValues(chain, "error").Add(0)
}

// StartServer starts the metrics HTTP server on the given address
func StartServer(addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		logger.Info("metrics listening", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()
}
