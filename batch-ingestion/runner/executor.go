package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/containerman17/op-batches/batch-ingestion/metrics"
	"github.com/containerman17/op-batches/batch-ingestion/rpc"
	"github.com/containerman17/op-batches/batch-ingestion/storage"
	"github.com/containerman17/op-batches/batching"
)

// BlockSource is the part of the RPC client the executor needs.
type BlockSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
	Blocks(ctx context.Context, from, to uint64) ([]rpc.Block, error)
}

type ExecutorConfig struct {
	Chain   string
	Batches *batching.Store
	Source  BlockSource
	Storage storage.Storage
	Workers int
	Logger  *zap.Logger
}

// Executor ingests the batches of one chain. Batches that already have a
// completion marker are skipped, so rounds can be repeated safely.
type Executor struct {
	chain   string
	batches *batching.Store
	source  BlockSource
	store   storage.Storage
	workers int
	runID   string
	logger  *zap.Logger
	now     func() time.Time
}

// RoundResult summarizes one ingestion round.
type RoundResult struct {
	Head     uint64
	Skipped  int
	Waiting  int
	Ingested int
	// Done is set once every batch of the requested range has been ingested.
	Done bool
}

func NewExecutor(cfg ExecutorConfig) (*Executor, error) {
	if cfg.Batches == nil || !cfg.Batches.Has(cfg.Chain) {
		return nil, fmt.Errorf("%w: %s", batching.ErrUnknownChain, cfg.Chain)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	runID := uuid.NewString()
	return &Executor{
		chain:   cfg.Chain,
		batches: cfg.Batches,
		source:  cfg.Source,
		store:   cfg.Storage,
		workers: cfg.Workers,
		runID:   runID,
		logger:  cfg.Logger.With(zap.String("component", "executor"), zap.String("run_id", runID)),
		now:     time.Now,
	}, nil
}

func (e *Executor) RunID() string {
	return e.runID
}

// Plan is the outcome of splitting a requested range against the chain head.
type Plan struct {
	Pending []batching.BlockBatch
	Skipped int  // already have a completion marker
	Waiting int  // end past the chain head
	Reached bool // the whole requested range is below the chain head
}

// Plan returns the batches of r that are complete at head and not yet ingested.
func (e *Executor) Plan(r batching.BlockRange, head uint64) (Plan, error) {
	tip := head + 1
	end := min(r.Max, tip)
	plan := Plan{Reached: r.Max <= tip}
	if r.Min >= end {
		return plan, nil
	}

	batches, err := e.batches.Split(e.chain, batching.BlockRange{Min: r.Min, Max: end})
	if err != nil {
		return Plan{}, err
	}
	metrics.BatchesPlanned.WithLabelValues(e.chain).Add(float64(len(batches)))

	for _, batch := range batches {
		// The batch at the tip is not finished on chain yet.
		if batch.Max > tip {
			plan.Waiting++
			continue
		}
		_, done, err := e.store.GetMarker(batch)
		if err != nil {
			return Plan{}, err
		}
		if done {
			plan.Skipped++
			continue
		}
		plan.Pending = append(plan.Pending, batch)
	}
	metrics.BatchesSkipped.WithLabelValues(e.chain).Add(float64(plan.Skipped))
	return plan, nil
}

// RunRound ingests every pending batch of r up to the current chain head.
func (e *Executor) RunRound(ctx context.Context, r batching.BlockRange) (RoundResult, error) {
	head, err := e.source.BlockNumber(ctx)
	if err != nil {
		return RoundResult{}, fmt.Errorf("failed to fetch chain head: %w", err)
	}
	metrics.ChainHead.WithLabelValues(e.chain).Set(float64(head))

	plan, err := e.Plan(r, head)
	if err != nil {
		return RoundResult{}, err
	}
	result := RoundResult{Head: head, Skipped: plan.Skipped, Waiting: plan.Waiting}
	if len(plan.Pending) == 0 {
		result.Done = plan.Reached && plan.Waiting == 0
		return result, nil
	}

	e.logger.Info("ingesting batches",
		zap.String("chain", e.chain),
		zap.Stringer("range", r),
		zap.Uint64("head", head),
		zap.Int("pending", len(plan.Pending)),
		zap.Int("skipped", plan.Skipped),
	)

	targets := make(map[string]batching.BlockBatch, len(plan.Pending))
	for _, batch := range plan.Pending {
		targets[batch.Filename()] = batch
	}

	markers, err := RunConcurrently(ctx, e.IngestBatch, targets, e.workers)
	if err != nil {
		return result, err
	}
	result.Ingested = len(markers)
	result.Done = plan.Reached && plan.Waiting == 0
	return result, nil
}

// IngestBatch fetches, compresses and stores one batch, then marks it complete.
func (e *Executor) IngestBatch(ctx context.Context, batch batching.BlockBatch) (storage.Marker, error) {
	start := time.Now()
	log := e.logger.With(batch.LogFields()...)

	blocks, err := e.source.Blocks(ctx, batch.Min, batch.Max)
	if err != nil {
		metrics.BatchesFailed.WithLabelValues(e.chain).Inc()
		log.Error("fetch failed", zap.Error(err))
		return storage.Marker{}, err
	}
	docs := make([][]byte, len(blocks))
	for i, b := range blocks {
		if !batch.Range().Contains(b.Number) || b.Number != batch.Min+uint64(i) {
			metrics.BatchesFailed.WithLabelValues(e.chain).Inc()
			return storage.Marker{}, fmt.Errorf("batch %s: unexpected block %d at position %d", batch, b.Number, i)
		}
		docs[i] = b.Raw
	}
	metrics.BlocksTotal.WithLabelValues(e.chain).Add(float64(len(blocks)))

	data, err := storage.EncodeBatch(batch, docs)
	if err != nil {
		metrics.BatchesFailed.WithLabelValues(e.chain).Inc()
		log.Error("encode failed", zap.Error(err))
		return storage.Marker{}, err
	}

	dt := batching.DateFromTimestamp(blocks[0].Timestamp)
	marker := storage.Marker{
		Chain:     batch.Chain,
		Min:       batch.Min,
		Max:       batch.Max,
		Dt:        dt,
		DataPath:  storage.DataPath(batch, dt),
		NumBlocks: batch.NumBlocks(),
		RunID:     e.runID,
		WrittenAt: e.now().UTC(),
	}
	if err := e.store.SaveBatch(marker, data); err != nil {
		metrics.BatchesFailed.WithLabelValues(e.chain).Inc()
		log.Error("save failed", zap.Error(err))
		return storage.Marker{}, fmt.Errorf("batch %s: %w", batch, err)
	}

	metrics.BatchesIngested.WithLabelValues(e.chain).Inc()
	if latest, ok, err := e.store.LatestMarker(e.chain); err == nil && ok {
		metrics.LastCompletedBlock.WithLabelValues(e.chain).Set(float64(latest.Max))
	}

	log.Info("batch ingested",
		zap.String("dt", dt),
		zap.String("path", marker.DataPath),
		zap.Int("bytes", len(data)),
		zap.Duration("took", time.Since(start)),
	)
	return marker, nil
}

// Run repeats ingestion rounds. Without follow it returns after the first round;
// with follow it polls the chain head every interval until ctx is done.
func (e *Executor) Run(ctx context.Context, r batching.BlockRange, follow bool, interval time.Duration) error {
	for {
		res, err := e.RunRound(ctx, r)
		if err != nil {
			if !follow || ctx.Err() != nil {
				return err
			}
			e.logger.Error("ingestion round failed", zap.Error(err))
		} else {
			e.logger.Info("ingestion round done",
				zap.Uint64("head", res.Head),
				zap.Int("skipped", res.Skipped),
				zap.Int("waiting", res.Waiting),
				zap.Int("ingested", res.Ingested),
			)
			if res.Done {
				return nil
			}
		}

		if !follow {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}
