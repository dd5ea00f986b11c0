package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/containerman17/op-batches/batch-ingestion/consts"
	"github.com/containerman17/op-batches/batch-ingestion/storage"
	"github.com/containerman17/op-batches/batching"
)

type Server struct {
	httpServer *http.Server
	batches    *batching.Store
	store      storage.Storage
	chain      string // chain being ingested by this process
	logger     *zap.Logger
	ctx        context.Context
	cancel     context.CancelFunc
	streams    sync.WaitGroup
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// BatchInfo is the JSON view of a planned batch.
type BatchInfo struct {
	Chain       string `json:"chain"`
	Min         uint64 `json:"min"`
	Max         uint64 `json:"max"`
	Filename    string `json:"filename"`
	ParquetPath string `json:"parquetPath,omitempty"`
	MarkerPath  string `json:"markerPath"`
	Filter      string `json:"filter"`
}

func NewServer(batches *batching.Store, store storage.Storage, chain string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		batches: batches,
		store:   store,
		chain:   chain,
		logger:  logger.With(zap.String("component", "api")),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Handler returns the HTTP routes of the server
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /info", s.handleInfo)
	mux.HandleFunc("GET /chains", s.handleChains)
	mux.HandleFunc("GET /policy", s.handlePolicy)
	mux.HandleFunc("GET /chains/{chain}/delimiters", s.handleDelimiters)
	mux.HandleFunc("GET /chains/{chain}/batches", s.handleBatches)
	mux.HandleFunc("GET /chains/{chain}/markers", s.handleMarkers)
	mux.HandleFunc("GET /ws", s.handleWS)
	return mux
}

func (s *Server) Start(addr string) (string, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.httpServer = &http.Server{Handler: s.Handler()}
	go func() {
		if err := s.httpServer.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	actual := listener.Addr().String()
	s.logger.Info("listening", zap.String("addr", actual))
	return actual, nil
}

// Stop shuts the server down and waits for open streams to finish
func (s *Server) Stop() {
	s.cancel()
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(ctx)
	}
	s.streams.Wait()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, batching.ErrUnknownChain):
		return http.StatusNotFound
	case errors.Is(err, batching.ErrInvalidRange), errors.Is(err, batching.ErrTooManyBatches):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// handleInfo returns the ingested chain and its progress
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info := map[string]any{"chain": s.chain}
	latest, ok, err := s.store.LatestMarker(s.chain)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if ok {
		info["lastCompletedBlock"] = latest.Max
		info["lastMarkerPath"] = latest.Batch().MarkerPath()
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleChains(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.batches.Chains())
}

// handlePolicy returns the delimiters of every configured chain
func (s *Server) handlePolicy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.batches.Configuration())
}

func (s *Server) handleDelimiters(w http.ResponseWriter, r *http.Request) {
	delims, err := s.batches.Delimiters(r.PathValue("chain"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, delims)
}

// handleBatches returns the batches covering ?min=&max=. With ?dt= the parquet
// object path of each batch is included.
func (s *Server) handleBatches(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	min, err := strconv.ParseUint(q.Get("min"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid min parameter: %w", err))
		return
	}
	max, err := strconv.ParseUint(q.Get("max"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid max parameter: %w", err))
		return
	}
	br, err := batching.NewBlockRange(min, max)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	column := q.Get("column")
	if column == "" {
		column = batching.DefaultNumberColumn
	}
	dt := q.Get("dt")

	batches, err := s.batches.SplitN(r.PathValue("chain"), br, consts.ServerMaxPlanBatches)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	out := make([]BatchInfo, 0, len(batches))
	for _, b := range batches {
		info := BatchInfo{
			Chain:      b.Chain,
			Min:        b.Min,
			Max:        b.Max,
			Filename:   b.Filename(),
			MarkerPath: b.MarkerPath(),
			Filter:     b.Filter(column),
		}
		if dt != "" {
			info.ParquetPath = b.ParquetPath(dt)
		}
		out = append(out, info)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMarkers(w http.ResponseWriter, r *http.Request) {
	chain := r.PathValue("chain")
	if !s.batches.Has(chain) {
		writeError(w, http.StatusNotFound, fmt.Errorf("%w: %s", batching.ErrUnknownChain, chain))
		return
	}
	markers, err := s.store.Markers(chain)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, markers)
}

// handleWS upgrades to WebSocket and streams stored batches
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	chain := r.URL.Query().Get("chain")
	if chain == "" {
		chain = s.chain
	}
	if !s.batches.Has(chain) {
		http.Error(w, "unknown chain", http.StatusNotFound)
		return
	}

	fromBlock := uint64(0)
	if fromStr := r.URL.Query().Get("from"); fromStr != "" {
		var err error
		fromBlock, err = strconv.ParseUint(fromStr, 10, 64)
		if err != nil {
			http.Error(w, "invalid from parameter", http.StatusBadRequest)
			return
		}
	}

	s.streams.Add(1)
	defer s.streams.Done()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	s.logger.Info("client connected", zap.String("chain", chain), zap.Uint64("from", fromBlock))

	if err := s.streamBatches(r.Context(), conn, chain, fromBlock); err != nil {
		s.logger.Info("client stream ended", zap.Error(err))
	}
}

// streamBatches sends one binary frame per stored batch, starting with the batch
// that contains fromBlock. Frames are the stored zstd(JSONL) payloads as-is.
func (s *Server) streamBatches(ctx context.Context, conn *websocket.Conn, chain string, fromBlock uint64) error {
	current := fromBlock

	for {
		select {
		case <-s.ctx.Done():
			return s.ctx.Err()
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		batch, err := s.batches.BatchFor(chain, current)
		if err != nil {
			return err
		}

		marker, found, err := s.store.GetMarker(batch)
		if err != nil {
			return err
		}
		if !found {
			// Not ingested yet, wait
			select {
			case <-s.ctx.Done():
				return s.ctx.Err()
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(consts.ServerTipPollInterval):
			}
			continue
		}

		data, err := s.store.GetBatchData(marker.DataPath)
		if err != nil {
			return fmt.Errorf("batch %s: %w", batch, err)
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
			return err
		}
		current = batch.Max
	}
}
