package storage

import (
	"bufio"
	"bytes"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/containerman17/op-batches/batching"
)

// EncodeBatch compresses the block documents of batch into JSONL+zstd, one line
// per block in block order. Every block of the batch must be present.
func EncodeBatch(batch batching.BlockBatch, blocks [][]byte) ([]byte, error) {
	if uint64(len(blocks)) != batch.NumBlocks() {
		return nil, fmt.Errorf("batch %s: expected %d block documents, got %d", batch, batch.NumBlocks(), len(blocks))
	}

	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd writer: %w", err)
	}

	for i, block := range blocks {
		if bytes.IndexByte(block, '\n') >= 0 {
			zw.Close()
			return nil, fmt.Errorf("batch %s: document of block %d contains a newline", batch, batch.Min+uint64(i))
		}
		if _, err := zw.Write(block); err != nil {
			zw.Close()
			return nil, fmt.Errorf("failed to write block: %w", err)
		}
		if _, err := zw.Write([]byte{'\n'}); err != nil {
			zw.Close()
			return nil, fmt.Errorf("failed to write newline: %w", err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close zstd writer: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeBatch decompresses a payload written by EncodeBatch for batch. A payload
// that does not hold exactly one document per block is rejected.
func DecodeBatch(batch batching.BlockBatch, data []byte) ([][]byte, error) {
	zr, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd reader: %w", err)
	}
	defer zr.Close()

	blocks := make([][]byte, 0, batch.NumBlocks())
	scanner := bufio.NewScanner(zr)
	scanner.Buffer(make([]byte, 1024*1024), 64*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		block := make([]byte, len(line))
		copy(block, line)
		blocks = append(blocks, block)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan JSONL: %w", err)
	}
	if uint64(len(blocks)) != batch.NumBlocks() {
		return nil, fmt.Errorf("batch %s: payload holds %d documents, expected %d", batch, len(blocks), batch.NumBlocks())
	}
	return blocks, nil
}
