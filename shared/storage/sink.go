package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"seq-aggregator/shared/seqbuffer"
)

// Sink is the append-only durable store the aggregation consumer writes rows to
type Sink interface {
	// Reset (re)creates the result table, dropping rows of any previous run
	Reset(ctx context.Context) error
	// AppendBatch persists one row per item
	AppendBatch(ctx context.Context, items []seqbuffer.SeqData) error
	Close() error
}

// MemorySink keeps rows in memory. Used when no database path is configured.
type MemorySink struct {
	mutex sync.Mutex
	rows  map[int]int64
}

// NewMemorySink creates an empty in-memory sink
func NewMemorySink() *MemorySink {
	return &MemorySink{rows: make(map[int]int64)}
}

// Reset drops every stored row
func (s *MemorySink) Reset(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.rows = make(map[int]int64)
	return nil
}

// AppendBatch stores the batch, failing on a sequence index already present
func (s *MemorySink) AppendBatch(ctx context.Context, items []seqbuffer.SeqData) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, item := range items {
		if _, exists := s.rows[item.Seq]; exists {
			return fmt.Errorf("seq %d already stored", item.Seq)
		}
	}
	for _, item := range items {
		s.rows[item.Seq] = item.Value
	}
	return nil
}

// Rows returns the stored rows ordered by sequence index
func (s *MemorySink) Rows() []seqbuffer.SeqData {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	rows := make([]seqbuffer.SeqData, 0, len(s.rows))
	for seq, value := range s.rows {
		rows = append(rows, seqbuffer.SeqData{Seq: seq, Value: value})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Seq < rows[j].Seq })
	return rows
}

// Close is a no-op
func (s *MemorySink) Close() error {
	return nil
}
