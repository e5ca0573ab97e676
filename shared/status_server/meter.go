package status_server

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"seq-aggregator/shared/middleware"
)

const meterComponent = "Throughput Meter"

// DefaultSampleInterval is how often the byte counter is sampled and reset
const DefaultSampleInterval = 600 * time.Millisecond

// Sample is one throughput reading: wall clock time and bytes read since the
// previous sample
type Sample struct {
	X string `json:"x"`
	Y string `json:"y"`
}

// Meter counts bytes read from workers and turns the count into periodic samples
type Meter struct {
	bytes atomic.Int64

	mutex       sync.RWMutex
	last        Sample
	subscribers []func(Sample)
}

// NewMeter creates a meter whose last sample reads zero
func NewMeter() *Meter {
	return &Meter{last: Sample{X: time.Now().Format("15:04:05"), Y: "0"}}
}

// Add records n bytes read
func (m *Meter) Add(n int64) {
	m.bytes.Add(n)
}

// Subscribe registers fn to receive every new sample. Call before Run.
func (m *Meter) Subscribe(fn func(Sample)) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.subscribers = append(m.subscribers, fn)
}

// Last returns the most recent sample
func (m *Meter) Last() Sample {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.last
}

// Run samples the counter every interval until ctx is cancelled
func (m *Meter) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			m.sample(now)
		}
	}
}

func (m *Meter) sample(now time.Time) Sample {
	count := m.bytes.Swap(0)
	sample := Sample{X: now.Format("15:04:05"), Y: strconv.FormatInt(count, 10)}

	m.mutex.Lock()
	m.last = sample
	subscribers := append(([]func(Sample))(nil), m.subscribers...)
	m.mutex.Unlock()

	if count > 0 {
		middleware.LogDebug(meterComponent, "speed: %d B/sample", count)
	}
	for _, fn := range subscribers {
		fn(sample)
	}
	return sample
}
