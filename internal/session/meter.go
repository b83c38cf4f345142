package session

import (
	"sync"
	"time"
)

// ewmaAlpha is the smoothing factor for the per-second bitrate estimate.
const ewmaAlpha = 0.3

// bucketInterval is how much traffic is accumulated before the EWMA is
// advanced by one sample.
const bucketInterval = time.Second

// meter tracks throughput for one session. All rates are bits per second.
// Elapsed time comes from the monotonic clock carried by time.Time.
type meter struct {
	mu sync.Mutex

	started time.Time

	bytesTotal int64

	bucketStart time.Time
	bucketBytes int64

	currentBps float64
	peakBps    float64
	primed     bool
}

func newMeter(now time.Time) *meter {
	return &meter{
		started:     now,
		bucketStart: now,
	}
}

// Add records n bytes sent at the given instant. Once a full bucket has
// elapsed, the bucket rate is folded into the EWMA.
func (m *meter) Add(n int64, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.bytesTotal += n
	m.bucketBytes += n

	elapsed := now.Sub(m.bucketStart)
	if elapsed < bucketInterval {
		return
	}

	rate := float64(m.bucketBytes) * 8 / elapsed.Seconds()
	if !m.primed {
		m.currentBps = rate
		m.primed = true
	} else {
		m.currentBps = ewmaAlpha*rate + (1-ewmaAlpha)*m.currentBps
	}
	if m.currentBps > m.peakBps {
		m.peakBps = m.currentBps
	}

	m.bucketStart = now
	m.bucketBytes = 0
}

// BytesTotal returns the total bytes recorded so far.
func (m *meter) BytesTotal() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bytesTotal
}

// Rates returns the current EWMA, average, and peak bitrates.
func (m *meter) Rates(now time.Time) (currentBps, avgBps, peakBps float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elapsed := now.Sub(m.started).Seconds()
	if elapsed > 0 {
		avgBps = float64(m.bytesTotal) * 8 / elapsed
	}
	return m.currentBps, avgBps, m.peakBps
}
