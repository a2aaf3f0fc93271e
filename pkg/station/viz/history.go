package viz

import (
	"sync"
	"time"

	"github.com/norasector/beacon/pkg/beacon"
	"github.com/norasector/beacon/pkg/station"
)

// History keeps the last size values of every beacon field.
type History struct {
	mu     sync.RWMutex
	size   int
	times  []time.Time
	values map[string][]float64
	latest *station.Reading
}

func NewHistory(size int) *History {
	return &History{
		size:   size,
		values: make(map[string][]float64),
	}
}

func (h *History) Append(r *station.Reading) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.latest = r
	h.times = append(h.times, r.Received)
	if len(h.times) > h.size {
		h.times = h.times[len(h.times)-h.size:]
	}
	for _, f := range r.Fields() {
		buf := append(h.values[f.Name], f.Value)
		if len(buf) > h.size {
			buf = buf[len(buf)-h.size:]
		}
		h.values[f.Name] = buf
	}
}

// Series returns copies of the times and values recorded for field.
func (h *History) Series(field string) ([]time.Time, []float64, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	values, ok := h.values[field]
	if !ok {
		return nil, nil, false
	}
	times := make([]time.Time, len(values))
	copy(times, h.times[len(h.times)-len(values):])
	out := make([]float64, len(values))
	copy(out, values)
	return times, out, true
}

func (h *History) Latest() (*station.Reading, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest, h.latest != nil
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.times)
}

// Known reports whether name is a beacon field.
func Known(name string) bool {
	_, ok := beacon.SlotForField(name)
	return ok
}
