package util

import (
	"sync"

	"github.com/influxdata/influxdb-client-go/api/write"
)

// MockWriteAPI discards everything. It stands in when no InfluxDB is
// configured.
type MockWriteAPI struct{}

func (m *MockWriteAPI) WriteRecord(line string) {}

func (m *MockWriteAPI) WritePoint(point *write.Point) {}

func (m *MockWriteAPI) Flush() {}

func (m *MockWriteAPI) Close() {}

func (m *MockWriteAPI) Errors() <-chan error { return nil }

// RecordingWriteAPI keeps every point written to it.
type RecordingWriteAPI struct {
	mu      sync.Mutex
	points  []*write.Point
	records []string
	flushes int
	closes  int
}

func (r *RecordingWriteAPI) WriteRecord(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, line)
}

func (r *RecordingWriteAPI) WritePoint(point *write.Point) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.points = append(r.points, point)
}

func (r *RecordingWriteAPI) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushes++
}

func (r *RecordingWriteAPI) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closes++
}

func (r *RecordingWriteAPI) Errors() <-chan error { return nil }

func (r *RecordingWriteAPI) Flushes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushes
}

func (r *RecordingWriteAPI) Closes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closes
}

// Points returns the points written under name, or all points if name is
// empty.
func (r *RecordingWriteAPI) Points(name string) []*write.Point {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*write.Point
	for _, p := range r.points {
		if name == "" || p.Name() == name {
			out = append(out, p)
		}
	}
	return out
}

// Field returns the value of field key on p, or nil.
func Field(p *write.Point, key string) interface{} {
	for _, f := range p.FieldList() {
		if f.Key == key {
			return f.Value
		}
	}
	return nil
}

// Tag returns the value of tag key on p.
func Tag(p *write.Point, key string) string {
	for _, t := range p.TagList() {
		if t.Key == key {
			return t.Value
		}
	}
	return ""
}
