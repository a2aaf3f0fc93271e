package viz

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/norasector/beacon/pkg/beacon"
	"github.com/norasector/beacon/pkg/codec/frame"
	"github.com/norasector/beacon/pkg/radio"
	"github.com/norasector/beacon/pkg/station"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reading(seq uint64, temp1 float32) *station.Reading {
	b := beacon.Test()
	b.Temp1 = temp1
	m := b.Measurements()
	return &station.Reading{
		Sequence:     seq,
		From:         2,
		Received:     time.Unix(1700000000+int64(seq), 0),
		Kind:         radio.KindFrame,
		Frame:        frame.Encode(m),
		Measurements: m,
		Beacon:       b,
	}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHistoryTrims(t *testing.T) {
	h := NewHistory(3)
	for i := 1; i <= 5; i++ {
		h.Append(reading(uint64(i), float32(i)))
	}
	times, values, ok := h.Series("temp1")
	require.True(t, ok)
	assert.Equal(t, []float64{3, 4, 5}, values)
	assert.Len(t, times, 3)
	assert.Equal(t, time.Unix(1700000003, 0), times[0])
	assert.Equal(t, 3, h.Len())

	_, _, ok = h.Series("nope")
	assert.False(t, ok)
}

func TestSummarize(t *testing.T) {
	s := Summarize("temp1", []float64{1, 2, 3, 4})
	assert.Equal(t, 4, s.Count)
	assert.InDelta(t, 2.5, s.Mean, 1e-12)
	assert.InDelta(t, 1.2909944, s.StdDev, 1e-6)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 4.0, s.Max)
	assert.Equal(t, 4.0, s.Latest)

	one := Summarize("temp1", []float64{7})
	assert.Equal(t, 0.0, one.StdDev)

	assert.Equal(t, Stats{Field: "x"}, Summarize("x", nil))
}

func TestServerRoutes(t *testing.T) {
	s := NewServer(0, 10, time.Minute)
	h := s.Handler()

	rec := get(t, h, "/")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/view", rec.Header().Get("Location"))

	assert.Equal(t, http.StatusNoContent, get(t, h, "/latest").Code)
	assert.Equal(t, http.StatusNoContent, get(t, h, "/img/temp1").Code)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/img/bogus").Code)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/stats/bogus").Code)

	s.History().Append(reading(1, 10))
	s.History().Append(reading(2, 20))

	rec = get(t, h, "/latest")
	require.Equal(t, http.StatusOK, rec.Code)
	var latest latestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &latest))
	assert.Equal(t, uint64(2), latest.Sequence)
	assert.Equal(t, "frame", latest.Kind)
	assert.Equal(t, float32(20), latest.Beacon.Temp1)
	assert.Len(t, latest.Frame, 2*frame.Size)

	rec = get(t, h, "/stats/temp1")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.Count)
	assert.Equal(t, 15.0, stats.Mean)

	rec = get(t, h, "/view")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `src="/img/temp1?`)
}

func TestServerImageCache(t *testing.T) {
	s := NewServer(0, 10, time.Minute)
	now := time.Unix(1000, 0)
	s.now = func() time.Time { return now }
	h := s.Handler()

	s.History().Append(reading(1, 10))
	s.History().Append(reading(2, 20))

	rec := get(t, h, "/img/temp1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	first := rec.Body.Bytes()
	assert.True(t, bytes.HasPrefix(first, []byte("\x89PNG")))

	s.History().Append(reading(3, 90))
	assert.Equal(t, first, get(t, h, "/img/temp1").Body.Bytes(), "cached until the interval passes")

	now = now.Add(2 * time.Minute)
	assert.NotEqual(t, first, get(t, h, "/img/temp1").Body.Bytes())
}
