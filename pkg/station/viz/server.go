// Package viz serves the ground station's live view: the latest beacon,
// per-field plots and statistics.
package viz

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/norasector/beacon/pkg/beacon"
	"github.com/norasector/beacon/pkg/station"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const receiveChannels = 8

type imageContainer struct {
	data     []byte
	rendered time.Time
}

type Server struct {
	history        *History
	recvChan       chan *station.Reading
	srv            *http.Server
	updateInterval time.Duration

	mu     sync.Mutex
	images map[string]*imageContainer
	now    func() time.Time
}

func NewServer(port int, historySize int, updateInterval time.Duration) *Server {
	s := &Server{
		history:        NewHistory(historySize),
		recvChan:       make(chan *station.Reading, receiveChannels),
		updateInterval: updateInterval,
		images:         make(map[string]*imageContainer),
		now:            time.Now,
	}
	s.srv = &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: s.Handler()}
	return s
}

func (s *Server) Receive() chan<- *station.Reading {
	return s.recvChan
}

func (s *Server) History() *History { return s.history }

func (s *Server) Start(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case r := <-s.recvChan:
				s.history.Append(r)
			}
		}
	})

	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	})

	eg.Go(func() error {
		log.Info().Str("addr", s.srv.Addr).Msg("viewer starting")
		err := s.srv.ListenAndServe()
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	})

	return eg.Wait()
}

func (s *Server) Handler() http.Handler {
	handler := httprouter.New()

	handler.GET("/", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Location", "/view")
		w.WriteHeader(http.StatusFound)
	})

	handler.GET("/view", s.handleView)
	handler.GET("/latest", s.handleLatest)
	handler.GET("/img/:field", s.handleImage)
	handler.GET("/stats/:field", s.handleStats)

	return handler
}

func fieldNames() []string {
	names := make([]string, 0, len(beacon.FieldNames))
	for _, name := range beacon.FieldNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	names := fieldNames()

	w.Header().Add("Content-Type", "text/html")
	fmt.Fprint(w, `<html><head><title>Beacon</title></head>`)
	fmt.Fprintf(w, `
		<script type="text/javascript">
			window.onload = function() {
				for (var i = 0; i < %d; i++) {
					var img = document.getElementById('graph-' + i);
					setInterval(function(image) {
						image.src = image.src.split("?")[0] + "?" + new Date().getTime();
					}, %d, img);
				}
			}
		</script>`, len(names), s.updateInterval.Milliseconds())
	fmt.Fprint(w, `<body style='background-color: black'>`)
	fmt.Fprint(w, `<div style="display: flex; flex-direction: row; flex-wrap: wrap">`)
	for idx, name := range names {
		fmt.Fprintf(w, `<div><img id="graph-%d" src="/img/%s?%d" /></div>`, idx, name, time.Now().UnixMicro())
	}
	fmt.Fprint(w, `</div></body></html>`)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("error writing response")
	}
}

type latestResponse struct {
	Sequence uint64        `json:"sequence"`
	From     uint8         `json:"from"`
	Received time.Time     `json:"received"`
	Kind     string        `json:"kind"`
	Frame    string        `json:"frame"`
	Beacon   beacon.Beacon `json:"beacon"`
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	latest, ok := s.history.Latest()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, latestResponse{
		Sequence: latest.Sequence,
		From:     latest.From,
		Received: latest.Received,
		Kind:     latest.Kind.String(),
		Frame:    latest.Frame.String(),
		Beacon:   latest.Beacon,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	field := params.ByName("field")
	if !Known(field) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	_, values, _ := s.history.Series(field)
	writeJSON(w, Summarize(field, values))
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	field := params.ByName("field")
	if !Known(field) {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	img, err := s.image(field)
	if err != nil {
		log.Warn().Err(err).Str("field", field).Msg("error rendering plot")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if img == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Add("Content-Type", "image/png")
	w.Write(img.data)
}

// image returns the cached plot for field, rendering it again once it is
// older than the update interval.
func (s *Server) image(field string) (*imageContainer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if img, ok := s.images[field]; ok && now.Sub(img.rendered) < s.updateInterval {
		return img, nil
	}

	times, values, _ := s.history.Series(field)
	if len(values) == 0 {
		return nil, nil
	}
	xs := make([]float64, len(times))
	for i, t := range times {
		xs[i] = t.Sub(times[0]).Seconds()
	}

	data, err := PlotSeries(field, xs, values)
	if err != nil {
		return nil, err
	}
	img := &imageContainer{data: data, rendered: now}
	s.images[field] = img
	return img, nil
}
