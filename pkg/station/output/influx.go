package output

import (
	"context"
	"strconv"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/norasector/beacon/pkg/station"
)

// InfluxOutput writes every reading as a point carrying all beacon fields.
type InfluxOutput struct {
	writeAPI api.WriteAPI
	recvChan chan *station.Reading
}

func NewInfluxOutput(writeAPI api.WriteAPI) *InfluxOutput {
	return &InfluxOutput{
		writeAPI: writeAPI,
		recvChan: make(chan *station.Reading, receiveChannels),
	}
}

func (o *InfluxOutput) Receive() chan<- *station.Reading {
	return o.recvChan
}

func (o *InfluxOutput) Start(ctx context.Context) error {
	defer o.writeAPI.Flush()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r := <-o.recvChan:
			fields := make(map[string]interface{}, len(r.Fields()))
			for _, f := range r.Fields() {
				fields[f.Name] = f.Value
			}
			o.writeAPI.WritePoint(influxdb2.NewPoint("beacon.reading",
				map[string]string{
					"from": strconv.Itoa(int(r.From)),
				},
				fields, r.Received))
		}
	}
}
