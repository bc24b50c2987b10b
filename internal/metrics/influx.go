package metrics

import (
	"net/url"
	"time"

	influx "github.com/influxdata/influxdb1-client"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// InfluxConfig carries the connection details for an optional secondary
// telemetry backend, grounded on kuberhealthy-kuberhealthy's pkg/metrics InfluxConfig/
// InfluxClientInput pair (cmd/kuberhealthy/influx.go).
type InfluxConfig struct {
	URL      url.URL
	Username string
	Password string
	Database string
}

// InfluxSink pushes every recorded Measurement as a point to InfluxDB. It is
// meant to be wrapped alongside PrometheusSink via MultiSink rather than
// used alone, giving operators who already run Influx for other cluster
// telemetry a second destination without reconfiguring Prometheus.
type InfluxSink struct {
	client *influx.Client
	db     string
}

// NewInfluxSink dials an InfluxDB server described by cfg.
func NewInfluxSink(cfg InfluxConfig) (*InfluxSink, error) {
	client, err := influx.NewClient(influx.Config{
		URL:      cfg.URL,
		Username: cfg.Username,
		Password: cfg.Password,
	})
	if err != nil {
		return nil, errors.Wrap(err, "influx.NewClient")
	}
	return &InfluxSink{client: client, db: cfg.Database}, nil
}

// Record writes a single measurement point tagged with the check identity.
func (s *InfluxSink) Record(m Measurement) {
	point := influx.Point{
		Measurement: m.Name,
		Tags: map[string]string{
			"name":      m.Check,
			"namespace": m.Namespace,
			"status":    m.Labels["status"],
			"escalated": m.Labels["escalated"],
		},
		Fields: map[string]interface{}{
			"value": m.Value,
		},
		Time:      time.Now(),
		Precision: "s",
	}
	batch := influx.BatchPoints{
		Database: s.db,
		Points:   []influx.Point{point},
	}
	if _, err := s.client.Write(batch); err != nil {
		log.WithError(err).Debug("failed to write influx point")
	}
}

// MultiSink fans a single Measurement out to every configured Sink,
// tolerating individual backend failures (Record has no error return; each
// Sink implementation is responsible for logging and swallowing its own
// transport errors, as PrometheusSink and InfluxSink both do).
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink combines sinks into one.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) Record(measurement Measurement) {
	for _, s := range m.sinks {
		s.Record(measurement)
	}
}
