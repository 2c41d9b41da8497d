// Package promserver exposes the metrics registry as a Prometheus
// scrape endpoint. Rendering is decoupled from acquisition: a scrape
// reads whatever snapshot the scheduler last published and never
// triggers a device poll of its own.
package promserver

import (
	"context"
	"math"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/wemokit/wemoscrape/pkg/metrics"
)

func NewServer(ctx context.Context, registry *metrics.Registry, opts ...Option) *Server {
	s := &Server{
		ctx:       ctx,
		registry:  registry,
		promReg:   prometheus.NewRegistry(),
		namespace: DefaultNamespace,
		subsystem: DefaultSubsystem,
	}
	for _, o := range opts {
		o(s)
	}
	s.initDescs()
	s.Handler = promhttp.HandlerFor(s.promReg, promhttp.HandlerOpts{})
	s.promReg.MustRegister(s)
	return s
}

// Server adapts the registry snapshot to the Prometheus collector
// interface and serves it over HTTP.
type Server struct {
	ctx      context.Context
	registry *metrics.Registry
	promReg  *prometheus.Registry
	http.Handler
	namespace string
	subsystem string

	descs             map[string]*prometheus.Desc
	scrapeSuccessDesc *prometheus.Desc
}

func (s *Server) initDescs() {
	s.descs = make(map[string]*prometheus.Desc, len(metrics.Catalog))
	for _, d := range metrics.Catalog {
		s.descs[d.Name] = prometheus.NewDesc(
			prometheus.BuildFQName(s.namespace, s.subsystem, d.Name),
			d.Help,
			nil,
			nil,
		)
	}
	s.scrapeSuccessDesc = prometheus.NewDesc(
		prometheus.BuildFQName(s.namespace, s.subsystem, metrics.ScrapeSuccessDesc.Name),
		metrics.ScrapeSuccessDesc.Help,
		nil,
		nil,
	)
}

// Describe implements prometheus.Collector.
func (s *Server) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range metrics.Catalog {
		ch <- s.descs[d.Name]
	}
	ch <- s.scrapeSuccessDesc
}

// Collect implements prometheus.Collector. An uninitialized snapshot
// renders only the health metric, so a scrape client can tell "never
// polled" apart from "device reports zero".
func (s *Server) Collect(ch chan<- prometheus.Metric) {
	snap := s.registry.Current()

	var success float64
	if snap.OK {
		success = 1
	}
	ch <- prometheus.MustNewConstMetric(s.scrapeSuccessDesc, prometheus.GaugeValue, success)

	if !snap.Initialized {
		log.Ctx(s.ctx).Debug().Msg("no successful poll yet, rendering health only")
		return
	}
	for _, smp := range snap.Set.Samples {
		d, ok := s.descs[smp.Name]
		if !ok {
			continue
		}
		if math.IsNaN(smp.Value) {
			// Absent beats NaN for scrape clients doing arithmetic.
			continue
		}
		vt := prometheus.GaugeValue
		if smp.Type == metrics.Counter {
			vt = prometheus.CounterValue
		}
		ch <- prometheus.MustNewConstMetric(d, vt, smp.Value)
	}
}
