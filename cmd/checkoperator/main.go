// Command checkoperator watches check custom resources, schedules their
// recurring execution, and escalates failures, grounded on
// cmd/kuberhealthy/main.go's bootstrap and init() pattern.
package main

import (
	"net/url"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/afrank/checkoperator/internal/cluster"
	"github.com/afrank/checkoperator/internal/config"
	"github.com/afrank/checkoperator/internal/controller"
	"github.com/afrank/checkoperator/internal/escalation"
	"github.com/afrank/checkoperator/internal/eventqueue"
	"github.com/afrank/checkoperator/internal/handler"
	"github.com/afrank/checkoperator/internal/healthmonitor"
	"github.com/afrank/checkoperator/internal/metrics"
	"github.com/afrank/checkoperator/internal/runner"
	"github.com/afrank/checkoperator/internal/watcher"
	"github.com/afrank/checkoperator/internal/webserver"
	"github.com/afrank/checkoperator/pkg/checkcrd"

	log "github.com/sirupsen/logrus"
)

func main() {
	cfg := config.Load()

	log.SetOutput(os.Stdout)
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
	log.Infoln("startup arguments:", os.Args)

	checkClient, err := checkcrd.NewClient(cfg.Domain, cfg.Version, cfg.KubeConfigFile)
	if err != nil {
		log.WithError(err).Fatal("unable to build checks CRD client")
	}

	kubeClientset, err := cluster.NewKubeClientset(cfg.KubeConfigFile)
	if err != nil {
		log.WithError(err).Fatal("unable to build kubernetes clientset")
	}

	clusterClient := cluster.NewK8sClient(kubeClientset, checkClient)

	registry := escalation.NewRegistry()
	registry.Register("email", escalation.NewEmailEscalator)
	registry.Register("slack", escalation.NewSlackEscalator)

	metricsQ := metrics.NewQueue()
	promSink := metrics.NewPrometheusSink(cfg.PrometheusGateway, "checkoperator")
	metricsSink := buildMetricsSink(cfg, promSink)

	q := eventqueue.New()

	runnerOpts := runner.Options{
		JobPollInterval: cfg.JobPollInterval,
		ShutdownMaxWait: cfg.ShutdownMaxWait,
	}

	w := watcher.New(checkClient, q, watcher.Options{StreamWatchTimeout: cfg.StreamWatchTimeout})
	h := handler.New(q, clusterClient, registry, metricsQ, runnerOpts)
	mon := healthmonitor.New(clusterClient, healthmonitor.Options{Interval: cfg.HealthMonitorInterval})

	ctrl := controller.New(w, h, mon, metricsQ, metricsSink)

	stop := make(chan struct{})
	go startWebServer(cfg.ListenAddress, promSink.Registry(), stop)

	ctrl.Run()
	close(stop)
}

func startWebServer(addr string, registry *prometheus.Registry, stop <-chan struct{}) {
	if err := webserver.ListenAndServe(addr, registry, stop); err != nil {
		log.WithError(err).Warn("web server exited")
	}
}

// buildMetricsSink wraps the always-on Prometheus sink with InfluxDB when
// enabled, matching cmd/kuberhealthy/influx.go's opt-in EnableInflux flag.
func buildMetricsSink(cfg *config.Config, prom *metrics.PrometheusSink) metrics.Sink {
	if !cfg.EnableInflux {
		return prom
	}

	u, err := url.Parse(cfg.InfluxURL)
	if err != nil {
		log.WithError(err).Error("invalid INFLUX_URL, disabling influx metrics sink")
		return prom
	}

	influxSink, err := metrics.NewInfluxSink(metrics.InfluxConfig{
		URL:      *u,
		Username: cfg.InfluxUsername,
		Password: cfg.InfluxPassword,
		Database: cfg.InfluxDatabase,
	})
	if err != nil {
		log.WithError(err).Error("unable to build influx metrics sink, continuing with prometheus only")
		return prom
	}

	return metrics.NewMultiSink(prom, influxSink)
}
