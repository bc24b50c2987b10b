// Package config assembles the process's configuration from flags and
// environment variables, following the flaggy + env-var convention used by
// cmd/kuberhealthy's init().
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/integrii/flaggy"
)

// Config holds every operational knob the controller needs, resolved once
// at startup and treated as immutable afterward.
type Config struct {
	KubeConfigFile string
	ListenAddress  string

	Domain  string
	Version string
	Plural  string

	JobPollInterval       time.Duration
	ShutdownMaxWait       time.Duration
	HealthMonitorInterval time.Duration
	StreamWatchTimeout    time.Duration

	PrometheusGateway string
	InfluxURL         string
	InfluxUsername    string
	InfluxPassword    string
	InfluxDatabase    string
	EnableInflux      bool

	SendgridAPIKey string

	GCPProject string
	GCPCluster string
	GCPRegion  string

	Debug bool
}

// defaults mirror the original's crd.k8s.afrank.local/v1/checks group and
// mozalert/controller.py's Controller defaults.
const (
	defaultDomain                = "crd.k8s.afrank.local"
	defaultVersion               = "v1"
	defaultPlural                = "checks"
	defaultListenAddress         = ":8080"
	defaultJobPollInterval       = 3 * time.Second
	defaultShutdownMaxWait       = 10 * time.Second
	defaultHealthMonitorInterval = 60 * time.Second
	defaultStreamWatchTimeout    = 5 * time.Minute
)

// Load parses CLI flags (falling back to defaults and environment
// variables) into a Config, matching cmd/kuberhealthy/main.go's init().
func Load() *Config {
	cfg := &Config{
		KubeConfigFile:        filepath.Join(os.Getenv("HOME"), ".kube", "config"),
		ListenAddress:         defaultListenAddress,
		Domain:                envOr("DOMAIN", defaultDomain),
		Version:               envOr("VERSION", defaultVersion),
		Plural:                envOr("PLURAL", defaultPlural),
		JobPollInterval:       defaultJobPollInterval,
		ShutdownMaxWait:       defaultShutdownMaxWait,
		HealthMonitorInterval: defaultHealthMonitorInterval,
		StreamWatchTimeout:    defaultStreamWatchTimeout,
		PrometheusGateway:     os.Getenv("PROMETHEUS_GATEWAY"),
		InfluxURL:             os.Getenv("INFLUX_URL"),
		InfluxUsername:        os.Getenv("INFLUX_USERNAME"),
		InfluxPassword:        os.Getenv("INFLUX_PASSWORD"),
		InfluxDatabase:        os.Getenv("INFLUX_DATABASE"),
		SendgridAPIKey:        os.Getenv("SENDGRID_API_KEY"),
		GCPProject:            os.Getenv("GCP_PROJECT"),
		GCPCluster:            os.Getenv("GCP_CLUSTER"),
		GCPRegion:             os.Getenv("GCP_REGION"),
	}
	cfg.EnableInflux = cfg.InfluxURL != ""

	var jobPollSeconds, shutdownMaxWaitSeconds, healthIntervalSeconds, streamTimeoutSeconds int

	flaggy.SetDescription("checkoperator schedules and escalates recurring cluster checks.")
	flaggy.String(&cfg.KubeConfigFile, "", "kubecfg", "(optional) absolute path to the kubeconfig file")
	flaggy.String(&cfg.ListenAddress, "l", "listenAddress", "The address for checkoperator to listen on for web requests")
	flaggy.String(&cfg.Domain, "", "domain", "The CRD group domain to watch")
	flaggy.String(&cfg.Version, "", "version", "The CRD version to watch")
	flaggy.String(&cfg.Plural, "", "plural", "The CRD resource plural name (stored in the config only; the checks client always uses \"checks\")")
	flaggy.Int(&jobPollSeconds, "", "jobPollInterval", "Seconds between polls of a running check's worker job")
	flaggy.Int(&shutdownMaxWaitSeconds, "", "shutdownMaxWait", "Seconds to wait for an in-flight check before forcing shutdown")
	flaggy.Int(&healthIntervalSeconds, "", "healthMonitorInterval", "Seconds between sanity audit passes")
	flaggy.Int(&streamTimeoutSeconds, "", "streamWatchTimeout", "Seconds before the watch stream is force-reconnected")
	flaggy.String(&cfg.PrometheusGateway, "", "prometheusGateway", "Prometheus pushgateway URL, if pushing metrics")
	flaggy.Bool(&cfg.EnableInflux, "", "enableInflux", "Set to true to additionally report metrics to InfluxDB")
	flaggy.Bool(&cfg.Debug, "d", "debug", "Set to true to enable debug logging")
	flaggy.Parse()

	if jobPollSeconds > 0 {
		cfg.JobPollInterval = time.Duration(jobPollSeconds) * time.Second
	}
	if shutdownMaxWaitSeconds > 0 {
		cfg.ShutdownMaxWait = time.Duration(shutdownMaxWaitSeconds) * time.Second
	}
	if healthIntervalSeconds > 0 {
		cfg.HealthMonitorInterval = time.Duration(healthIntervalSeconds) * time.Second
	}
	if streamTimeoutSeconds > 0 {
		cfg.StreamWatchTimeout = time.Duration(streamTimeoutSeconds) * time.Second
	}

	return cfg
}

// InCluster reports whether checkoperator is running inside a pod, matching
// the rest.InClusterConfig probe pattern used by pkg/checkcrd.
func InCluster() bool {
	_, ok := os.LookupEnv("KUBERNETES_SERVICE_HOST")
	return ok
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
