// Package webserver exposes the operator's pull-based Prometheus endpoint
// and a liveness probe, grounded on cmd/kuberhealthy/webserver.go's
// newServeMux/StartWebServer/requestLogger pattern.
package webserver

import (
	"net"
	"net/http"
	"os"
	"strings"

	"github.com/ghodss/yaml"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// openapiSpecPath is where the checks CRD's OpenAPI description lives
// relative to the process's working directory, matching cmd/kuberhealthy's
// ./openapi.yaml convention (cmd/kuberhealthy/webserver.go).
const openapiSpecPath = "openapi.yaml"

// requestLogger logs the source IP, user agent, method, and path of every
// incoming request before handing off to the wrapped handler.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.Header.Get("X-Forwarded-For")
		if ip != "" {
			ip = strings.TrimSpace(strings.Split(ip, ",")[0])
		} else {
			ip, _, _ = net.SplitHostPort(r.RemoteAddr)
		}
		log.WithFields(log.Fields{
			"ip":     ip,
			"ua":     r.UserAgent(),
			"method": r.Method,
			"path":   r.URL.Path,
		}).Debug("client request")
		next.ServeHTTP(w, r)
	})
}

// New builds a mux exposing /healthz and, when registry is non-nil,
// /metrics via the standard Prometheus HTTP handler.
func New(registry *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	if registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	mux.HandleFunc("/openapi.json", openapiHandler)

	return requestLogger(mux)
}

// openapiHandler serves the checks CRD's OpenAPI description as JSON,
// converting the YAML source on disk the same way cmd/kuberhealthy's
// renderOpenAPISpec does.
func openapiHandler(w http.ResponseWriter, r *http.Request) {
	data, err := os.ReadFile(openapiSpecPath)
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	jsonData, err := yaml.YAMLToJSON(data)
	if err != nil {
		log.WithError(err).Error("failed to convert openapi.yaml to JSON")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Write(jsonData)
}

// ListenAndServe starts the web server and blocks until it exits or stop is
// closed, matching StartWebServer's role in the original bootstrap.
func ListenAndServe(addr string, registry *prometheus.Registry, stop <-chan struct{}) error {
	srv := &http.Server{Addr: addr, Handler: New(registry)}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-stop:
		return srv.Close()
	}
}
