package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics holds the connection and request collectors. A nil *Metrics
// records nothing.
type Metrics struct {
	Connections *prometheus.CounterVec
	Active      prometheus.Gauge
	Requests    *prometheus.CounterVec
	Duration    *prometheus.HistogramVec
}

// NewMetrics registers the collectors with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Connections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "workspace",
			Name:      "connections_total",
			Help:      "Closed connections by outcome.",
		}, []string{"outcome"}),
		Active: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "workspace",
			Name:      "connections_active",
			Help:      "Connections accepted and not yet released.",
		}),
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "workspace",
			Name:      "requests_total",
			Help:      "Routed requests by method and status code.",
		}, []string{"method", "code"}),
		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "workspace",
			Name:      "request_duration_seconds",
			Help:      "Time spent in the handler.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
}

func (m *Metrics) connOpened() {
	if m == nil {
		return
	}
	m.Active.Inc()
}

func (m *Metrics) connClosed(outcome string) {
	if m == nil {
		return
	}
	m.Active.Dec()
	m.Connections.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeRequest(method string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(method, strconv.Itoa(code)).Inc()
	m.Duration.WithLabelValues(method).Observe(d.Seconds())
}

// NewMetricsRouter returns a router exposing gatherer at /metrics
func NewMetricsRouter(gatherer prometheus.Gatherer) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	return router
}

// ServeMetrics runs the metrics listener on address until ctx is cancelled
func ServeMetrics(ctx context.Context, address string, gatherer prometheus.Gatherer, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:         address,
		Handler:      NewMetricsRouter(gatherer),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Metrics server listening", zap.String("address", address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Metrics server forced to shutdown", zap.Error(err))
		return err
	}
	return nil
}
