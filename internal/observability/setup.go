package observability

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/iamwavecut/kratos"

var (
	registerOnce sync.Once

	sanctionsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sanctions_created_total",
			Help: "Total number of sanctions recorded",
		},
		[]string{"kind"},
	)

	sanctionsDeactivatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sanctions_deactivated_total",
			Help: "Total number of time-bounded sanctions lifted",
		},
		[]string{"kind", "source"},
	)

	enforcementFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enforcement_failures_total",
			Help: "Total number of failed attempts to lift an expired sanction",
		},
		[]string{"kind"},
	)

	reconcileSweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reconcile_sweep_duration_seconds",
			Help:    "Time spent in one expiry sweep",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Init registers metrics, installs the tracer provider and, when addr is
// set, serves /metrics on it. The returned func shuts both down.
func Init(addr string) (func(ctx context.Context) error, error) {
	registerOnce.Do(func() {
		prometheus.MustRegister(sanctionsCreatedTotal)
		prometheus.MustRegister(sanctionsDeactivatedTotal)
		prometheus.MustRegister(enforcementFailuresTotal)
		prometheus.MustRegister(reconcileSweepDuration)
	})

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)

	var srv *http.Server
	if addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("metrics server failed")
			}
		}()
	}

	return func(ctx context.Context) error {
		var err error
		if srv != nil {
			err = srv.Shutdown(ctx)
		}
		return errors.Join(err, tp.Shutdown(ctx))
	}, nil
}

func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

func RecordSanctionCreated(kind string) {
	sanctionsCreatedTotal.WithLabelValues(kind).Inc()
}

func RecordSanctionDeactivated(kind, source string) {
	sanctionsDeactivatedTotal.WithLabelValues(kind, source).Inc()
}

func RecordEnforcementFailure(kind string) {
	enforcementFailuresTotal.WithLabelValues(kind).Inc()
}

// StartSweep returns a function recording the sweep duration when called.
func StartSweep() func() {
	timer := prometheus.NewTimer(reconcileSweepDuration)
	return func() {
		timer.ObserveDuration()
	}
}
