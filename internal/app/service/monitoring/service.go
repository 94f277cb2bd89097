package monitoring

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	cfgpkg "github.com/fatflowers/apihost/pkg/config"
	"github.com/fatflowers/apihost/pkg/metrics"
	"github.com/fatflowers/apihost/pkg/tool"
)

const metricsSubsystem = "apihost"

// Service owns the process's monitoring state: a private metrics registry, the
// tracer provider and the logger. Its buffered state is flushed by OnExit.
type Service struct {
	log        *zap.SugaredLogger
	registry   *prometheus.Registry
	tp         *sdktrace.TracerProvider
	pusher     *push.Pusher
	exitTime   prometheus.Gauge
	instanceID string

	exitOnce sync.Once
	exitErr  error
}

type sink struct {
	name  string
	flush func(ctx context.Context) error
}

func New(cfg *cfgpkg.Config, log *zap.SugaredLogger) (*Service, error) {
	s := &Service{
		log:        log,
		registry:   prometheus.NewRegistry(),
		instanceID: tool.NewID(),
	}

	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	startTime := metrics.NewMetric(metrics.MetricsUptime, metricsSubsystem).(prometheus.Gauge)
	startTime.SetToCurrentTime()
	s.exitTime = metrics.NewMetric(metrics.MetricsExitTime, metricsSubsystem).(prometheus.Gauge)
	s.registry.MustRegister(startTime, s.exitTime)

	tp, err := newTracerProvider(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to init tracer provider: %w", err)
	}
	s.tp = tp
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if url := cfg.Monitoring.PushgatewayURL; url != "" {
		s.pusher = push.New(url, cfg.Monitoring.Job).
			Gatherer(s.registry).
			Grouping("instance", s.instanceID)
	}

	log.Infow("monitoring initialized",
		"instance", s.instanceID,
		"otlp_endpoint", cfg.Monitoring.OTLPEndpoint,
		"pushgateway", cfg.Monitoring.PushgatewayURL,
	)
	return s, nil
}

func newTracerProvider(ctx context.Context, cfg *cfgpkg.Config) (*sdktrace.TracerProvider, error) {
	rsc := sdkresource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.App.Name),
		semconv.ServiceVersion(cfg.App.Version),
		semconv.DeploymentEnvironment(string(cfg.Env)),
	)
	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(rsc)}

	if cfg.Monitoring.OTLPEndpoint != "" {
		expOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Monitoring.OTLPEndpoint)}
		if cfg.Monitoring.OTLPInsecure {
			expOpts = append(expOpts, otlptracegrpc.WithInsecure())
		}
		exp, err := otlptracegrpc.New(ctx, expOpts...)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
	}
	return sdktrace.NewTracerProvider(opts...), nil
}

func (s *Service) Registry() *prometheus.Registry { return s.registry }

func (s *Service) InstanceID() string { return s.instanceID }

// OnExit flushes buffered spans, pushes the final metrics snapshot and syncs
// the logger. Only the first call does any work; later calls return its result.
func (s *Service) OnExit(ctx context.Context) error {
	s.exitOnce.Do(func() {
		s.exitErr = s.flush(ctx)
	})
	return s.exitErr
}

func (s *Service) flush(ctx context.Context) error {
	start := time.Now()
	s.exitTime.SetToCurrentTime()

	sinks := s.sinks()
	errs := make([]error, len(sinks))
	var g errgroup.Group
	for i, sk := range sinks {
		i, sk := i, sk
		g.Go(func() error {
			if err := sk.flush(ctx); err != nil {
				errs[i] = fmt.Errorf("%s: %w", sk.name, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	err := multierr.Combine(errs...)
	if err != nil {
		s.log.Warnw("monitoring flush incomplete", "err", err, "elapsed_ms", time.Since(start).Milliseconds())
	} else {
		s.log.Infow("monitoring flushed", "sinks", len(sinks), "elapsed_ms", time.Since(start).Milliseconds())
	}
	// stderr sync commonly fails with EINVAL/ENOTTY; nothing left to report it to
	_ = s.log.Sync()
	return err
}

func (s *Service) sinks() []sink {
	out := []sink{{name: "traces", flush: s.tp.Shutdown}}
	if s.pusher != nil {
		out = append(out, sink{name: "pushgateway", flush: s.pusher.PushContext})
	}
	return out
}
