package metrics

/* derived from https://github.com/zsais/go-gin-prometheus
edits:
- register on a caller-supplied registry instead of the global one
- log through zap
- remove push gateway and basic auth
- leave serving the dedicated metrics engine to the caller
*/

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Standard default metrics
//
//	counter, counter_vec, gauge, gauge_vec,
//	histogram, histogram_vec, summary, summary_vec
var reqCnt = &Metric{
	ID:          "reqCnt",
	Name:        "req_total",
	Description: "How many HTTP requests processed, partitioned by status code and HTTP method.",
	Type:        "counter_vec",
	Args:        []string{"code", "method", "url", "ref"}}

var reqDur = &Metric{
	ID:          "reqDur",
	Name:        "req_dur_ms",
	Description: "The HTTP request latencies in milliseconds.",
	Type:        "histogram_vec",
	Args:        []string{"code", "method", "url", "ref"},
}

var resSz = &Metric{
	ID:          "resSz",
	Name:        "resp_sz_bytes",
	Description: "The HTTP response sizes in bytes.",
	Type:        "summary_vec",
	Args:        []string{"code", "method", "url", "ref"},
}

var reqSz = &Metric{
	ID:          "reqSz",
	Name:        "req_sz_bytes",
	Description: "The HTTP request sizes in bytes.",
	Type:        "summary_vec",
	Args:        []string{"code", "method", "url", "ref"},
}

var standardMetrics = []*Metric{
	reqCnt,
	reqDur,
	resSz,
	reqSz,
}

var defaultMetricPath = "/metrics"

/*
RequestCounterURLLabelMappingFn is a function which can be supplied to the middleware to control
the cardinality of the request counter's "url" label, which might be required in some contexts.
For instance, if for a "/customer/:name" route you don't want to generate a time series for every
possible customer name, you could use this function:

	func(c *gin.Context) string {
		url := c.Request.URL.Path
		for _, p := range c.Params {
			if p.Key == "name" {
				url = strings.Replace(url, p.Value, ":name", 1)
				break
			}
		}
		return url
	}

which would map "/customer/alice" and "/customer/bob" to their template "/customer/:name".
*/
type RequestCounterURLLabelMappingFn func(c *gin.Context) string

// Prometheus contains the metrics gathered by the instance and its path
type Prometheus struct {
	reqCnt        *prometheus.CounterVec
	reqDur        *prometheus.HistogramVec
	reqSz, resSz  *prometheus.SummaryVec
	router        *gin.Engine
	listenAddress string
	registerer    prometheus.Registerer
	gatherer      prometheus.Gatherer

	MetricsPath string

	ReqCntURLLabelMappingFn RequestCounterURLLabelMappingFn

	logger *zap.SugaredLogger
}

type NewPrometheusOptions struct {
	Subsystem               string
	MetricsPath             string
	ReqCntURLLabelMappingFn func(c *gin.Context) string
	Registerer              prometheus.Registerer
	Gatherer                prometheus.Gatherer
	Logger                  *zap.SugaredLogger
}

// NewPrometheus creates the request metrics on the given registry. Nil
// registry fields fall back to the prometheus defaults.
func NewPrometheus(options NewPrometheusOptions) *Prometheus {
	p := &Prometheus{
		MetricsPath:             options.MetricsPath,
		ReqCntURLLabelMappingFn: options.ReqCntURLLabelMappingFn,
		registerer:              options.Registerer,
		gatherer:                options.Gatherer,
		logger:                  options.Logger,
	}
	if p.MetricsPath == "" {
		p.MetricsPath = defaultMetricPath
	}
	if p.ReqCntURLLabelMappingFn == nil {
		p.ReqCntURLLabelMappingFn = func(c *gin.Context) string {
			return c.Request.URL.Path
		}
	}
	if p.registerer == nil {
		p.registerer = prometheus.DefaultRegisterer
	}
	if p.gatherer == nil {
		p.gatherer = prometheus.DefaultGatherer
	}
	if p.logger == nil {
		p.logger = zap.NewNop().Sugar()
	}

	p.registerMetrics(options.Subsystem)
	return p
}

// SetListenAddress for exposing metrics on address. If not set, it will be exposed at the
// same address of the gin engine that is being used
func (p *Prometheus) SetListenAddress(address string) {
	p.listenAddress = address
	if p.listenAddress != "" {
		p.router = gin.New()
		p.router.Use(gin.Recovery())
	}
}

// ListenAddress is the dedicated metrics address, empty when metrics share the
// main engine.
func (p *Prometheus) ListenAddress() string { return p.listenAddress }

// Router is the dedicated metrics engine, nil when metrics share the main
// engine. The caller owns serving it.
func (p *Prometheus) Router() *gin.Engine { return p.router }

// SetMetricsPath set metrics paths
func (p *Prometheus) SetMetricsPath(e *gin.Engine) {
	if p.router != nil {
		p.router.GET(p.MetricsPath, p.handler())
	} else {
		e.GET(p.MetricsPath, p.handler())
	}
}

func (p *Prometheus) handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}

func (p *Prometheus) registerMetrics(subsystem string) {
	for _, metricDef := range standardMetrics {
		metric := NewMetric(metricDef, subsystem)
		if err := p.registerer.Register(metric); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				p.logger.Errorf("%s could not be registered in Prometheus, err=%v", metricDef.Name, err)
			} else {
				metric = already.ExistingCollector
			}
		}
		switch metricDef {
		case reqCnt:
			p.reqCnt = metric.(*prometheus.CounterVec)
		case reqDur:
			p.reqDur = metric.(*prometheus.HistogramVec)
		case resSz:
			p.resSz = metric.(*prometheus.SummaryVec)
		case reqSz:
			p.reqSz = metric.(*prometheus.SummaryVec)
		}
	}
}

// Use adds the middleware to a gin engine.
func (p *Prometheus) Use(e *gin.Engine) {
	e.Use(p.HandlerFunc())
	p.SetMetricsPath(e)
}

// HandlerFunc defines handler function for middleware
func (p *Prometheus) HandlerFunc() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == p.MetricsPath {
			c.Next()
			return
		}

		start := time.Now()
		reqSz := computeApproximateRequestSize(c.Request)

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		elapsed := MillisecondsSince(start)
		resSz := float64(c.Writer.Size())
		url := p.ReqCntURLLabelMappingFn(c)
		ref := c.Request.Header.Get(RefererKey)

		p.reqDur.WithLabelValues(status, c.Request.Method, url, ref).Observe(elapsed)
		p.reqCnt.WithLabelValues(status, c.Request.Method, url, ref).Inc()
		p.reqSz.WithLabelValues(status, c.Request.Method, url, ref).Observe(float64(reqSz))
		p.resSz.WithLabelValues(status, c.Request.Method, url, ref).Observe(resSz)
	}
}

// MillisecondsSince returns the elapsed time since start in fractional milliseconds.
func MillisecondsSince(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}

// From https://github.com/DanielHeckrath/gin-prometheus/blob/master/gin_prometheus.go
func computeApproximateRequestSize(r *http.Request) int {
	s := 0
	if r.URL != nil {
		s = len(r.URL.Path)
	}

	s += len(r.Method)
	s += len(r.Proto)
	for name, values := range r.Header {
		s += len(name)
		for _, value := range values {
			s += len(value)
		}
	}
	s += len(r.Host)

	// N.B. r.Form and r.MultipartForm are assumed to be included in r.URL.

	if r.ContentLength != -1 {
		s += int(r.ContentLength)
	}
	return s
}
