package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/swaggo/swag"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/apihost/docs"
	"github.com/fatflowers/apihost/internal/app/api/handlers"
	mw "github.com/fatflowers/apihost/internal/app/api/middleware"
	"github.com/fatflowers/apihost/internal/app/service/monitoring"
	"github.com/fatflowers/apihost/internal/platform/lifecycle"
	cfgpkg "github.com/fatflowers/apihost/pkg/config"
	metrics "github.com/fatflowers/apihost/pkg/metrics"
)

// APIVersion is the URI version segment placed after the API prefix.
const APIVersion = "v1"

// versionedBase builds "/{prefix}/{version}", tolerating slashes around prefix.
func versionedBase(prefix, version string) string {
	return path.Join("/", prefix, version)
}

// docsTemplate is the generated doc, whose paths carry the default "/api/v1" base.
var docsTemplate = docs.SwaggerInfo.SwaggerTemplate

// rebaseDocs points the documented API paths at the configured base.
func rebaseDocs(spec *swag.Spec, base string) {
	spec.SwaggerTemplate = strings.ReplaceAll(docsTemplate, `"/api/v1/`, `"`+base+`/`)
}

func newEngine(cfg *cfgpkg.Config) *gin.Engine {
	if cfg.Env == cfgpkg.EnvProd {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	// request logger & access log are attached per group in registerRoutes
	r.Use(mw.TraceMiddleware(), mw.CORSMiddleware())
	return r
}

type routeParams struct {
	fx.In

	Lifecycle   fx.Lifecycle
	Shutdowner  fx.Shutdowner
	Engine      *gin.Engine
	Log         *zap.SugaredLogger
	Cfg         *cfgpkg.Config
	Monitoring  *monitoring.Service
	Coordinator *lifecycle.Coordinator
}

func registerRoutes(p routeParams) {
	r, log, cfg := p.Engine, p.Log, p.Cfg

	if cfg.Monitoring.MetricsAddr != "" {
		prom := metrics.NewPrometheus(metrics.NewPrometheusOptions{
			Subsystem:  "http",
			Registerer: p.Monitoring.Registry(),
			Gatherer:   p.Monitoring.Registry(),
			ReqCntURLLabelMappingFn: func(c *gin.Context) string {
				if fp := c.FullPath(); fp != "" {
					return fp
				}
				return "unmatched"
			},
			Logger: log,
		})
		prom.SetListenAddress(cfg.Monitoring.MetricsAddr)
		prom.Use(r)
		if mr := prom.Router(); mr != nil {
			serve(p.Lifecycle, p.Shutdowner, log, "metrics", &http.Server{
				Addr:              prom.ListenAddress(),
				Handler:           mr,
				ReadHeaderTimeout: 5 * time.Second,
			})
		}
	}

	// Unprefixed group: service banner and API docs
	pub := r.Group("/")
	pub.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware(log))
	handlers.RegisterRootRoutes(pub, handlers.AppInfo{Name: cfg.App.Name, Version: cfg.App.Version})
	docs.SwaggerInfo.Version = cfg.App.Version
	rebaseDocs(docs.SwaggerInfo, versionedBase(cfg.HTTP.APIPrefix, APIVersion))
	pub.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group(versionedBase(cfg.HTTP.APIPrefix, APIVersion))
	api.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware(log))
	handlers.RegisterHealthRoutes(api, p.Coordinator, log)
}

func newHTTPServer(cfg *cfgpkg.Config, r *gin.Engine) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr(),
		Handler:           otelhttp.NewHandler(r, cfg.App.Name),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func runServer(lc fx.Lifecycle, shutdowner fx.Shutdowner, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine) {
	serve(lc, shutdowner, log, "HTTP", newHTTPServer(cfg, r))
}

// serve ties srv to the app lifecycle. The listener is bound in OnStart so a
// taken port fails startup; a later serve error stops the app with exit code 1.
func serve(lc fx.Lifecycle, shutdowner fx.Shutdowner, log *zap.SugaredLogger, name string, srv *http.Server) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return fmt.Errorf("%s listen %s: %w", name, srv.Addr, err)
			}
			log.Infow("starting server", "server", name, "addr", ln.Addr().String())
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Errorw("server stopped unexpectedly", "server", name, "err", err)
					if shutdowner == nil {
						return
					}
					if err := shutdowner.Shutdown(fx.ExitCode(1)); err != nil {
						log.Errorw("failed to request app shutdown", "err", err)
					}
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping server", "server", name)
			return srv.Shutdown(ctx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(newEngine),
	fx.Invoke(registerRoutes),
	fx.Invoke(runServer),
)
