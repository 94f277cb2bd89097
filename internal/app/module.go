package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/fatflowers/apihost/internal/app/api/server"
	"github.com/fatflowers/apihost/internal/app/service/monitoring"
	"github.com/fatflowers/apihost/internal/platform/lifecycle"
	"github.com/fatflowers/apihost/pkg/config"
	"github.com/fatflowers/apihost/pkg/logger"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

// asDrainable exposes the monitoring service as the resource flushed on exit.
func asDrainable(s *monitoring.Service) lifecycle.Drainable { return s }

// lifecycle.Module must precede server.Module: fx runs stop hooks in reverse,
// so the HTTP server stops before the monitoring drain.
var Module = fx.Options(
	logger.Module,
	config.Module,
	monitoring.Module,
	fx.Provide(asDrainable),
	lifecycle.Module,
	server.Module,
)
