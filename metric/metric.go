package metric

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/anyproto/any-sync/app"
	"github.com/anyproto/any-sync/app/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const CName = "gcm.metric"

var log = logger.NewNamed(CName)

func New() Metric {
	return new(metric)
}

type Metric interface {
	Registry() *prometheus.Registry
	app.ComponentRunnable
}

type configSource interface {
	GetMetric() Config
}

type Config struct {
	Addr string `yaml:"addr"`
}

type metric struct {
	registry *prometheus.Registry
	conf     Config
	server   *http.Server
}

func (m *metric) Init(a *app.App) (err error) {
	m.registry = prometheus.NewRegistry()
	if cs, ok := a.Component("config").(configSource); ok {
		m.conf = cs.GetMetric()
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return
}

func (m *metric) Name() (name string) {
	return CName
}

func (m *metric) Registry() *prometheus.Registry {
	return m.registry
}

func (m *metric) Run(ctx context.Context) (err error) {
	if m.conf.Addr == "" {
		return nil
	}
	ln, err := net.Listen("tcp", m.conf.Addr)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	m.server = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if serr := m.server.Serve(ln); serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			log.Error("metric server error", zap.Error(serr))
		}
	}()
	log.Info("metric server started", zap.String("addr", ln.Addr().String()))
	return nil
}

func (m *metric) Close(ctx context.Context) (err error) {
	if m.server != nil {
		return m.server.Shutdown(ctx)
	}
	return nil
}
