package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/homytech-core/internal/auth"
	"github.com/nerrad567/homytech-core/internal/control"
	"github.com/nerrad567/homytech-core/internal/device"
	"github.com/nerrad567/homytech-core/internal/eventlog"
	"github.com/nerrad567/homytech-core/internal/fanout"
	"github.com/nerrad567/homytech-core/internal/infrastructure/config"
	"github.com/nerrad567/homytech-core/internal/infrastructure/logging"
	"github.com/nerrad567/homytech-core/internal/infrastructure/metrics"
	"github.com/nerrad567/homytech-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/homytech-core/internal/usage"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Authenticator registers users, issues tokens and checks them.
type Authenticator interface {
	Register(ctx context.Context, email, name, password string) (*auth.User, error)
	Login(ctx context.Context, email, password string) (string, *auth.User, error)
	Authenticate(token string) (*auth.Claims, error)
	TTLMinutes() int
}

// Controller sends device commands to the broker.
type Controller interface {
	SetLight(ctx context.Context, id int, action, actor string) (device.Event, error)
	SetDoor(ctx context.Context, action, actor string) (device.Event, error)
	SetClothesline(ctx context.Context, action, actor string) (device.Event, error)
	SetClotheslineMode(ctx context.Context, mode string) (string, error)
	SyncState(ctx context.Context) (control.SyncResult, error)
}

// LogReader answers history and latest-state queries.
type LogReader interface {
	Query(ctx context.Context, filter eventlog.Filter) (*eventlog.ListResult, error)
	Latest(ctx context.Context, filter eventlog.Filter) (*device.Event, error)
	LatestPerDevice(ctx context.Context, ch device.Channel) ([]device.Event, error)
}

// UsageReporter computes the hourly light usage chart.
type UsageReporter interface {
	Hourly(ctx context.Context, now time.Time) ([]usage.Row, error)
	Lights() []int
}

// ChannelHub is the fan-out side of the push channels.
type ChannelHub interface {
	Register(ch device.Channel, sub fanout.Subscriber) error
	Unregister(ch device.Channel, sub fanout.Subscriber) error
	Counts(ctx context.Context) (map[device.Channel]int, error)
}

// BrokerStatus reports the MQTT connection state.
type BrokerStatus interface {
	State() mqtt.State
}

// Database is the subset of the database handle used for status.
type Database interface {
	HealthCheck(ctx context.Context) error
	Stats() sql.DBStats
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Logger   *logging.Logger
	Auth     Authenticator
	Control  Controller
	Logs     LogReader
	Usage    UsageReporter
	Hub      ChannelHub
	Broker   BrokerStatus      // optional
	DB       Database          // optional
	Metrics  *metrics.Registry // optional; enables /metrics and request metrics
	Location *time.Location    // display timezone for response timestamps
	Now      func() time.Time
	Version  string
}

// Server is the HTTP API and push-channel server.
type Server struct {
	cfg      config.APIConfig
	wsCfg    config.WebSocketConfig
	logger   *logging.Logger
	auth     Authenticator
	control  Controller
	logs     LogReader
	usage    UsageReporter
	hub      ChannelHub
	broker   BrokerStatus
	db       Database
	metrics  *metrics.Registry
	loc      *time.Location
	now      func() time.Time
	version  string
	tickets  *ticketStore
	started  time.Time
	handler  http.Handler
	server   *http.Server
	addr     string
	ctx      context.Context // cancelled on Close; bounds push-channel sockets
	stop     context.CancelFunc
	serveErr chan error
	closeMu  sync.Mutex
}

// New creates a server. It is not listening until Start is called.
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Logger == nil:
		return nil, errors.New("logger is required")
	case deps.Auth == nil:
		return nil, errors.New("authenticator is required")
	case deps.Control == nil:
		return nil, errors.New("control service is required")
	case deps.Logs == nil:
		return nil, errors.New("log reader is required")
	case deps.Usage == nil:
		return nil, errors.New("usage reporter is required")
	case deps.Hub == nil:
		return nil, errors.New("channel hub is required")
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	s := &Server{
		cfg:     deps.Config,
		wsCfg:   deps.WS,
		logger:  deps.Logger,
		auth:    deps.Auth,
		control: deps.Control,
		logs:    deps.Logs,
		usage:   deps.Usage,
		hub:     deps.Hub,
		broker:  deps.Broker,
		db:      deps.DB,
		metrics: deps.Metrics,
		loc:     deps.Location,
		now:     deps.Now,
		version: deps.Version,
		tickets: newTicketStore(deps.Now),
		started: deps.Now(),
	}
	s.ctx, s.stop = context.WithCancel(context.Background())
	s.handler = s.buildRouter()
	return s, nil
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start binds the listener and serves in the background.
// A bind failure is returned; later serve errors are logged.
func (s *Server) Start(ctx context.Context) error {
	context.AfterFunc(ctx, s.stop)
	go s.cleanTicketsLoop(s.ctx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.handler,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.server.Addr, err)
	}

	s.addr = ln.Addr().String()
	s.serveErr = make(chan error, 1)
	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS", "address", ln.Addr().String(), "cert", s.cfg.TLS.CertFile)
			err = s.server.ServeTLS(ln, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", ln.Addr().String())
			err = s.server.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
			s.serveErr <- err
		}
		close(s.serveErr)
	}()

	return nil
}

// Addr returns the bound listener address after Start.
func (s *Server) Addr() string {
	return s.addr
}

// Wait blocks until the server stops or ctx is done. It returns the serve
// error, if any.
func (s *Server) Wait(ctx context.Context) error {
	if s.serveErr == nil {
		return errors.New("api server not started")
	}
	select {
	case err := <-s.serveErr:
		return err
	case <-ctx.Done():
		return nil
	}
}

// Close gracefully shuts down the server, waiting up to
// gracefulShutdownTimeout for in-flight requests, then closes the push
// channel sockets, which Shutdown does not track.
func (s *Server) Close() error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()

	if s.server == nil {
		s.stop()
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	err := s.server.Shutdown(ctx)
	s.stop()
	s.server = nil
	if err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
