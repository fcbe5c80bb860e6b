package web

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/vitos/crypto_momentum_bot/internal/domain"
	"github.com/vitos/crypto_momentum_bot/internal/usecase"
	"go.uber.org/zap"
)

type Server struct {
	router   *http.ServeMux
	server   *http.Server
	runner   *usecase.StrategyRunner
	orders   *usecase.OrderManager
	exchange domain.Exchange
	events   *usecase.EventBus
	defaults usecase.StrategyConfig
	upgrader websocket.Upgrader
	logger   *zap.Logger

	closeOnce sync.Once
	closing   chan struct{}
}

// NewServer wires the control API. defaults fills any strategy or order
// field a request leaves out.
func NewServer(
	port int,
	runner *usecase.StrategyRunner,
	orders *usecase.OrderManager,
	exchange domain.Exchange,
	events *usecase.EventBus,
	defaults usecase.StrategyConfig,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router:   http.NewServeMux(),
		runner:   runner,
		orders:   orders,
		exchange: exchange,
		events:   events,
		defaults: defaults,
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
		logger:   logger,
		closing:  make(chan struct{}),
	}
	s.routes()
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}
	return s
}

func (s *Server) routes() {
	// Strategy
	s.router.HandleFunc("GET /status", s.handleStatus)
	s.router.HandleFunc("POST /strategy/start", s.handleStartStrategy)
	s.router.HandleFunc("POST /strategy/stop", s.handleStopStrategy)

	// Manual trading
	s.router.HandleFunc("POST /orders/open", s.handleOpenPosition)
	s.router.HandleFunc("POST /orders/close", s.handleClosePositions)
	s.router.HandleFunc("POST /leverage", s.handleSetLeverage)

	// Exchange
	s.router.HandleFunc("GET /connection", s.handleConnection)
	s.router.HandleFunc("GET /account", s.handleAccount)

	// Events
	s.router.HandleFunc("GET /events", s.handleRecentEvents)
	s.router.HandleFunc("GET /ws/events", s.handleEventStream)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and ends open event streams, which
// http.Server does not track once hijacked.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.closing) })
	return s.server.Shutdown(ctx)
}
