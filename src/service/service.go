package service

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/mosaicnetworks/warden/src/blockchain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

// APIPrefix is the prefix of every REST endpoint but /metrics.
const APIPrefix = "/api/v1"

const shutdownTimeout = 5 * time.Second

// NodeInfo is the static part of the node visa.
type NodeInfo struct {
	NodeVersion  string
	CoreVersion  string
	AccountID    string
	P2PAccountID string

	// P2PAddrs, when set, returns the current peer-to-peer addresses.
	P2PAddrs func() []string
}

// Service is the REST service of the node. It translates HTTP requests into
// block channel requests.
type Service struct {
	sync.Mutex

	bindAddress   string
	sender        *blockchain.RequestSender
	info          NodeInfo
	bootstrapPath string
	timeout       time.Duration

	mux      *http.ServeMux
	server   *http.Server
	listener net.Listener
	running  *atomic.Bool

	logger *logrus.Entry
}

// NewService ...
func NewService(bindAddress string,
	sender *blockchain.RequestSender,
	info NodeInfo,
	bootstrapPath string,
	gatherer prometheus.Gatherer,
	timeout time.Duration,
	logger *logrus.Entry) *Service {

	service := Service{
		bindAddress:   bindAddress,
		sender:        sender,
		info:          info,
		bootstrapPath: bootstrapPath,
		timeout:       timeout,
		mux:           http.NewServeMux(),
		running:       atomic.NewBool(false),
		logger:        logger,
	}

	service.registerHandlers(gatherer)

	return &service
}

// registerHandlers registers the API handlers on the service's own mux, so
// that several nodes can run in the same process.
func (s *Service) registerHandlers(gatherer prometheus.Gatherer) {
	s.logger.Debug("Registering REST API handlers")
	s.mux.HandleFunc(APIPrefix+"/stats", s.makeHandler(http.MethodGet, s.GetStats))
	s.mux.HandleFunc(APIPrefix+"/account/", s.makeHandler(http.MethodGet, s.GetAccount))
	s.mux.HandleFunc(APIPrefix+"/block/", s.makeHandler(http.MethodGet, s.GetBlock))
	s.mux.HandleFunc(APIPrefix+"/submit", s.makeHandler(http.MethodPost, s.SubmitTx))
	s.mux.HandleFunc(APIPrefix+"/visa", s.makeHandler(http.MethodGet, s.GetVisa))
	s.mux.HandleFunc(APIPrefix+"/bootstrap", s.makeHandler(http.MethodGet, s.GetBootstrap))
	if gatherer != nil {
		s.mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
}

func (s *Service) makeHandler(method string, fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")

		if r.Method != method {
			w.Header().Set("Allow", method)
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}

		fn(w, r)
	}
}

// Handler returns the handler serving the API.
func (s *Service) Handler() http.Handler {
	return s.mux
}

// Start binds the listen address and serves in the background. It is a no-op
// when the service is running.
func (s *Service) Start() error {
	s.Lock()
	defer s.Unlock()

	if s.server != nil {
		return nil
	}

	listener, err := net.Listen("tcp", s.bindAddress)
	if err != nil {
		return err
	}

	server := &http.Server{Handler: s.mux}
	s.server = server
	s.listener = listener
	s.running.Store(true)

	s.logger.WithField("bind_address", listener.Addr().String()).Debug("Serving REST API")

	go func() {
		err := server.Serve(listener)
		s.running.Store(false)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.WithError(err).Error("REST service failed")
		}
	}()

	return nil
}

// Stop shuts the server down, waiting a bounded time for pending requests.
func (s *Service) Stop() error {
	s.Lock()
	defer s.Unlock()

	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := s.server.Shutdown(ctx)

	s.running.Store(false)
	s.server = nil
	s.listener = nil

	return err
}

// IsRunning ...
func (s *Service) IsRunning() bool {
	return s.running.Load()
}

// Addr returns the bound address, or the configured one when not started.
func (s *Service) Addr() string {
	s.Lock()
	defer s.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.bindAddress
}
