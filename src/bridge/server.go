package bridge

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"sync"
	"time"

	"github.com/mosaicnetworks/warden/src/blockchain"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

// Service serves the Bridge over JSON-RPC on TCP.
type Service struct {
	sync.Mutex

	bindAddress string
	rpcServer   *rpc.Server
	listener    net.Listener
	conns       map[net.Conn]struct{}
	done        chan struct{}
	running     *atomic.Bool

	logger *logrus.Entry
}

// NewService ...
func NewService(bindAddress string,
	sender *blockchain.RequestSender,
	timeout time.Duration,
	logger *logrus.Entry) (*Service, error) {

	rpcServer := rpc.NewServer()

	err := rpcServer.RegisterName(ServiceName, &Bridge{
		sender:  sender,
		timeout: timeout,
		logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	return &Service{
		bindAddress: bindAddress,
		rpcServer:   rpcServer,
		conns:       make(map[net.Conn]struct{}),
		running:     atomic.NewBool(false),
		logger:      logger,
	}, nil
}

// Start binds the listen address and accepts connections in the background.
func (s *Service) Start() error {
	s.Lock()
	defer s.Unlock()

	if s.listener != nil {
		return nil
	}

	l, err := net.Listen("tcp", s.bindAddress)
	if err != nil {
		s.logger.WithField("error", err).Error("Failed to listen")
		return err
	}

	s.listener = l
	s.done = make(chan struct{})
	s.running.Store(true)

	s.logger.WithField("bind_address", l.Addr().String()).Debug("Serving bridge")

	go s.listen(l, s.done)

	return nil
}

func (s *Service) listen(l net.Listener, done chan struct{}) {
	defer close(done)
	defer s.running.Store(false)

	for {
		conn, err := l.Accept()
		if err != nil {
			s.Lock()
			stopping := s.listener != l
			s.Unlock()
			if !stopping {
				s.logger.WithField("error", err).Error("Failed to accept")
			}
			return
		}

		s.Lock()
		s.conns[conn] = struct{}{}
		s.Unlock()

		go func() {
			s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(conn))
			s.Lock()
			delete(s.conns, conn)
			s.Unlock()
		}()
	}
}

// Stop closes the listener and every open connection.
func (s *Service) Stop() error {
	s.Lock()
	l := s.listener
	done := s.done
	if l == nil {
		s.Unlock()
		return nil
	}
	s.listener = nil
	for conn := range s.conns {
		conn.Close()
	}
	s.Unlock()

	err := l.Close()
	<-done

	return err
}

// IsRunning is true while connections are accepted.
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
