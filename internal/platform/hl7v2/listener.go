package hl7v2

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/ehr/interchange/internal/platform/telemetry"
)

const (
	defaultMaxRead     = 4096
	defaultReadTimeout = 30 * time.Second
)

// Payload is everything one sender wrote before closing, hitting the size
// limit, or going quiet past the read deadline.
type Payload struct {
	Remote   string // "tcp://host:port"
	Data     []byte
	Received time.Time
}

// PayloadHandler processes one payload. Nothing it returns is sent back to
// the sender. ctx is cancelled when shutdown gives up waiting.
type PayloadHandler func(ctx context.Context, p Payload)

// ListenerConfig controls the real-time listener.
type ListenerConfig struct {
	Addr        string
	Workers     int           // concurrent connections; 1 serves one sender at a time
	MaxRead     int           // bytes read per connection
	ReadTimeout time.Duration // deadline for the whole read
}

// Listener accepts plain TCP connections and hands each payload to a
// PayloadHandler. At most Workers connections are processed at once; while
// the pool is full the accept loop blocks, so further senders wait in the
// kernel backlog.
type Listener struct {
	cfg      ListenerConfig
	handler  PayloadHandler
	logger   zerolog.Logger
	metrics  *telemetry.Metrics
	listener net.Listener
	sem      *semaphore.Weighted

	mu    sync.Mutex
	conns map[net.Conn]struct{}

	done       chan struct{}
	acceptDone chan struct{}
	stopAccept context.CancelFunc
	acceptCtx  context.Context
	baseCtx    context.Context
	cancelWork context.CancelFunc
	closeOnce  sync.Once
	wg         sync.WaitGroup
}

// NewListener creates a listener. Zero values in cfg fall back to one
// worker, 4096 bytes and a 30 second read deadline.
func NewListener(cfg ListenerConfig, handler PayloadHandler, logger zerolog.Logger, metrics *telemetry.Metrics) *Listener {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.MaxRead < 1 {
		cfg.MaxRead = defaultMaxRead
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	acceptCtx, stopAccept := context.WithCancel(context.Background())
	baseCtx, cancelWork := context.WithCancel(context.Background())
	return &Listener{
		cfg:        cfg,
		handler:    handler,
		logger:     logger.With().Str("component", "listener").Logger(),
		metrics:    metrics,
		sem:        semaphore.NewWeighted(int64(cfg.Workers)),
		conns:      make(map[net.Conn]struct{}),
		done:       make(chan struct{}),
		acceptDone: make(chan struct{}),
		acceptCtx:  acceptCtx,
		stopAccept: stopAccept,
		baseCtx:    baseCtx,
		cancelWork: cancelWork,
	}
}

// Start binds the address and runs the accept loop in a background goroutine.
func (l *Listener) Start() error {
	ln, err := net.Listen("tcp", l.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", l.cfg.Addr, err)
	}
	l.listener = ln
	l.logger.Info().
		Str("addr", ln.Addr().String()).
		Int("workers", l.cfg.Workers).
		Msg("listening for HL7 messages")

	go func() {
		defer close(l.acceptDone)
		l.acceptLoop()
	}()
	return nil
}

// Addr returns the bound address, useful when listening on port 0.
func (l *Listener) Addr() string {
	if l.listener != nil {
		return l.listener.Addr().String()
	}
	return l.cfg.Addr
}

// Shutdown stops accepting, then waits for in-flight connections to finish.
// If ctx expires first, handler contexts are cancelled and the remaining
// connections are closed.
func (l *Listener) Shutdown(ctx context.Context) error {
	var err error
	l.closeOnce.Do(func() {
		close(l.done)
		l.stopAccept()
		if l.listener != nil {
			err = l.listener.Close()
		}
	})
	if l.listener == nil {
		return err
	}
	<-l.acceptDone

	drained := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		l.cancelWork()
		return err
	case <-ctx.Done():
		l.logger.Warn().Msg("shutdown deadline reached, closing open connections")
		l.cancelWork()
		l.mu.Lock()
		for conn := range l.conns {
			conn.Close()
		}
		l.mu.Unlock()
		<-drained
		return ctx.Err()
	}
}

func (l *Listener) acceptLoop() {
	for {
		if err := l.sem.Acquire(l.acceptCtx, 1); err != nil {
			return
		}
		conn, err := l.listener.Accept()
		if err != nil {
			l.sem.Release(1)
			select {
			case <-l.done:
				return
			default:
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			l.logger.Error().Err(err).Msg("accept failed")
			return
		}

		l.trackConn(conn, true)
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			defer l.sem.Release(1)
			defer l.trackConn(conn, false)
			defer conn.Close()
			l.handleConnection(conn)
		}()
	}
}

// trackConn adds or removes a connection from the tracked set.
func (l *Listener) trackConn(conn net.Conn, add bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if add {
		l.conns[conn] = struct{}{}
	} else {
		delete(l.conns, conn)
	}
}

func (l *Listener) handleConnection(conn net.Conn) {
	l.metrics.ConnectionAccepted()
	l.metrics.InflightAdd(1)
	defer l.metrics.InflightAdd(-1)

	remote := conn.RemoteAddr().String()
	log := l.logger.With().Str("remote", remote).Logger()
	log.Info().Msg("connection established")

	data, err := l.read(conn)
	if err != nil {
		log.Warn().Err(err).Int("bytes", len(data)).Msg("read ended early")
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		l.metrics.Message(telemetry.OutcomeEmpty)
		return
	}

	log.Info().Int("bytes", len(data)).Msg("HL7 message received")
	l.handler(l.baseCtx, Payload{
		Remote:   "tcp://" + remote,
		Data:     data,
		Received: time.Now().UTC(),
	})
}

// read collects bytes until EOF, the size limit, or the deadline. A deadline
// is not an error: whatever arrived is the message.
func (l *Listener) read(conn net.Conn) ([]byte, error) {
	_ = conn.SetReadDeadline(time.Now().Add(l.cfg.ReadTimeout))
	data, err := io.ReadAll(io.LimitReader(conn, int64(l.cfg.MaxRead)))
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return data, nil
		}
		return data, err
	}
	return data, nil
}
