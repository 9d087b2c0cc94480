// Listener/Supervisor: binds the proxy's TCP listener, spawns a Handler
// goroutine per accepted connection, and orchestrates graceful shutdown.
//
// Grounded on the teacher's Server (accept loop, watchShutdown,
// drainConnections, sync.WaitGroup-joined handler goroutines) with the
// connection-limiting semaphore and TLS termination removed — this proxy
// never terminates TLS, it only fragments the ClientHello passing
// through it.
package proxy

import (
	"context"
	"net"
	"strings"
	"sync"
	"time"

	"dpiproxy/internal/blacklist"
	"dpiproxy/internal/config"
	"dpiproxy/internal/logging"
	"dpiproxy/internal/metrics"
	"dpiproxy/internal/registry"
	"dpiproxy/internal/ui"
)

// reapInterval is the periodic sweep cadence for completed pipe tasks.
// It is a soft bound on leak-visibility, not a correctness deadline:
// handlers already join both of their pipes directly before returning.
const reapInterval = 60 * time.Second

// Server is the Listener/Supervisor.
type Server struct {
	Config *config.Config
	deps   *Deps

	ln       net.Listener
	wg       sync.WaitGroup
	shutdown chan struct{}

	tasksMu  sync.Mutex
	tasks    map[uint64]<-chan struct{}
	nextTask uint64
}

// NewServer builds a Server wired to its Blacklist, Connection Registry,
// and log writers.
func NewServer(cfg *config.Config, bl *blacklist.Blacklist, reg *registry.Registry, logs *logging.Loggers) *Server {
	s := &Server{
		Config:   cfg,
		shutdown: make(chan struct{}),
		tasks:    make(map[uint64]<-chan struct{}),
	}
	s.deps = &Deps{
		Config:    cfg,
		Blacklist: bl,
		Registry:  reg,
		Logs:      logs,
		Track:     s.track,
	}
	return s
}

// track registers a pipe's completion channel with the reaper.
func (s *Server) track(done <-chan struct{}) {
	s.tasksMu.Lock()
	id := s.nextTask
	s.nextTask++
	s.tasks[id] = done
	s.tasksMu.Unlock()
}

// reap runs every reapInterval, dropping tracking entries for pipes that
// have already finished. It exists to bound memory under steady-state
// churn even though the handler's own joins are the primary cleanup path.
func (s *Server) reap() {
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.tasksMu.Lock()
			for id, done := range s.tasks {
				select {
				case <-done:
					delete(s.tasks, id)
				default:
				}
			}
			s.tasksMu.Unlock()
		case <-s.shutdown:
			return
		}
	}
}

// Start binds the listener and runs the accept loop. It blocks until
// shutdown is triggered via ctx or a fatal accept error occurs.
func (s *Server) Start(ctx context.Context) error {
	var err error
	s.ln, err = net.Listen("tcp", s.Config.Listen)
	if err != nil {
		return err
	}

	metricsAddr := s.Config.MetricsListen
	if strings.HasPrefix(metricsAddr, ":") {
		metricsAddr = "localhost" + metricsAddr
	}
	ui.LogStatus("info", "Metrics: http://"+metricsAddr+"/metrics")
	ui.LogStatus("info", "Listening: "+s.ln.Addr().String())

	go s.watchShutdown(ctx)
	go s.reap()

	for {
		select {
		case <-s.shutdown:
			return s.drainConnections()
		default:
		}

		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return s.drainConnections()
			default:
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					continue
				}
				return err
			}
		}

		s.wg.Add(1)
		go func(c net.Conn) {
			defer s.wg.Done()
			s.deps.HandleConnection(c)
		}(conn)
	}
}

// watchShutdown closes the listener and the shutdown channel once ctx is
// cancelled, unblocking the accept loop.
func (s *Server) watchShutdown(ctx context.Context) {
	<-ctx.Done()
	ui.LogStatus("warning", "shutdown signal received")
	close(s.shutdown)
	s.ln.Close()
}

// drainConnections waits for in-flight handler goroutines to finish,
// with a bounded timeout so shutdown cannot hang forever on a stalled
// origin.
func (s *Server) drainConnections() error {
	active := metrics.GetActiveConns()
	if active > 0 {
		ui.LogStatus("info", "draining active connections")
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		ui.LogStatus("success", "all connections drained")
	case <-time.After(30 * time.Second):
		ui.LogStatus("warning", "drain timeout reached, forcing shutdown")
	}
	return nil
}
