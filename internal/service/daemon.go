// Package service provides the daemon lifecycle: PID file, HTTP listener,
// signal handling and ordered shutdown.
package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/promptline/internal/config"
)

const shutdownTimeout = 10 * time.Second

// Daemon manages the service lifecycle.
type Daemon struct {
	cfg       *config.Config
	logger    arbor.ILogger
	server    *http.Server
	listener  net.Listener
	stopCh    chan struct{}
	stoppedCh chan struct{}
	closers   []func() error
	mu        sync.Mutex
	running   bool
	stopOnce  sync.Once
}

// NewDaemon creates a new daemon instance.
func NewDaemon(cfg *config.Config, logger arbor.ILogger) *Daemon {
	return &Daemon{
		cfg:       cfg,
		logger:    logger,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// OnShutdown registers fn to run after the HTTP server stops. Functions run
// in reverse registration order.
func (d *Daemon) OnShutdown(fn func() error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closers = append(d.closers, fn)
}

// Start writes the PID file and serves handler on the configured address.
func (d *Daemon) Start(handler http.Handler) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return errors.New("daemon already running")
	}

	if err := d.cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	ln, err := net.Listen("tcp", d.cfg.Address())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", d.cfg.Address(), err)
	}
	d.listener = ln

	if err := d.writePID(); err != nil {
		ln.Close()
		return fmt.Errorf("write PID: %w", err)
	}

	// No WriteTimeout: the event stream is long-lived.
	d.server = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	d.running = true

	go func() {
		d.logger.Info().Str("address", ln.Addr().String()).Msg("Starting server")
		if err := d.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.logger.Error().Err(err).Msg("Server error")
		}
	}()

	return nil
}

// Addr returns the address the daemon listens on, or "" before Start.
func (d *Daemon) Addr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listener == nil {
		return ""
	}
	return d.listener.Addr().String()
}

// Wait blocks until a signal arrives or Stop is called, then shuts down.
func (d *Daemon) Wait() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		d.logger.Info().Str("signal", sig.String()).Msg("Received signal, shutting down")
	case <-d.stopCh:
		d.logger.Info().Msg("Stop requested, shutting down")
	}

	d.shutdown()
}

// Stop signals Wait to shut down and blocks until it has.
func (d *Daemon) Stop() {
	d.mu.Lock()
	running := d.running
	d.mu.Unlock()
	if !running {
		return
	}

	d.stopOnce.Do(func() { close(d.stopCh) })
	<-d.stoppedCh
}

func (d *Daemon) shutdown() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if d.server != nil {
		if err := d.server.Shutdown(ctx); err != nil {
			d.logger.Warn().Err(err).Msg("Server shutdown error")
		}
	}

	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			d.logger.Warn().Err(err).Msg("Shutdown hook failed")
		}
	}

	d.removePID()
	d.running = false
	close(d.stoppedCh)
}

func (d *Daemon) writePID() error {
	return pidFile(d.cfg.PIDPath()).write(os.Getpid())
}

func (d *Daemon) removePID() {
	pidFile(d.cfg.PIDPath()).remove()
}

// pidFile is the path of the file holding the daemon's process ID.
type pidFile string

func (p pidFile) write(pid int) error {
	if err := os.MkdirAll(filepath.Dir(string(p)), 0755); err != nil {
		return fmt.Errorf("create PID directory: %w", err)
	}
	return os.WriteFile(string(p), []byte(strconv.Itoa(pid)), 0644)
}

func (p pidFile) read() (int, bool) {
	data, err := os.ReadFile(string(p))
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

func (p pidFile) remove() {
	_ = os.Remove(string(p))
}

// alive reports whether pid names a live process. Signal 0 only probes.
func alive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}

// IsRunning reports whether a daemon owns the PID file. A file that is
// unreadable or names a dead process is removed.
func IsRunning(cfg *config.Config) (bool, int) {
	p := pidFile(cfg.PIDPath())
	if _, err := os.Stat(string(p)); err != nil {
		return false, 0
	}

	pid, ok := p.read()
	if !ok || !alive(pid) {
		p.remove()
		return false, 0
	}
	return true, pid
}

// stopGrace bounds how long StopRunning waits after SIGTERM before killing.
var stopGrace = 3 * time.Second

// StopRunning sends SIGTERM to the running daemon and kills it if it is
// still alive after stopGrace.
func StopRunning(cfg *config.Config) error {
	running, pid := IsRunning(cfg)
	if !running {
		return errors.New("daemon not running")
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process: %w", err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("send signal: %w", err)
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(stopGrace)
	for {
		select {
		case <-ticker.C:
			if !alive(pid) {
				pidFile(cfg.PIDPath()).remove()
				return nil
			}
		case <-deadline:
			if err := process.Kill(); err != nil {
				return fmt.Errorf("kill process: %w", err)
			}
			pidFile(cfg.PIDPath()).remove()
			return nil
		}
	}
}
