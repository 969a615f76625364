// Package health reports dependency readiness over HTTP and the standard
// gRPC health protocol.
package health

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/render"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Check pings one dependency.
type Check func(ctx context.Context) error

type Checker struct {
	log     *slog.Logger
	timeout time.Duration

	mu     sync.RWMutex
	checks map[string]Check
	down   bool
}

func NewChecker(log *slog.Logger, timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Checker{log: log, timeout: timeout, checks: map[string]Check{}}
}

func (c *Checker) Add(name string, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Shutdown makes every later report fail so load balancers drain the instance.
func (c *Checker) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.down = true
}

type Report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func (r Report) OK() bool { return r.Status == "ok" }

func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	down := c.down
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	checks := make(map[string]Check, len(c.checks))
	for k, v := range c.checks {
		checks[k] = v
	}
	c.mu.RUnlock()
	sort.Strings(names)

	rep := Report{Status: "ok", Checks: make(map[string]string, len(names))}
	if down {
		rep.Status = "shutting_down"
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	for _, name := range names {
		if err := checks[name](ctx); err != nil {
			rep.Checks[name] = err.Error()
			rep.Status = "degraded"
			continue
		}
		rep.Checks[name] = "ok"
	}
	return rep
}

// ServeHTTP answers 200 when every check passes and 503 otherwise.
func (c *Checker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rep := c.Run(r.Context())
	if !rep.OK() {
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, rep)
}

// GRPCServer exposes the checker through grpc.health.v1.
type GRPCServer struct {
	log     *slog.Logger
	checker *Checker
	health  *grpchealth.Server
	server  *grpc.Server
}

func NewGRPCServer(log *slog.Logger, checker *Checker, opts ...grpc.ServerOption) *GRPCServer {
	gs := grpc.NewServer(opts...)
	hs := grpchealth.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	return &GRPCServer{log: log, checker: checker, health: hs, server: gs}
}

// Serve listens on addr until ctx is done, refreshing the reported status
// every interval.
func (s *GRPCServer) Serve(ctx context.Context, addr string, interval time.Duration) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.ServeListener(ctx, lis, interval)
}

func (s *GRPCServer) ServeListener(ctx context.Context, lis net.Listener, interval time.Duration) error {
	s.refresh(ctx)

	errCh := make(chan error, 1)
	go func() { errCh <- s.server.Serve(lis) }()
	s.log.Info("grpc health listening", "addr", lis.Addr().String())

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			s.health.Shutdown()
			s.server.GracefulStop()
			return nil
		case err := <-errCh:
			return err
		case <-t.C:
			s.refresh(ctx)
		}
	}
}

func (s *GRPCServer) refresh(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if rep := s.checker.Run(ctx); !rep.OK() {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		s.log.Warn("health degraded", "checks", rep.Checks)
	}
	s.health.SetServingStatus("", status)
}
