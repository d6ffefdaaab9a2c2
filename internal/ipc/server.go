package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"log/slog"

	"screensolve/internal/daemon"
	"screensolve/internal/host"
	"screensolve/internal/logging"
	"screensolve/internal/logs"
	"screensolve/internal/pipeline"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// ServerOption configures a Server.
type ServerOption func(*service)

// WithShutdown registers fn to run after a Stop request has stopped the
// daemon. The daemon process uses it to exit its main loop.
func WithShutdown(fn func()) ServerOption {
	return func(s *service) { s.shutdown = fn }
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger, opts ...ServerOption) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	srv := &service{daemon: d, logger: logger.With(logging.String("component", "ipc")), ctx: ctx}
	for _, opt := range opts {
		opt(srv)
	}
	rpcServer := rpc.NewServer()
	if err := rpcServer.RegisterName(ServiceName, srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve accepts connections in the background until Close or until the
// server context ends. Each connection gets its own JSON-RPC codec.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	go func() {
		<-s.ctx.Done()
		_ = s.listener.Close()
	}()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for s.acceptOne() {
		}
	}()
}

// acceptOne serves a single connection and reports whether the accept loop
// should keep going.
func (s *Server) acceptOne() bool {
	conn, err := s.listener.Accept()
	if err != nil {
		if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
			return false
		}
		logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "CLI commands may not reach the daemon"),
			logging.String(logging.FieldErrorHint, "check permissions on the socket directory"))
		return true
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(conn))
	}()
	return true
}

// Close stops accepting and removes the socket file. Open connections are
// served until their clients hang up.
func (s *Server) Close() {
	s.cancel()
	_ = s.listener.Close()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.WarnWithContext(s.logger, "socket not removed", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "a stale socket is left behind"),
			logging.String(logging.FieldErrorHint, "delete the socket file by hand"))
	}
}

type service struct {
	daemon   *daemon.Daemon
	logger   *slog.Logger
	ctx      context.Context
	shutdown func()
}

func (s *service) Trigger(req TriggerRequest, resp *TriggerResponse) error {
	s.logger.Debug("trigger requested",
		logging.String(logging.FieldCommand, req.Command),
		logging.Bool("wait", req.Wait))
	summary, err := s.daemon.Trigger(s.ctx, req.Command, req.Wait)
	switch {
	case errors.Is(err, pipeline.ErrRunInFlight):
		resp.Busy = true
		resp.Message = "a run is already in progress"
		return nil
	case err != nil:
		return err
	}
	resp.Accepted = true
	if !req.Wait {
		resp.Message = "run started"
		return nil
	}
	resp.Message = summary.String()
	resp.Run = fromRunSummary(summary)
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	*resp = toStatusResponse(s.daemon.Status(s.ctx))
	return nil
}

func (s *service) Dismiss(req DismissRequest, resp *DismissResponse) error {
	count, err := s.daemon.DismissAll(host.SurfaceID(req.Surface))
	resp.Dismissed = count
	if err != nil {
		return err
	}
	s.logger.Info("overlay dismissed via IPC",
		logging.String(logging.FieldEventType, "overlay_dismiss"),
		logging.String(logging.FieldSurface, req.Surface),
		logging.Int("dismissed", count))
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.logger.Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	s.logger.Info("daemon stopped via IPC",
		logging.String(logging.FieldEventType, "daemon_stop"))
	if s.shutdown != nil {
		// Give the reply time to reach the client.
		time.AfterFunc(100*time.Millisecond, s.shutdown)
	}
	return nil
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	path := s.daemon.LogPath()
	if path == "" {
		return nil
	}
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if wait <= 0 && req.Follow {
		wait = time.Second
	}
	ctx, cancel := context.WithTimeout(s.ctx, wait+500*time.Millisecond)
	defer cancel()
	chunk, err := logs.Tail(ctx, path, logs.Options{
		Offset: req.Offset,
		Limit:  req.Limit,
		Follow: req.Follow,
		Wait:   wait,
		Match:  req.Match,
	})
	resp.Lines = chunk.Lines
	resp.Offset = chunk.Offset
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}
