package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"splicer/internal/daemon"
	"splicer/internal/logging"
	"splicer/internal/logs"
	"splicer/internal/splice"
)

// ServiceName is the JSON-RPC service registered by the server.
const ServiceName = "Splicer"

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

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	rpcServer := rpc.NewServer()
	if err := rpcServer.RegisterName(ServiceName, &service{daemon: d, logger: logger, ctx: serverCtx}); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the server is closed.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "control clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale control socket may block future starts"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	s.logger.Debug("daemon start requested")
	if err := s.daemon.Start(s.ctx); err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = "daemon started"
	s.logger.Info("daemon started via IPC", logging.String(logging.FieldEventType, "daemon_start"))
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.logger.Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	s.logger.Info("daemon stopped via IPC", logging.String(logging.FieldEventType, "daemon_stop"))
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = status.PID
	resp.RunID = status.RunID
	if !status.StartedAt.IsZero() {
		resp.StartedAt = status.StartedAt.UTC().Format(time.RFC3339)
	}
	resp.LockPath = status.LockFilePath
	resp.EventLogPath = status.EventLogPath
	resp.Target = status.Target
	resp.Triggers = status.Triggers
	resp.ClockState = status.ClockState
	resp.ClockAvailable = status.ClockAvailable
	resp.RunningTimeMS = status.RunningTime.Milliseconds()
	resp.Window = status.Window.State.String()
	if status.Window.State == splice.WindowActive {
		resp.WindowStartID = uint32(status.Window.StartID)
		resp.WindowEndMS = status.Window.EndTime.Milliseconds()
	}
	resp.LastEventID = uint32(status.LastEventID)
	resp.SpliceInArmed = status.Armed
	resp.DroppedRequests = status.Dropped
	resp.DroppedRecords = status.RecorderDropped
	resp.SectionsWritten = status.Injector.Sections
	resp.PacketsWritten = status.Injector.Packets
	resp.BytesWritten = status.Injector.Bytes
	resp.Summary = status.Summary
	return nil
}

func (s *service) Trigger(req TriggerRequest, resp *TriggerResponse) error {
	err := s.daemon.ManualTrigger(
		time.Duration(req.LeadMillis)*time.Millisecond,
		time.Duration(req.DurationMillis)*time.Millisecond,
	)
	switch {
	case err == nil:
		resp.Accepted = true
		resp.Message = "splice-out queued"
		return nil
	case errors.Is(err, splice.ErrWindowActive), errors.Is(err, daemon.ErrNotRunning):
		resp.Message = err.Error()
		return nil
	default:
		return err
	}
}

func (s *service) Match(req MatchRequest, resp *MatchResponse) error {
	if err := s.daemon.ReportMatch(req.Reference); err != nil {
		if errors.Is(err, daemon.ErrNotRunning) {
			resp.Message = err.Error()
			return nil
		}
		return err
	}
	resp.Accepted = true
	resp.Message = "match queued"
	return nil
}

func (s *service) Pipeline(req PipelineRequest, resp *PipelineResponse) error {
	state, err := s.daemon.SetPipelineState(req.State)
	resp.State = state.String()
	return err
}

func (s *service) Events(req EventsRequest, resp *EventsResponse) error {
	entries, err := s.daemon.RecentEvents(s.ctx, req.Limit, req.Failed, req.AllRuns)
	if err != nil {
		return err
	}
	resp.Events = entries
	return nil
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	logPath := s.daemon.LogPath()
	if logPath == "" {
		resp.Offset = 0
		return nil
	}
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if wait <= 0 && req.Follow {
		wait = time.Second
	}
	ctx := s.ctx
	if req.Follow && wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, wait+500*time.Millisecond)
		defer cancel()
	}
	result, err := logs.Tail(ctx, logPath, logs.TailOptions{
		Offset:   req.Offset,
		Limit:    req.Limit,
		Follow:   req.Follow,
		Wait:     wait,
		Contains: req.Contains,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			resp.Offset = result.Offset
			return nil
		}
		return err
	}
	resp.Lines = result.Lines
	resp.Offset = result.Offset
	return nil
}

func (s *service) DatabaseHealth(_ DatabaseHealthRequest, resp *DatabaseHealthResponse) error {
	health, err := s.daemon.DatabaseHealth(s.ctx)
	resp.DBPath = health.DBPath
	resp.Exists = health.Exists
	resp.SizeBytes = health.SizeBytes
	resp.SchemaVersion = health.SchemaVersion
	resp.IntegrityOK = health.IntegrityOK
	return err
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}
