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

	"quenc/internal/logging"
	"quenc/internal/queue"
	"quenc/internal/scan"
)

// Backend is the scheduler surface the RPC service drives.
type Backend interface {
	Enqueue(ctx context.Context, task *queue.Task) (string, error)
	List(ctx context.Context) ([]*queue.Task, error)
	Progress(id string) (queue.Snapshot, bool)
	AllProgress() []queue.Snapshot
	Cancel(ctx context.Context, id string) error
	Remove(ctx context.Context, id string) error
	Stats(ctx context.Context) (queue.Stats, error)
}

// TaskFactory builds a task with configured defaults for a discovered
// input file.
type TaskFactory func(input string) *queue.Task

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
func NewServer(ctx context.Context, path string, backend Backend, factory TaskFactory, logger *slog.Logger) (*Server, error) {
	if backend == nil {
		return nil, errors.New("ipc server requires a backend")
	}
	if factory == nil {
		return nil, errors.New("ipc server requires a task factory")
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

	rpcServer := rpc.NewServer()
	svc := &service{
		backend: backend,
		factory: factory,
		scanner: scan.NewScanner(nil),
		logger:  logging.WithComponent(logger, "ipc"),
		socket:  path,
	}
	if err := rpcServer.RegisterName("Quenc", svc); err != nil {
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

// Serve starts accepting RPC connections until the context is
// cancelled.
func (s *Server) Serve() {
	s.logger.Debug("ipc server listening", logging.String("socket", s.path))
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
				s.logger.Warn("accept failed", logging.Error(err))
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
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err))
	}
}

type service struct {
	backend Backend
	factory TaskFactory
	scanner *scan.Scanner
	logger  *slog.Logger
	socket  string
}

func (s *service) Submit(req SubmitRequest, resp *SubmitResponse) error {
	ctx, cancel := rpcContext()
	defer cancel()
	task := req.Task
	id, err := s.backend.Enqueue(ctx, &task)
	if err != nil {
		return err
	}
	s.logger.Info("task submitted",
		logging.String(logging.FieldTaskID, id),
		logging.String("input", task.Input))
	resp.ID = id
	return nil
}

func (s *service) List(_ ListRequest, resp *ListResponse) error {
	ctx, cancel := rpcContext()
	defer cancel()
	tasks, err := s.backend.List(ctx)
	if err != nil {
		return err
	}
	resp.Tasks = make([]TaskSummary, 0, len(tasks))
	for _, task := range tasks {
		resp.Tasks = append(resp.Tasks, TaskSummary{
			ID:           task.ID,
			Input:        task.Input,
			Output:       task.Output,
			Encoder:      task.Encoder,
			Mode:         string(task.Mode),
			Status:       string(task.Status),
			ErrorMessage: task.ErrorMessage,
			ResultCRF:    task.ResultCRF,
			ResultScore:  task.ResultScore,
			TargetMet:    task.TargetMet,
			CreatedAt:    task.CreatedAt.Format(time.RFC3339),
			UpdatedAt:    task.UpdatedAt.Format(time.RFC3339),
		})
	}
	return nil
}

func (s *service) Progress(req ProgressRequest, resp *ProgressResponse) error {
	snapshot, found := s.backend.Progress(req.ID)
	resp.Snapshot = snapshot
	resp.Found = found
	return nil
}

func (s *service) AllProgress(_ AllProgressRequest, resp *AllProgressResponse) error {
	resp.Snapshots = s.backend.AllProgress()
	return nil
}

func (s *service) Scan(req ScanRequest, resp *ScanResponse) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	err := s.scanner.Walk(req.Root, func(path string) error {
		task := s.factory(path)
		id, enqueueErr := s.backend.Enqueue(ctx, task)
		if enqueueErr != nil {
			if errors.Is(enqueueErr, queue.ErrDuplicateTask) {
				resp.Skipped = append(resp.Skipped, path)
				return nil
			}
			return enqueueErr
		}
		resp.IDs = append(resp.IDs, id)
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("scan complete",
		logging.String("root", req.Root),
		logging.Int("enqueued", len(resp.IDs)),
		logging.Int("skipped", len(resp.Skipped)))
	return nil
}

func (s *service) ScanProgress(_ ScanProgressRequest, resp *ScanProgressResponse) error {
	resp.Total = s.scanner.Progress().Total()
	return nil
}

func (s *service) Remove(req RemoveRequest, resp *RemoveResponse) error {
	ctx, cancel := rpcContext()
	defer cancel()
	if err := s.backend.Remove(ctx, req.ID); err != nil {
		return err
	}
	resp.Removed = true
	return nil
}

func (s *service) Cancel(req CancelRequest, resp *CancelResponse) error {
	// Cancellation waits for the task's teardown; give it room.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	if err := s.backend.Cancel(ctx, req.ID); err != nil {
		return err
	}
	resp.Cancelled = true
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	ctx, cancel := rpcContext()
	defer cancel()
	stats, err := s.backend.Stats(ctx)
	if err != nil {
		return err
	}
	resp.Running = true
	resp.PID = os.Getpid()
	resp.SocketPath = s.socket
	resp.QueueStats = map[string]int{
		string(queue.StatusQueued):    stats.Queued,
		string(queue.StatusRunning):   stats.Running,
		string(queue.StatusCompleted): stats.Completed,
		string(queue.StatusFailed):    stats.Failed,
		string(queue.StatusCancelled): stats.Cancelled,
	}
	return nil
}

func rpcContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}
