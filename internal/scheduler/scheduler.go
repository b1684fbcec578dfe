package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"quenc/internal/logging"
	"quenc/internal/queue"
)

// Outcome is what a dispatcher reports for a finished task.
type Outcome struct {
	CRF       int
	Score     float64
	TargetMet bool
}

// Dispatcher executes one task and streams progress snapshots.
type Dispatcher func(ctx context.Context, task *queue.Task, report func(queue.Snapshot)) (Outcome, error)

// Options configure a Scheduler.
type Options struct {
	MaxConcurrent int
	PollInterval  time.Duration
}

// Scheduler drives the queue.
type Scheduler struct {
	store       *queue.Store
	progress    *queue.ProgressTable
	dispatchers map[queue.Mode]Dispatcher
	slots       chan struct{}
	poll        time.Duration
	wake        chan struct{}
	log         *slog.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	done    map[string]chan struct{}
	wg      sync.WaitGroup
}

// New assembles a scheduler over store with one dispatcher per mode.
func New(store *queue.Store, dispatchers map[queue.Mode]Dispatcher, opts Options, logger *slog.Logger) *Scheduler {
	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = 1
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scheduler{
		store:       store,
		progress:    queue.NewProgressTable(),
		dispatchers: dispatchers,
		slots:       make(chan struct{}, opts.MaxConcurrent),
		poll:        opts.PollInterval,
		wake:        make(chan struct{}, 1),
		log:         logging.WithComponent(logger, "scheduler"),
		cancels:     make(map[string]context.CancelFunc),
		done:        make(map[string]chan struct{}),
	}
}

// Run polls for queued tasks until ctx is cancelled, then waits for
// running tasks to wind down.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		s.startQueued(ctx)
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return
		case <-ticker.C:
		case <-s.wake:
		}
	}
}

// startQueued launches queued tasks while slots are free.
func (s *Scheduler) startQueued(ctx context.Context) {
	for {
		select {
		case s.slots <- struct{}{}:
		default:
			return
		}

		task, err := s.store.NextQueued(ctx)
		if err != nil || task == nil {
			<-s.slots
			if err != nil && ctx.Err() == nil {
				s.log.Error("poll queue", logging.Error(err))
			}
			return
		}
		if err := s.store.UpdateStatus(ctx, task.ID, queue.StatusRunning, ""); err != nil {
			<-s.slots
			s.log.Error("start task", logging.String(logging.FieldTaskID, task.ID), logging.Error(err))
			return
		}

		taskCtx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		s.mu.Lock()
		s.cancels[task.ID] = cancel
		s.done[task.ID] = done
		s.mu.Unlock()

		s.wg.Add(1)
		go s.runTask(taskCtx, task, cancel, done)
	}
}

func (s *Scheduler) runTask(ctx context.Context, task *queue.Task, cancel context.CancelFunc, done chan struct{}) {
	defer func() {
		cancel()
		s.mu.Lock()
		delete(s.cancels, task.ID)
		delete(s.done, task.ID)
		s.mu.Unlock()
		s.progress.Drop(task.ID)
		close(done)
		<-s.slots
		s.wg.Done()
		s.kick()
	}()

	dispatcher, ok := s.dispatchers[task.Mode]
	if !ok {
		s.finish(task, Outcome{}, fmt.Errorf("no dispatcher for mode %q", task.Mode))
		return
	}

	s.log.Info("task started",
		logging.String(logging.FieldTaskID, task.ID),
		logging.String("input", task.Input),
		logging.String("mode", string(task.Mode)))

	outcome, err := dispatcher(ctx, task, func(snapshot queue.Snapshot) {
		snapshot.TaskID = task.ID
		s.progress.Set(snapshot)
	})
	s.finish(task, outcome, err)
}

// finish records the terminal status. Updates use a fresh context so
// daemon shutdown does not lose the transition.
func (s *Scheduler) finish(task *queue.Task, outcome Outcome, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch {
	case err == nil:
		if recordErr := s.store.RecordResult(ctx, task.ID, outcome.CRF, outcome.Score, outcome.TargetMet); recordErr != nil {
			s.log.Error("record result", logging.String(logging.FieldTaskID, task.ID), logging.Error(recordErr))
		}
		message := ""
		if !outcome.TargetMet {
			message = "quality target not reached; encoded at lowest crf"
		}
		if updateErr := s.store.UpdateStatus(ctx, task.ID, queue.StatusCompleted, message); updateErr != nil {
			s.log.Error("complete task", logging.String(logging.FieldTaskID, task.ID), logging.Error(updateErr))
		}
		s.log.Info("task completed",
			logging.String(logging.FieldTaskID, task.ID),
			logging.Int("crf", outcome.CRF),
			logging.Float64("score", outcome.Score),
			logging.Bool("target_met", outcome.TargetMet))
	case errors.Is(err, context.Canceled):
		if updateErr := s.store.UpdateStatus(ctx, task.ID, queue.StatusCancelled, ""); updateErr != nil {
			s.log.Error("cancel task", logging.String(logging.FieldTaskID, task.ID), logging.Error(updateErr))
		}
		s.log.Info("task cancelled", logging.String(logging.FieldTaskID, task.ID))
	default:
		if updateErr := s.store.UpdateStatus(ctx, task.ID, queue.StatusFailed, err.Error()); updateErr != nil {
			s.log.Error("fail task", logging.String(logging.FieldTaskID, task.ID), logging.Error(updateErr))
		}
		s.log.Error("task failed", logging.String(logging.FieldTaskID, task.ID), logging.Error(err))
	}
}

func (s *Scheduler) kick() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Enqueue validates and stores a task, assigning an id when absent.
func (s *Scheduler) Enqueue(ctx context.Context, task *queue.Task) (string, error) {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if err := s.store.Insert(ctx, task); err != nil {
		return "", err
	}
	s.kick()
	return task.ID, nil
}

// Cancel stops a running task and waits for its teardown, or marks a
// queued task cancelled.
func (s *Scheduler) Cancel(ctx context.Context, id string) error {
	s.mu.Lock()
	cancel, running := s.cancels[id]
	done := s.done[id]
	s.mu.Unlock()

	if running {
		cancel()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	task, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if task.Status != queue.StatusQueued {
		return fmt.Errorf("task %s is %s, nothing to cancel", id, task.Status)
	}
	return s.store.UpdateStatus(ctx, id, queue.StatusCancelled, "")
}

// Remove deletes a task that is not running.
func (s *Scheduler) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	_, running := s.cancels[id]
	s.mu.Unlock()
	if running {
		return fmt.Errorf("%w: %s", queue.ErrTaskRunning, id)
	}
	return s.store.Remove(ctx, id)
}

// List returns all tasks in creation order.
func (s *Scheduler) List(ctx context.Context) ([]*queue.Task, error) {
	return s.store.List(ctx)
}

// Progress returns the live snapshot for a task.
func (s *Scheduler) Progress(id string) (queue.Snapshot, bool) {
	return s.progress.Get(id)
}

// AllProgress returns every live snapshot.
func (s *Scheduler) AllProgress() []queue.Snapshot {
	return s.progress.All()
}

// Stats summarizes the queue.
func (s *Scheduler) Stats(ctx context.Context) (queue.Stats, error) {
	return s.store.Stats(ctx)
}
