package download

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"ollama-chat-be/internal/entity"
	"ollama-chat-be/internal/pkg/logger"
	"ollama-chat-be/pkg/apperror"
	"ollama-chat-be/pkg/events"

	"github.com/google/uuid"
)

const logModule = "DOWNLOAD"

// DefaultRetention is how long a finished job stays visible to pollers.
const DefaultRetention = 30 * time.Second

var modelNamePattern = regexp.MustCompile(`^[A-Za-z0-9._:-]+$`)

// Option configures a Supervisor.
type Option func(*Supervisor)

func WithRetention(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.retention = d
		}
	}
}

func WithStrictNames(strict bool) Option {
	return func(s *Supervisor) { s.strict = strict }
}

func WithClock(now func() time.Time) Option {
	return func(s *Supervisor) { s.now = now }
}

func WithPublisher(p events.Publisher) Option {
	return func(s *Supervisor) {
		if p != nil {
			s.publisher = p
		}
	}
}

func WithLogger(l logger.ILogger) Option {
	return func(s *Supervisor) {
		if l != nil {
			s.logger = l
		}
	}
}

type job struct {
	id         string
	sessionID  string
	modelName  string
	status     entity.DownloadStatus
	progress   int
	message    string
	startedAt  time.Time
	finishedAt *time.Time
	lastLine   string

	// Set by Cancel; the task keeps draining output but stops recording it.
	cancelled atomic.Bool
}

func (j *job) snapshot() entity.DownloadJob {
	return entity.DownloadJob{
		Id:              j.id,
		SessionId:       j.sessionID,
		ModelName:       j.modelName,
		Status:          j.status,
		ProgressPercent: j.progress,
		Message:         j.message,
		StartedAt:       j.startedAt,
		FinishedAt:      j.finishedAt,
	}
}

// Supervisor owns the job table and the background pull tasks. It allows at
// most one live job per session.
type Supervisor struct {
	mu   sync.Mutex
	jobs map[string]*job

	runner    Runner
	retention time.Duration
	strict    bool
	now       func() time.Time
	publisher events.Publisher
	logger    logger.ILogger

	tasks sync.WaitGroup
}

func NewSupervisor(runner Runner, opts ...Option) *Supervisor {
	s := &Supervisor{
		jobs:      make(map[string]*job),
		runner:    runner,
		retention: DefaultRetention,
		strict:    true,
		now:       time.Now,
		publisher: events.NopPublisher{},
		logger:    logger.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ValidateModelName applies the strict-mode character set check.
func (s *Supervisor) ValidateModelName(modelName string) error {
	if modelName == "" {
		return apperror.InvalidInput("Model name is required")
	}
	if s.strict && !modelNamePattern.MatchString(modelName) {
		return apperror.InvalidInput("Invalid model name %q", modelName)
	}
	return nil
}

// Start registers a downloading job for the session and launches the pull in
// the background. Failures after launch are recorded on the job, not returned.
func (s *Supervisor) Start(ctx context.Context, sessionID, modelName string) (entity.DownloadJob, error) {
	modelName = strings.TrimSpace(modelName)
	if err := s.ValidateModelName(modelName); err != nil {
		return entity.DownloadJob{}, err
	}

	s.mu.Lock()
	if existing, ok := s.jobs[sessionID]; ok && !existing.status.IsTerminal() {
		s.mu.Unlock()
		return entity.DownloadJob{}, apperror.Conflict("A download of %s is already in progress", existing.modelName)
	}
	j := &job{
		id:        uuid.NewString(),
		sessionID: sessionID,
		modelName: modelName,
		status:    entity.DownloadStatusDownloading,
		message:   fmt.Sprintf("Starting download of %s...", modelName),
		startedAt: s.now(),
	}
	// Reserve the slot before launching so a racing Start sees Conflict.
	s.jobs[sessionID] = j
	snap := j.snapshot()
	s.mu.Unlock()

	proc, err := s.runner.Start(modelName)
	if err != nil {
		s.mu.Lock()
		if s.jobs[sessionID] == j {
			delete(s.jobs, sessionID)
		}
		s.mu.Unlock()
		s.logger.Error(logModule, "Failed to launch pull", map[string]interface{}{
			"session_id": sessionID,
			"model":      modelName,
			"error":      err.Error(),
		})
		if errors.Is(err, ErrToolUnavailable) {
			return entity.DownloadJob{}, apperror.Upstream(err, "Model pull tool is not available")
		}
		return entity.DownloadJob{}, apperror.Upstream(err, "Failed to start download of %s", modelName)
	}

	s.logger.Info(logModule, "Download started", map[string]interface{}{
		"session_id": sessionID,
		"job_id":     j.id,
		"model":      modelName,
	})
	s.publish(ctx, events.TypeDownloadStarted, snap)

	s.tasks.Add(1)
	go s.run(j, proc)

	return snap, nil
}

// run drains the process output until exit. It never touches the request
// that started it.
func (s *Supervisor) run(j *job, proc Process) {
	defer s.tasks.Done()
	ctx := context.Background()

	scanner := bufio.NewScanner(proc.Output())
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(scanOutputLines)

	for scanner.Scan() {
		line := CleanLine(DecodeLine(scanner.Bytes()))
		if line == "" {
			continue
		}
		if snap, changed := s.observe(j, line); changed {
			s.publish(ctx, eventTypeFor(snap), snap)
		}
	}
	if err := scanner.Err(); err != nil {
		s.logger.Warn(logModule, "Output stream read failed", map[string]interface{}{
			"job_id": j.id,
			"error":  err.Error(),
		})
		// Keep the pipe drained or the child blocks on write and never exits.
		_, _ = io.Copy(io.Discard, proc.Output())
	}

	code, waitErr := proc.Wait()
	if snap, changed := s.finish(j, code, waitErr); changed {
		s.publish(ctx, eventTypeFor(snap), snap)
	}
}

// observe applies one output line. Progress never moves backwards, a line that
// would lower it leaves the message alone too, and only an explicit success
// signal completes the job from here.
func (s *Supervisor) observe(j *job, line string) (entity.DownloadJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j.lastLine = line
	if j.cancelled.Load() || j.status != entity.DownloadStatusDownloading {
		return entity.DownloadJob{}, false
	}

	ev, ok := ParseProgressLine(line)
	if !ok {
		return entity.DownloadJob{}, false
	}

	before := j.progress
	if ev.Completed {
		now := s.now()
		j.status = entity.DownloadStatusCompleted
		j.progress = 100
		j.message = fmt.Sprintf("Successfully downloaded %s", j.modelName)
		j.finishedAt = &now
		return j.snapshot(), true
	}

	if ev.Percent < j.progress {
		return entity.DownloadJob{}, false
	}
	j.progress = ev.Percent
	j.message = ev.Message
	return j.snapshot(), j.progress != before
}

func (s *Supervisor) finish(j *job, code int, waitErr error) (entity.DownloadJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if j.cancelled.Load() || j.status != entity.DownloadStatusDownloading {
		return entity.DownloadJob{}, false
	}

	now := s.now()
	j.finishedAt = &now
	if code == 0 && waitErr == nil {
		j.status = entity.DownloadStatusCompleted
		j.progress = 100
		j.message = fmt.Sprintf("Successfully downloaded %s", j.modelName)
		s.logger.Info(logModule, "Download completed", map[string]interface{}{
			"job_id": j.id,
			"model":  j.modelName,
		})
		return j.snapshot(), true
	}

	j.status = entity.DownloadStatusError
	j.progress = 0
	diagnostic := fmt.Sprintf("exit code %d", code)
	if waitErr != nil {
		diagnostic = waitErr.Error()
	}
	j.message = fmt.Sprintf("Download failed (%s)", diagnostic)
	if j.lastLine != "" {
		j.message += ": " + j.lastLine
	}
	s.logger.Warn(logModule, "Download failed", map[string]interface{}{
		"job_id":    j.id,
		"model":     j.modelName,
		"exit_code": code,
		"last_line": j.lastLine,
	})
	return j.snapshot(), true
}

// Poll returns the session's job. Finished jobs past the retention window
// are dropped on this read and reported as absent.
func (s *Supervisor) Poll(sessionID string) (entity.DownloadJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[sessionID]
	if !ok {
		return entity.DownloadJob{}, false
	}
	if s.expired(j) {
		delete(s.jobs, sessionID)
		return entity.DownloadJob{}, false
	}
	return j.snapshot(), true
}

// Cancel forgets the session's job. The pull process is left running; its
// output is drained and ignored.
func (s *Supervisor) Cancel(ctx context.Context, sessionID string) (entity.DownloadJob, error) {
	s.mu.Lock()
	j, ok := s.jobs[sessionID]
	if !ok {
		s.mu.Unlock()
		return entity.DownloadJob{}, apperror.NotFound("No download in progress")
	}
	j.cancelled.Store(true)
	delete(s.jobs, sessionID)
	snap := j.snapshot()
	s.mu.Unlock()

	snap.Message = fmt.Sprintf("Download of %s cancelled", snap.ModelName)
	s.logger.Info(logModule, "Download cancelled", map[string]interface{}{
		"session_id": sessionID,
		"job_id":     snap.Id,
	})
	s.publish(ctx, events.TypeDownloadCancelled, snap)
	return snap, nil
}

// PurgeFinished drops every expired terminal job and returns how many went.
func (s *Supervisor) PurgeFinished() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	purged := 0
	for id, j := range s.jobs {
		if s.expired(j) {
			delete(s.jobs, id)
			purged++
		}
	}
	return purged
}

// Forget drops a session's job record, e.g. when the session is evicted,
// and returns the dropped job's id.
func (s *Supervisor) Forget(sessionID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[sessionID]
	if !ok {
		return "", false
	}
	j.cancelled.Store(true)
	delete(s.jobs, sessionID)
	return j.id, true
}

// ActiveCount reports jobs still downloading.
func (s *Supervisor) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, j := range s.jobs {
		if j.status == entity.DownloadStatusDownloading {
			n++
		}
	}
	return n
}

// Wait blocks until every background task has returned or ctx is done.
func (s *Supervisor) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.tasks.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// expired reports a terminal job that has been visible for the whole
// retention window, measured from both start and finish. Caller holds s.mu.
func (s *Supervisor) expired(j *job) bool {
	if !j.status.IsTerminal() {
		return false
	}
	now := s.now()
	if now.Sub(j.startedAt) <= s.retention {
		return false
	}
	return j.finishedAt == nil || now.Sub(*j.finishedAt) > s.retention
}

func (s *Supervisor) publish(ctx context.Context, eventType string, snap entity.DownloadJob) {
	evt := events.NewDownloadEvent(eventType, snap, s.now())
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.logger.Warn(logModule, "Failed to publish download event", map[string]interface{}{
			"type":  eventType,
			"error": err.Error(),
		})
	}
}

func eventTypeFor(snap entity.DownloadJob) string {
	switch snap.Status {
	case entity.DownloadStatusCompleted:
		return events.TypeDownloadCompleted
	case entity.DownloadStatusError:
		return events.TypeDownloadFailed
	default:
		return events.TypeDownloadProgress
	}
}
