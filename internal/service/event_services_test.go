package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"ollama-chat-be/internal/dto"
	"ollama-chat-be/internal/entity"
	"ollama-chat-be/internal/pkg/logger"
	"ollama-chat-be/internal/repository/memory"
	"ollama-chat-be/pkg/download"
	"ollama-chat-be/pkg/events"
	"ollama-chat-be/pkg/llm"
	"ollama-chat-be/pkg/store"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMirror struct {
	mu      sync.Mutex
	jobs    map[string]entity.DownloadJob
	deleted []string
	getErr  error
}

func newFakeMirror() *fakeMirror {
	return &fakeMirror{jobs: map[string]entity.DownloadJob{}}
}

// Save follows the same replace rule as the Redis mirror.
func (m *fakeMirror) Save(ctx context.Context, job entity.DownloadJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var current *entity.DownloadJob
	if prev, ok := m.jobs[job.SessionId]; ok {
		current = &prev
	}
	if job.Supersedes(current) {
		m.jobs[job.SessionId] = job
	}
	return nil
}

func (m *fakeMirror) Get(ctx context.Context, sessionId string) (*entity.DownloadJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	job, ok := m.jobs[sessionId]
	if !ok {
		return nil, nil
	}
	return &job, nil
}

func (m *fakeMirror) Delete(ctx context.Context, sessionId string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, sessionId)
	m.deleted = append(m.deleted, sessionId)
	return nil
}

// pullProcess replays output then exits with code once released.
type pullProcess struct {
	output io.Reader
	code   int
	exit   chan struct{}
}

func (p *pullProcess) Output() io.Reader { return p.output }
func (p *pullProcess) Wait() (int, error) {
	if p.exit != nil {
		<-p.exit
	}
	return p.code, nil
}

type pullRunner struct {
	mu    sync.Mutex
	procs map[string]download.Process
}

func (r *pullRunner) Start(modelName string) (download.Process, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.procs[modelName], nil
}

type unavailableRunner struct{}

func (unavailableRunner) Start(string) (download.Process, error) {
	return nil, download.ErrToolUnavailable
}

type fakeDownloads struct {
	forgotten []string
	purged    int
}

func (d *fakeDownloads) Start(context.Context, string, *dto.StartDownloadRequest) (*dto.DownloadJobResponse, error) {
	return nil, errors.New("not used")
}
func (d *fakeDownloads) Poll(context.Context, string) *dto.DownloadJobResponse {
	return dto.IdleDownload()
}
func (d *fakeDownloads) Cancel(context.Context, string) (*dto.DownloadJobResponse, error) {
	return nil, errors.New("not used")
}
func (d *fakeDownloads) Forget(_ context.Context, ids ...string) {
	d.forgotten = append(d.forgotten, ids...)
}
func (d *fakeDownloads) PurgeFinished(context.Context) int { return d.purged }
func (d *fakeDownloads) IsRetired(string) bool             { return false }

func busMessage(t *testing.T, evt events.BaseEvent) *message.Message {
	t.Helper()
	payload, err := json.Marshal(evt)
	require.NoError(t, err)
	return message.NewMessage(watermill.NewUUID(), payload)
}

func TestConsumer_MirrorsDownloadEvents(t *testing.T) {
	ctx := context.Background()
	mirror := newFakeMirror()
	forwarder := &recordingPublisher{}
	backend := &fakeBackend{models: []llm.ModelInfo{{Name: "llama3:8b"}}}
	models := newModelService(backend)
	_, _ = models.Catalog(ctx)

	cs := NewConsumerService(nil, logger.NewNopLogger(), forwarder, mirror, nil, models).(*consumerService)

	job := entity.DownloadJob{
		Id:              "job-1",
		SessionId:       "s1",
		ModelName:       "phi3",
		Status:          entity.DownloadStatusDownloading,
		ProgressPercent: 42,
		StartedAt:       time.Now().UTC(),
	}
	cs.processMessage(ctx, busMessage(t, events.NewDownloadEvent(events.TypeDownloadProgress, job, time.Now())))

	saved, err := mirror.Get(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, 42, saved.ProgressPercent)
	assert.Equal(t, "phi3", saved.ModelName)

	job.Status = entity.DownloadStatusCompleted
	job.ProgressPercent = 100
	cs.processMessage(ctx, busMessage(t, events.NewDownloadEvent(events.TypeDownloadCompleted, job, time.Now())))

	// completion drops the cached catalog
	_, _ = models.Catalog(ctx)
	assert.Equal(t, 2, backend.listCalls)

	cs.processMessage(ctx, busMessage(t, events.NewDownloadEvent(events.TypeDownloadCancelled, job, time.Now())))
	assert.Equal(t, []string{"s1"}, mirror.deleted)

	assert.Len(t, forwarder.events, 3)
}

func TestConsumer_SessionsEvictedForgetsJobs(t *testing.T) {
	downloads := &fakeDownloads{}
	cs := NewConsumerService(nil, logger.NewNopLogger(), nil, nil, downloads, nil).(*consumerService)

	evt := events.BaseEvent{
		Type:       events.TypeSessionsEvicted,
		Data:       map[string]interface{}{"session_ids": []string{"a", "b"}},
		OccurredAt: time.Now(),
	}
	cs.processMessage(context.Background(), busMessage(t, evt))

	assert.Equal(t, []string{"a", "b"}, downloads.forgotten)
}

func TestConsumer_MalformedMessageIsAcked(t *testing.T) {
	cs := NewConsumerService(nil, logger.NewNopLogger(), nil, nil, nil, nil).(*consumerService)
	msg := message.NewMessage(watermill.NewUUID(), []byte("{broken"))

	cs.processMessage(context.Background(), msg)

	select {
	case <-msg.Acked():
	default:
		t.Fatal("message was not acked")
	}
}

func TestConsumer_ConsumeFromBus(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := events.NewBus("", nil)
	defer bus.Close()
	downloads := &fakeDownloads{}
	forwarder := &recordingPublisher{}
	cs := NewConsumerService(bus, logger.NewNopLogger(), forwarder, nil, downloads, nil)
	require.NoError(t, cs.Consume(ctx))

	require.NoError(t, bus.Publish(ctx, events.BaseEvent{
		Type:       events.TypeCharactersReloaded,
		Data:       map[string]interface{}{"count": 4},
		OccurredAt: time.Now(),
	}))

	assert.Eventually(t, func() bool {
		return len(forwarder.ofType(events.TypeCharactersReloaded)) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestSessionIdsFromPayload(t *testing.T) {
	assert.Equal(t, []string{"a"}, sessionIdsFromPayload(map[string]interface{}{"session_ids": []string{"a"}}))
	assert.Equal(t, []string{"a", "b"}, sessionIdsFromPayload(map[string]interface{}{"session_ids": []interface{}{"a", 3, "b"}}))
	assert.Nil(t, sessionIdsFromPayload(map[string]interface{}{}))
}

func TestDownloadService_PollFallsBackToMirror(t *testing.T) {
	ctx := context.Background()
	mirror := newFakeMirror()
	svc := NewDownloadService(download.NewSupervisor(unavailableRunner{}), mirror, logger.NewNopLogger())

	assert.Equal(t, dto.IdleDownload(), svc.Poll(ctx, "s1"))

	require.NoError(t, mirror.Save(ctx, entity.DownloadJob{
		Id:              "job-9",
		SessionId:       "s1",
		ModelName:       "phi3",
		Status:          entity.DownloadStatusDownloading,
		ProgressPercent: 15,
	}))
	res := svc.Poll(ctx, "s1")
	assert.Equal(t, "phi3", res.ModelName)
	assert.Equal(t, 15, res.Progress)

	mirror.getErr = errors.New("redis down")
	assert.Equal(t, dto.IdleDownload(), svc.Poll(ctx, "s1"))

	svc.Forget(ctx, "s1")
	assert.Equal(t, []string{"s1"}, mirror.deleted)
}

func TestDownloadService_StartToolUnavailable(t *testing.T) {
	svc := NewDownloadService(download.NewSupervisor(unavailableRunner{}), nil, logger.NewNopLogger())

	_, err := svc.Start(context.Background(), "s1", &dto.StartDownloadRequest{ModelName: "phi3"})
	assert.Error(t, err)
	assert.Equal(t, dto.IdleDownload(), svc.Poll(context.Background(), "s1"))
}

func TestJanitor_Sweep(t *testing.T) {
	sessions := memory.NewSessionRepository(2, 1, 0)
	for _, id := range []string{"a", "b", "c"} {
		id := id
		sessions.GetOrCreate(id, func() *store.Session { return store.NewSession(id, "", "") })
	}
	publisher := &recordingPublisher{}
	downloads := &fakeDownloads{purged: 1}

	NewJanitorService(sessions, downloads, publisher, time.Minute, logger.NewNopLogger()).Sweep(context.Background())

	assert.Equal(t, 2, sessions.Count())
	evicted := publisher.ofType(events.TypeSessionsEvicted)
	require.Len(t, evicted, 1)
	assert.Equal(t, []string{"a"}, evicted[0].Payload()["session_ids"])
}

type downloadPipeline struct {
	bus        *events.Bus
	supervisor *download.Supervisor
	service    IDownloadService
	mirror     *fakeMirror
	forwarder  *recordingPublisher
}

// newDownloadPipeline wires supervisor, bus, consumer and mirror the way the
// container does.
func newDownloadPipeline(t *testing.T, runner download.Runner) *downloadPipeline {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	bus := events.NewBus("", nil)
	t.Cleanup(func() { _ = bus.Close() })

	p := &downloadPipeline{
		bus:        bus,
		supervisor: download.NewSupervisor(runner, download.WithPublisher(bus)),
		mirror:     newFakeMirror(),
		forwarder:  &recordingPublisher{},
	}
	p.service = NewDownloadService(p.supervisor, p.mirror, logger.NewNopLogger())
	require.NoError(t, NewConsumerService(bus, logger.NewNopLogger(), p.forwarder, p.mirror, p.service, nil).Consume(ctx))
	return p
}

func (p *downloadPipeline) wait(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.supervisor.Wait(ctx))
}

func TestDownloadPipeline_MirrorEndsInTerminalState(t *testing.T) {
	const pulls = 20
	runner := &pullRunner{procs: map[string]download.Process{}}
	for i := 0; i < pulls; i++ {
		var lines []string
		for mb := 1; mb <= 94; mb++ {
			lines = append(lines, fmt.Sprintf("pulling 8eeb52dfb3bb... %d.0MB/100.0MB", mb))
		}
		runner.procs[fmt.Sprintf("model-%d", i)] = &pullProcess{output: strings.NewReader(strings.Join(lines, "\n"))}
	}
	p := newDownloadPipeline(t, runner)

	ctx := context.Background()
	for i := 0; i < pulls; i++ {
		_, err := p.service.Start(ctx, fmt.Sprintf("s%d", i), &dto.StartDownloadRequest{ModelName: fmt.Sprintf("model-%d", i)})
		require.NoError(t, err)
	}
	p.wait(t)

	assert.Eventually(t, func() bool {
		return len(p.forwarder.ofType(events.TypeDownloadCompleted)) == pulls
	}, 5*time.Second, 10*time.Millisecond)
	// progress events delivered after the completion still land in the mirror
	time.Sleep(50 * time.Millisecond)

	for i := 0; i < pulls; i++ {
		job, err := p.mirror.Get(ctx, fmt.Sprintf("s%d", i))
		require.NoError(t, err)
		require.NotNil(t, job)
		assert.Equal(t, entity.DownloadStatusCompleted, job.Status, "session s%d", i)
		assert.Equal(t, 100, job.ProgressPercent, "session s%d", i)
	}
}

func TestDownloadPipeline_CancelIsImmediatelyIdle(t *testing.T) {
	r, w := io.Pipe()
	proc := &pullProcess{output: r, exit: make(chan struct{})}
	p := newDownloadPipeline(t, &pullRunner{procs: map[string]download.Process{"phi3": proc}})

	ctx := context.Background()
	_, err := p.service.Start(ctx, "s1", &dto.StartDownloadRequest{ModelName: "phi3"})
	require.NoError(t, err)

	_, err = io.WriteString(w, "pulling manifest\n")
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		job, _ := p.mirror.Get(ctx, "s1")
		return job != nil && job.ProgressPercent == 10
	}, time.Second, 5*time.Millisecond)

	cancelled, err := p.service.Cancel(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, dto.IdleDownload(), p.service.Poll(ctx, "s1"))
	assert.True(t, p.service.IsRetired(cancelled.JobId))

	// a progress event for the cancelled job that arrives late
	late := entity.DownloadJob{
		Id:              cancelled.JobId,
		SessionId:       "s1",
		ModelName:       "phi3",
		Status:          entity.DownloadStatusDownloading,
		ProgressPercent: 55,
	}
	require.NoError(t, p.bus.Publish(ctx, events.NewDownloadEvent(events.TypeDownloadProgress, late, time.Now())))
	assert.Eventually(t, func() bool {
		return len(p.forwarder.ofType(events.TypeDownloadProgress)) == 2
	}, time.Second, 5*time.Millisecond)

	job, err := p.mirror.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, job)
	assert.Equal(t, dto.IdleDownload(), p.service.Poll(ctx, "s1"))

	require.NoError(t, w.Close())
	close(proc.exit)
	p.wait(t)
}
