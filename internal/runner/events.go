package runner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"lectern/internal/logging"
)

// Log event streams.
const (
	StreamStdout    = "stdout"
	StreamStderr    = "stderr"
	StreamSystem    = "system"
	StreamPreflight = "preflight"
)

// Kind discriminates event payloads.
type Kind string

const (
	KindLog      Kind = "log"
	KindStage    Kind = "stage"
	KindProgress Kind = "progress"
	KindStatus   Kind = "status"
	KindFinish   Kind = "finish"
)

// LogEvent is one classified output line.
type LogEvent struct {
	Stream string `json:"stream"`
	Line   string `json:"line"`
}

// StageEvent marks the controller moving to the next input folder.
type StageEvent struct {
	Index  int    `json:"index"`
	Total  int    `json:"total"`
	Folder string `json:"folder"`
}

// ProgressEvent mirrors one executor progress record.
type ProgressEvent struct {
	Done   int    `json:"done"`
	Total  int    `json:"total"`
	Status string `json:"status,omitempty"`
	Source string `json:"source,omitempty"`
}

// FinishEvent terminates a run. Exactly one is published per run.
type FinishEvent struct {
	Success  bool   `json:"success"`
	ExitCode int    `json:"exit_code"`
	Message  string `json:"message"`
}

// Event is the sequenced union carried by the hub.
type Event struct {
	Sequence  uint64         `json:"seq"`
	Timestamp time.Time      `json:"ts"`
	Kind      Kind           `json:"kind"`
	Log       *LogEvent      `json:"log,omitempty"`
	Stage     *StageEvent    `json:"stage,omitempty"`
	Progress  *ProgressEvent `json:"progress,omitempty"`
	Status    *Status        `json:"status,omitempty"`
	Finish    *FinishEvent   `json:"finish,omitempty"`
}

// Sink receives every published event (for log mirroring, notifications).
type Sink interface {
	Append(Event)
}

// Hub stores recent run events and wakes waiters when new ones arrive.
type Hub struct {
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	buffer   []Event
	nextSeq  uint64
	sinks    []Sink
}

// DefaultHubCapacity bounds the in-memory event ring.
const DefaultHubCapacity = 2048

// NewHub constructs a bounded in-memory event fan-out buffer.
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = DefaultHubCapacity
	}
	h := &Hub{capacity: capacity}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// AddSink wires an additional sink that receives every published event.
func (h *Hub) AddSink(sink Sink) {
	if h == nil || sink == nil {
		return
	}
	h.mu.Lock()
	h.sinks = append(h.sinks, sink)
	h.mu.Unlock()
}

// Publish appends an event, assigning its sequence and timestamp.
func (h *Hub) Publish(evt Event) {
	if h == nil {
		return
	}
	h.mu.Lock()
	h.nextSeq++
	evt.Sequence = h.nextSeq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	if len(h.buffer) == h.capacity {
		copy(h.buffer, h.buffer[1:])
		h.buffer = h.buffer[:h.capacity-1]
	}
	h.buffer = append(h.buffer, evt)
	sinks := append([]Sink(nil), h.sinks...)
	h.cond.Broadcast()
	h.mu.Unlock()

	for _, sink := range sinks {
		sink.Append(evt)
	}
}

// Fetch returns events with sequence greater than since. When wait is
// true, Fetch blocks until at least one event is available or the context
// ends.
func (h *Hub) Fetch(ctx context.Context, since uint64, limit int, wait bool) ([]Event, uint64, error) {
	if h == nil {
		return nil, since, nil
	}
	if limit <= 0 || limit > h.capacity {
		limit = h.capacity
	}

	cancelWait := make(chan struct{})
	if wait && ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				h.cond.Broadcast()
			case <-cancelWait:
			}
		}()
	}
	defer close(cancelWait)

	h.mu.Lock()
	defer h.mu.Unlock()
	for {
		events, next := h.snapshotLocked(since, limit)
		if len(events) > 0 {
			return events, next, nil
		}
		if !wait {
			return nil, next, nil
		}
		if err := ctxErr(ctx); err != nil {
			return nil, next, err
		}
		h.cond.Wait()
	}
}

// Tail returns the most recent limit events without blocking.
func (h *Hub) Tail(limit int) ([]Event, uint64) {
	if h == nil {
		return nil, 0
	}
	if limit <= 0 || limit > h.capacity {
		limit = h.capacity
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.buffer) == 0 {
		return nil, h.nextSeq
	}
	start := len(h.buffer) - limit
	if start < 0 {
		start = 0
	}
	out := make([]Event, len(h.buffer)-start)
	copy(out, h.buffer[start:])
	return out, h.nextSeq
}

func (h *Hub) snapshotLocked(since uint64, limit int) ([]Event, uint64) {
	if len(h.buffer) == 0 {
		return nil, h.nextSeq
	}
	startIdx := -1
	for i, evt := range h.buffer {
		if evt.Sequence > since {
			startIdx = i
			break
		}
	}
	if startIdx < 0 {
		return nil, h.nextSeq
	}
	end := startIdx + limit
	if end > len(h.buffer) {
		end = len(h.buffer)
	}
	out := make([]Event, end-startIdx)
	copy(out, h.buffer[startIdx:end])
	// The cursor tracks the last returned event so a limited fetch can
	// resume where it left off.
	return out, out[len(out)-1].Sequence
}

func ctxErr(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}

// SlogSink mirrors hub events into the daemon log. Progress and status
// events land at debug so steady-state logs stay readable.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink builds a sink over the given logger.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &SlogSink{logger: logging.WithComponent(logger, "run")}
}

func (s *SlogSink) Append(evt Event) {
	switch evt.Kind {
	case KindLog:
		if evt.Log == nil {
			return
		}
		if evt.Log.Stream == StreamStderr {
			s.logger.Warn(evt.Log.Line, logging.String("stream", evt.Log.Stream))
			return
		}
		s.logger.Info(evt.Log.Line, logging.String("stream", evt.Log.Stream))
	case KindStage:
		if evt.Stage == nil {
			return
		}
		s.logger.Info("starting folder",
			logging.Int("index", evt.Stage.Index),
			logging.Int("total", evt.Stage.Total),
			logging.String("folder", evt.Stage.Folder))
	case KindProgress:
		if evt.Progress == nil {
			return
		}
		s.logger.Debug("progress",
			logging.Int("done", evt.Progress.Done),
			logging.Int("total", evt.Progress.Total),
			logging.String("status", evt.Progress.Status),
			logging.String("source", evt.Progress.Source))
	case KindFinish:
		if evt.Finish == nil {
			return
		}
		s.logger.Info("run finished",
			logging.Bool("success", evt.Finish.Success),
			logging.Int("exit_code", evt.Finish.ExitCode),
			logging.String("message", evt.Finish.Message))
	case KindStatus:
		// state changes are already logged where they happen
	}
}
