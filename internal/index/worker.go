package index

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/registryd/internal/gitmirror"
	"github.com/fyrsmithlabs/registryd/internal/sink"
	"github.com/fyrsmithlabs/registryd/internal/telemetry"
)

const defaultMailboxSize = 64

// Mailbox messages. Everything the worker does, including its own periodic
// ticks and status snapshots, arrives through these.
type message interface{ isMessage() }

type indexMsg struct{}

type startAutoMsg struct{ interval time.Duration }

type stopAutoMsg struct{}

// autoTickMsg is a self-scheduled trigger. It carries the interval and epoch
// of the schedule that armed it; the worker drops it if either no longer
// matches the current schedule.
type autoTickMsg struct {
	interval time.Duration
	epoch    uint64
}

type statusMsg struct{ reply chan Status }

func (indexMsg) isMessage()     {}
func (startAutoMsg) isMessage() {}
func (stopAutoMsg) isMessage()  {}
func (autoTickMsg) isMessage()  {}
func (statusMsg) isMessage()    {}

// schedule is the active periodic-indexing registration.
type schedule struct {
	interval time.Duration
	epoch    uint64
}

// WorkerConfig assembles a worker's collaborators.
type WorkerConfig struct {
	// Mirror names the worker in logs, metrics, and sink subjects.
	Mirror     string
	Repository Repository
	Translator Translator
	Sink       sink.Sink
	Logger     *zap.Logger
	Metrics    *telemetry.Metrics
	// MailboxSize bounds queued messages. Defaults to 64.
	MailboxSize int
}

// Worker owns the checkpoint for one mirror and serializes all indexing
// activity on it. Public methods only enqueue; the state machine runs
// entirely on the goroutine that called Run.
type Worker struct {
	mirror     string
	repo       Repository
	translator Translator
	sink       sink.Sink
	logger     *zap.Logger
	metrics    *telemetry.Metrics

	mailbox chan message

	// Owned by the Run goroutine.
	checkpoint  Checkpoint
	active      *schedule
	lastEpoch   uint64
	cancelTimer func() bool

	// timerFn arms a one-shot deferred call. Swapped out in tests for a
	// deterministic fake; defaults to time.AfterFunc.
	timerFn func(d time.Duration, fn func()) (cancel func() bool)
}

// NewWorker validates the config and creates a worker. Run must be called
// before the worker processes anything.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.Mirror == "" {
		return nil, fmt.Errorf("mirror name is required")
	}
	if cfg.Repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if cfg.Translator == nil {
		return nil, fmt.Errorf("translator is required")
	}
	if cfg.Sink == nil {
		return nil, fmt.Errorf("sink is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = telemetry.NewMetrics(cfg.Logger)
	}
	if cfg.MailboxSize <= 0 {
		cfg.MailboxSize = defaultMailboxSize
	}

	return &Worker{
		mirror:     cfg.Mirror,
		repo:       cfg.Repository,
		translator: cfg.Translator,
		sink:       cfg.Sink,
		logger:     cfg.Logger.With(zap.String("mirror", cfg.Mirror)),
		metrics:    cfg.Metrics,
		mailbox:    make(chan message, cfg.MailboxSize),
		timerFn: func(d time.Duration, fn func()) func() bool {
			return time.AfterFunc(d, fn).Stop
		},
	}, nil
}

// Index requests one indexing run. Runs queue behind whatever the worker is
// already doing; they never interleave.
func (w *Worker) Index() error {
	return w.send(indexMsg{})
}

// StartAutoIndex starts (or replaces) the periodic indexing schedule.
func (w *Worker) StartAutoIndex(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", interval)
	}
	return w.send(startAutoMsg{interval: interval})
}

// StopAutoIndex clears the periodic indexing schedule. A tick already armed
// by the old schedule may still arrive; it is recognized as stale and dropped.
func (w *Worker) StopAutoIndex() error {
	return w.send(stopAutoMsg{})
}

// Status returns a snapshot of the worker's state. It waits for every message
// queued ahead of it, so it also serves as a mailbox barrier.
func (w *Worker) Status(ctx context.Context) (Status, error) {
	reply := make(chan Status, 1)
	if err := w.send(statusMsg{reply: reply}); err != nil {
		return Status{}, err
	}
	select {
	case st := <-reply:
		return st, nil
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
}

// send enqueues without blocking. A full mailbox means the worker is badly
// behind; dropping with an error beats wedging an HTTP handler or a timer
// goroutine on the channel.
func (w *Worker) send(msg message) error {
	select {
	case w.mailbox <- msg:
		return nil
	default:
		return fmt.Errorf("mirror %s: mailbox full", w.mirror)
	}
}

// Run initializes the mirror and then drains the mailbox until ctx is
// canceled. A clone failure during initialization is fatal: a worker without
// a usable mirror has nothing to do.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.initialize(ctx); err != nil {
		return fmt.Errorf("mirror %s: %w", w.mirror, err)
	}

	for {
		select {
		case <-ctx.Done():
			w.clearSchedule()
			return ctx.Err()
		case msg := <-w.mailbox:
			w.handle(ctx, msg)
		}
	}
}

// initialize clones a missing mirror or re-seeds the checkpoint from an
// existing one, so a restart resumes from where the mirror on disk left off.
func (w *Worker) initialize(ctx context.Context) error {
	if !w.repo.MirrorExists() {
		w.logger.Info("cloning mirror",
			zap.String("remote", w.repo.RemoteURL()),
			zap.String("path", w.repo.Path()))
		if err := w.repo.Clone(ctx); err != nil {
			return fmt.Errorf("initializing: %w", err)
		}
		return nil
	}

	w.logger.Info("mirror already cloned, seeding checkpoint from disk",
		zap.String("path", w.repo.Path()))

	head, err := w.repo.ResolveCommit(ctx, gitmirror.FetchHead)
	if err != nil {
		// Degrade to an empty checkpoint: the next run treats the mirror
		// as never indexed instead of refusing to start.
		w.logger.Warn("could not resolve mirror head, starting from an empty checkpoint",
			zap.Error(err))
		return nil
	}
	w.checkpoint.LastCommit = head
	return nil
}

func (w *Worker) handle(ctx context.Context, msg message) {
	switch m := msg.(type) {
	case indexMsg:
		w.runIndex(ctx)

	case startAutoMsg:
		w.clearSchedule()
		w.lastEpoch++
		w.active = &schedule{interval: m.interval, epoch: w.lastEpoch}
		w.arm(m.interval, w.lastEpoch)
		w.logger.Info("auto-index started",
			zap.Duration("interval", m.interval),
			zap.Uint64("epoch", w.lastEpoch))

	case stopAutoMsg:
		if w.active != nil {
			w.logger.Info("auto-index stopped", zap.Uint64("epoch", w.active.epoch))
		}
		w.clearSchedule()

	case autoTickMsg:
		if w.active == nil || w.active.interval != m.interval || w.active.epoch != m.epoch {
			w.logger.Debug("dropping stale auto-index tick",
				zap.Duration("interval", m.interval),
				zap.Uint64("epoch", m.epoch))
			return
		}
		// Queue the run, then re-arm: periodic indexing is a chain of
		// one-shot timers, not a repeating ticker.
		if err := w.send(indexMsg{}); err != nil {
			w.logger.Warn("auto-index tick dropped", zap.Error(err))
		}
		w.arm(m.interval, m.epoch)

	case statusMsg:
		m.reply <- w.status()
	}
}

func (w *Worker) arm(interval time.Duration, epoch uint64) {
	w.cancelTimer = w.timerFn(interval, func() {
		// Runs on the timer goroutine; only touches the mailbox.
		tick := autoTickMsg{interval: interval, epoch: epoch}
		select {
		case w.mailbox <- tick:
		default:
			// The worker will tick again once it catches up; losing one
			// tick of a periodic schedule is harmless.
		}
	})
}

func (w *Worker) clearSchedule() {
	if w.cancelTimer != nil {
		w.cancelTimer()
		w.cancelTimer = nil
	}
	w.active = nil
}

func (w *Worker) status() Status {
	st := Status{
		Mirror:     w.mirror,
		RemoteURL:  w.repo.RemoteURL(),
		Path:       w.repo.Path(),
		Checkpoint: w.checkpoint,
	}
	if w.active != nil {
		st.AutoIndex = true
		st.Interval = w.active.interval
		st.Epoch = w.active.epoch
	}
	return st
}

// runIndex performs one indexing cycle: fetch, resolve the new head, diff
// against the checkpoint, emit events, advance the checkpoint. Any failure
// leaves the checkpoint untouched so the next run retries the same range.
func (w *Worker) runIndex(ctx context.Context) {
	start := time.Now()
	result := telemetry.ResultError
	defer func() {
		w.metrics.RecordRun(ctx, w.mirror, result, time.Since(start).Seconds())
	}()

	log := w.logger.With(zap.String("run_id", uuid.NewString()))

	if err := w.repo.Fetch(ctx); err != nil {
		log.Error("fetch failed", zap.Error(err))
		return
	}

	head, err := w.repo.ResolveCommit(ctx, gitmirror.FetchHead)
	if err != nil {
		log.Error("resolving fetched head failed", zap.Error(err))
		return
	}

	old := w.checkpoint.LastCommit
	switch {
	case old == "" && head == "":
		log.Info("repository has no commits")
		result = telemetry.ResultNoop

	case old == "":
		// First observed head. Nothing to diff against; the existing
		// content is not replayed as synthetic add events.
		log.Info("initial head observed", zap.String("commit", head))
		w.checkpoint.LastCommit = head
		result = telemetry.ResultOK

	case head == "":
		log.Error("repository previously had commits but now has none, clearing checkpoint",
			zap.String("last_commit", old))
		w.checkpoint.LastCommit = ""
		result = telemetry.ResultOK

	case old == head:
		log.Info("no new commits to index", zap.String("commit", head))
		result = telemetry.ResultNoop

	default:
		emitted, err := w.indexRange(ctx, log, old, head)
		if err != nil {
			log.Error("indexing failed, checkpoint unchanged",
				zap.String("from", old),
				zap.String("to", head),
				zap.Error(err))
			return
		}
		w.checkpoint.LastCommit = head
		log.Info("indexed",
			zap.String("from", old),
			zap.String("to", head),
			zap.Int("events", emitted))
		result = telemetry.ResultOK
	}

	w.checkpoint.LastIndexedAt = time.Now().UTC()
}

// indexRange diffs old..head, translates, and forwards every event to the
// sink. The caller advances the checkpoint only if this returns nil.
func (w *Worker) indexRange(ctx context.Context, log *zap.Logger, old, head string) (int, error) {
	files, err := w.repo.DiffNameOnly(ctx, old, head)
	if err != nil {
		return 0, err
	}
	log.Debug("diffing commits",
		zap.String("from", old),
		zap.String("to", head),
		zap.Int("changed_files", len(files)))
	for _, f := range files {
		log.Debug("changed file", zap.String("path", f))
	}

	diff, err := w.repo.DiffUnified(ctx, old, head)
	if err != nil {
		return 0, err
	}

	events, err := w.translator.Translate(diff)
	if err != nil {
		return 0, err
	}

	for _, ev := range events {
		if err := w.sink.Publish(ctx, w.mirror, ev); err != nil {
			return 0, fmt.Errorf("publishing %s %s: %w", ev.Kind, ev.Name, err)
		}
		w.metrics.RecordEvent(ctx, w.mirror, ev.Kind)
	}
	return len(events), nil
}
