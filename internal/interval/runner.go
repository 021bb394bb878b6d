package interval

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	xglog "github.com/sadopc/dong/internal/log"
)

// ErrRunnerClosed is returned for commands sent after the runner's loop exited.
var ErrRunnerClosed = errors.New("runner closed")

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	Clock        Clock
	TickInterval time.Duration
	Logger       *zerolog.Logger
}

type command struct {
	apply func(*Sequencer) error
	reply chan error
}

// Runner hosts one Sequencer on its own goroutine. Ticks and commands are
// applied by that goroutine only, one at a time.
type Runner struct {
	clock    Clock
	interval time.Duration
	logger   zerolog.Logger

	seq   *Sequencer
	ticks <-chan time.Time

	cmds   chan command
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	subs   []chan Event
	last   Snapshot
	closed bool
}

// NewRunner starts the runner goroutine for session. The sequencer stays
// idle until Start is called; Close releases an unfinished runner.
func NewRunner(session *Session, opts RunnerOptions) *Runner {
	if opts.Clock == nil {
		opts.Clock = SystemClock
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	logger := xglog.WithComponent("runner")
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		clock:    opts.Clock,
		interval: opts.TickInterval,
		logger:   logger,
		cmds:     make(chan command),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	r.seq = NewSequencer(session, Options{
		Driver:   DriverFunc(r.startTicker),
		Observer: r.broadcast,
		Logger:   opts.Logger,
	})
	r.last = r.seq.Snapshot()

	go r.run()
	return r
}

// Subscribe registers a new observer channel. Snapshot events are dropped
// when the channel is full. Phase completions and terminal events are kept:
// they push out the oldest queued event instead. The channel is closed when
// the session ends.
func (r *Runner) Subscribe(buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		close(ch)
		return ch
	}
	r.subs = append(r.subs, ch)
	return ch
}

func (r *Runner) Start(ctx context.Context) error {
	return r.do(ctx, (*Sequencer).Start)
}

func (r *Runner) Pause(ctx context.Context) error {
	return r.do(ctx, (*Sequencer).Pause)
}

func (r *Runner) Resume(ctx context.Context) error {
	return r.do(ctx, (*Sequencer).Resume)
}

// Stop cancels the session. Once Stop returns no further tick is applied.
func (r *Runner) Stop(ctx context.Context) error {
	return r.do(ctx, (*Sequencer).Stop)
}

// Snapshot returns the current state as seen by the runner goroutine. After
// the session ended it returns the last emitted snapshot.
func (r *Runner) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := r.do(ctx, func(s *Sequencer) error {
		snap = s.Snapshot()
		return nil
	})
	if errors.Is(err, ErrRunnerClosed) {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.last, nil
	}
	return snap, err
}

// Done is closed once the runner goroutine has exited.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// Close stops an active session, ends the goroutine and waits for it.
func (r *Runner) Close() {
	r.cancel()
	<-r.done
}

func (r *Runner) do(ctx context.Context, apply func(*Sequencer) error) error {
	reply := make(chan error, 1)
	select {
	case r.cmds <- command{apply: apply, reply: reply}:
	case <-r.done:
		return ErrRunnerClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) run() {
	defer close(r.done)
	defer r.closeSubscribers()

	for {
		select {
		case cmd := <-r.cmds:
			cmd.reply <- cmd.apply(r.seq)
		case <-r.ticks:
			if err := r.seq.Tick(); err != nil {
				r.logger.Warn().Err(err).Msg("tick rejected")
			}
		case <-r.ctx.Done():
			if !r.seq.State().Terminal() && r.seq.State() != StateIdle {
				_ = r.seq.Stop()
			}
			return
		}

		if r.seq.State().Terminal() {
			return
		}
	}
}

// startTicker runs on the runner goroutine, as does the stop func it returns.
func (r *Runner) startTicker() func() {
	t := r.clock.NewTicker(r.interval)
	r.ticks = t.C()
	return func() {
		t.Stop()
		r.ticks = nil
	}
}

func (r *Runner) broadcast(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.last = ev.Snapshot
	for _, ch := range r.subs {
		if ev.Type != EventSnapshot {
			deliverEvicting(ch, ev)
			continue
		}
		select {
		case ch <- ev:
		default:
		}
	}
}

// deliverEvicting makes room by discarding the oldest queued event. Only the
// runner goroutine sends on ch, so the second send cannot block.
func deliverEvicting(ch chan Event, ev Event) {
	select {
	case ch <- ev:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	ch <- ev
}

func (r *Runner) closeSubscribers() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	for _, ch := range r.subs {
		close(ch)
	}
	r.subs = nil
}
