package stats

import (
	"cmp"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/siohaza/tankwars/internal/callbacks"
	"github.com/siohaza/tankwars/internal/world"
)

const recorderQueueSize = 1024

// Recorder turns game events into store writes on its own goroutine and keeps
// a scoreboard for the match summary saved on Close.
type Recorder struct {
	callbacks.DefaultCallbacks

	store  *Store
	mode   string
	logger *slog.Logger
	queue  chan func(*Store) error
	done   chan struct{}

	mu      sync.Mutex
	closed  bool
	started time.Time
	names   map[int]string
	board   map[string]*PlayerScore
}

func NewRecorder(store *Store, mode string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}

	r := &Recorder{
		store:   store,
		mode:    mode,
		logger:  logger,
		queue:   make(chan func(*Store) error, recorderQueueSize),
		done:    make(chan struct{}),
		started: time.Now(),
		names:   make(map[int]string),
		board:   make(map[string]*PlayerScore),
	}
	go r.run()
	return r
}

func (r *Recorder) run() {
	defer close(r.done)
	for op := range r.queue {
		if err := op(r.store); err != nil {
			r.logger.Warn("failed to record stats", "error", err)
		}
	}
}

func (r *Recorder) enqueue(op func(*Store) error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- op:
	default:
		r.logger.Warn("stats queue full, dropping event")
	}
}

// entry must be called with r.mu held.
func (r *Recorder) entry(name string) *PlayerScore {
	ps, ok := r.board[name]
	if !ok {
		ps = &PlayerScore{Name: name}
		r.board[name] = ps
	}
	return ps
}

func (r *Recorder) nameOf(id int) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.names[id]
}

func (r *Recorder) OnTankJoin(t world.Tank) {
	r.mu.Lock()
	r.names[t.ID] = t.Name
	r.entry(t.Name)
	r.mu.Unlock()
}

func (r *Recorder) OnDisconnect(t world.Tank) {
	r.mu.Lock()
	r.entry(t.Name).Score = t.Score
	r.mu.Unlock()
}

func (r *Recorder) OnTankKill(killer, victim world.Tank) {
	r.mu.Lock()
	if killer.ID >= 0 {
		ps := r.entry(killer.Name)
		ps.Kills++
		ps.Score = killer.Score
	}
	r.entry(victim.Name).Deaths++
	r.mu.Unlock()

	if killer.ID >= 0 {
		name, score := killer.Name, killer.Score
		r.enqueue(func(s *Store) error { return s.RecordKill(name, score) })
	}
	victimName := victim.Name
	r.enqueue(func(s *Store) error { return s.RecordDeath(victimName) })
}

func (r *Recorder) OnTankFire(t world.Tank) {
	name := t.Name
	r.enqueue(func(s *Store) error { return s.RecordShot(name) })
}

func (r *Recorder) OnPowerUpCollect(t world.Tank) {
	name := t.Name
	r.enqueue(func(s *Store) error { return s.RecordPowerUp(name) })
}

func (r *Recorder) OnBeam(b world.Beam) {
	name := r.nameOf(b.Owner)
	if name == "" {
		return
	}
	r.enqueue(func(s *Store) error { return s.RecordBeam(name) })
}

// Summary returns the scoreboard so far, best score first.
func (r *Recorder) Summary() MatchSummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	players := make([]PlayerScore, 0, len(r.board))
	for _, ps := range r.board {
		players = append(players, *ps)
	}
	slices.SortFunc(players, func(a, b PlayerScore) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})

	return MatchSummary{
		Mode:      r.mode,
		StartedAt: r.started,
		EndedAt:   time.Now(),
		Players:   players,
	}
}

// Close drains pending writes and saves the match if anyone played.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	<-r.done

	summary := r.Summary()
	if len(summary.Players) == 0 {
		return nil
	}
	id, err := r.store.SaveMatch(summary)
	if err != nil {
		return err
	}
	r.logger.Info("match saved", "id", id, "players", len(summary.Players))
	return nil
}
