// Package search resolves usernames to safe addresses as the user types.
//
// Lookups are debounced and every dispatched lookup carries the generation
// of the query it was issued for. A response whose generation is no longer
// current is dropped, so the last query entered always wins regardless of
// the order in which responses arrive.
package search

import (
	"context"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"circles/internal/logging"
	"circles/internal/models"

	tea "github.com/charmbracelet/bubbletea"
)

const (
	DefaultDelay = 300 * time.Millisecond
	DefaultLimit = 5
)

type Searcher interface {
	Search(ctx context.Context, query string) ([]models.Identity, error)
}

// SearchFunc adapts a plain function to Searcher.
type SearchFunc func(ctx context.Context, query string) ([]models.Identity, error)

func (f SearchFunc) Search(ctx context.Context, query string) ([]models.Identity, error) {
	return f(ctx, query)
}

// SelectedMsg hands a chosen identity to the embedding screen.
type SelectedMsg struct {
	Identity models.Identity
}

type debounceMsg struct {
	id  int
	seq int
}

type resultMsg struct {
	id      int
	seq     int
	results []models.Identity
	err     error
}

var lastID atomic.Int64

func nextID() int {
	return int(lastID.Add(1))
}

type Coordinator struct {
	id        int
	searcher  Searcher
	isAddress func(string) bool
	self      string
	delay     time.Duration
	limit     int
	log       logging.Logger

	query   string
	loading bool
	results []models.Identity
	seq     int
	cursor  int
}

type Option func(*Coordinator)

func WithDelay(d time.Duration) Option {
	return func(c *Coordinator) {
		if d >= 0 {
			c.delay = d
		}
	}
}

func WithLimit(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.limit = n
		}
	}
}

// WithSelf excludes the user's own address from results.
func WithSelf(address string) Option {
	return func(c *Coordinator) {
		c.self = address
	}
}

// WithAddressValidator enables the address literal short-circuit.
func WithAddressValidator(fn func(string) bool) Option {
	return func(c *Coordinator) {
		c.isAddress = fn
	}
}

func WithLogger(l logging.Logger) Option {
	return func(c *Coordinator) {
		c.log = l
	}
}

func New(searcher Searcher, opts ...Option) Coordinator {
	c := Coordinator{
		id:        nextID(),
		searcher:  searcher,
		isAddress: func(string) bool { return false },
		delay:     DefaultDelay,
		limit:     DefaultLimit,
		log:       logging.Discard(),
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// SetQuery records q and schedules whatever it calls for. Any lookup still
// in flight for an earlier query becomes stale.
func (c Coordinator) SetQuery(q string) (Coordinator, tea.Cmd) {
	c.query = q
	c.seq++
	c.cursor = 0

	if q == "" {
		c.results = nil
		c.loading = false
		return c, nil
	}

	if c.isAddress(q) {
		c.results = nil
		c.loading = false
		return c, selectCmd(models.Identity{SafeAddress: q})
	}

	c.loading = true
	id, seq := c.id, c.seq
	return c, tea.Tick(c.delay, func(time.Time) tea.Msg {
		return debounceMsg{id: id, seq: seq}
	})
}

func (c Coordinator) Update(msg tea.Msg) (Coordinator, tea.Cmd) {
	switch msg := msg.(type) {
	case debounceMsg:
		if msg.id != c.id || msg.seq != c.seq {
			return c, nil
		}
		return c, c.lookup()

	case resultMsg:
		if msg.id != c.id || msg.seq != c.seq {
			return c, nil
		}
		c.loading = false
		c.cursor = 0
		if msg.err != nil {
			c.log.Warn(context.Background(), "identity search failed", "query", c.query, "error", msg.err)
			c.results = nil
			return c, nil
		}
		c.results = c.rank(msg.results)
		c.log.Debug(context.Background(), "identity search finished", "query", c.query, "results", len(c.results))
	}
	return c, nil
}

func (c Coordinator) lookup() tea.Cmd {
	searcher, query := c.searcher, c.query
	id, seq := c.id, c.seq
	return func() tea.Msg {
		results, err := searcher.Search(context.Background(), query)
		return resultMsg{id: id, seq: seq, results: results, err: err}
	}
}

func (c Coordinator) rank(in []models.Identity) []models.Identity {
	out := make([]models.Identity, 0, len(in))
	for _, ident := range in {
		if c.self != "" && models.SameAddress(ident.SafeAddress, c.self) {
			continue
		}
		out = append(out, ident)
	}
	slices.SortStableFunc(out, func(a, b models.Identity) int {
		return strings.Compare(strings.ToLower(a.Username), strings.ToLower(b.Username))
	})
	if len(out) > c.limit {
		out = out[:c.limit]
	}
	return out
}

// Select hands results[i] to the caller. Coordinator state is left alone.
func (c Coordinator) Select(i int) tea.Cmd {
	if i < 0 || i >= len(c.results) {
		return nil
	}
	return selectCmd(c.results[i])
}

// SelectCursor selects the highlighted result.
func (c Coordinator) SelectCursor() tea.Cmd {
	return c.Select(c.cursor)
}

func (c Coordinator) MoveCursor(delta int) Coordinator {
	if len(c.results) == 0 {
		c.cursor = 0
		return c
	}
	c.cursor = max(0, min(len(c.results)-1, c.cursor+delta))
	return c
}

func selectCmd(ident models.Identity) tea.Cmd {
	return func() tea.Msg {
		return SelectedMsg{Identity: ident}
	}
}

func (c Coordinator) Query() string { return c.query }
func (c Coordinator) Loading() bool { return c.loading }
func (c Coordinator) Cursor() int { return c.cursor }

func (c Coordinator) Results() []models.Identity {
	return slices.Clone(c.results)
}
