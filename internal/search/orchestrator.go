package search

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/patchwell/linkstash/internal/model"
	appErr "github.com/patchwell/linkstash/internal/pkg/errors"
	"github.com/patchwell/linkstash/internal/rank"
)

// ItemProvider exposes the pagination controller's in-memory collection,
// already sorted by the active order.
type ItemProvider interface {
	Items() []model.Item
}

// RemoteSearcher is the ranking engine round trip.
type RemoteSearcher interface {
	Search(ctx context.Context, ownerID, query string, threshold float64, maxResults int) ([]rank.Match, error)
}

type Source string

const (
	SourceAll      Source = "all"
	SourceLocal    Source = "local"
	SourceRemote   Source = "remote"
	SourceFallback Source = "fallback"
)

// Result is one settled query's answer. SessionID increases with every
// dispatch and applied results are monotonic in it: a superseded session's
// result never lands after a newer session's.
type Result struct {
	SessionID uint64       `json:"session_id"`
	Query     string       `json:"query"`
	Source    Source       `json:"source"`
	Items     []model.Item `json:"items"`
}

type Options struct {
	Debounce      time.Duration
	ShortQueryMax int
	RemoteTimeout time.Duration
}

// Orchestrator turns a stream of keystrokes into at most one current result
// set. Debouncing collapses bursts, short queries are answered from memory,
// and in-flight remote calls are cancelled cooperatively: a session whose id
// is no longer the latest has its result dropped, so the view never moves
// backwards to an older query.
type Orchestrator struct {
	ownerID  string
	provider ItemProvider
	remote   RemoteSearcher
	opts     Options
	apply    func(Result)

	ctx context.Context
	seq atomic.Uint64

	mu      sync.Mutex
	timer   *time.Timer
	pending string
	applied uint64
	closed  bool
}

func NewOrchestrator(ctx context.Context, ownerID string, provider ItemProvider, remote RemoteSearcher, opts Options, apply func(Result)) *Orchestrator {
	if opts.Debounce <= 0 {
		opts.Debounce = 150 * time.Millisecond
	}
	if opts.ShortQueryMax <= 0 {
		opts.ShortQueryMax = 3
	}
	if opts.RemoteTimeout <= 0 {
		opts.RemoteTimeout = 10 * time.Second
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return &Orchestrator{
		ownerID:  ownerID,
		provider: provider,
		remote:   remote,
		opts:     opts,
		apply:    apply,
		ctx:      ctx,
	}
}

// SetQuery records a keystroke. The debounce timer restarts on every call;
// only the text that survives a full quiet window is dispatched.
func (o *Orchestrator) SetQuery(text string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.pending = text
	if o.timer == nil {
		o.timer = time.AfterFunc(o.opts.Debounce, o.fire)
		return
	}
	o.timer.Reset(o.opts.Debounce)
}

func (o *Orchestrator) fire() {
	o.mu.Lock()
	text := o.pending
	closed := o.closed
	o.mu.Unlock()
	if closed {
		return
	}
	o.Dispatch(text)
}

// Dispatch starts a new search session for the settled query text and
// returns its session id. Empty and short queries are answered synchronously
// from the in-memory collection; longer ones go to the ranking engine in the
// background.
func (o *Orchestrator) Dispatch(text string) uint64 {
	sid := o.seq.Add(1)
	query := strings.TrimSpace(text)

	if query == "" {
		o.emit(Result{SessionID: sid, Query: query, Source: SourceAll, Items: o.provider.Items()})
		return sid
	}
	if len([]rune(query)) <= o.opts.ShortQueryMax {
		o.emit(Result{SessionID: sid, Query: query, Source: SourceLocal, Items: o.localFilter(query)})
		return sid
	}
	go o.remoteSearch(sid, query)
	return sid
}

func (o *Orchestrator) remoteSearch(sid uint64, query string) {
	ctx, cancel := context.WithTimeout(o.ctx, o.opts.RemoteTimeout)
	defer cancel()
	logger := logutil.GetLogger(ctx).With(zap.String("owner_id", o.ownerID), zap.Uint64("session_id", sid))

	matches, err := o.remote.Search(ctx, o.ownerID, query, 0, 0)
	if err != nil && appErr.IsStoreUnavailable(err) {
		logger.Warn("ranking engine unavailable, retrying once", zap.Error(err))
		matches, err = o.remote.Search(ctx, o.ownerID, query, 0, 0)
	}
	if err != nil {
		logger.Warn("remote search failed, serving local filter", zap.Error(err))
		o.emit(Result{SessionID: sid, Query: query, Source: SourceFallback, Items: o.localFilter(query)})
		return
	}
	items := make([]model.Item, 0, len(matches))
	for _, m := range matches {
		items = append(items, m.Item)
	}
	o.emit(Result{SessionID: sid, Query: query, Source: SourceRemote, Items: items})
}

// emit applies a result only while its session is still the latest one
// dispatched; superseded sessions are discarded, never retried. The
// last-applied watermark is advanced under the same lock as the apply call,
// so a stale session that raced past the latest-check can never land after a
// newer session's result.
func (o *Orchestrator) emit(res Result) {
	if res.SessionID != o.seq.Load() {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed || o.apply == nil {
		return
	}
	if res.SessionID <= o.applied {
		return
	}
	o.applied = res.SessionID
	o.apply(res)
}

// localFilter is the no-network path: case-insensitive substring containment
// over title, notes and tags of the in-memory collection.
func (o *Orchestrator) localFilter(query string) []model.Item {
	needle := strings.ToLower(query)
	items := o.provider.Items()
	out := make([]model.Item, 0, len(items))
	for _, it := range items {
		haystack := strings.ToLower(it.Title + " " + it.UserNotes + " " + strings.Join(it.Tags, " "))
		if strings.Contains(haystack, needle) {
			out = append(out, it)
		}
	}
	return out
}

// Close stops the debounce timer; late results from in-flight sessions are
// dropped.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	if o.timer != nil {
		o.timer.Stop()
	}
}
