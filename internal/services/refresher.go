package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"vrijeme-widget/internal/feed"
	"vrijeme-widget/internal/models"
	"vrijeme-widget/internal/selection"
	"vrijeme-widget/internal/stations"
	"vrijeme-widget/pkg/client"

	"go.uber.org/zap"
)

// minRefreshGap absorbs near-simultaneous triggers (user tap, visibility
// change, and the periodic timer firing together) into one fetch.
const minRefreshGap = 5 * time.Second

// ErrRefreshSkipped is returned when a trigger is dropped because a refresh
// is already in flight or one just completed. Not a failure.
var ErrRefreshSkipped = errors.New("refresh skipped")

// Source is one configured data feed.
type Source struct {
	ID     string
	URL    string
	Parser feed.Parser

	// Display-name decomposition settings for this feed's station names.
	NameSeparator       string
	CityPrefixWhitelist []string // nil means "always split"
	DisplayLabel        string
}

// FeedHealth classifies the last refresh outcome for the view layer.
type FeedHealth int

const (
	// HealthUnknown: no refresh has completed yet.
	HealthUnknown FeedHealth = iota
	// HealthOK: the displayed snapshot came from the latest refresh.
	HealthOK
	// HealthStale: the latest refresh failed but an older snapshot is
	// still displayed, with a transient notice.
	HealthStale
	// HealthError: no snapshot is available at all.
	HealthError
)

func (h FeedHealth) String() string {
	switch h {
	case HealthOK:
		return "ok"
	case HealthStale:
		return "stale"
	case HealthError:
		return "error"
	default:
		return "unknown"
	}
}

// State is the refresher's view-facing summary.
type State struct {
	Health      FeedHealth
	Snapshot    *models.Snapshot
	SourceID    string
	LastError   string
	LastAttempt time.Time
	LastSuccess time.Time
}

// Refresher owns the snapshot lifecycle: it fetches the active source,
// parses it, and swaps the snapshot atomically. A failed refresh keeps the
// previous snapshot visible. Exactly one refresh runs at a time; extra
// triggers are dropped, never queued.
type Refresher struct {
	fetcher client.Fetcher
	sources map[string]Source
	prefs   selection.PreferenceStore
	logger  *zap.Logger

	defaultSource string
	now           func() time.Time

	mu          sync.Mutex
	inFlight    bool
	lastAttempt time.Time
	lastSuccess time.Time
	lastErr     error
	snapshot    *models.Snapshot
	index       *stations.Index
}

func NewRefresher(fetcher client.Fetcher, sources []Source, defaultSource string, prefs selection.PreferenceStore, logger *zap.Logger) (*Refresher, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("no feed sources configured")
	}
	byID := make(map[string]Source, len(sources))
	for _, s := range sources {
		byID[s.ID] = s
	}
	if _, ok := byID[defaultSource]; !ok {
		return nil, fmt.Errorf("default source %q not configured", defaultSource)
	}
	return &Refresher{
		fetcher:       fetcher,
		sources:       byID,
		prefs:         prefs,
		logger:        logger,
		defaultSource: defaultSource,
		now:           time.Now,
		index:         stations.NewIndex(nil),
	}, nil
}

// ActiveSource reads the persisted source choice, falling back to the
// configured default when unset or stale.
func (r *Refresher) ActiveSource() Source {
	if id, ok := r.prefs.Get(selection.KeySource); ok {
		if s, ok := r.sources[id]; ok {
			return s
		}
	}
	return r.sources[r.defaultSource]
}

// SwitchSource persists a new source choice and drops the old snapshot,
// which belonged to a different feed. The caller should trigger a refresh.
func (r *Refresher) SwitchSource(id string) error {
	if _, ok := r.sources[id]; !ok {
		return fmt.Errorf("unknown source %q", id)
	}
	r.prefs.Set(selection.KeySource, id)

	r.mu.Lock()
	r.snapshot = nil
	r.index = stations.NewIndex(nil)
	r.lastErr = nil
	r.lastSuccess = time.Time{}
	// The follow-up refresh must reach the new feed immediately; with no
	// snapshot left there is nothing for the inter-refresh gap to protect.
	r.lastAttempt = time.Time{}
	r.mu.Unlock()

	r.logger.Info("Data source switched", zap.String("source", id))
	return nil
}

// Refresh performs one fetch-parse-swap cycle. Triggers arriving while a
// refresh is in flight, or within the minimum inter-refresh gap, return
// ErrRefreshSkipped.
func (r *Refresher) Refresh(ctx context.Context, reason string) error {
	r.mu.Lock()
	if r.inFlight || r.now().Sub(r.lastAttempt) < minRefreshGap {
		r.mu.Unlock()
		r.logger.Debug("Refresh trigger dropped", zap.String("reason", reason))
		return ErrRefreshSkipped
	}
	r.inFlight = true
	r.lastAttempt = r.now()
	r.mu.Unlock()

	src := r.ActiveSource()
	err := r.refreshOnce(ctx, src)

	r.mu.Lock()
	r.inFlight = false
	r.lastErr = err
	if err == nil {
		r.lastSuccess = r.now()
	}
	r.mu.Unlock()

	if err != nil {
		var pe *feed.ParseError
		if errors.As(err, &pe) {
			r.logger.Error("Feed parse failed, keeping previous snapshot",
				zap.String("source", src.ID),
				zap.Error(err))
		} else {
			r.logger.Warn("Feed fetch failed, keeping previous snapshot",
				zap.String("source", src.ID),
				zap.Error(err))
		}
		return err
	}

	r.logger.Info("Snapshot refreshed",
		zap.String("source", src.ID),
		zap.String("reason", reason))
	return nil
}

func (r *Refresher) refreshOnce(ctx context.Context, src Source) error {
	payload, err := r.fetcher.Fetch(ctx, src.URL)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", src.ID, err)
	}

	snap, err := src.Parser.Parse(payload, r.now())
	if err != nil {
		return err
	}

	// A refresh that resolves after a source switch must not resurrect the
	// other feed's stations.
	if r.ActiveSource().ID != src.ID {
		r.logger.Debug("Discarding refresh for inactive source", zap.String("source", src.ID))
		return nil
	}

	r.mu.Lock()
	r.snapshot = snap
	r.index = stations.NewIndex(snap)
	r.mu.Unlock()
	return nil
}

// Index returns the station index over the current snapshot. Never nil.
func (r *Refresher) Index() *stations.Index {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.index
}

// State summarizes the snapshot and last-refresh outcome per the error
// taxonomy: transient notice over a stale snapshot, blocking error without
// one, and "no data" when zero stations survived filtering.
func (r *Refresher) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := State{
		Snapshot:    r.snapshot,
		SourceID:    r.ActiveSource().ID,
		LastAttempt: r.lastAttempt,
		LastSuccess: r.lastSuccess,
	}
	if r.lastErr != nil {
		st.LastError = r.lastErr.Error()
	}

	switch {
	case r.lastAttempt.IsZero():
		st.Health = HealthUnknown
	case r.lastErr == nil:
		st.Health = HealthOK
	case r.snapshot != nil:
		st.Health = HealthStale
	default:
		st.Health = HealthError
	}
	return st
}
