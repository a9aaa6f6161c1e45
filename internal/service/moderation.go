// Package service holds the moderation application state and the
// operations the HTTP layer exposes over it.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/faireye-hive/hive-cache/internal/cache"
	"github.com/faireye-hive/hive-cache/internal/featureflags"
	"github.com/faireye-hive/hive-cache/internal/feed"
	"github.com/faireye-hive/hive-cache/internal/models"
	"github.com/faireye-hive/hive-cache/internal/observability"
	"github.com/faireye-hive/hive-cache/internal/pipeline"
	"github.com/faireye-hive/hive-cache/internal/repository"
	"github.com/faireye-hive/hive-cache/internal/risk"
	"github.com/faireye-hive/hive-cache/internal/rules"
	"github.com/faireye-hive/hive-cache/internal/scanner"
	"github.com/faireye-hive/hive-cache/internal/stats"

	"go.opentelemetry.io/otel/attribute"
)

// Alerter receives user-facing notifications.
type Alerter interface {
	Alert(ctx context.Context, message, level string)
}

// Options wires the collaborators of Moderation. Only Repo is required.
type Options struct {
	Rules     *rules.Set
	Repo      *repository.StateRepository
	Cache     *cache.JSONCache
	Source    feed.Source
	Blacklist feed.Blacklist
	Alerts    Alerter
	Confirmer scanner.Confirmer
	Runner    *scanner.Runner
	Flags     *featureflags.Manager
	Logger    *slog.Logger

	RiskCacheSize   int
	SpamDelay       time.Duration
	PlagiarismDelay time.Duration
	SearchDebounce  time.Duration

	// RedisPing reports Redis health for cache stats; nil means not configured.
	RedisPing func(context.Context) error
	Now       func() time.Time
}

// selection is the working set written by the last search or quick filter.
type selection struct {
	kind  string // "search" or "filter"
	label string
	posts []models.Post
}

// Moderation is the single owner of the post set and the moderation state.
// Every mutation happens under mu, so readers never observe a partially
// applied import, toggle or sweep.
type Moderation struct {
	mu sync.RWMutex
	// persistMu orders state writes: it is taken before mu by every
	// mutation and held until the new snapshot is saved.
	persistMu sync.Mutex

	posts      []models.Post
	index      map[string]int
	authors    stats.Index
	working    *selection
	flags      *FlagStore
	mutes      *MuteStore
	settings   models.Settings
	session    *models.Session
	generation uint64
	digest     string
	lastImport time.Time

	blacklist feed.Blacklist
	engine    *risk.CachedEngine
	advanced  *scanner.Advanced
	rules     *rules.Set
	debounce  *pipeline.Debouncer
	scans     map[string]ScanReport

	repo      *repository.StateRepository
	cache     *cache.JSONCache
	source    feed.Source
	alerts    Alerter
	confirmer scanner.Confirmer
	runner    *scanner.Runner
	features  *featureflags.Manager
	logger    *slog.Logger
	redisPing func(context.Context) error
	now       func() time.Time

	spamDelay       time.Duration
	plagiarismDelay time.Duration
}

// New builds an empty Moderation. Call Init to load persisted state.
func New(opts Options) (*Moderation, error) {
	if opts.Repo == nil {
		return nil, errors.New("service: state repository is required")
	}
	set := opts.Rules
	if set == nil {
		set = rules.Default()
	}
	engine, err := risk.NewCachedEngine(risk.NewEngine(set), opts.RiskCacheSize)
	if err != nil {
		return nil, fmt.Errorf("risk cache: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	runner := opts.Runner
	if runner == nil {
		runner = scanner.NewRunner(logger)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	blacklist := opts.Blacklist
	if blacklist == nil {
		blacklist = feed.NewBlacklist()
	}

	return &Moderation{
		index:           map[string]int{},
		authors:         stats.Index{},
		flags:           NewFlagStore(nil),
		mutes:           NewMuteStore(nil),
		settings:        models.DefaultSettings(),
		blacklist:       blacklist,
		engine:          engine,
		advanced:        scanner.NewAdvanced(set.Advanced),
		rules:           set,
		debounce:        pipeline.NewDebouncer(opts.SearchDebounce),
		scans:           map[string]ScanReport{},
		repo:            opts.Repo,
		cache:           opts.Cache,
		source:          opts.Source,
		alerts:          opts.Alerts,
		confirmer:       opts.Confirmer,
		runner:          runner,
		features:        opts.Flags,
		logger:          logger,
		redisPing:       opts.RedisPing,
		now:             now,
		spamDelay:       opts.SpamDelay,
		plagiarismDelay: opts.PlagiarismDelay,
	}, nil
}

// Init loads flags, mutes, settings and session from the repository.
// Unreadable state is logged and replaced by defaults.
func (m *Moderation) Init(ctx context.Context) {
	flags, err := m.repo.LoadFlags(ctx)
	if err != nil {
		m.logger.WarnContext(ctx, "failed to load flags", slog.String("error", err.Error()))
	}
	mutes, err := m.repo.LoadMutes(ctx)
	if err != nil {
		m.logger.WarnContext(ctx, "failed to load mutes", slog.String("error", err.Error()))
	}
	settings, err := m.repo.LoadSettings(ctx)
	if err != nil {
		m.logger.WarnContext(ctx, "failed to load settings", slog.String("error", err.Error()))
	}
	session, err := m.repo.LoadSession(ctx)
	if err != nil {
		m.logger.WarnContext(ctx, "failed to load session", slog.String("error", err.Error()))
	}

	m.mu.Lock()
	m.flags = NewFlagStore(flags)
	m.mutes = NewMuteStore(mutes)
	m.settings = settings
	m.session = session
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "moderation state loaded",
		slog.Int("flags", len(flags)),
		slog.Int("mutes", len(mutes)),
		slog.String("backend", m.repo.Backend()),
	)
}

// ImportResult summarizes a successful import.
type ImportResult struct {
	Posts      int       `json:"posts"`
	Skipped    int       `json:"skipped"`
	Lines      int       `json:"lines"`
	Source     string    `json:"source"`
	ImportedAt time.Time `json:"importedAt"`
}

// HasSource reports whether a feed source is configured.
func (m *Moderation) HasSource() bool { return m.source != nil }

// Reload imports from the configured feed source.
func (m *Moderation) Reload(ctx context.Context) (*ImportResult, error) {
	if m.source == nil {
		return nil, models.NewValidationError("no feed source configured")
	}
	return m.Import(ctx, m.source)
}

// Upload imports an NDJSON payload supplied by the caller.
func (m *Moderation) Upload(ctx context.Context, raw []byte) (*ImportResult, error) {
	return m.Import(ctx, feed.BytesSource(raw))
}

// Import replaces the post set with the contents of src. On failure the
// previous post set stays in place and an upstream error is returned.
func (m *Moderation) Import(ctx context.Context, src feed.Source) (*ImportResult, error) {
	span, ctx := observability.NewSpan(ctx, "feed.import", attribute.String("source", src.String()))
	defer span.End()

	res, err := feed.Load(ctx, src, m.logger)
	if err != nil {
		span.SetError(err)
		observability.FeedImports.WithLabelValues("error").Inc()
		m.logger.ErrorContext(ctx, "feed import failed", slog.String("source", src.String()), slog.String("error", err.Error()))
		m.alert(ctx, "Falha ao carregar o feed. Tente novamente.", models.LevelError)
		return nil, models.NewUpstreamError("failed to load feed", err)
	}

	now := m.now()
	index := make(map[string]int, len(res.Posts))
	for i := range res.Posts {
		index[res.Posts[i].ID] = i
	}
	authors := stats.Build(res.Posts)

	m.mu.Lock()
	m.posts = res.Posts
	m.index = index
	m.authors = authors
	m.working = nil
	m.generation++
	m.digest = res.Digest
	m.lastImport = now
	m.engine.Purge()
	m.mu.Unlock()
	m.debounce.Cancel()

	observability.FeedImports.WithLabelValues("ok").Inc()
	observability.PostsLoaded.Set(float64(len(res.Posts)))
	span.AddAttributes(attribute.Int("posts", len(res.Posts)), attribute.Int("skipped", res.Skipped))
	m.logger.InfoContext(ctx, "feed imported",
		slog.String("source", src.String()),
		slog.Int("posts", len(res.Posts)),
		slog.Int("skipped", res.Skipped),
	)

	return &ImportResult{
		Posts:      len(res.Posts),
		Skipped:    res.Skipped,
		Lines:      res.Lines,
		Source:     src.String(),
		ImportedAt: now,
	}, nil
}

// assessLocked scores p against the current state. Callers hold mu.
func (m *Moderation) assessLocked(p *models.Post) risk.Assessment {
	return m.engine.Score(p, risk.Inputs{
		Author:      m.authors.Get(p.Author),
		Flagged:     m.flags.Has(p.ID),
		Blacklisted: m.blacklist.Contains(p.Author),
	})
}

func (m *Moderation) tierLocked(p *models.Post) models.RiskTier {
	return m.assessLocked(p).Tier
}

// actorLocked is the moderator named on ctx, else the session moderator,
// else fallback.
func (m *Moderation) actorLocked(ctx context.Context, fallback string) string {
	if name := observability.ModeratorFrom(ctx); name != "" {
		return name
	}
	if m.session != nil && m.session.Username != "" {
		return m.session.Username
	}
	return fallback
}

func (m *Moderation) alert(ctx context.Context, message, level string) {
	if m.alerts != nil {
		m.alerts.Alert(ctx, message, level)
	}
}

// persistFlags writes the flag map. Failures keep the in-memory state and
// are only logged.
func (m *Moderation) persistFlags(ctx context.Context, flags map[string]models.FlagRecord) {
	if err := m.repo.SaveFlags(ctx, flags); err != nil {
		m.logger.ErrorContext(ctx, "failed to persist flags", slog.String("error", err.Error()))
	}
}

func (m *Moderation) persistMutes(ctx context.Context, mutes []string) {
	if err := m.repo.SaveMutes(ctx, mutes); err != nil {
		m.logger.ErrorContext(ctx, "failed to persist mutes", slog.String("error", err.Error()))
	}
}

// Generation increments on every successful import.
func (m *Moderation) Generation() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.generation
}

// Wait blocks until background sweeps have finished.
func (m *Moderation) Wait() {
	m.runner.Wait()
}
