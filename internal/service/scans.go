package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/faireye-hive/hive-cache/internal/featureflags"
	"github.com/faireye-hive/hive-cache/internal/models"
	"github.com/faireye-hive/hive-cache/internal/observability"
	"github.com/faireye-hive/hive-cache/internal/scanner"
)

// ScanReport records the last run of a sweep.
type ScanReport struct {
	Scanner    string    `json:"scanner"`
	Matches    int       `json:"matches"`
	Flagged    int       `json:"flagged"`
	AutoFlag   bool      `json:"autoFlag"`
	Confirmed  bool      `json:"confirmed"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Error      string    `json:"error,omitempty"`
}

type sweepSpec struct {
	name      string
	find      func(posts []models.Post) []models.Post
	flaggedBy string
	reason    string
	autoFlag  func(models.Settings) bool
	clean     string
	found     string // takes the match count
	prompt    string // takes the match count
	applied   string // takes the flagged count
}

func (m *Moderation) spamSweep() sweepSpec {
	r := m.rules.Spam
	return sweepSpec{
		name:      scanner.NameSpam,
		find:      func(posts []models.Post) []models.Post { return scanner.Spam(posts, r) },
		flaggedBy: r.FlaggedBy,
		reason:    r.Reason,
		autoFlag:  func(s models.Settings) bool { return s.AutoFlagSpam },
		clean:     "Nenhum spam detectado",
		found:     "Encontrados %d posts suspeitos de spam",
		prompt:    "Deseja sinalizar %d posts como spam?",
		applied:   "%d posts sinalizados como spam",
	}
}

func (m *Moderation) plagiarismSweep() sweepSpec {
	r := m.rules.Plagiarism
	return sweepSpec{
		name:      scanner.NamePlagiarism,
		find:      func(posts []models.Post) []models.Post { return scanner.Plagiarism(posts, r) },
		flaggedBy: r.FlaggedBy,
		reason:    r.Reason,
		autoFlag:  func(s models.Settings) bool { return s.AutoFlagPlagiarism },
		clean:     "Nenhum plágio detectado",
		found:     "Encontrados %d posts com conteúdo similar",
		prompt:    "Deseja sinalizar %d posts por possível plágio?",
		applied:   "%d posts sinalizados por possível plágio",
	}
}

// ScanSpam schedules the spam sweep after the configured delay and
// returns immediately.
func (m *Moderation) ScanSpam(ctx context.Context) {
	m.schedule(ctx, m.spamSweep(), m.spamDelay)
}

// ScanPlagiarism schedules the plagiarism sweep.
func (m *Moderation) ScanPlagiarism(ctx context.Context) {
	m.schedule(ctx, m.plagiarismSweep(), m.plagiarismDelay)
}

// SweepSpam runs the spam sweep synchronously.
func (m *Moderation) SweepSpam(ctx context.Context) error {
	return m.sweep(ctx, m.spamSweep())
}

// SweepPlagiarism runs the plagiarism sweep synchronously.
func (m *Moderation) SweepPlagiarism(ctx context.Context) error {
	return m.sweep(ctx, m.plagiarismSweep())
}

func (m *Moderation) schedule(ctx context.Context, spec sweepSpec, delay time.Duration) {
	m.alert(ctx, "Verificação agendada: "+spec.name, models.LevelInfo)
	m.runner.Schedule(ctx, spec.name, delay, func(ctx context.Context) error {
		return m.sweep(ctx, spec)
	})
}

func (m *Moderation) sweep(ctx context.Context, spec sweepSpec) (err error) {
	report := ScanReport{Scanner: spec.name, StartedAt: m.now()}
	defer func() {
		report.FinishedAt = m.now()
		if err != nil {
			report.Error = err.Error()
		}
		m.mu.Lock()
		m.scans[spec.name] = report
		m.mu.Unlock()
	}()

	// The post slice is replaced wholesale on import and never mutated in
	// place, so the snapshot stays valid outside the lock.
	m.mu.RLock()
	posts := m.posts
	settings := m.settings
	actor := m.actorLocked(ctx, spec.flaggedBy)
	m.mu.RUnlock()

	matches := spec.find(posts)
	report.Matches = len(matches)
	observability.ScanMatches.WithLabelValues(spec.name).Add(float64(len(matches)))

	if len(matches) == 0 {
		m.alert(ctx, spec.clean, models.LevelSuccess)
		return nil
	}
	m.alert(ctx, fmt.Sprintf(spec.found, len(matches)), models.LevelWarning)

	report.AutoFlag = spec.autoFlag(settings)
	if !report.AutoFlag {
		if m.confirmer == nil {
			return nil
		}
		ok, cerr := m.confirmer.Confirm(ctx, fmt.Sprintf(spec.prompt, len(matches)))
		if cerr != nil {
			return fmt.Errorf("confirm %s sweep: %w", spec.name, cerr)
		}
		if !ok {
			return nil
		}
		report.Confirmed = true
	}

	ids := make([]string, len(matches))
	for i := range matches {
		ids[i] = matches[i].ID
	}

	m.persistMu.Lock()
	m.mu.Lock()
	added := m.flags.FlagAll(ids, actor, spec.reason, m.now())
	snapshot := m.flags.Snapshot()
	m.mu.Unlock()

	report.Flagged = added
	if added > 0 {
		m.persistFlags(ctx, snapshot)
	}
	m.persistMu.Unlock()
	m.alert(ctx, fmt.Sprintf(spec.applied, added), models.LevelInfo)
	m.logger.InfoContext(ctx, "sweep applied",
		slog.String("scanner", spec.name),
		slog.Int("matches", len(matches)),
		slog.Int("flagged", added),
		slog.String("actor", actor),
	)
	return nil
}

// LastScans returns the most recent report of each sweep, by scanner name.
func (m *Moderation) LastScans() []ScanReport {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ScanReport, 0, len(m.scans))
	for _, r := range m.scans {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Scanner < out[j].Scanner })
	return out
}

// AdvancedEnabled reports whether the multi-signal scan is on for the
// session moderator. Without a flag manager it is always on.
func (m *Moderation) AdvancedEnabled() bool {
	if m.features == nil {
		return true
	}
	m.mu.RLock()
	moderator := m.actorLocked(context.Background(), "")
	m.mu.RUnlock()
	return m.features.Enabled(featureflags.AdvancedScan, moderator)
}

// AdvancedScan scores every post and returns those at or above threshold.
// A non-positive threshold uses the configured default.
func (m *Moderation) AdvancedScan(ctx context.Context, threshold float64) ([]scanner.AdvancedScore, error) {
	if threshold <= 0 {
		threshold = m.rules.Advanced.Threshold
	}
	m.mu.RLock()
	posts := m.posts
	m.mu.RUnlock()

	var out []scanner.AdvancedScore
	err := m.runner.RunNow(ctx, scanner.NameAdvanced, func(context.Context) error {
		out = m.advanced.Sweep(posts, threshold)
		observability.ScanMatches.WithLabelValues(scanner.NameAdvanced).Add(float64(len(out)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AdvancedScanPost scores one post.
func (m *Moderation) AdvancedScanPost(id string) (*scanner.AdvancedScore, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.index[id]
	if !ok {
		return nil, models.NewNotFoundError("Post", id)
	}
	s := m.advanced.Score(&m.posts[i])
	return &s, nil
}
