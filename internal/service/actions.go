package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/faireye-hive/hive-cache/internal/models"
	"github.com/faireye-hive/hive-cache/internal/observability"
)

// ToggleResult is the outcome of a flag toggle.
type ToggleResult struct {
	PostID  string             `json:"postId"`
	Flagged bool               `json:"flagged"`
	Record  *models.FlagRecord `json:"record,omitempty"`
}

// ToggleFlag flags or unflags a post on behalf of the acting moderator.
func (m *Moderation) ToggleFlag(ctx context.Context, id string) (*ToggleResult, error) {
	m.persistMu.Lock()
	m.mu.Lock()
	i, ok := m.index[id]
	if !ok {
		m.mu.Unlock()
		m.persistMu.Unlock()
		return nil, models.NewNotFoundError("Post", id)
	}
	post := m.posts[i]
	actor := m.actorLocked(ctx, SystemActor)
	flagged, rec := m.flags.Toggle(id, actor, m.now())
	snapshot := m.flags.Snapshot()
	settings := m.settings
	m.mu.Unlock()

	m.persistFlags(ctx, snapshot)
	m.persistMu.Unlock()

	res := &ToggleResult{PostID: id, Flagged: flagged}
	if flagged {
		res.Record = &rec
		m.notifyHighPayout(ctx, post, settings)
	}
	m.logger.InfoContext(ctx, "flag toggled",
		slog.String("post_id", id),
		slog.Bool("flagged", flagged),
		slog.String("actor", actor),
	)
	return res, nil
}

func (m *Moderation) notifyHighPayout(ctx context.Context, p models.Post, settings models.Settings) {
	if !settings.NotifyHighPayout || p.PendingPayout <= settings.PayoutAlertThreshold {
		return
	}
	m.alert(ctx, "Post de alto valor sinalizado: "+p.Title, models.LevelWarning)
}

// IsFlagged reports whether id is flagged.
func (m *Moderation) IsFlagged(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.flags.Has(id)
}

// Mute hides author from listings. It reports whether the list changed.
func (m *Moderation) Mute(ctx context.Context, author string) (bool, error) {
	return m.changeMute(ctx, author, true)
}

// Unmute restores author in listings.
func (m *Moderation) Unmute(ctx context.Context, author string) (bool, error) {
	return m.changeMute(ctx, author, false)
}

func (m *Moderation) changeMute(ctx context.Context, author string, mute bool) (bool, error) {
	author = strings.TrimSpace(author)
	if author == "" {
		return false, models.NewValidationError("author is required")
	}

	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	m.mu.Lock()
	var changed bool
	if mute {
		changed = m.mutes.Mute(author)
	} else {
		changed = m.mutes.Unmute(author)
	}
	list := m.mutes.List()
	m.mu.Unlock()

	if changed {
		m.persistMutes(ctx, list)
	}
	return changed, nil
}

// Mutes returns the muted authors, sorted.
func (m *Moderation) Mutes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mutes.List()
}

// Settings returns the current settings.
func (m *Moderation) Settings() models.Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings
}

// UpdateSettings validates and persists s. Invalid settings change nothing.
func (m *Moderation) UpdateSettings(ctx context.Context, s models.Settings) (models.Settings, error) {
	if err := s.Validate(); err != nil {
		return m.Settings(), err
	}
	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	m.mu.Lock()
	m.settings = s
	m.mu.Unlock()

	if err := m.repo.SaveSettings(ctx, s); err != nil {
		m.logger.ErrorContext(ctx, "failed to persist settings", slog.String("error", err.Error()))
	}
	return s, nil
}

// Session returns the current moderator session, nil when anonymous.
func (m *Moderation) Session() *models.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return nil
	}
	s := *m.session
	return &s
}

// Login records username as the active moderator.
func (m *Moderation) Login(ctx context.Context, username string) (*models.Session, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, models.NewValidationError("username is required")
	}
	s := models.Session{Username: username, Since: m.now().UTC()}

	m.persistMu.Lock()
	m.mu.Lock()
	m.session = &s
	m.mu.Unlock()

	if err := m.repo.SaveSession(ctx, s); err != nil {
		m.logger.ErrorContext(ctx, "failed to persist session", slog.String("error", err.Error()))
	}
	m.persistMu.Unlock()
	ctx = observability.WithModerator(ctx, username)
	m.logger.InfoContext(ctx, "moderator logged in", slog.String("moderator", username))
	return &s, nil
}

// Logout clears the session.
func (m *Moderation) Logout(ctx context.Context) {
	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	m.mu.Lock()
	m.session = nil
	m.mu.Unlock()

	if err := m.repo.ClearSession(ctx); err != nil {
		m.logger.ErrorContext(ctx, "failed to clear session", slog.String("error", err.Error()))
	}
}
