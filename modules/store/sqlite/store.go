package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/flemzord/gatekeep/internal/markup"
	"github.com/flemzord/gatekeep/internal/settings"
)

// Store implements settings.Store on a SQLite database.
type Store struct {
	db *sql.DB
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// update applies a SET clause to the settings row of chatID, creating the
// row with defaults first. set is always a constant from this file.
func (s *Store) update(ctx context.Context, chatID int64, set string, args ...any) error {
	if _, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO chat_settings (chat_id) VALUES (?)`, chatID); err != nil {
		return fmt.Errorf("sqlite: create chat %d: %w", chatID, err)
	}
	args = append(args, chatID)
	query := "UPDATE chat_settings SET " + set + ", updated_at = strftime('%Y-%m-%dT%H:%M:%fZ','now') WHERE chat_id = ?"
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("sqlite: update chat %d: %w", chatID, err)
	}
	return nil
}

func encodeButtons(b []markup.Button) (string, error) {
	if len(b) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(b)
	if err != nil {
		return "", fmt.Errorf("sqlite: marshal buttons: %w", err)
	}
	return string(data), nil
}

func decodeButtons(raw string) ([]markup.Button, error) {
	var b []markup.Button
	if raw == "" || raw == "[]" {
		return nil, nil
	}
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		return nil, fmt.Errorf("sqlite: unmarshal buttons: %w", err)
	}
	return b, nil
}

// greeting reads the welcome or goodbye columns; prefix is "welcome" or "goodbye".
func (s *Store) greeting(ctx context.Context, chatID int64, prefix string, def settings.Greeting) (settings.Greeting, error) {
	query := fmt.Sprintf(`SELECT %[1]s_enabled, %[1]s_type, %[1]s_text, %[1]s_file, %[1]s_buttons
		FROM chat_settings WHERE chat_id = ?`, prefix)

	var (
		g       settings.Greeting
		buttons string
	)
	err := s.db.QueryRowContext(ctx, query, chatID).Scan(&g.Enabled, &g.Type, &g.Text, &g.FileID, &buttons)
	if errors.Is(err, sql.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return settings.Greeting{}, fmt.Errorf("sqlite: read %s of %d: %w", prefix, chatID, err)
	}
	if g.Buttons, err = decodeButtons(buttons); err != nil {
		return settings.Greeting{}, err
	}
	return g, nil
}

func (s *Store) setGreeting(ctx context.Context, chatID int64, prefix string, g settings.Greeting) error {
	buttons, err := encodeButtons(g.Buttons)
	if err != nil {
		return err
	}
	set := fmt.Sprintf("%[1]s_type = ?, %[1]s_text = ?, %[1]s_file = ?, %[1]s_buttons = ?", prefix)
	return s.update(ctx, chatID, set, int(g.Type), g.Text, g.FileID, buttons)
}

// Welcome implements settings.Store.
func (s *Store) Welcome(ctx context.Context, chatID int64) (settings.Greeting, error) {
	return s.greeting(ctx, chatID, "welcome", settings.DefaultWelcome)
}

// SetWelcomeEnabled implements settings.Store.
func (s *Store) SetWelcomeEnabled(ctx context.Context, chatID int64, enabled bool) error {
	return s.update(ctx, chatID, "welcome_enabled = ?", enabled)
}

// SetWelcome implements settings.Store.
func (s *Store) SetWelcome(ctx context.Context, chatID int64, g settings.Greeting) error {
	return s.setGreeting(ctx, chatID, "welcome", g)
}

// ResetWelcome implements settings.Store.
func (s *Store) ResetWelcome(ctx context.Context, chatID int64) error {
	return s.setGreeting(ctx, chatID, "welcome", settings.Greeting{Type: settings.TypeText})
}

// Goodbye implements settings.Store.
func (s *Store) Goodbye(ctx context.Context, chatID int64) (settings.Greeting, error) {
	return s.greeting(ctx, chatID, "goodbye", settings.DefaultGoodbye)
}

// SetGoodbyeEnabled implements settings.Store.
func (s *Store) SetGoodbyeEnabled(ctx context.Context, chatID int64, enabled bool) error {
	return s.update(ctx, chatID, "goodbye_enabled = ?", enabled)
}

// SetGoodbye implements settings.Store.
func (s *Store) SetGoodbye(ctx context.Context, chatID int64, g settings.Greeting) error {
	return s.setGreeting(ctx, chatID, "goodbye", g)
}

// ResetGoodbye implements settings.Store.
func (s *Store) ResetGoodbye(ctx context.Context, chatID int64) error {
	return s.setGreeting(ctx, chatID, "goodbye", settings.Greeting{Type: settings.TypeText})
}

// MutePolicy implements settings.Store.
func (s *Store) MutePolicy(ctx context.Context, chatID int64) (settings.MutePolicy, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT mute_policy FROM chat_settings WHERE chat_id = ?`, chatID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return settings.DefaultMutePolicy, nil
	}
	if err != nil {
		return "", fmt.Errorf("sqlite: read mute policy of %d: %w", chatID, err)
	}
	p, ok := settings.ParseMutePolicy(raw)
	if !ok {
		return settings.DefaultMutePolicy, nil
	}
	return p, nil
}

// SetMutePolicy implements settings.Store.
func (s *Store) SetMutePolicy(ctx context.Context, chatID int64, p settings.MutePolicy) error {
	return s.update(ctx, chatID, "mute_policy = ?", string(p))
}

// HumanCheckPassed implements settings.Store.
func (s *Store) HumanCheckPassed(ctx context.Context, userID, chatID int64) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM human_checks WHERE user_id = ? AND chat_id = ?`, userID, chatID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("sqlite: read human check: %w", err)
	}
	return n > 0, nil
}

// SetHumanCheckPassed implements settings.Store.
func (s *Store) SetHumanCheckPassed(ctx context.Context, userID, chatID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO human_checks (user_id, chat_id) VALUES (?, ?)`, userID, chatID)
	if err != nil {
		return fmt.Errorf("sqlite: record human check: %w", err)
	}
	return nil
}

// CleanService implements settings.Store.
func (s *Store) CleanService(ctx context.Context, chatID int64) (bool, error) {
	var on bool
	err := s.db.QueryRowContext(ctx, `SELECT clean_service FROM chat_settings WHERE chat_id = ?`, chatID).Scan(&on)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite: read clean service of %d: %w", chatID, err)
	}
	return on, nil
}

// SetCleanService implements settings.Store.
func (s *Store) SetCleanService(ctx context.Context, chatID int64, enabled bool) error {
	return s.update(ctx, chatID, "clean_service = ?", enabled)
}

// CleanWelcome implements settings.Store.
func (s *Store) CleanWelcome(ctx context.Context, chatID int64) (settings.CleanWelcome, error) {
	var cw settings.CleanWelcome
	err := s.db.QueryRowContext(ctx,
		`SELECT clean_welcome, last_welcome_id, last_join_id FROM chat_settings WHERE chat_id = ?`, chatID).
		Scan(&cw.Enabled, &cw.LastWelcomeID, &cw.LastJoinID)
	if errors.Is(err, sql.ErrNoRows) {
		return settings.CleanWelcome{}, nil
	}
	if err != nil {
		return settings.CleanWelcome{}, fmt.Errorf("sqlite: read clean welcome of %d: %w", chatID, err)
	}
	return cw, nil
}

// SetCleanWelcomeEnabled implements settings.Store.
func (s *Store) SetCleanWelcomeEnabled(ctx context.Context, chatID int64, enabled bool) error {
	return s.update(ctx, chatID, "clean_welcome = ?", enabled)
}

// SetCleanWelcomeMessages implements settings.Store.
func (s *Store) SetCleanWelcomeMessages(ctx context.Context, chatID int64, welcomeID, joinID int) error {
	return s.update(ctx, chatID, "last_welcome_id = ?, last_join_id = ?", welcomeID, joinID)
}

// Note implements settings.Store.
func (s *Store) Note(ctx context.Context, chatID int64, name string) (settings.Note, error) {
	n := settings.Note{ChatID: chatID}
	var buttons string
	err := s.db.QueryRowContext(ctx,
		`SELECT name, type, text, file_id, buttons FROM notes WHERE chat_id = ? AND name = ?`,
		chatID, strings.ToLower(name)).Scan(&n.Name, &n.Type, &n.Text, &n.FileID, &buttons)
	if errors.Is(err, sql.ErrNoRows) {
		return settings.Note{}, settings.ErrNotFound
	}
	if err != nil {
		return settings.Note{}, fmt.Errorf("sqlite: read note %q: %w", name, err)
	}
	if n.Buttons, err = decodeButtons(buttons); err != nil {
		return settings.Note{}, err
	}
	return n, nil
}

// SaveNote implements settings.Store.
func (s *Store) SaveNote(ctx context.Context, n settings.Note) error {
	buttons, err := encodeButtons(n.Buttons)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO notes (chat_id, name, type, text, file_id, buttons)
		VALUES (?, ?, ?, ?, ?, ?)`,
		n.ChatID, strings.ToLower(n.Name), int(n.Type), n.Text, n.FileID, buttons)
	if err != nil {
		return fmt.Errorf("sqlite: save note %q: %w", n.Name, err)
	}
	return nil
}

// DeleteNote implements settings.Store.
func (s *Store) DeleteNote(ctx context.Context, chatID int64, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE chat_id = ? AND name = ?`, chatID, strings.ToLower(name))
	if err != nil {
		return false, fmt.Errorf("sqlite: delete note %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: delete note rows affected: %w", err)
	}
	return n > 0, nil
}

// Notes implements settings.Store.
func (s *Store) Notes(ctx context.Context, chatID int64) ([]settings.Note, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, type, text, file_id, buttons FROM notes WHERE chat_id = ? ORDER BY name`, chatID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list notes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []settings.Note
	for rows.Next() {
		n := settings.Note{ChatID: chatID}
		var buttons string
		if err := rows.Scan(&n.Name, &n.Type, &n.Text, &n.FileID, &buttons); err != nil {
			return nil, fmt.Errorf("sqlite: scan note: %w", err)
		}
		if n.Buttons, err = decodeButtons(buttons); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate notes: %w", err)
	}
	return out, nil
}

// DeleteAllNotes implements settings.Store.
func (s *Store) DeleteAllNotes(ctx context.Context, chatID int64) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE chat_id = ?`, chatID)
	if err != nil {
		return 0, fmt.Errorf("sqlite: delete notes: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: delete notes rows affected: %w", err)
	}
	return int(n), nil
}

// GlobalBan implements settings.Store.
func (s *Store) GlobalBan(ctx context.Context, userID int64) (settings.GlobalBan, bool, error) {
	b := settings.GlobalBan{UserID: userID}
	err := s.db.QueryRowContext(ctx, `SELECT reason FROM gbans WHERE user_id = ?`, userID).Scan(&b.Reason)
	if errors.Is(err, sql.ErrNoRows) {
		return settings.GlobalBan{}, false, nil
	}
	if err != nil {
		return settings.GlobalBan{}, false, fmt.Errorf("sqlite: read gban %d: %w", userID, err)
	}
	return b, true, nil
}

// AddGlobalBan implements settings.Store.
func (s *Store) AddGlobalBan(ctx context.Context, ban settings.GlobalBan) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO gbans (user_id, reason) VALUES (?, ?)`, ban.UserID, ban.Reason)
	if err != nil {
		return fmt.Errorf("sqlite: add gban %d: %w", ban.UserID, err)
	}
	return nil
}

// RemoveGlobalBan implements settings.Store.
func (s *Store) RemoveGlobalBan(ctx context.Context, userID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM gbans WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("sqlite: remove gban %d: %w", userID, err)
	}
	return nil
}
