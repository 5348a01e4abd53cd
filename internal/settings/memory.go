package settings

import (
	"context"
	"slices"
	"strings"
	"sync"
)

type chatState struct {
	welcome      Greeting
	goodbye      Greeting
	mute         MutePolicy
	cleanService bool
	cleanWelcome CleanWelcome
	notes        map[string]Note
}

type humanKey struct {
	userID int64
	chatID int64
}

// MemoryStore is a Store kept entirely in memory. It is safe for
// concurrent use and is used in tests and when no database is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	chats  map[int64]*chatState
	humans map[humanKey]struct{}
	gbans  map[int64]GlobalBan
}

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		chats:  make(map[int64]*chatState),
		humans: make(map[humanKey]struct{}),
		gbans:  make(map[int64]GlobalBan),
	}
}

// chat returns the state of chatID, creating it. Callers hold mu for writing.
func (m *MemoryStore) chat(chatID int64) *chatState {
	c, ok := m.chats[chatID]
	if !ok {
		c = &chatState{
			welcome: DefaultWelcome,
			goodbye: DefaultGoodbye,
			mute:    DefaultMutePolicy,
			notes:   make(map[string]Note),
		}
		m.chats[chatID] = c
	}
	return c
}

func cloneGreeting(g Greeting) Greeting {
	g.Buttons = slices.Clone(g.Buttons)
	return g
}

// Welcome implements Store.
func (m *MemoryStore) Welcome(_ context.Context, chatID int64) (Greeting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.chats[chatID]; ok {
		return cloneGreeting(c.welcome), nil
	}
	return DefaultWelcome, nil
}

// SetWelcomeEnabled implements Store.
func (m *MemoryStore) SetWelcomeEnabled(_ context.Context, chatID int64, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chat(chatID).welcome.Enabled = enabled
	return nil
}

// SetWelcome implements Store. The enabled flag is preserved.
func (m *MemoryStore) SetWelcome(_ context.Context, chatID int64, g Greeting) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.chat(chatID)
	g.Enabled = c.welcome.Enabled
	c.welcome = cloneGreeting(g)
	return nil
}

// ResetWelcome implements Store.
func (m *MemoryStore) ResetWelcome(_ context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.chat(chatID)
	c.welcome = Greeting{Enabled: c.welcome.Enabled, Type: TypeText}
	return nil
}

// Goodbye implements Store.
func (m *MemoryStore) Goodbye(_ context.Context, chatID int64) (Greeting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.chats[chatID]; ok {
		return cloneGreeting(c.goodbye), nil
	}
	return DefaultGoodbye, nil
}

// SetGoodbyeEnabled implements Store.
func (m *MemoryStore) SetGoodbyeEnabled(_ context.Context, chatID int64, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chat(chatID).goodbye.Enabled = enabled
	return nil
}

// SetGoodbye implements Store. The enabled flag is preserved.
func (m *MemoryStore) SetGoodbye(_ context.Context, chatID int64, g Greeting) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.chat(chatID)
	g.Enabled = c.goodbye.Enabled
	c.goodbye = cloneGreeting(g)
	return nil
}

// ResetGoodbye implements Store.
func (m *MemoryStore) ResetGoodbye(_ context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.chat(chatID)
	c.goodbye = Greeting{Enabled: c.goodbye.Enabled, Type: TypeText}
	return nil
}

// MutePolicy implements Store.
func (m *MemoryStore) MutePolicy(_ context.Context, chatID int64) (MutePolicy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.chats[chatID]; ok {
		return c.mute, nil
	}
	return DefaultMutePolicy, nil
}

// SetMutePolicy implements Store.
func (m *MemoryStore) SetMutePolicy(_ context.Context, chatID int64, p MutePolicy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chat(chatID).mute = p
	return nil
}

// HumanCheckPassed implements Store.
func (m *MemoryStore) HumanCheckPassed(_ context.Context, userID, chatID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.humans[humanKey{userID: userID, chatID: chatID}]
	return ok, nil
}

// SetHumanCheckPassed implements Store.
func (m *MemoryStore) SetHumanCheckPassed(_ context.Context, userID, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.humans[humanKey{userID: userID, chatID: chatID}] = struct{}{}
	return nil
}

// CleanService implements Store.
func (m *MemoryStore) CleanService(_ context.Context, chatID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.chats[chatID]; ok {
		return c.cleanService, nil
	}
	return false, nil
}

// SetCleanService implements Store.
func (m *MemoryStore) SetCleanService(_ context.Context, chatID int64, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chat(chatID).cleanService = enabled
	return nil
}

// CleanWelcome implements Store.
func (m *MemoryStore) CleanWelcome(_ context.Context, chatID int64) (CleanWelcome, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.chats[chatID]; ok {
		return c.cleanWelcome, nil
	}
	return CleanWelcome{}, nil
}

// SetCleanWelcomeEnabled implements Store.
func (m *MemoryStore) SetCleanWelcomeEnabled(_ context.Context, chatID int64, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chat(chatID).cleanWelcome.Enabled = enabled
	return nil
}

// SetCleanWelcomeMessages implements Store.
func (m *MemoryStore) SetCleanWelcomeMessages(_ context.Context, chatID int64, welcomeID, joinID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cw := &m.chat(chatID).cleanWelcome
	cw.LastWelcomeID = welcomeID
	cw.LastJoinID = joinID
	return nil
}

// Note implements Store. Names are case-insensitive.
func (m *MemoryStore) Note(_ context.Context, chatID int64, name string) (Note, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.chats[chatID]; ok {
		if n, ok := c.notes[strings.ToLower(name)]; ok {
			n.Buttons = slices.Clone(n.Buttons)
			return n, nil
		}
	}
	return Note{}, ErrNotFound
}

// SaveNote implements Store.
func (m *MemoryStore) SaveNote(_ context.Context, n Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n.Name = strings.ToLower(n.Name)
	n.Buttons = slices.Clone(n.Buttons)
	m.chat(n.ChatID).notes[n.Name] = n
	return nil
}

// DeleteNote implements Store.
func (m *MemoryStore) DeleteNote(_ context.Context, chatID int64, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chats[chatID]
	if !ok {
		return false, nil
	}
	key := strings.ToLower(name)
	if _, ok := c.notes[key]; !ok {
		return false, nil
	}
	delete(c.notes, key)
	return true, nil
}

// Notes implements Store. Notes are sorted by name.
func (m *MemoryStore) Notes(_ context.Context, chatID int64) ([]Note, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.chats[chatID]
	if !ok {
		return nil, nil
	}
	out := make([]Note, 0, len(c.notes))
	for _, n := range c.notes {
		out = append(out, n)
	}
	slices.SortFunc(out, func(a, b Note) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

// DeleteAllNotes implements Store.
func (m *MemoryStore) DeleteAllNotes(_ context.Context, chatID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chats[chatID]
	if !ok {
		return 0, nil
	}
	n := len(c.notes)
	c.notes = make(map[string]Note)
	return n, nil
}

// GlobalBan implements Store.
func (m *MemoryStore) GlobalBan(_ context.Context, userID int64) (GlobalBan, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.gbans[userID]
	return b, ok, nil
}

// AddGlobalBan implements Store.
func (m *MemoryStore) AddGlobalBan(_ context.Context, ban GlobalBan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gbans[ban.UserID] = ban
	return nil
}

// RemoveGlobalBan implements Store.
func (m *MemoryStore) RemoveGlobalBan(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.gbans, userID)
	return nil
}
