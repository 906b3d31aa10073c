package state

import (
	"sync"
	"time"
)

// Manager хранит диалоги пользователей в памяти процесса
type Manager struct {
	mu     sync.RWMutex
	states map[int64]*UserData // telegramID -> UserData
	ttl    time.Duration
	now    func() time.Time
}

func NewManager(ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultDialogTTL
	}
	return &Manager{
		states: make(map[int64]*UserData),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Begin начинает диалог, заменяя предыдущий
func (sm *Manager) Begin(telegramID int64, state UserState, data map[string]string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if state == StateNone {
		delete(sm.states, telegramID)
		return
	}

	copied := make(map[string]string, len(data))
	for k, v := range data {
		copied[k] = v
	}
	sm.states[telegramID] = &UserData{
		State:     state,
		Data:      copied,
		ExpiresAt: sm.now().Add(sm.ttl),
	}
}

// GetState текущее состояние. Просроченный диалог считается завершённым
func (sm *Manager) GetState(telegramID int64) UserState {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if userData, ok := sm.active(telegramID); ok {
		return userData.State
	}
	return StateNone
}

// GetData значение из данных диалога
func (sm *Manager) GetData(telegramID int64, key string) (string, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	userData, ok := sm.active(telegramID)
	if !ok {
		return "", false
	}
	value, ok := userData.Data[key]
	return value, ok
}

// ClearState завершает диалог
func (sm *Manager) ClearState(telegramID int64) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	delete(sm.states, telegramID)
}

// Sweep удаляет просроченные диалоги, возвращает их число
func (sm *Manager) Sweep() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	now := sm.now()
	removed := 0
	for id, userData := range sm.states {
		if !now.Before(userData.ExpiresAt) {
			delete(sm.states, id)
			removed++
		}
	}
	return removed
}

// вызывать под mu
func (sm *Manager) active(telegramID int64) (*UserData, bool) {
	userData, ok := sm.states[telegramID]
	if !ok || !sm.now().Before(userData.ExpiresAt) {
		return nil, false
	}
	return userData, true
}
