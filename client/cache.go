package client

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// WalletSnapshot is the cached wallet state shown while the wallet service
// is not being polled.
type WalletSnapshot struct {
	Balance   decimal.Decimal `json:"balance"`
	Currency  string          `json:"currency"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// CacheWallet persists a wallet snapshot under the wallet cache key
func (m *Manager) CacheWallet(snapshot WalletSnapshot) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return m.storage.Set(KeyWalletCache, string(raw))
}

// Wallet returns the cached wallet snapshot, if any
func (m *Manager) Wallet() (WalletSnapshot, bool) {
	raw, ok := m.storage.Get(KeyWalletCache)
	if !ok {
		return WalletSnapshot{}, false
	}

	var snapshot WalletSnapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		return WalletSnapshot{}, false
	}
	return snapshot, true
}

// CacheProgress persists an opaque course-progress blob
func (m *Manager) CacheProgress(raw json.RawMessage) error {
	return m.storage.Set(KeyProgressCache, string(raw))
}

// Progress returns the cached course-progress blob, if any
func (m *Manager) Progress() (json.RawMessage, bool) {
	raw, ok := m.storage.Get(KeyProgressCache)
	if !ok {
		return nil, false
	}
	return json.RawMessage(raw), true
}

// CacheExamResults persists an opaque exam-results blob
func (m *Manager) CacheExamResults(raw json.RawMessage) error {
	return m.storage.Set(KeyExamResultsCache, string(raw))
}

// ExamResults returns the cached exam-results blob, if any
func (m *Manager) ExamResults() (json.RawMessage, bool) {
	raw, ok := m.storage.Get(KeyExamResultsCache)
	if !ok {
		return nil, false
	}
	return json.RawMessage(raw), true
}
