package ledger

import (
	"context"
	"sync"
)

// Memory is an in-process Service used in tests and when no database is
// configured. Accounts start at StartingCoins on first touch.
type Memory struct {
	mu       sync.Mutex
	balances map[string]int64
	escrows  map[string]map[string]int64 // roomID -> uid -> amount
	payouts  map[string]string           // roomID -> winner uid
}

const StartingCoins int64 = 1000

func NewMemory() *Memory {
	return &Memory{
		balances: make(map[string]int64),
		escrows:  make(map[string]map[string]int64),
		payouts:  make(map[string]string),
	}
}

func (m *Memory) balanceOf(uid string) int64 {
	if _, ok := m.balances[uid]; !ok {
		m.balances[uid] = StartingCoins
	}
	return m.balances[uid]
}

func (m *Memory) Escrow(_ context.Context, uid, roomID string, amount int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if amt, ok := m.escrows[roomID][uid]; ok && amt > 0 {
		return m.balanceOf(uid), nil // already escrowed
	}
	bal := m.balanceOf(uid)
	if bal < amount {
		return bal, ErrInsufficient
	}
	m.balances[uid] = bal - amount
	if m.escrows[roomID] == nil {
		m.escrows[roomID] = make(map[string]int64)
	}
	m.escrows[roomID][uid] = amount
	return m.balances[uid], nil
}

func (m *Memory) Refund(_ context.Context, uid, roomID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	amt, ok := m.escrows[roomID][uid]
	if !ok {
		return m.balanceOf(uid), nil // nothing to refund
	}
	delete(m.escrows[roomID], uid)
	m.balances[uid] = m.balanceOf(uid) + amt
	return m.balances[uid], nil
}

func (m *Memory) Payout(_ context.Context, roomID, winnerUID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, done := m.payouts[roomID]; done {
		return 0, ErrAlreadyPaid
	}
	escrows := m.escrows[roomID]
	if len(escrows) < 2 {
		return 0, ErrNotBothPaid
	}
	if _, ok := escrows[winnerUID]; !ok {
		return 0, ErrNotBothPaid
	}
	var pot int64
	for _, amt := range escrows {
		pot += amt
	}
	delete(m.escrows, roomID)
	m.payouts[roomID] = winnerUID
	m.balances[winnerUID] = m.balanceOf(winnerUID) + pot
	return m.balances[winnerUID], nil
}

func (m *Memory) Balance(_ context.Context, uid string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balanceOf(uid), nil
}
