package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscrowDebitsBalance(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	bal, err := m.Escrow(ctx, "alice", "room1", 100)
	require.NoError(t, err)
	assert.Equal(t, StartingCoins-100, bal)
}

func TestEscrowInsufficientFunds(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	bal, err := m.Escrow(ctx, "alice", "room1", StartingCoins+1)
	assert.ErrorIs(t, err, ErrInsufficient)
	assert.Equal(t, StartingCoins, bal, "failed escrow must not touch the balance")
}

func TestEscrowIdempotentPerRoom(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.Escrow(ctx, "alice", "room1", 100)
	require.NoError(t, err)

	// A reconnecting client retries the escrow; it must not double-debit.
	bal, err := m.Escrow(ctx, "alice", "room1", 100)
	require.NoError(t, err)
	assert.Equal(t, StartingCoins-100, bal)

	// A different room is a fresh stake.
	bal, err = m.Escrow(ctx, "alice", "room2", 100)
	require.NoError(t, err)
	assert.Equal(t, StartingCoins-200, bal)
}

func TestRefundReturnsStake(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.Escrow(ctx, "alice", "room1", 250)
	require.NoError(t, err)

	bal, err := m.Refund(ctx, "alice", "room1")
	require.NoError(t, err)
	assert.Equal(t, StartingCoins, bal)

	// Refund without an escrow is a harmless no-op.
	bal, err = m.Refund(ctx, "alice", "room1")
	require.NoError(t, err)
	assert.Equal(t, StartingCoins, bal)
}

func TestPayoutAwardsPotToWinner(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.Escrow(ctx, "alice", "room1", 100)
	require.NoError(t, err)
	_, err = m.Escrow(ctx, "bob", "room1", 100)
	require.NoError(t, err)

	bal, err := m.Payout(ctx, "room1", "alice")
	require.NoError(t, err)
	assert.Equal(t, StartingCoins+100, bal)

	bobBal, err := m.Balance(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, StartingCoins-100, bobBal)
}

func TestPayoutRequiresBothStakes(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.Escrow(ctx, "alice", "room1", 100)
	require.NoError(t, err)

	_, err = m.Payout(ctx, "room1", "alice")
	assert.ErrorIs(t, err, ErrNotBothPaid)
}

func TestPayoutWinnerMustHaveStaked(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.Escrow(ctx, "alice", "room1", 100)
	require.NoError(t, err)
	_, err = m.Escrow(ctx, "bob", "room1", 100)
	require.NoError(t, err)

	_, err = m.Payout(ctx, "room1", "mallory")
	assert.ErrorIs(t, err, ErrNotBothPaid)
}

func TestPayoutExactlyOnce(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.Escrow(ctx, "alice", "room1", 100)
	require.NoError(t, err)
	_, err = m.Escrow(ctx, "bob", "room1", 100)
	require.NoError(t, err)

	_, err = m.Payout(ctx, "room1", "alice")
	require.NoError(t, err)

	_, err = m.Payout(ctx, "room1", "bob")
	assert.ErrorIs(t, err, ErrAlreadyPaid)

	// The stakes were consumed; a later refund must not mint coins.
	bal, err := m.Refund(ctx, "bob", "room1")
	require.NoError(t, err)
	assert.Equal(t, StartingCoins-100, bal)
}

func TestBalanceSeedsNewAccounts(t *testing.T) {
	m := NewMemory()
	bal, err := m.Balance(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Equal(t, StartingCoins, bal)
}
