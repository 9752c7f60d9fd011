// Package ledger implements the coin escrow/refund/payout flow for
// competitive rooms. The bookkeeping mirrors the account, transaction,
// escrow-flag, and payout-marker records the wager system keeps: escrow is
// idempotent per (room, participant), refund is a no-op without a matching
// escrow, and payout happens at most once per room.
package ledger

import (
	"context"
	"errors"
)

var ErrInsufficient = errors.New("insufficient coins for wager")
var ErrAlreadyPaid = errors.New("payout already processed for this room")
var ErrNotBothPaid = errors.New("both participants must escrow before payout")

type TxType string

const (
	TxEscrow TxType = "escrow"
	TxRefund TxType = "refund"
	TxPayout TxType = "payout"
)

type Service interface {
	// Escrow deducts amount from uid's balance and marks the room paid for
	// that uid. A second escrow for the same (room, uid) is a no-op.
	Escrow(ctx context.Context, uid, roomID string, amount int64) (balance int64, err error)

	// Refund returns uid's escrowed amount for the room, if any.
	Refund(ctx context.Context, uid, roomID string) (balance int64, err error)

	// Payout credits the pot (2x the escrowed wager) to the winner. Requires
	// both escrows present; guarded by a per-room payout-once marker.
	Payout(ctx context.Context, roomID, winnerUID string) (balance int64, err error)

	Balance(ctx context.Context, uid string) (int64, error)
}
