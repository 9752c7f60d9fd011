package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Postgres persists the ledger in the same shape the original service kept:
// per-account balances, a flat transaction log, escrow flags per (room, uid),
// and a unique payout marker per room for double-payout prevention.
type Postgres struct {
	db *gorm.DB
}

type Account struct {
	UID     string `gorm:"primaryKey"`
	Coins   int64
	Updated time.Time `gorm:"autoUpdateTime"`
}

type Transaction struct {
	ID     string `gorm:"primaryKey"`
	UID    string `gorm:"index"`
	Type   TxType
	Amount int64
	RoomID string
	At     time.Time `gorm:"autoCreateTime"`
}

type EscrowRow struct {
	RoomID string `gorm:"primaryKey"`
	UID    string `gorm:"primaryKey"`
	Amount int64
	At     time.Time `gorm:"autoCreateTime"`
}

type PayoutRow struct {
	RoomID string `gorm:"primaryKey"`
	Winner string
	Amount int64
	At     time.Time `gorm:"autoCreateTime"`
}

func OpenPostgres(dsn string) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Account{}, &Transaction{}, &EscrowRow{}, &PayoutRow{}); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) account(tx *gorm.DB, uid string) (*Account, error) {
	var acc Account
	err := tx.First(&acc, "uid = ?", uid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		acc = Account{UID: uid, Coins: StartingCoins}
		if err := tx.Create(&acc).Error; err != nil {
			return nil, err
		}
		return &acc, nil
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (p *Postgres) Escrow(ctx context.Context, uid, roomID string, amount int64) (int64, error) {
	var balance int64
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing EscrowRow
		err := tx.First(&existing, "room_id = ? AND uid = ?", roomID, uid).Error
		if err == nil {
			acc, err := p.account(tx, uid)
			if err != nil {
				return err
			}
			balance = acc.Coins
			return nil // already escrowed
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		acc, err := p.account(tx, uid)
		if err != nil {
			return err
		}
		if acc.Coins < amount {
			balance = acc.Coins
			return ErrInsufficient
		}
		acc.Coins -= amount
		if err := tx.Save(acc).Error; err != nil {
			return err
		}
		if err := tx.Create(&EscrowRow{RoomID: roomID, UID: uid, Amount: amount}).Error; err != nil {
			return err
		}
		balance = acc.Coins
		return tx.Create(&Transaction{
			ID: uuid.NewString(), UID: uid, Type: TxEscrow, Amount: -amount, RoomID: roomID,
		}).Error
	})
	return balance, err
}

func (p *Postgres) Refund(ctx context.Context, uid, roomID string) (int64, error) {
	var balance int64
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row EscrowRow
		err := tx.First(&row, "room_id = ? AND uid = ?", roomID, uid).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			acc, err := p.account(tx, uid)
			if err != nil {
				return err
			}
			balance = acc.Coins
			return nil // nothing to refund
		}
		if err != nil {
			return err
		}
		if err := tx.Delete(&row).Error; err != nil {
			return err
		}
		acc, err := p.account(tx, uid)
		if err != nil {
			return err
		}
		acc.Coins += row.Amount
		if err := tx.Save(acc).Error; err != nil {
			return err
		}
		balance = acc.Coins
		return tx.Create(&Transaction{
			ID: uuid.NewString(), UID: uid, Type: TxRefund, Amount: row.Amount, RoomID: roomID,
		}).Error
	})
	return balance, err
}

func (p *Postgres) Payout(ctx context.Context, roomID, winnerUID string) (int64, error) {
	var balance int64
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var done PayoutRow
		if err := tx.First(&done, "room_id = ?", roomID).Error; err == nil {
			return ErrAlreadyPaid
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var escrows []EscrowRow
		if err := tx.Find(&escrows, "room_id = ?", roomID).Error; err != nil {
			return err
		}
		var pot int64
		winnerPaid := false
		for _, e := range escrows {
			pot += e.Amount
			if e.UID == winnerUID {
				winnerPaid = true
			}
		}
		if len(escrows) < 2 || !winnerPaid {
			return ErrNotBothPaid
		}
		if err := tx.Delete(&EscrowRow{}, "room_id = ?", roomID).Error; err != nil {
			return err
		}
		if err := tx.Create(&PayoutRow{RoomID: roomID, Winner: winnerUID, Amount: pot}).Error; err != nil {
			return err
		}
		acc, err := p.account(tx, winnerUID)
		if err != nil {
			return err
		}
		acc.Coins += pot
		if err := tx.Save(acc).Error; err != nil {
			return err
		}
		balance = acc.Coins
		return tx.Create(&Transaction{
			ID: uuid.NewString(), UID: winnerUID, Type: TxPayout, Amount: pot, RoomID: roomID,
		}).Error
	})
	return balance, err
}

func (p *Postgres) Balance(ctx context.Context, uid string) (int64, error) {
	var balance int64
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		acc, err := p.account(tx, uid)
		if err != nil {
			return err
		}
		balance = acc.Coins
		return nil
	})
	return balance, err
}
