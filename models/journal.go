package models

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Chart-of-accounts codes used by the posting callers. The journal itself
// knows nothing about orders, stock or production.
const (
	AccountCashReceivable  = "1110"
	AccountInventoryAsset  = "1210"
	AccountFinishedGoods   = "1220"
	AccountAccountsPayable = "2110"
	AccountSalesRevenue    = "4100"
	AccountCostOfGoodsSold = "5110"
)

// JournalEntry is an append-only double-entry fact: one amount debited to one
// account and credited to another, balanced by construction. Reference ids
// are copied by value so entries survive deletion of the referenced document.
// No update or delete exists; corrections are new offsetting entries.
type JournalEntry struct {
	ID            int             `gorm:"primary_key" json:"id"`
	Description   string          `gorm:"size:255;not null" json:"description"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	DebitAccount  string          `gorm:"size:20;index;not null" json:"debit_account"`
	CreditAccount string          `gorm:"size:20;index;not null" json:"credit_account"`
	ReferenceId   string          `gorm:"size:255;index" json:"reference_id"`
	Source        string          `gorm:"size:50;index" json:"source"`
	Metadata      string          `gorm:"type:text" json:"metadata"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewJournalEntry struct {
	Description   string          `json:"description" binding:"required"`
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	DebitAccount  string          `json:"debit_account" binding:"required"`
	CreditAccount string          `json:"credit_account" binding:"required"`
	ReferenceId   string          `json:"reference_id"`
	Source        string          `json:"source"`
	Metadata      string          `json:"metadata"`
}

// PostDoubleEntry appends one balanced journal fact inside the caller's
// transaction. Amount must be positive; callers skip zero/negative postings
// upstream instead of writing no-op rows.
func PostDoubleEntry(ctx context.Context, tx *gorm.DB, input *NewJournalEntry) (*JournalEntry, error) {
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("journal amount must be positive")
	}
	if input.DebitAccount == "" || input.CreditAccount == "" {
		return nil, errors.New("debit and credit accounts are required")
	}
	if input.DebitAccount == input.CreditAccount {
		return nil, errors.New("debit and credit accounts must differ")
	}

	entry := JournalEntry{
		Description:   input.Description,
		Amount:        input.Amount,
		DebitAccount:  input.DebitAccount,
		CreditAccount: input.CreditAccount,
		ReferenceId:   input.ReferenceId,
		Source:        input.Source,
		Metadata:      input.Metadata,
	}
	if err := tx.WithContext(ctx).Create(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}
