package store

import "time"

// SubmittedTransaction is one pipeline submission, successful or not.
type SubmittedTransaction struct {
	Id        string    `gorm:"primaryKey;type:varchar(36);not null"`
	Kind      string    `gorm:"type:varchar(16);not null;index"`
	OrderHash string    `gorm:"type:varchar(48);not null;index"`
	Payer     string    `gorm:"type:varchar(48);not null"`
	Signature string    `gorm:"type:varchar(120);not null"`
	Attempts  int       `gorm:"type:int;not null"`
	Error     string    `gorm:"type:varchar(512);not null"`
	SentAt    time.Time `gorm:"not null"`
	ElapsedMs int64     `gorm:"type:bigint(20);not null"`
}

// ExecutedOrder is an auction this solver won and executed.
type ExecutedOrder struct {
	OrderHash   string    `gorm:"primaryKey;type:varchar(48);not null"`
	SourceChain uint16    `gorm:"type:int;not null"`
	TargetChain uint16    `gorm:"type:int;not null"`
	Sequence    uint64    `gorm:"type:bigint(20);not null"`
	AmountIn    uint64    `gorm:"type:bigint(20);not null"`
	OfferPrice  uint64    `gorm:"type:bigint(20);not null"`
	Slot        uint64    `gorm:"type:bigint(20);not null"`
	Signature   string    `gorm:"type:varchar(120);not null"`
	ExecutedAt  time.Time `gorm:"not null"`
}

// SettledOrder is a finalized order this solver settled.
type SettledOrder struct {
	OrderHash string    `gorm:"primaryKey;type:varchar(48);not null"`
	Outcome   string    `gorm:"type:varchar(16);not null"`
	BaseFee   uint64    `gorm:"type:bigint(20);not null"`
	CctpNonce uint64    `gorm:"type:bigint(20);not null"`
	Signature string    `gorm:"type:varchar(120);not null"`
	SettledAt time.Time `gorm:"not null"`
}
