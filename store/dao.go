package store

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Recorder persists order history.
type Recorder interface {
	SaveSubmittedTransaction(tx *SubmittedTransaction) error
	SaveExecutedOrder(order *ExecutedOrder) error
	SaveSettledOrder(order *SettledOrder) error
}

type Dao struct {
	db *gorm.DB
}

func NewDao(dsn string) (*Dao, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	if err := db.AutoMigrate(&SubmittedTransaction{}, &ExecutedOrder{}, &SettledOrder{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Dao{db: db}, nil
}

func (dao *Dao) SaveSubmittedTransaction(tx *SubmittedTransaction) error {
	return dao.db.Create(tx).Error
}

// SaveExecutedOrder overwrites an earlier row for the same order.
func (dao *Dao) SaveExecutedOrder(order *ExecutedOrder) error {
	return dao.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(order).Error
}

func (dao *Dao) SaveSettledOrder(order *SettledOrder) error {
	return dao.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(order).Error
}

func (dao *Dao) SelectSubmittedTransactions(orderHash string) ([]*SubmittedTransaction, error) {
	txs := make([]*SubmittedTransaction, 0)
	res := dao.db.Where("order_hash = ?", orderHash).Order("sent_at").Find(&txs)
	return txs, res.Error
}

func (dao *Dao) SelectExecutedOrder(orderHash string) (*ExecutedOrder, error) {
	order := &ExecutedOrder{}
	res := dao.db.Where("order_hash = ?", orderHash).First(order)
	return order, res.Error
}

func (dao *Dao) SelectSettledOrder(orderHash string) (*SettledOrder, error) {
	order := &SettledOrder{}
	res := dao.db.Where("order_hash = ?", orderHash).First(order)
	return order, res.Error
}
