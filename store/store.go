package store

import (
	"context"

	"go.uber.org/zap"
)

const queueSize = 256

// Store writes history from its own goroutine so that callers never wait on
// the database.
type Store struct {
	logger        *zap.SugaredLogger
	recorder      Recorder
	submittedChan chan *SubmittedTransaction
	executedChan  chan *ExecutedOrder
	settledChan   chan *SettledOrder
}

func NewStore(recorder Recorder, logger *zap.SugaredLogger) *Store {
	return &Store{
		logger:        logger,
		recorder:      recorder,
		submittedChan: make(chan *SubmittedTransaction, queueSize),
		executedChan:  make(chan *ExecutedOrder, queueSize),
		settledChan:   make(chan *SettledOrder, queueSize),
	}
}

func (s *Store) Run(ctx context.Context) error {
	for {
		select {
		case tx := <-s.submittedChan:
			if err := s.recorder.SaveSubmittedTransaction(tx); err != nil {
				s.logger.Errorw("save submitted transaction", "id", tx.Id, "err", err)
			}
		case order := <-s.executedChan:
			if err := s.recorder.SaveExecutedOrder(order); err != nil {
				s.logger.Errorw("save executed order", "order", order.OrderHash, "err", err)
			}
		case order := <-s.settledChan:
			if err := s.recorder.SaveSettledOrder(order); err != nil {
				s.logger.Errorw("save settled order", "order", order.OrderHash, "err", err)
			}
		case <-ctx.Done():
			s.logger.Infow("store exit")
			return nil
		}
	}
}

func (s *Store) StoreSubmittedTransaction(tx *SubmittedTransaction) {
	select {
	case s.submittedChan <- tx:
	default:
		s.logger.Warnw("store queue full, dropping submitted transaction", "id", tx.Id)
	}
}

func (s *Store) StoreExecutedOrder(order *ExecutedOrder) {
	select {
	case s.executedChan <- order:
	default:
		s.logger.Warnw("store queue full, dropping executed order", "order", order.OrderHash)
	}
}

func (s *Store) StoreSettledOrder(order *SettledOrder) {
	select {
	case s.settledChan <- order:
	default:
		s.logger.Warnw("store queue full, dropping settled order", "order", order.OrderHash)
	}
}
