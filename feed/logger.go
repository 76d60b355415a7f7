package feed

import (
	"github.com/ThreeDotsLabs/watermill"
	"go.uber.org/zap"
)

// zapAdapter routes watermill's logging into zap.
type zapAdapter struct {
	logger *zap.SugaredLogger
}

func newZapAdapter(logger *zap.SugaredLogger) watermill.LoggerAdapter {
	return &zapAdapter{logger: logger}
}

func keyvals(fields watermill.LogFields) []interface{} {
	kv := make([]interface{}, 0, 2*len(fields))
	for k, v := range fields {
		kv = append(kv, k, v)
	}
	return kv
}

func (a *zapAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.logger.Errorw(msg, append(keyvals(fields), "err", err)...)
}

func (a *zapAdapter) Info(msg string, fields watermill.LogFields) {
	a.logger.Infow(msg, keyvals(fields)...)
}

func (a *zapAdapter) Debug(msg string, fields watermill.LogFields) {
	a.logger.Debugw(msg, keyvals(fields)...)
}

func (a *zapAdapter) Trace(msg string, fields watermill.LogFields) {
	a.logger.Debugw(msg, keyvals(fields)...)
}

func (a *zapAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &zapAdapter{logger: a.logger.With(keyvals(fields)...)}
}
