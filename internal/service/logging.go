package service

import (
	"go.uber.org/zap"

	"obra-data/internal/domain"
)

// logFailure logs rejected input and conflicts at Warn, everything else at Error.
func logFailure(logger *zap.Logger, msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	if domain.ErrorKind(err) != "" {
		logger.Warn(msg, fields...)
		return
	}
	logger.Error(msg, fields...)
}
