package testutil

import (
	"io"

	"github.com/dtroode/journal-exchange/internal/logger"
)

func MakeNoopLogger() *logger.Logger {
	return logger.NewWithFormat(io.Discard, 0, logger.FormatText)
}
