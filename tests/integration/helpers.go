package integration

import (
	"herald/internal/logger"
)

func createTestLogger() logger.Logger {
	return logger.NopLogger()
}
