package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/okian/trialeval/pkg/logger"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverMySQL  = "mysql"
)

// Open builds the Store named by driver.
func Open(ctx context.Context, driver, dsn string, log logger.Logger) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverMemory:
		return NewMemoryStore(), nil
	case DriverMySQL:
		return NewMySQLStore(ctx, dsn, WithLogger(log))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}
