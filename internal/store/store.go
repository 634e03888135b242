package store

import (
	"fmt"

	"github.com/cometlabs/comet/api/schemas"
	"github.com/cometlabs/comet/internal/config"
)

// Driver names accepted in configuration.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// New creates the configured TaskStore backend.
func New(cfg config.StoreConfig) (schemas.TaskStore, error) {
	switch cfg.Driver {
	case DriverMemory, "":
		return NewMemory(), nil
	case DriverSQLite:
		return NewSQLite(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown store driver %q. Supported: [%s %s]", cfg.Driver, DriverMemory, DriverSQLite)
	}
}
