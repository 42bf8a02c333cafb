package store

import "fmt"

// Open returns the store named by driver: "memory" (or "") or "sqlite".
func Open(driver, dsn string) (Store, error) {
	switch driver {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		return OpenSQLite(dsn)
	}
	return nil, fmt.Errorf("store: unknown driver %q", driver)
}
