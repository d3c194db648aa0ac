package repositories

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type migration struct {
	path string
	sql  string
}

// readMigrations returns the .sql files of dir in name order.
func readMigrations(dir string) ([]migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %v", err)
	}

	var migrations []migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %v", path, err)
		}
		migrations = append(migrations, migration{path: path, sql: string(b)})
	}
	return migrations, nil
}
