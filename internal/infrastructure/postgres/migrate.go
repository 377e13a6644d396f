package postgres

import (
	"context"
	"embed"
	"fmt"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate ejecuta en orden los archivos *.up.sql embebidos. Son idempotentes
// (IF NOT EXISTS), así que se pueden correr en cada despliegue.
func Migrate(ctx context.Context, q Querier) ([]string, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("leer migraciones: %w", err)
	}
	var files []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, f := range files {
		body, err := migrationsFS.ReadFile("migrations/" + f)
		if err != nil {
			return nil, fmt.Errorf("leer migración %s: %w", f, err)
		}
		if _, err := q.Exec(ctx, string(body)); err != nil {
			return nil, fmt.Errorf("ejecutar migración %s: %w", f, err)
		}
	}
	return files, nil
}
