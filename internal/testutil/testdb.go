package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const templateDB = "royalties_template"

var (
	startOnce sync.Once
	startErr  error
	adminURL  *url.URL

	// CREATE DATABASE .. TEMPLATE fails if two clones read the template at once.
	cloneMu sync.Mutex
	dbSeq   atomic.Int64
)

// SetupTestDB returns a fresh, fully migrated database. One postgres
// container is shared by the test binary; each call clones a migrated
// template so tests never see each other's rows. The container is reaped by
// testcontainers when the binary exits.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	startOnce.Do(func() { startErr = startContainer(ctx) })
	if startErr != nil {
		t.Fatalf("start postgres: %v", startErr)
	}

	name := fmt.Sprintf("royalties_test_%d", dbSeq.Add(1))
	if err := cloneTemplate(ctx, name); err != nil {
		t.Fatalf("create test database: %v", err)
	}

	db, err := sql.Open("postgres", databaseURL(name))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
		if err := dropDatabase(context.Background(), name); err != nil {
			t.Logf("drop %s: %v", name, err)
		}
	})

	return db
}

func startContainer(ctx context.Context) error {
	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase(templateDB),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return fmt.Errorf("run container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return fmt.Errorf("connection string: %w", err)
	}
	adminURL, err = url.Parse(connStr)
	if err != nil {
		return fmt.Errorf("parse connection string: %w", err)
	}

	tmpl, err := sql.Open("postgres", databaseURL(templateDB))
	if err != nil {
		return fmt.Errorf("open template: %w", err)
	}
	defer tmpl.Close()

	if err := runMigrations(tmpl); err != nil {
		return fmt.Errorf("migrate template: %w", err)
	}
	return nil
}

func databaseURL(name string) string {
	u := *adminURL
	u.Path = "/" + name
	return u.String()
}

func cloneTemplate(ctx context.Context, name string) error {
	cloneMu.Lock()
	defer cloneMu.Unlock()

	admin, err := sql.Open("postgres", databaseURL("postgres"))
	if err != nil {
		return err
	}
	defer admin.Close()

	_, err = admin.ExecContext(ctx, fmt.Sprintf(`CREATE DATABASE %s TEMPLATE %s`, name, templateDB))
	return err
}

func dropDatabase(ctx context.Context, name string) error {
	admin, err := sql.Open("postgres", databaseURL("postgres"))
	if err != nil {
		return err
	}
	defer admin.Close()

	_, err = admin.ExecContext(ctx, fmt.Sprintf(`DROP DATABASE IF EXISTS %s WITH (FORCE)`, name))
	return err
}

func runMigrations(db *sql.DB) error {
	migrationsDir := findMigrationsDir()

	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var upFiles []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			upFiles = append(upFiles, e.Name())
		}
	}
	sort.Strings(upFiles)

	for _, f := range upFiles {
		content, err := os.ReadFile(filepath.Join(migrationsDir, f))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}
		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("execute migration %s: %w", f, err)
		}
	}

	return nil
}

// findMigrationsDir walks up from the package under test to the module root.
func findMigrationsDir() string {
	dir, err := os.Getwd()
	if err != nil {
		return "migrations"
	}
	for range 10 {
		candidate := filepath.Join(dir, "migrations")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
		dir = filepath.Dir(dir)
	}
	return "migrations"
}
