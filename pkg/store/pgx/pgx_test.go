package pgx

import (
	"io/fs"
	"reflect"
	"strings"
	"testing"
)

func TestMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}

	up := map[string]bool{}
	down := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			up[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			down[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Fatalf("unexpected migration file %s", name)
		}
	}
	if len(up) == 0 {
		t.Fatalf("no migrations embedded")
	}
	if !reflect.DeepEqual(up, down) {
		t.Fatalf("up and down migrations differ: up=%v down=%v", up, down)
	}
}

func TestMigrationsCreateLockTable(t *testing.T) {
	data, err := fs.ReadFile(migrationsFS, "migrations/000002_app_locks.up.sql")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "app_locks") {
		t.Fatalf("lock migration does not create app_locks")
	}
}

func TestNonNil(t *testing.T) {
	if got := nonNil(nil); got == nil || len(got) != 0 {
		t.Fatalf("nonNil(nil) = %#v, want empty slice", got)
	}
	in := []string{"a"}
	if got := nonNil(in); !reflect.DeepEqual(got, in) {
		t.Fatalf("nonNil(%v) = %v", in, got)
	}
}
