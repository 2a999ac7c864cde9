package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/assert/v2"
	"github.com/redis/go-redis/v9"
)

// runStoreTests exercises the behaviour every Store must share.
func runStoreTests(t *testing.T, s Store) {
	ctx := context.Background()

	t.Run("load missing", func(t *testing.T) {
		_, err := s.Load(ctx, "never-saved")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("save and load", func(t *testing.T) {
		if err := s.Save(ctx, "R", []byte(`{"v":1}`)); err != nil {
			t.Fatal(err)
		}
		data, err := s.Load(ctx, "R")
		if err != nil {
			t.Fatal(err)
		}
		assert.Equal(t, string(data), `{"v":1}`)
	})

	t.Run("overwrite", func(t *testing.T) {
		if err := s.Save(ctx, "R", []byte(`{"v":2}`)); err != nil {
			t.Fatal(err)
		}
		data, err := s.Load(ctx, "R")
		if err != nil {
			t.Fatal(err)
		}
		assert.Equal(t, string(data), `{"v":2}`)
	})

	t.Run("rooms are independent", func(t *testing.T) {
		if err := s.Save(ctx, "other room/with slash", []byte("x")); err != nil {
			t.Fatal(err)
		}
		data, err := s.Load(ctx, "R")
		if err != nil {
			t.Fatal(err)
		}
		assert.Equal(t, string(data), `{"v":2}`)
		data, err = s.Load(ctx, "other room/with slash")
		if err != nil {
			t.Fatal(err)
		}
		assert.Equal(t, string(data), "x")
	})

	t.Run("concurrent saves never tear", func(t *testing.T) {
		docs := []string{strings.Repeat("a", 4096), strings.Repeat("b", 8192)}
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if err := s.Save(ctx, "busy", []byte(docs[i%2])); err != nil {
					t.Error(err)
				}
			}(i)
		}
		wg.Wait()
		data, err := s.Load(ctx, "busy")
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != docs[0] && string(data) != docs[1] {
			t.Errorf("torn snapshot of %d bytes", len(data))
		}
	})
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(filepath.Join(dir, "graph.json"))
	runStoreTests(t, s)

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Errorf("temp file %s left behind", e.Name())
		}
	}
}

func TestFileStorePaths(t *testing.T) {
	s := NewFileStore(filepath.Join("snap", "graph.json"))
	tests := []struct {
		room string
		want string
	}{
		{"", filepath.Join("snap", "graph.json")},
		{"R", filepath.Join("snap", "graph.R.json")},
		{"a/b", filepath.Join("snap", "graph.a%2Fb.json")},
	}
	for _, tt := range tests {
		assert.Equal(t, s.Path(tt.room), tt.want)
	}
	assert.Equal(t, NewFileStore("scene").Path("R"), "scene.R")
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	s := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	defer s.Close()
	runStoreTests(t, s)

	raw, err := mr.Get("exoform:snapshot:R")
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, raw, `{"v":2}`)
}

func TestSQLiteStore(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "snapshots.db"))
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	defer s.Close()
	runStoreTests(t, s)

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM snapshots").Scan(&count); err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, count, 3)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	mr := miniredis.RunT(t)

	tests := []struct {
		uri     string
		wantErr bool
		want    string
	}{
		{"", false, "*store.FileStore"},
		{"redis://" + mr.Addr() + "/0", false, "*store.RedisStore"},
		{"sqlite:" + filepath.Join(dir, "x.db"), false, "*store.SQLiteStore"},
		{"ftp://nope", true, ""},
		{"redis://%zz", true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			s, err := Open(tt.uri, filepath.Join(dir, "graph.json"))
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			defer s.Close()
			assert.Equal(t, fmt.Sprintf("%T", s), tt.want)
		})
	}
}
