package storage

import (
	"context"
	"errors"
	"io"
	"reflect"
	"slices"
	"testing"
)

func TestLocalBackendRoundTrip(t *testing.T) {
	ctx := context.Background()
	b, err := NewLocalBackend(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if err := b.Write(ctx, "exports/run-1/namespaces.json", []byte(`[]`), "application/json"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := b.Write(ctx, "exports/run-1/namespaces.json", []byte(`[1]`), "application/json"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if err := b.Write(ctx, "exports/latest.json", []byte(`{}`), "application/json"); err != nil {
		t.Fatal(err)
	}

	rc, err := b.Read(ctx, "exports/run-1/namespaces.json")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "[1]" {
		t.Fatalf("Read = %q, want %q", data, "[1]")
	}

	paths, err := b.List(ctx, "exports")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	slices.Sort(paths)
	want := []string{"exports/latest.json", "exports/run-1/namespaces.json"}
	if !reflect.DeepEqual(paths, want) {
		t.Fatalf("List = %v, want %v", paths, want)
	}

	if err := b.Delete(ctx, "exports/run-1/namespaces.json"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := b.Delete(ctx, "exports/run-1/namespaces.json"); err != nil {
		t.Fatalf("Delete missing: %v", err)
	}
	if _, err := b.Read(ctx, "exports/run-1/namespaces.json"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Read deleted error = %v, want ErrNotFound", err)
	}
}

func TestLocalBackendListMissingPrefix(t *testing.T) {
	b, err := NewLocalBackend(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	paths, err := b.List(context.Background(), "nothing/here")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(paths) != 0 {
		t.Fatalf("List = %v, want empty", paths)
	}
}

func TestLocalBackendRejectsEscapingPaths(t *testing.T) {
	b, err := NewLocalBackend(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{"../outside.json", "a/../../b", "", "/"} {
		if err := b.Write(context.Background(), p, []byte("x"), ""); !errors.Is(err, ErrInvalidPath) {
			t.Fatalf("Write(%q) error = %v, want ErrInvalidPath", p, err)
		}
	}
}
