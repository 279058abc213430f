package storage

import (
	"context"
	"errors"
	"testing"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage failed: %v", err)
	}

	if err := s.Write(ctx, "permissions/0xabc.yaml", []byte("user: 0xabc\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	data, err := s.Read(ctx, "permissions/0xabc.yaml")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(data) != "user: 0xabc\n" {
		t.Errorf("unexpected data: %q", data)
	}

	ok, err := s.Exists(ctx, "permissions/0xabc.yaml")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !ok {
		t.Error("expected key to exist")
	}
}

func TestLocalStorageReadMissing(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage failed: %v", err)
	}

	if _, err := s.Read(ctx, "permissions/nope.yaml"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLocalStorageListNested(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage failed: %v", err)
	}

	for _, key := range []string{
		"delegations/0xabc/0xexec.yaml",
		"delegations/0xabc/0xother.yaml",
		"delegations/0xdef/0xexec.yaml",
	} {
		if err := s.Write(ctx, key, []byte("active: true\n")); err != nil {
			t.Fatalf("Write(%s) failed: %v", key, err)
		}
	}

	keys, err := s.List(ctx, "delegations")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(keys) != 3 {
		t.Errorf("expected 3 keys, got %d: %v", len(keys), keys)
	}

	keys, err = s.List(ctx, "executions")
	if err != nil {
		t.Fatalf("List of missing prefix failed: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("expected no keys, got %v", keys)
	}
}
