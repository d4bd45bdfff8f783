package blobstore

import (
	"strings"
	"testing"
)

func TestPutOpenRoundTrip(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	meta, err := store.Put("report.pdf", "application/pdf", strings.NewReader("hello world"))
	if err != nil {
		t.Fatal(err)
	}
	if meta.SizeBytes != 11 {
		t.Fatalf("size = %d, want 11", meta.SizeBytes)
	}

	f, err := store.Open(meta.ID, meta.OriginalName)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	buf := make([]byte, 11)
	if _, err := f.Read(buf); err != nil {
		t.Fatal(err)
	}
	if string(buf) != "hello world" {
		t.Fatalf("got %q", buf)
	}
}

func TestPutSandboxesPathTraversal(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	meta, err := store.Put("../../etc/passwd", "text/plain", strings.NewReader("x"))
	if err != nil {
		t.Fatal(err)
	}
	if meta.OriginalName != "passwd" {
		t.Fatalf("original name = %q, want basename only", meta.OriginalName)
	}
}
