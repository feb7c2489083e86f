package storage

import (
	"io"
	"strings"
	"testing"
)

func TestBlobStoreRoundTrip(t *testing.T) {
	store, err := NewBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewBlobStore: %v", err)
	}

	locator, err := store.Upload("p1/clip.mp4", strings.NewReader("footage"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	reader, err := store.Download(locator)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "footage" {
		t.Errorf("downloaded %q, want %q", data, "footage")
	}

	if err := store.Remove(locator); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := store.Download(locator); err == nil {
		t.Error("download succeeded after remove")
	}
}

func TestBlobStoreRemoveMissingIsNoop(t *testing.T) {
	store, err := NewBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewBlobStore: %v", err)
	}
	if err := store.Remove("p1/never-existed.bin"); err != nil {
		t.Errorf("removing a missing object errored: %v", err)
	}
}

func TestBlobStoreRejectsEscapingLocators(t *testing.T) {
	store, err := NewBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewBlobStore: %v", err)
	}

	for _, locator := range []string{"../outside.txt", "p1/../../etc/passwd", "/absolute.txt", "."} {
		if _, err := store.Upload(locator, strings.NewReader("x")); err == nil {
			t.Errorf("Upload(%q) accepted an escaping locator", locator)
		}
		if _, err := store.Download(locator); err == nil {
			t.Errorf("Download(%q) accepted an escaping locator", locator)
		}
	}
}

func TestAllowedMimeType(t *testing.T) {
	allowed := []string{"video/mp4", "image/png", "application/pdf", "audio/wav"}
	for _, m := range allowed {
		if !AllowedMimeType(m) {
			t.Errorf("AllowedMimeType(%q) = false", m)
		}
	}
	denied := []string{"application/x-msdownload", "text/html", ""}
	for _, m := range denied {
		if AllowedMimeType(m) {
			t.Errorf("AllowedMimeType(%q) = true", m)
		}
	}
}
