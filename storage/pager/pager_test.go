package pager

import (
	"path/filepath"
	"testing"
)

func TestOpenEmptyFileHasZeroPages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	p, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	if got := p.NumPages(); got != 0 {
		t.Fatalf("NumPages() = %d, want 0", got)
	}
}

func TestGetPageBeyondEOFGrowsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	p, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	page, err := p.GetPage(0)
	if err != nil {
		t.Fatalf("GetPage(0): %v", err)
	}
	for _, b := range page {
		if b != 0 {
			t.Fatalf("new page not zeroed")
		}
	}
	if got := p.NumPages(); got != 1 {
		t.Fatalf("NumPages() = %d, want 1", got)
	}
}

func TestWriteFlushReopenRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	p, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	page, err := p.GetPage(0)
	if err != nil {
		t.Fatalf("GetPage(0): %v", err)
	}
	page[0] = 0xAB
	page[PageSize-1] = 0xCD

	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	p2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer p2.Close()

	if got := p2.NumPages(); got != 1 {
		t.Fatalf("NumPages() after reopen = %d, want 1", got)
	}
	page2, err := p2.GetPage(0)
	if err != nil {
		t.Fatalf("GetPage(0) after reopen: %v", err)
	}
	if page2[0] != 0xAB || page2[PageSize-1] != 0xCD {
		t.Fatalf("page contents did not survive reopen")
	}
}

func TestAllocateThenGetPageAppendsAtEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	p, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	if _, err := p.GetPage(0); err != nil {
		t.Fatalf("GetPage(0): %v", err)
	}

	next := p.Allocate()
	if next != 1 {
		t.Fatalf("Allocate() = %d, want 1", next)
	}
	if _, err := p.GetPage(next); err != nil {
		t.Fatalf("GetPage(%d): %v", next, err)
	}
	if got := p.NumPages(); got != 2 {
		t.Fatalf("NumPages() = %d, want 2", got)
	}
}

func TestGetPageBeyondTableMaxPagesErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	p, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	if _, err := p.GetPage(TableMaxPages); err == nil {
		t.Fatalf("GetPage(TableMaxPages) should fail")
	}
}
