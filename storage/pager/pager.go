// Package pager owns the on-disk page file backing a single table.
//
// A page file is a contiguous sequence of fixed-size pages; page 0 is
// always the tree root (see storage/table). The pager is the only thing
// that ever reads or writes bytes to the file — everything above it
// (the node codec, the tree engine) addresses pages purely by number.
//
// There is no eviction: the frame table is a flat array bounded by
// TableMaxPages. A page, once faulted in, stays resident for the life
// of the process. This matches a single short-lived CLI session rather
// than a long-running server, where an LRU cache would actually pay
// for itself.
package pager

import (
	"os"

	"github.com/pkg/errors"
)

const (
	// PageSize is the size of every page on disk and in memory.
	PageSize = 4096

	// TableMaxPages bounds the frame table. Tree depth is bounded by
	// log base (I_LEFT) of this, so recursion over the tree never runs
	// deep enough to matter.
	TableMaxPages = 100

	// InvalidPage is the sentinel used by internal nodes for "no right
	// child yet" and by callers that need an out-of-band page number.
	InvalidPage = uint32(0xFFFFFFFF)
)

// Page is a raw fixed-size block, read from or written to disk verbatim.
type Page [PageSize]byte

// Pager manages a file of fixed-size pages and the in-memory frames
// holding pages that have been faulted in.
type Pager struct {
	file     *os.File
	frames   [TableMaxPages]*Page
	numPages uint32
}

// Open opens (or creates) a pager backed by the file at path.
func Open(path string) (*Pager, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "pager: open")
	}

	info, err := f.Stat()
	if err != nil {
		return nil, errors.Wrap(err, "pager: stat")
	}
	if info.Size()%PageSize != 0 {
		return nil, errors.Errorf("pager: file %q has a partial page (size %d)", path, info.Size())
	}

	return &Pager{
		file:     f,
		numPages: uint32(info.Size() / PageSize),
	}, nil
}

// NumPages returns the number of pages ever allocated in this file.
func (p *Pager) NumPages() uint32 {
	return p.numPages
}

// GetPage returns the frame for page n, loading it from disk on first
// access. If n is beyond the current end of file, the caller is about
// to populate a brand-new page: the returned buffer is zeroed and
// num_pages grows to n+1.
//
// The returned pointer is owned by the pager's frame table. Frames are
// never evicted or moved, so the pointer stays valid across later
// GetPage calls until Close.
func (p *Pager) GetPage(n uint32) (*Page, error) {
	if n >= TableMaxPages {
		return nil, errors.Errorf("pager: page number %d exceeds TableMaxPages (%d)", n, TableMaxPages)
	}

	if p.frames[n] == nil {
		page := new(Page)
		if n < p.numPages {
			if _, err := p.file.ReadAt(page[:], int64(n)*PageSize); err != nil {
				return nil, errors.Wrapf(err, "pager: read page %d", n)
			}
		} else {
			p.numPages = n + 1
		}
		p.frames[n] = page
	}
	return p.frames[n], nil
}

// Allocate returns the next unused page number without reserving it:
// NumPages only grows when that page is fetched with GetPage, so two
// calls with no GetPage in between return the same number. The caller
// is expected to immediately GetPage it and populate it.
func (p *Pager) Allocate() uint32 {
	return p.numPages
}

// Flush writes the frame for page n back to disk. It is a no-op if the
// frame was never faulted in.
func (p *Pager) Flush(n uint32) error {
	page := p.frames[n]
	if page == nil {
		return nil
	}
	if _, err := p.file.WriteAt(page[:], int64(n)*PageSize); err != nil {
		return errors.Wrapf(err, "pager: write page %d", n)
	}
	return nil
}

// Close flushes every resident frame, in ascending page order, then
// closes the underlying file.
func (p *Pager) Close() error {
	for n := uint32(0); n < p.numPages; n++ {
		if err := p.Flush(n); err != nil {
			return err
		}
	}
	return errors.Wrap(p.file.Close(), "pager: close")
}
