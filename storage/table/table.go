// Package table implements the B+-tree engine on top of storage/pager
// and storage/node: Get, Insert, Update, Delete and Scan over rows
// keyed by a uint32 id, plus the split/borrow/merge machinery that
// keeps the tree balanced. The root always lives at page 0.
package table

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/nikolasrummel/minidb/storage/node"
	"github.com/nikolasrummel/minidb/storage/pager"
	"github.com/nikolasrummel/minidb/storage/row"
)

// rootPageNum is fixed for the lifetime of a table: root splits and
// merges always rewrite page 0 in place rather than relocating it.
const rootPageNum = uint32(0)

// Table is a single-file, single-index table of Rows.
type Table struct {
	pager *pager.Pager
}

// Open opens (creating if necessary) the table file at path. A freshly
// created file gets an empty leaf root at page 0.
func Open(path string) (*Table, error) {
	p, err := pager.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "table: open")
	}
	t := &Table{pager: p}
	if p.NumPages() == 0 {
		root, err := p.GetPage(rootPageNum)
		if err != nil {
			return nil, err
		}
		node.InitLeaf(root)
		node.SetRoot(root, true)
	}
	return t, nil
}

// Close flushes every touched page and closes the underlying file.
func (t *Table) Close() error {
	return t.pager.Close()
}

// cursor locates a key's cell, or the position it would occupy if
// absent — callers must bound-check cellNum against the leaf's cell
// count before comparing keys (spec.md §9).
type cursor struct {
	pageNum uint32
	cellNum uint32
}

// find descends from the root to the leaf that would hold key,
// binary-searching each node along the way.
func (t *Table) find(key uint32) (cursor, error) {
	return t.findFrom(rootPageNum, key)
}

func (t *Table) findFrom(pageNum uint32, key uint32) (cursor, error) {
	page, err := t.pager.GetPage(pageNum)
	if err != nil {
		return cursor{}, err
	}
	if node.Type(page) == node.TypeLeaf {
		n := node.NumCells(page)
		return cursor{pageNum: pageNum, cellNum: findLeafIndex(page, n, key)}, nil
	}
	numKeys := node.NumKeys(page)
	idx := findInternalIndex(page, numKeys, key)
	childNum, err := node.Child(page, idx, numKeys)
	if err != nil {
		return cursor{}, errors.Wrap(err, "table: find")
	}
	return t.findFrom(childNum, key)
}

// findLeafIndex returns the smallest index i such that cell i's key is
// >= target, or n if every cell is smaller.
func findLeafIndex(page *pager.Page, n uint32, target uint32) uint32 {
	lo, hi := uint32(0), n
	for lo < hi {
		mid := (lo + hi) / 2
		if node.LeafKey(page, mid) < target {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// findInternalIndex returns the smallest index i such that separator i
// is >= target, or numKeys if every separator is smaller (meaning the
// right-child slot holds the target).
func findInternalIndex(page *pager.Page, numKeys uint32, target uint32) uint32 {
	lo, hi := uint32(0), numKeys
	for lo < hi {
		mid := (lo + hi) / 2
		if node.InternalKey(page, mid) < target {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// Get looks up id and reports whether it was found.
func (t *Table) Get(id uint32) (row.Row, bool, error) {
	cur, err := t.find(id)
	if err != nil {
		return row.Row{}, false, err
	}
	page, err := t.pager.GetPage(cur.pageNum)
	if err != nil {
		return row.Row{}, false, err
	}
	n := node.NumCells(page)
	if cur.cellNum >= n || node.LeafKey(page, cur.cellNum) != id {
		return row.Row{}, false, nil
	}
	return row.Deserialize(node.LeafValue(page, cur.cellNum)), true, nil
}

// Insert adds r, splitting leaves and internal nodes as needed.
func (t *Table) Insert(r row.Row) error {
	cur, err := t.find(r.ID)
	if err != nil {
		return err
	}
	page, err := t.pager.GetPage(cur.pageNum)
	if err != nil {
		return err
	}
	n := node.NumCells(page)
	if cur.cellNum < n && node.LeafKey(page, cur.cellNum) == r.ID {
		return ErrDuplicateKey
	}
	if n < node.LeafMaxCells {
		node.ShiftLeafCellsRight(page, cur.cellNum, n)
		node.SetLeafKey(page, cur.cellNum, r.ID)
		row.Serialize(r, node.LeafValue(page, cur.cellNum))
		node.SetNumCells(page, n+1)
		return nil
	}
	return t.splitLeafAndInsert(cur.pageNum, page, cur.cellNum, r)
}

// Update overwrites username and/or email for id, leaving the other
// field (and the id itself) unchanged. Pass nil for a field that
// should not be touched.
func (t *Table) Update(id uint32, username, email *string) error {
	cur, err := t.find(id)
	if err != nil {
		return err
	}
	page, err := t.pager.GetPage(cur.pageNum)
	if err != nil {
		return err
	}
	n := node.NumCells(page)
	if cur.cellNum >= n || node.LeafKey(page, cur.cellNum) != id {
		return ErrNotFound
	}
	r := row.Deserialize(node.LeafValue(page, cur.cellNum))
	if username != nil {
		r.Username = *username
	}
	if email != nil {
		r.Email = *email
	}
	r, err = row.New(r.ID, r.Username, r.Email)
	if err != nil {
		return err
	}
	row.Serialize(r, node.LeafValue(page, cur.cellNum))
	return nil
}

// Scan returns every row in ascending key order.
func (t *Table) Scan() ([]row.Row, error) {
	var out []row.Row
	if err := t.scanInto(rootPageNum, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *Table) scanInto(pageNum uint32, out *[]row.Row) error {
	page, err := t.pager.GetPage(pageNum)
	if err != nil {
		return err
	}
	if node.Type(page) == node.TypeLeaf {
		n := node.NumCells(page)
		for i := uint32(0); i < n; i++ {
			*out = append(*out, row.Deserialize(node.LeafValue(page, i)))
		}
		return nil
	}
	numKeys := node.NumKeys(page)
	for i := uint32(0); i < numKeys; i++ {
		child, err := node.Child(page, i, numKeys)
		if err != nil {
			return errors.Wrap(err, "table: scan")
		}
		if err := t.scanInto(child, out); err != nil {
			return err
		}
	}
	rc, err := node.Child(page, numKeys, numKeys)
	if err != nil {
		return errors.Wrap(err, "table: scan")
	}
	return t.scanInto(rc, out)
}

// Debug writes a recursive, indented dump of the tree's shape — node
// type, key count and keys at every level. It exists for tests and
// troubleshooting, not for the shell's everyday output.
func (t *Table) Debug(w io.Writer) error {
	return t.debugInto(w, rootPageNum, 0)
}

func (t *Table) debugInto(w io.Writer, pageNum uint32, depth int) error {
	page, err := t.pager.GetPage(pageNum)
	if err != nil {
		return err
	}
	indent := strings.Repeat("  ", depth)
	if node.Type(page) == node.TypeLeaf {
		n := node.NumCells(page)
		fmt.Fprintf(w, "%sleaf page=%d n=%d keys=[", indent, pageNum, n)
		for i := uint32(0); i < n; i++ {
			if i > 0 {
				fmt.Fprint(w, " ")
			}
			fmt.Fprintf(w, "%d", node.LeafKey(page, i))
		}
		fmt.Fprintln(w, "]")
		return nil
	}
	numKeys := node.NumKeys(page)
	fmt.Fprintf(w, "%sinternal page=%d k=%d keys=[", indent, pageNum, numKeys)
	for i := uint32(0); i < numKeys; i++ {
		if i > 0 {
			fmt.Fprint(w, " ")
		}
		fmt.Fprintf(w, "%d", node.InternalKey(page, i))
	}
	fmt.Fprintln(w, "]")
	for i := uint32(0); i < numKeys; i++ {
		child, err := node.Child(page, i, numKeys)
		if err != nil {
			return errors.Wrap(err, "table: debug")
		}
		if err := t.debugInto(w, child, depth+1); err != nil {
			return err
		}
	}
	rc, err := node.Child(page, numKeys, numKeys)
	if err != nil {
		return errors.Wrap(err, "table: debug")
	}
	return t.debugInto(w, rc, depth+1)
}

// childIndexInParent returns the index at which childPageNum appears
// among parentPageNum's children (0..numKeys, where numKeys is the
// right-child slot).
func (t *Table) childIndexInParent(parentPageNum, childPageNum uint32) (uint32, error) {
	parent, err := t.pager.GetPage(parentPageNum)
	if err != nil {
		return 0, err
	}
	numKeys := node.NumKeys(parent)
	for i := uint32(0); i <= numKeys; i++ {
		c, err := node.Child(parent, i, numKeys)
		if err != nil {
			return 0, errors.Wrap(err, "table: childIndexInParent")
		}
		if c == childPageNum {
			return i, nil
		}
	}
	return 0, invariantErrorf("page %d not found among children of parent %d", childPageNum, parentPageNum)
}

// updateInternalKey ascends from pageNum looking for the separator
// cell whose value is oldKey and overwrites it with newKey (spec.md
// §4.11). If the old key's position turns out to be the right-child
// slot (no separator stored there), it recurses to the grandparent;
// at the root, there's nothing left to update.
func (t *Table) updateInternalKey(pageNum uint32, oldKey, newKey uint32) error {
	page, err := t.pager.GetPage(pageNum)
	if err != nil {
		return err
	}
	numKeys := node.NumKeys(page)
	idx := findInternalIndex(page, numKeys, oldKey)
	if idx == numKeys {
		if node.IsRoot(page) {
			return nil
		}
		return t.updateInternalKey(node.Parent(page), oldKey, newKey)
	}
	if node.InternalKey(page, idx) != oldKey {
		return invariantErrorf("page %d: separator at %d is %d, want %d", pageNum, idx, node.InternalKey(page, idx), oldKey)
	}
	node.SetInternalKey(page, idx, newKey)
	return nil
}
