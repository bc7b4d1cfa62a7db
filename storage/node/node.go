// Package node interprets a raw *pager.Page as either a leaf or
// internal B+-tree node, via the fixed byte offsets spec.md §3
// mandates. Every accessor here is a pure function of a page buffer:
// no accessor touches the pager or retains state across calls.
//
// Common header (every page):
//
//	[0]    byte   node type (TypeLeaf / TypeInternal)
//	[1]    byte   is-root flag
//	[2:6]  uint32 parent page number (meaningless for the root)
//
// Leaf body (after the header):
//
//	[6:10] uint32 cell count n
//	[10:]  n cells, each 296 bytes: 4-byte key + 292-byte serialized Row
//
// Internal body (after the header):
//
//	[6:10]  uint32 key count k
//	[10:14] uint32 right-child page number (InvalidPage sentinel if unset)
//	[14:]   k cells, each 8 bytes: 4-byte child page number + 4-byte key
package node

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/nikolasrummel/minidb/storage/pager"
	"github.com/nikolasrummel/minidb/storage/row"
)

// Node types stored in the header's first byte.
const (
	TypeLeaf     = byte(0)
	TypeInternal = byte(1)
)

// Leaf and internal capacities. Deliberately small to exercise splits
// rather than computed from page size — spec.md §3/§9 requires these
// exact values.
const (
	LeafMaxCells = 5
	LeafLeft     = (LeafMaxCells + 1) / 2 // 3
	LeafRight    = LeafMaxCells - LeafLeft + 1 // 3

	InternalMaxKeys = 3
	InternalLeft    = (InternalMaxKeys + 1) / 2 // 2
	InternalRight   = InternalMaxKeys - InternalLeft // 1
)

// Common header offsets.
const (
	offNodeType = 0
	offIsRoot   = 1
	offParent   = 2
	headerSize  = 6
)

// Leaf-specific offsets and sizes.
const (
	offLeafNumCells = headerSize // 6
	leafHeaderSize  = offLeafNumCells + 4
	leafKeySize     = 4
	leafCellSize    = leafKeySize + row.Size // 296
)

// Internal-specific offsets and sizes.
const (
	offInternalNumKeys    = headerSize // 6
	offInternalRightChild = offInternalNumKeys + 4
	internalHeaderSize    = offInternalRightChild + 4
	internalCellSize      = 4 + 4 // child page number + key
)

// ─── Common header ─────────────────────────────────────────────────────────

func Type(p *pager.Page) byte { return p[offNodeType] }

func SetType(p *pager.Page, t byte) { p[offNodeType] = t }

func IsRoot(p *pager.Page) bool { return p[offIsRoot] != 0 }

func SetRoot(p *pager.Page, isRoot bool) {
	if isRoot {
		p[offIsRoot] = 1
	} else {
		p[offIsRoot] = 0
	}
}

func Parent(p *pager.Page) uint32 {
	return binary.LittleEndian.Uint32(p[offParent : offParent+4])
}

func SetParent(p *pager.Page, pageNum uint32) {
	binary.LittleEndian.PutUint32(p[offParent:offParent+4], pageNum)
}

// ─── Leaf layout ────────────────────────────────────────────────────────────

// InitLeaf zeroes p and sets it up as an empty leaf node.
func InitLeaf(p *pager.Page) {
	for i := range p {
		p[i] = 0
	}
	SetType(p, TypeLeaf)
	SetNumCells(p, 0)
}

func NumCells(p *pager.Page) uint32 {
	return binary.LittleEndian.Uint32(p[offLeafNumCells : offLeafNumCells+4])
}

func SetNumCells(p *pager.Page, n uint32) {
	binary.LittleEndian.PutUint32(p[offLeafNumCells:offLeafNumCells+4], n)
}

func leafCellOffset(i uint32) int {
	return leafHeaderSize + int(i)*leafCellSize
}

func LeafKey(p *pager.Page, i uint32) uint32 {
	off := leafCellOffset(i)
	return binary.LittleEndian.Uint32(p[off : off+leafKeySize])
}

func SetLeafKey(p *pager.Page, i uint32, key uint32) {
	off := leafCellOffset(i)
	binary.LittleEndian.PutUint32(p[off:off+leafKeySize], key)
}

// LeafValue returns the 292-byte serialized-row slice for cell i. The
// slice aliases the page buffer: writes through it mutate the page.
func LeafValue(p *pager.Page, i uint32) []byte {
	off := leafCellOffset(i) + leafKeySize
	return p[off : off+row.Size]
}

// CopyLeafCell copies cell src in srcPage to cell dst in dstPage
// (key + row, 296 bytes), which may be the same page.
func CopyLeafCell(dstPage *pager.Page, dst uint32, srcPage *pager.Page, src uint32) {
	copy(dstPage[leafCellOffset(dst):leafCellOffset(dst)+leafCellSize],
		srcPage[leafCellOffset(src):leafCellOffset(src)+leafCellSize])
}

// ShiftLeafCellsRight moves cells [from, n) one slot to the right,
// making room for a new cell at index from. n is the cell count before
// the shift.
func ShiftLeafCellsRight(p *pager.Page, from, n uint32) {
	for i := n; i > from; i-- {
		CopyLeafCell(p, i, p, i-1)
	}
}

// ShiftLeafCellsLeft moves cells [from+1, n) one slot to the left,
// overwriting cell `from`. n is the cell count before the shift.
func ShiftLeafCellsLeft(p *pager.Page, from, n uint32) {
	for i := from; i < n-1; i++ {
		CopyLeafCell(p, i, p, i+1)
	}
}

// ─── Internal layout ────────────────────────────────────────────────────────

// InitInternal zeroes p and sets it up as an empty internal node with
// no right child yet.
func InitInternal(p *pager.Page) {
	for i := range p {
		p[i] = 0
	}
	SetType(p, TypeInternal)
	SetNumKeys(p, 0)
	SetRightChild(p, pager.InvalidPage)
}

func NumKeys(p *pager.Page) uint32 {
	return binary.LittleEndian.Uint32(p[offInternalNumKeys : offInternalNumKeys+4])
}

func SetNumKeys(p *pager.Page, k uint32) {
	binary.LittleEndian.PutUint32(p[offInternalNumKeys:offInternalNumKeys+4], k)
}

func RightChild(p *pager.Page) uint32 {
	return binary.LittleEndian.Uint32(p[offInternalRightChild : offInternalRightChild+4])
}

func SetRightChild(p *pager.Page, pageNum uint32) {
	binary.LittleEndian.PutUint32(p[offInternalRightChild:offInternalRightChild+4], pageNum)
}

func internalCellOffset(i uint32) int {
	return internalHeaderSize + int(i)*internalCellSize
}

// InternalChild returns cell i's child page number (i must be < numKeys;
// use Child to also resolve the right-child slot at i == numKeys).
func InternalChild(p *pager.Page, i uint32) uint32 {
	off := internalCellOffset(i)
	return binary.LittleEndian.Uint32(p[off : off+4])
}

func SetInternalChild(p *pager.Page, i uint32, pageNum uint32) {
	off := internalCellOffset(i)
	binary.LittleEndian.PutUint32(p[off:off+4], pageNum)
}

func InternalKey(p *pager.Page, i uint32) uint32 {
	off := internalCellOffset(i) + 4
	return binary.LittleEndian.Uint32(p[off : off+4])
}

func SetInternalKey(p *pager.Page, i uint32, key uint32) {
	off := internalCellOffset(i) + 4
	binary.LittleEndian.PutUint32(p[off:off+4], key)
}

// Child resolves child index i against numKeys: indices below numKeys
// come from the cell array, index numKeys is the right-child slot.
func Child(p *pager.Page, i, numKeys uint32) (uint32, error) {
	if i > numKeys {
		return 0, errors.Errorf("node: child index %d beyond num_keys %d", i, numKeys)
	}
	if i == numKeys {
		return RightChild(p), nil
	}
	return InternalChild(p, i), nil
}

// ShiftInternalCellsRight moves cells [from, n) one slot right.
func ShiftInternalCellsRight(p *pager.Page, from, n uint32) {
	for i := n; i > from; i-- {
		SetInternalChild(p, i, InternalChild(p, i-1))
		SetInternalKey(p, i, InternalKey(p, i-1))
	}
}

// ShiftInternalCellsLeft moves cells [from+1, n) one slot left,
// overwriting cell `from`.
func ShiftInternalCellsLeft(p *pager.Page, from, n uint32) {
	for i := from; i < n-1; i++ {
		SetInternalChild(p, i, InternalChild(p, i+1))
		SetInternalKey(p, i, InternalKey(p, i+1))
	}
}

// ─── Cross-node helpers ─────────────────────────────────────────────────────

// pageReader is the subset of *pager.Pager node-level code needs — kept
// as an interface so this package stays decoupled from the concrete
// pager type for testing.
type pageReader interface {
	GetPage(n uint32) (*pager.Page, error)
}

// MaxKey returns the maximum key stored in the subtree rooted at p: for
// a leaf, the key of its last cell; for an internal node, recursively
// the max key of its right child (spec.md §4.2).
func MaxKey(pg pageReader, p *pager.Page) (uint32, error) {
	if Type(p) == TypeLeaf {
		n := NumCells(p)
		if n == 0 {
			return 0, errors.New("node: max key of an empty leaf is undefined")
		}
		return LeafKey(p, n-1), nil
	}
	rc := RightChild(p)
	child, err := pg.GetPage(rc)
	if err != nil {
		return 0, errors.Wrapf(err, "node: max key: read right child %d", rc)
	}
	return MaxKey(pg, child)
}
