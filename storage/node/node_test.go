package node

import (
	"testing"

	"github.com/nikolasrummel/minidb/storage/pager"
	"github.com/nikolasrummel/minidb/storage/row"
)

func TestLeafCellRoundTrips(t *testing.T) {
	p := new(pager.Page)
	InitLeaf(p)
	SetNumCells(p, 2)

	r0, _ := row.New(10, "a", "a@x.com")
	r1, _ := row.New(20, "b", "b@x.com")
	SetLeafKey(p, 0, 10)
	row.Serialize(r0, LeafValue(p, 0))
	SetLeafKey(p, 1, 20)
	row.Serialize(r1, LeafValue(p, 1))

	if NumCells(p) != 2 {
		t.Fatalf("NumCells = %d, want 2", NumCells(p))
	}
	if LeafKey(p, 0) != 10 || LeafKey(p, 1) != 20 {
		t.Fatalf("leaf keys wrong: %d, %d", LeafKey(p, 0), LeafKey(p, 1))
	}
	got := row.Deserialize(LeafValue(p, 1))
	if got != r1 {
		t.Fatalf("LeafValue(1) = %+v, want %+v", got, r1)
	}
}

func TestShiftLeafCellsRightMakesRoomAtIndex(t *testing.T) {
	p := new(pager.Page)
	InitLeaf(p)
	SetNumCells(p, 2)
	SetLeafKey(p, 0, 1)
	SetLeafKey(p, 1, 2)

	ShiftLeafCellsRight(p, 1, 2)
	SetLeafKey(p, 1, 99)
	SetNumCells(p, 3)

	if LeafKey(p, 0) != 1 || LeafKey(p, 1) != 99 || LeafKey(p, 2) != 2 {
		t.Fatalf("keys after shift: %d %d %d", LeafKey(p, 0), LeafKey(p, 1), LeafKey(p, 2))
	}
}

func TestShiftLeafCellsLeftRemovesCell(t *testing.T) {
	p := new(pager.Page)
	InitLeaf(p)
	SetNumCells(p, 3)
	SetLeafKey(p, 0, 1)
	SetLeafKey(p, 1, 2)
	SetLeafKey(p, 2, 3)

	ShiftLeafCellsLeft(p, 1, 3)
	SetNumCells(p, 2)

	if LeafKey(p, 0) != 1 || LeafKey(p, 1) != 3 {
		t.Fatalf("keys after left-shift: %d %d", LeafKey(p, 0), LeafKey(p, 1))
	}
}

func TestInternalChildResolvesRightChildSlot(t *testing.T) {
	p := new(pager.Page)
	InitInternal(p)
	SetNumKeys(p, 1)
	SetInternalChild(p, 0, 7)
	SetInternalKey(p, 0, 100)
	SetRightChild(p, 8)

	c, err := Child(p, 0, 1)
	if err != nil || c != 7 {
		t.Fatalf("Child(0) = %d, %v; want 7, nil", c, err)
	}
	c, err = Child(p, 1, 1)
	if err != nil || c != 8 {
		t.Fatalf("Child(1) = %d, %v; want 8 (right child), nil", c, err)
	}
	if _, err := Child(p, 2, 1); err == nil {
		t.Fatalf("Child(2) with num_keys=1 should error")
	}
}

type fakePager struct {
	pages map[uint32]*pager.Page
}

func (f *fakePager) GetPage(n uint32) (*pager.Page, error) {
	return f.pages[n], nil
}

func TestMaxKeyLeaf(t *testing.T) {
	p := new(pager.Page)
	InitLeaf(p)
	SetNumCells(p, 3)
	SetLeafKey(p, 0, 1)
	SetLeafKey(p, 1, 2)
	SetLeafKey(p, 2, 5)

	mk, err := MaxKey(&fakePager{}, p)
	if err != nil || mk != 5 {
		t.Fatalf("MaxKey = %d, %v; want 5, nil", mk, err)
	}
}

func TestMaxKeyInternalRecursesThroughRightChild(t *testing.T) {
	leaf := new(pager.Page)
	InitLeaf(leaf)
	SetNumCells(leaf, 1)
	SetLeafKey(leaf, 0, 42)

	internalNode := new(pager.Page)
	InitInternal(internalNode)
	SetRightChild(internalNode, 1)

	fp := &fakePager{pages: map[uint32]*pager.Page{1: leaf}}
	mk, err := MaxKey(fp, internalNode)
	if err != nil || mk != 42 {
		t.Fatalf("MaxKey = %d, %v; want 42, nil", mk, err)
	}
}
