package table

import (
	"github.com/pkg/errors"

	"github.com/nikolasrummel/minidb/storage/node"
	"github.com/nikolasrummel/minidb/storage/pager"
	"github.com/nikolasrummel/minidb/storage/row"
)

// leafCell is a detached copy of one leaf cell, used while
// redistributing an overfull leaf's contents across two pages.
type leafCell struct {
	key   uint32
	value [row.Size]byte
}

// splitLeafAndInsert handles an Insert that landed on a full leaf
// (node.LeafMaxCells cells already present): it distributes the
// LeafMaxCells+1 cells (the existing ones plus r) between the
// original leaf and a new sibling, then wires the sibling into the
// tree (spec.md §4.4).
func (t *Table) splitLeafAndInsert(pageNum uint32, page *pager.Page, insertAt uint32, r row.Row) error {
	parentPageNum := node.Parent(page)
	wasRoot := node.IsRoot(page)
	preSplitMax := node.LeafKey(page, node.LeafMaxCells-1)

	cells := make([]leafCell, 0, node.LeafMaxCells+1)
	for i := uint32(0); i < node.LeafMaxCells; i++ {
		if i == insertAt {
			cells = append(cells, newLeafCell(r))
		}
		var c leafCell
		c.key = node.LeafKey(page, i)
		copy(c.value[:], node.LeafValue(page, i))
		cells = append(cells, c)
	}
	if insertAt == node.LeafMaxCells {
		cells = append(cells, newLeafCell(r))
	}

	newPageNum := t.pager.Allocate()
	newPage, err := t.pager.GetPage(newPageNum)
	if err != nil {
		return err
	}
	node.InitLeaf(newPage)

	node.InitLeaf(page)
	for i := 0; i < node.LeafLeft; i++ {
		node.SetLeafKey(page, uint32(i), cells[i].key)
		copy(node.LeafValue(page, uint32(i)), cells[i].value[:])
	}
	node.SetNumCells(page, node.LeafLeft)

	for i := 0; i < node.LeafRight; i++ {
		c := cells[node.LeafLeft+i]
		node.SetLeafKey(newPage, uint32(i), c.key)
		copy(node.LeafValue(newPage, uint32(i)), c.value[:])
	}
	node.SetNumCells(newPage, node.LeafRight)

	if wasRoot {
		node.SetRoot(page, true)
		_, err := t.createNewRoot(newPageNum)
		return err
	}

	node.SetParent(page, parentPageNum)
	node.SetParent(newPage, parentPageNum)
	newMax := node.LeafKey(page, node.LeafLeft-1)
	if err := t.updateInternalKey(parentPageNum, preSplitMax, newMax); err != nil {
		return err
	}
	return t.internalInsert(parentPageNum, newPageNum)
}

func newLeafCell(r row.Row) leafCell {
	var c leafCell
	c.key = r.ID
	row.Serialize(r, c.value[:])
	return c
}

// createNewRoot promotes the current root into a fresh left child L
// (a byte-for-byte copy of the old root) and installs a new internal
// root with child 0 = L and right child = rightPageNum. rightPageNum
// must already be fully populated (as a leaf with its cells, or as an
// already-initialized empty internal node about to receive cells) by
// the caller. Returns L's page number.
func (t *Table) createNewRoot(rightPageNum uint32) (uint32, error) {
	root, err := t.pager.GetPage(rootPageNum)
	if err != nil {
		return 0, err
	}
	leftPageNum := t.pager.Allocate()
	left, err := t.pager.GetPage(leftPageNum)
	if err != nil {
		return 0, err
	}
	*left = *root
	node.SetRoot(left, false)

	if node.Type(left) == node.TypeInternal {
		numKeys := node.NumKeys(left)
		for i := uint32(0); i <= numKeys; i++ {
			childNum, err := node.Child(left, i, numKeys)
			if err != nil {
				return 0, errors.Wrap(err, "table: createNewRoot")
			}
			childPage, err := t.pager.GetPage(childNum)
			if err != nil {
				return 0, err
			}
			node.SetParent(childPage, leftPageNum)
		}
	}

	node.InitInternal(root)
	node.SetRoot(root, true)
	node.SetNumKeys(root, 1)
	node.SetInternalChild(root, 0, leftPageNum)
	node.SetRightChild(root, rightPageNum)

	maxLeft, err := node.MaxKey(t.pager, left)
	if err != nil {
		return 0, err
	}
	node.SetInternalKey(root, 0, maxLeft)

	right, err := t.pager.GetPage(rightPageNum)
	if err != nil {
		return 0, err
	}
	node.SetParent(right, rootPageNum)
	node.SetParent(left, rootPageNum)
	return leftPageNum, nil
}

// internalInsert adds childPageNum as a child of parentPageNum,
// splitting the parent first if it is already full (spec.md §4.5).
func (t *Table) internalInsert(parentPageNum, childPageNum uint32) error {
	parent, err := t.pager.GetPage(parentPageNum)
	if err != nil {
		return err
	}
	numKeys := node.NumKeys(parent)
	if numKeys >= node.InternalMaxKeys {
		return t.internalSplitAndInsert(parentPageNum, childPageNum)
	}

	child, err := t.pager.GetPage(childPageNum)
	if err != nil {
		return err
	}
	childMax, err := node.MaxKey(t.pager, child)
	if err != nil {
		return err
	}
	node.SetParent(child, parentPageNum)

	rightChild := node.RightChild(parent)
	if rightChild == pager.InvalidPage {
		node.SetRightChild(parent, childPageNum)
		return nil
	}
	rightPage, err := t.pager.GetPage(rightChild)
	if err != nil {
		return err
	}
	rightMax, err := node.MaxKey(t.pager, rightPage)
	if err != nil {
		return err
	}
	if childMax > rightMax {
		node.SetInternalChild(parent, numKeys, rightChild)
		node.SetInternalKey(parent, numKeys, rightMax)
		node.SetRightChild(parent, childPageNum)
		node.SetNumKeys(parent, numKeys+1)
		return nil
	}

	idx := findInternalIndex(parent, numKeys, childMax)
	node.ShiftInternalCellsRight(parent, idx, numKeys)
	node.SetInternalChild(parent, idx, childPageNum)
	node.SetInternalKey(parent, idx, childMax)
	node.SetNumKeys(parent, numKeys+1)
	return nil
}

// internalSplitAndInsert splits an overfull internal node (already at
// node.InternalMaxKeys keys) while installing childPageNum (spec.md
// §4.7). oldPageNum is the overfull node; after a root split it is
// retargeted to the new left child.
func (t *Table) internalSplitAndInsert(oldPageNum, childPageNum uint32) error {
	oldPage, err := t.pager.GetPage(oldPageNum)
	if err != nil {
		return err
	}
	isRootSplit := node.IsRoot(oldPage)

	var newPageNum uint32
	if isRootSplit {
		newPageNum = t.pager.Allocate()
		newPage, err := t.pager.GetPage(newPageNum)
		if err != nil {
			return err
		}
		node.InitInternal(newPage)
		leftPageNum, err := t.createNewRoot(newPageNum)
		if err != nil {
			return err
		}
		oldPageNum = leftPageNum
		oldPage, err = t.pager.GetPage(oldPageNum)
		if err != nil {
			return err
		}
	} else {
		newPageNum = t.pager.Allocate()
		newPage, err := t.pager.GetPage(newPageNum)
		if err != nil {
			return err
		}
		node.InitInternal(newPage)
	}

	preSplitMax, err := node.MaxKey(t.pager, oldPage)
	if err != nil {
		return err
	}

	rightChild := node.RightChild(oldPage)
	if err := t.internalInsert(newPageNum, rightChild); err != nil {
		return err
	}

	numKeys := node.NumKeys(oldPage)
	for i := int(node.InternalMaxKeys) - 1; i > node.InternalMaxKeys/2; i-- {
		childAtI := node.InternalChild(oldPage, uint32(i))
		if err := t.internalInsert(newPageNum, childAtI); err != nil {
			return err
		}
		numKeys--
		node.SetNumKeys(oldPage, numKeys)
	}
	median := node.InternalChild(oldPage, uint32(node.InternalMaxKeys/2))
	node.SetRightChild(oldPage, median)
	numKeys--
	node.SetNumKeys(oldPage, numKeys)

	postSplitMax, err := node.MaxKey(t.pager, oldPage)
	if err != nil {
		return err
	}
	childPage, err := t.pager.GetPage(childPageNum)
	if err != nil {
		return err
	}
	childMax, err := node.MaxKey(t.pager, childPage)
	if err != nil {
		return err
	}

	destPageNum := newPageNum
	if childMax < postSplitMax {
		destPageNum = oldPageNum
	}
	if err := t.internalInsert(destPageNum, childPageNum); err != nil {
		return err
	}

	postSplitMax, err = node.MaxKey(t.pager, oldPage)
	if err != nil {
		return err
	}
	parentPageNum := node.Parent(oldPage)
	if err := t.updateInternalKey(parentPageNum, preSplitMax, postSplitMax); err != nil {
		return err
	}

	if !isRootSplit {
		return t.internalInsert(parentPageNum, newPageNum)
	}
	return nil
}
