package table

import (
	"github.com/nikolasrummel/minidb/storage/node"
	"github.com/nikolasrummel/minidb/storage/pager"
)

// Delete removes id, borrowing from or merging with a sibling if the
// owning leaf would fall below its minimum occupancy (spec.md §4.10).
func (t *Table) Delete(id uint32) error {
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
	return t.deleteFromLeaf(cur.pageNum, page, cur.cellNum, id)
}

// deleteFromLeaf removes the cell at cellNum (known to hold key) from
// page. If page can absorb the loss on its own (it's the root, or it
// has a surplus above node.LeafLeft), the cell is simply removed and,
// if it was the last cell, the parent's separator is refreshed.
// Otherwise the leaf is at minimum occupancy and must borrow from or
// merge with a sibling.
func (t *Table) deleteFromLeaf(pageNum uint32, page *pager.Page, cellNum uint32, key uint32) error {
	n := node.NumCells(page)
	isRoot := node.IsRoot(page)
	if isRoot || n > node.LeafLeft {
		wasLast := cellNum == n-1
		node.ShiftLeafCellsLeft(page, cellNum, n)
		node.SetNumCells(page, n-1)
		if !isRoot && wasLast && n-1 > 0 {
			newMax := node.LeafKey(page, n-2)
			return t.updateInternalKey(node.Parent(page), key, newMax)
		}
		return nil
	}
	return t.rebalanceLeaf(pageNum, page, cellNum, key)
}

// rebalanceLeaf handles a leaf at minimum occupancy: try the right
// sibling first, then the left, finally merging if neither has a
// surplus to lend.
func (t *Table) rebalanceLeaf(pageNum uint32, page *pager.Page, cellNum uint32, key uint32) error {
	parentPageNum := node.Parent(page)
	idx, err := t.childIndexInParent(parentPageNum, pageNum)
	if err != nil {
		return err
	}
	parent, err := t.pager.GetPage(parentPageNum)
	if err != nil {
		return err
	}
	numKeysParent := node.NumKeys(parent)

	if idx < numKeysParent {
		rightPageNum, err := node.Child(parent, idx+1, numKeysParent)
		if err != nil {
			return err
		}
		rightPage, err := t.pager.GetPage(rightPageNum)
		if err != nil {
			return err
		}
		if node.NumCells(rightPage) > node.LeafLeft {
			return t.borrowLeafFromRight(parent, idx, pageNum, page, rightPageNum, rightPage, cellNum)
		}
		return t.mergeLeaves(parentPageNum, parent, numKeysParent, idx, pageNum, page, rightPageNum, rightPage, key)
	}

	leftPageNum, err := node.Child(parent, idx-1, numKeysParent)
	if err != nil {
		return err
	}
	leftPage, err := t.pager.GetPage(leftPageNum)
	if err != nil {
		return err
	}
	if node.NumCells(leftPage) > node.LeafLeft {
		return t.borrowLeafFromLeft(parent, idx-1, leftPageNum, leftPage, pageNum, page, cellNum)
	}
	return t.mergeLeaves(parentPageNum, parent, numKeysParent, idx-1, leftPageNum, leftPage, pageNum, page, key)
}

// borrowLeafFromRight moves the right sibling's first cell onto the
// end of target, then deletes target's original cell at deleteCellNum
// (spec.md §4.10.3.a).
func (t *Table) borrowLeafFromRight(parent *pager.Page, sepIdx uint32, targetPageNum uint32, target *pager.Page, rightPageNum uint32, right *pager.Page, deleteCellNum uint32) error {
	tn := node.NumCells(target)
	rn := node.NumCells(right)

	node.CopyLeafCell(target, tn, right, 0)
	node.SetNumCells(target, tn+1)
	node.ShiftLeafCellsLeft(right, 0, rn)
	node.SetNumCells(right, rn-1)

	node.SetInternalKey(parent, sepIdx, node.LeafKey(target, tn))

	node.ShiftLeafCellsLeft(target, deleteCellNum, tn+1)
	node.SetNumCells(target, tn)
	return nil
}

// borrowLeafFromLeft moves the left sibling's last cell onto the
// front of target, then deletes target's original cell (now shifted
// one slot right) at deleteCellNum+1 (spec.md §4.10.3.b).
func (t *Table) borrowLeafFromLeft(parent *pager.Page, sepIdx uint32, leftPageNum uint32, left *pager.Page, targetPageNum uint32, target *pager.Page, deleteCellNum uint32) error {
	tn := node.NumCells(target)
	ln := node.NumCells(left)

	node.ShiftLeafCellsRight(target, 0, tn)
	node.CopyLeafCell(target, 0, left, ln-1)
	node.SetNumCells(target, tn+1)
	node.SetNumCells(left, ln-1)

	node.SetInternalKey(parent, sepIdx, node.LeafKey(left, ln-2))

	node.ShiftLeafCellsLeft(target, deleteCellNum+1, tn+1)
	node.SetNumCells(target, tn)
	return nil
}

// mergeLeaves absorbs left's cells into right (left disappears),
// removes left's separator from the parent, rebalances or collapses
// the parent if needed, then re-finds key from the root and deletes
// its cell from the surviving leaf — per spec.md §9, delete never
// reuses a cursor across a merge.
func (t *Table) mergeLeaves(parentPageNum uint32, parent *pager.Page, numKeysParent uint32, sepIdx uint32, leftPageNum uint32, left *pager.Page, rightPageNum uint32, right *pager.Page, key uint32) error {
	ln := node.NumCells(left)
	rn := node.NumCells(right)

	for i := rn; i > 0; i-- {
		node.CopyLeafCell(right, ln+i-1, right, i-1)
	}
	for i := uint32(0); i < ln; i++ {
		node.CopyLeafCell(right, i, left, i)
	}
	node.SetNumCells(right, ln+rn)

	node.ShiftInternalCellsLeft(parent, sepIdx, numKeysParent)
	newParentNumKeys := numKeysParent - 1
	node.SetNumKeys(parent, newParentNumKeys)

	if node.IsRoot(parent) {
		if newParentNumKeys == 0 {
			root, err := t.pager.GetPage(rootPageNum)
			if err != nil {
				return err
			}
			survivor, err := t.pager.GetPage(rightPageNum)
			if err != nil {
				return err
			}
			*root = *survivor
			node.SetRoot(root, true)
		}
	} else if newParentNumKeys <= node.InternalMaxKeys/2 {
		if err := t.recursiveInternalRebalance(parentPageNum); err != nil {
			return err
		}
	}

	return t.deleteAfterMerge(key)
}

// deleteAfterMerge re-finds key from the root (the tree may have
// changed shape since the original cursor was taken) and deletes its
// cell from whichever leaf now holds it.
func (t *Table) deleteAfterMerge(key uint32) error {
	cur, err := t.find(key)
	if err != nil {
		return err
	}
	page, err := t.pager.GetPage(cur.pageNum)
	if err != nil {
		return err
	}
	n := node.NumCells(page)
	if cur.cellNum >= n || node.LeafKey(page, cur.cellNum) != key {
		return invariantErrorf("delete: key %d not found after merge", key)
	}
	isRoot := node.IsRoot(page)
	wasLast := cur.cellNum == n-1
	node.ShiftLeafCellsLeft(page, cur.cellNum, n)
	node.SetNumCells(page, n-1)
	if !isRoot && wasLast && n-1 > 0 {
		newMax := node.LeafKey(page, n-2)
		return t.updateInternalKey(node.Parent(page), key, newMax)
	}
	return nil
}

// recursiveInternalRebalance handles an internal node that has fallen
// to at most node.InternalMaxKeys/2 keys: borrow from a sibling if one
// has a surplus, else merge, cascading upward as needed (spec.md
// §4.12). Never called on the root, which has no minimum.
func (t *Table) recursiveInternalRebalance(pageNum uint32) error {
	page, err := t.pager.GetPage(pageNum)
	if err != nil {
		return err
	}
	if node.IsRoot(page) {
		return nil
	}
	parentPageNum := node.Parent(page)
	idx, err := t.childIndexInParent(parentPageNum, pageNum)
	if err != nil {
		return err
	}
	parent, err := t.pager.GetPage(parentPageNum)
	if err != nil {
		return err
	}
	numKeysParent := node.NumKeys(parent)

	if idx < numKeysParent {
		rightPageNum, err := node.Child(parent, idx+1, numKeysParent)
		if err != nil {
			return err
		}
		rightPage, err := t.pager.GetPage(rightPageNum)
		if err != nil {
			return err
		}
		if node.NumKeys(rightPage) > node.InternalMaxKeys/2 {
			return t.borrowInternalFromRight(parent, idx, pageNum, page, rightPageNum, rightPage)
		}
		return t.finishInternalMerge(parentPageNum, parent, numKeysParent, idx, pageNum, page, rightPageNum, rightPage)
	}

	leftPageNum, err := node.Child(parent, idx-1, numKeysParent)
	if err != nil {
		return err
	}
	leftPage, err := t.pager.GetPage(leftPageNum)
	if err != nil {
		return err
	}
	if node.NumKeys(leftPage) > node.InternalMaxKeys/2 {
		return t.borrowInternalFromLeft(parent, idx-1, leftPageNum, leftPage, pageNum, page)
	}
	return t.finishInternalMerge(parentPageNum, parent, numKeysParent, idx-1, leftPageNum, leftPage, pageNum, page)
}

// borrowInternalFromRight rotates the right sibling's smallest child
// through the parent separator and into n as its new right child
// (spec.md §4.12; derived from the max-key-of-left-child separator
// convention, not the teacher's min-of-right convention).
func (t *Table) borrowInternalFromRight(parent *pager.Page, sepIdx uint32, nPageNum uint32, n *pager.Page, rightPageNum uint32, right *pager.Page) error {
	nKeys := node.NumKeys(n)
	oldSep := node.InternalKey(parent, sepIdx)
	oldRightChildOfN := node.RightChild(n)

	borrowedKey := node.InternalKey(right, 0)
	borrowedChild := node.InternalChild(right, 0)

	node.SetInternalChild(n, nKeys, oldRightChildOfN)
	node.SetInternalKey(n, nKeys, oldSep)
	node.SetNumKeys(n, nKeys+1)
	node.SetRightChild(n, borrowedChild)

	borrowedChildPage, err := t.pager.GetPage(borrowedChild)
	if err != nil {
		return err
	}
	node.SetParent(borrowedChildPage, nPageNum)

	rn := node.NumKeys(right)
	node.ShiftInternalCellsLeft(right, 0, rn)
	node.SetNumKeys(right, rn-1)

	node.SetInternalKey(parent, sepIdx, borrowedKey)
	return nil
}

// borrowInternalFromLeft rotates the left sibling's largest child
// (its right-child slot) through the parent separator and into n as
// its new first cell (spec.md §4.12).
func (t *Table) borrowInternalFromLeft(parent *pager.Page, sepIdx uint32, leftPageNum uint32, left *pager.Page, nPageNum uint32, n *pager.Page) error {
	ln := node.NumKeys(left)
	oldSep := node.InternalKey(parent, sepIdx)

	lastKey := node.InternalKey(left, ln-1)
	lastChild := node.InternalChild(left, ln-1)
	oldLeftRightChild := node.RightChild(left)

	node.SetNumKeys(left, ln-1)
	node.SetRightChild(left, lastChild)

	nKeys := node.NumKeys(n)
	node.ShiftInternalCellsRight(n, 0, nKeys)
	node.SetInternalChild(n, 0, oldLeftRightChild)
	node.SetInternalKey(n, 0, oldSep)
	node.SetNumKeys(n, nKeys+1)

	oldLeftRightChildPage, err := t.pager.GetPage(oldLeftRightChild)
	if err != nil {
		return err
	}
	node.SetParent(oldLeftRightChildPage, nPageNum)

	node.SetInternalKey(parent, sepIdx, lastKey)
	return nil
}

// mergeInternal absorbs left's cells, its old separator (demoted to a
// regular cell) and its right-child into right; left disappears
// (spec.md §4.12).
func (t *Table) mergeInternal(parentPageNum uint32, parent *pager.Page, numKeysParent uint32, sepIdx uint32, leftPageNum uint32, left *pager.Page, rightPageNum uint32, right *pager.Page) error {
	ln := node.NumKeys(left)
	rn := node.NumKeys(right)
	sepKey := node.InternalKey(parent, sepIdx)
	leftRightChild := node.RightChild(left)

	for i := rn; i > 0; i-- {
		src := i - 1
		dst := ln + 1 + src
		node.SetInternalChild(right, dst, node.InternalChild(right, src))
		node.SetInternalKey(right, dst, node.InternalKey(right, src))
	}
	for i := uint32(0); i < ln; i++ {
		node.SetInternalChild(right, i, node.InternalChild(left, i))
		node.SetInternalKey(right, i, node.InternalKey(left, i))
	}
	node.SetInternalChild(right, ln, leftRightChild)
	node.SetInternalKey(right, ln, sepKey)
	node.SetNumKeys(right, ln+1+rn)

	for i := uint32(0); i < ln; i++ {
		childPage, err := t.pager.GetPage(node.InternalChild(left, i))
		if err != nil {
			return err
		}
		node.SetParent(childPage, rightPageNum)
	}
	leftRightChildPage, err := t.pager.GetPage(leftRightChild)
	if err != nil {
		return err
	}
	node.SetParent(leftRightChildPage, rightPageNum)

	node.ShiftInternalCellsLeft(parent, sepIdx, numKeysParent)
	node.SetNumKeys(parent, numKeysParent-1)
	return nil
}

// finishInternalMerge runs mergeInternal and then either cascades the
// rebalance up to the grandparent, or — if the parent was the root and
// is now empty — collapses the surviving node into the root page.
func (t *Table) finishInternalMerge(parentPageNum uint32, parent *pager.Page, numKeysParent uint32, sepIdx uint32, leftPageNum uint32, left *pager.Page, rightPageNum uint32, right *pager.Page) error {
	if err := t.mergeInternal(parentPageNum, parent, numKeysParent, sepIdx, leftPageNum, left, rightPageNum, right); err != nil {
		return err
	}
	newNumKeys := numKeysParent - 1

	if node.IsRoot(parent) {
		if newNumKeys != 0 {
			return nil
		}
		root, err := t.pager.GetPage(rootPageNum)
		if err != nil {
			return err
		}
		survivor, err := t.pager.GetPage(rightPageNum)
		if err != nil {
			return err
		}
		*root = *survivor
		node.SetRoot(root, true)
		if node.Type(root) == node.TypeInternal {
			numKeys := node.NumKeys(root)
			for i := uint32(0); i <= numKeys; i++ {
				childNum, err := node.Child(root, i, numKeys)
				if err != nil {
					return err
				}
				childPage, err := t.pager.GetPage(childNum)
				if err != nil {
					return err
				}
				node.SetParent(childPage, rootPageNum)
			}
		}
		return nil
	}

	if newNumKeys <= node.InternalMaxKeys/2 {
		return t.recursiveInternalRebalance(parentPageNum)
	}
	return nil
}
