package table

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nikolasrummel/minidb/storage/row"
)

func openTemp(t *testing.T) *Table {
	t.Helper()
	tbl, err := Open(filepath.Join(t.TempDir(), "data.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return tbl
}

func mustInsert(t *testing.T, tbl *Table, id uint32) {
	t.Helper()
	r, err := row.New(id, "user", "user@example.com")
	if err != nil {
		t.Fatalf("row.New(%d): %v", id, err)
	}
	if err := tbl.Insert(r); err != nil {
		t.Fatalf("Insert(%d): %v", id, err)
	}
}

func TestInsertAndGet(t *testing.T) {
	tbl := openTemp(t)
	r, err := row.New(1, "alice", "alice@example.com")
	if err != nil {
		t.Fatalf("row.New: %v", err)
	}
	if err := tbl.Insert(r); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	got, found, err := tbl.Get(1)
	if err != nil || !found {
		t.Fatalf("Get(1) = %+v, %v, %v; want found", got, found, err)
	}
	if got != r {
		t.Fatalf("Get(1) = %+v, want %+v", got, r)
	}
	if _, found, err := tbl.Get(2); err != nil || found {
		t.Fatalf("Get(2) should report not found, got found=%v err=%v", found, err)
	}
}

func TestInsertDuplicateKey(t *testing.T) {
	tbl := openTemp(t)
	mustInsert(t, tbl, 5)
	r, _ := row.New(5, "x", "x@x.com")
	if err := tbl.Insert(r); err != ErrDuplicateKey {
		t.Fatalf("Insert duplicate = %v, want ErrDuplicateKey", err)
	}
}

func TestLeafSplitProducesInternalRootWithKey3(t *testing.T) {
	tbl := openTemp(t)
	for id := uint32(1); id <= 6; id++ {
		mustInsert(t, tbl, id)
	}
	var buf bytes.Buffer
	if err := tbl.Debug(&buf); err != nil {
		t.Fatalf("Debug: %v", err)
	}
	dump := buf.String()
	if !strings.Contains(dump, "internal page=0 k=1 keys=[3]") {
		t.Fatalf("root after 6 sequential inserts should be internal with separator 3, got:\n%s", dump)
	}
	rows, err := tbl.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(rows) != 6 {
		t.Fatalf("Scan returned %d rows, want 6", len(rows))
	}
	for i, r := range rows {
		if r.ID != uint32(i+1) {
			t.Fatalf("Scan[%d].ID = %d, want %d", i, r.ID, i+1)
		}
	}
}

func TestInternalSplitGrowsTreeToHeightThree(t *testing.T) {
	tbl := openTemp(t)
	for id := uint32(1); id <= 20; id++ {
		mustInsert(t, tbl, id)
	}
	rows, err := tbl.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(rows) != 20 {
		t.Fatalf("Scan returned %d rows, want 20", len(rows))
	}
	for i, r := range rows {
		if r.ID != uint32(i+1) {
			t.Fatalf("Scan[%d].ID = %d, want %d", i, r.ID, i+1)
		}
	}
	var buf bytes.Buffer
	if err := tbl.Debug(&buf); err != nil {
		t.Fatalf("Debug: %v", err)
	}
	depth := strings.Count(strings.SplitN(buf.String(), "leaf", 2)[0], "  ")
	if depth < 2 {
		t.Fatalf("tree did not grow past a single internal level for 20 inserts:\n%s", buf.String())
	}
	for id := uint32(1); id <= 20; id++ {
		if _, found, err := tbl.Get(id); err != nil || !found {
			t.Fatalf("Get(%d) after growth = found=%v err=%v", id, found, err)
		}
	}
}

func TestDeleteTriggersMergeAndStaysQueryable(t *testing.T) {
	tbl := openTemp(t)
	for id := uint32(1); id <= 20; id++ {
		mustInsert(t, tbl, id)
	}
	for id := uint32(1); id <= 14; id++ {
		if err := tbl.Delete(id); err != nil {
			t.Fatalf("Delete(%d): %v", id, err)
		}
	}
	rows, err := tbl.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(rows) != 6 {
		t.Fatalf("Scan after deletes returned %d rows, want 6", len(rows))
	}
	for i, r := range rows {
		want := uint32(15 + i)
		if r.ID != want {
			t.Fatalf("Scan[%d].ID = %d, want %d", i, r.ID, want)
		}
	}
	for id := uint32(1); id <= 14; id++ {
		if _, found, err := tbl.Get(id); err != nil || found {
			t.Fatalf("Get(%d) after delete: found=%v err=%v, want not found", id, found, err)
		}
	}
	for id := uint32(15); id <= 20; id++ {
		if _, found, err := tbl.Get(id); err != nil || !found {
			t.Fatalf("Get(%d) after unrelated deletes: found=%v err=%v, want found", id, found, err)
		}
	}
}

func TestDeleteNotFound(t *testing.T) {
	tbl := openTemp(t)
	mustInsert(t, tbl, 1)
	if err := tbl.Delete(99); err != ErrNotFound {
		t.Fatalf("Delete(99) = %v, want ErrNotFound", err)
	}
}

func TestDeleteLastRowEmptiesRootLeaf(t *testing.T) {
	tbl := openTemp(t)
	mustInsert(t, tbl, 1)
	if err := tbl.Delete(1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	rows, err := tbl.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("Scan after deleting the only row = %d rows, want 0", len(rows))
	}
	mustInsert(t, tbl, 2)
	if _, found, err := tbl.Get(2); err != nil || !found {
		t.Fatalf("Get(2) after reinserting into emptied root: found=%v err=%v", found, err)
	}
}

func TestUpdateChangesOnlyRequestedFields(t *testing.T) {
	tbl := openTemp(t)
	r, _ := row.New(1, "alice", "alice@example.com")
	if err := tbl.Insert(r); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	newEmail := "alice2@example.com"
	if err := tbl.Update(1, nil, &newEmail); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, found, err := tbl.Get(1)
	if err != nil || !found {
		t.Fatalf("Get(1) after update: found=%v err=%v", found, err)
	}
	if got.Username != "alice" || got.Email != newEmail {
		t.Fatalf("Get(1) after update = %+v, want username unchanged and email %q", got, newEmail)
	}
}

func TestUpdateNotFound(t *testing.T) {
	tbl := openTemp(t)
	email := "x@x.com"
	if err := tbl.Update(1, nil, &email); err != ErrNotFound {
		t.Fatalf("Update(missing) = %v, want ErrNotFound", err)
	}
}

func TestCloseReopenPersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.db")

	tbl, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for id := uint32(1); id <= 10; id++ {
		mustInsert(t, tbl, id)
	}
	if err := tbl.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	rows, err := reopened.Scan()
	if err != nil {
		t.Fatalf("Scan after reopen: %v", err)
	}
	if len(rows) != 10 {
		t.Fatalf("Scan after reopen returned %d rows, want 10", len(rows))
	}
	for i, r := range rows {
		if r.ID != uint32(i+1) {
			t.Fatalf("Scan[%d].ID = %d, want %d", i, r.ID, i+1)
		}
	}
}
