// Package shell implements the textual command layer described in
// spec.md §6: parsing insert/select/update/delete/.exit lines and
// turning them into calls against storage/table, formatting results
// the way the original C REPL printed rows. It never touches a page
// buffer directly — everything goes through *table.Table.
package shell

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/nikolasrummel/minidb/storage/row"
	"github.com/nikolasrummel/minidb/storage/table"
)

// ParseError marks a line that didn't match any known command shape.
// Spec.md §7.2 treats this the same as a logical error: report and
// keep the REPL running.
type ParseError struct {
	msg string
}

func (e *ParseError) Error() string { return e.msg }

func parseErrorf(format string, args ...interface{}) error {
	return &ParseError{msg: fmt.Sprintf(format, args...)}
}

var (
	insertRe   = regexp.MustCompile(`^insert\s+(\d+)\s+(\S+)\s+(\S+)$`)
	selectIDRe = regexp.MustCompile(`^select\s+id=(\d+)$`)
	deleteRe   = regexp.MustCompile(`^delete\s+id=(\d+)$`)
	updateRe   = regexp.MustCompile(`^update\s+set\s+(.+?)\s+where\s+id=(\d+)$`)
)

// Shell drives a *table.Table from one line of input at a time.
// Output (row dumps, "Executed.", soft-error messages) is written to
// out; Execute never prints a prompt, which is the caller's job.
type Shell struct {
	tbl *table.Table
	out io.Writer
}

func New(tbl *table.Table, out io.Writer) *Shell {
	return &Shell{tbl: tbl, out: out}
}

// Execute runs one line. exit reports whether the caller should stop
// the REPL (".exit" was seen). err is non-nil only for failures the
// process cannot recover from — storage I/O errors and invariant
// violations; everything else (duplicate id, missing id, bad syntax,
// overlong fields) is written to out and swallowed so the loop
// continues, matching spec.md §7's distinction between logical and
// fatal errors.
func (s *Shell) Execute(line string) (exit bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if line == ".exit" {
		return true, nil
	}

	var opErr error
	switch {
	case line == "select":
		opErr = s.execSelect()
	case selectIDRe.MatchString(line):
		m := selectIDRe.FindStringSubmatch(line)
		opErr = s.execSelectID(m[1])
	case insertRe.MatchString(line):
		m := insertRe.FindStringSubmatch(line)
		opErr = s.execInsert(m[1], m[2], m[3])
	case deleteRe.MatchString(line):
		m := deleteRe.FindStringSubmatch(line)
		opErr = s.execDelete(m[1])
	case updateRe.MatchString(line):
		m := updateRe.FindStringSubmatch(line)
		opErr = s.execUpdate(m[1], m[2])
	default:
		opErr = parseErrorf("Unrecognized command: %q", line)
	}

	if opErr == nil {
		fmt.Fprintln(s.out, "Executed.")
		return false, nil
	}
	if _, fatal := opErr.(*table.InvariantError); fatal {
		return false, opErr
	}
	fmt.Fprintln(s.out, softMessage(opErr))
	return false, nil
}

func softMessage(err error) string {
	switch err {
	case table.ErrDuplicateKey:
		return "id exists"
	case table.ErrNotFound:
		return "not found"
	default:
		return err.Error()
	}
}

func (s *Shell) execInsert(idStr, username, email string) error {
	id, err := parseID(idStr)
	if err != nil {
		return err
	}
	r, err := row.New(id, username, email)
	if err != nil {
		return err
	}
	return s.tbl.Insert(r)
}

func (s *Shell) execSelect() error {
	rows, err := s.tbl.Scan()
	if err != nil {
		return err
	}
	for _, r := range rows {
		printRow(s.out, r)
	}
	return nil
}

func (s *Shell) execSelectID(idStr string) error {
	id, err := parseID(idStr)
	if err != nil {
		return err
	}
	r, found, err := s.tbl.Get(id)
	if err != nil {
		return err
	}
	if !found {
		return table.ErrNotFound
	}
	printRow(s.out, r)
	return nil
}

func (s *Shell) execDelete(idStr string) error {
	id, err := parseID(idStr)
	if err != nil {
		return err
	}
	return s.tbl.Delete(id)
}

func (s *Shell) execUpdate(assignments, idStr string) error {
	id, err := parseID(idStr)
	if err != nil {
		return err
	}
	username, email, err := parseAssignments(assignments)
	if err != nil {
		return err
	}
	if username == nil && email == nil {
		return parseErrorf("update: no user_name= or email= assignment in %q", assignments)
	}
	return s.tbl.Update(id, username, email)
}

// parseAssignments accepts "user_name=u", "email=e", or both in
// either order separated by whitespace (spec.md §6 table).
func parseAssignments(s string) (username, email *string, err error) {
	for _, field := range strings.Fields(s) {
		kv := strings.SplitN(field, "=", 2)
		if len(kv) != 2 {
			return nil, nil, parseErrorf("update: malformed assignment %q", field)
		}
		key, value := kv[0], kv[1]
		switch key {
		case "user_name":
			v := value
			username = &v
		case "email":
			v := value
			email = &v
		default:
			return nil, nil, parseErrorf("update: unknown field %q", key)
		}
	}
	return username, email, nil
}

func parseID(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, parseErrorf("id %q is not a valid unsigned integer", s)
	}
	return uint32(n), nil
}

func printRow(w io.Writer, r row.Row) {
	fmt.Fprintf(w, "(%d, %s, %s)\n", r.ID, r.Username, r.Email)
}
