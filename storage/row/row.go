// Package row implements the fixed-layout record stored in every leaf
// cell: a 32-bit id, a 32-byte user_name, and a 256-byte email, each
// NUL-padded the way a C string would be. The layout is a direct port
// of the original C database's serialize_row/deserialize_row.
package row

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

const (
	// UsernameSize is the fixed width of the user_name field, including
	// its NUL terminator — callers may store at most UsernameSize-1
	// bytes of text.
	UsernameSize = 32
	// EmailSize is the fixed width of the email field, same convention.
	EmailSize = 256

	idSize = 4

	idOffset       = 0
	usernameOffset = idOffset + idSize
	emailOffset    = usernameOffset + UsernameSize

	// Size is the total serialized width of a Row: 4 + 32 + 256.
	Size = emailOffset + EmailSize
)

// Row is a single table record.
type Row struct {
	ID       uint32
	Username string
	Email    string
}

// New validates field widths and builds a Row. Usernames longer than
// UsernameSize-1 bytes or emails longer than EmailSize-1 bytes don't
// fit their NUL-padded slot and are rejected here rather than silently
// truncated or allowed to overrun — see DESIGN.md's Open Question
// decision on this.
func New(id uint32, username, email string) (Row, error) {
	if len(username) > UsernameSize-1 {
		return Row{}, errors.Errorf("row: user_name %q exceeds %d bytes", username, UsernameSize-1)
	}
	if len(email) > EmailSize-1 {
		return Row{}, errors.Errorf("row: email %q exceeds %d bytes", email, EmailSize-1)
	}
	return Row{ID: id, Username: username, Email: email}, nil
}

// Serialize writes r into buf[0:Size] using the fixed id/user_name/email
// layout. buf must be at least Size bytes long.
func Serialize(r Row, buf []byte) {
	binary.LittleEndian.PutUint32(buf[idOffset:idOffset+idSize], r.ID)

	var nameBuf [UsernameSize]byte
	copy(nameBuf[:], r.Username)
	copy(buf[usernameOffset:usernameOffset+UsernameSize], nameBuf[:])

	var emailBuf [EmailSize]byte
	copy(emailBuf[:], r.Email)
	copy(buf[emailOffset:emailOffset+EmailSize], emailBuf[:])
}

// Deserialize reads a Row back out of buf[0:Size].
func Deserialize(buf []byte) Row {
	id := binary.LittleEndian.Uint32(buf[idOffset : idOffset+idSize])

	name := buf[usernameOffset : usernameOffset+UsernameSize]
	email := buf[emailOffset : emailOffset+EmailSize]

	return Row{
		ID:       id,
		Username: string(name[:cStringLen(name)]),
		Email:    string(email[:cStringLen(email)]),
	}
}

// cStringLen returns the length of the NUL-terminated string at the
// start of b, or len(b) if there is no NUL byte.
func cStringLen(b []byte) int {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return i
	}
	return len(b)
}
