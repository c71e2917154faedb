package directory

const (
	cursorStart uint8 = iota
	cursorName
	cursorEnd
)

// Cursor marks how far a directory enumeration has progressed. The zero
// value is the start of the listing. After the start, the cursor stores the
// name returned last by ReadDirents; the next call resumes with the
// alphabetically next entry.
type Cursor struct {
	state uint8
	name  string
}

// CursorAfter returns a cursor resuming strictly after name. An empty name
// resumes at the first real entry, right after the synthetic "." record.
func CursorAfter(name string) Cursor {
	return Cursor{state: cursorName, name: name}
}

// CursorEnd returns the cursor of a finished enumeration.
func CursorEnd() Cursor {
	return Cursor{state: cursorEnd}
}

// IsStart reports whether the enumeration has not begun.
func (c Cursor) IsStart() bool {
	return c.state == cursorStart
}

// IsEnd reports whether the enumeration is finished.
func (c Cursor) IsEnd() bool {
	return c.state == cursorEnd
}

// Name returns the last delivered name for a mid-listing cursor.
func (c Cursor) Name() string {
	return c.name
}
