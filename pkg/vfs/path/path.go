// Package path implements validated slash-separated paths as they appear in
// Open and Unlink requests. A Path is a forward cursor over its components:
// directories pop one component at a time while walking the tree.
package path

import (
	"strings"

	"github.com/marmos91/pseudofs/internal/protocol/vio"
)

// Path is a validated path. The zero value is the empty path, naming the
// node the connection already points at.
type Path struct {
	isDir      bool
	components []string
	next       int
}

// Dot returns the empty path.
func Dot() Path {
	return Path{}
}

// Validate splits and checks a raw path string. A trailing slash is legal
// and marks the path as naming a directory. Empty components, "." and ".."
// are rejected with vio.StatusInvalidArgs; components longer than
// vio.MaxFilename with vio.StatusBadPath.
func Validate(raw string) (Path, error) {
	if raw == "" {
		return Path{}, vio.StatusInvalidArgs
	}

	isDir := strings.HasSuffix(raw, "/")
	if isDir {
		raw = raw[:len(raw)-1]
	}

	components := strings.Split(raw, "/")
	for _, component := range components {
		switch component {
		case "", ".", "..":
			return Path{}, vio.StatusInvalidArgs
		}
		if len(component) > vio.MaxFilename {
			return Path{}, vio.StatusBadPath
		}
	}

	return Path{isDir: isDir, components: components}, nil
}

// IsDir reports whether the raw path had a trailing slash.
func (p Path) IsDir() bool {
	return p.isDir
}

// IsEmpty reports whether all components have been consumed.
func (p Path) IsEmpty() bool {
	return p.next >= len(p.components)
}

// IsSingleComponent reports whether exactly one component remains.
func (p Path) IsSingleComponent() bool {
	return len(p.components)-p.next == 1
}

// Peek returns the next component without consuming it.
func (p Path) Peek() (string, bool) {
	if p.IsEmpty() {
		return "", false
	}
	return p.components[p.next], true
}

// Next consumes and returns the next component.
func (p *Path) Next() (string, bool) {
	if p.IsEmpty() {
		return "", false
	}
	component := p.components[p.next]
	p.next++
	return component, true
}

// String renders the remaining components, keeping the trailing slash for
// directory paths. Mainly for logs and forwarding to remote nodes.
func (p Path) String() string {
	rest := strings.Join(p.components[p.next:], "/")
	if p.isDir && rest != "" {
		rest += "/"
	}
	return rest
}
