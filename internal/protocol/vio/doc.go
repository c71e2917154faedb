// Package vio defines the VIO wire protocol: the message envelope, operation
// codes, open flags, status codes, node attributes, and the binary encodings
// used by directory and file connections.
//
// Every message starts with an XDR header (XID, Op) followed by an
// operation-specific body. Request XIDs are echoed in responses; XID 0 is
// reserved for unsolicited events such as OnOpen. Variable-length fields are
// length-prefixed and padded to 4-byte boundaries (RFC 4506 style), with two
// exceptions that keep their own packed formats: dirent pages (see dirents.go)
// and watch event buffers (see watch.go).
//
// The package is transport-agnostic: bodies are plain byte slices, and the
// functions here never touch a socket or a channel.
package vio
