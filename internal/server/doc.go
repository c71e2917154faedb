// Package server bridges TCP clients onto the in-process channel fabric.
//
// Each accepted socket multiplexes many logical channels. Channel 1 is
// opened onto the root directory the moment the socket connects; requests
// that carry a new channel id (Open, Clone, Watch) make the bridge mint a
// fresh channel pair, hand one end to the serving side and pump the other
// back over the socket under that id. Every socket gets its own execution
// scope and token registry, so dropping the socket tears down everything it
// opened.
package server
