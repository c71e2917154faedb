package vio

import "fmt"

// Watch event buffers are packed like dirent pages, one record per event:
//
//	event    u8
//	name_len u8
//	name     name_len bytes, no padding
//
// A single buffer may carry several events; each buffer is sent as one
// message on the watcher channel.

// WatchEvent is one decoded watcher notification.
type WatchEvent struct {
	Event uint8
	Name  string
}

// WatchEventSize returns the encoded size of one event record.
func WatchEventSize(name string) uint64 {
	return 2 + uint64(len(name))
}

// AppendWatchEvent appends one event record to the buffer.
func AppendWatchEvent(buf []byte, event uint8, name string) []byte {
	if len(name) > MaxFilename {
		panic(fmt.Sprintf("watch event name %q exceeds %d bytes", name, MaxFilename))
	}

	buf = append(buf, event, uint8(len(name)))
	return append(buf, name...)
}

// ParseWatchEvents decodes a full buffer of event records.
func ParseWatchEvents(buf []byte) ([]WatchEvent, error) {
	var events []WatchEvent

	for len(buf) > 0 {
		if len(buf) < 2 {
			return nil, fmt.Errorf("truncated watch event header")
		}

		event := buf[0]
		nameLen := int(buf[1])
		buf = buf[2:]

		if len(buf) < nameLen {
			return nil, fmt.Errorf("truncated watch event name: want %d bytes, have %d", nameLen, len(buf))
		}

		events = append(events, WatchEvent{Event: event, Name: string(buf[:nameLen])})
		buf = buf[nameLen:]
	}

	return events, nil
}

// WatchMaskForEvent returns the mask bit that selects the given event code,
// or zero for unknown codes.
func WatchMaskForEvent(event uint8) uint32 {
	switch event {
	case WatchEventDeleted:
		return WatchMaskDeleted
	case WatchEventAdded:
		return WatchMaskAdded
	case WatchEventRemoved:
		return WatchMaskRemoved
	case WatchEventExisting:
		return WatchMaskExisting
	case WatchEventIdle:
		return WatchMaskIdle
	default:
		return 0
	}
}
