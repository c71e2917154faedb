package directory

import (
	"github.com/marmos91/pseudofs/internal/protocol/vio"
	"github.com/marmos91/pseudofs/pkg/channel"
)

// watcherSet fans directory events out to the watcher channels registered on
// one directory. The owning directory's lock serializes all calls, so the
// set itself needs no locking. Delivery is best effort: a watcher whose peer
// went away is dropped on the first failed send.
type watcherSet struct {
	watchers []*watcher
}

type watcher struct {
	mask uint32
	ch   *channel.Channel
}

// add registers a watcher and replays the directory's current contents to it
// when the mask asks for existing entries. existing must already include the
// directory's own "." entry.
func (s *watcherSet) add(mask uint32, ch *channel.Channel, existing []string) {
	w := &watcher{mask: mask, ch: ch}

	if mask&vio.WatchMaskExisting != 0 {
		if !w.send(vio.WatchEventExisting, existing) {
			ch.Close()
			return
		}
	}
	if mask&vio.WatchMaskIdle != 0 {
		if !w.send(vio.WatchEventIdle, []string{""}) {
			ch.Close()
			return
		}
	}

	s.watchers = append(s.watchers, w)
}

// remove drops the watcher bound to ch and closes it.
func (s *watcherSet) remove(ch *channel.Channel) {
	for i, w := range s.watchers {
		if w.ch == ch {
			s.watchers = append(s.watchers[:i], s.watchers[i+1:]...)
			w.ch.Close()
			return
		}
	}
}

// broadcast delivers one event for each name to every watcher interested in
// it, dropping watchers that can no longer be reached.
func (s *watcherSet) broadcast(event uint8, names ...string) {
	if len(s.watchers) == 0 || len(names) == 0 {
		return
	}

	mask := vio.WatchMaskForEvent(event)
	kept := s.watchers[:0]
	for _, w := range s.watchers {
		if w.mask&mask == 0 || w.send(event, names) {
			kept = append(kept, w)
		} else {
			w.ch.Close()
		}
	}
	s.watchers = kept
}

// send writes the named events to the watcher channel, splitting the batch
// into buffers no larger than the transfer limit. It reports whether the
// watcher is still alive.
func (w *watcher) send(event uint8, names []string) bool {
	var page []byte
	for _, name := range names {
		if len(page) > 0 && uint64(len(page))+vio.WatchEventSize(name) > vio.MaxTransfer {
			if w.ch.Send(channel.Message{Data: page}) != nil {
				return false
			}
			// The sent buffer is owned by the queue now; start a new one.
			page = nil
		}
		page = vio.AppendWatchEvent(page, event, name)
	}

	if len(page) > 0 && w.ch.Send(channel.Message{Data: page}) != nil {
		return false
	}
	return true
}
