package session

import (
	"sync"

	"github.com/srg/blesensor/internal/device"
)

// handleSlot holds the live link and the cached target characteristic.
// The controller writes it; polling, Reconnect, Disconnect and Close read it.
type handleSlot struct {
	mu        sync.Mutex
	link      device.Link
	char      device.Characteristic
	notifying bool
	indicate  bool
}

func (h *handleSlot) set(link device.Link) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.link = link
	h.char = nil
	h.notifying = false
}

func (h *handleSlot) get() device.Link {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.link
}

// holds reports whether link is still the current handle.
func (h *handleSlot) holds(link device.Link) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return link != nil && h.link == link
}

func (h *handleSlot) setTarget(char device.Characteristic) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.char = char
}

// markNotifying records an accepted subscription on link, ignoring stale links.
func (h *handleSlot) markNotifying(link device.Link, indicate bool) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.link != link {
		return false
	}
	h.notifying = true
	h.indicate = indicate
	return true
}

// released is what take hands to teardown.
type released struct {
	link      device.Link
	char      device.Characteristic
	notifying bool
	indicate  bool
}

// take empties the slot and returns what it held.
func (h *handleSlot) take() released {
	h.mu.Lock()
	defer h.mu.Unlock()
	r := released{link: h.link, char: h.char, notifying: h.notifying, indicate: h.indicate}
	h.link, h.char, h.notifying, h.indicate = nil, nil, false, false
	return r
}
