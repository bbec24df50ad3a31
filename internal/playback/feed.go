package playback

import "lectern/internal/models"

const feedBufferSize = 16

// Snapshot is published to subscribers after every session transition.
type Snapshot struct {
	ItemID  models.ItemID `json:"item_id"`
	State   State         `json:"state"`
	Loading bool          `json:"loading"`
	Error   string        `json:"error,omitempty"`
}

func (c *Controller) Subscribe() chan Snapshot {
	ch := make(chan Snapshot, feedBufferSize)
	c.subMu.Lock()
	c.subscribers[ch] = struct{}{}
	c.subMu.Unlock()
	return ch
}

func (c *Controller) Unsubscribe(ch chan Snapshot) {
	c.subMu.Lock()
	_, exists := c.subscribers[ch]
	delete(c.subscribers, ch)
	c.subMu.Unlock()
	if exists {
		close(ch)
	}
}

// publish never blocks; a subscriber with a full buffer misses the update.
func (c *Controller) publish(snap Snapshot) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for ch := range c.subscribers {
		select {
		case ch <- snap:
		default:
		}
	}
}
