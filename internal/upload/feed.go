package upload

const feedBufferSize = 16

// Subscribe returns a channel that receives the session status whenever
// an upload starts, advances or resolves.
func (s *Session) Subscribe() chan Status {
	ch := make(chan Status, feedBufferSize)
	s.subMu.Lock()
	s.subscribers[ch] = struct{}{}
	s.subMu.Unlock()
	return ch
}

func (s *Session) Unsubscribe(ch chan Status) {
	s.subMu.Lock()
	_, exists := s.subscribers[ch]
	delete(s.subscribers, ch)
	s.subMu.Unlock()
	if exists {
		close(ch)
	}
}

// publish drops the update for subscribers whose buffer is full.
func (s *Session) publish(st Status) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subscribers {
		select {
		case ch <- st:
		default:
		}
	}
}
