package chat

import "strings"

// startWriter drains the session's outbound queue onto its transport. Socket
// writes happen only here, never under a directory or room lock; broadcasters
// enqueue and move on. A write failure is treated like a torn connection and
// triggers the full teardown cascade.
func (s *Session) startWriter() {
	go func() {
		for {
			select {
			case line := <-s.out:
				if err := s.tr.WriteLine(line); err != nil {
					go s.Terminate()
					return
				}
			case <-s.done:
				// Flush whatever is already queued, best-effort.
				for {
					select {
					case line := <-s.out:
						if err := s.tr.WriteLine(line); err != nil {
							return
						}
					default:
						return
					}
				}
			}
		}
	}()
}

// enqueue hands a frame to the writer goroutine. The send never blocks: a
// client that stops reading gets frames dropped rather than stalling the
// room that is broadcasting to it.
func (s *Session) enqueue(line string) {
	select {
	case s.out <- line:
		FramesTotal.WithLabelValues(frameType(line), "out").Inc()
	default:
		DroppedFrames.Inc()
	}
}

func frameType(line string) string {
	if i := strings.IndexByte(line, '\t'); i >= 0 {
		return line[:i]
	}
	return line
}
