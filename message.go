package overseer

import (
	"bytes"
	"encoding/json"
)

// messageBuffers holds per-child accumulation state for MessageParser,
// keyed by pid so a line split across two reads is never lost.
type messageBuffers struct {
	byPid map[int]*bytes.Buffer
}

func newMessageBuffers() *messageBuffers {
	return &messageBuffers{byPid: make(map[int]*bytes.Buffer)}
}

func (m *messageBuffers) forPid(pid int) *bytes.Buffer {
	buf, ok := m.byPid[pid]
	if !ok {
		buf = &bytes.Buffer{}
		m.byPid[pid] = buf
	}
	return buf
}

func (m *messageBuffers) discard(pid int) {
	delete(m.byPid, pid)
}

// feedMessages appends data to c's line buffer and delivers one
// callback per complete, well-formed JSON line. Malformed lines are
// dropped silently save for an ambient ChildMessageDropped event; a
// partial trailing fragment with no newline is retained for the next
// read.
func (s *Supervisor) feedMessages(c *Child, data []byte) {
	buf := s.messages.forPid(c.Pid)
	buf.Write(data)

	for {
		line, err := buf.ReadBytes('\n')
		if err != nil {
			// No newline yet: err is io.EOF and ReadBytes has already
			// consumed nothing extra; push the partial bytes back.
			buf.Reset()
			buf.Write(line)
			return
		}

		line = bytes.TrimRight(line, "\n")
		if len(line) == 0 {
			continue
		}

		var msg any
		if jsonErr := json.Unmarshal(line, &msg); jsonErr != nil {
			s.emitEvent(Event{ID: c.ID, Pid: c.Pid, Type: ChildMessageDropped})
			continue
		}

		if s.cfg.onMessage != nil {
			s.cfg.onMessage(c.snapshot(), msg)
		}
	}
}
