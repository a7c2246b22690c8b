package stream

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bytedance/sonic"
)

// DefaultAnswerNodes lists the nodes whose token output is user-facing.
// Everything else streams as internal reasoning at best.
var DefaultAnswerNodes = map[string]bool{
	"chat":              true,
	"policy_enrichment": true,
}

var (
	functionTagRe  = regexp.MustCompile(`<function=[^>]*>`)
	parameterTagRe = regexp.MustCompile(`</?parameter[^>]*>`)
	functionEndRe  = regexp.MustCompile(`</function>`)
)

// Mux turns raw workflow events into client-safe SSE frames. It enforces
// provenance (answer deltas only from answer nodes), suppresses structured
// internal output leaking into the thought stream, scrubs tool-call markup
// out of answer text, and guarantees the done frame is sent at most once.
// A Mux is single-turn and not safe for concurrent use.
type Mux struct {
	answerNodes map[string]bool

	answer   strings.Builder
	thoughts strings.Builder
	toolLog  []ToolPayload

	pendingTag  map[string]string
	thoughtMode map[string]thoughtMode
	doneSent    bool
}

type thoughtMode int

const (
	thoughtUndecided thoughtMode = iota
	thoughtForward
	thoughtSuppress
)

func NewMux() *Mux {
	return &Mux{
		answerNodes: DefaultAnswerNodes,
		pendingTag:  make(map[string]string),
		thoughtMode: make(map[string]thoughtMode),
	}
}

// Answer returns the accumulated user-facing answer text.
func (m *Mux) Answer() string { return m.answer.String() }

// Thoughts returns the accumulated internal reasoning text, including chunks
// that were suppressed from the wire.
func (m *Mux) Thoughts() string { return m.thoughts.String() }

// ToolLog returns completed tool invocations in emission order.
func (m *Mux) ToolLog() []ToolPayload { return m.toolLog }

// Process filters and packs one event. The returned frame is empty when the
// event is dropped.
func (m *Mux) Process(ev Event) ([]byte, bool) {
	switch ev.Type {
	case EventAnswerDelta:
		p, ok := ev.Payload.(DeltaPayload)
		if !ok {
			return nil, false
		}
		if !m.answerNodes[ev.Node] {
			// Wrong provenance. Keep the text as reasoning, never as answer.
			return m.processThought(ev.Node, p.Delta)
		}
		clean := m.sanitizeAnswer(ev.Node, p.Delta)
		if clean == "" {
			return nil, false
		}
		m.answer.WriteString(clean)
		return m.pack(EventAnswerDelta, DeltaPayload{Delta: clean})

	case EventThoughtDelta:
		p, ok := ev.Payload.(DeltaPayload)
		if !ok {
			return nil, false
		}
		return m.processThought(ev.Node, p.Delta)

	case EventToolEnd:
		if p, ok := ev.Payload.(ToolPayload); ok {
			m.toolLog = append(m.toolLog, p)
		}
		return m.pack(ev.Type, ev.Payload)

	case EventDone:
		if m.doneSent {
			return nil, false
		}
		m.doneSent = true
		return m.pack(EventDone, ev.Payload)

	default:
		return m.pack(ev.Type, ev.Payload)
	}
}

// DoneFrame packs the terminal frame, once.
func (m *Mux) DoneFrame(payload any) ([]byte, bool) {
	return m.Process(Event{Type: EventDone, Payload: payload})
}

// processThought records the chunk to the transcript and decides, on the
// first substantive chunk a node produces, whether that node's thought stream
// is forwarded or suppressed for the rest of the turn.
func (m *Mux) processThought(node, delta string) ([]byte, bool) {
	m.thoughts.WriteString(delta)

	mode := m.thoughtMode[node]
	if mode == thoughtUndecided {
		trimmed := strings.TrimSpace(delta)
		if trimmed == "" {
			return nil, false
		}
		if structuredPrefix(trimmed) {
			mode = thoughtSuppress
		} else {
			mode = thoughtForward
		}
		m.thoughtMode[node] = mode
	}
	if mode == thoughtSuppress || delta == "" {
		return nil, false
	}
	return m.pack(EventThoughtDelta, DeltaPayload{Delta: delta})
}

// structuredPrefix reports whether a node's first output chunk looks like
// machine output (JSON, fenced code, an intent label) rather than prose.
func structuredPrefix(s string) bool {
	if s == "" {
		return false
	}
	switch s[0] {
	case '{', '[':
		return true
	}
	return strings.HasPrefix(s, "```") ||
		strings.HasPrefix(s, "GENERAL_CHAT") ||
		strings.HasPrefix(s, "POLICY_QUERY") ||
		strings.HasPrefix(s, "PROJECT_AUDIT") ||
		strings.HasPrefix(s, "SUPPLEMENTARY_INFO")
}

// sanitizeAnswer removes textual tool-call markup from an answer chunk.
// Some models stream `<function=name>` style envelopes token by token, so a
// chunk ending in a partial tag is held back until the next chunk resolves it.
func (m *Mux) sanitizeAnswer(node, delta string) string {
	s := m.pendingTag[node] + delta
	m.pendingTag[node] = ""

	s = functionTagRe.ReplaceAllString(s, "")
	s = parameterTagRe.ReplaceAllString(s, "")
	s = functionEndRe.ReplaceAllString(s, "")

	if i := danglingTagStart(s); i >= 0 {
		m.pendingTag[node] = s[i:]
		s = s[:i]
	}
	return s
}

// danglingTagStart finds the start of an unterminated `<function` or
// `<parameter` tag at the tail of s, including bare partial prefixes such
// as "<fun". Returns -1 when the tail is plain text.
func danglingTagStart(s string) int {
	i := strings.LastIndexByte(s, '<')
	if i < 0 || strings.ContainsRune(s[i:], '>') {
		return -1
	}
	tail := s[i:]
	for _, tag := range []string{"<function", "</function", "<parameter", "</parameter"} {
		if strings.HasPrefix(tail, tag) || strings.HasPrefix(tag, tail) {
			return i
		}
	}
	return -1
}

type frame struct {
	Event   EventType `json:"event"`
	Payload any       `json:"payload,omitempty"`
}

func (m *Mux) pack(t EventType, payload any) ([]byte, bool) {
	b, err := sonic.Marshal(frame{Event: t, Payload: payload})
	if err != nil {
		return nil, false
	}
	return []byte(fmt.Sprintf("data: %s\n\n", b)), true
}
