// Package convo owns the bounded conversation history and the language-model
// round trip. No other component reads or writes the history directly.
package convo

// Role of one conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation turn. ImageURL, when set, is a data URL
// attached to that single message only; it is never retried or cached.
// Err marks a locally generated error turn: shown to the user, skipped
// when building a completion request.
type Message struct {
	Role     Role
	Text     string
	ImageURL string
	Err      bool
}

// History is the ordered message sequence. message[0] is always the fixed
// system instruction and is never evicted; appends are otherwise
// append-only, with trimming dropping the oldest non-system messages.
type History struct {
	msgs []Message
	cap  int
}

// NewHistory seeds the history with the system instruction. cap is the
// maximum total length after trimming, system message included.
func NewHistory(systemPrompt string, cap int) *History {
	return &History{
		msgs: []Message{{Role: RoleSystem, Text: systemPrompt}},
		cap:  cap,
	}
}

// AppendUser adds a user turn, optionally carrying an image.
func (h *History) AppendUser(text, imageURL string) {
	h.msgs = append(h.msgs, Message{Role: RoleUser, Text: text, ImageURL: imageURL})
}

// AppendAssistant adds an assistant turn.
func (h *History) AppendAssistant(text string) {
	h.msgs = append(h.msgs, Message{Role: RoleAssistant, Text: text})
}

// AppendError adds a locally generated error turn.
func (h *History) AppendError(text string) {
	h.msgs = append(h.msgs, Message{Role: RoleAssistant, Text: text, Err: true})
}

// Trim drops the oldest non-system messages until the history fits the cap.
// The system message and the most recent turns always survive.
func (h *History) Trim() {
	if h.cap <= 0 || len(h.msgs) <= h.cap {
		return
	}
	keep := h.cap - 1 // slots left beside the system message
	tail := h.msgs[len(h.msgs)-keep:]

	trimmed := make([]Message, 0, h.cap)
	trimmed = append(trimmed, h.msgs[0])
	trimmed = append(trimmed, tail...)
	h.msgs = trimmed
}

// Messages returns a copy of the current sequence.
func (h *History) Messages() []Message {
	out := make([]Message, len(h.msgs))
	copy(out, h.msgs)
	return out
}

// Len is the current message count, system message included.
func (h *History) Len() int { return len(h.msgs) }

// HasImages reports whether any turn carries an image.
func (h *History) HasImages() bool {
	for _, m := range h.msgs {
		if m.ImageURL != "" {
			return true
		}
	}
	return false
}
