package session

import (
	"time"

	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/render"
)

// MessageClass groups queued session messages.
type MessageClass string

const (
	MessageError   MessageClass = "ERROR"
	MessageConfirm MessageClass = "CONFIRM"
	MessageInfo    MessageClass = "INFO"
)

// MessageClasses lists the classes in replay order.
var MessageClasses = []MessageClass{MessageError, MessageConfirm, MessageInfo}

// FormState is the per-session, per-form state that survives across
// requests.
type FormState struct {
	Values         map[string]string              `json:"values"`
	PendingUploads map[string]model.PendingUpload `json:"pendingUploads"`
	Messages       map[MessageClass][]string      `json:"messages"`
	SubmittedAt    *time.Time                     `json:"submittedAt,omitempty"`
}

// NewFormState returns an empty state with initialised maps.
func NewFormState() *FormState {
	state := &FormState{}
	state.ensure()
	return state
}

func (s *FormState) ensure() {
	if s.Values == nil {
		s.Values = make(map[string]string)
	}
	if s.PendingUploads == nil {
		s.PendingUploads = make(map[string]model.PendingUpload)
	}
	if s.Messages == nil {
		s.Messages = make(map[MessageClass][]string)
	}
}

// IsEmpty reports whether the state holds nothing worth persisting.
func (s *FormState) IsEmpty() bool {
	if s == nil {
		return true
	}
	if len(s.Values) > 0 || len(s.PendingUploads) > 0 || s.SubmittedAt != nil {
		return false
	}
	for _, msgs := range s.Messages {
		if len(msgs) > 0 {
			return false
		}
	}
	return true
}

// Value returns the stored value for a field.
func (s *FormState) Value(name string) (string, bool) {
	if s == nil || s.Values == nil {
		return "", false
	}
	v, ok := s.Values[name]
	return v, ok
}

// SetValue records the last submitted value for a field.
func (s *FormState) SetValue(name, value string) {
	s.ensure()
	s.Values[name] = value
}

// Pending returns the pending upload recorded for a field.
func (s *FormState) Pending(field string) (model.PendingUpload, bool) {
	if s == nil || s.PendingUploads == nil {
		return model.PendingUpload{}, false
	}
	p, ok := s.PendingUploads[field]
	return p, ok
}

// SetPending records upload bookkeeping for a field.
func (s *FormState) SetPending(field string, upload model.PendingUpload) {
	s.ensure()
	s.PendingUploads[field] = upload
}

// RemovePending drops the upload bookkeeping for a field.
func (s *FormState) RemovePending(field string) {
	if s == nil || s.PendingUploads == nil {
		return
	}
	delete(s.PendingUploads, field)
}

// AddMessage queues a message for replay on the next render.
func (s *FormState) AddMessage(class MessageClass, message string) {
	s.ensure()
	s.Messages[class] = append(s.Messages[class], message)
}

// DrainMessages returns the queued messages per class with identical strings
// collapsed, and clears the queue.
func (s *FormState) DrainMessages() map[MessageClass][]string {
	if s == nil || len(s.Messages) == 0 {
		return nil
	}
	out := make(map[MessageClass][]string, len(s.Messages))
	for class, msgs := range s.Messages {
		if normalized := render.NormalizeMessages(msgs); len(normalized) > 0 {
			out[class] = normalized
		}
	}
	s.Messages = make(map[MessageClass][]string)
	if len(out) == 0 {
		return nil
	}
	return out
}

// ExpireStale drops stored values when the last submission is older than
// ttl. It reports whether anything was dropped.
func (s *FormState) ExpireStale(now time.Time, ttl time.Duration) bool {
	if s == nil || s.SubmittedAt == nil || ttl <= 0 {
		return false
	}
	if now.Sub(*s.SubmittedAt) <= ttl {
		return false
	}
	s.Values = make(map[string]string)
	s.SubmittedAt = nil
	return true
}

// Clone returns a deep copy.
func (s *FormState) Clone() *FormState {
	if s == nil {
		return NewFormState()
	}
	out := NewFormState()
	for k, v := range s.Values {
		out.Values[k] = v
	}
	for k, v := range s.PendingUploads {
		out.PendingUploads[k] = v
	}
	for k, v := range s.Messages {
		out.Messages[k] = append([]string(nil), v...)
	}
	if s.SubmittedAt != nil {
		at := *s.SubmittedAt
		out.SubmittedAt = &at
	}
	return out
}
