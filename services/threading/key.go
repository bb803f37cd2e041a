package threading

import (
	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/utils"
)

type KeyKind int

const (
	KeyInReplyTo KeyKind = iota
	KeyReference
	KeySubject
	// KeyMessageID is used for messages without headers or subject, they start their own thread
	KeyMessageID
)

func (k KeyKind) String() string {
	switch k {
	case KeyInReplyTo:
		return "in_reply_to"
	case KeyReference:
		return "reference"
	case KeyMessageID:
		return "message_id"
	default:
		return "subject"
	}
}

// ThreadKey is the grouping identity of a message
type ThreadKey struct {
	Value string
	Kind  KeyKind
}

// IsHeaderKey reports keys taken from In-Reply-To or References
func (k ThreadKey) IsHeaderKey() bool {
	return k.Kind == KeyInReplyTo || k.Kind == KeyReference
}

// ResolveKey picks In-Reply-To, then the first References entry, then the normalized subject.
// An empty subject falls back to the message's own id.
func ResolveKey(env interfaces.ParsedEnvelope) ThreadKey {
	if id := utils.NormalizeMessageID(env.InReplyTo); id != "" {
		return ThreadKey{Value: id, Kind: KeyInReplyTo}
	}
	for _, ref := range env.References {
		if id := utils.NormalizeMessageID(ref); id != "" {
			return ThreadKey{Value: id, Kind: KeyReference}
		}
	}
	if NormalizeSubject(env.Subject) == "" {
		if id := utils.NormalizeMessageID(env.MessageID); id != "" {
			return ThreadKey{Value: id, Kind: KeyMessageID}
		}
	}
	return ThreadKey{Value: SubjectKey(env.Subject), Kind: KeySubject}
}
