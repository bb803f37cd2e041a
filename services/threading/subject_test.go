package threading

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/customeros/mailsync/interfaces"
)

func TestNormalizeSubject(t *testing.T) {
	cases := map[string]string{
		"Re: Re: Order #123":         "order #123",
		"order #123":                 "order #123",
		"FWD: fw: AW: Hello":         "hello",
		"Re[2]: Shipping  question":  "shipping question",
		"  RE : spaced ":             "spaced",
		"Regarding your order":       "regarding your order",
		"Re:":                        "",
		"":                           "",
		"Aw: Rücksendung":            "rücksendung",
		"Fwd: Re: [ext] Return #42":  "[ext] return #42",
	}

	for in, want := range cases {
		assert.Equal(t, want, NormalizeSubject(in), in)
	}
}

func TestNormalizeSubject_Idempotent(t *testing.T) {
	once := NormalizeSubject("Re: Fwd: Order #123")
	assert.Equal(t, once, NormalizeSubject(once))
	assert.Equal(t, SubjectKey("Re: Re: Order #123"), SubjectKey("order #123"))
}

func TestResolveKey(t *testing.T) {
	t.Run("in-reply-to wins", func(t *testing.T) {
		key := ResolveKey(interfaces.ParsedEnvelope{
			InReplyTo:  "<parent@shop.test>",
			References: []string{"root@shop.test"},
			Subject:    "Re: Order",
		})
		assert.Equal(t, ThreadKey{Value: "parent@shop.test", Kind: KeyInReplyTo}, key)
	})

	t.Run("first reference", func(t *testing.T) {
		key := ResolveKey(interfaces.ParsedEnvelope{
			References: []string{"<root@shop.test>", "mid@shop.test"},
			Subject:    "Re: Order",
		})
		assert.Equal(t, ThreadKey{Value: "root@shop.test", Kind: KeyReference}, key)
	})

	t.Run("subject fallback", func(t *testing.T) {
		key := ResolveKey(interfaces.ParsedEnvelope{Subject: "Re: Re: Order #123", MessageID: "x@shop.test"})
		assert.Equal(t, ThreadKey{Value: "subject:order #123", Kind: KeySubject}, key)
		assert.False(t, key.IsHeaderKey())
	})

	t.Run("empty subject uses own id", func(t *testing.T) {
		key := ResolveKey(interfaces.ParsedEnvelope{Subject: "Re: ", MessageID: "<x@shop.test>"})
		assert.Equal(t, ThreadKey{Value: "x@shop.test", Kind: KeyMessageID}, key)
	})

	t.Run("nothing at all", func(t *testing.T) {
		key := ResolveKey(interfaces.ParsedEnvelope{})
		assert.Equal(t, ThreadKey{Value: SubjectKeyPrefix, Kind: KeySubject}, key)
	})

	t.Run("deterministic", func(t *testing.T) {
		a := ResolveKey(interfaces.ParsedEnvelope{InReplyTo: "<p@x>", Subject: "Re: A"})
		b := ResolveKey(interfaces.ParsedEnvelope{InReplyTo: "p@x", Subject: "something else"})
		assert.Equal(t, a, b)
	})
}
