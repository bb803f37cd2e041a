package imap

import (
	"bufio"
	"io"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/utils"
)

func init() {
	// ENVELOPE strings keep their RFC 2047 encoded words, go-imap decodes only
	// utf-8 and latin-1 on its own
	imap.CharsetReader = charset.Reader
}

// parseEnvelope maps the server's ENVELOPE and FLAGS onto a ParsedEnvelope.
// references holds the raw References header block, it may be nil.
func parseEnvelope(env *imap.Envelope, flags []string, references io.Reader) interfaces.ParsedEnvelope {
	parsed := interfaces.ParsedEnvelope{
		Unread: !hasFlag(flags, imap.SeenFlag),
	}
	if env == nil {
		return parsed
	}

	parsed.Subject = env.Subject
	parsed.Date = env.Date
	parsed.MessageID = utils.NormalizeMessageID(env.MessageId)
	if ids := utils.SplitMessageIDs(env.InReplyTo); len(ids) > 0 {
		parsed.InReplyTo = ids[0]
	}

	if len(env.From) > 0 {
		parsed.From = utils.CleanEmailAddress(env.From[0].Address())
		parsed.FromName = env.From[0].PersonalName
	}
	parsed.To = cleanAddresses(env.To)
	parsed.Cc = cleanAddresses(env.Cc)

	if references != nil {
		parsed.References = parseReferences(references)
	}
	return parsed
}

func cleanAddresses(addrs []*imap.Address) []string {
	var out []string
	for _, addr := range addrs {
		if addr == nil {
			continue
		}
		if email := utils.CleanEmailAddress(addr.Address()); email != "" {
			out = utils.AppendUnique(out, email)
		}
	}
	return out
}

func parseReferences(r io.Reader) []string {
	h, err := textproto.ReadHeader(bufio.NewReader(r))
	if err != nil {
		return nil
	}
	header := mail.Header{}
	header.Header.Header = h
	ids, err := header.MsgIDList("References")
	if err != nil {
		// tolerate malformed headers, split on whitespace instead
		return utils.SplitMessageIDs(h.Get("References"))
	}
	var out []string
	for _, id := range ids {
		out = utils.AppendUnique(out, utils.NormalizeMessageID(id))
	}
	return out
}

func hasFlag(flags []string, flag string) bool {
	for _, f := range flags {
		if strings.EqualFold(f, flag) {
			return true
		}
	}
	return false
}
