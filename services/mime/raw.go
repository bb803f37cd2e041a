package mime

import (
	"bytes"
	"strings"

	"github.com/jhillyerd/enmime"
	"github.com/pkg/errors"
)

// RawMessage is the result of parsing a whole message when the server sent no
// body structure
type RawMessage struct {
	Body        DecodedBody
	Attachments []AttachmentMeta
}

// ParseRaw parses a full RFC 5322 message. HTML wins over plain text, as with
// SelectTextPart.
func ParseRaw(raw []byte) (*RawMessage, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse message")
	}

	result := &RawMessage{}
	switch {
	case env.HTML != "":
		result.Body = DecodedBody{Text: sanitizeText([]byte(env.HTML)), ContentType: "text/html", Found: true}
	case env.Text != "":
		result.Body = DecodedBody{Text: sanitizeText([]byte(env.Text)), ContentType: "text/plain", Found: true}
	}

	for _, part := range env.Attachments {
		result.Attachments = append(result.Attachments, metaFromEnmime(part, false))
	}
	for _, part := range env.Inlines {
		result.Attachments = append(result.Attachments, metaFromEnmime(part, true))
	}

	return result, nil
}

func metaFromEnmime(part *enmime.Part, inline bool) AttachmentMeta {
	locator := part.PartID
	if locator == "" || locator == "0" {
		locator = "1"
	}

	contentType := part.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}

	filename := part.FileName
	if filename == "" {
		filename = "attachment-" + locator + ".bin"
	}

	return AttachmentMeta{
		Filename:    filename,
		ContentType: contentType,
		Size:        uint32(len(part.Content)),
		ContentID:   strings.Trim(part.ContentID, "<>"),
		Inline:      inline,
		Locator:     locator,
		Encoding:    part.Header.Get("Content-Transfer-Encoding"),
	}
}
