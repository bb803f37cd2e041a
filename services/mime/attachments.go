package mime

import (
	gomime "mime"
	"strings"

	"github.com/emersion/go-message/charset"

	"github.com/customeros/mailsync/internal/enum"
)

const defaultContentType = "application/octet-stream"

var wordDecoder = &gomime.WordDecoder{CharsetReader: charset.Reader}

type AttachmentMeta struct {
	Filename    string
	ContentType string
	Size        uint32
	ContentID   string
	Inline      bool
	Locator     string
	Encoding    string
}

// ExtractAttachments lists every part marked as attachment or inline, in part order.
// The part chosen as message body is not an attachment even when marked inline.
func ExtractAttachments(root Node) []AttachmentMeta {
	body, _ := SelectTextPart(root)

	var attachments []AttachmentMeta
	Walk(root, func(n Node) bool {
		leaf, ok := n.(*Leaf)
		if !ok || leaf == body {
			return true
		}
		if leaf.Disposition != enum.DispositionAttachment && leaf.Disposition != enum.DispositionInline {
			return true
		}

		contentType := leaf.ContentType()
		if contentType == "" {
			contentType = defaultContentType
		}

		attachments = append(attachments, AttachmentMeta{
			Filename:    attachmentFilename(leaf),
			ContentType: contentType,
			Size:        leaf.Size,
			ContentID:   leaf.ContentID,
			Inline:      leaf.Disposition == enum.DispositionInline,
			Locator:     leaf.Locator,
			Encoding:    leaf.Encoding,
		})
		return true
	})
	return attachments
}

func attachmentFilename(leaf *Leaf) string {
	for _, raw := range []string{leaf.DispositionParams["filename"], leaf.Params["name"]} {
		if name := decodeFilename(raw); name != "" {
			return name
		}
	}

	ext := leaf.SubType
	if ext == "" {
		ext = "bin"
	}
	return "attachment-" + leaf.Locator + "." + ext
}

func decodeFilename(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	decoded, err := wordDecoder.DecodeHeader(raw)
	if err != nil {
		return raw
	}
	return strings.TrimSpace(decoded)
}
