package mime

import (
	"bytes"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/pkg/errors"
)

var ErrUnknownEncoding = errors.New("unknown transfer encoding")

// DecodePart undoes the transfer encoding of the part bytes and converts them to
// UTF-8 when a charset is declared. Unknown charsets keep the bytes as they are.
func DecodePart(leaf *Leaf, raw []byte) (string, error) {
	var header message.Header
	contentType := leaf.ContentType()
	if contentType == "" {
		contentType = "text/plain"
	}
	header.SetContentType(contentType, leaf.Params)
	if leaf.Encoding != "" {
		header.Set("Content-Transfer-Encoding", leaf.Encoding)
	}

	entity, err := message.New(header, bytes.NewReader(raw))
	if err != nil {
		if message.IsUnknownEncoding(err) {
			return "", errors.Wrapf(ErrUnknownEncoding, "%q", leaf.Encoding)
		}
		if !message.IsUnknownCharset(err) {
			return "", errors.Wrap(err, "failed to read part")
		}
	}

	decoded, err := io.ReadAll(entity.Body)
	if err != nil {
		return "", errors.Wrapf(err, "failed to decode %s part", leaf.Encoding)
	}

	return sanitizeText(decoded), nil
}

// sanitizeText makes the text storable in a postgres text column
func sanitizeText(b []byte) string {
	s := string(b)
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "�")
	}
	return strings.ReplaceAll(s, "\x00", "")
}

// DecodeAttachment undoes the transfer encoding of an attachment part. The bytes are
// returned unchanged otherwise.
func DecodeAttachment(encoding string, raw []byte) ([]byte, error) {
	var header message.Header
	header.SetContentType("application/octet-stream", nil)
	if encoding = strings.ToLower(strings.TrimSpace(encoding)); encoding != "" {
		header.Set("Content-Transfer-Encoding", encoding)
	}

	entity, err := message.New(header, bytes.NewReader(raw))
	if err != nil {
		if message.IsUnknownEncoding(err) {
			return nil, errors.Wrapf(ErrUnknownEncoding, "%q", encoding)
		}
		return nil, errors.Wrap(err, "failed to read attachment")
	}

	decoded, err := io.ReadAll(entity.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s attachment", encoding)
	}
	return decoded, nil
}
