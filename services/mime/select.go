package mime

import "github.com/customeros/mailsync/internal/enum"

// SelectTextPart picks the part holding the message body: the first text/html
// part in depth first order, else the first text/plain part. Parts marked as
// attachments never qualify. ok is false when the message has no text body.
func SelectTextPart(root Node) (leaf *Leaf, ok bool) {
	var html, plain *Leaf
	Walk(root, func(n Node) bool {
		l, isLeaf := n.(*Leaf)
		if !isLeaf || l.Disposition == enum.DispositionAttachment {
			return true
		}
		switch {
		case html == nil && l.Is("text", "html"):
			html = l
			return false
		case plain == nil && l.Is("text", "plain"):
			plain = l
		}
		return true
	})

	if html != nil {
		return html, true
	}
	if plain != nil {
		return plain, true
	}
	return nil, false
}
