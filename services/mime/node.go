package mime

import (
	"strconv"
	"strings"

	"github.com/emersion/go-imap"

	"github.com/customeros/mailsync/internal/enum"
)

type Kind int

const (
	KindLeaf Kind = iota
	KindMultipart
)

// Node is one part of a message body structure: either a *Leaf or a *Multipart
type Node interface {
	Kind() Kind
	PartLocator() string
	isNode()
}

// Leaf is a part with downloadable content
type Leaf struct {
	MediaType         string
	SubType           string
	Params            map[string]string
	Encoding          string
	Disposition       enum.AttachmentDisposition
	DispositionParams map[string]string
	ContentID         string
	Size              uint32
	// Locator is the IMAP section path of the part, e.g. "1.2"
	Locator string
}

func (l *Leaf) Kind() Kind          { return KindLeaf }
func (l *Leaf) PartLocator() string { return l.Locator }
func (l *Leaf) isNode()             {}

// ContentType returns "type/subtype", lowercased
func (l *Leaf) ContentType() string {
	if l.MediaType == "" {
		return ""
	}
	return l.MediaType + "/" + l.SubType
}

func (l *Leaf) Charset() string {
	return l.Params["charset"]
}

func (l *Leaf) Is(mediaType, subType string) bool {
	return l.MediaType == mediaType && l.SubType == subType
}

type Multipart struct {
	SubType string
	Parts   []Node
	// Locator is empty for the message root
	Locator string
}

func (m *Multipart) Kind() Kind          { return KindMultipart }
func (m *Multipart) PartLocator() string { return m.Locator }
func (m *Multipart) isNode()             {}

// FromIMAP converts a BODYSTRUCTURE response into a Node tree with IMAP section
// locators. A single part message gets locator "1".
func FromIMAP(bs *imap.BodyStructure) Node {
	if bs == nil {
		return nil
	}
	if isMultipart(bs) {
		return convert(bs, "")
	}
	return convert(bs, "1")
}

func convert(bs *imap.BodyStructure, locator string) Node {
	if isMultipart(bs) {
		mp := &Multipart{
			SubType: strings.ToLower(bs.MIMESubType),
			Locator: locator,
		}
		for i, child := range bs.Parts {
			if child == nil {
				continue
			}
			mp.Parts = append(mp.Parts, convert(child, childLocator(locator, i+1)))
		}
		return mp
	}

	return &Leaf{
		MediaType:         strings.ToLower(bs.MIMEType),
		SubType:           strings.ToLower(bs.MIMESubType),
		Params:            lowerKeys(bs.Params),
		Encoding:          strings.ToLower(strings.TrimSpace(bs.Encoding)),
		Disposition:       enum.AttachmentDisposition(strings.ToLower(bs.Disposition)),
		DispositionParams: lowerKeys(bs.DispositionParams),
		ContentID:         strings.Trim(strings.TrimSpace(bs.Id), "<>"),
		Size:              bs.Size,
		Locator:           locator,
	}
}

func isMultipart(bs *imap.BodyStructure) bool {
	return strings.EqualFold(bs.MIMEType, "multipart")
}

func childLocator(parent string, n int) string {
	if parent == "" {
		return strconv.Itoa(n)
	}
	return parent + "." + strconv.Itoa(n)
}

func lowerKeys(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[strings.ToLower(k)] = v
	}
	return out
}

// Walk visits the tree depth first, in part order. Returning false stops the walk.
func Walk(root Node, fn func(n Node) bool) bool {
	if root == nil {
		return true
	}
	if !fn(root) {
		return false
	}
	if mp, ok := root.(*Multipart); ok {
		for _, child := range mp.Parts {
			if !Walk(child, fn) {
				return false
			}
		}
	}
	return true
}

// FindLeaf returns the leaf with the given locator
func FindLeaf(root Node, locator string) (*Leaf, bool) {
	var found *Leaf
	Walk(root, func(n Node) bool {
		if leaf, ok := n.(*Leaf); ok && leaf.Locator == locator {
			found = leaf
			return false
		}
		return true
	})
	return found, found != nil
}
