package mime

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/retry"
)

// PartFetcher downloads the bytes of one body part. Implementations apply timeout
// to the single download.
type PartFetcher interface {
	FetchPart(ctx context.Context, uid uint32, locator string, timeout time.Duration) ([]byte, error)
}

// RawFetcher downloads a whole message
type RawFetcher interface {
	FetchRaw(ctx context.Context, uid uint32, timeout time.Duration) ([]byte, error)
}

// DecodedBody is the preferred text representation of a message
type DecodedBody struct {
	Text        string
	ContentType string
	// Found is false when the message has no text part
	Found bool
	// Unavailable marks a text part that could not be downloaded or decoded
	Unavailable bool
	Failure     string
	// ConnErr is set when the session failed while fetching; the caller must stop using it
	ConnErr error
}

func (b DecodedBody) IsHTML() bool {
	return b.ContentType == "text/html"
}

// PlainText returns the body as plain text, converting HTML
func (b DecodedBody) PlainText() string {
	if b.IsHTML() {
		return HTMLToText(b.Text)
	}
	return b.Text
}

type ResolverConfig struct {
	Attempts int
	Delay    time.Duration
	// IsFatal tells session failures apart from errors worth retrying
	IsFatal func(error) bool
}

type Resolver struct {
	log logger.Logger
	cfg ResolverConfig
}

func NewResolver(log logger.Logger, cfg ResolverConfig) *Resolver {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	if cfg.IsFatal == nil {
		cfg.IsFatal = func(error) bool { return false }
	}
	return &Resolver{log: log, cfg: cfg}
}

// Resolve downloads and decodes the preferred text part of the message. It never
// returns an error: failures are reported on the result and leave the body empty.
func (r *Resolver) Resolve(ctx context.Context, fetcher PartFetcher, uid uint32, root Node, timeout time.Duration) DecodedBody {
	leaf, ok := SelectTextPart(root)
	if !ok {
		return DecodedBody{}
	}

	body := DecodedBody{Found: true, ContentType: leaf.ContentType()}
	var text string
	var fatal error

	err := retry.DoNotify(ctx, r.cfg.Attempts, r.cfg.Delay, func(attempt int) error {
		raw, err := fetcher.FetchPart(ctx, uid, leaf.Locator, timeout)
		if err != nil {
			if r.cfg.IsFatal(err) {
				fatal = err
				return retry.Permanent(err)
			}
			return errors.Wrapf(err, "fetch part %s", leaf.Locator)
		}

		text, err = DecodePart(leaf, raw)
		if errors.Is(err, ErrUnknownEncoding) {
			return retry.Permanent(err)
		}
		return err
	}, func(err error, next time.Duration) {
		r.log.Warnf("uid %d: body part %s failed, retrying in %v: %v", uid, leaf.Locator, next, err)
	})

	if err != nil {
		body.Unavailable = true
		body.Failure = err.Error()
		body.ConnErr = fatal
		return body
	}

	body.Text = text
	return body
}

// ResolveRaw is used when the server returned no body structure: the whole message
// is downloaded once and parsed locally.
func (r *Resolver) ResolveRaw(ctx context.Context, fetcher RawFetcher, uid uint32, timeout time.Duration) (DecodedBody, []AttachmentMeta) {
	var parsed *RawMessage
	var fatal error

	err := retry.Do(ctx, r.cfg.Attempts, r.cfg.Delay, func(attempt int) error {
		raw, err := fetcher.FetchRaw(ctx, uid, timeout)
		if err != nil {
			if r.cfg.IsFatal(err) {
				fatal = err
				return retry.Permanent(err)
			}
			return err
		}
		parsed, err = ParseRaw(raw)
		if err != nil {
			return retry.Permanent(err)
		}
		return nil
	})

	if err != nil {
		return DecodedBody{Found: true, Unavailable: true, Failure: err.Error(), ConnErr: fatal}, nil
	}
	return parsed.Body, parsed.Attachments
}
