package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-imap/client"
	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/errors"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
)

type Dialer struct {
	log            logger.Logger
	connectTimeout time.Duration
	// TLSConfig overrides the default TLS settings, tests use it for self signed servers
	TLSConfig *tls.Config
}

func NewDialer(log logger.Logger, connectTimeout time.Duration) *Dialer {
	if connectTimeout <= 0 {
		connectTimeout = 30 * time.Second
	}
	return &Dialer{log: log, connectTimeout: connectTimeout}
}

// Dial connects and logs in to the mailbox's IMAP server
func (d *Dialer) Dial(ctx context.Context, mailbox *models.Mailbox) (interfaces.MailSession, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Dialer.Dial")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagComponentImap(span)
	tracing.TagMailbox(span, mailbox.ID, "")
	span.LogFields(
		tracingLog.String("server", mailbox.ImapServer),
		tracingLog.Int("port", mailbox.ImapPort),
		tracingLog.String("security", mailbox.ImapSecurity.String()),
	)

	if !mailbox.HasCredentials() {
		tracing.TraceErr(span, errors.ErrMissingCredentials)
		return nil, errors.ErrMissingCredentials
	}

	c, err := d.connect(ctx, mailbox)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	d.log.Infof("[%s] Connected to %s:%d", mailbox.ID, mailbox.ImapServer, mailbox.ImapPort)
	s := newSession(c, mailbox.ID, d.log)
	settings := *mailbox
	s.redial = func(ctx context.Context) (*client.Client, error) {
		return d.connect(ctx, &settings)
	}
	return s, nil
}

// connect opens a logged in connection, no folder selected
func (d *Dialer) connect(ctx context.Context, mailbox *models.Mailbox) (*client.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	serverAddr := fmt.Sprintf("%s:%d", mailbox.ImapServer, mailbox.ImapPort)
	dialer := &net.Dialer{
		Timeout:   d.connectTimeout,
		KeepAlive: 30 * time.Second,
	}
	if deadline, ok := ctx.Deadline(); ok {
		dialer.Deadline = deadline
	}

	var c *client.Client
	var err error
	switch mailbox.ImapSecurity {
	case enum.EmailSecurityTLS:
		c, err = client.DialWithDialerTLS(dialer, serverAddr, d.tlsConfig(mailbox.ImapServer))
	default:
		c, err = client.DialWithDialer(dialer, serverAddr)
	}
	if err != nil {
		return nil, fmt.Errorf("connection error: %w", err)
	}

	c.Timeout = d.connectTimeout

	if mailbox.ImapSecurity == enum.EmailSecurityStartTLS {
		if err = c.StartTLS(d.tlsConfig(mailbox.ImapServer)); err != nil {
			_ = c.Logout()
			return nil, fmt.Errorf("starttls error: %w", err)
		}
	}

	if err = c.Login(mailbox.ImapUsername, mailbox.ImapPassword); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("login error: %w", err)
	}

	c.Timeout = 0
	return c, nil
}

func (d *Dialer) tlsConfig(serverName string) *tls.Config {
	if d.TLSConfig != nil {
		cfg := d.TLSConfig.Clone()
		if cfg.ServerName == "" {
			cfg.ServerName = serverName
		}
		return cfg
	}
	return &tls.Config{ServerName: serverName}
}
