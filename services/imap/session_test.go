package imap

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/emersion/go-imap/backend/memory"
	imapclient "github.com/emersion/go-imap/client"
	"github.com/emersion/go-imap/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/services/mime"
)

const plainMessage = "Message-ID: <reply-1@shop.test>\r\n" +
	"Date: Mon, 03 Jun 2024 10:00:00 +0000\r\n" +
	"From: \"Jane Buyer\" <Jane.Buyer@Example.com>\r\n" +
	"To: support@shop.test\r\n" +
	"Subject: Re: Order #8891\r\n" +
	"In-Reply-To: <root-1@shop.test>\r\n" +
	"References: <root-1@shop.test> <mid-1@shop.test>\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Where is my parcel?\r\n"

const multipartMessage = "Message-ID: <return-1@shop.test>\r\n" +
	"Date: Tue, 04 Jun 2024 10:00:00 +0000\r\n" +
	"From: jane.buyer@example.com\r\n" +
	"To: support@shop.test\r\n" +
	"Subject: Return request #8891\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=\"b1\"\r\n" +
	"\r\n" +
	"--b1\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Item arrived damaged.\r\n" +
	"--b1\r\n" +
	"Content-Type: image/jpeg; name=\"damage.jpg\"\r\n" +
	"Content-Disposition: attachment; filename=\"damage.jpg\"\r\n" +
	"Content-Transfer-Encoding: base64\r\n" +
	"\r\n" +
	"/9j/4AAQSkZJRg==\r\n" +
	"--b1--\r\n"

type testServer struct {
	addr   string
	server *server.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return startTestServer(t, nil)
}

// newStallingTestServer swallows the first stalls commands containing marker, the
// client sees a server that never answers them
func newStallingTestServer(t *testing.T, marker string, stalls int32) *testServer {
	t.Helper()
	return startTestServer(t, func(l net.Listener) net.Listener {
		sl := &stallListener{Listener: l, marker: []byte(marker)}
		sl.remaining.Store(stalls)
		return sl
	})
}

func startTestServer(t *testing.T, wrap func(net.Listener) net.Listener) *testServer {
	t.Helper()

	s := server.New(memory.New())
	s.AllowInsecureAuth = true

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	if wrap != nil {
		listener = wrap(listener)
	}

	go func() {
		_ = s.Serve(listener)
	}()
	t.Cleanup(func() { _ = s.Close() })

	return &testServer{addr: listener.Addr().String(), server: s}
}

type stallListener struct {
	net.Listener
	marker    []byte
	remaining atomic.Int32
}

func (l *stallListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	return &stallConn{Conn: conn, listener: l}, nil
}

type stallConn struct {
	net.Conn
	listener *stallListener
}

func (c *stallConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	if n > 0 && bytes.Contains(p[:n], c.listener.marker) && c.listener.remaining.Add(-1) >= 0 {
		// drop the command and everything after it until the client hangs up
		for {
			if _, err := c.Conn.Read(p); err != nil {
				return 0, err
			}
		}
	}
	return n, err
}

func (ts *testServer) mailbox(t *testing.T, password string) *models.Mailbox {
	host, port, err := net.SplitHostPort(ts.addr)
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)

	return &models.Mailbox{
		ID:           "mbox_test",
		ImapServer:   host,
		ImapPort:     p,
		ImapUsername: "username",
		ImapPassword: password,
		ImapSecurity: enum.EmailSecurityNone,
	}
}

func (ts *testServer) appendMessages(t *testing.T, folder string, bodies ...string) {
	t.Helper()

	c, err := imapclient.Dial(ts.addr)
	require.NoError(t, err)
	defer func() { _ = c.Logout() }()
	require.NoError(t, c.Login("username", "password"))

	if folder != "INBOX" {
		require.NoError(t, c.Create(folder))
	}
	for _, body := range bodies {
		require.NoError(t, c.Append(folder, nil, time.Now(), strings.NewReader(body)))
	}
}

func dialTestSession(t *testing.T, ts *testServer) *session {
	t.Helper()

	sess, err := NewDialer(logger.NewNopLogger(), 5*time.Second).Dial(context.Background(), ts.mailbox(t, "password"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Logout() })

	return sess.(*session)
}

func TestSession_SearchAndFetch(t *testing.T) {
	ts := newTestServer(t)
	ts.appendMessages(t, "Orders", plainMessage, multipartMessage)
	sess := dialTestSession(t, ts)
	ctx := context.Background()

	info, err := sess.SelectFolder(ctx, "Orders")
	require.NoError(t, err)
	assert.Equal(t, uint32(2), info.Messages)

	uids, err := sess.SearchUIDsSince(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 2}, uids)

	uids, err = sess.SearchUIDsSince(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint32{2}, uids)

	// n:* matches the highest UID even when n is past it
	uids, err = sess.SearchUIDsSince(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, uids)

	last, err := sess.LastUIDs(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint32{2}, last)

	last, err = sess.LastUIDs(ctx, 50)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 2}, last)

	msgs, err := sess.FetchMessages(ctx, []uint32{2, 1})
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	reply := msgs[0]
	assert.Equal(t, uint32(1), reply.Ref.UID)
	assert.Equal(t, "Orders", reply.Ref.Folder)
	assert.Equal(t, "mbox_test", reply.Ref.MailboxID)
	assert.Equal(t, "reply-1@shop.test", reply.Ref.MessageID)
	assert.Equal(t, "Re: Order #8891", reply.Envelope.Subject)
	assert.Equal(t, "jane.buyer@example.com", reply.Envelope.From)
	assert.Equal(t, "Jane Buyer", reply.Envelope.FromName)
	assert.Equal(t, []string{"support@shop.test"}, reply.Envelope.To)
	assert.Equal(t, "root-1@shop.test", reply.Envelope.InReplyTo)
	assert.Equal(t, []string{"root-1@shop.test", "mid-1@shop.test"}, reply.Envelope.References)
	assert.True(t, reply.Envelope.Unread)
	require.NotNil(t, reply.Structure)
	assert.Equal(t, mime.KindLeaf, reply.Structure.Kind())

	withAttachment := msgs[1]
	require.NotNil(t, withAttachment.Structure)
	assert.Equal(t, mime.KindMultipart, withAttachment.Structure.Kind())
	attachments := mime.ExtractAttachments(withAttachment.Structure)
	require.Len(t, attachments, 1)
	assert.Equal(t, "damage.jpg", attachments[0].Filename)
	assert.Equal(t, "2", attachments[0].Locator)

	part, err := sess.FetchPart(ctx, 2, "1", 5*time.Second)
	require.NoError(t, err)
	assert.Contains(t, string(part), "Item arrived damaged.")

	raw, err := sess.FetchRaw(ctx, 1, 5*time.Second)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Subject: Re: Order #8891")
}

func TestSession_FetchPartMissingMessage(t *testing.T) {
	ts := newTestServer(t)
	ts.appendMessages(t, "Orders", plainMessage)
	sess := dialTestSession(t, ts)
	ctx := context.Background()

	_, err := sess.SelectFolder(ctx, "Orders")
	require.NoError(t, err)

	_, err = sess.FetchPart(ctx, 99, "1", 5*time.Second)
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestSession_RequiresSelectedFolder(t *testing.T) {
	ts := newTestServer(t)
	sess := dialTestSession(t, ts)

	_, err := sess.SearchUIDsSince(context.Background(), 0)
	assert.ErrorIs(t, err, ErrNoFolderSelected)

	_, err = sess.FetchRaw(context.Background(), 1, time.Second)
	assert.ErrorIs(t, err, ErrNoFolderSelected)
}

func TestSession_CanceledContext(t *testing.T) {
	ts := newTestServer(t)
	sess := dialTestSession(t, ts)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sess.SelectFolder(ctx, "INBOX")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDialer_LoginFailure(t *testing.T) {
	ts := newTestServer(t)

	_, err := NewDialer(logger.NewNopLogger(), 5*time.Second).Dial(context.Background(), ts.mailbox(t, "wrong"))
	require.Error(t, err)
	assert.True(t, IsFatalSessionError(err))
}

func TestDialer_MissingCredentials(t *testing.T) {
	_, err := NewDialer(logger.NewNopLogger(), time.Second).Dial(context.Background(), &models.Mailbox{ID: "mbox_x"})
	require.Error(t, err)
}

func TestSession_PartTimeoutReconnects(t *testing.T) {
	ts := newStallingTestServer(t, "BODY.PEEK[1]", 1)
	ts.appendMessages(t, "Orders", plainMessage, multipartMessage)
	sess := dialTestSession(t, ts)
	ctx := context.Background()

	info, err := sess.SelectFolder(ctx, "Orders")
	require.NoError(t, err)

	_, err = sess.FetchPart(ctx, 2, "1", 300*time.Millisecond)
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
	assert.False(t, IsFatalSessionError(err))
	var timeoutErr *CommandTimeoutError
	assert.True(t, errors.As(err, &timeoutErr))

	// same session, same folder, new connection
	assert.Equal(t, "Orders", sess.folder)
	assert.Equal(t, info.UIDValidity, sess.uidValidity)

	part, err := sess.FetchPart(ctx, 2, "1", 5*time.Second)
	require.NoError(t, err)
	assert.Contains(t, string(part), "Item arrived damaged.")

	uids, err := sess.SearchUIDsSince(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 2}, uids)
}

func TestSession_PartTimeoutWithoutReconnectIsFatal(t *testing.T) {
	ts := newStallingTestServer(t, "BODY.PEEK[1]", 1)
	ts.appendMessages(t, "Orders", multipartMessage)
	sess := dialTestSession(t, ts)
	ctx := context.Background()

	_, err := sess.SelectFolder(ctx, "Orders")
	require.NoError(t, err)

	sess.redial = func(context.Context) (*imapclient.Client, error) {
		return nil, errors.New("connection error: connection refused")
	}

	_, err = sess.FetchPart(ctx, 1, "1", 300*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionLost)
	assert.True(t, IsFatalSessionError(err))
}

func TestResolver_StalledPartLeavesSessionUsable(t *testing.T) {
	ts := newStallingTestServer(t, "BODY.PEEK[1]", 2)
	ts.appendMessages(t, "Orders", multipartMessage, plainMessage)
	sess := dialTestSession(t, ts)
	ctx := context.Background()

	_, err := sess.SelectFolder(ctx, "Orders")
	require.NoError(t, err)
	msgs, err := sess.FetchMessages(ctx, []uint32{1, 2})
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	resolver := mime.NewResolver(logger.NewNopLogger(), mime.ResolverConfig{
		Attempts: 2,
		Delay:    10 * time.Millisecond,
		IsFatal:  IsFatalSessionError,
	})

	stalled := resolver.Resolve(ctx, sess, 1, msgs[0].Structure, 300*time.Millisecond)
	assert.True(t, stalled.Found)
	assert.True(t, stalled.Unavailable)
	assert.NoError(t, stalled.ConnErr)

	next := resolver.Resolve(ctx, sess, 2, msgs[1].Structure, 5*time.Second)
	assert.False(t, next.Unavailable)
	assert.NoError(t, next.ConnErr)
	assert.Contains(t, next.Text, "Where is my parcel?")
}
