package imap

import (
	"context"
	"strings"
	"testing"

	"github.com/emersion/go-imap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envelopeFields(subject string, from []interface{}) []interface{} {
	return []interface{}{
		"Mon, 03 Jun 2024 10:00:00 +0000",
		subject,
		[]interface{}{from},
		nil, nil,
		[]interface{}{[]interface{}{nil, nil, "support", "shop.test"}},
		nil, nil,
		nil,
		"<m1@shop.test>",
	}
}

func TestParseEnvelope_DecodesEncodedWords(t *testing.T) {
	cases := []struct {
		name     string
		subject  string
		from     []interface{}
		want     string
		wantName string
	}{
		{
			name:     "windows-1252",
			subject:  "=?windows-1252?Q?Re:_Bestelling_=231234_caf=E9?=",
			from:     []interface{}{"=?windows-1252?Q?Ren=E9_Koster?=", nil, "rene", "example.nl"},
			want:     "Re: Bestelling #1234 café",
			wantName: "René Koster",
		},
		{
			name:     "iso-8859-2",
			subject:  "=?iso-8859-2?Q?Re:_Zam=F3wienie_=23551?=",
			from:     []interface{}{"=?iso-8859-2?Q?Pawe=B3?=", nil, "pawel", "example.pl"},
			want:     "Re: Zamówienie #551",
			wantName: "Paweł",
		},
		{
			name:     "utf-8 base64",
			subject:  "=?utf-8?B?UmU6IEJlc3RlbGx1bmcgIzQyIMO8YmVy?=",
			from:     []interface{}{nil, nil, "jan", "example.de"},
			want:     "Re: Bestellung #42 über",
			wantName: "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := &imap.Envelope{}
			require.NoError(t, env.Parse(envelopeFields(tc.subject, tc.from)))

			parsed := parseEnvelope(env, nil, nil)
			assert.Equal(t, tc.want, parsed.Subject)
			assert.Equal(t, tc.wantName, parsed.FromName)
			assert.Equal(t, "m1@shop.test", parsed.MessageID)
			assert.True(t, parsed.Unread)
		})
	}
}

func TestSession_FetchMessagesDecodesLegacyCharsetSubject(t *testing.T) {
	ts := newTestServer(t)
	ts.appendMessages(t, "Orders", strings.Replace(plainMessage,
		"Subject: Re: Order #8891",
		"Subject: =?windows-1252?Q?Re:_Bestelling_=238891_caf=E9?=", 1))
	sess := dialTestSession(t, ts)
	ctx := context.Background()

	_, err := sess.SelectFolder(ctx, "Orders")
	require.NoError(t, err)

	msgs, err := sess.FetchMessages(ctx, []uint32{1})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Re: Bestelling #8891 café", msgs[0].Envelope.Subject)
}
