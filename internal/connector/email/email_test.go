package email

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/mindline/internal/config"
	"github.com/hyperjump/mindline/internal/connector"
	"github.com/hyperjump/mindline/internal/models"
)

type fakeMailbox struct {
	folders map[string][]Message
	fail    map[string]error
	closed  bool
}

func (f *fakeMailbox) Messages(ctx context.Context, folder string, since, before time.Time, limit int) ([]Message, error) {
	if err := f.fail[folder]; err != nil {
		return nil, err
	}
	msgs := f.folders[folder]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

func (f *fakeMailbox) Close() error {
	f.closed = true
	return nil
}

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

var plainMessage = crlf(`From: Ana Diaz <ana@example.com>
To: bob@example.com, Carol <carol@example.com>
Cc: team@example.com
Subject: Invoice for March
Date: Tue, 12 Mar 2024 10:30:00 +0000
Message-ID: <abc123@example.com>
Content-Type: text/plain; charset=utf-8

Please find the invoice details below.
`)

var multipartMessage = crlf(`From: billing@example.com
To: bob@example.com
Subject: =?utf-8?q?Re=C3=A7u?=
Date: Tue, 12 Mar 2024 08:00:00 +0000
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="XX"

--XX
Content-Type: multipart/alternative; boundary="YY"

--YY
Content-Type: text/html; charset=utf-8

<p>Receipt <b>attached</b></p>
--YY
Content-Type: text/plain; charset=utf-8

Receipt attached
--YY--
--XX
Content-Type: application/pdf
Content-Disposition: attachment; filename="receipt.pdf"

JVBERi0=
--XX--
`)

var htmlOnlyMessage = crlf(`From: news@example.com
Subject: Weekly digest
Date: Mon, 11 Mar 2024 09:00:00 +0000
Content-Type: text/html; charset=utf-8

<h1>Digest</h1>
`)

func TestParseMessage_plain(t *testing.T) {
	item, err := parseMessage(Message{UID: 7, Raw: plainMessage}, "INBOX")
	require.NoError(t, err)

	assert.Equal(t, models.SourceEmail, item.Source)
	assert.Equal(t, "<abc123@example.com>", item.NativeID)
	assert.Equal(t, "Invoice for March", item.Title)
	assert.Equal(t, "2024-03-12T10:30:00Z", item.Timestamp)
	assert.Equal(t, models.FormatPlain, item.Format)
	assert.Contains(t, item.Body, "invoice details")
	assert.Equal(t, "Ana Diaz <ana@example.com>", item.Fields[models.FieldFrom])
	assert.Equal(t, "false", item.Fields[models.FieldHasAttachments])
	assert.Equal(t, "INBOX", item.Fields[models.FieldFolder])
	assert.Equal(t, []string{"bob@example.com", "Carol <carol@example.com>"}, item.Lists[models.ListTo])
	assert.Equal(t, []string{"team@example.com"}, item.Lists[models.ListCc])
}

func TestParseMessage_multipartPrefersPlain(t *testing.T) {
	item, err := parseMessage(Message{UID: 9, Raw: multipartMessage}, "INBOX")
	require.NoError(t, err)

	assert.Equal(t, "Reçu", item.Title)
	assert.Equal(t, models.FormatPlain, item.Format)
	assert.Equal(t, "Receipt attached", strings.TrimSpace(item.Body))
	assert.Equal(t, "true", item.Fields[models.FieldHasAttachments])
	assert.Equal(t, "INBOX/9", item.NativeID, "no Message-ID falls back to folder/uid")
}

func TestParseMessage_htmlOnly(t *testing.T) {
	item, err := parseMessage(Message{UID: 1, Raw: htmlOnlyMessage}, "News")
	require.NoError(t, err)
	assert.Equal(t, models.FormatHTML, item.Format)
	assert.Contains(t, item.Body, "<h1>Digest</h1>")
}

func TestParseMessage_missingDateUsesInternalDate(t *testing.T) {
	raw := crlf("From: a@example.com\nSubject: x\n\nbody\n")
	internal := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	item, err := parseMessage(Message{UID: 2, Raw: raw, InternalDate: internal}, "INBOX")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01T12:00:00Z", item.Timestamp)

	_, err = parseMessage(Message{UID: 3, Raw: raw}, "INBOX")
	assert.Error(t, err)
}

func newTestConnector(mb *fakeMailbox, dialErr error, folders ...string) *Connector {
	cfg := config.EmailSourceConfig{Enabled: true, Host: "imap.example.com", Port: 993, Username: "bob", Folders: folders}
	return New(cfg,
		WithDialer(func(ctx context.Context) (Mailbox, error) {
			if dialErr != nil {
				return nil, dialErr
			}
			return mb, nil
		}),
		WithRetryPolicy(connector.RetryPolicy{Attempts: 2, InitialInterval: time.Millisecond}),
	)
}

func TestConnector_Fetch(t *testing.T) {
	mb := &fakeMailbox{folders: map[string][]Message{
		"INBOX": {
			{UID: 2, Raw: plainMessage},
			{UID: 1, Raw: htmlOnlyMessage},
			{UID: 3, Raw: []byte("not a message")},
		},
	}}
	c := newTestConnector(mb, nil)
	assert.Equal(t, models.SourceEmail, c.Source())

	start := time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 12, 23, 59, 59, 0, time.UTC)
	items, err := c.Fetch(context.Background(), start, end)
	require.NoError(t, err)
	require.Len(t, items, 1, "the digest from the 11th is outside the window")
	assert.Equal(t, "Invoice for March", items[0].Title)
	assert.True(t, mb.closed)
}

func TestConnector_Fetch_newestFirstAcrossFolders(t *testing.T) {
	mb := &fakeMailbox{folders: map[string][]Message{
		"INBOX":   {{UID: 1, Raw: multipartMessage}},
		"Archive": {{UID: 1, Raw: plainMessage}},
	}}
	c := newTestConnector(mb, nil, "INBOX", "Archive")
	items, err := c.Fetch(context.Background(), time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Invoice for March", items[0].Title)
	assert.Equal(t, "Archive", items[0].Fields[models.FieldFolder])
}

func TestConnector_Fetch_folderFailureKeepsOthers(t *testing.T) {
	mb := &fakeMailbox{
		folders: map[string][]Message{"INBOX": {{UID: 1, Raw: plainMessage}}},
		fail:    map[string]error{"Missing": errors.New("NO no such mailbox")},
	}
	c := newTestConnector(mb, nil, "Missing", "INBOX")
	items, err := c.Fetch(context.Background(), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC))
	assert.Len(t, items, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Missing")
}

func TestConnector_Fetch_authFailure(t *testing.T) {
	c := newTestConnector(nil, connector.Auth(models.SourceEmail, errors.New("invalid credentials")))
	items, err := c.Fetch(context.Background(), time.Time{}, time.Now())
	assert.Empty(t, items)
	assert.True(t, connector.IsAuthentication(err))
}

func TestConnector_Fetch_transientDialIsRetried(t *testing.T) {
	mb := &fakeMailbox{folders: map[string][]Message{"INBOX": {{UID: 1, Raw: plainMessage}}}}
	calls := 0
	cfg := config.EmailSourceConfig{Host: "imap.example.com", Port: 993}
	c := New(cfg,
		WithDialer(func(ctx context.Context) (Mailbox, error) {
			calls++
			if calls == 1 {
				return nil, connector.Transient(models.SourceEmail, errors.New("connection reset"))
			}
			return mb, nil
		}),
		WithRetryPolicy(connector.RetryPolicy{Attempts: 3, InitialInterval: time.Millisecond}),
	)
	items, err := c.Fetch(context.Background(), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 2, calls)
}
