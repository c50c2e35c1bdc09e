package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"sort"
	"strconv"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/hyperjump/mindline/internal/config"
	"github.com/hyperjump/mindline/internal/connector"
	"github.com/hyperjump/mindline/internal/models"
)

const dialTimeout = 30 * time.Second

// IMAPDialer returns a Dialer that connects with TLS to cfg.Host:cfg.Port and logs in.
func IMAPDialer(cfg config.EmailSourceConfig) Dialer {
	return func(ctx context.Context) (Mailbox, error) {
		addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
		c, err := client.DialWithDialerTLS(&net.Dialer{Timeout: dialTimeout}, addr, &tls.Config{ServerName: cfg.Host})
		if err != nil {
			return nil, connector.Transient(models.SourceEmail, fmt.Errorf("dial %s: %w", addr, err))
		}
		stop := context.AfterFunc(ctx, func() { _ = c.Terminate() })
		defer stop()
		if err := c.Login(cfg.Username, cfg.Password); err != nil {
			_ = c.Logout()
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, connector.Auth(models.SourceEmail, fmt.Errorf("login as %s: %w", cfg.Username, err))
		}
		return &imapMailbox{c: c}, nil
	}
}

type imapMailbox struct {
	c *client.Client
}

func (m *imapMailbox) Messages(ctx context.Context, folder string, since, before time.Time, limit int) ([]Message, error) {
	// go-imap v1 has no context support; closing the connection unblocks it.
	stop := context.AfterFunc(ctx, func() { _ = m.c.Terminate() })
	defer stop()

	msgs, err := m.messages(folder, since, before, limit)
	if ctx.Err() != nil {
		return msgs, ctx.Err()
	}
	if err != nil {
		return msgs, classify(err)
	}
	return msgs, nil
}

func (m *imapMailbox) messages(folder string, since, before time.Time, limit int) ([]Message, error) {
	if _, err := m.c.Select(folder, true); err != nil {
		return nil, fmt.Errorf("select %s: %w", folder, err)
	}
	criteria := imap.NewSearchCriteria()
	criteria.Since = since
	criteria.Before = before
	uids, err := m.c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", folder, err)
	}
	if len(uids) == 0 {
		return nil, nil
	}
	// UIDs grow with arrival, so the highest are the newest.
	sort.Slice(uids, func(i, j int) bool { return uids[i] > uids[j] })
	if limit > 0 && len(uids) > limit {
		uids = uids[:limit]
	}

	seq := new(imap.SeqSet)
	seq.AddNum(uids...)
	section := &imap.BodySectionName{Peek: true}
	fetchItems := []imap.FetchItem{imap.FetchUid, imap.FetchInternalDate, section.FetchItem()}

	ch := make(chan *imap.Message, 16)
	done := make(chan error, 1)
	go func() { done <- m.c.UidFetch(seq, fetchItems, ch) }()

	var out []Message
	for msg := range ch {
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		raw, err := io.ReadAll(body)
		if err != nil {
			continue
		}
		out = append(out, Message{UID: msg.Uid, InternalDate: msg.InternalDate, Raw: raw})
	}
	if err := <-done; err != nil {
		return out, fmt.Errorf("fetch %s: %w", folder, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID > out[j].UID })
	return out, nil
}

func (m *imapMailbox) Close() error {
	return m.c.Logout()
}

// classify marks network failures as transient. Server refusals such as an
// unknown folder are returned as they are and not retried.
func classify(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return connector.Transient(models.SourceEmail, err)
	}
	return err
}
