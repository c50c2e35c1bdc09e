package email

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/hyperjump/mindline/internal/models"
)

// parseMessage turns a raw message into a RawItem. The plain text part is
// preferred over HTML; any attachment sets has_attachments.
func parseMessage(m Message, folder string) (models.RawItem, error) {
	mr, err := mail.CreateReader(bytes.NewReader(m.Raw))
	if err != nil {
		return models.RawItem{}, fmt.Errorf("read message: %w", err)
	}
	defer mr.Close()
	h := mr.Header

	var (
		plain, html    string
		hasAttachments bool
	)
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Keep what was read; a broken trailing part does not void the message.
			if plain == "" && html == "" {
				return models.RawItem{}, fmt.Errorf("read part: %w", err)
			}
			break
		}
		switch ph := p.Header.(type) {
		case *mail.InlineHeader:
			ct, _, _ := ph.ContentType()
			body, err := io.ReadAll(p.Body)
			if err != nil {
				continue
			}
			switch {
			case ct == "text/plain" && plain == "":
				plain = string(body)
			case ct == "text/html" && html == "":
				html = string(body)
			}
		case *mail.AttachmentHeader:
			hasAttachments = true
		}
	}

	item := models.RawItem{Source: models.SourceEmail, Fields: map[string]string{}, Lists: map[string][]string{}}
	switch {
	case strings.TrimSpace(plain) != "":
		item.Body, item.Format = plain, models.FormatPlain
	case html != "":
		item.Body, item.Format = html, models.FormatHTML
	}

	date, err := h.Date()
	if err != nil || date.IsZero() {
		date = m.InternalDate
	}
	if date.IsZero() {
		return models.RawItem{}, fmt.Errorf("message %d has no date", m.UID)
	}
	item.Timestamp = date.UTC().Format(time.RFC3339Nano)

	item.Title, _ = h.Subject()
	msgID, _ := h.MessageID()
	if msgID != "" {
		item.NativeID = "<" + msgID + ">"
	} else {
		item.NativeID = folder + "/" + strconv.FormatUint(uint64(m.UID), 10)
	}

	item.Fields[models.FieldFolder] = folder
	item.Fields[models.FieldMessageID] = msgID
	item.Fields[models.FieldHasAttachments] = strconv.FormatBool(hasAttachments)
	if from := addresses(h, "From"); len(from) > 0 {
		item.Fields[models.FieldFrom] = from[0]
	}
	item.Lists[models.ListTo] = addresses(h, "To")
	item.Lists[models.ListCc] = addresses(h, "Cc")
	return item, nil
}

// addresses renders an address header as "Name <addr>" or "addr" entries.
// Headers that do not parse as address lists are kept as decoded text.
func addresses(h mail.Header, key string) []string {
	list, err := h.AddressList(key)
	if err != nil {
		raw, _ := h.Text(key)
		if raw = strings.TrimSpace(raw); raw != "" {
			return []string{raw}
		}
		return nil
	}
	out := make([]string, 0, len(list))
	for _, a := range list {
		if a.Name != "" {
			out = append(out, a.Name+" <"+a.Address+">")
			continue
		}
		out = append(out, a.Address)
	}
	return out
}
