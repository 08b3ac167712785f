package mailcode

import (
	"context"
	"fmt"
	"sort"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

type ImapConfig struct {
	Address  string // host:port, e.g. "imap.gmail.com:993"
	Username string
	Password string
}

// NewImapDialer returns a Dialer that opens a TLS IMAP session against
// the configured server and selects INBOX.
func NewImapDialer(cfg ImapConfig) Dialer {
	return func(ctx context.Context) (Mailbox, error) {
		client, err := imapclient.DialTLS(cfg.Address, nil)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", cfg.Address, err)
		}

		if err := client.Login(cfg.Username, cfg.Password).Wait(); err != nil {
			client.Close()
			return nil, fmt.Errorf("login: %w", err)
		}
		if _, err := client.Select("INBOX", nil).Wait(); err != nil {
			client.Close()
			return nil, fmt.Errorf("select inbox: %w", err)
		}

		return &imapMailbox{client: client}, nil
	}
}

type imapMailbox struct {
	client *imapclient.Client
}

func (m *imapMailbox) Unseen(ctx context.Context) ([]Message, error) {
	criteria := &imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
	}
	data, err := m.client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("search unseen: %w", err)
	}

	uids := data.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	fetchOptions := &imap.FetchOptions{
		Envelope: true,
		BodySection: []*imap.FetchItemBodySection{
			{Specifier: imap.PartSpecifierText},
		},
	}
	buffers, err := m.client.Fetch(imap.UIDSetNum(uids...), fetchOptions).Collect()
	if err != nil {
		return nil, fmt.Errorf("fetch unseen: %w", err)
	}

	messages := make([]Message, 0, len(buffers))
	for _, buf := range buffers {
		subject := ""
		if buf.Envelope != nil {
			subject = buf.Envelope.Subject
		}
		body := ""
		for _, section := range buf.BodySection {
			body = string(section.Bytes)
			break
		}
		messages = append(messages, Message{
			UID:     uint32(buf.UID),
			Subject: subject,
			Body:    body,
		})
	}

	// newest first
	sort.Slice(messages, func(i, j int) bool {
		return messages[i].UID > messages[j].UID
	})
	return messages, nil
}

func (m *imapMailbox) MarkSeen(ctx context.Context, uid uint32) error {
	flags := &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}
	if err := m.client.Store(imap.UIDSetNum(imap.UID(uid)), flags, nil).Close(); err != nil {
		return fmt.Errorf("store seen flag: %w", err)
	}
	return nil
}

func (m *imapMailbox) Close() error {
	if err := m.client.Logout().Wait(); err != nil {
		return m.client.Close()
	}
	return nil
}
