// Package mailcode retrieves the portal's out-of-band login verification
// code from a mailbox.
//
// The portal mails a 6-digit code after the credential step of a 2FA
// login. Delivery is slow and flaky, so retrieval is a polling loop: wait
// for the mail to land, then scan unread messages newest-first until the
// marker subject shows up.
package mailcode

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"
)

// ErrNoCode means every attempt was exhausted without finding a code.
// Recoverable for this package, but the login flow treats it as a hard
// failure of the attempt.
var ErrNoCode = errors.New("mailcode: verification code not found")

// case-insensitive subject marker of the portal's verification mail
const subjectMarker = "validação de login"

var codePattern = regexp.MustCompile(`\b\d{6}\b`)

type Message struct {
	UID     uint32
	Subject string
	Body    string
}

// Mailbox is one connected mailbox session. Unseen returns unread
// messages newest-first.
type Mailbox interface {
	Unseen(ctx context.Context) ([]Message, error)
	MarkSeen(ctx context.Context, uid uint32) error
	Close() error
}

// Dialer opens a fresh mailbox session. A new session per attempt keeps a
// dropped connection from poisoning the whole retry loop.
type Dialer func(ctx context.Context) (Mailbox, error)

type Options struct {
	SettleDelay  time.Duration // wait before the first attempt, default 20s
	MaxAttempts  int           // default 6
	AttemptDelay time.Duration // wait between attempts, default 8s
}

func (o *Options) fillDefaults() {
	if o.SettleDelay == 0 {
		o.SettleDelay = 20 * time.Second
	}
	if o.MaxAttempts == 0 {
		o.MaxAttempts = 6
	}
	if o.AttemptDelay == 0 {
		o.AttemptDelay = 8 * time.Second
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Fetch polls the mailbox for the verification code. The matched message
// is marked seen so a later login does not pick up a stale code.
func Fetch(ctx context.Context, dial Dialer, opts Options) (string, error) {
	opts.fillDefaults()

	slog.InfoContext(ctx, "waiting for verification mail to land", "settle_delay", opts.SettleDelay)
	if err := sleep(ctx, opts.SettleDelay); err != nil {
		return "", err
	}

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		code, err := scanOnce(ctx, dial)
		if err != nil {
			slog.WarnContext(ctx, "mailbox scan failed", "attempt", attempt, "err", err)
		} else if code != "" {
			slog.InfoContext(ctx, "verification code found", "attempt", attempt)
			return code, nil
		}

		if attempt < opts.MaxAttempts {
			slog.InfoContext(ctx, "code not found yet, retrying", "attempt", attempt, "delay", opts.AttemptDelay)
			if err := sleep(ctx, opts.AttemptDelay); err != nil {
				return "", err
			}
		}
	}

	return "", ErrNoCode
}

func scanOnce(ctx context.Context, dial Dialer) (string, error) {
	mb, err := dial(ctx)
	if err != nil {
		return "", err
	}
	defer mb.Close()

	messages, err := mb.Unseen(ctx)
	if err != nil {
		return "", err
	}

	for _, msg := range messages {
		if !strings.Contains(strings.ToLower(msg.Subject), subjectMarker) {
			continue
		}

		code := codePattern.FindString(msg.Body)
		if code == "" {
			slog.WarnContext(ctx, "verification mail has no extractable code", "uid", msg.UID)
			continue
		}

		if err := mb.MarkSeen(ctx, msg.UID); err != nil {
			slog.WarnContext(ctx, "failed to mark verification mail seen", "uid", msg.UID, "err", err)
		}
		return code, nil
	}

	return "", nil
}
