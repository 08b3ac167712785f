package mailcode

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeMailbox struct {
	messages   []Message
	seen       []uint32
	unseenErrs int // Unseen calls to fail before succeeding
	closed     bool
}

func (f *fakeMailbox) Unseen(ctx context.Context) ([]Message, error) {
	if f.unseenErrs > 0 {
		f.unseenErrs--
		return nil, fmt.Errorf("mailbox has gone away")
	}
	return f.messages, nil
}

func (f *fakeMailbox) MarkSeen(ctx context.Context, uid uint32) error {
	f.seen = append(f.seen, uid)
	return nil
}

func (f *fakeMailbox) Close() error {
	f.closed = true
	return nil
}

func fastOptions() Options {
	return Options{
		SettleDelay:  time.Millisecond,
		MaxAttempts:  3,
		AttemptDelay: time.Millisecond,
	}
}

func dialerFor(mb Mailbox, err error) Dialer {
	return func(ctx context.Context) (Mailbox, error) {
		return mb, err
	}
}

func TestFetchFindsCode(t *testing.T) {
	mb := &fakeMailbox{messages: []Message{
		{UID: 9, Subject: "Portal e-SAJ - Validação de login", Body: "Seu código de acesso é 123456."},
		{UID: 3, Subject: "newsletter", Body: "654321"},
	}}

	code, err := Fetch(context.Background(), dialerFor(mb, nil), fastOptions())
	require.NoError(t, err)
	require.Equal(t, "123456", code)
	require.Equal(t, []uint32{9}, mb.seen)
	require.True(t, mb.closed)
}

func TestFetchSkipsUnrelatedSubjects(t *testing.T) {
	mb := &fakeMailbox{messages: []Message{
		{UID: 2, Subject: "promoção imperdível", Body: "987654"},
	}}

	_, err := Fetch(context.Background(), dialerFor(mb, nil), fastOptions())
	require.ErrorIs(t, err, ErrNoCode)
	require.Empty(t, mb.seen)
}

// a matching subject without a 6-digit token keeps scanning
func TestFetchRequiresStandaloneCode(t *testing.T) {
	mb := &fakeMailbox{messages: []Message{
		{UID: 5, Subject: "validação de login", Body: "sem código aqui 12345"},
		{UID: 4, Subject: "validação de login", Body: "código: 111222"},
	}}

	code, err := Fetch(context.Background(), dialerFor(mb, nil), fastOptions())
	require.NoError(t, err)
	require.Equal(t, "111222", code)
	require.Equal(t, []uint32{4}, mb.seen)
}

func TestFetchRetriesDialFailures(t *testing.T) {
	attempts := 0
	mb := &fakeMailbox{messages: []Message{
		{UID: 1, Subject: "validação de login", Body: "000111"},
	}}
	dial := func(ctx context.Context) (Mailbox, error) {
		attempts++
		if attempts < 3 {
			return nil, fmt.Errorf("connection refused")
		}
		return mb, nil
	}

	code, err := Fetch(context.Background(), dial, fastOptions())
	require.NoError(t, err)
	require.Equal(t, "000111", code)
	require.Equal(t, 3, attempts)
}

// scan failures after a successful dial are retried like dial failures
func TestFetchRetriesScanFailures(t *testing.T) {
	mb := &fakeMailbox{
		unseenErrs: 2,
		messages: []Message{
			{UID: 7, Subject: "validação de login", Body: "222333"},
		},
	}

	code, err := Fetch(context.Background(), dialerFor(mb, nil), fastOptions())
	require.NoError(t, err)
	require.Equal(t, "222333", code)
	require.Equal(t, 0, mb.unseenErrs)
	require.True(t, mb.closed)
}

func TestFetchExhaustsAttempts(t *testing.T) {
	attempts := 0
	dial := func(ctx context.Context) (Mailbox, error) {
		attempts++
		return nil, fmt.Errorf("connection refused")
	}

	_, err := Fetch(context.Background(), dial, fastOptions())
	require.ErrorIs(t, err, ErrNoCode)
	require.Equal(t, 3, attempts)
}

func TestFetchHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Fetch(ctx, dialerFor(&fakeMailbox{}, nil), Options{SettleDelay: time.Minute})
	require.ErrorIs(t, err, context.Canceled)
}
