package mail

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hongminglow/medimate-be/internal/apperr"
)

type fakeSender struct {
	name  string
	err   error
	block bool
	sent  []Message
}

func (f *fakeSender) Name() string { return f.name }

func (f *fakeSender) Send(ctx context.Context, msg Message) error {
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func TestChain_FallsBackInOrder(t *testing.T) {
	primary := &fakeSender{name: "smtp", err: errors.New("relay down")}
	secondary := &fakeSender{name: "outbox"}
	chain := NewChain(zap.NewNop(), time.Second, primary, secondary)

	err := chain.Send(context.Background(), Message{To: "a@example.com"})
	require.NoError(t, err)
	assert.Len(t, secondary.sent, 1)
	assert.Equal(t, "chain(smtp,outbox)", chain.Name())
}

func TestChain_SlowSenderIsBounded(t *testing.T) {
	slow := &fakeSender{name: "smtp", block: true}
	backup := &fakeSender{name: "outbox"}
	chain := NewChain(zap.NewNop(), 20*time.Millisecond, slow, backup)

	start := time.Now()
	require.NoError(t, chain.Send(context.Background(), Message{}))
	assert.Less(t, time.Since(start), time.Second)
	assert.Len(t, backup.sent, 1)
}

func TestChain_AllFail(t *testing.T) {
	chain := NewChain(zap.NewNop(), time.Second,
		&fakeSender{name: "smtp", err: errors.New("a")},
		&fakeSender{name: "outbox", err: errors.New("b")},
	)
	err := chain.Send(context.Background(), Message{})
	assert.ErrorIs(t, err, apperr.ErrDeliveryFailure)
	assert.ErrorContains(t, err, "smtp: a")

	empty := NewChain(nil, 0)
	assert.ErrorIs(t, empty.Send(context.Background(), Message{}), apperr.ErrDeliveryFailure)
}

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func TestOutboxSender_PutsJSON(t *testing.T) {
	putter := &fakePutter{}
	sender := NewOutboxSenderWithClient(putter, "mail-outbox")
	sender.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }

	require.NoError(t, sender.Send(context.Background(), Message{To: "a@example.com", Subject: "hi"}))
	assert.Equal(t, "mail-outbox", *putter.input.Bucket)
	assert.Contains(t, *putter.input.Key, "outbox/2026-03-01/")
	assert.Contains(t, string(putter.body), `"to":"a@example.com"`)

	putter.err = errors.New("denied")
	assert.ErrorContains(t, sender.Send(context.Background(), Message{}), "put outbox object")
}

func TestLogSender_LogsBody(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	sender := NewLogSender(zap.New(core))

	require.NoError(t, sender.Send(context.Background(), Message{To: "a@example.com", Text: "link"}))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "link", logs.All()[0].ContextMap()["body"])
}

func TestVerificationEmail(t *testing.T) {
	msg, err := VerificationEmail("a@example.com", "<Alice>", "http://localhost:3000/", "abc123")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", msg.To)
	assert.Equal(t, verificationSubject, msg.Subject)
	assert.Contains(t, msg.Text, "http://localhost:3000/verify-email?token=abc123")
	assert.Contains(t, msg.HTML, "&lt;Alice&gt;")
	assert.NotContains(t, msg.HTML, "<Alice>")
}

func TestNewSMTPSender_Defaults(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "smtp.example.com"})
	assert.Equal(t, 587, s.cfg.Port)
	assert.Equal(t, DefaultTimeout, s.cfg.Timeout)
	assert.Equal(t, "smtp", s.Name())

	client, err := s.client()
	require.NoError(t, err)
	assert.NotNil(t, client)
}
