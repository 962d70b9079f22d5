package external

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"mentorship/internal/types"
)

type fakeSMTPConn struct {
	mu       sync.Mutex
	mailErr  error
	rcptErr  error
	noopErr  error
	resetErr error

	from   []string
	to     []string
	data   bytes.Buffer
	resets int
	quit   bool
	closed bool
}

type bufferCloser struct{ *bytes.Buffer }

func (bufferCloser) Close() error { return nil }

func (f *fakeSMTPConn) Mail(from string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mailErr != nil {
		return f.mailErr
	}
	f.from = append(f.from, from)
	return nil
}

func (f *fakeSMTPConn) Rcpt(to string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rcptErr != nil {
		return f.rcptErr
	}
	f.to = append(f.to, to)
	return nil
}

func (f *fakeSMTPConn) Data() (io.WriteCloser, error) { return bufferCloser{&f.data}, nil }
func (f *fakeSMTPConn) Noop() error                   { return f.noopErr }
func (f *fakeSMTPConn) Quit() error                   { f.quit = true; return nil }
func (f *fakeSMTPConn) Close() error                  { f.closed = true; return nil }

func (f *fakeSMTPConn) Reset() error {
	f.resets++
	return f.resetErr
}

// fakeDialer hands out conns in order and counts dials.
type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeSMTPConn
	dials int
}

func (d *fakeDialer) dial(context.Context) (smtpConn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dials >= len(d.conns) {
		return nil, errors.New("dial tcp: connection refused")
	}
	conn := d.conns[d.dials]
	d.dials++
	return conn, nil
}

func newFakeSMTPClient(maxConns int, conns ...*fakeSMTPConn) (*SMTPClient, *fakeDialer) {
	d := &fakeDialer{conns: conns}
	c := newSMTPClient(SMTPClientConfig{MaxConns: maxConns, Logger: discardLogger()}, d.dial)
	c.now = func() time.Time { return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC) }
	return c, d
}

func TestSMTPSend_DeliversMultipartMessage(t *testing.T) {
	conn := &fakeSMTPConn{}
	client, _ := newFakeSMTPClient(2, conn)

	input := testSendInput()
	input.Subject = "🎯 New Mentorship Application"

	msgID, err := client.Send(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(msgID, "<") || !strings.HasSuffix(msgID, "@mentorship.example>") {
		t.Errorf("msgID = %q", msgID)
	}
	if conn.from[0] != "team@mentorship.example" || conn.to[0] != "applicant@example.com" {
		t.Errorf("envelope from=%v to=%v", conn.from, conn.to)
	}

	msg, err := mail.ReadMessage(&conn.data)
	if err != nil {
		t.Fatalf("message does not parse: %v", err)
	}

	subject, err := new(mime.WordDecoder).DecodeHeader(msg.Header.Get("Subject"))
	if err != nil || subject != "🎯 New Mentorship Application" {
		t.Errorf("subject = %q (err %v)", subject, err)
	}
	if msg.Header.Get("Message-ID") != msgID {
		t.Errorf("Message-ID header = %q, want %q", msg.Header.Get("Message-ID"), msgID)
	}
	if msg.Header.Get("X-Submission-ID") != "sub_001" {
		t.Errorf("X-Submission-ID = %q", msg.Header.Get("X-Submission-ID"))
	}
	if msg.Header.Get("Date") != "Sat, 14 Mar 2026 09:30:00 +0000" {
		t.Errorf("Date = %q", msg.Header.Get("Date"))
	}

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/alternative" {
		t.Fatalf("content type = %q (err %v)", mediaType, err)
	}

	mr := multipart.NewReader(msg.Body, params["boundary"])
	var bodies []string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("reading part: %v", err)
		}
		body, _ := io.ReadAll(part)
		bodies = append(bodies, part.Header.Get("Content-Type")+"|"+string(body))
	}

	want := []string{
		"text/plain; charset=UTF-8|Hi Asha",
		"text/html; charset=UTF-8|<p>Hi Asha</p>",
	}
	if len(bodies) != len(want) {
		t.Fatalf("parts = %q", bodies)
	}
	for i := range want {
		if bodies[i] != want[i] {
			t.Errorf("part %d = %q, want %q", i, bodies[i], want[i])
		}
	}
}

func TestSMTPSend_ReusesPooledConnection(t *testing.T) {
	conn := &fakeSMTPConn{}
	client, dialer := newFakeSMTPClient(2, conn)

	for range 3 {
		if _, err := client.Send(context.Background(), testSendInput()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if dialer.dials != 1 {
		t.Errorf("dials = %d, want 1", dialer.dials)
	}
	if len(conn.to) != 3 {
		t.Errorf("deliveries = %d, want 3", len(conn.to))
	}
}

func TestSMTPSend_RedialsStaleConnection(t *testing.T) {
	stale := &fakeSMTPConn{}
	fresh := &fakeSMTPConn{}
	client, dialer := newFakeSMTPClient(2, stale, fresh)

	if _, err := client.Send(context.Background(), testSendInput()); err != nil {
		t.Fatalf("first send: %v", err)
	}

	stale.mailErr = io.EOF
	if _, err := client.Send(context.Background(), testSendInput()); err != nil {
		t.Fatalf("second send should redial, got %v", err)
	}

	if dialer.dials != 2 {
		t.Errorf("dials = %d, want 2", dialer.dials)
	}
	if !stale.closed {
		t.Error("stale connection should be closed")
	}
	if len(fresh.to) != 1 {
		t.Errorf("fresh connection deliveries = %d, want 1", len(fresh.to))
	}
}

func TestSMTPSend_RejectedRecipientKeepsConnection(t *testing.T) {
	conn := &fakeSMTPConn{rcptErr: &textproto.Error{Code: 550, Msg: "5.1.1 mailbox unavailable"}}
	client, dialer := newFakeSMTPClient(2, conn)

	_, err := client.Send(context.Background(), testSendInput())
	assertAppErrorCode(t, err, types.ErrCodeEmailBlocked)

	if conn.resets != 1 || conn.closed {
		t.Errorf("resets=%d closed=%v, want RSET and pooled", conn.resets, conn.closed)
	}

	conn.rcptErr = nil
	if _, err := client.Send(context.Background(), testSendInput()); err != nil {
		t.Fatalf("send after RSET: %v", err)
	}
	if dialer.dials != 1 {
		t.Errorf("dials = %d, want 1", dialer.dials)
	}
}

func TestSMTPSend_DialFailure(t *testing.T) {
	client, _ := newFakeSMTPClient(1)

	_, err := client.Send(context.Background(), testSendInput())
	assertAppErrorCode(t, err, types.ErrCodeUpstreamEmailProvider)
}

func TestSMTPSend_WaitsForFreeSlot(t *testing.T) {
	client, _ := newFakeSMTPClient(1, &fakeSMTPConn{})
	client.slots <- struct{}{}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Send(ctx, testSendInput())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestSMTPCheck(t *testing.T) {
	conn := &fakeSMTPConn{}
	client, _ := newFakeSMTPClient(1, conn)

	if client.Name() != "smtp" {
		t.Errorf("Name() = %q", client.Name())
	}
	if err := client.Check(context.Background()); err != nil {
		t.Fatalf("Check() = %v", err)
	}

	conn.noopErr = &textproto.Error{Code: 554, Msg: "transaction failed"}
	if err := client.Check(context.Background()); err == nil {
		t.Error("expected Check() to fail")
	}
}

func TestSMTPClose_QuitsIdleConnections(t *testing.T) {
	conn := &fakeSMTPConn{}
	client, _ := newFakeSMTPClient(2, conn)

	if _, err := client.Send(context.Background(), testSendInput()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	if !conn.quit {
		t.Error("idle connection should receive QUIT")
	}
}

func TestMapSMTPError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want types.ErrorCode
	}{
		{"greylisted", &smtpStageError{stage: stageRcpt, err: &textproto.Error{Code: 451, Msg: "try later"}}, types.ErrCodeUpstreamRateLimited},
		{"service closing", &smtpStageError{stage: stageMail, err: &textproto.Error{Code: 421, Msg: "bye"}}, types.ErrCodeUpstreamRateLimited},
		{"rejected at data", &smtpStageError{stage: stageData, err: &textproto.Error{Code: 554, Msg: "spam"}}, types.ErrCodeEmailBlocked},
		{"rejected sender", &smtpStageError{stage: stageMail, err: &textproto.Error{Code: 553, Msg: "sender"}}, types.ErrCodeUpstreamEmailProvider},
		{"auth", errors.New("smtp AUTH: 535 bad credentials"), types.ErrCodeUpstreamEmailProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertAppErrorCode(t, mapSMTPError(tt.err), tt.want)
		})
	}
}

func TestIsStaleConnError(t *testing.T) {
	if !isStaleConnError(&smtpStageError{stage: stageMail, err: io.EOF}) {
		t.Error("EOF on MAIL should be stale")
	}
	if isStaleConnError(&smtpStageError{stage: stageRcpt, err: io.EOF}) {
		t.Error("failures after MAIL must not be retried")
	}
	if isStaleConnError(&smtpStageError{stage: stageMail, err: &textproto.Error{Code: 550}}) {
		t.Error("a permanent MAIL rejection is not a stale connection")
	}
}

// deadlineConn records the socket deadlines set around a transaction.
type deadlineConn struct {
	*fakeSMTPConn
	deadlines []time.Time
}

func (d *deadlineConn) SetDeadline(t time.Time) error {
	d.deadlines = append(d.deadlines, t)
	return nil
}

func TestSMTPSend_ContextDeadlineBoundsTransaction(t *testing.T) {
	conn := &deadlineConn{fakeSMTPConn: &fakeSMTPConn{}}
	client := newSMTPClient(SMTPClientConfig{MaxConns: 1, Logger: discardLogger()},
		func(context.Context) (smtpConn, error) { return conn, nil })
	now := time.Now()
	client.now = func() time.Time { return now }

	ctx, cancel := context.WithDeadline(context.Background(), now.Add(2*time.Second))
	defer cancel()

	if _, err := client.Send(ctx, testSendInput()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(conn.deadlines) != 2 {
		t.Fatalf("deadlines = %v, want set then cleared", conn.deadlines)
	}
	if want := now.Add(2 * time.Second); !conn.deadlines[0].Equal(want) {
		t.Errorf("transaction deadline = %v, want context deadline %v", conn.deadlines[0], want)
	}
	if !conn.deadlines[1].IsZero() {
		t.Errorf("deadline should be cleared after the transaction, got %v", conn.deadlines[1])
	}

	if got := client.deadline(context.Background(), time.Minute); !got.Equal(now.Add(time.Minute)) {
		t.Errorf("deadline without context deadline = %v", got)
	}
}
