package external

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"mentorship/internal/types"
)

// smtpIOTimeout bounds one mail transaction on an established connection.
// A shorter context deadline wins.
const smtpIOTimeout = 20 * time.Second

// SMTPClientConfig configures the relay connection pool.
type SMTPClientConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	// ImplicitTLS dials TLS directly (port 465). Otherwise STARTTLS is used
	// whenever the relay advertises it.
	ImplicitTLS bool
	DialTimeout time.Duration
	// MaxConns bounds concurrent transactions and idle connections.
	MaxConns  int
	HelloName string
	Logger    *slog.Logger
}

// smtpConn is the part of *smtp.Client the pool drives.
type smtpConn interface {
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Reset() error
	Noop() error
	Quit() error
	Close() error
}

type smtpDialFunc func(ctx context.Context) (smtpConn, error)

// SMTPClient delivers mail through one relay, keeping up to MaxConns
// authenticated connections open between submissions. A connection that
// fails is discarded and a new one is dialed on the next use.
type SMTPClient struct {
	cfg    SMTPClientConfig
	dial   smtpDialFunc
	slots  chan struct{}
	idle   chan smtpConn
	now    func() time.Time
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewSMTPClient creates a pool that dials the configured relay lazily.
func NewSMTPClient(cfg SMTPClientConfig) *SMTPClient {
	c := newSMTPClient(cfg, nil)
	c.dial = c.dialRelay
	return c
}

func newSMTPClient(cfg SMTPClientConfig, dial smtpDialFunc) *SMTPClient {
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = 2
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &SMTPClient{
		cfg:    cfg,
		dial:   dial,
		slots:  make(chan struct{}, cfg.MaxConns),
		idle:   make(chan smtpConn, cfg.MaxConns),
		now:    time.Now,
		logger: logger,
	}
}

// Name identifies the relay in health reports.
func (c *SMTPClient) Name() string { return "smtp" }

// Send delivers input as a multipart/alternative message and returns the
// generated Message-ID.
func (c *SMTPClient) Send(ctx context.Context, input types.SendInput) (string, error) {
	msgID := newMessageID(input.From.Address)
	raw, err := buildMIMEMessage(input, msgID, c.now())
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build MIME message", err)
	}

	err = c.withConn(ctx, func(conn smtpConn) error {
		return deliver(conn, input.From.Address, input.To, raw)
	})
	if err != nil {
		return "", mapSMTPError(err)
	}
	return msgID, nil
}

// Check issues NOOP on a pooled (or freshly dialed) connection.
func (c *SMTPClient) Check(ctx context.Context) error {
	err := c.withConn(ctx, func(conn smtpConn) error {
		if err := conn.Noop(); err != nil {
			return &smtpStageError{stage: stageProbe, err: err}
		}
		return nil
	})
	if err != nil {
		return mapSMTPError(err)
	}
	return nil
}

// Close sends QUIT on every idle connection. In-flight transactions finish
// and their connections are closed on return.
func (c *SMTPClient) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	for {
		select {
		case conn := <-c.idle:
			if err := conn.Quit(); err != nil {
				_ = conn.Close()
			}
		default:
			return nil
		}
	}
}

// withConn runs op on a connection under the concurrency limit. When a
// reused connection turns out to be dead before anything was committed, op
// is retried once on a fresh connection.
func (c *SMTPClient) withConn(ctx context.Context, op func(smtpConn) error) error {
	select {
	case c.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-c.slots }()

	conn, reused, err := c.checkout(ctx)
	if err != nil {
		return err
	}

	err = c.runWithDeadline(ctx, conn, op)
	if err != nil && reused && isStaleConnError(err) {
		c.logger.DebugContext(ctx, "pooled smtp connection was stale, redialing", "error", err)
		_ = conn.Close()

		if conn, err = c.dial(ctx); err != nil {
			return err
		}
		err = c.runWithDeadline(ctx, conn, op)
	}

	c.release(conn, err)
	return err
}

func (c *SMTPClient) runWithDeadline(ctx context.Context, conn smtpConn, op func(smtpConn) error) error {
	if d, ok := conn.(interface{ SetDeadline(time.Time) error }); ok {
		_ = d.SetDeadline(c.deadline(ctx, smtpIOTimeout))
		defer d.SetDeadline(time.Time{})
	}
	return op(conn)
}

// deadline returns now+limit, or the context deadline when that is sooner.
func (c *SMTPClient) deadline(ctx context.Context, limit time.Duration) time.Time {
	deadline := c.now().Add(limit)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		return ctxDeadline
	}
	return deadline
}

func (c *SMTPClient) checkout(ctx context.Context) (smtpConn, bool, error) {
	select {
	case conn := <-c.idle:
		return conn, true, nil
	default:
	}
	conn, err := c.dial(ctx)
	return conn, false, err
}

// release returns conn to the idle set when it is still usable: after
// success, or after a protocol-level rejection that RSET clears.
func (c *SMTPClient) release(conn smtpConn, opErr error) {
	if opErr != nil {
		var tpErr *textproto.Error
		if !errors.As(opErr, &tpErr) || tpErr.Code == 421 || conn.Reset() != nil {
			_ = conn.Close()
			return
		}
	}

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()

	if !closed {
		select {
		case c.idle <- conn:
			return
		default:
		}
	}
	if err := conn.Quit(); err != nil {
		_ = conn.Close()
	}
}

func (c *SMTPClient) helloName() string {
	if c.cfg.HelloName != "" {
		return c.cfg.HelloName
	}
	return "localhost"
}

// relayConn carries the raw socket so per-transaction deadlines can be set.
type relayConn struct {
	*smtp.Client
	raw net.Conn
}

func (r *relayConn) SetDeadline(t time.Time) error { return r.raw.SetDeadline(t) }

// dialRelay connects, upgrades to TLS and authenticates with PLAIN when the
// relay supports it and credentials are configured.
func (c *SMTPClient) dialRelay(ctx context.Context) (smtpConn, error) {
	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
	dialer := &net.Dialer{Timeout: c.cfg.DialTimeout}
	tlsCfg := &tls.Config{ServerName: c.cfg.Host, MinVersion: tls.VersionTLS12}

	var (
		raw net.Conn
		err error
	)
	if c.cfg.ImplicitTLS {
		raw, err = (&tls.Dialer{NetDialer: dialer, Config: tlsCfg}).DialContext(ctx, "tcp", addr)
	} else {
		raw, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("dialing smtp relay %s: %w", addr, err)
	}
	_ = raw.SetDeadline(c.deadline(ctx, c.cfg.DialTimeout))

	client, err := smtp.NewClient(raw, c.cfg.Host)
	if err != nil {
		raw.Close()
		return nil, fmt.Errorf("smtp greeting from %s: %w", addr, err)
	}

	if err := c.handshake(client, tlsCfg); err != nil {
		client.Close()
		return nil, err
	}

	_ = raw.SetDeadline(time.Time{})
	return &relayConn{Client: client, raw: raw}, nil
}

func (c *SMTPClient) handshake(client *smtp.Client, tlsCfg *tls.Config) error {
	if err := client.Hello(c.helloName()); err != nil {
		return fmt.Errorf("smtp EHLO: %w", err)
	}
	if !c.cfg.ImplicitTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsCfg); err != nil {
				return fmt.Errorf("smtp STARTTLS: %w", err)
			}
		}
	}
	if c.cfg.Username == "" || c.cfg.Password == "" {
		return nil
	}
	if ok, _ := client.Extension("AUTH"); !ok {
		return nil
	}
	if err := client.Auth(smtp.PlainAuth("", c.cfg.Username, c.cfg.Password, c.cfg.Host)); err != nil {
		return fmt.Errorf("smtp AUTH: %w", err)
	}
	return nil
}

const (
	stageProbe = "noop"
	stageMail  = "mail"
	stageRcpt  = "rcpt"
	stageData  = "data"
)

// smtpStageError records which SMTP command failed.
type smtpStageError struct {
	stage string
	err   error
}

func (e *smtpStageError) Error() string { return fmt.Sprintf("smtp %s: %v", e.stage, e.err) }
func (e *smtpStageError) Unwrap() error { return e.err }

func deliver(conn smtpConn, from, to string, msg []byte) error {
	if err := conn.Mail(from); err != nil {
		return &smtpStageError{stage: stageMail, err: err}
	}
	if err := conn.Rcpt(to); err != nil {
		return &smtpStageError{stage: stageRcpt, err: err}
	}
	w, err := conn.Data()
	if err != nil {
		return &smtpStageError{stage: stageData, err: err}
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return &smtpStageError{stage: stageData, err: err}
	}
	if err := w.Close(); err != nil {
		return &smtpStageError{stage: stageData, err: err}
	}
	return nil
}

// isStaleConnError reports a failure of the first command on a connection
// that the relay has already dropped. Nothing was committed, so a retry on a
// new connection cannot duplicate mail.
func isStaleConnError(err error) bool {
	var stageErr *smtpStageError
	if !errors.As(err, &stageErr) || (stageErr.stage != stageMail && stageErr.stage != stageProbe) {
		return false
	}
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		return tpErr.Code == 421
	}
	return true
}

// mapSMTPError classifies relay failures. 5xx replies to RCPT or DATA are
// permanent rejections of this message; 4xx replies are transient.
func mapSMTPError(err error) error {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return err
	}

	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		switch {
		case tpErr.Code == 421 || tpErr.Code == 450 || tpErr.Code == 451 || tpErr.Code == 452:
			return types.NewAppError(types.ErrCodeUpstreamRateLimited,
				fmt.Sprintf("smtp relay deferred message: %d %s", tpErr.Code, tpErr.Msg), err)
		case tpErr.Code >= 550 && tpErr.Code <= 554:
			var stageErr *smtpStageError
			if errors.As(err, &stageErr) && (stageErr.stage == stageRcpt || stageErr.stage == stageData) {
				return types.NewAppError(types.ErrCodeEmailBlocked,
					fmt.Sprintf("smtp relay rejected message: %d %s", tpErr.Code, tpErr.Msg), err)
			}
		}
	}

	return types.NewAppError(types.ErrCodeUpstreamEmailProvider, fmt.Sprintf("smtp delivery failed: %v", err), err)
}

// newMessageID returns an RFC 5322 Message-ID in the sender's domain.
func newMessageID(sender string) string {
	domain := "localhost"
	if _, d, ok := strings.Cut(sender, "@"); ok && d != "" {
		domain = d
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
}

// buildMIMEMessage renders input as RFC 5322 headers followed by a
// multipart/alternative body (text first, then HTML), each part
// quoted-printable encoded.
func buildMIMEMessage(input types.SendInput, msgID string, date time.Time) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	headers := [][2]string{
		{"From", (&mail.Address{Name: input.From.Name, Address: input.From.Address}).String()},
		{"To", (&mail.Address{Address: input.To}).String()},
		{"Subject", mime.QEncoding.Encode("utf-8", input.Subject)},
		{"Date", date.Format(time.RFC1123Z)},
		{"Message-ID", msgID},
		{"MIME-Version", "1.0"},
	}
	if input.ReferenceID != "" {
		headers = append(headers, [2]string{"X-Submission-ID", input.ReferenceID})
	}
	headers = append(headers, [2]string{"Content-Type",
		mime.FormatMediaType("multipart/alternative", map[string]string{"boundary": mw.Boundary()})})

	for _, h := range headers {
		fmt.Fprintf(&buf, "%s: %s\r\n", h[0], h[1])
	}
	buf.WriteString("\r\n")

	parts := []struct{ contentType, body string }{
		{"text/plain; charset=UTF-8", input.BodyText},
		{"text/html; charset=UTF-8", input.BodyHTML},
	}
	for _, p := range parts {
		if p.body == "" {
			continue
		}
		pw, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {p.contentType},
			"Content-Transfer-Encoding": {"quoted-printable"},
		})
		if err != nil {
			return nil, err
		}
		qp := quotedprintable.NewWriter(pw)
		if _, err := qp.Write([]byte(p.body)); err != nil {
			return nil, err
		}
		if err := qp.Close(); err != nil {
			return nil, err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var (
	_ EmailProvider = (*SMTPClient)(nil)
	_ HealthChecker = (*SMTPClient)(nil)
)
