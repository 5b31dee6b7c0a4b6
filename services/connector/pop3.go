package connector

import (
	"bytes"
	"context"
	"iter"
	"strings"
	"time"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/textproto"
	"github.com/knadh/go-pop3"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/mailbackup/interfaces"
	mberrors "github.com/customeros/mailbackup/internal/errors"
	"github.com/customeros/mailbackup/internal/logger"
	"github.com/customeros/mailbackup/internal/models"
	"github.com/customeros/mailbackup/internal/tracing"
	"github.com/customeros/mailbackup/services/decoder"
)

// POP3Folder is the only folder a POP3 mailbox exposes.
const POP3Folder = "INBOX"

// pop3Session is the part of *pop3.Conn the connector drives.
type pop3Session interface {
	Auth(user, password string) error
	Stat() (int, int, error)
	RetrRaw(msgID int) (*bytes.Buffer, error)
	Top(msgID int, numLines int) (*message.Entity, error)
	Dele(msgID ...int) error
	Quit() error
}

type pop3DialFunc func(host string, port int, useTLS bool) (pop3Session, error)

func dialPOP3(host string, port int, useTLS bool) (pop3Session, error) {
	p := pop3.New(pop3.Opt{
		Host:        host,
		Port:        port,
		TLSEnabled:  useTLS,
		DialTimeout: dialTimeout,
	})
	return p.NewConn()
}

type POP3Connector struct {
	account *models.EmailAccount
	log     logger.Logger
	dial    pop3DialFunc

	session  pop3Session
	current  string
	count    uint32
	deletion []int
}

func NewPOP3Connector(account *models.EmailAccount, log logger.Logger) *POP3Connector {
	return &POP3Connector{
		account: account,
		log:     log,
		dial:    dialPOP3,
	}
}

func (c *POP3Connector) Open(ctx context.Context) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "POP3Connector.Open")
	defer span.Finish()
	tracing.SetDefaultConnectorSpanTags(ctx, span)
	span.SetTag("server", c.account.Host)
	span.SetTag("tls", c.account.SSL)

	if c.session != nil {
		return nil
	}

	port := c.account.Port
	if port == 0 {
		port = c.account.DefaultPort()
	}
	session, err := c.dial(c.account.Host, port, c.account.SSL)
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrapf(mberrors.ErrConnection, "dial %s: %v", c.account.Address(), err)
	}
	if err := session.Auth(c.account.User, c.account.Password); err != nil {
		tracing.TraceErr(span, err)
		_ = session.Quit()
		return errors.Wrapf(mberrors.ErrAuth, "login %s: %v", c.account, err)
	}

	c.session = session
	c.current = ""
	c.count = 0
	c.deletion = nil
	c.log.Debugf("Connected to %s", c.account)
	return nil
}

// Close sends QUIT, which makes the server apply committed deletions. Ids marked but
// never committed are dropped.
func (c *POP3Connector) Close() error {
	if c.session == nil {
		return nil
	}
	session := c.session
	c.session = nil
	c.current = ""
	c.count = 0
	c.deletion = nil

	if err := session.Quit(); err != nil {
		c.log.Debugf("Quit from %s failed: %v", c.account, err)
	}
	return nil
}

func (c *POP3Connector) Directories(ctx context.Context) ([]string, error) {
	if c.session == nil {
		return []string{}, nil
	}
	return []string{POP3Folder}, nil
}

func (c *POP3Connector) SelectFolder(ctx context.Context, name string) (uint32, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "POP3Connector.SelectFolder")
	defer span.Finish()
	tracing.SetDefaultConnectorSpanTags(ctx, span)
	span.SetTag("folder.name", name)

	if c.session == nil || !strings.EqualFold(name, POP3Folder) {
		return 0, nil
	}

	count, _, err := c.session.Stat()
	if err != nil {
		c.current = ""
		c.count = 0
		tracing.TraceErr(span, err)
		return 0, errors.Wrapf(mberrors.ErrConnection, "stat: %v", err)
	}

	c.current = POP3Folder
	c.count = uint32(count)
	span.SetTag("messages.total", count)
	return c.count, nil
}

func (c *POP3Connector) CurrentFolder() string {
	return c.current
}

// EnumerateIDs ignores OnlyRead since POP3 keeps no flags. A date filter is applied
// here by reading every message header, so the returned sequence is already resolved.
func (c *POP3Connector) EnumerateIDs(ctx context.Context, folder string, filter interfaces.SearchFilter) (iter.Seq[uint32], error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "POP3Connector.EnumerateIDs")
	defer span.Finish()
	tracing.SetDefaultConnectorSpanTags(ctx, span)
	span.SetTag("folder.name", folder)

	cutoff, hasCutoff, err := ResolveCutoff(filter.Before)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	count, err := c.SelectFolder(ctx, folder)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return emptySeq, nil
	}
	if !hasCutoff {
		return rangeSeq(count), nil
	}
	span.SetTag("filter.before", FormatIMAPDate(cutoff))

	ids := make([]uint32, 0, count)
	for id := uint32(1); id <= count; id++ {
		if err := ctx.Err(); err != nil {
			break
		}
		entity, err := c.session.Top(int(id), 0)
		if err != nil {
			tracing.TraceErr(span, err)
			return nil, errors.Wrapf(mberrors.ErrConnection, "top %d: %v", id, err)
		}
		if datedBefore(entity.Header.Get("Date"), cutoff) {
			ids = append(ids, id)
		}
	}
	span.SetTag("messages.matched", len(ids))
	return sliceSeq(ids), nil
}

func (c *POP3Connector) FetchHeader(ctx context.Context, id uint32) ([]byte, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "POP3Connector.FetchHeader")
	defer span.Finish()
	tracing.SetDefaultConnectorSpanTags(ctx, span)
	span.SetTag("message.id", id)

	if !c.hasMessage(id) {
		return nil, nil
	}
	entity, err := c.session.Top(int(id), 0)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrapf(mberrors.ErrConnection, "top %d: %v", id, err)
	}

	var buf bytes.Buffer
	if err := textproto.WriteHeader(&buf, entity.Header.Header); err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrapf(mberrors.ErrConnection, "serialize header %d: %v", id, err)
	}
	return buf.Bytes(), nil
}

func (c *POP3Connector) FetchFull(ctx context.Context, id uint32) ([]byte, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "POP3Connector.FetchFull")
	defer span.Finish()
	tracing.SetDefaultConnectorSpanTags(ctx, span)
	span.SetTag("message.id", id)

	if !c.hasMessage(id) {
		return nil, nil
	}
	raw, err := c.session.RetrRaw(int(id))
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrapf(mberrors.ErrConnection, "retr %d: %v", id, err)
	}
	return raw.Bytes(), nil
}

func (c *POP3Connector) MarkForDeletion(ctx context.Context, id uint32) error {
	if !c.hasMessage(id) {
		return nil
	}
	c.deletion = append(c.deletion, int(id))
	return nil
}

func (c *POP3Connector) CommitDeletions(ctx context.Context) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "POP3Connector.CommitDeletions")
	defer span.Finish()
	tracing.SetDefaultConnectorSpanTags(ctx, span)
	span.SetTag("messages.deleted", len(c.deletion))

	if c.session == nil || len(c.deletion) == 0 {
		return nil
	}
	ids := c.deletion
	c.deletion = nil
	if err := c.session.Dele(ids...); err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrapf(mberrors.ErrConnection, "dele: %v", err)
	}
	return nil
}

func (c *POP3Connector) hasMessage(id uint32) bool {
	return c.session != nil && c.current != "" && id > 0 && id <= c.count
}

// datedBefore reports whether the Date header is strictly before cutoff. Messages
// without a readable date never match.
func datedBefore(value string, cutoff time.Time) bool {
	date, ok := decoder.ParseDate(value)
	if !ok {
		return false
	}
	return date.Before(cutoff)
}
