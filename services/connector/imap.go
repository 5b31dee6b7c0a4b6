package connector

import (
	"context"
	"crypto/tls"
	"io"
	"iter"
	"net"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/mailbackup/interfaces"
	mberrors "github.com/customeros/mailbackup/internal/errors"
	"github.com/customeros/mailbackup/internal/logger"
	"github.com/customeros/mailbackup/internal/models"
	"github.com/customeros/mailbackup/internal/tracing"
)

const dialTimeout = 30 * time.Second

// imapClient is the part of *client.Client the connector drives.
type imapClient interface {
	Login(username, password string) error
	List(ref, name string, ch chan *imap.MailboxInfo) error
	Select(name string, readOnly bool) (*imap.MailboxStatus, error)
	Search(criteria *imap.SearchCriteria) ([]uint32, error)
	Fetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	Store(seqset *imap.SeqSet, item imap.StoreItem, value interface{}, ch chan *imap.Message) error
	Expunge(ch chan uint32) error
	Logout() error
	Terminate() error
	State() imap.ConnState
}

type imapDialFunc func(addr string, useTLS bool, serverName string) (imapClient, error)

func dialIMAP(addr string, useTLS bool, serverName string) (imapClient, error) {
	dialer := &net.Dialer{
		Timeout:   dialTimeout,
		KeepAlive: dialTimeout,
	}
	if useTLS {
		return client.DialWithDialerTLS(dialer, addr, &tls.Config{ServerName: serverName})
	}
	return client.DialWithDialer(dialer, addr)
}

var (
	headerSection = &imap.BodySectionName{BodyPartName: imap.BodyPartName{Specifier: imap.HeaderSpecifier}, Peek: true}
	fullSection   = &imap.BodySectionName{Peek: true}
)

type IMAPConnector struct {
	account *models.EmailAccount
	log     logger.Logger
	dial    imapDialFunc

	client  imapClient
	current string
	count   uint32
}

func NewIMAPConnector(account *models.EmailAccount, log logger.Logger) *IMAPConnector {
	return &IMAPConnector{
		account: account,
		log:     log,
		dial:    dialIMAP,
	}
}

func (c *IMAPConnector) Open(ctx context.Context) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPConnector.Open")
	defer span.Finish()
	tracing.SetDefaultConnectorSpanTags(ctx, span)
	span.SetTag("server", c.account.Host)
	span.SetTag("tls", c.account.SSL)

	if c.client != nil {
		return nil
	}

	addr := c.account.Address()
	cl, err := c.dial(addr, c.account.SSL, c.account.Host)
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrapf(mberrors.ErrConnection, "dial %s: %v", addr, err)
	}

	if err := cl.Login(c.account.User, c.account.Password); err != nil {
		tracing.TraceErr(span, err)
		if cl.Logout() != nil {
			_ = cl.Terminate()
		}
		return errors.Wrapf(mberrors.ErrAuth, "login %s: %v", c.account, err)
	}

	c.client = cl
	c.current = ""
	c.count = 0
	c.log.Debugf("Connected to %s", c.account)
	return nil
}

// Close logs out, dropping the socket if the server does not answer. A second call
// is a no-op.
func (c *IMAPConnector) Close() error {
	if c.client == nil {
		return nil
	}
	cl := c.client
	c.client = nil
	c.current = ""
	c.count = 0

	if err := cl.Logout(); err != nil {
		c.log.Debugf("Logout from %s failed, terminating: %v", c.account, err)
		_ = cl.Terminate()
	}
	return nil
}

func (c *IMAPConnector) Directories(ctx context.Context) ([]string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPConnector.Directories")
	defer span.Finish()
	tracing.SetDefaultConnectorSpanTags(ctx, span)

	if c.client == nil {
		return []string{}, nil
	}

	mailboxes := make(chan *imap.MailboxInfo, 16)
	done := make(chan error, 1)
	go func() {
		done <- c.client.List("", "*", mailboxes)
	}()

	tokens := make([]string, 0)
	for mbox := range mailboxes {
		if hasAttribute(mbox.Attributes, imap.NoSelectAttr) {
			continue
		}
		tokens = append(tokens, quoteDirectoryName(mbox.Name))
	}
	if err := <-done; err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrapf(mberrors.ErrConnection, "list folders: %v", err)
	}

	names := ParseDirectoryListing(tokens)
	span.SetTag("folders.count", len(names))
	return names, nil
}

func (c *IMAPConnector) SelectFolder(ctx context.Context, name string) (uint32, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPConnector.SelectFolder")
	defer span.Finish()
	tracing.SetDefaultConnectorSpanTags(ctx, span)
	span.SetTag("folder.name", name)

	if c.client == nil {
		return 0, nil
	}

	mbox, err := c.client.Select(name, false)
	if err != nil {
		c.current = ""
		c.count = 0
		if c.client.State() == imap.LogoutState {
			tracing.TraceErr(span, err)
			return 0, errors.Wrapf(mberrors.ErrConnection, "select %s: %v", name, err)
		}
		c.log.Debugf("Folder %s of %s cannot be selected: %v", name, c.account, err)
		return 0, nil
	}

	c.current = name
	c.count = mbox.Messages
	span.SetTag("messages.total", mbox.Messages)
	return mbox.Messages, nil
}

func (c *IMAPConnector) CurrentFolder() string {
	return c.current
}

func (c *IMAPConnector) EnumerateIDs(ctx context.Context, folder string, filter interfaces.SearchFilter) (iter.Seq[uint32], error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPConnector.EnumerateIDs")
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

	if !hasCutoff && !filter.OnlyRead {
		return rangeSeq(count), nil
	}

	criteria := imap.NewSearchCriteria()
	if hasCutoff {
		criteria.Before = cutoff
		span.SetTag("filter.before", FormatIMAPDate(cutoff))
	}
	if filter.OnlyRead {
		criteria.WithFlags = []string{imap.SeenFlag}
	}

	ids, err := c.client.Search(criteria)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrapf(mberrors.ErrConnection, "search %s: %v", folder, err)
	}
	span.SetTag("messages.matched", len(ids))
	return sliceSeq(ids), nil
}

func (c *IMAPConnector) FetchHeader(ctx context.Context, id uint32) ([]byte, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPConnector.FetchHeader")
	defer span.Finish()
	tracing.SetDefaultConnectorSpanTags(ctx, span)
	span.SetTag("message.id", id)

	return c.fetch(span, id, headerSection)
}

func (c *IMAPConnector) FetchFull(ctx context.Context, id uint32) ([]byte, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPConnector.FetchFull")
	defer span.Finish()
	tracing.SetDefaultConnectorSpanTags(ctx, span)
	span.SetTag("message.id", id)

	return c.fetch(span, id, fullSection)
}

func (c *IMAPConnector) fetch(span opentracing.Span, id uint32, section *imap.BodySectionName) ([]byte, error) {
	if c.client == nil || id == 0 || c.current == "" || id > c.count {
		return nil, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(id)

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.client.Fetch(seqSet, []imap.FetchItem{section.FetchItem()}, messages)
	}()

	var data []byte
	var readErr error
	for msg := range messages {
		if data != nil {
			continue
		}
		literal := msg.GetBody(section)
		if literal == nil {
			continue
		}
		data, readErr = io.ReadAll(literal)
	}

	if err := <-done; err != nil {
		if c.client.State() == imap.LogoutState {
			tracing.TraceErr(span, err)
			return nil, errors.Wrapf(mberrors.ErrConnection, "fetch %d: %v", id, err)
		}
		c.log.Debugf("Message %d missing in %s: %v", id, c.current, err)
		return nil, nil
	}
	if readErr != nil {
		tracing.TraceErr(span, readErr)
		return nil, errors.Wrapf(mberrors.ErrConnection, "read message %d: %v", id, readErr)
	}
	return data, nil
}

func (c *IMAPConnector) MarkForDeletion(ctx context.Context, id uint32) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPConnector.MarkForDeletion")
	defer span.Finish()
	tracing.SetDefaultConnectorSpanTags(ctx, span)
	span.SetTag("message.id", id)

	if c.client == nil || id == 0 || c.current == "" {
		return nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(id)
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := c.client.Store(seqSet, item, []interface{}{imap.DeletedFlag}, nil); err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrapf(mberrors.ErrConnection, "flag %d deleted: %v", id, err)
	}
	return nil
}

func (c *IMAPConnector) CommitDeletions(ctx context.Context) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPConnector.CommitDeletions")
	defer span.Finish()
	tracing.SetDefaultConnectorSpanTags(ctx, span)
	span.SetTag("folder.name", c.current)

	if c.client == nil || c.current == "" {
		return nil
	}
	if err := c.client.Expunge(nil); err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrapf(mberrors.ErrConnection, "expunge %s: %v", c.current, err)
	}
	return nil
}

func hasAttribute(attributes []string, attr string) bool {
	for _, a := range attributes {
		if strings.EqualFold(a, attr) {
			return true
		}
	}
	return false
}

func emptySeq(func(uint32) bool) {}

func rangeSeq(count uint32) iter.Seq[uint32] {
	return func(yield func(uint32) bool) {
		for id := uint32(1); id <= count; id++ {
			if !yield(id) {
				return
			}
		}
	}
}

func sliceSeq(ids []uint32) iter.Seq[uint32] {
	return func(yield func(uint32) bool) {
		for _, id := range ids {
			if !yield(id) {
				return
			}
		}
	}
}
