package connector

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-message"

	"github.com/customeros/mailbackup/internal/enum"
	"github.com/customeros/mailbackup/internal/logger"
	"github.com/customeros/mailbackup/internal/models"
)

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

func testAccount(protocol enum.Protocol) *models.EmailAccount {
	return &models.EmailAccount{
		User:     "user@mail.test",
		Password: "secret",
		Host:     "mail.test",
		Protocol: protocol,
		SSL:      true,
	}
}

func rawMessage(id int, date string) []byte {
	return []byte(fmt.Sprintf("Message-ID: <%d@mail.test>\r\nDate: %s\r\nSubject: message %d\r\n\r\nbody %d\r\n", id, date, id, id))
}

func headerPart(raw []byte) []byte {
	idx := bytes.Index(raw, []byte("\r\n\r\n"))
	if idx < 0 {
		return raw
	}
	return raw[:idx+4]
}

type fakeIMAPClient struct {
	loginErr  error
	logoutErr error
	selectErr error
	fetchErr  error
	dropOnAny bool

	mailboxes []*imap.MailboxInfo
	folders   map[string][][]byte
	searchIDs []uint32

	state      imap.ConnState
	selected   []string
	criteria   []*imap.SearchCriteria
	fetched    []string
	stored     []uint32
	storeItems []imap.StoreItem
	expunged   int
	loggedOut  int
	terminated bool
}

func newFakeIMAPClient() *fakeIMAPClient {
	return &fakeIMAPClient{
		state:   imap.AuthenticatedState,
		folders: map[string][][]byte{},
	}
}

func (f *fakeIMAPClient) Login(username, password string) error {
	return f.loginErr
}

func (f *fakeIMAPClient) List(ref, name string, ch chan *imap.MailboxInfo) error {
	defer close(ch)
	for _, mbox := range f.mailboxes {
		ch <- mbox
	}
	return nil
}

func (f *fakeIMAPClient) Select(name string, readOnly bool) (*imap.MailboxStatus, error) {
	f.selected = append(f.selected, name)
	if f.dropOnAny {
		f.state = imap.LogoutState
		return nil, fmt.Errorf("connection closed")
	}
	if f.selectErr != nil {
		return nil, f.selectErr
	}
	messages, ok := f.folders[name]
	if !ok {
		return nil, fmt.Errorf("NO Mailbox doesn't exist: %s", name)
	}
	status := imap.NewMailboxStatus(name, nil)
	status.Messages = uint32(len(messages))
	return status, nil
}

func (f *fakeIMAPClient) Search(criteria *imap.SearchCriteria) ([]uint32, error) {
	f.criteria = append(f.criteria, criteria)
	return f.searchIDs, nil
}

func (f *fakeIMAPClient) Fetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error {
	defer close(ch)
	if f.fetchErr != nil {
		if f.dropOnAny {
			f.state = imap.LogoutState
		}
		return f.fetchErr
	}

	id := seqset.Set[0].Start
	folder := f.selected[len(f.selected)-1]
	raw := f.folders[folder][id-1]

	item := string(items[0])
	f.fetched = append(f.fetched, item)

	section := &imap.BodySectionName{}
	body := raw
	if strings.Contains(item, "HEADER") {
		section.BodyPartName = imap.BodyPartName{Specifier: imap.HeaderSpecifier}
		body = headerPart(raw)
	}

	msg := imap.NewMessage(id, items)
	msg.Body = map[*imap.BodySectionName]imap.Literal{section: bytes.NewBuffer(body)}
	ch <- msg
	return nil
}

func (f *fakeIMAPClient) Store(seqset *imap.SeqSet, item imap.StoreItem, value interface{}, ch chan *imap.Message) error {
	f.stored = append(f.stored, seqset.Set[0].Start)
	f.storeItems = append(f.storeItems, item)
	return nil
}

func (f *fakeIMAPClient) Expunge(ch chan uint32) error {
	f.expunged++
	return nil
}

func (f *fakeIMAPClient) Logout() error {
	f.loggedOut++
	f.state = imap.LogoutState
	return f.logoutErr
}

func (f *fakeIMAPClient) Terminate() error {
	f.terminated = true
	return nil
}

func (f *fakeIMAPClient) State() imap.ConnState {
	return f.state
}

func newTestIMAPConnector(fake *fakeIMAPClient) *IMAPConnector {
	c := NewIMAPConnector(testAccount(enum.ProtocolIMAP4), getLogger())
	c.dial = func(addr string, useTLS bool, serverName string) (imapClient, error) {
		return fake, nil
	}
	return c
}

type fakePOP3Session struct {
	authErr  error
	statErr  error
	messages [][]byte

	tops    []int
	deleted []int
	quits   int
}

func (f *fakePOP3Session) Auth(user, password string) error {
	return f.authErr
}

func (f *fakePOP3Session) Stat() (int, int, error) {
	if f.statErr != nil {
		return 0, 0, f.statErr
	}
	size := 0
	for _, m := range f.messages {
		size += len(m)
	}
	return len(f.messages), size, nil
}

func (f *fakePOP3Session) RetrRaw(msgID int) (*bytes.Buffer, error) {
	return bytes.NewBuffer(f.messages[msgID-1]), nil
}

func (f *fakePOP3Session) Top(msgID int, numLines int) (*message.Entity, error) {
	f.tops = append(f.tops, msgID)
	return message.Read(bytes.NewReader(headerPart(f.messages[msgID-1])))
}

func (f *fakePOP3Session) Dele(msgID ...int) error {
	f.deleted = append(f.deleted, msgID...)
	return nil
}

func (f *fakePOP3Session) Quit() error {
	f.quits++
	return nil
}

func newTestPOP3Connector(fake *fakePOP3Session) *POP3Connector {
	c := NewPOP3Connector(testAccount(enum.ProtocolPOP3), getLogger())
	c.dial = func(host string, port int, useTLS bool) (pop3Session, error) {
		return fake, nil
	}
	return c
}
