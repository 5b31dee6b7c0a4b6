package connector

import (
	"context"

	"github.com/customeros/mailbackup/interfaces"
)

type LoadState int

const (
	Unloaded LoadState = iota
	HeaderLoaded
	FullyLoaded
)

func (s LoadState) String() string {
	switch s {
	case HeaderLoaded:
		return "header"
	case FullyLoaded:
		return "full"
	default:
		return "unloaded"
	}
}

// RemoteMessage is a handle on one message of a remote folder. Its bytes are fetched
// on demand by Load.
type RemoteMessage struct {
	conn   interfaces.MailConnector
	ID     uint32
	Folder string

	state  LoadState
	header []byte
	raw    []byte
}

func NewRemoteMessage(conn interfaces.MailConnector, folder string, id uint32) *RemoteMessage {
	return &RemoteMessage{conn: conn, Folder: folder, ID: id}
}

func (m *RemoteMessage) State() LoadState {
	return m.state
}

func (m *RemoteMessage) Header() []byte {
	return m.header
}

// Raw returns the full message, or nil until it is fully loaded.
func (m *RemoteMessage) Raw() []byte {
	return m.raw
}

// Load fetches the message up to level. The handle's folder is selected first when the
// connector has moved elsewhere. A message the server no longer has leaves the state
// untouched and returns no error.
func (m *RemoteMessage) Load(ctx context.Context, level LoadState) error {
	if m.state >= level || level == Unloaded {
		return nil
	}

	if m.conn.CurrentFolder() != m.Folder {
		if _, err := m.conn.SelectFolder(ctx, m.Folder); err != nil {
			return err
		}
	}

	if level == HeaderLoaded {
		header, err := m.conn.FetchHeader(ctx, m.ID)
		if err != nil || header == nil {
			return err
		}
		m.header = header
		m.state = HeaderLoaded
		return nil
	}

	raw, err := m.conn.FetchFull(ctx, m.ID)
	if err != nil || raw == nil {
		return err
	}
	m.raw = raw
	if m.header == nil {
		m.header = raw
	}
	m.state = FullyLoaded
	return nil
}
