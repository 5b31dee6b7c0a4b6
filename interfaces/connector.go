package interfaces

import (
	"context"
	"iter"
)

// SearchFilter narrows EnumerateIDs. Before accepts a time.Time, a *time.Time or a
// "02-Jan-2006" string; nil disables the date filter.
type SearchFilter struct {
	Before   any
	OnlyRead bool
}

// MailConnector owns one session against a remote mail store. Implementations are not
// safe for concurrent use: folder selection is session state.
type MailConnector interface {
	Open(ctx context.Context) error
	Close() error
	Directories(ctx context.Context) ([]string, error)
	SelectFolder(ctx context.Context, name string) (uint32, error)
	CurrentFolder() string
	EnumerateIDs(ctx context.Context, folder string, filter SearchFilter) (iter.Seq[uint32], error)
	FetchHeader(ctx context.Context, id uint32) ([]byte, error)
	FetchFull(ctx context.Context, id uint32) ([]byte, error)
	MarkForDeletion(ctx context.Context, id uint32) error
	CommitDeletions(ctx context.Context) error
}
