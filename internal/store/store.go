package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a targeted read or write misses.
var ErrNotFound = errors.New("mail not found")

// MailRecord is the persisted form of a message. Raw holds the serialized
// MIME part tree; Raw == nil means the summary is known but the body has not
// been hydrated yet.
type MailRecord struct {
	ID                   string
	Title                string
	Sender               string
	SenderEmail          string
	Summary              string
	ReceivedAtUnixMillis int64
	IsRead               bool
	Raw                  []byte
}

// Hydrated reports whether the record carries a serialized body.
func (r *MailRecord) Hydrated() bool {
	return r.Raw != nil
}

// MutationKind tags a Mutation.
type MutationKind int

const (
	// MutationAdded upserts a batch of records.
	MutationAdded MutationKind = iota
	// MutationDeleted removes records by id.
	MutationDeleted
	// MutationToggleRead flips the read flag of a single record.
	MutationToggleRead
	// MutationDelete removes a single record.
	MutationDelete
)

// Mutation is one action of a batch applied against the local store. It is
// the local representation of the sync engine's action union; exactly one of
// the payload fields is meaningful per kind.
type Mutation struct {
	Kind   MutationKind
	Mails  []MailRecord // MutationAdded
	IDs    []string     // MutationDeleted
	MailID string       // MutationToggleRead, MutationDelete
}

// Added builds an upsert mutation.
func Added(mails []MailRecord) Mutation {
	return Mutation{Kind: MutationAdded, Mails: mails}
}

// Deleted builds a bulk delete mutation.
func Deleted(ids []string) Mutation {
	return Mutation{Kind: MutationDeleted, IDs: ids}
}

// ToggleRead builds a read-flag flip mutation.
func ToggleRead(id string) Mutation {
	return Mutation{Kind: MutationToggleRead, MailID: id}
}

// Delete builds a single delete mutation.
func Delete(id string) Mutation {
	return Mutation{Kind: MutationDelete, MailID: id}
}

// Store is the single source of truth for persisted mail. All writes go
// through it; a mutation batch commits as one transaction and subscribers
// are notified after each committed transaction.
type Store interface {
	UpsertMail(ctx context.Context, rec *MailRecord) error
	UpsertMails(ctx context.Context, recs []MailRecord) error
	GetMail(ctx context.Context, id string) (*MailRecord, error)
	ListMails(ctx context.Context) ([]MailRecord, error)
	ListUnread(ctx context.Context) ([]MailRecord, error)
	DeleteMail(ctx context.Context, id string) error

	// Apply commits a mutation batch in a single transaction.
	Apply(ctx context.Context, batch []Mutation) error

	// GetCursor returns the last fully applied history checkpoint. ok is
	// false when the mailbox has never been synced.
	GetCursor(ctx context.Context) (cursor uint64, ok bool, err error)
	// SetCursor advances the checkpoint. The stored value never decreases.
	SetCursor(ctx context.Context, cursor uint64) error

	// Subscribe registers a change listener. The returned channel receives
	// a coalesced signal after every committed write transaction. The
	// cancel func must be called when the listener goes away.
	Subscribe() (ch <-chan struct{}, cancel func())

	Close() error
}
