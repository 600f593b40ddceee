package cache

import (
	"context"

	"github.com/kusius/letterbox/internal/domain"
	"github.com/kusius/letterbox/internal/provider"
	"github.com/kusius/letterbox/internal/store"
	mailsync "github.com/kusius/letterbox/internal/sync"
)

// DataSource composes the cache stores behind the single interface the
// presentation layer consumes. Each stream is cold-restartable: subscribing
// delivers the current cached state, then live updates.
type DataSource struct {
	list   *ListStore
	items  *ItemStore
	unread *UnreadStore
}

// NewDataSource wires the cache stores over the given collaborators.
// attachmentConcurrency bounds simultaneous attachment fetches; pass 0 for
// the default.
func NewDataSource(s store.Store, p provider.MailProvider, e *mailsync.Engine, attachmentConcurrency int64) *DataSource {
	list := NewListStore(s, e, p)
	items := NewItemStore(s, p, attachmentConcurrency)
	return &DataSource{
		list:   list,
		items:  items,
		unread: NewUnreadStore(s, list, items),
	}
}

// GetEmails streams the mailbox listing. With refresh set a sync pass runs
// before the first snapshot.
func (d *DataSource) GetEmails(ctx context.Context, refresh bool) (<-chan Result[[]domain.MailSummary], func()) {
	return d.list.Stream(ctx, refresh)
}

// GetFullUnreadMails streams the fully hydrated unread set.
func (d *DataSource) GetFullUnreadMails(ctx context.Context) (<-chan Result[[]domain.Mail], func()) {
	return d.unread.Stream(ctx)
}

// GetMail streams a single hydrated mail, fetching it on cache miss.
func (d *DataSource) GetMail(ctx context.Context, id string) (<-chan Result[domain.Mail], func()) {
	return d.items.Stream(ctx, id)
}

// RefreshMails runs one synchronization pass.
func (d *DataSource) RefreshMails(ctx context.Context) error {
	return d.list.Refresh(ctx)
}

// ToggleReadStatus flips the read flag of a mail.
func (d *DataSource) ToggleReadStatus(ctx context.Context, id string) error {
	return d.list.ToggleRead(ctx, id)
}

// UpdateReadStatus sets the read flag of a mail to an explicit value.
func (d *DataSource) UpdateReadStatus(ctx context.Context, id string, isRead bool) error {
	return d.items.UpdateReadStatus(ctx, id, isRead)
}

// Delete removes a mail locally and trashes it remotely.
func (d *DataSource) Delete(ctx context.Context, id string) error {
	return d.list.Delete(ctx, id)
}
