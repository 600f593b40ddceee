package cache

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/kusius/letterbox/internal/domain"
	"github.com/kusius/letterbox/internal/provider"
	"github.com/kusius/letterbox/internal/store"
	mailsync "github.com/kusius/letterbox/internal/sync"
)

// mailboxKey is the single logical key for listing refreshes. All concurrent
// refresh requests for the mailbox coalesce onto one engine invocation.
const mailboxKey = "mails"

// ListStore is the read-through/write-through cache for the mailbox listing.
// Reads serve the local store's live scan; refreshes run the sync engine at
// most once per outstanding request; user mutations apply locally first and
// are then pushed to the remote.
type ListStore struct {
	store    store.Store
	engine   *mailsync.Engine
	provider provider.MailProvider
	group    singleflight.Group
}

// NewListStore creates a listing cache over the given collaborators.
func NewListStore(s store.Store, e *mailsync.Engine, p provider.MailProvider) *ListStore {
	return &ListStore{store: s, engine: e, provider: p}
}

// Stream emits the current listing and re-emits after every committed store
// transaction. With refresh set, a sync pass runs before the first snapshot.
// The returned cancel func releases the subscription; the channel closes
// once the stream winds down.
func (s *ListStore) Stream(ctx context.Context, refresh bool) (<-chan Result[[]domain.MailSummary], func()) {
	out := make(chan Result[[]domain.MailSummary], 1)
	changes, unsubscribe := s.store.Subscribe()

	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			unsubscribe()
			close(done)
		})
	}

	go func() {
		defer close(out)
		if refresh {
			if err := s.Refresh(ctx); err != nil {
				if !send(ctx, done, out, Fail[[]domain.MailSummary](err)) {
					return
				}
			}
		}
		for {
			if !send(ctx, done, out, s.snapshot(ctx)) {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-changes:
			}
		}
	}()
	return out, cancel
}

// snapshot builds the current listing. An empty scan on a never-synced
// mailbox is not a legitimate zero-state: instead of emitting the misleading
// empty list, a refresh is forced and the post-refresh state is served.
func (s *ListStore) snapshot(ctx context.Context) Result[[]domain.MailSummary] {
	recs, err := s.store.ListMails(ctx)
	if err != nil {
		return Fail[[]domain.MailSummary](err)
	}
	if len(recs) == 0 {
		_, synced, err := s.store.GetCursor(ctx)
		if err != nil {
			return Fail[[]domain.MailSummary](err)
		}
		if !synced {
			if err := s.Refresh(ctx); err != nil {
				return Fail[[]domain.MailSummary](err)
			}
			if recs, err = s.store.ListMails(ctx); err != nil {
				return Fail[[]domain.MailSummary](err)
			}
		}
	}
	summaries := make([]domain.MailSummary, 0, len(recs))
	for i := range recs {
		summaries = append(summaries, SummaryFromRecord(&recs[i]))
	}
	return Ok(summaries)
}

// Refresh runs one sync pass and applies the resulting batch. Concurrent
// callers coalesce onto a single engine invocation and share its outcome.
func (s *ListStore) Refresh(ctx context.Context) error {
	_, err, _ := s.group.Do(mailboxKey, func() (any, error) {
		// The flight is shared by every coalesced caller; it must not die
		// with the first caller's context.
		ctx := context.WithoutCancel(ctx)
		actions, err := s.engine.Refresh(ctx)
		if err != nil {
			return nil, err
		}
		batch := MutationsFromActions(actions)
		if len(batch) == 0 {
			return nil, nil
		}
		if err := s.store.Apply(ctx, batch); err != nil {
			return nil, fmt.Errorf("failed to apply refresh batch: %w", err)
		}
		return nil, nil
	})
	return err
}

// ToggleRead flips the read flag locally, then pushes the new state to the
// remote. The local write is optimistic: a failed remote call surfaces as an
// error but the flipped state stays until the next refresh reconciles it.
func (s *ListStore) ToggleRead(ctx context.Context, id string) error {
	if err := s.store.Apply(ctx, []store.Mutation{store.ToggleRead(id)}); err != nil {
		return fmt.Errorf("failed to toggle read status of %s: %w", id, err)
	}
	rec, err := s.store.GetMail(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to read back mail %s: %w", id, err)
	}
	return pushReadStatus(ctx, s.provider, id, rec.IsRead)
}

// Delete removes the mail locally, then trashes it remotely. Same optimistic
// policy as ToggleRead: no rollback on remote failure.
func (s *ListStore) Delete(ctx context.Context, id string) error {
	if err := s.store.Apply(ctx, []store.Mutation{store.Delete(id)}); err != nil {
		return fmt.Errorf("failed to delete mail %s: %w", id, err)
	}
	if err := s.provider.TrashMessage(ctx, id); err != nil {
		return fmt.Errorf("failed to trash message %s: %w", id, err)
	}
	return nil
}

// pushReadStatus mirrors a local read flag to the remote via the UNREAD label.
func pushReadStatus(ctx context.Context, p provider.MailProvider, id string, isRead bool) error {
	var add, remove []string
	if isRead {
		remove = []string{provider.LabelUnread}
	} else {
		add = []string{provider.LabelUnread}
	}
	if err := p.ModifyLabels(ctx, id, add, remove); err != nil {
		return fmt.Errorf("failed to sync read status of %s: %w", id, err)
	}
	return nil
}

// send delivers one emission, giving up when the stream is cancelled.
func send[T any](ctx context.Context, done <-chan struct{}, out chan<- Result[T], r Result[T]) bool {
	select {
	case out <- r:
		return true
	case <-ctx.Done():
		return false
	case <-done:
		return false
	}
}
