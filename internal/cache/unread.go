package cache

import (
	"context"
	"log"
	"sync"

	"github.com/kusius/letterbox/internal/domain"
	"github.com/kusius/letterbox/internal/store"
)

// UnreadStore serves the "all unread, fully hydrated" aggregate view. It
// leans on the listing cache for mailbox refreshes and on the item cache for
// hydrating individual bodies, so both deduplication keys are shared with
// the rest of the system.
type UnreadStore struct {
	store store.Store
	list  *ListStore
	items *ItemStore
}

// NewUnreadStore creates the unread aggregate over the two cache stores.
func NewUnreadStore(s store.Store, list *ListStore, items *ItemStore) *UnreadStore {
	return &UnreadStore{store: s, list: list, items: items}
}

// Stream emits the hydrated unread mails and re-emits after every committed
// store transaction.
func (s *UnreadStore) Stream(ctx context.Context) (<-chan Result[[]domain.Mail], func()) {
	out := make(chan Result[[]domain.Mail], 1)
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

// snapshot builds the hydrated unread set. A never-synced mailbox forces a
// full refresh first; unread records that are still summary-only are
// hydrated individually, skipping the ones that already carry a body.
func (s *UnreadStore) snapshot(ctx context.Context) Result[[]domain.Mail] {
	recs, err := s.store.ListUnread(ctx)
	if err != nil {
		return Fail[[]domain.Mail](err)
	}
	if len(recs) == 0 {
		_, synced, err := s.store.GetCursor(ctx)
		if err != nil {
			return Fail[[]domain.Mail](err)
		}
		if !synced {
			if err := s.list.Refresh(ctx); err != nil {
				return Fail[[]domain.Mail](err)
			}
			if recs, err = s.store.ListUnread(ctx); err != nil {
				return Fail[[]domain.Mail](err)
			}
		}
	}

	hydrated := false
	for i := range recs {
		if recs[i].Hydrated() {
			continue
		}
		if err := s.items.Fetch(ctx, recs[i].ID); err != nil {
			log.Printf("[cache] failed to hydrate unread mail %s: %v", recs[i].ID, err)
			continue
		}
		hydrated = true
	}
	if hydrated {
		if recs, err = s.store.ListUnread(ctx); err != nil {
			return Fail[[]domain.Mail](err)
		}
	}

	mails := make([]domain.Mail, 0, len(recs))
	for i := range recs {
		if !recs[i].Hydrated() {
			continue
		}
		mail, err := MailFromRecord(&recs[i])
		if err != nil {
			log.Printf("[cache] failed to decode unread mail %s: %v", recs[i].ID, err)
			continue
		}
		mails = append(mails, *mail)
	}
	return Ok(mails)
}
