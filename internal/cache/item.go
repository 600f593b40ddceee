package cache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/kusius/letterbox/internal/domain"
	"github.com/kusius/letterbox/internal/provider"
	"github.com/kusius/letterbox/internal/store"
)

// defaultAttachmentConcurrency bounds the attachment fetch fan-out.
const defaultAttachmentConcurrency = 5

// ItemStore is the per-message cache. It serves single hydrated mails from
// the local store, fetching the full message (and its attachments) on demand.
// Fetches are deduplicated per message id.
type ItemStore struct {
	store       store.Store
	provider    provider.MailProvider
	group       singleflight.Group
	concurrency int64
}

// NewItemStore creates a per-message cache. concurrency bounds simultaneous
// attachment fetches; values below 1 fall back to the default of 5.
func NewItemStore(s store.Store, p provider.MailProvider, concurrency int64) *ItemStore {
	if concurrency < 1 {
		concurrency = defaultAttachmentConcurrency
	}
	return &ItemStore{store: s, provider: p, concurrency: concurrency}
}

// Stream emits the hydrated mail for id and re-emits after every committed
// store transaction. A missing or summary-only record never produces a Mail;
// it triggers a fetch and the stream emits once hydration lands.
func (s *ItemStore) Stream(ctx context.Context, id string) (<-chan Result[domain.Mail], func()) {
	out := make(chan Result[domain.Mail], 1)
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
			if r, emit := s.snapshot(ctx, id); emit {
				if !send(ctx, done, out, r) {
					return
				}
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

// snapshot reads the record for id and gates emission on hydration: a record
// without a body fetches instead of emitting. emit is false only when the
// fetch already upserted the hydrated record, in which case the store
// notification wakes the stream and the next snapshot emits it.
func (s *ItemStore) snapshot(ctx context.Context, id string) (Result[domain.Mail], bool) {
	rec, err := s.store.GetMail(ctx, id)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return Fail[domain.Mail](err), true
	}
	if err == nil && rec.Hydrated() {
		mail, err := MailFromRecord(rec)
		if err != nil {
			return Fail[domain.Mail](err), true
		}
		return Ok(*mail), true
	}
	if err := s.Fetch(ctx, id); err != nil {
		return Fail[domain.Mail](err), true
	}
	return Result[domain.Mail]{}, false
}

// Fetch retrieves the full message, resolves its attachments, and merges the
// hydrated record into the local store. Concurrent fetches of the same id
// coalesce onto one execution.
func (s *ItemStore) Fetch(ctx context.Context, id string) error {
	_, err, _ := s.group.Do(id, func() (any, error) {
		// Detached from the caller so a cancelled subscriber cannot abort
		// the flight other callers coalesced onto.
		return nil, s.fetch(context.WithoutCancel(ctx), id)
	})
	return err
}

func (s *ItemStore) fetch(ctx context.Context, id string) error {
	msg, err := s.provider.GetMessage(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to fetch message %s: %w", id, err)
	}
	mail, ok := MailFromMessage(msg)
	if !ok {
		return fmt.Errorf("message %s is unparseable", id)
	}
	s.hydrateAttachments(ctx, id, &mail.Part)
	rec, err := RecordFromMail(mail)
	if err != nil {
		return err
	}
	if err := s.store.UpsertMail(ctx, &rec); err != nil {
		return fmt.Errorf("failed to persist mail %s: %w", id, err)
	}
	return nil
}

// hydrateAttachments fetches the bodies of parts that carry an attachment
// reference but no inline data, at most s.concurrency at a time. Individual
// failures are logged and the attachment is omitted; they never abort the
// message fetch.
func (s *ItemStore) hydrateAttachments(ctx context.Context, messageID string, root *domain.MailPart) {
	var pending []*domain.MailPart
	collectAttachmentParts(root, &pending)
	if len(pending) == 0 {
		return
	}

	sem := semaphore.NewWeighted(s.concurrency)
	g, ctx := errgroup.WithContext(ctx)
	for _, part := range pending {
		part := part
		g.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			body, err := s.provider.GetAttachment(ctx, messageID, part.Body.AttachmentID)
			if err != nil {
				log.Printf("[cache] failed to fetch attachment %s of message %s: %v",
					part.Body.AttachmentID, messageID, err)
				return nil
			}
			part.Body.Data = body.Data
			if body.Size > 0 {
				part.Body.Size = body.Size
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Printf("[cache] attachment fetch for message %s interrupted: %v", messageID, err)
	}
}

func collectAttachmentParts(part *domain.MailPart, pending *[]*domain.MailPart) {
	if part.Body != nil && part.Body.AttachmentID != "" && part.Body.Data == "" {
		*pending = append(*pending, part)
	}
	for i := range part.Parts {
		collectAttachmentParts(&part.Parts[i], pending)
	}
}

// UpdateReadStatus sets the read flag to an explicit value. A record already
// in the requested state is left untouched; otherwise the flag flips locally
// and the new state is pushed to the remote without rollback on failure.
func (s *ItemStore) UpdateReadStatus(ctx context.Context, id string, isRead bool) error {
	rec, err := s.store.GetMail(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to read mail %s: %w", id, err)
	}
	if rec.IsRead == isRead {
		return nil
	}
	if err := s.store.Apply(ctx, []store.Mutation{store.ToggleRead(id)}); err != nil {
		return fmt.Errorf("failed to update read status of %s: %w", id, err)
	}
	return pushReadStatus(ctx, s.provider, id, isRead)
}
