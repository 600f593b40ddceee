package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/kusius/letterbox/internal/provider"
	"github.com/kusius/letterbox/internal/store"
)

// Engine reconciles the remote mailbox with the local store. It decides
// between a full refresh and an incremental history walk based on the sync
// cursor, and returns the resulting mutation batch. The engine is the only
// component that advances the cursor.
type Engine struct {
	store    store.Store
	provider provider.MailProvider
}

// NewEngine creates a refresh engine over the given store and provider.
func NewEngine(s store.Store, p provider.MailProvider) *Engine {
	return &Engine{store: s, provider: p}
}

// Refresh performs one synchronization pass and returns the mutation batch
// to apply. With no cursor recorded it runs a full refresh; otherwise it
// walks the history delta since the cursor.
func (e *Engine) Refresh(ctx context.Context) ([]Action, error) {
	cursor, ok, err := e.store.GetCursor(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get sync cursor: %w", err)
	}

	if !ok {
		return e.fullRefresh(ctx)
	}
	return e.partialFetch(ctx, cursor)
}

// fullRefresh lists every message ref, fetches each full message, and
// records the highest history id seen as the new cursor. Individual fetch
// failures are logged and skipped; they never abort the refresh.
func (e *Engine) fullRefresh(ctx context.Context) ([]Action, error) {
	log.Printf("[sync] full refresh")

	var (
		fetched    []provider.Message
		maxHistory uint64
		pageToken  string
	)

	for {
		// The cache mirrors the inbox, so the listing is scoped to it; the
		// history walk mirrors this by treating INBOX removal as a delete.
		refs, next, err := e.provider.ListMessageRefs(ctx, provider.ListOptions{
			LabelIDs:  []string{provider.LabelInbox},
			PageToken: pageToken,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list message refs: %w", err)
		}

		for _, ref := range refs {
			msg, err := e.provider.GetMessage(ctx, ref.ID)
			if err != nil {
				log.Printf("[sync] failed to fetch message %s: %v", ref.ID, err)
				continue
			}
			if h, ok := parseHistoryID(msg.HistoryID); ok && h > maxHistory {
				maxHistory = h
			}
			fetched = append(fetched, *msg)
		}

		if next == "" {
			break
		}
		pageToken = next
	}

	if maxHistory > 0 {
		if err := e.store.SetCursor(ctx, maxHistory); err != nil {
			return nil, fmt.Errorf("failed to set sync cursor: %w", err)
		}
	} else {
		log.Printf("[sync] no usable history id across %d fetched messages, cursor left unset", len(fetched))
	}

	log.Printf("[sync] full refresh complete: %d messages, cursor %d", len(fetched), maxHistory)
	return []Action{Added(fetched)}, nil
}

// partialFetch walks the paginated history delta since the cursor and
// classifies every touched message id. If the history call itself fails
// (e.g. the cursor expired on the server) it falls back to a full refresh
// instead of surfacing the error.
func (e *Engine) partialFetch(ctx context.Context, cursor uint64) ([]Action, error) {
	log.Printf("[sync] partial fetch from cursor %d", cursor)

	var (
		touched   = make(map[string]struct{})
		toDelete  []string
		candidate uint64
		pageToken string
	)

	for {
		page, err := e.provider.HistorySince(ctx, cursor, pageToken)
		if err != nil {
			log.Printf("[sync] history fetch failed, falling back to full refresh: %v", err)
			return e.fullRefresh(ctx)
		}

		for _, rec := range page.History {
			for _, added := range rec.MessagesAdded {
				// Skip messages already known locally; alterations arrive
				// through the label change lists anyway.
				if _, err := e.store.GetMail(ctx, added.ID); err == nil {
					continue
				} else if !errors.Is(err, store.ErrNotFound) {
					return nil, fmt.Errorf("failed to check local mail %s: %w", added.ID, err)
				}
				touched[added.ID] = struct{}{}
			}

			for _, deleted := range rec.MessagesDeleted {
				toDelete = append(toDelete, deleted.ID)
			}

			for _, la := range rec.LabelsAdded {
				if containsLabel(la.LabelIDs, provider.LabelSpam) {
					// Heal mails that have been marked as spam.
					toDelete = append(toDelete, la.Message.ID)
				} else {
					touched[la.Message.ID] = struct{}{}
				}
			}

			for _, lr := range rec.LabelsRemoved {
				if containsLabel(lr.LabelIDs, provider.LabelInbox) {
					toDelete = append(toDelete, lr.Message.ID)
				} else {
					touched[lr.Message.ID] = struct{}{}
				}
			}

			if h, ok := parseHistoryID(rec.ID); ok && h > candidate {
				candidate = h
			}
		}

		if h, ok := parseHistoryID(page.HistoryID); ok && h > candidate {
			candidate = h
		}

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	if candidate > 0 {
		if err := e.store.SetCursor(ctx, candidate); err != nil {
			return nil, fmt.Errorf("failed to set sync cursor: %w", err)
		}
	}

	var added []provider.Message
	for id := range touched {
		msg, err := e.provider.GetMessage(ctx, id)
		if err != nil {
			log.Printf("[sync] failed to fetch touched message %s: %v", id, err)
			continue
		}
		// A spam push may land between the history read and this fetch.
		if msg.HasLabel(provider.LabelSpam) {
			continue
		}
		added = append(added, *msg)
	}

	log.Printf("[sync] partial fetch complete: %d added, %d deleted, cursor %d",
		len(added), len(toDelete), candidate)
	return []Action{Added(added), Deleted(toDelete)}, nil
}

// parseHistoryID parses a numeric history id. Values that fail to parse are
// treated as absent, never as errors.
func parseHistoryID(s string) (uint64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func containsLabel(labels []string, label string) bool {
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}
