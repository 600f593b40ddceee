package sqlite

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/kusius/letterbox/internal/store"
)

func testRecord(id string) store.MailRecord {
	return store.MailRecord{
		ID:                   id,
		Title:                "Subject " + id,
		Sender:               "Alice",
		SenderEmail:          "alice@example.com",
		Summary:              "snippet",
		ReceivedAtUnixMillis: 1718445000000,
		IsRead:               false,
	}
}

func TestUpsertAndGetMail(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	rec := testRecord("msg-1")
	rec.Raw = []byte(`{"mimeType":1}`)
	if err := db.UpsertMail(ctx, &rec); err != nil {
		t.Fatalf("UpsertMail() error: %v", err)
	}

	got, err := db.GetMail(ctx, "msg-1")
	if err != nil {
		t.Fatalf("GetMail() error: %v", err)
	}
	if got.ID != "msg-1" || got.Title != "Subject msg-1" {
		t.Errorf("got %+v", got)
	}
	if got.Sender != "Alice" || got.SenderEmail != "alice@example.com" {
		t.Errorf("sender = (%q, %q)", got.Sender, got.SenderEmail)
	}
	if got.ReceivedAtUnixMillis != 1718445000000 {
		t.Errorf("ReceivedAtUnixMillis = %d", got.ReceivedAtUnixMillis)
	}
	if !got.Hydrated() {
		t.Error("expected record to be hydrated")
	}
}

func TestGetMail_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetMail(context.Background(), "missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("GetMail(missing) error = %v, want ErrNotFound", err)
	}
}

func TestUpsertMail_PreservesRawOnSummaryUpdate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	full := testRecord("msg-1")
	full.Raw = []byte(`{"mimeType":1}`)
	if err := db.UpsertMail(ctx, &full); err != nil {
		t.Fatalf("UpsertMail(full) error: %v", err)
	}

	// Listing refresh re-upserts the summary without a body.
	summary := testRecord("msg-1")
	summary.Title = "Updated"
	summary.IsRead = true
	if err := db.UpsertMail(ctx, &summary); err != nil {
		t.Fatalf("UpsertMail(summary) error: %v", err)
	}

	got, err := db.GetMail(ctx, "msg-1")
	if err != nil {
		t.Fatalf("GetMail() error: %v", err)
	}
	if got.Title != "Updated" || !got.IsRead {
		t.Errorf("summary fields not updated: %+v", got)
	}
	if !got.Hydrated() {
		t.Error("expected hydrated body to survive a summary-only upsert")
	}
}

func TestApply_AddedIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	rec := testRecord("msg-1")
	batch := []store.Mutation{store.Added([]store.MailRecord{rec})}

	if err := db.Apply(ctx, batch); err != nil {
		t.Fatalf("Apply() first error: %v", err)
	}
	rec.Title = "Latest"
	batch = []store.Mutation{store.Added([]store.MailRecord{rec})}
	if err := db.Apply(ctx, batch); err != nil {
		t.Fatalf("Apply() second error: %v", err)
	}

	mails, err := db.ListMails(ctx)
	if err != nil {
		t.Fatalf("ListMails() error: %v", err)
	}
	if len(mails) != 1 {
		t.Fatalf("record count = %d, want 1", len(mails))
	}
	if mails[0].Title != "Latest" {
		t.Errorf("Title = %q, want %q", mails[0].Title, "Latest")
	}
}

func TestApply_BatchKinds(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	recs := []store.MailRecord{testRecord("a"), testRecord("b"), testRecord("c")}
	if err := db.Apply(ctx, []store.Mutation{store.Added(recs)}); err != nil {
		t.Fatalf("Apply(Added) error: %v", err)
	}

	batch := []store.Mutation{
		store.Deleted([]string{"b"}),
		store.ToggleRead("a"),
		store.Delete("c"),
	}
	if err := db.Apply(ctx, batch); err != nil {
		t.Fatalf("Apply(batch) error: %v", err)
	}

	mails, err := db.ListMails(ctx)
	if err != nil {
		t.Fatalf("ListMails() error: %v", err)
	}
	if len(mails) != 1 {
		t.Fatalf("record count = %d, want 1", len(mails))
	}
	if mails[0].ID != "a" || !mails[0].IsRead {
		t.Errorf("surviving record = %+v, want read mail a", mails[0])
	}
}

func TestApply_ToggleReadMissingMail(t *testing.T) {
	db := newTestDB(t)

	err := db.Apply(context.Background(), []store.Mutation{store.ToggleRead("missing")})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Apply(ToggleRead missing) error = %v, want ErrNotFound", err)
	}
}

func TestApply_TransactionalRollback(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	batch := []store.Mutation{
		store.Added([]store.MailRecord{testRecord("a")}),
		store.ToggleRead("missing"),
	}
	if err := db.Apply(ctx, batch); err == nil {
		t.Fatal("expected Apply() to fail on missing toggle target")
	}

	// The failed batch must not have applied partially.
	mails, err := db.ListMails(ctx)
	if err != nil {
		t.Fatalf("ListMails() error: %v", err)
	}
	if len(mails) != 0 {
		t.Errorf("record count = %d after rolled-back batch, want 0", len(mails))
	}
}

func TestListUnread(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	var recs []store.MailRecord
	for i := 0; i < 4; i++ {
		rec := testRecord(fmt.Sprintf("msg-%d", i))
		rec.IsRead = i%2 == 0
		recs = append(recs, rec)
	}
	if err := db.UpsertMails(ctx, recs); err != nil {
		t.Fatalf("UpsertMails() error: %v", err)
	}

	unread, err := db.ListUnread(ctx)
	if err != nil {
		t.Fatalf("ListUnread() error: %v", err)
	}
	if len(unread) != 2 {
		t.Fatalf("unread count = %d, want 2", len(unread))
	}
	for _, rec := range unread {
		if rec.IsRead {
			t.Errorf("record %s is read", rec.ID)
		}
	}
}
