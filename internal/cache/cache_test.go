package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kusius/letterbox/internal/provider"
	"github.com/kusius/letterbox/internal/store"
	"github.com/kusius/letterbox/internal/store/sqlite"
	mailsync "github.com/kusius/letterbox/internal/sync"
)

// fakeProvider is an in-memory provider.MailProvider for cache tests. The
// gate channel, when set, blocks ListMessageRefs until released so tests can
// hold a refresh in flight.
type fakeProvider struct {
	mu       sync.Mutex
	refs     []provider.MessageRef
	messages map[string]*provider.Message

	gate    chan struct{}
	entered chan struct{}

	getGate    chan struct{}
	getEntered chan struct{}

	modifyErr error
	trashErr  error

	listCalls   int
	getCalls    int
	modifyCalls int
	trashCalls  int
	attCalls    int
}

func (f *fakeProvider) ListMessageRefs(_ context.Context, _ provider.ListOptions) ([]provider.MessageRef, string, error) {
	f.mu.Lock()
	f.listCalls++
	entered, gate := f.entered, f.gate
	f.mu.Unlock()
	if entered != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
	}
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refs, "", nil
}

func (f *fakeProvider) GetMessage(_ context.Context, id string) (*provider.Message, error) {
	f.mu.Lock()
	f.getCalls++
	entered, gate := f.getEntered, f.getGate
	f.mu.Unlock()
	if entered != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
	}
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[id]
	if !ok {
		return nil, errors.New("message not found: " + id)
	}
	return msg, nil
}

func (f *fakeProvider) HistorySince(context.Context, uint64, string) (*provider.HistoryPage, error) {
	return nil, errors.New("no history in fake")
}

func (f *fakeProvider) ModifyLabels(_ context.Context, _ string, _, _ []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modifyCalls++
	return f.modifyErr
}

func (f *fakeProvider) TrashMessage(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trashCalls++
	return f.trashErr
}

func (f *fakeProvider) GetAttachment(_ context.Context, _, attachmentID string) (*provider.MessagePartBody, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attCalls++
	return &provider.MessagePartBody{AttachmentID: attachmentID, Size: 4, Data: "ZGF0YQ"}, nil
}

func (f *fakeProvider) calls() (list, get int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls, f.getCalls
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	db, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("sqlite.New(:memory:) error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestSource(t *testing.T, fp *fakeProvider) (*DataSource, store.Store) {
	t.Helper()
	db := newTestStore(t)
	engine := mailsync.NewEngine(db, fp)
	return NewDataSource(db, fp, engine, 0), db
}

func recvResult[T any](t *testing.T, ch <-chan Result[T]) Result[T] {
	t.Helper()
	select {
	case r, ok := <-ch:
		if !ok {
			t.Fatal("stream closed before emission")
		}
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for stream emission")
	}
	panic("unreachable")
}

func TestRefresh_Deduplicates(t *testing.T) {
	fp := &fakeProvider{
		refs:     []provider.MessageRef{{ID: "m1"}},
		messages: map[string]*provider.Message{"m1": wireMessage("m1")},
		gate:     make(chan struct{}),
		entered:  make(chan struct{}, 1),
	}
	ds, _ := newTestSource(t, fp)
	ctx := context.Background()

	errs := make(chan error, 2)
	go func() { errs <- ds.RefreshMails(ctx) }()
	<-fp.entered
	go func() { errs <- ds.RefreshMails(ctx) }()

	// Give the second caller time to attach to the in-flight refresh.
	time.Sleep(50 * time.Millisecond)
	close(fp.gate)

	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("RefreshMails() error: %v", err)
		}
	}

	list, _ := fp.calls()
	if list != 1 {
		t.Errorf("listing calls = %d, want 1 for coalesced refreshes", list)
	}
}

func TestRefresh_SurvivesCallerCancellation(t *testing.T) {
	fp := &fakeProvider{
		refs:     []provider.MessageRef{{ID: "m1"}},
		messages: map[string]*provider.Message{"m1": wireMessage("m1")},
		gate:     make(chan struct{}),
		entered:  make(chan struct{}, 1),
	}
	ds, db := newTestSource(t, fp)

	ctx1, cancel1 := context.WithCancel(context.Background())
	errs := make(chan error, 2)
	go func() { errs <- ds.RefreshMails(ctx1) }()
	<-fp.entered
	go func() { errs <- ds.RefreshMails(context.Background()) }()

	// Cancel the first caller while the shared flight sits in the listing
	// call; the flight must finish for the second caller regardless.
	time.Sleep(50 * time.Millisecond)
	cancel1()
	close(fp.gate)

	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("RefreshMails() error: %v", err)
		}
	}

	rec, err := db.GetMail(context.Background(), "m1")
	if err != nil {
		t.Fatalf("GetMail() error: %v", err)
	}
	if !rec.Hydrated() {
		t.Error("fetched message discarded after caller cancellation")
	}
	if list, _ := fp.calls(); list != 1 {
		t.Errorf("listing calls = %d, want 1", list)
	}
}

func TestGetMail_FetchSurvivesSubscriberCancellation(t *testing.T) {
	fp := &fakeProvider{
		messages:   map[string]*provider.Message{"m1": wireMessage("m1")},
		getGate:    make(chan struct{}),
		getEntered: make(chan struct{}, 1),
	}
	ds, db := newTestSource(t, fp)

	ctx1, cancel1 := context.WithCancel(context.Background())
	_, stop := ds.GetMail(ctx1, "m1")
	defer stop()

	<-fp.getEntered
	cancel1()
	close(fp.getGate)

	// The in-flight fetch completes and lands in the store even though the
	// subscriber went away; only the emission is dropped.
	deadline := time.After(5 * time.Second)
	for {
		rec, err := db.GetMail(context.Background(), "m1")
		if err == nil && rec.Hydrated() {
			return
		}
		select {
		case <-deadline:
			t.Fatal("fetched mail never landed in the store")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestGetEmails_EmptySyncedMailboxEmitsEmptyList(t *testing.T) {
	fp := &fakeProvider{messages: map[string]*provider.Message{}}
	ds, db := newTestSource(t, fp)
	ctx := context.Background()
	if err := db.SetCursor(ctx, 100); err != nil {
		t.Fatalf("SetCursor() error: %v", err)
	}

	ch, cancel := ds.GetEmails(ctx, false)
	defer cancel()

	r := recvResult(t, ch)
	if r.Err != nil {
		t.Fatalf("emission error: %v", r.Err)
	}
	if len(r.Value) != 0 {
		t.Errorf("summaries = %+v, want empty list", r.Value)
	}
	if list, _ := fp.calls(); list != 0 {
		t.Errorf("listing calls = %d, want 0 for a synced empty mailbox", list)
	}
}

func TestGetEmails_NeverSyncedForcesFetch(t *testing.T) {
	fp := &fakeProvider{
		refs:     []provider.MessageRef{{ID: "m1"}},
		messages: map[string]*provider.Message{"m1": wireMessage("m1")},
	}
	ds, db := newTestSource(t, fp)
	ctx := context.Background()

	ch, cancel := ds.GetEmails(ctx, false)
	defer cancel()

	r := recvResult(t, ch)
	if r.Err != nil {
		t.Fatalf("emission error: %v", r.Err)
	}
	if len(r.Value) != 1 || r.Value[0].ID != "m1" {
		t.Errorf("summaries = %+v, want fetched mailbox", r.Value)
	}
	if list, _ := fp.calls(); list != 1 {
		t.Errorf("listing calls = %d, want 1", list)
	}

	// Refresh-added messages land fully hydrated.
	rec, err := db.GetMail(ctx, "m1")
	if err != nil {
		t.Fatalf("GetMail() error: %v", err)
	}
	if !rec.Hydrated() {
		t.Error("refreshed record not hydrated")
	}
}

func TestGetMail_HydrationGate(t *testing.T) {
	fp := &fakeProvider{
		messages: map[string]*provider.Message{"m1": wireMessage("m1")},
	}
	ds, db := newTestSource(t, fp)
	ctx := context.Background()

	// Seed a summary-only row, as a listing refresh would.
	mail, _ := MailFromMessage(wireMessage("m1"))
	rec := RecordFromSummary(mail.Summary)
	if err := db.UpsertMail(ctx, &rec); err != nil {
		t.Fatalf("UpsertMail() error: %v", err)
	}

	ch, cancel := ds.GetMail(ctx, "m1")
	defer cancel()

	r := recvResult(t, ch)
	if r.Err != nil {
		t.Fatalf("emission error: %v", r.Err)
	}
	if r.Value.Summary.ID != "m1" {
		t.Errorf("mail id = %q", r.Value.Summary.ID)
	}
	if len(r.Value.Part.Parts) == 0 || r.Value.Part.Parts[0].Body.Data != "hello world" {
		t.Errorf("first emission not hydrated: %+v", r.Value.Part)
	}

	got, err := db.GetMail(ctx, "m1")
	if err != nil {
		t.Fatalf("GetMail() error: %v", err)
	}
	if !got.Hydrated() {
		t.Error("stored record not hydrated after stream fetch")
	}
}

func TestGetMail_FetchesAttachments(t *testing.T) {
	fp := &fakeProvider{
		messages: map[string]*provider.Message{"m1": wireMessage("m1")},
	}
	ds, _ := newTestSource(t, fp)

	ch, cancel := ds.GetMail(context.Background(), "m1")
	defer cancel()

	r := recvResult(t, ch)
	if r.Err != nil {
		t.Fatalf("emission error: %v", r.Err)
	}
	image := r.Value.Part.Parts[1]
	if image.Body.Data == "" {
		t.Error("attachment body not hydrated")
	}
	fp.mu.Lock()
	att := fp.attCalls
	fp.mu.Unlock()
	if att != 1 {
		t.Errorf("attachment calls = %d, want 1", att)
	}
}

func TestToggleReadStatus_OfflineKeepsLocalFlip(t *testing.T) {
	fp := &fakeProvider{
		messages:  map[string]*provider.Message{},
		modifyErr: errors.New("network down"),
	}
	ds, db := newTestSource(t, fp)
	ctx := context.Background()

	mail, _ := MailFromMessage(wireMessage("x"))
	rec, _ := RecordFromMail(mail)
	if err := db.UpsertMail(ctx, &rec); err != nil {
		t.Fatalf("UpsertMail() error: %v", err)
	}

	err := ds.ToggleReadStatus(ctx, "x")
	if err == nil {
		t.Fatal("expected remote failure to surface")
	}

	got, getErr := db.GetMail(ctx, "x")
	if getErr != nil {
		t.Fatalf("GetMail() error: %v", getErr)
	}
	if got.IsRead == rec.IsRead {
		t.Error("local read flag not flipped despite remote failure")
	}
}

func TestUpdateReadStatus_NoopWhenMatching(t *testing.T) {
	fp := &fakeProvider{messages: map[string]*provider.Message{}}
	ds, db := newTestSource(t, fp)
	ctx := context.Background()

	mail, _ := MailFromMessage(wireMessage("x"))
	rec, _ := RecordFromMail(mail)
	rec.IsRead = true
	if err := db.UpsertMail(ctx, &rec); err != nil {
		t.Fatalf("UpsertMail() error: %v", err)
	}

	if err := ds.UpdateReadStatus(ctx, "x", true); err != nil {
		t.Fatalf("UpdateReadStatus() error: %v", err)
	}

	fp.mu.Lock()
	modify := fp.modifyCalls
	fp.mu.Unlock()
	if modify != 0 {
		t.Errorf("modify calls = %d, want 0 for matching state", modify)
	}
}

func TestDelete_RemovesLocallyAndTrashesRemotely(t *testing.T) {
	fp := &fakeProvider{messages: map[string]*provider.Message{}}
	ds, db := newTestSource(t, fp)
	ctx := context.Background()

	mail, _ := MailFromMessage(wireMessage("x"))
	rec, _ := RecordFromMail(mail)
	if err := db.UpsertMail(ctx, &rec); err != nil {
		t.Fatalf("UpsertMail() error: %v", err)
	}

	if err := ds.Delete(ctx, "x"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := db.GetMail(ctx, "x"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetMail() error = %v, want ErrNotFound", err)
	}
	fp.mu.Lock()
	trash := fp.trashCalls
	fp.mu.Unlock()
	if trash != 1 {
		t.Errorf("trash calls = %d, want 1", trash)
	}
}

func TestGetFullUnreadMails_SkipsAlreadyHydrated(t *testing.T) {
	fp := &fakeProvider{
		messages: map[string]*provider.Message{
			"cold": wireMessage("cold"),
		},
	}
	ds, db := newTestSource(t, fp)
	ctx := context.Background()
	if err := db.SetCursor(ctx, 100); err != nil {
		t.Fatalf("SetCursor() error: %v", err)
	}

	warmMail, _ := MailFromMessage(wireMessage("warm"))
	warm, _ := RecordFromMail(warmMail)
	if err := db.UpsertMail(ctx, &warm); err != nil {
		t.Fatalf("UpsertMail(warm) error: %v", err)
	}
	coldMail, _ := MailFromMessage(wireMessage("cold"))
	cold := RecordFromSummary(coldMail.Summary)
	if err := db.UpsertMail(ctx, &cold); err != nil {
		t.Fatalf("UpsertMail(cold) error: %v", err)
	}

	ch, cancel := ds.GetFullUnreadMails(ctx)
	defer cancel()

	r := recvResult(t, ch)
	if r.Err != nil {
		t.Fatalf("emission error: %v", r.Err)
	}
	if len(r.Value) != 2 {
		t.Fatalf("unread count = %d, want 2", len(r.Value))
	}
	for _, mail := range r.Value {
		if len(mail.Part.Parts) == 0 {
			t.Errorf("mail %s emitted without body", mail.Summary.ID)
		}
	}

	// Only the summary-only record should have been fetched.
	if _, get := fp.calls(); get != 1 {
		t.Errorf("get calls = %d, want 1", get)
	}
}
