package gmail

import (
	"testing"

	gmailapi "google.golang.org/api/gmail/v1"
)

func TestMapMessage(t *testing.T) {
	msg := &gmailapi.Message{
		Id:           "msg-1",
		ThreadId:     "thread-1",
		LabelIds:     []string{"INBOX", "UNREAD"},
		Snippet:      "Hello there",
		HistoryId:    42,
		InternalDate: 1718445000000,
		Payload: &gmailapi.MessagePart{
			PartId:   "",
			MimeType: "multipart/alternative",
			Headers: []*gmailapi.MessagePartHeader{
				{Name: "From", Value: "Alice <alice@example.com>"},
				{Name: "Subject", Value: "Greetings"},
			},
			Parts: []*gmailapi.MessagePart{
				{
					PartId:   "0",
					MimeType: "text/plain",
					Body:     &gmailapi.MessagePartBody{Data: "SGVsbG8", Size: 5},
				},
				{
					PartId:   "1",
					MimeType: "image/png",
					Filename: "cat.png",
					Body:     &gmailapi.MessagePartBody{AttachmentId: "att-1", Size: 1024},
				},
			},
		},
	}

	got := mapMessage(msg)

	if got.ID != "msg-1" || got.ThreadID != "thread-1" {
		t.Errorf("ids = (%q, %q), want (msg-1, thread-1)", got.ID, got.ThreadID)
	}
	if got.HistoryID != "42" {
		t.Errorf("HistoryID = %q, want %q", got.HistoryID, "42")
	}
	if got.InternalDate != "1718445000000" {
		t.Errorf("InternalDate = %q, want %q", got.InternalDate, "1718445000000")
	}
	if !got.HasLabel("UNREAD") {
		t.Error("expected UNREAD label")
	}
	if got.Header("From") != "Alice <alice@example.com>" {
		t.Errorf("Header(From) = %q", got.Header("From"))
	}
	if got.Header("X-Missing") != "" {
		t.Errorf("Header(X-Missing) = %q, want empty", got.Header("X-Missing"))
	}

	if got.Payload == nil || len(got.Payload.Parts) != 2 {
		t.Fatalf("payload parts = %v, want 2 parts", got.Payload)
	}
	text := got.Payload.Parts[0]
	if text.MimeType != "text/plain" || text.Body == nil || text.Body.Data != "SGVsbG8" {
		t.Errorf("text part = %+v", text)
	}
	img := got.Payload.Parts[1]
	if img.FileName != "cat.png" || img.Body == nil || img.Body.AttachmentID != "att-1" {
		t.Errorf("image part = %+v", img)
	}
}

func TestMapMessage_ZeroHistoryID(t *testing.T) {
	got := mapMessage(&gmailapi.Message{Id: "msg-1"})
	if got.HistoryID != "" {
		t.Errorf("HistoryID = %q, want empty for zero value", got.HistoryID)
	}
	if got.Payload != nil {
		t.Errorf("Payload = %+v, want nil", got.Payload)
	}
}

func TestMapHistoryPage(t *testing.T) {
	resp := &gmailapi.ListHistoryResponse{
		HistoryId:     105,
		NextPageToken: "next",
		History: []*gmailapi.History{
			{
				Id: 101,
				MessagesAdded: []*gmailapi.HistoryMessageAdded{
					{Message: &gmailapi.Message{Id: "a", ThreadId: "t-a"}},
					{Message: nil},
				},
				MessagesDeleted: []*gmailapi.HistoryMessageDeleted{
					{Message: &gmailapi.Message{Id: "d"}},
				},
				LabelsAdded: []*gmailapi.HistoryLabelAdded{
					{Message: &gmailapi.Message{Id: "b"}, LabelIds: []string{"SPAM"}},
				},
				LabelsRemoved: []*gmailapi.HistoryLabelRemoved{
					{Message: &gmailapi.Message{Id: "c"}, LabelIds: []string{"INBOX"}},
				},
			},
		},
	}

	page := mapHistoryPage(resp)

	if page.HistoryID != "105" {
		t.Errorf("HistoryID = %q, want %q", page.HistoryID, "105")
	}
	if page.NextPageToken != "next" {
		t.Errorf("NextPageToken = %q, want %q", page.NextPageToken, "next")
	}
	if len(page.History) != 1 {
		t.Fatalf("history count = %d, want 1", len(page.History))
	}
	rec := page.History[0]
	if rec.ID != "101" {
		t.Errorf("record ID = %q, want %q", rec.ID, "101")
	}
	if len(rec.MessagesAdded) != 1 || rec.MessagesAdded[0].ID != "a" {
		t.Errorf("MessagesAdded = %v, want single ref a", rec.MessagesAdded)
	}
	if len(rec.MessagesDeleted) != 1 || rec.MessagesDeleted[0].ID != "d" {
		t.Errorf("MessagesDeleted = %v, want single ref d", rec.MessagesDeleted)
	}
	if len(rec.LabelsAdded) != 1 || rec.LabelsAdded[0].Message.ID != "b" || rec.LabelsAdded[0].LabelIDs[0] != "SPAM" {
		t.Errorf("LabelsAdded = %v", rec.LabelsAdded)
	}
	if len(rec.LabelsRemoved) != 1 || rec.LabelsRemoved[0].Message.ID != "c" {
		t.Errorf("LabelsRemoved = %v", rec.LabelsRemoved)
	}
}
