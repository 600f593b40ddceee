package provider

import "context"

// Gmail system labels the sync engine cares about.
const (
	LabelInbox  = "INBOX"
	LabelUnread = "UNREAD"
	LabelSpam   = "SPAM"
)

// MessageRef identifies a message without its content.
type MessageRef struct {
	ID       string
	ThreadID string
}

// Header is a single RFC 2822 header of a message part.
type Header struct {
	Name  string
	Value string
}

// MessagePartBody holds the content of a MIME part as delivered on the wire.
// Data is base64url encoded. Parts larger than the inline limit carry only an
// AttachmentID and are fetched separately.
type MessagePartBody struct {
	AttachmentID string
	Size         int64
	Data         string
}

// MessagePart is a node of the remote MIME tree.
type MessagePart struct {
	PartID   string
	MimeType string
	FileName string
	Headers  []Header
	Body     *MessagePartBody
	Parts    []*MessagePart
}

// Message is a full message as returned by the remote with format=full.
// HistoryID and InternalDate are numeric strings on the wire; values that
// fail to parse are treated as absent, never as errors.
type Message struct {
	ID           string
	ThreadID     string
	LabelIDs     []string
	Snippet      string
	HistoryID    string
	InternalDate string
	Payload      *MessagePart
}

// Header returns the value of the named payload header, or "" when absent.
func (m *Message) Header(name string) string {
	if m.Payload == nil {
		return ""
	}
	for _, h := range m.Payload.Headers {
		if h.Name == name {
			return h.Value
		}
	}
	return ""
}

// HasLabel reports whether the message carries the given label.
func (m *Message) HasLabel(label string) bool {
	for _, l := range m.LabelIDs {
		if l == label {
			return true
		}
	}
	return false
}

// LabelChange records a label addition or removal observed in history.
type LabelChange struct {
	Message  MessageRef
	LabelIDs []string
}

// HistoryRecord is a single changelog entry keyed by a checkpoint id.
type HistoryRecord struct {
	ID              string
	MessagesAdded   []MessageRef
	MessagesDeleted []MessageRef
	LabelsAdded     []LabelChange
	LabelsRemoved   []LabelChange
}

// HistoryPage is one page of the history-since-cursor endpoint. HistoryID is
// the mailbox checkpoint current at the time of the response.
type HistoryPage struct {
	History       []HistoryRecord
	NextPageToken string
	HistoryID     string
}

// ListOptions filters a message ref listing.
type ListOptions struct {
	LabelIDs  []string
	PageToken string
}

// MailProvider is the narrow remote contract the sync engine consumes.
// Implementations handle authentication transparently: an expired token is
// refreshed once and the request retried before an error surfaces.
type MailProvider interface {
	// ListMessageRefs returns one page of message refs and the token for the
	// next page, or "" when exhausted.
	ListMessageRefs(ctx context.Context, opts ListOptions) ([]MessageRef, string, error)

	// GetMessage fetches a message with its full payload tree.
	GetMessage(ctx context.Context, id string) (*Message, error)

	// HistorySince returns one page of history records after the cursor.
	// The caller drives pagination via HistoryPage.NextPageToken.
	HistorySince(ctx context.Context, cursor uint64, pageToken string) (*HistoryPage, error)

	// ModifyLabels adds and removes labels on a message.
	ModifyLabels(ctx context.Context, id string, add, remove []string) error

	// TrashMessage moves a message to trash.
	TrashMessage(ctx context.Context, id string) error

	// GetAttachment fetches the body of an attachment part.
	GetAttachment(ctx context.Context, messageID, attachmentID string) (*MessagePartBody, error)
}
