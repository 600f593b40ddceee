package cache

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/kusius/letterbox/internal/domain"
	"github.com/kusius/letterbox/internal/provider"
	"github.com/kusius/letterbox/internal/store"
	mailsync "github.com/kusius/letterbox/internal/sync"
)

// Message part data arrives base64url encoded, usually without padding.
var base64url = base64.URLEncoding.WithPadding(base64.NoPadding)

// SummaryFromMessage maps a remote message to a listing summary. ok is false
// when the From header does not split into "Name <email>"; such messages are
// dropped rather than stored half-populated.
func SummaryFromMessage(msg *provider.Message) (domain.MailSummary, bool) {
	name, email, ok := domain.SplitSender(msg.Header("From"))
	if !ok {
		return domain.MailSummary{}, false
	}
	millis, _ := parseMillis(msg.InternalDate)
	return domain.MailSummary{
		ID:          msg.ID,
		Title:       msg.Header("Subject"),
		Sender:      name,
		SenderEmail: email,
		Summary:     msg.Snippet,
		ReceivedAt:  time.UnixMilli(millis),
		IsRead:      !msg.HasLabel(provider.LabelUnread),
	}, true
}

// MailFromMessage maps a remote message with its payload tree to a hydrated
// Mail. ok is false when the sender is unparseable or the payload is missing.
func MailFromMessage(msg *provider.Message) (*domain.Mail, bool) {
	summary, ok := SummaryFromMessage(msg)
	if !ok || msg.Payload == nil {
		return nil, false
	}
	return &domain.Mail{Summary: summary, Part: partFromMessagePart(msg.Payload)}, true
}

func partFromMessagePart(p *provider.MessagePart) domain.MailPart {
	part := domain.MailPart{
		MimeType: domain.ParseMimeType(p.MimeType),
		FileName: p.FileName,
	}
	if p.Body != nil {
		body := &domain.MailPartBody{
			AttachmentID: p.Body.AttachmentID,
			Size:         p.Body.Size,
		}
		if p.Body.Data != "" {
			if part.MimeType.IsText() {
				body.Data = decodeText(p.Body.Data)
			} else {
				// Binary parts keep their wire encoding until rendered.
				body.Data = p.Body.Data
			}
		}
		part.Body = body
	}
	for _, child := range p.Parts {
		if child == nil {
			continue
		}
		part.Parts = append(part.Parts, partFromMessagePart(child))
	}
	return part
}

// decodeText decodes base64url part data to text. Undecodable data is
// returned as-is so a single bad part renders as a fallback instead of
// failing the whole message.
func decodeText(data string) string {
	b, err := base64url.DecodeString(data)
	if err != nil {
		return data
	}
	return string(b)
}

// RecordFromMail serializes a hydrated mail into its persisted form.
func RecordFromMail(m *domain.Mail) (store.MailRecord, error) {
	raw, err := json.Marshal(m.Part)
	if err != nil {
		return store.MailRecord{}, fmt.Errorf("failed to serialize body of mail %s: %w", m.Summary.ID, err)
	}
	rec := RecordFromSummary(m.Summary)
	rec.Raw = raw
	return rec, nil
}

// RecordFromSummary builds a summary-only (un-hydrated) persisted record.
func RecordFromSummary(s domain.MailSummary) store.MailRecord {
	return store.MailRecord{
		ID:                   s.ID,
		Title:                s.Title,
		Sender:               s.Sender,
		SenderEmail:          s.SenderEmail,
		Summary:              s.Summary,
		ReceivedAtUnixMillis: s.ReceivedAt.UnixMilli(),
		IsRead:               s.IsRead,
	}
}

// SummaryFromRecord maps a persisted record back to its listing summary.
func SummaryFromRecord(rec *store.MailRecord) domain.MailSummary {
	return domain.MailSummary{
		ID:          rec.ID,
		Title:       rec.Title,
		Sender:      rec.Sender,
		SenderEmail: rec.SenderEmail,
		Summary:     rec.Summary,
		ReceivedAt:  time.UnixMilli(rec.ReceivedAtUnixMillis),
		IsRead:      rec.IsRead,
	}
}

// MailFromRecord deserializes a hydrated record into a full Mail. It fails
// on records whose body has not been hydrated yet.
func MailFromRecord(rec *store.MailRecord) (*domain.Mail, error) {
	if !rec.Hydrated() {
		return nil, fmt.Errorf("mail %s has no hydrated body", rec.ID)
	}
	var part domain.MailPart
	if err := json.Unmarshal(rec.Raw, &part); err != nil {
		return nil, fmt.Errorf("failed to decode stored body of mail %s: %w", rec.ID, err)
	}
	return &domain.Mail{Summary: SummaryFromRecord(rec), Part: part}, nil
}

// MutationsFromActions converts a refresh engine batch from its network
// representation into local store mutations. Messages that fail to convert
// are logged and dropped; they never abort the batch.
func MutationsFromActions(actions []mailsync.Action) []store.Mutation {
	batch := make([]store.Mutation, 0, len(actions))
	for _, action := range actions {
		switch action.Kind {
		case mailsync.ActionAdded:
			recs := make([]store.MailRecord, 0, len(action.Mails))
			for i := range action.Mails {
				mail, ok := MailFromMessage(&action.Mails[i])
				if !ok {
					log.Printf("[cache] dropping unparseable message %s", action.Mails[i].ID)
					continue
				}
				rec, err := RecordFromMail(mail)
				if err != nil {
					log.Printf("[cache] dropping message %s: %v", mail.Summary.ID, err)
					continue
				}
				recs = append(recs, rec)
			}
			if len(recs) > 0 {
				batch = append(batch, store.Added(recs))
			}
		case mailsync.ActionDeleted:
			if len(action.IDs) > 0 {
				batch = append(batch, store.Deleted(action.IDs))
			}
		}
	}
	return batch
}

func parseMillis(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
