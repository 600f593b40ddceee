package gmail

import (
	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/kusius/letterbox/internal/provider"
)

// mapMessage converts a Gmail API Message to the provider wire type.
func mapMessage(msg *gmailapi.Message) *provider.Message {
	return &provider.Message{
		ID:           msg.Id,
		ThreadID:     msg.ThreadId,
		LabelIDs:     msg.LabelIds,
		Snippet:      msg.Snippet,
		HistoryID:    formatUint(msg.HistoryId),
		InternalDate: formatInt(msg.InternalDate),
		Payload:      mapPart(msg.Payload),
	}
}

func mapPart(part *gmailapi.MessagePart) *provider.MessagePart {
	if part == nil {
		return nil
	}

	headers := make([]provider.Header, 0, len(part.Headers))
	for _, h := range part.Headers {
		headers = append(headers, provider.Header{Name: h.Name, Value: h.Value})
	}

	var body *provider.MessagePartBody
	if part.Body != nil {
		body = &provider.MessagePartBody{
			AttachmentID: part.Body.AttachmentId,
			Size:         part.Body.Size,
			Data:         part.Body.Data,
		}
	}

	parts := make([]*provider.MessagePart, 0, len(part.Parts))
	for _, p := range part.Parts {
		parts = append(parts, mapPart(p))
	}

	return &provider.MessagePart{
		PartID:   part.PartId,
		MimeType: part.MimeType,
		FileName: part.Filename,
		Headers:  headers,
		Body:     body,
		Parts:    parts,
	}
}

// mapHistoryPage converts a Gmail history listing response to one page of
// provider history records.
func mapHistoryPage(resp *gmailapi.ListHistoryResponse) *provider.HistoryPage {
	page := &provider.HistoryPage{
		NextPageToken: resp.NextPageToken,
		HistoryID:     formatUint(resp.HistoryId),
	}

	for _, h := range resp.History {
		rec := provider.HistoryRecord{ID: formatUint(h.Id)}

		for _, a := range h.MessagesAdded {
			if a.Message == nil {
				continue
			}
			rec.MessagesAdded = append(rec.MessagesAdded, provider.MessageRef{
				ID:       a.Message.Id,
				ThreadID: a.Message.ThreadId,
			})
		}
		for _, d := range h.MessagesDeleted {
			if d.Message == nil {
				continue
			}
			rec.MessagesDeleted = append(rec.MessagesDeleted, provider.MessageRef{
				ID:       d.Message.Id,
				ThreadID: d.Message.ThreadId,
			})
		}
		for _, la := range h.LabelsAdded {
			if la.Message == nil {
				continue
			}
			rec.LabelsAdded = append(rec.LabelsAdded, provider.LabelChange{
				Message:  provider.MessageRef{ID: la.Message.Id, ThreadID: la.Message.ThreadId},
				LabelIDs: la.LabelIds,
			})
		}
		for _, lr := range h.LabelsRemoved {
			if lr.Message == nil {
				continue
			}
			rec.LabelsRemoved = append(rec.LabelsRemoved, provider.LabelChange{
				Message:  provider.MessageRef{ID: lr.Message.Id, ThreadID: lr.Message.ThreadId},
				LabelIDs: lr.LabelIds,
			})
		}

		page.History = append(page.History, rec)
	}

	return page
}
