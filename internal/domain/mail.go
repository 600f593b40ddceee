package domain

import (
	"regexp"
	"time"
)

// senderPattern splits a "Name <email>" From header into its two parts.
// Headers that do not match are considered unparseable and the whole
// summary is dropped rather than partially populated.
var senderPattern = regexp.MustCompile(`^(.*?)\s*<([^>]+)>$`)

// SplitSender parses a From header of the form "Name <addr>" and returns
// the display name and email address. ok is false when the header does not
// match the expected shape.
func SplitSender(header string) (name, email string, ok bool) {
	m := senderPattern.FindStringSubmatch(header)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// MailSummary is the listing view of a message: everything needed to render
// a row in the mailbox without the body.
type MailSummary struct {
	ID          string
	Title       string
	Sender      string
	SenderEmail string
	Summary     string
	ReceivedAt  time.Time
	IsRead      bool
}

// MailPartBody holds the content of a leaf MIME part. Data is the decoded
// text for textual parts; attachment parts carry an AttachmentID and the
// data is resolved separately.
type MailPartBody struct {
	AttachmentID string `json:"attachmentId,omitempty"`
	Size         int64  `json:"size"`
	Data         string `json:"data,omitempty"`
}

// MailPart is a node in the recursive MIME tree of a message. A node either
// has a Body or child Parts, consistent with multipart semantics.
type MailPart struct {
	MimeType MimeType      `json:"mimeType"`
	FileName string        `json:"fileName,omitempty"`
	Body     *MailPartBody `json:"body,omitempty"`
	Parts    []MailPart    `json:"parts,omitempty"`
}

// Mail is a fully hydrated message: its summary plus the root MIME part.
type Mail struct {
	Summary MailSummary
	Part    MailPart
}
