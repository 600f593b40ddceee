package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/kusius/letterbox/internal/domain"
)

// printSummaries writes a tabular mailbox listing.
func printSummaries(w io.Writer, summaries []domain.MailSummary) {
	if len(summaries) == 0 {
		fmt.Fprintln(w, "No messages found.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "UNREAD\tFROM\tSUBJECT\tDATE\tMESSAGE_ID")
	for _, s := range summaries {
		unread := " "
		if !s.IsRead {
			unread = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			unread,
			truncate(s.Sender, 30),
			truncate(s.Title, 50),
			s.ReceivedAt.Format("Jan 2, 2006"),
			s.ID,
		)
	}
	tw.Flush()
}

// printMail writes a full mail: headers, the best textual body, and the
// names of any attachments.
func printMail(w io.Writer, m *domain.Mail) {
	fmt.Fprintf(w, "From: %s <%s>\n", m.Summary.Sender, m.Summary.SenderEmail)
	fmt.Fprintf(w, "Subject: %s\n", m.Summary.Title)
	fmt.Fprintf(w, "Date: %s\n", m.Summary.ReceivedAt.Format("Jan 2, 2006 15:04"))
	fmt.Fprintln(w, strings.Repeat("─", 60))

	body := bodyText(&m.Part)
	if body == "" {
		body = "(no readable body)"
	}
	fmt.Fprintln(w, body)

	if names := attachmentNames(&m.Part); len(names) > 0 {
		fmt.Fprintln(w, strings.Repeat("─", 60))
		fmt.Fprintf(w, "Attachments: %s\n", strings.Join(names, ", "))
	}
}

// bodyText picks the best textual rendering of a part tree: text/plain is
// preferred, text/html is the fallback. Unsupported types render nothing
// rather than failing.
func bodyText(part *domain.MailPart) string {
	if text := findText(part, domain.MimeTextPlain); text != "" {
		return text
	}
	return findText(part, domain.MimeTextHTML)
}

func findText(part *domain.MailPart, mime domain.MimeType) string {
	if part.MimeType == mime && part.Body != nil {
		return part.Body.Data
	}
	for i := range part.Parts {
		if text := findText(&part.Parts[i], mime); text != "" {
			return text
		}
	}
	return ""
}

func attachmentNames(part *domain.MailPart) []string {
	var names []string
	if part.FileName != "" {
		names = append(names, part.FileName)
	}
	for i := range part.Parts {
		names = append(names, attachmentNames(&part.Parts[i])...)
	}
	return names
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
