package domain

import "strings"

// MimeType enumerates the MIME types the engine understands. Anything else
// maps to MimeUnsupported, which renders as a fallback instead of failing.
type MimeType int

const (
	MimeUnsupported MimeType = iota
	MimeTextPlain
	MimeTextHTML
	MimeMultipartAlternative
	MimeMultipartMixed
	MimeImage
)

// ParseMimeType maps a raw MIME type string to the MimeType enum.
func ParseMimeType(s string) MimeType {
	switch strings.ToLower(s) {
	case "text/plain":
		return MimeTextPlain
	case "text/html":
		return MimeTextHTML
	case "multipart/alternative":
		return MimeMultipartAlternative
	case "multipart/mixed":
		return MimeMultipartMixed
	}
	if strings.HasPrefix(strings.ToLower(s), "image/") {
		return MimeImage
	}
	return MimeUnsupported
}

func (m MimeType) String() string {
	switch m {
	case MimeTextPlain:
		return "text/plain"
	case MimeTextHTML:
		return "text/html"
	case MimeMultipartAlternative:
		return "multipart/alternative"
	case MimeMultipartMixed:
		return "multipart/mixed"
	case MimeImage:
		return "image/*"
	}
	return "unsupported"
}

// IsText reports whether part data should be treated as decoded text.
func (m MimeType) IsText() bool {
	return m == MimeTextPlain || m == MimeTextHTML
}
