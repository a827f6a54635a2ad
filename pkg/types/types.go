package types

import "strings"

// Severity grades how badly the plate fared; it selects the result background.
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// ParseSeverity normalizes a model-provided severity. Unknown values report ok=false.
func ParseSeverity(s string) (Severity, bool) {
	switch Severity(strings.ToUpper(strings.TrimSpace(s))) {
	case SeverityLow:
		return SeverityLow, true
	case SeverityMedium:
		return SeverityMedium, true
	case SeverityHigh:
		return SeverityHigh, true
	}
	return SeverityMedium, false
}

// Roast is the verdict returned by the vision model
type Roast struct {
	Headline string   `json:"headline,omitempty"`
	Target   string   `json:"target"`
	Roast    string   `json:"roast"`
	Rating   float64  `json:"rating"`
	Severity Severity `json:"severity"`
}

// RoastRequest is the wire payload sent to the roast function
type RoastRequest struct {
	ImageBase64 string `json:"imageBase64"`
	MimeType    string `json:"mimeType"`
}

// Photo is an encoded plate image plus the ephemeral handle used to preview it.
type Photo struct {
	Name     string
	MimeType string
	Data     []byte
	Width    int
	Height   int
	Handle   string
}
