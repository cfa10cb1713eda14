package extractor

import "context"

// Result is the tagged outcome of one extraction call. A transport
// failure is the error return of Extract; Result.OK distinguishes a
// usable event from a semantic failure the service itself explained.
type Result struct {
	OK            bool
	FailureReason string
	Title         string
	StartTime     string
	EndTime       string
	Description   string
	Location      string
	TokensUsed    int
}

// Extractor converts free-form text (and at most one image) into a
// structured calendar event.
type Extractor interface {
	Extract(ctx context.Context, text, imagePath string) (*Result, error)
}
