package ocr

import (
	"regexp"
	"strings"

	"github.com/martout2002/JBbot/internal/model"
)

var travelTimePattern = regexp.MustCompile(`(?i)(\d+\s*mins? to JB)`)

// ParseStatus pulls the "<n> min(s) to JB" phrase out of OCR text. When the
// pattern is absent it falls back to the first line mentioning "min to JB"
// or "mins to JB", and finally to model.StatusUnavailable.
func ParseStatus(text string) string {
	if m := travelTimePattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	for _, line := range strings.Split(text, "\n") {
		if strings.Contains(line, "mins to JB") || strings.Contains(line, "min to JB") {
			return strings.TrimSpace(line)
		}
	}
	return model.StatusUnavailable
}
