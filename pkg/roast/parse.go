package roast

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/menta2k/plate-roaster/internal/log"
	"github.com/menta2k/plate-roaster/pkg/types"
)

// Values substituted for missing or invalid fields of a model reply
const (
	FallbackTarget   = "plate"
	FallbackRoast    = "This plate looks like the ingredients filed for divorce."
	FallbackRating   = 2.1
	FallbackSeverity = types.SeverityMedium
)

// Fallback is the verdict used when nothing usable came back
func Fallback() types.Roast {
	return types.Roast{
		Target:   FallbackTarget,
		Roast:    FallbackRoast,
		Rating:   FallbackRating,
		Severity: FallbackSeverity,
	}
}

// rawRoast accepts loosely typed model output
type rawRoast struct {
	Headline string `json:"headline"`
	Target   string `json:"target"`
	Roast    string `json:"roast"`
	Rating   any    `json:"rating"`
	Severity string `json:"severity"`
}

// Parse turns a model reply into a verdict. It never fails: every field
// that is missing or invalid is replaced by its fallback, and the rating
// is clamped to [0, ratingMax].
func Parse(raw string, ratingMax float64) types.Roast {
	cleaned := sanitizeModelJSON(raw)

	var r rawRoast
	if !strings.HasPrefix(cleaned, "{") {
		log.Printf("[roast] Warning: model returned non-JSON response, using fallback")
		return Normalize(Fallback(), ratingMax)
	}
	if err := json.Unmarshal([]byte(cleaned), &r); err != nil {
		log.Printf("[roast] Warning: failed to parse model response, using fallback: %v", err)
		return Normalize(Fallback(), ratingMax)
	}

	out := types.Roast{
		Headline: r.Headline,
		Target:   r.Target,
		Roast:    r.Roast,
		Rating:   FallbackRating,
		Severity: types.Severity(r.Severity),
	}
	if v, ok := ratingValue(r.Rating); ok {
		out.Rating = v
	}
	return Normalize(out, ratingMax)
}

// Normalize applies field fallbacks, upper-cases the headline and clamps
// the rating.
func Normalize(r types.Roast, ratingMax float64) types.Roast {
	r.Target = strings.TrimSpace(r.Target)
	if r.Target == "" {
		r.Target = FallbackTarget
	}
	r.Roast = strings.TrimSpace(r.Roast)
	if r.Roast == "" {
		r.Roast = FallbackRoast
	}
	r.Headline = strings.ToUpper(strings.TrimSpace(r.Headline))

	sev, ok := types.ParseSeverity(string(r.Severity))
	if !ok && r.Severity != "" {
		log.Printf("[roast] Warning: unknown severity %q, using %s", r.Severity, FallbackSeverity)
	}
	r.Severity = sev

	if math.IsNaN(r.Rating) {
		r.Rating = FallbackRating
	}
	r.Rating = Clamp(r.Rating, ratingMax)
	return r
}

// Clamp bounds rating to [0, max]
func Clamp(rating, max float64) float64 {
	if rating < 0 {
		return 0
	}
	if rating > max {
		return max
	}
	return rating
}

func ratingValue(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(x), "/10"), 64)
		return f, err == nil
	}
	return 0, false
}

var (
	reBlock    = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLine     = regexp.MustCompile(`(?m)^\s*//.*$`)
	reTrailing = regexp.MustCompile(`,(\s*[}\]])`)
)

// sanitizeModelJSON removes code fences, comments, and trailing commas from JSON response
func sanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	// Strip triple-backtick fences if present
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "`")

	raw = reBlock.ReplaceAllString(raw, "")
	raw = reLine.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")

	// Keep only the outermost {...}
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}
