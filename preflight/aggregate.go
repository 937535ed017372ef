package preflight

import (
	"fmt"
	"strings"
)

// scorer accumulates points, advisories and metric details during one
// analysis. It is exclusively owned by a single analyzer invocation.
type scorer struct {
	score    int
	messages []string
	details  []string
}

func (s *scorer) add(points int) {
	s.score += points
}

func (s *scorer) say(msg string) {
	if strings.TrimSpace(msg) == "" {
		return
	}
	s.messages = append(s.messages, msg)
}

func (s *scorer) detail(format string, args ...any) {
	s.details = append(s.details, fmt.Sprintf(format, args...))
}

// result clamps the accumulated score, deduplicates advisories and applies
// the family's verdict thresholds.
func (s *scorer) result(family Family, th Thresholds) Result {
	score := clampScore(s.score)
	return Result{
		Family:   family,
		Score:    score,
		Verdict:  th.Verdict(score),
		Messages: dedupeMessages(s.messages),
		Details:  s.details,
	}
}

// clampScore bounds a raw accumulated score to [0,100]. Weight tables are
// allowed to overshoot in both directions; the clamp is the invariant.
func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// dedupeMessages trims entries, drops empties, and collapses duplicates to
// first-occurrence order. Idempotent: dedupe(dedupe(x)) == dedupe(x).
func dedupeMessages(msgs []string) []string {
	seen := make(map[string]struct{}, len(msgs))
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}
