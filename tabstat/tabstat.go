// Package tabstat computes structural consistency metrics over tabular data.
//
// Inputs are sampled: callers are expected to cap what they feed in at
// MaxSampleRows rows or MaxSampleBytes bytes of source text. The caps bound
// worst-case CPU cost on huge files; they are the backpressure mechanism of
// the pipeline, not a wall-clock timeout.
package tabstat

import "strings"

const (
	// MaxSampleRows is the row cap applied when sampling a tabular file.
	MaxSampleRows = 200

	// MaxSampleBytes is the byte cap applied when sampling source text.
	MaxSampleBytes = 250_000
)

// delimiters in priority order; the first entry wins total-count ties.
var delimiters = []rune{',', '\t', ';', '|'}

// DetectDelimiter inspects a text sample and returns the most plausible
// field separator among comma, tab, semicolon and pipe. Counting is done
// outside double-quoted regions so quoted prose does not skew the result.
// Comma wins when nothing is found or on an exact tie.
func DetectDelimiter(sample string) rune {
	counts := map[rune]int{}
	inQuotes := false
	for _, r := range sample {
		if r == '"' {
			inQuotes = !inQuotes
			continue
		}
		if inQuotes {
			continue
		}
		for _, d := range delimiters {
			if r == d {
				counts[d]++
			}
		}
	}
	best := ','
	bestCount := 0
	for _, d := range delimiters {
		if counts[d] > bestCount {
			best = d
			bestCount = counts[d]
		}
	}
	return best
}

// Mode returns the most frequent value in a sequence of small non-negative
// integers. Ties are broken by the first-encountered maximum: the value
// whose count reaches the winning tally earliest in the input wins. The
// tie-break is part of the contract — ConsistencyRate depends on it.
// Returns 0 for empty input.
func Mode(counts []int) int {
	if len(counts) == 0 {
		return 0
	}
	freq := map[int]int{}
	best := counts[0]
	bestFreq := 0
	for _, c := range counts {
		freq[c]++
		if freq[c] > bestFreq {
			best = c
			bestFreq = freq[c]
		}
	}
	return best
}

// ConsistencyRate returns the fraction of rows whose column count differs
// from the mode. 0 means perfectly rectangular; returns 0 for empty input.
func ConsistencyRate(counts []int) float64 {
	if len(counts) == 0 {
		return 0
	}
	mode := Mode(counts)
	diff := 0
	for _, c := range counts {
		if c != mode {
			diff++
		}
	}
	return float64(diff) / float64(len(counts))
}

// EmptyCellRate returns the fraction of empty cells across all rows. Cells
// are trimmed before the emptiness test. A file with zero cells yields 1:
// treated as worst case rather than a divide-by-zero crash.
func EmptyCellRate(rows [][]string) float64 {
	total := 0
	empty := 0
	for _, row := range rows {
		for _, cell := range row {
			total++
			if strings.TrimSpace(cell) == "" {
				empty++
			}
		}
	}
	if total == 0 {
		return 1
	}
	return float64(empty) / float64(total)
}

// SampleRows truncates rows to the MaxSampleRows cap.
func SampleRows(rows [][]string) [][]string {
	if len(rows) > MaxSampleRows {
		return rows[:MaxSampleRows]
	}
	return rows
}

// ColumnCounts returns the per-row column counts for rows.
func ColumnCounts(rows [][]string) []int {
	counts := make([]int, len(rows))
	for i, row := range rows {
		counts[i] = len(row)
	}
	return counts
}
