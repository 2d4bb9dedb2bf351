package lyrics

// DefaultThreshold is the similarity a lyric line must exceed to replace a
// transcript segment's text.
const DefaultThreshold = 50.0

// Reconciler replaces transcript text with the best matching lyric line.
type Reconciler struct {
	// Threshold is compared with a strict greater-than.
	Threshold float64
}

// NewReconciler returns a Reconciler using DefaultThreshold.
func NewReconciler() *Reconciler {
	return &Reconciler{Threshold: DefaultThreshold}
}

// Reconcile returns exactly one ReconciledSegment per input segment, in input
// order. Unmatched segments keep their text byte for byte, surrounding
// whitespace included; empty lyrics leave every segment unmatched. It never fails.
func (r *Reconciler) Reconcile(segments []TranscriptSegment, lyricText string) []ReconciledSegment {
	lines := SplitLines(lyricText)
	out := make([]ReconciledSegment, len(segments))
	for i, seg := range segments {
		out[i] = ReconciledSegment{
			Start:   seg.Start,
			End:     seg.End,
			Text:    seg.Text,
			RawText: seg.Text,
		}

		line, score, ok := BestMatch(seg.Text, lines)
		if !ok {
			continue
		}
		out[i].Score = score
		if score > r.Threshold {
			out[i].Text = line
			out[i].Matched = true
		}
	}
	return out
}

// BestMatch returns the line with the highest TokenSortRatio against text.
// Ties keep the earliest line. ok is false when lines is empty.
func BestMatch(text string, lines []string) (line string, score float64, ok bool) {
	if len(lines) == 0 {
		return "", 0, false
	}
	best, bestScore := 0, -1.0
	for i, candidate := range lines {
		s := TokenSortRatio(text, candidate)
		if s > bestScore {
			best, bestScore = i, s
		}
	}
	return lines[best], bestScore, true
}
