package lyrics

import "testing"

const lyricText = "I love you baby\nHold me tonight\n"

func TestReconcile_ReplacesCloseMatch(t *testing.T) {
	r := NewReconciler()
	segs := []TranscriptSegment{{Start: 1.0, End: 2.5, Text: "i love yu baby"}}

	got := r.Reconcile(segs, lyricText)

	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].Text != "I love you baby" {
		t.Errorf("Text = %q, want %q", got[0].Text, "I love you baby")
	}
	if !got[0].Matched {
		t.Error("Matched = false, want true")
	}
	if got[0].RawText != "i love yu baby" {
		t.Errorf("RawText = %q", got[0].RawText)
	}
	if got[0].Start != 1.0 || got[0].End != 2.5 {
		t.Errorf("timing changed: %v-%v", got[0].Start, got[0].End)
	}
}

func TestReconcile_KeepsRawBelowThreshold(t *testing.T) {
	r := NewReconciler()
	segs := []TranscriptSegment{{Start: 3.0, End: 4.0, Text: "umm yeah so"}}

	got := r.Reconcile(segs, lyricText)

	if got[0].Text != "umm yeah so" {
		t.Errorf("Text = %q, want raw text", got[0].Text)
	}
	if got[0].Matched {
		t.Error("Matched = true, want false")
	}
	if got[0].Score >= DefaultThreshold {
		t.Errorf("Score = %v, want below threshold", got[0].Score)
	}
}

func TestReconcile_ThresholdIsStrict(t *testing.T) {
	r := &Reconciler{Threshold: 50}
	got := r.Reconcile([]TranscriptSegment{{Text: "ab"}}, "ac")
	if got[0].Matched || got[0].Text != "ab" {
		t.Errorf("score exactly at threshold replaced text: %+v", got[0])
	}

	r.Threshold = 49.9
	got = r.Reconcile([]TranscriptSegment{{Text: "ab"}}, "ac")
	if !got[0].Matched || got[0].Text != "ac" {
		t.Errorf("score above threshold kept raw text: %+v", got[0])
	}
}

func TestReconcile_EmptyLyricsFallsBack(t *testing.T) {
	r := NewReconciler()
	segs := []TranscriptSegment{
		{Start: 0, End: 1, Text: "first"},
		{Start: 1, End: 2, Text: "second"},
	}

	for _, text := range []string{"", "\n\n  \n"} {
		got := r.Reconcile(segs, text)
		if len(got) != len(segs) {
			t.Fatalf("len = %d, want %d", len(got), len(segs))
		}
		for i := range segs {
			if got[i].Text != segs[i].Text || got[i].Matched {
				t.Errorf("segment %d = %+v, want unchanged", i, got[i])
			}
		}
	}
}

func TestReconcile_KeepsPaddedRawTextVerbatim(t *testing.T) {
	r := NewReconciler()

	got := r.Reconcile([]TranscriptSegment{{Text: " i love yu baby"}}, "")
	if got[0].Text != " i love yu baby" || got[0].RawText != " i love yu baby" {
		t.Errorf("empty lyrics: Text = %q, RawText = %q, want leading space kept", got[0].Text, got[0].RawText)
	}

	got = r.Reconcile([]TranscriptSegment{{Text: " umm yeah so "}}, lyricText)
	if got[0].Matched {
		t.Fatalf("unexpected match: %+v", got[0])
	}
	if got[0].Text != " umm yeah so " {
		t.Errorf("below threshold: Text = %q, want %q", got[0].Text, " umm yeah so ")
	}

	got = r.Reconcile([]TranscriptSegment{{Text: "  hold me tonite \n"}}, lyricText)
	if !got[0].Matched || got[0].Text != "Hold me tonight" {
		t.Errorf("padded text did not match: %+v", got[0])
	}
	if got[0].RawText != "  hold me tonite \n" {
		t.Errorf("RawText = %q, want original text", got[0].RawText)
	}
}

func TestReconcile_PreservesCountOrderAndTiming(t *testing.T) {
	r := NewReconciler()
	segs := []TranscriptSegment{
		{Start: 0.5, End: 1.5, Text: "hold me tonite"},
		{Start: 1.5, End: 1.5, Text: ""},
		{Start: 2.0, End: 3.25, Text: "i love yu baby"},
		{Start: 3.25, End: 4.0, Text: "i love you baby"},
		{Start: 4.0, End: 9.0, Text: "xyz"},
	}

	got := r.Reconcile(segs, lyricText)

	if len(got) != len(segs) {
		t.Fatalf("len = %d, want %d", len(got), len(segs))
	}
	for i := range segs {
		if got[i].Start != segs[i].Start || got[i].End != segs[i].End {
			t.Errorf("segment %d timing = %v-%v, want %v-%v", i, got[i].Start, got[i].End, segs[i].Start, segs[i].End)
		}
	}
	if got[0].Text != "Hold me tonight" {
		t.Errorf("segment 0 = %q", got[0].Text)
	}
	if got[1].Text != "" || got[1].Matched {
		t.Errorf("empty segment = %+v, want emitted unchanged", got[1])
	}
	// The same line may be selected for several segments.
	if got[2].Text != "I love you baby" || got[3].Text != "I love you baby" {
		t.Errorf("repeated line not reused: %q, %q", got[2].Text, got[3].Text)
	}
	if got[4].Text != "xyz" {
		t.Errorf("segment 4 = %q, want raw", got[4].Text)
	}
}

func TestReconcile_NoSegments(t *testing.T) {
	got := NewReconciler().Reconcile(nil, lyricText)
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}

func TestBestMatch_TieKeepsFirstLine(t *testing.T) {
	line, score, ok := BestMatch("abc", []string{"abd", "abe"})
	if !ok {
		t.Fatal("ok = false")
	}
	if line != "abd" {
		t.Errorf("line = %q, want first of tied lines", line)
	}
	if score <= 0 {
		t.Errorf("score = %v", score)
	}
}

func TestBestMatch_NoLines(t *testing.T) {
	if _, _, ok := BestMatch("abc", nil); ok {
		t.Error("ok = true for empty lines")
	}
}
