package lyrics

// Word is a single recognized word with its timing, when the transcriber
// reports word timestamps.
type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// TranscriptSegment is one phrase recognized by the speech transcriber.
// Times are seconds from the start of the audio.
type TranscriptSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []Word  `json:"words,omitempty"`
}

// ReconciledSegment is a transcript segment whose text has possibly been
// replaced by the matching lyric line. Start and End are always the
// transcript's.
type ReconciledSegment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
	Matched bool    `json:"matched"`
	Score   float64 `json:"score"`
	RawText string  `json:"raw_text"`
}
