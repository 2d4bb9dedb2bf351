// Package lyrics reconciles a noisy speech transcription against the
// authoritative lyric text of a song.
//
// Timing always comes from the transcription; wording comes from the lyric
// line that best matches each segment under an order-insensitive fuzzy
// similarity. Matching is a best global match per segment: lines are not
// consumed and no monotonic ordering is enforced, so a repeated chorus line
// can be selected for several segments.
package lyrics
