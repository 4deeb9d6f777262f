package transcript

import "math"

// Align assigns a speaker label to every ASR segment by maximal overlap with
// the diarization turns. It is total and order-preserving: the output has one
// entry per input segment, in the same order, and every entry carries a
// non-empty label.
//
// For each segment the overlap with a turn is
// max(0, min(seg.End, turn.End) - max(seg.Start, turn.Start)). The turn with
// the largest overlap wins; on an exact tie the turn with the earlier start
// wins, and if starts are also equal the turn appearing first in the input
// wins. Segments with no positive overlap (including zero-length segments)
// receive FallbackSpeaker.
func Align(segments []Segment, turns []Turn) []SpeakerSegment {
	out := make([]SpeakerSegment, len(segments))
	for i, s := range segments {
		out[i] = SpeakerSegment{
			Start:   s.Start,
			End:     s.End,
			Text:    s.Text,
			Speaker: bestSpeaker(s, turns),
		}
	}
	return out
}

func bestSpeaker(s Segment, turns []Turn) string {
	speaker := ""
	bestOverlap := 0.0
	bestStart := math.Inf(1)

	for _, t := range turns {
		overlap := math.Min(s.End, t.End) - math.Max(s.Start, t.Start)
		if overlap <= 0 {
			continue
		}
		if overlap > bestOverlap || (overlap == bestOverlap && t.Start < bestStart) {
			speaker = t.Speaker
			bestOverlap = overlap
			bestStart = t.Start
		}
	}

	if speaker == "" {
		return FallbackSpeaker
	}
	return speaker
}

// CountSpeakers returns the number of distinct speaker labels actually
// assigned across the segments. This is the result's NumSpeakers: transient
// diarization turns that never win an overlap do not count.
func CountSpeakers(segments []SpeakerSegment) int {
	seen := make(map[string]struct{}, 4)
	for _, s := range segments {
		seen[s.Speaker] = struct{}{}
	}
	return len(seen)
}
