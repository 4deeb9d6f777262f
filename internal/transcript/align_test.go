package transcript

import "testing"

func TestAlign_MaxOverlapWins(t *testing.T) {
	segments := []Segment{
		{Start: 0.0, End: 2.0, Text: "hello"},
		{Start: 2.0, End: 4.0, Text: "world"},
	}
	turns := []Turn{
		{Start: 0.0, End: 1.5, Speaker: "Speaker 1"},
		{Start: 1.5, End: 4.0, Speaker: "Speaker 2"},
	}

	out := Align(segments, turns)

	if len(out) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(out))
	}
	// Segment 1 overlaps Speaker 1 by 1.5s and Speaker 2 by 0.5s.
	if out[0].Speaker != "Speaker 1" {
		t.Errorf("segment 0: speaker = %q, want %q", out[0].Speaker, "Speaker 1")
	}
	if out[1].Speaker != "Speaker 2" {
		t.Errorf("segment 1: speaker = %q, want %q", out[1].Speaker, "Speaker 2")
	}
	if n := CountSpeakers(out); n != 2 {
		t.Errorf("CountSpeakers = %d, want 2", n)
	}
}

func TestAlign_EmptyTurnsFallback(t *testing.T) {
	segments := []Segment{
		{Start: 0.0, End: 1.0, Text: "a"},
		{Start: 1.0, End: 2.0, Text: "b"},
		{Start: 2.0, End: 3.0, Text: "c"},
	}

	out := Align(segments, nil)

	for i, s := range out {
		if s.Speaker != FallbackSpeaker {
			t.Errorf("segment %d: speaker = %q, want fallback %q", i, s.Speaker, FallbackSpeaker)
		}
	}
	if n := CountSpeakers(out); n != 1 {
		t.Errorf("CountSpeakers = %d, want 1", n)
	}
}

func TestAlign_NoOverlapFallback(t *testing.T) {
	segments := []Segment{{Start: 10.0, End: 12.0, Text: "late"}}
	turns := []Turn{{Start: 0.0, End: 5.0, Speaker: "Speaker 2"}}

	out := Align(segments, turns)

	if out[0].Speaker != FallbackSpeaker {
		t.Errorf("speaker = %q, want fallback %q", out[0].Speaker, FallbackSpeaker)
	}
}

func TestAlign_TieBreakEarlierStart(t *testing.T) {
	// Both turns overlap the segment by exactly 1.0s.
	segments := []Segment{{Start: 1.0, End: 3.0, Text: "tie"}}
	turns := []Turn{
		{Start: 2.0, End: 4.0, Speaker: "Speaker 2"},
		{Start: 0.0, End: 2.0, Speaker: "Speaker 1"},
	}

	out := Align(segments, turns)

	if out[0].Speaker != "Speaker 1" {
		t.Errorf("speaker = %q, want earlier-starting %q", out[0].Speaker, "Speaker 1")
	}
}

func TestAlign_TieBreakInputOrder(t *testing.T) {
	// Identical turns from two hypothetical clusters: first in input wins.
	segments := []Segment{{Start: 0.0, End: 2.0, Text: "tie"}}
	turns := []Turn{
		{Start: 0.0, End: 2.0, Speaker: "Speaker 3"},
		{Start: 0.0, End: 2.0, Speaker: "Speaker 1"},
	}

	out := Align(segments, turns)

	if out[0].Speaker != "Speaker 3" {
		t.Errorf("speaker = %q, want first-in-input %q", out[0].Speaker, "Speaker 3")
	}
}

func TestAlign_ZeroLengthSegment(t *testing.T) {
	segments := []Segment{{Start: 1.0, End: 1.0, Text: "blip"}}
	turns := []Turn{{Start: 0.0, End: 5.0, Speaker: "Speaker 2"}}

	out := Align(segments, turns)

	if out[0].Speaker != FallbackSpeaker {
		t.Errorf("zero-length segment: speaker = %q, want fallback %q", out[0].Speaker, FallbackSpeaker)
	}
}

func TestAlign_PreservesOrderAndFields(t *testing.T) {
	segments := []Segment{
		{Start: 0.0, End: 1.0, Text: "first"},
		{Start: 1.0, End: 2.5, Text: "second"},
		{Start: 2.5, End: 3.0, Text: "third"},
	}
	turns := []Turn{{Start: 0.0, End: 3.0, Speaker: "Speaker 1"}}

	out := Align(segments, turns)

	if len(out) != len(segments) {
		t.Fatalf("expected %d segments, got %d", len(segments), len(out))
	}
	for i, s := range out {
		if s.Start != segments[i].Start || s.End != segments[i].End || s.Text != segments[i].Text {
			t.Errorf("segment %d mutated: got %+v, want %+v", i, s, segments[i])
		}
		if s.Speaker == "" {
			t.Errorf("segment %d: empty speaker label", i)
		}
	}
}

func TestAlign_EmptySegments(t *testing.T) {
	out := Align(nil, []Turn{{Start: 0, End: 1, Speaker: "Speaker 1"}})
	if len(out) != 0 {
		t.Errorf("expected empty output, got %d segments", len(out))
	}
}

func TestCountSpeakers_IgnoresUnusedTurns(t *testing.T) {
	segments := []Segment{
		{Start: 0.0, End: 2.0, Text: "a"},
		{Start: 2.0, End: 4.0, Text: "b"},
	}
	// Speaker 3's turn is too short to ever win.
	turns := []Turn{
		{Start: 0.0, End: 2.0, Speaker: "Speaker 1"},
		{Start: 2.0, End: 4.0, Speaker: "Speaker 2"},
		{Start: 1.9, End: 2.0, Speaker: "Speaker 3"},
	}

	out := Align(segments, turns)

	if n := CountSpeakers(out); n != 2 {
		t.Errorf("CountSpeakers = %d, want 2 (Speaker 3 never assigned)", n)
	}
}
