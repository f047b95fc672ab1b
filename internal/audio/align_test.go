package audio

import "testing"

func TestAlign(t *testing.T) {
	cases := []struct {
		name        string
		segments    []Segment
		diarization []SpeakerSegment
		want        []Utterance
	}{
		{
			name:        "exact overlap",
			segments:    []Segment{{Start: 0, End: 2, Text: "hello"}},
			diarization: []SpeakerSegment{{Start: 0, End: 2, Speaker: "A"}},
			want:        []Utterance{{Speaker: "A", Text: "hello"}},
		},
		{
			name:        "no overlapping diarization",
			segments:    []Segment{{Start: 10, End: 12, Text: "hello"}},
			diarization: []SpeakerSegment{{Start: 0, End: 2, Speaker: "A"}},
			want:        []Utterance{{Speaker: UnknownSpeaker, Text: "hello"}},
		},
		{
			name:        "within tolerance before diarization start",
			segments:    []Segment{{Start: 0.6, End: 2, Text: "hi"}},
			diarization: []SpeakerSegment{{Start: 1.0, End: 3, Speaker: "B"}},
			want:        []Utterance{{Speaker: "B", Text: "hi"}},
		},
		{
			// The diarization segment starts midway through the
			// transcription segment; interval overlap still attributes it.
			name:        "diarization starts mid-segment",
			segments:    []Segment{{Start: 0, End: 5, Text: "hello there"}},
			diarization: []SpeakerSegment{{Start: 3, End: 6, Speaker: "A"}},
			want:        []Utterance{{Speaker: "A", Text: "hello there"}},
		},
		{
			name: "cursor advances past finished speakers",
			segments: []Segment{
				{Start: 0, End: 2, Text: "how are you"},
				{Start: 5, End: 7, Text: "fine thanks"},
				{Start: 8, End: 9, Text: "good"},
			},
			diarization: []SpeakerSegment{
				{Start: 0, End: 2.5, Speaker: "Doctor"},
				{Start: 4.8, End: 7.2, Speaker: "Patient"},
				{Start: 7.8, End: 9.5, Speaker: "Doctor"},
			},
			want: []Utterance{
				{Speaker: "Doctor", Text: "how are you"},
				{Speaker: "Patient", Text: "fine thanks"},
				{Speaker: "Doctor", Text: "good"},
			},
		},
		{
			name: "gap between speakers yields unknown",
			segments: []Segment{
				{Start: 0, End: 1, Text: "first"},
				{Start: 3, End: 4, Text: "orphan"},
				{Start: 6, End: 7, Text: "last"},
			},
			diarization: []SpeakerSegment{
				{Start: 0, End: 1.2, Speaker: "A"},
				{Start: 5.8, End: 7.5, Speaker: "B"},
			},
			want: []Utterance{
				{Speaker: "A", Text: "first"},
				{Speaker: UnknownSpeaker, Text: "orphan"},
				{Speaker: "B", Text: "last"},
			},
		},
		{
			name:        "empty diarization",
			segments:    []Segment{{Start: 0, End: 1, Text: "alone"}},
			diarization: nil,
			want:        []Utterance{{Speaker: UnknownSpeaker, Text: "alone"}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Align(tc.segments, tc.diarization)
			if len(got) != len(tc.want) {
				t.Fatalf("got %d utterances, want %d: %#v", len(got), len(tc.want), got)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("utterance %d = %#v, want %#v", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestFlatten(t *testing.T) {
	got := Flatten([]Utterance{
		{Speaker: "Doctor", Text: "how are you"},
		{Speaker: "Doctor", Text: "feeling today"},
		{Speaker: "Patient", Text: "not great"},
	})
	want := "Doctor: how are you feeling today\nPatient: not great"
	if got != want {
		t.Fatalf("Flatten = %q, want %q", got, want)
	}
}

func TestJoinSegments(t *testing.T) {
	got := joinSegments([]Segment{
		{Text: " first "},
		{Text: ""},
		{Text: "second"},
	})
	if got != "first second" {
		t.Fatalf("joinSegments = %q", got)
	}
}
