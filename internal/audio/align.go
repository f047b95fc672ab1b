package audio

import "strings"

// alignTolerance pads diarization segment bounds when matching transcription
// segments, absorbing small clock skew between the two providers.
const alignTolerance = 0.5

// UnknownSpeaker labels transcription segments no diarization segment covers.
const UnknownSpeaker = "Unknown"

// Align assigns a speaker to every transcription segment with a single sweep:
// the diarization cursor advances past segments that end before the current
// transcription segment starts, then the segment takes the cursor's speaker
// if the two intervals overlap within tolerance. Both inputs must be ordered
// by start time.
func Align(segments []Segment, diarization []SpeakerSegment) []Utterance {
	out := make([]Utterance, 0, len(segments))
	j := 0
	for _, seg := range segments {
		for j < len(diarization) && diarization[j].End+alignTolerance < seg.Start {
			j++
		}
		speaker := UnknownSpeaker
		if j < len(diarization) &&
			diarization[j].Start-alignTolerance <= seg.End &&
			seg.Start <= diarization[j].End+alignTolerance {
			speaker = diarization[j].Speaker
		}
		out = append(out, Utterance{Speaker: speaker, Text: strings.TrimSpace(seg.Text)})
	}
	return out
}

// joinSegments collapses timestamped segments into plain text when no
// diarization result is available.
func joinSegments(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// Flatten renders speaker-attributed utterances as plain text for the
// dialogue service, merging consecutive utterances of the same speaker.
func Flatten(utterances []Utterance) string {
	var b strings.Builder
	for i, u := range utterances {
		if i > 0 && utterances[i-1].Speaker == u.Speaker {
			b.WriteString(" ")
			b.WriteString(u.Text)
			continue
		}
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(u.Speaker)
		b.WriteString(": ")
		b.WriteString(u.Text)
	}
	return b.String()
}
