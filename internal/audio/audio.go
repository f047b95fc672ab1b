package audio

import (
	"context"
	"errors"
)

var (
	// ErrAudioUnavailable indicates the audio payload could not be fetched
	// or written locally.
	ErrAudioUnavailable = errors.New("audio: payload unavailable")
	// ErrTranscriptionFailed indicates the transcription provider rejected
	// the request.
	ErrTranscriptionFailed = errors.New("audio: transcription failed")
	// ErrProcessingTimeout indicates the diarization callback never arrived
	// within the wait window.
	ErrProcessingTimeout = errors.New("audio: diarization timed out")
)

// Segment is one timestamped transcription span.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// SpeakerSegment is one span of the diarization result.
type SpeakerSegment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
}

// Utterance is a transcription span with its assigned speaker.
type Utterance struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// MediaFetcher retrieves the raw audio payload behind a channel media
// reference. Each channel adapter provides its own implementation.
type MediaFetcher interface {
	FetchAudio(ctx context.Context, ref string) ([]byte, error)
}

// Transcriber is the speech-to-text provider. Short recordings use the
// single-shot call; long ones need per-segment timestamps for alignment.
type Transcriber interface {
	TranscribeShort(ctx context.Context, path string) (string, error)
	TranscribeWithTimestamps(ctx context.Context, path string) ([]Segment, error)
}

// Uploader publishes a local media file to a location the diarization
// provider can fetch, returning its public URL.
type Uploader interface {
	Upload(ctx context.Context, path string) (string, error)
}

// Diarizer registers an async diarization job. Results arrive later on a
// webhook carrying the returned job id.
type Diarizer interface {
	RequestDiarization(ctx context.Context, mediaURL, callbackURL string) (string, error)
}
