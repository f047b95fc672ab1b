package audio

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mediswift/intake-platform/pkg/logging"
)

type stubFetcher struct {
	data []byte
	err  error
}

func (s *stubFetcher) FetchAudio(_ context.Context, _ string) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.data, nil
}

type stubTranscriber struct {
	short    string
	segments []Segment
	err      error
}

func (s *stubTranscriber) TranscribeShort(_ context.Context, _ string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.short, nil
}

func (s *stubTranscriber) TranscribeWithTimestamps(_ context.Context, _ string) ([]Segment, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.segments, nil
}

type stubUploader struct {
	url string
	err error
}

func (s *stubUploader) Upload(_ context.Context, _ string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.url, nil
}

type stubDiarizer struct {
	jobID string
	err   error
}

func (s *stubDiarizer) RequestDiarization(_ context.Context, _, _ string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.jobID, nil
}

type stubMedia struct {
	duration time.Duration
	err      error
}

func (s *stubMedia) Duration(_ context.Context, _ string) (time.Duration, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.duration, nil
}

func (s *stubMedia) ConvertToMP4(_ context.Context, _, _ string) error {
	return nil
}

type fixture struct {
	fetcher     *stubFetcher
	transcriber *stubTranscriber
	uploader    *stubUploader
	diarizer    *stubDiarizer
	media       *stubMedia
}

func newCoordinator(t *testing.T, f *fixture, timeout time.Duration) *Coordinator {
	t.Helper()
	return NewCoordinator(
		map[string]MediaFetcher{"whatsapp": f.fetcher},
		f.transcriber,
		f.uploader,
		f.diarizer,
		f.media,
		nil,
		logging.Default(),
		CoordinatorConfig{
			DurationThreshold:  60 * time.Second,
			DiarizationTimeout: timeout,
			CallbackURL:        "https://example.test/webhooks/diarization",
		},
	)
}

func defaultFixture() *fixture {
	return &fixture{
		fetcher:     &stubFetcher{data: []byte("oggdata")},
		transcriber: &stubTranscriber{short: "short transcript"},
		uploader:    &stubUploader{url: "https://media.example.test/a.mp4"},
		diarizer:    &stubDiarizer{jobID: "job-1"},
		media:       &stubMedia{duration: 15 * time.Second},
	}
}

func TestCoordinator_ShortRecordingUsesSingleShot(t *testing.T) {
	f := defaultFixture()
	c := newCoordinator(t, f, time.Second)

	text, err := c.ResolveText(context.Background(), "u1", "whatsapp", "media-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "short transcript" {
		t.Fatalf("got %q", text)
	}
	if c.PendingJobs() != 0 {
		t.Fatal("short path must not register diarization jobs")
	}
}

func TestCoordinator_FetchFailureIsAudioUnavailable(t *testing.T) {
	f := defaultFixture()
	f.fetcher.err = errors.New("404")
	c := newCoordinator(t, f, time.Second)

	_, err := c.ResolveText(context.Background(), "u1", "whatsapp", "media-1")
	if !errors.Is(err, ErrAudioUnavailable) {
		t.Fatalf("expected ErrAudioUnavailable, got %v", err)
	}
}

func TestCoordinator_UnknownChannelIsAudioUnavailable(t *testing.T) {
	f := defaultFixture()
	c := newCoordinator(t, f, time.Second)

	_, err := c.ResolveText(context.Background(), "u1", "smoke-signal", "media-1")
	if !errors.Is(err, ErrAudioUnavailable) {
		t.Fatalf("expected ErrAudioUnavailable, got %v", err)
	}
}

func TestCoordinator_TranscriptionFailure(t *testing.T) {
	f := defaultFixture()
	f.transcriber.err = errors.New("whisper 500")
	c := newCoordinator(t, f, time.Second)

	_, err := c.ResolveText(context.Background(), "u1", "whatsapp", "media-1")
	if !errors.Is(err, ErrTranscriptionFailed) {
		t.Fatalf("expected ErrTranscriptionFailed, got %v", err)
	}
}

func TestCoordinator_LongRecordingAlignsCallback(t *testing.T) {
	f := defaultFixture()
	f.media.duration = 90 * time.Second
	f.transcriber.segments = []Segment{
		{Start: 0, End: 2, Text: "how are you"},
		{Start: 5, End: 7, Text: "my back hurts"},
	}
	c := newCoordinator(t, f, 2*time.Second)

	go func() {
		// Simulate the webhook arriving after the request is in flight.
		for i := 0; i < 200; i++ {
			if c.PendingJobs() == 1 {
				break
			}
			time.Sleep(5 * time.Millisecond)
		}
		c.HandleCallback("job-1", []SpeakerSegment{
			{Start: 0, End: 2.4, Speaker: "Doctor"},
			{Start: 4.8, End: 7.5, Speaker: "Patient"},
		})
	}()

	text, err := c.ResolveText(context.Background(), "u1", "whatsapp", "media-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "Doctor: how are you\nPatient: my back hurts"
	if text != want {
		t.Fatalf("got %q, want %q", text, want)
	}
	if c.PendingJobs() != 0 {
		t.Fatal("resolved job must be removed")
	}
}

func TestCoordinator_DiarizationTimeout(t *testing.T) {
	f := defaultFixture()
	f.media.duration = 90 * time.Second
	f.transcriber.segments = []Segment{{Start: 0, End: 2, Text: "hello"}}
	c := newCoordinator(t, f, 30*time.Millisecond)

	_, err := c.ResolveText(context.Background(), "u1", "whatsapp", "media-1")
	if !errors.Is(err, ErrProcessingTimeout) {
		t.Fatalf("expected ErrProcessingTimeout, got %v", err)
	}
	if c.PendingJobs() != 0 {
		t.Fatal("timed-out job must be removed")
	}
	if c.HandleCallback("job-1", nil) {
		t.Fatal("late callback must be dropped")
	}
}

func TestCoordinator_DiarizationFailureFallsBackToTranscript(t *testing.T) {
	f := defaultFixture()
	f.media.duration = 90 * time.Second
	f.diarizer.err = errors.New("provider down")
	f.transcriber.segments = []Segment{
		{Start: 0, End: 2, Text: "first part"},
		{Start: 2, End: 4, Text: "second part"},
	}
	c := newCoordinator(t, f, time.Second)

	text, err := c.ResolveText(context.Background(), "u1", "whatsapp", "media-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(text, "first part second part") {
		t.Fatalf("expected plain joined transcript, got %q", text)
	}
}

func TestPendingJobs_DuplicateRegistrationRejected(t *testing.T) {
	var p pendingJobs
	if _, err := p.Register("dup"); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := p.Register("dup"); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
	p.Cancel("dup")
	if p.Len() != 0 {
		t.Fatalf("expected empty table, got %d", p.Len())
	}
}
