package audio

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/mediswift/intake-platform/internal/observability/metrics"
	"github.com/mediswift/intake-platform/pkg/logging"
)

var audioTracer = otel.Tracer("mediswift.internal.audio.coordinator")

// mediaProcessor is the ffmpeg surface the coordinator needs.
type mediaProcessor interface {
	Duration(ctx context.Context, path string) (time.Duration, error)
	ConvertToMP4(ctx context.Context, inPath, outPath string) error
}

// CoordinatorConfig tunes the pipeline split and the diarization wait.
type CoordinatorConfig struct {
	// DurationThreshold divides the single-shot path from the diarized one.
	DurationThreshold time.Duration
	// DiarizationTimeout bounds the wait for the async callback.
	DiarizationTimeout time.Duration
	// CallbackURL is handed to the diarization provider verbatim.
	CallbackURL string
}

// Coordinator owns audio-to-text resolution: fetch, probe, then either
// single-shot transcription or the concurrent transcribe-and-diarize path
// with webhook correlation. It is the only component that creates or removes
// pending diarization jobs.
type Coordinator struct {
	fetchers    map[string]MediaFetcher
	transcriber Transcriber
	uploader    Uploader
	diarizer    Diarizer
	media       mediaProcessor
	pending     pendingJobs
	metrics     *metrics.IntakeMetrics
	logger      *logging.Logger
	cfg         CoordinatorConfig
}

// NewCoordinator wires the pipeline. fetchers, transcriber, and media are
// required; uploader/diarizer may be nil, which degrades long recordings to
// plain timestamped transcription without speaker labels.
func NewCoordinator(fetchers map[string]MediaFetcher, transcriber Transcriber, uploader Uploader, diarizer Diarizer, media mediaProcessor, m *metrics.IntakeMetrics, logger *logging.Logger, cfg CoordinatorConfig) *Coordinator {
	if len(fetchers) == 0 {
		panic("audio: coordinator requires media fetchers")
	}
	if transcriber == nil {
		panic("audio: coordinator requires a transcriber")
	}
	if media == nil {
		panic("audio: coordinator requires a media processor")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.DurationThreshold <= 0 {
		cfg.DurationThreshold = 60 * time.Second
	}
	if cfg.DiarizationTimeout <= 0 {
		cfg.DiarizationTimeout = 5 * time.Minute
	}
	return &Coordinator{
		fetchers:    fetchers,
		transcriber: transcriber,
		uploader:    uploader,
		diarizer:    diarizer,
		media:       media,
		metrics:     m,
		logger:      logger,
		cfg:         cfg,
	}
}

// ResolveText turns a channel audio reference into conversation text.
func (c *Coordinator) ResolveText(ctx context.Context, identity, channel, audioRef string) (string, error) {
	ctx, span := audioTracer.Start(ctx, "Coordinator.ResolveText")
	defer span.End()

	fetcher, ok := c.fetchers[channel]
	if !ok {
		return "", fmt.Errorf("audio: no media fetcher for channel %q: %w", channel, ErrAudioUnavailable)
	}
	data, err := fetcher.FetchAudio(ctx, audioRef)
	if err != nil {
		return "", fmt.Errorf("audio: fetch %s: %v: %w", audioRef, err, ErrAudioUnavailable)
	}

	tmp, err := os.CreateTemp("", "intake-audio-*.ogg")
	if err != nil {
		return "", fmt.Errorf("audio: temp file: %v: %w", err, ErrAudioUnavailable)
	}
	path := tmp.Name()
	// The temp file must never outlive this call, whatever the exit path.
	defer os.Remove(path)
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("audio: temp write: %v: %w", err, ErrAudioUnavailable)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("audio: temp close: %v: %w", err, ErrAudioUnavailable)
	}

	duration, err := c.media.Duration(ctx, path)
	if err != nil {
		return "", fmt.Errorf("audio: probe: %v: %w", err, ErrAudioUnavailable)
	}

	if duration <= c.cfg.DurationThreshold {
		start := time.Now()
		text, err := c.transcriber.TranscribeShort(ctx, path)
		if c.metrics != nil {
			c.metrics.ObserveTranscriptionLatency("short", time.Since(start).Seconds())
		}
		if err != nil {
			return "", fmt.Errorf("audio: short transcription: %v: %w", err, ErrTranscriptionFailed)
		}
		return text, nil
	}

	return c.resolveLong(ctx, identity, path, duration)
}

// resolveLong runs timestamped transcription concurrently with the
// diarization round trip and aligns the two results.
func (c *Coordinator) resolveLong(ctx context.Context, identity, path string, duration time.Duration) (string, error) {
	start := time.Now()
	type transcribeResult struct {
		segments []Segment
		err      error
	}
	transcribed := make(chan transcribeResult, 1)
	go func() {
		segs, err := c.transcriber.TranscribeWithTimestamps(ctx, path)
		transcribed <- transcribeResult{segments: segs, err: err}
	}()

	var (
		waitCh <-chan []SpeakerSegment
		jobID  string
	)
	if c.uploader != nil && c.diarizer != nil {
		id, err := c.startDiarization(ctx, path)
		if err != nil {
			// Speaker labels are best effort for long recordings; the
			// transcription alone is still usable.
			c.logger.Warn("diarization unavailable, falling back to plain transcript",
				"identity", identity, "error", err)
		} else {
			jobID = id
			ch, err := c.pending.Register(jobID)
			if err != nil {
				return "", fmt.Errorf("audio: register diarization job: %w", err)
			}
			waitCh = ch
		}
	}

	res := <-transcribed
	if res.err != nil {
		if jobID != "" {
			c.pending.Cancel(jobID)
		}
		return "", fmt.Errorf("audio: timestamped transcription: %v: %w", res.err, ErrTranscriptionFailed)
	}

	if waitCh == nil {
		if c.metrics != nil {
			c.metrics.ObserveTranscriptionLatency("long", time.Since(start).Seconds())
		}
		return joinSegments(res.segments), nil
	}

	timer := time.NewTimer(c.cfg.DiarizationTimeout)
	defer timer.Stop()
	select {
	case diarization := <-waitCh:
		if c.metrics != nil {
			c.metrics.ObserveTranscriptionLatency("diarized", time.Since(start).Seconds())
		}
		c.logger.Info("diarization resolved",
			"identity", identity,
			"job_id", jobID,
			"segments", len(res.segments),
			"speakers", len(diarization),
			"audio_seconds", duration.Seconds(),
		)
		return Flatten(Align(res.segments, diarization)), nil
	case <-timer.C:
		c.pending.Cancel(jobID)
		if c.metrics != nil {
			c.metrics.ObserveDiarizationTimeout()
		}
		return "", fmt.Errorf("audio: job %s: %w", jobID, ErrProcessingTimeout)
	case <-ctx.Done():
		c.pending.Cancel(jobID)
		return "", ctx.Err()
	}
}

// startDiarization converts the recording to mp4, publishes it, and registers
// the job with the provider.
func (c *Coordinator) startDiarization(ctx context.Context, path string) (string, error) {
	mp4Path := path + ".mp4"
	if err := c.media.ConvertToMP4(ctx, path, mp4Path); err != nil {
		return "", err
	}
	defer os.Remove(mp4Path)

	mediaURL, err := c.uploader.Upload(ctx, mp4Path)
	if err != nil {
		return "", fmt.Errorf("audio: media upload: %w", err)
	}
	jobID, err := c.diarizer.RequestDiarization(ctx, mediaURL, c.cfg.CallbackURL)
	if err != nil {
		return "", fmt.Errorf("audio: diarization request: %w", err)
	}
	return jobID, nil
}

// HandleCallback delivers a diarization webhook to the waiting request. It
// reports whether anyone was still waiting for the job id.
func (c *Coordinator) HandleCallback(jobID string, segments []SpeakerSegment) bool {
	delivered := c.pending.Resolve(jobID, segments)
	if !delivered {
		c.logger.Warn("diarization callback for unknown or expired job", "job_id", jobID)
	}
	return delivered
}

// PendingJobs reports how many diarization jobs are awaiting callbacks.
func (c *Coordinator) PendingJobs() int {
	return c.pending.Len()
}
