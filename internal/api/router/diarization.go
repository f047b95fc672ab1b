package router

import (
	"io"
	"net/http"

	"github.com/mediswift/intake-platform/internal/audio"
	"github.com/mediswift/intake-platform/internal/diarize"
	"github.com/mediswift/intake-platform/pkg/logging"
)

// diarizationSink receives resolved speaker segments for a pending job.
type diarizationSink interface {
	HandleCallback(jobID string, segments []audio.SpeakerSegment) bool
}

// DiarizationCallback returns the handler for the diarization provider's
// webhook. The provider retries on non-2xx, so parse failures return 400 and
// unknown jobs (already timed out) return 200 to stop redelivery.
func DiarizationCallback(sink diarizationSink, logger *logging.Logger) http.HandlerFunc {
	if logger == nil {
		logger = logging.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}
		jobID, segments, err := diarize.ParseCallback(body)
		if err != nil {
			logger.Warn("diarization callback rejected", "error", err)
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}
		if !sink.HandleCallback(jobID, segments) {
			logger.Info("diarization callback for inactive job", "job_id", jobID)
		}
		w.WriteHeader(http.StatusOK)
	}
}
