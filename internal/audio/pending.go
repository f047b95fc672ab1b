package audio

import (
	"fmt"
	"sync"
)

// pendingJobs correlates diarization webhooks with the request that spawned
// them. Correlation is solely by job id; arrival timing carries no meaning.
type pendingJobs struct {
	jobs sync.Map // jobID -> chan []SpeakerSegment
}

// Register creates the wait channel for a job id. Registering the same id
// twice is a bug in the caller and is rejected.
func (p *pendingJobs) Register(jobID string) (<-chan []SpeakerSegment, error) {
	ch := make(chan []SpeakerSegment, 1)
	if _, loaded := p.jobs.LoadOrStore(jobID, ch); loaded {
		return nil, fmt.Errorf("audio: duplicate pending job %q", jobID)
	}
	return ch, nil
}

// Resolve delivers the callback result to the waiting request. It reports
// whether a request was still waiting; late callbacks after a timeout are
// dropped.
func (p *pendingJobs) Resolve(jobID string, segments []SpeakerSegment) bool {
	value, ok := p.jobs.LoadAndDelete(jobID)
	if !ok {
		return false
	}
	ch, ok := value.(chan []SpeakerSegment)
	if !ok {
		return false
	}
	select {
	case ch <- segments:
		return true
	default:
		return false
	}
}

// Cancel removes a pending job without delivering a result. Called on timeout
// and on request-context cancellation.
func (p *pendingJobs) Cancel(jobID string) {
	p.jobs.Delete(jobID)
}

// Len counts jobs still awaiting their callback.
func (p *pendingJobs) Len() int {
	n := 0
	p.jobs.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
