package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const archiveTTL = 24 * time.Hour

// Archive mirrors transcripts to Redis so clinicians and ops tooling can see a
// conversation while it is in flight and shortly after it ends. The in-memory
// Session stays authoritative; archive failures are logged by callers and
// never interrupt a session.
type Archive struct {
	redis  *redis.Client
	tracer trace.Tracer
}

// NewArchive creates a Redis-backed transcript archive.
func NewArchive(redisClient *redis.Client, tracer trace.Tracer) *Archive {
	if redisClient == nil {
		panic("session: redis client cannot be nil")
	}
	if tracer == nil {
		tracer = otel.Tracer("mediswift.internal.session.archive")
	}
	return &Archive{
		redis:  redisClient,
		tracer: tracer,
	}
}

// Save overwrites the archived transcript for the identity.
func (a *Archive) Save(ctx context.Context, identity string, transcript []Turn) error {
	ctx, span := a.tracer.Start(ctx, "session.archive_save")
	defer span.End()

	data, err := json.Marshal(transcript)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to marshal transcript: %w", err)
	}
	if err := a.redis.Set(ctx, archiveKey(identity), data, archiveTTL).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to persist transcript: %w", err)
	}
	return nil
}

// Load returns the archived transcript, or nil when none is stored.
func (a *Archive) Load(ctx context.Context, identity string) ([]Turn, error) {
	ctx, span := a.tracer.Start(ctx, "session.archive_load")
	defer span.End()

	data, err := a.redis.Get(ctx, archiveKey(identity)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("session: failed to load transcript: %w", err)
	}

	var transcript []Turn
	if err := json.Unmarshal(data, &transcript); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("session: failed to decode transcript: %w", err)
	}
	return transcript, nil
}

// Delete drops the archived transcript.
func (a *Archive) Delete(ctx context.Context, identity string) error {
	if err := a.redis.Del(ctx, archiveKey(identity)).Err(); err != nil {
		return fmt.Errorf("session: failed to delete transcript: %w", err)
	}
	return nil
}

func archiveKey(identity string) string {
	return fmt.Sprintf("session:%s", identity)
}
