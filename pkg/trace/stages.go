package trace

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentUtterance opens the parent span for one utterance run.
func InstrumentUtterance(ctx context.Context, mode string, audioSize int) (context.Context, trace.Span) {
	return StartSpan(ctx, "pipeline.utterance",
		trace.WithAttributes(
			attribute.String(AttrMode, mode),
			attribute.Int(AttrAudioSize, audioSize),
		),
	)
}

// InstrumentStage opens a span for a single stage (denoise, stt, filter,
// translate, tts).
func InstrumentStage(ctx context.Context, stage, provider string) (context.Context, trace.Span) {
	return StartSpan(ctx, fmt.Sprintf("pipeline.%s", stage),
		trace.WithAttributes(StageAttrs(stage, provider)...),
	)
}

// InstrumentDispatch opens a span for a sequencer dispatch unit.
func InstrumentDispatch(ctx context.Context, seq uint64) (context.Context, trace.Span) {
	return StartSpan(ctx, "sequencer.unit",
		trace.WithAttributes(attribute.Int64(AttrSequence, int64(seq))),
	)
}

// InstrumentSession opens the long-lived span covering one connection.
func InstrumentSession(ctx context.Context, sessionID, sourceLang, targetLang, voice string) (context.Context, trace.Span) {
	return StartSpan(ctx, "session",
		trace.WithAttributes(SessionAttrs(sessionID, sourceLang, targetLang, voice)...),
	)
}
