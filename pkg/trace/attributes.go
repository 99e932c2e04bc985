package trace

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by the interpreter spans.
const (
	AttrSessionID  = "session.id"
	AttrSourceLang = "session.source_lang"
	AttrTargetLang = "session.target_lang"
	AttrVoice      = "session.voice"

	AttrStage     = "pipeline.stage"
	AttrProvider  = "pipeline.provider"
	AttrMode      = "pipeline.mode"
	AttrSequence  = "pipeline.sequence"
	AttrAudioSize = "audio.data_size"
	AttrTextLen   = "text.length"

	AttrErrorType    = "error.type"
	AttrErrorMessage = "error.message"
)

// SessionAttrs describes the session a span belongs to.
func SessionAttrs(sessionID, sourceLang, targetLang, voice string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrSessionID, sessionID),
		attribute.String(AttrSourceLang, sourceLang),
		attribute.String(AttrTargetLang, targetLang),
		attribute.String(AttrVoice, voice),
	}
}

// StageAttrs describes one pipeline stage invocation.
func StageAttrs(stage, provider string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrStage, stage),
		attribute.String(AttrProvider, provider),
	}
}

// ErrorAttrs creates attributes for errors.
func ErrorAttrs(errType, errMsg string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrErrorType, errType),
		attribute.String(AttrErrorMessage, errMsg),
	}
}
