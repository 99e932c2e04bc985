package protocol

import (
	"encoding/json"
	"time"
)

// ServerMessageType is the "type" of a server message.
type ServerMessageType string

const (
	ServerSessionCreated  ServerMessageType = "session.created"
	ServerSpeechStart     ServerMessageType = "vad.speech_start"
	ServerSpeechEnd       ServerMessageType = "vad.speech_end"
	ServerTranscriptDone  ServerMessageType = "transcript.done"
	ServerTranslationDone ServerMessageType = "translation.done"
	ServerAudioDone       ServerMessageType = "audio.done"
	ServerError           ServerMessageType = "error"
)

// Error codes sent in error messages.
const (
	ErrCodeInvalidMessage = "invalid_message"
	ErrCodePipeline       = "pipeline_error"
)

// ServerMessage is implemented by every server message.
type ServerMessage interface {
	MessageType() ServerMessageType
}

// BaseServerMessage carries the discriminator.
type BaseServerMessage struct {
	Type ServerMessageType `json:"type"`
}

func (m BaseServerMessage) MessageType() ServerMessageType { return m.Type }

type SessionCreated struct {
	BaseServerMessage
	SessionID string `json:"session_id"`
}

type SpeechStart struct {
	BaseServerMessage
}

type SpeechEnd struct {
	BaseServerMessage
}

// TranscriptDone reports the recognized text and recognition time.
type TranscriptDone struct {
	BaseServerMessage
	Text             string  `json:"text"`
	ProcessingTimeMs float64 `json:"processing_time_ms"`
}

// TranslationDone reports the translated text and translation time.
type TranslationDone struct {
	BaseServerMessage
	Text             string  `json:"text"`
	ProcessingTimeMs float64 `json:"processing_time_ms"`
}

// AudioDone follows the binary audio frame of a segment. ProcessingTimeMs
// is the utterance's total pipeline time.
type AudioDone struct {
	BaseServerMessage
	SegmentID        string  `json:"segment_id"`
	ProcessingTimeMs float64 `json:"processing_time_ms"`
}

type Error struct {
	BaseServerMessage
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewSessionCreated(sessionID string) *SessionCreated {
	return &SessionCreated{BaseServerMessage{ServerSessionCreated}, sessionID}
}

func NewSpeechStart() *SpeechStart {
	return &SpeechStart{BaseServerMessage{ServerSpeechStart}}
}

func NewSpeechEnd() *SpeechEnd {
	return &SpeechEnd{BaseServerMessage{ServerSpeechEnd}}
}

func NewTranscriptDone(text string, elapsed time.Duration) *TranscriptDone {
	return &TranscriptDone{BaseServerMessage{ServerTranscriptDone}, text, Millis(elapsed)}
}

func NewTranslationDone(text string, elapsed time.Duration) *TranslationDone {
	return &TranslationDone{BaseServerMessage{ServerTranslationDone}, text, Millis(elapsed)}
}

func NewAudioDone(segmentID string, elapsed time.Duration) *AudioDone {
	return &AudioDone{BaseServerMessage{ServerAudioDone}, segmentID, Millis(elapsed)}
}

func NewError(code, message string) *Error {
	return &Error{BaseServerMessage{ServerError}, code, message}
}

// Millis converts d to milliseconds, rounded to 0.1 ms.
func Millis(d time.Duration) float64 {
	return float64(d.Round(100*time.Microsecond)) / float64(time.Millisecond)
}

// Marshal encodes a server message.
func Marshal(msg ServerMessage) ([]byte, error) {
	return json.Marshal(msg)
}
