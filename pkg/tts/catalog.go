package tts

import (
	"sort"
	"strings"
)

// Voice types understood by every backend.
const (
	VoiceAdultMale   = "adult_male"
	VoiceAdultFemale = "adult_female"
	VoiceChildMale   = "child_male"
	VoiceChildFemale = "child_female"
)

// DefaultNeuralVoice is used when a (language, voice type) pair is missing.
const DefaultNeuralVoice = "en-US-JennyNeural"

// VoiceInfo is one catalog entry as exposed by the /voices endpoint.
type VoiceInfo struct {
	ID           string `json:"id"`
	VoiceType    string `json:"voice_type"`
	Language     string `json:"language"`
	Name         string `json:"name"`
	BackendVoice string `json:"backend_voice"`
}

type voiceKey struct {
	lang      string
	voiceType string
}

// Catalog maps (language, voice type) to a neural voice name. It is
// immutable after construction.
type Catalog struct {
	voices map[voiceKey]string
}

// DefaultCatalog returns the built-in voice registry.
func DefaultCatalog() *Catalog {
	return &Catalog{voices: map[voiceKey]string{
		{"th", VoiceAdultMale}:   "th-TH-NiwatNeural",
		{"th", VoiceAdultFemale}: "th-TH-PremwadeeNeural",
		{"th", VoiceChildMale}:   "th-TH-NiwatNeural",
		{"th", VoiceChildFemale}: "th-TH-PremwadeeNeural",
		{"en", VoiceAdultMale}:   "en-US-GuyNeural",
		{"en", VoiceAdultFemale}: "en-US-JennyNeural",
		{"en", VoiceChildMale}:   "en-US-GuyNeural",
		{"en", VoiceChildFemale}: "en-US-JennyNeural",
		{"zh", VoiceAdultMale}:   "zh-CN-YunxiNeural",
		{"zh", VoiceAdultFemale}: "zh-CN-XiaoxiaoNeural",
		{"ja", VoiceAdultMale}:   "ja-JP-KeitaNeural",
		{"ja", VoiceAdultFemale}: "ja-JP-NanamiNeural",
		{"ko", VoiceAdultMale}:   "ko-KR-InJoonNeural",
		{"ko", VoiceAdultFemale}: "ko-KR-SunHiNeural",
		{"es", VoiceAdultMale}:   "es-ES-AlvaroNeural",
		{"es", VoiceAdultFemale}: "es-ES-ElviraNeural",
		{"fr", VoiceAdultMale}:   "fr-FR-HenriNeural",
		{"fr", VoiceAdultFemale}: "fr-FR-DeniseNeural",
	}}
}

// Lookup returns the neural voice for lang and voiceType, or
// DefaultNeuralVoice.
func (c *Catalog) Lookup(lang, voiceType string) string {
	if v, ok := c.voices[voiceKey{lang, voiceType}]; ok {
		return v
	}
	return DefaultNeuralVoice
}

// Has reports whether the pair is registered.
func (c *Catalog) Has(lang, voiceType string) bool {
	_, ok := c.voices[voiceKey{lang, voiceType}]
	return ok
}

// List returns every entry sorted by id.
func (c *Catalog) List() []VoiceInfo {
	out := make([]VoiceInfo, 0, len(c.voices))
	for k, v := range c.voices {
		out = append(out, VoiceInfo{
			ID:           k.lang + "/" + k.voiceType,
			VoiceType:    k.voiceType,
			Language:     k.lang,
			Name:         displayName(k.voiceType),
			BackendVoice: v,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// displayName turns "adult_female" into "Adult Female".
func displayName(voiceType string) string {
	parts := strings.Split(voiceType, "_")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}
