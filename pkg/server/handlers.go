package server

import (
	"encoding/json"
	"net/http"

	"github.com/realtime-ai/interpreter/pkg/pipeline"
	"github.com/realtime-ai/interpreter/pkg/tts"
)

type healthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
	pipeline.Description
}

type voicesResponse struct {
	Voices []tts.VoiceInfo `json:"voices"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:      "ok",
		Sessions:    s.SessionCount(),
		Description: s.orch.Describe(),
	})
}

func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, voicesResponse{Voices: s.catalog.List()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
