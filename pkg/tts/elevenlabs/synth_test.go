package elevenlabs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/satriadi/bellhop/pkg/resilience"
)

func TestSynthesizePostsTextAndReturnsAudio(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("xi-api-key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	s, err := New(Config{APIKey: "k", VoiceID: "v1", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	clip, err := s.Synthesize(context.Background(), "good morning")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(clip.Data) != "mp3-bytes" || clip.Format != "mp3" {
		t.Fatalf("clip = %q %q", clip.Data, clip.Format)
	}
	if gotPath != "/v1/text-to-speech/v1" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotKey != "k" {
		t.Fatalf("api key header = %q", gotKey)
	}
	if gotBody["text"] != "good morning" {
		t.Fatalf("body text = %v", gotBody["text"])
	}
}

func TestVoiceSettingsConfigurableWithDefaults(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte("mp3"))
	}))
	defer srv.Close()

	s, err := FromSettings(map[string]any{
		"api_key":   "k",
		"voice_id":  "v1",
		"base_url":  srv.URL,
		"stability": 0.9,
	})
	if err != nil {
		t.Fatalf("FromSettings: %v", err)
	}
	if _, err := s.Synthesize(context.Background(), "hi"); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	vs, _ := gotBody["voice_settings"].(map[string]any)
	if vs["stability"] != 0.9 {
		t.Fatalf("stability = %v, want configured 0.9", vs["stability"])
	}
	if vs["similarity_boost"] != 0.8 {
		t.Fatalf("similarity_boost = %v, want default 0.8", vs["similarity_boost"])
	}
}

func TestSynthesizeRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s, err := New(Config{APIKey: "k", VoiceID: "v1", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = s.Synthesize(context.Background(), "hi")
	if !resilience.IsRateLimit(err) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
}

func TestFromSettingsRejectsMissingVoice(t *testing.T) {
	_, err := FromSettings(map[string]any{"api_key": "k"})
	if err == nil {
		t.Fatal("expected validation error")
	}
}
