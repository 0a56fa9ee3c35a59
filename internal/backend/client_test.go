// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClassifyIntent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/intent" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		if req["text"] != "open the camera" {
			t.Errorf("text = %q", req["text"])
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"intent":    "open_camera",
			"score":     0.91,
			"threshold": 0.7,
			"narration": "Opening the camera.",
		})
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL).ClassifyIntent(context.Background(), "open the camera")
	if err != nil {
		t.Fatalf("ClassifyIntent failed: %v", err)
	}
	if res.Intent != "open_camera" || res.Score != 0.91 {
		t.Errorf("result = %+v", res)
	}
	if !res.HasThreshold || res.Threshold != 0.7 {
		t.Errorf("threshold = %+v", res)
	}
	if res.Narration != "Opening the camera." {
		t.Errorf("narration = %q", res.Narration)
	}
}

func TestClassifyIntent_ThresholdVariants(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantHas bool
		want    float64
	}{
		{"absent", `{"intent":"chat","score":0.5}`, false, 0},
		{"numeric", `{"intent":"chat","score":0.5,"threshold":0.65}`, true, 0.65},
		{"numeric string", `{"intent":"chat","score":0.5,"threshold":"0.8"}`, true, 0.8},
		{"garbage", `{"intent":"chat","score":0.5,"threshold":"high"}`, false, 0},
		{"null", `{"intent":"chat","score":0.5,"threshold":null}`, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.payload))
			}))
			defer srv.Close()

			res, err := NewClient(srv.URL).ClassifyIntent(context.Background(), "x")
			if err != nil {
				t.Fatalf("ClassifyIntent failed: %v", err)
			}
			if res.HasThreshold != tt.wantHas {
				t.Errorf("HasThreshold = %v, want %v", res.HasThreshold, tt.wantHas)
			}
			if tt.wantHas && res.Threshold != tt.want {
				t.Errorf("Threshold = %v, want %v", res.Threshold, tt.want)
			}
		})
	}
}

func TestChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"answer": "hello there"})
	}))
	defer srv.Close()

	answer, err := NewClient(srv.URL).Chat(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if answer != "hello there" {
		t.Errorf("answer = %q", answer)
	}
}

func TestRag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		json.NewDecoder(r.Body).Decode(&req)
		if req["use_internet"] != true || req["web_only"] != false {
			t.Errorf("flags = %v / %v", req["use_internet"], req["web_only"])
		}
		json.NewEncoder(w).Encode(RagResult{
			Answer:      "from documents",
			UsedContext: true,
			Sources:     []string{"https://a", "https://b"},
		})
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL).Rag(context.Background(), "what's new", true, false)
	if err != nil {
		t.Fatalf("Rag failed: %v", err)
	}
	if !res.UsedContext || len(res.Sources) != 2 {
		t.Errorf("result = %+v", res)
	}
}

func TestDetect_Multipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("not multipart: %v", err)
		}
		if r.FormValue("draw") != "1" {
			t.Errorf("draw = %q", r.FormValue("draw"))
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("missing file part: %v", err)
		}
		defer file.Close()
		if header.Filename != "frame.jpg" {
			t.Errorf("filename = %q", header.Filename)
		}
		if ct := header.Header.Get("Content-Type"); ct != "image/jpeg" {
			t.Errorf("part content type = %q", ct)
		}
		json.NewEncoder(w).Encode(DetectResult{Summary: "2 x person", ImageURL: "/detect/1.jpg"})
	}))
	defer srv.Close()

	up := Upload{Name: "frame.jpg", MIME: "image/jpeg", Data: []byte{0xff, 0xd8}}
	res, err := NewClient(srv.URL).Detect(context.Background(), up, true)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if res.Summary != "2 x person" || res.ImageURL != "/detect/1.jpg" {
		t.Errorf("result = %+v", res)
	}
}

func TestUploadDoc(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/upload" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("not multipart: %v", err)
		}
		_, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("missing file part: %v", err)
		}
		if header.Filename != "manual.pdf" {
			t.Errorf("filename = %q", header.Filename)
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "indexed"})
	}))
	defer srv.Close()

	up := Upload{Name: "manual.pdf", MIME: "application/pdf", Data: []byte("pdfdata")}
	if err := NewClient(srv.URL).UploadDoc(context.Background(), up); err != nil {
		t.Fatalf("UploadDoc failed: %v", err)
	}
}

func TestDetect_EmptyUpload(t *testing.T) {
	_, err := NewClient("http://unused").Detect(context.Background(), Upload{}, true)
	if !errors.Is(err, ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput, got %v", err)
	}
}

func TestAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Chat(context.Background(), "hi")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusServiceUnavailable {
		t.Errorf("status = %d", apiErr.Status)
	}
}
