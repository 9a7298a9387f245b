package detection

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHasCatLabel(t *testing.T) {
	tests := []struct {
		name   string
		labels []string
		want   bool
	}{
		{"direct match", []string{"tabby"}, true},
		{"case insensitive", []string{"Tabby, Tabby Cat"}, true},
		{"substring match", []string{"Egyptian cat"}, true},
		{"later label matches", []string{"doormat", "cardigan", "tiger cat"}, true},
		{"no match", []string{"golden retriever", "beagle"}, false},
		{"embedded keyword", []string{"concatenation"}, true},
		{"empty labels", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasCatLabel(tt.labels); got != tt.want {
				t.Errorf("HasCatLabel(%v) = %v, want %v", tt.labels, got, tt.want)
			}
		})
	}
}

func TestHTTPClassifierCatFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}

		var req classifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.Image == "" {
			t.Error("request image is empty")
		}
		if req.Model != "EfficientNetB0" {
			t.Errorf("request model = %q, want EfficientNetB0", req.Model)
		}
		if req.TopK != 5 {
			t.Errorf("request topk = %d, want 5", req.TopK)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(classifyResponse{
			Labels: []string{"tabby", "tiger cat", "Egyptian cat"},
		})
	}))
	defer server.Close()

	classifier := NewHTTPClassifier(server.URL, "EfficientNetB0", 5*time.Second)
	isCat, err := classifier.Classify(context.Background(), []byte{0xff, 0xd8})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if !isCat {
		t.Error("Classify() = false, want true")
	}
}

func TestHTTPClassifierNoCat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(classifyResponse{
			Labels: []string{"golden retriever", "tennis ball"},
		})
	}))
	defer server.Close()

	classifier := NewHTTPClassifier(server.URL, "EfficientNetB0", 5*time.Second)
	isCat, err := classifier.Classify(context.Background(), []byte{0xff, 0xd8})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if isCat {
		t.Error("Classify() = true, want false")
	}
}

func TestHTTPClassifierServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(classifyResponse{Error: "model not loaded"})
	}))
	defer server.Close()

	classifier := NewHTTPClassifier(server.URL, "EfficientNetB0", 5*time.Second)
	isCat, err := classifier.Classify(context.Background(), []byte{0xff, 0xd8})
	if err == nil {
		t.Fatal("Classify() error = nil, want service error")
	}
	if isCat {
		t.Error("Classify() = true on error, want false")
	}
}

func TestHTTPClassifierBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	classifier := NewHTTPClassifier(server.URL, "EfficientNetB0", 5*time.Second)
	if _, err := classifier.Classify(context.Background(), []byte{0xff, 0xd8}); err == nil {
		t.Fatal("Classify() error = nil, want status error")
	}
}

func TestHTTPClassifierEmptyImage(t *testing.T) {
	classifier := NewHTTPClassifier("http://127.0.0.1:1", "EfficientNetB0", time.Second)
	if _, err := classifier.Classify(context.Background(), nil); err == nil {
		t.Fatal("Classify() error = nil, want empty image error")
	}
}

func TestNopClassifier(t *testing.T) {
	isCat, err := NopClassifier{}.Classify(context.Background(), []byte{0xff, 0xd8})
	if err == nil {
		t.Fatal("Classify() error = nil, want configuration error")
	}
	if isCat {
		t.Error("Classify() = true, want false")
	}
}
