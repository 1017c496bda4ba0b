package engine

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDecodeImageViaEngine(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/decode/image" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Image string `json:"image"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Image == "" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"image": base64.StdEncoding.EncodeToString(pngBytes(t, testImage(6, 4))),
		})
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL})
	img, err := c.DecodeImage(context.Background(), []byte("opaque-heic-bytes"))
	if err != nil {
		t.Fatalf("DecodeImage: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 6 || b.Dy() != 4 {
		t.Fatalf("decoded bounds %v", b)
	}
}

func TestDecodeImageWithoutEngine(t *testing.T) {
	c := NewClient(Options{})
	if _, err := c.DecodeImage(context.Background(), []byte("heic")); err == nil {
		t.Fatal("decode without a remote engine must fail")
	}
}

func TestSupportsGsplat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/capabilities" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]bool{"gsplat": true})
	}))
	defer srv.Close()

	if !(NewClient(Options{BaseURL: srv.URL})).SupportsGsplat(context.Background()) {
		t.Fatal("advertised gsplat support not reported")
	}
	if (NewClient(Options{})).SupportsGsplat(context.Background()) {
		t.Fatal("no engine should mean no gsplat")
	}
}
