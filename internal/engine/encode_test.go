package engine

import (
	"bytes"
	"context"
	"image"
	"testing"
)

func TestEncodeMJPEGAVIStructure(t *testing.T) {
	frames := []*image.RGBA{testImage(16, 12), testImage(16, 12), testImage(16, 12)}
	data, err := encodeMJPEGAVI(context.Background(), frames, 10)
	if err != nil {
		t.Fatalf("encodeMJPEGAVI: %v", err)
	}

	if !bytes.HasPrefix(data, []byte("RIFF")) {
		t.Fatal("missing RIFF header")
	}
	if !bytes.Equal(data[8:12], []byte("AVI ")) {
		t.Fatalf("wrong RIFF form type: %q", data[8:12])
	}
	// Declared RIFF size covers everything after the 8-byte header.
	declared := int(uint32(data[4]) | uint32(data[5])<<8 | uint32(data[6])<<16 | uint32(data[7])<<24)
	if declared != len(data)-8 {
		t.Fatalf("declared size %d, actual %d", declared, len(data)-8)
	}

	for _, marker := range []string{"hdrl", "avih", "strl", "strh", "strf", "MJPG", "movi", "00dc", "idx1"} {
		if !bytes.Contains(data, []byte(marker)) {
			t.Fatalf("missing %s chunk", marker)
		}
	}
	// Three movi chunks plus three idx1 entries.
	if got := bytes.Count(data, []byte("00dc")); got < 6 {
		t.Fatalf("expected at least 6 occurrences of 00dc, got %d", got)
	}
}

func TestEncodeMJPEGAVINoFrames(t *testing.T) {
	enc := &FFmpegEncoder{Path: "/nonexistent/ffmpeg"}
	if _, _, err := enc.Encode(context.Background(), nil, 30); err == nil {
		t.Fatal("expected error for empty frame list")
	}
}

func TestEncoderFallsBackWithoutFFmpeg(t *testing.T) {
	enc := &FFmpegEncoder{Path: "/nonexistent/ffmpeg"}
	frames := []*image.RGBA{testImage(8, 8), testImage(8, 8)}

	data, ext, err := enc.Encode(context.Background(), frames, 12)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if ext != ".avi" {
		t.Fatalf("expected .avi fallback, got %q", ext)
	}
	if !bytes.HasPrefix(data, []byte("RIFF")) {
		t.Fatal("fallback output is not an AVI")
	}
}

func TestEncodeMJPEGAVICancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	frames := []*image.RGBA{testImage(8, 8), testImage(8, 8)}
	if _, err := encodeMJPEGAVI(ctx, frames, 10); err == nil {
		t.Fatal("expected context error")
	}
}
