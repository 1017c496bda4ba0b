package engine

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Encoder turns a frame sequence into a playable video container.
type Encoder interface {
	// Encode returns the encoded bytes plus the container extension
	// (".mp4" or ".avi").
	Encode(ctx context.Context, frames []*image.RGBA, fps int) ([]byte, string, error)
}

// FFmpegEncoder shells out to ffmpeg for H.264 yuv420p MP4 output. When the
// binary is missing it transparently falls back to an in-process MJPEG AVI,
// which every mainstream player still accepts.
type FFmpegEncoder struct {
	Path string // ffmpeg binary; empty means "ffmpeg" from PATH

	checkOnce sync.Once
	available bool
}

// Available reports whether the ffmpeg binary can be resolved. Memoized.
func (e *FFmpegEncoder) Available() bool {
	e.checkOnce.Do(func() {
		_, err := exec.LookPath(e.binary())
		e.available = err == nil
	})
	return e.available
}

func (e *FFmpegEncoder) binary() string {
	if e.Path != "" {
		return e.Path
	}
	return "ffmpeg"
}

func (e *FFmpegEncoder) Encode(ctx context.Context, frames []*image.RGBA, fps int) ([]byte, string, error) {
	if len(frames) == 0 {
		return nil, "", fmt.Errorf("encode: no frames")
	}
	if fps <= 0 {
		fps = 30
	}
	if !e.Available() {
		data, err := encodeMJPEGAVI(ctx, frames, fps)
		return data, ".avi", err
	}
	data, err := e.encodeMP4(ctx, frames, fps)
	return data, ".mp4", err
}

// encodeMP4 streams raw RGBA frames into ffmpeg's stdin and reads the result
// back from a temp file. libx264 cannot write a seekable MP4 to a pipe, so
// the temp file indirection is required.
func (e *FFmpegEncoder) encodeMP4(ctx context.Context, frames []*image.RGBA, fps int) ([]byte, error) {
	b := frames[0].Bounds()
	w, h := b.Dx(), b.Dy()

	tmp := filepath.Join(os.TempDir(), "motiond-"+uuid.NewString()+".mp4")
	defer os.Remove(tmp)

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", w, h),
		"-r", strconv.Itoa(fps),
		"-i", "pipe:0",
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		"-y", tmp,
	}
	cmd := exec.CommandContext(ctx, e.binary(), args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("encode: ffmpeg stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("encode: start ffmpeg: %w", err)
	}

	writeErr := func() error {
		defer stdin.Close()
		for _, f := range frames {
			fb := f.Bounds()
			if fb.Dx() != w || fb.Dy() != h {
				return fmt.Errorf("encode: frame size %dx%d differs from %dx%d", fb.Dx(), fb.Dy(), w, h)
			}
			if _, err := stdin.Write(f.Pix); err != nil {
				return fmt.Errorf("encode: write frame: %w", err)
			}
		}
		return nil
	}()

	if err := cmd.Wait(); err != nil {
		if writeErr != nil {
			return nil, writeErr
		}
		return nil, fmt.Errorf("encode: ffmpeg: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	if writeErr != nil {
		return nil, writeErr
	}

	data, err := os.ReadFile(tmp)
	if err != nil {
		return nil, fmt.Errorf("encode: read output: %w", err)
	}
	return data, nil
}

// encodeMJPEGAVI writes a minimal RIFF AVI container with one MJPEG stream.
// Layout: RIFF(AVI ) > LIST(hdrl)(avih + LIST(strl)(strh+strf)) > LIST(movi)
// with 00dc chunks > idx1.
func encodeMJPEGAVI(ctx context.Context, frames []*image.RGBA, fps int) ([]byte, error) {
	b := frames[0].Bounds()
	w, h := b.Dx(), b.Dy()

	jpegs := make([][]byte, len(frames))
	var maxChunk int
	for i, f := range frames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, f, &jpeg.Options{Quality: 90}); err != nil {
			return nil, fmt.Errorf("encode: jpeg frame %d: %w", i, err)
		}
		// Chunks are word aligned.
		if buf.Len()%2 == 1 {
			buf.WriteByte(0)
		}
		jpegs[i] = buf.Bytes()
		if buf.Len() > maxChunk {
			maxChunk = buf.Len()
		}
	}

	le := binary.LittleEndian
	u32 := func(buf *bytes.Buffer, v uint32) { _ = binary.Write(buf, le, v) }

	// avih main header.
	avih := &bytes.Buffer{}
	u32(avih, uint32(1_000_000/fps)) // microseconds per frame
	u32(avih, uint32(maxChunk*fps))  // max bytes per second
	u32(avih, 0)
	u32(avih, 0x10) // AVIF_HASINDEX
	u32(avih, uint32(len(frames)))
	u32(avih, 0)
	u32(avih, 1) // one stream
	u32(avih, uint32(maxChunk))
	u32(avih, uint32(w))
	u32(avih, uint32(h))
	for i := 0; i < 4; i++ {
		u32(avih, 0)
	}

	// strh stream header.
	strh := &bytes.Buffer{}
	strh.WriteString("vids")
	strh.WriteString("MJPG")
	u32(strh, 0)
	u32(strh, 0)
	u32(strh, 0)
	u32(strh, 1)           // scale
	u32(strh, uint32(fps)) // rate
	u32(strh, 0)
	u32(strh, uint32(len(frames)))
	u32(strh, uint32(maxChunk))
	u32(strh, 0xFFFFFFFF) // quality: default
	u32(strh, 0)
	u32(strh, 0)                           // rcFrame left/top
	u32(strh, uint32(w)|uint32(h)<<16)     // rcFrame right/bottom as two uint16s

	// strf: BITMAPINFOHEADER.
	strf := &bytes.Buffer{}
	u32(strf, 40)
	u32(strf, uint32(w))
	u32(strf, uint32(h))
	u32(strf, 1|24<<16) // planes=1, bpp=24
	strf.WriteString("MJPG")
	u32(strf, uint32(w*h*3))
	for i := 0; i < 4; i++ {
		u32(strf, 0)
	}

	chunk := func(id string, payload []byte) []byte {
		buf := &bytes.Buffer{}
		buf.WriteString(id)
		u32(buf, uint32(len(payload)))
		buf.Write(payload)
		return buf.Bytes()
	}
	list := func(kind string, payload []byte) []byte {
		buf := &bytes.Buffer{}
		buf.WriteString("LIST")
		u32(buf, uint32(4+len(payload)))
		buf.WriteString(kind)
		buf.Write(payload)
		return buf.Bytes()
	}

	strl := list("strl", append(chunk("strh", strh.Bytes()), chunk("strf", strf.Bytes())...))
	hdrl := list("hdrl", append(chunk("avih", avih.Bytes()), strl...))

	movi := &bytes.Buffer{}
	idx1 := &bytes.Buffer{}
	offset := uint32(4) // past the "movi" fourcc
	for _, jp := range jpegs {
		movi.Write(chunk("00dc", jp))

		idx1.WriteString("00dc")
		u32(idx1, 0x10) // AVIIF_KEYFRAME
		u32(idx1, offset)
		u32(idx1, uint32(len(jp)))
		offset += uint32(8 + len(jp))
	}

	body := &bytes.Buffer{}
	body.WriteString("AVI ")
	body.Write(hdrl)
	body.Write(list("movi", movi.Bytes()))
	body.Write(chunk("idx1", idx1.Bytes()))

	out := &bytes.Buffer{}
	out.WriteString("RIFF")
	u32(out, uint32(body.Len()))
	out.Write(body.Bytes())
	return out.Bytes(), nil
}
