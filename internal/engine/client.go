package engine

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"motiond/internal/imageio"
	"motiond/internal/infra"
)

// Options controls how the inference engine client is configured.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client provides a facade over the inference engine sidecar that hosts the
// gaussian predictor, the monodepth network, and the CUDA trajectory
// renderer. When no engine is configured the client produces deterministic
// synthetic results so the queue, pipeline, storage, and metrics stay
// exercisable end to end in local and CI environments.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

// NewClient constructs an engine client. Callers may provide a nil HTTP
// client; a reusable one with sensible timeouts will be created.
func NewClient(opts Options) *Client {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Minute}
	}

	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: client,
		logger:     logger,
	}
}

// Remote reports whether a real engine endpoint is configured.
func (c *Client) Remote() bool {
	return c.baseURL != ""
}

// SupportsGsplat asks the engine whether the CUDA trajectory renderer is
// loaded. Without a remote engine there is no renderer.
func (c *Client) SupportsGsplat(ctx context.Context) bool {
	if !c.Remote() {
		return false
	}
	var caps struct {
		Gsplat bool `json:"gsplat"`
	}
	if err := c.getJSON(ctx, "/capabilities", &caps); err != nil {
		c.logger.Warn().Err(err).Msg("engine: capability query failed")
		return false
	}
	return caps.Gsplat
}

// DecodeImage asks the engine to decode formats that have no in-process
// codec (HEIC). The sidecar answers with a PNG rendition of the pixels.
func (c *Client) DecodeImage(ctx context.Context, data []byte) (image.Image, error) {
	if !c.Remote() {
		return nil, fmt.Errorf("engine: no remote decoder configured")
	}
	var resp struct {
		Image string `json:"image"` // base64 PNG
	}
	if err := c.postJSON(ctx, "/decode/image", map[string]any{
		"image": base64.StdEncoding.EncodeToString(data),
	}, &resp); err != nil {
		return nil, fmt.Errorf("engine: decode image: %w", err)
	}
	raw, err := base64.StdEncoding.DecodeString(resp.Image)
	if err != nil {
		return nil, fmt.Errorf("engine: decode image payload: %w", err)
	}
	return imageio.Decode(raw)
}

// PredictGaussians runs the gaussian predictor on the uploaded image.
func (c *Client) PredictGaussians(ctx context.Context, imageBytes []byte) (*Gaussians, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !c.Remote() {
		return c.syntheticGaussians(imageBytes)
	}

	var resp struct {
		Count   int    `json:"count"`
		Payload string `json:"payload"`
		FocalPx float64 `json:"focal_px"`
	}
	if err := c.postJSON(ctx, "/predict/gaussians", map[string]any{
		"image": base64.StdEncoding.EncodeToString(imageBytes),
	}, &resp); err != nil {
		return nil, fmt.Errorf("engine: predict gaussians: %w", err)
	}
	payload, err := base64.StdEncoding.DecodeString(resp.Payload)
	if err != nil {
		return nil, fmt.Errorf("engine: decode gaussian payload: %w", err)
	}
	return &Gaussians{Count: resp.Count, Payload: payload, FocalPx: resp.FocalPx}, nil
}

// RenderTrajectory renders the gaussian scene along the requested camera
// path. onFrame, when non-nil, is invoked after each produced frame.
func (c *Client) RenderTrajectory(ctx context.Context, g *Gaussians, spec TrajectorySpec, onFrame func(done, total int)) ([]*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !c.Remote() {
		return c.syntheticTrajectory(ctx, g, spec, onFrame)
	}

	var resp struct {
		Frames []string `json:"frames"` // base64 PNG per frame
	}
	if err := c.postJSON(ctx, "/render/trajectory", map[string]any{
		"payload":         base64.StdEncoding.EncodeToString(g.Payload),
		"kind":            spec.Kind,
		"frame_count":     spec.FrameCount,
		"num_repeats":     spec.NumRepeats,
		"motion_scale":    spec.MotionScale,
		"wobble_scale":    spec.WobbleScale,
		"max_disparity":   spec.MaxDisparity,
		"max_zoom":        spec.MaxZoom,
		"max_output_side": spec.MaxOutputSide,
	}, &resp); err != nil {
		return nil, fmt.Errorf("engine: render trajectory: %w", err)
	}

	frames := make([]*image.RGBA, 0, len(resp.Frames))
	for i, enc := range resp.Frames {
		raw, err := base64.StdEncoding.DecodeString(enc)
		if err != nil {
			return nil, fmt.Errorf("engine: decode frame %d: %w", i, err)
		}
		img, err := imageio.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("engine: decode frame %d: %w", i, err)
		}
		frames = append(frames, imageio.ResizeMaxSide(img, 0))
		if onFrame != nil {
			onFrame(i+1, len(resp.Frames))
		}
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("engine: renderer returned no frames")
	}
	return frames, nil
}

// EstimateDepth runs the monodepth network and returns a normalized
// inverse-depth map at the input resolution.
func (c *Client) EstimateDepth(ctx context.Context, img *image.RGBA) (*DepthMap, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !c.Remote() {
		return syntheticDepth(img), nil
	}

	var buf bytes.Buffer
	if err := encodePNG(&buf, img); err != nil {
		return nil, fmt.Errorf("engine: encode depth input: %w", err)
	}
	var resp struct {
		Width  int       `json:"width"`
		Height int       `json:"height"`
		Inv    []float32 `json:"inverse_depth"`
	}
	if err := c.postJSON(ctx, "/predict/depth", map[string]any{
		"image": base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, &resp); err != nil {
		return nil, fmt.Errorf("engine: estimate depth: %w", err)
	}
	if resp.Width*resp.Height != len(resp.Inv) {
		return nil, fmt.Errorf("engine: depth map shape mismatch: %dx%d vs %d values", resp.Width, resp.Height, len(resp.Inv))
	}
	depth := &DepthMap{Width: resp.Width, Height: resp.Height, Inv: resp.Inv}
	normalizeDepth(depth)
	return depth, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("engine: %s %s: status %d: %s", req.Method, req.URL.Path, res.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}
