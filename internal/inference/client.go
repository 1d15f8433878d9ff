package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/kozaktomas/photo-gallery/internal/config"
	"github.com/kozaktomas/photo-gallery/internal/detect"
	"github.com/kozaktomas/photo-gallery/internal/metrics"
)

const defaultInferenceURL = "http://localhost:8000"

// Client talks to the model inference server.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a new inference client
func NewClient(cfg config.InferenceConfig) *Client {
	baseURL := cfg.URL
	if baseURL == "" {
		baseURL = defaultInferenceURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

// embeddingResponse represents the response from the embedding endpoint
type embeddingResponse struct {
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	Model     string    `json:"model"`
}

// ObjectDetector returns a Detector backed by the object detection endpoint.
// Images are resized to size x size before upload.
func (c *Client) ObjectDetector(size int) Detector {
	return &remoteDetector{client: c, endpoint: "/detect/objects", model: "objects", size: size}
}

// FaceDetector returns a Detector backed by the face detection endpoint.
func (c *Client) FaceDetector(size int) Detector {
	return &remoteDetector{client: c, endpoint: "/detect/faces", model: "faces", size: size}
}

// FaceEmbedder returns an Embedder backed by the face embedding endpoint.
func (c *Client) FaceEmbedder(size int) Embedder {
	return &remoteEmbedder{client: c, size: size}
}

// Health checks that the inference server is reachable.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("inference server unhealthy (status %d)", resp.StatusCode)
	}
	return nil
}

type remoteDetector struct {
	client   *Client
	endpoint string
	model    string
	size     int
}

// detectResponse carries either per-candidate rows or a raw channel-major output
// tensor of shape [1, 4+classes, candidates].
type detectResponse struct {
	detect.RawTensor
	Output []float32 `json:"output"`
	Shape  []int     `json:"shape"`
}

func (d *remoteDetector) Detect(ctx context.Context, img image.Image) (*detect.RawTensor, error) {
	body, err := d.client.postImage(ctx, d.endpoint, d.model, img, d.size)
	if err != nil {
		return nil, err
	}

	var resp detectResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	raw := &resp.RawTensor
	if raw.InputWidth == 0 || raw.InputHeight == 0 {
		raw.InputWidth, raw.InputHeight = d.size, d.size
	}
	if len(resp.Output) > 0 && len(raw.Boxes) == 0 {
		if len(resp.Shape) != 3 {
			return nil, fmt.Errorf("unexpected output shape %v", resp.Shape)
		}
		raw, err = detect.FromChannelMajor(resp.Output, resp.Shape[1]-4, resp.Shape[2], raw.InputWidth, raw.InputHeight)
		if err != nil {
			return nil, fmt.Errorf("failed to read output tensor: %w", err)
		}
	}
	return raw, nil
}

type remoteEmbedder struct {
	client *Client
	size   int
}

func (e *remoteEmbedder) Embed(ctx context.Context, img image.Image) ([]float32, error) {
	body, err := e.client.postImage(ctx, "/embed/face", "embedder", img, e.size)
	if err != nil {
		return nil, err
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(embResp.Embedding) == 0 {
		return nil, errors.New("empty embedding returned")
	}
	return embResp.Embedding, nil
}

// postImage resizes img to the model input, encodes it as JPEG and posts it as a multipart form.
func (c *Client) postImage(ctx context.Context, endpoint, model string, img image.Image, size int) ([]byte, error) {
	if size > 0 {
		b := img.Bounds()
		if b.Dx() != size || b.Dy() != size {
			img = imaging.Resize(img, size, size, imaging.Lanczos)
		}
	}

	var imgBuf bytes.Buffer
	if err := imaging.Encode(&imgBuf, img, imaging.JPEG, imaging.JPEGQuality(95)); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	start := time.Now()
	body, err := c.postMultipartImage(ctx, endpoint, imgBuf.Bytes())
	metrics.InferenceDuration.WithLabelValues(model).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("%s inference: %w", model, err)
	}
	return body, nil
}

// postMultipartImage constructs a multipart form with the image data and posts it to the given endpoint.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", "image/jpeg")
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}
