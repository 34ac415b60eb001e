package landcover

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// DefaultRequestTimeout bounds a single predict call to a remote model.
const DefaultRequestTimeout = 60 * time.Second

// TFServingModel calls a TensorFlow Serving REST endpoint
// (POST {base}/v1/models/{name}:predict).
type TFServingModel struct {
	endpoint string
	client   *http.Client
}

// NewTFServingModel returns a client for model name served at baseURL.
func NewTFServingModel(baseURL, name string, timeout time.Duration) (*TFServingModel, error) {
	if baseURL == "" || name == "" {
		return nil, errors.Wrap(ErrModelUnavailable, "tfserving needs a base url and a model name")
	}
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &TFServingModel{
		endpoint: strings.TrimSuffix(baseURL, "/") + "/v1/models/" + name + ":predict",
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type predictRequest struct {
	Instances [][][][3]float32 `json:"instances"`
}

type predictResponse struct {
	Predictions [][]float32 `json:"predictions"`
	Error       string      `json:"error,omitempty"`
}

// Predict implements Model.
func (m *TFServingModel) Predict(ctx context.Context, batch *Batch) ([][]float32, error) {
	reqBody := predictRequest{Instances: make([][][][3]float32, batch.Size)}
	for i := range reqBody.Instances {
		tile := batch.Tile(i)
		rows := make([][][3]float32, batch.Height)
		for y := range rows {
			row := make([][3]float32, batch.Width)
			for x := range row {
				o := (y*batch.Width + x) * 3
				row[x] = [3]float32{tile[o], tile[o+1], tile[o+2]}
			}
			rows[y] = row
		}
		reqBody.Instances[i] = rows
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal predict request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create predict request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrapf(ErrModelUnavailable, "predict request failed: %v", err)
	}
	defer resp.Body.Close()

	var out predictResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&out)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusRequestEntityTooLarge:
		return nil, errors.Wrapf(ErrResourceExhausted, "model server returned status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		if decodeErr == nil && out.Error != "" {
			return nil, errors.Wrapf(ErrModelUnavailable, "model server returned status %d: %s", resp.StatusCode, out.Error)
		}
		return nil, errors.Wrapf(ErrModelUnavailable, "model server returned status %d", resp.StatusCode)
	case decodeErr != nil:
		return nil, errors.Wrapf(ErrMalformedOutput, "failed to decode predict response: %v", decodeErr)
	}
	return out.Predictions, nil
}

// Close implements Model.
func (m *TFServingModel) Close() error {
	m.client.CloseIdleConnections()
	return nil
}
