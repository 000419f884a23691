package mlclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to the remote prediction service that performs the actual
// retinal image analysis. The service owns model inference, GradCAM and
// report generation; this client only submits work and reads results.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a prediction service client
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second, // inference can be slow on cold models
		},
	}
}

// SetHTTPClient sets a custom HTTP client
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	c.httpClient = httpClient
}

// PredictRequest asks the service to grade one fundus image
type PredictRequest struct {
	ImagePath    string `json:"image_path"`
	ImageHash    string `json:"image_hash"`
	ModelVersion string `json:"model_version,omitempty"`
}

// PredictResponse is the grading result
type PredictResponse struct {
	Grade        int     `json:"grade"`
	Confidence   float64 `json:"confidence"`
	ModelVersion string  `json:"model_version"`
}

// Predict submits an image for grading and waits for the result
func (c *Client) Predict(ctx context.Context, req PredictRequest) (*PredictResponse, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		fmt.Sprintf("%s/predict", c.baseURL),
		bytes.NewBuffer(jsonData),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("prediction failed (status %d): %s", resp.StatusCode, string(body))
	}

	var predictResp PredictResponse
	if err := json.NewDecoder(resp.Body).Decode(&predictResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if predictResp.Grade < 0 || predictResp.Grade > 4 {
		return nil, fmt.Errorf("prediction service returned out-of-range grade %d", predictResp.Grade)
	}

	return &predictResp, nil
}

// Health checks whether the prediction service is reachable
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/health", c.baseURL), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("prediction service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("prediction service unhealthy (status %d)", resp.StatusCode)
	}
	return nil
}
