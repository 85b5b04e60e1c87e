// Package trainer provides the HTTP client for the external training
// service. The service owns the GPU and the data pipeline; this backend
// only submits jobs, polls progress and collects the finished artifact.
package trainer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/foundry/internal/modules/training"
)

// Client talks to the training service over HTTP and implements
// training.Trainer.
type Client struct {
	baseURL      string
	client       *http.Client
	pollInterval time.Duration
	log          zerolog.Logger
}

// NewClient creates a training service client. pollSecs controls how often
// status is polled during a run.
func NewClient(baseURL string, pollSecs int, log zerolog.Logger) *Client {
	if pollSecs < 1 {
		pollSecs = 10
	}
	return &Client{
		baseURL:      baseURL,
		client:       &http.Client{Timeout: 30 * time.Second},
		pollInterval: time.Duration(pollSecs) * time.Second,
		log:          log.With().Str("client", "trainer").Logger(),
	}
}

// statusResponse is the trainer's status payload
type statusResponse struct {
	State        string  `json:"state"` // running | completed | failed
	CurrentEpoch int     `json:"current_epoch"`
	TotalEpochs  int     `json:"total_epochs"`
	CurrentBatch int     `json:"current_batch"`
	TotalBatches int     `json:"total_batches"`
	Loss         float64 `json:"loss"`
	Accuracy     float64 `json:"accuracy"`
	ValLoss      float64 `json:"val_loss"`
	Error        string  `json:"error,omitempty"`
}

// Train submits the job, polls until it finishes and downloads the
// artifact. Cancellation is forwarded to the service with a stop request.
func (c *Client) Train(ctx context.Context, params training.Parameters, progress training.ProgressFunc, cancelled func() bool) (*training.Result, error) {
	if err := c.submit(ctx, params); err != nil {
		return nil, err
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.requestStop()
			return nil, ctx.Err()
		case <-ticker.C:
		}

		if cancelled() {
			c.requestStop()
			return nil, ctx.Err()
		}

		status, err := c.fetchStatus(ctx)
		if err != nil {
			// Transient poll failures don't kill the run; the next tick
			// retries.
			c.log.Warn().Err(err).Msg("Status poll failed")
			continue
		}

		switch status.State {
		case "running":
			progress(status.CurrentEpoch, status.TotalEpochs, status.CurrentBatch, status.TotalBatches, training.Metrics{
				Loss:     status.Loss,
				Accuracy: status.Accuracy,
				ValLoss:  status.ValLoss,
			})
		case "completed":
			artifact, err := c.downloadArtifact(ctx)
			if err != nil {
				return nil, err
			}
			return &training.Result{
				Accuracy: status.Accuracy,
				Loss:     status.Loss,
				ValLoss:  status.ValLoss,
				Artifact: artifact,
			}, nil
		case "failed":
			if status.Error != "" {
				return nil, fmt.Errorf("trainer reported failure: %s", status.Error)
			}
			return nil, fmt.Errorf("trainer reported failure without detail")
		default:
			return nil, fmt.Errorf("trainer reported unknown state %q", status.State)
		}
	}
}

func (c *Client) submit(ctx context.Context, params training.Parameters) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to encode training params: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/train", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build train request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("trainer unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("trainer rejected job: status %d: %s", resp.StatusCode, detail)
	}

	c.log.Info().Int("epochs", params.Epochs).Msg("Training job submitted")
	return nil
}

func (c *Client) fetchStatus(ctx context.Context) (*statusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status endpoint returned %d", resp.StatusCode)
	}
	var status statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode status: %w", err)
	}
	return &status, nil
}

// requestStop is best-effort: the service cancels at its next batch
// boundary, and an unreachable service changes nothing for the caller.
func (c *Client) requestStop() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/stop", nil)
	if err != nil {
		return
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Msg("Failed to forward stop to trainer")
		return
	}
	resp.Body.Close()
}

func (c *Client) downloadArtifact(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/artifact", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download artifact: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("artifact endpoint returned %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("trainer returned an empty artifact")
	}
	return data, nil
}

// Ping checks trainer connectivity for the system info endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("trainer unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("trainer health returned %d", resp.StatusCode)
	}
	return nil
}
