// internal/api/client.go
package api

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/OCAP2/roverwatch/pkg/core"
	"github.com/go-resty/resty/v2"
)

const uploadPath = "/api/v1/runs/add"

// Client handles communication with the ingest service.
type Client struct {
	baseURL string
	apiKey  string
	http    *resty.Client
}

// New creates a new API client.
func New(baseURL, apiKey string) *Client {
	baseURL = strings.TrimRight(baseURL, "/")

	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(30 * time.Second)
	client.SetHeader("user-agent", "roverwatch")

	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    client,
	}
}

// Healthcheck checks if the ingest service is reachable.
func (c *Client) Healthcheck(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/healthcheck")
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode())
	}
	return nil
}

// Upload sends an exported dataset file to the ingest service.
func (c *Client) Upload(ctx context.Context, filePath string, meta core.UploadMetadata) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"secret":         c.apiKey,
			"filename":       filepath.Base(filePath),
			"runId":          meta.RunID,
			"missionUrl":     meta.MissionURL,
			"target":         meta.Target,
			"sol":            meta.Sol,
			"waypointsTotal": strconv.Itoa(meta.WaypointsTotal),
			"runDuration":    strconv.FormatFloat(meta.RunDuration, 'f', 3, 64),
		}).
		SetFile("file", filePath).
		Post(uploadPath)
	if err != nil {
		return fmt.Errorf("upload request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("upload returned status %d", resp.StatusCode())
	}
	return nil
}
