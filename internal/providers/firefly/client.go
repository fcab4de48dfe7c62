// Package firefly is a small HTTP client for the asynchronous Firefly image
// API: job submission, status polling, uploads and custom model listing.
package firefly

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/ahmed-musallam/creative-automation-pipeline/internal/domain"
	"github.com/ahmed-musallam/creative-automation-pipeline/internal/infra"
)

const serviceName = "firefly"

// ErrMissingCredentials indicates the client has no api key or token source.
var ErrMissingCredentials = errors.New("firefly: client id and token source are required")

// Options configures a Client.
type Options struct {
	BaseURL     string
	ClientID    string
	TokenSource oauth2.TokenSource
	HTTPClient  *http.Client
	Logger      *infra.Logger
}

// Client talks to the Firefly REST API. It is safe for concurrent use.
type Client struct {
	baseURL    string
	clientID   string
	tokens     oauth2.TokenSource
	httpClient *http.Client
	logger     zerolog.Logger

	modelsMu sync.Mutex
	models   *CustomModels
}

// NewClient validates opts and applies defaults.
func NewClient(opts Options) (*Client, error) {
	clientID := strings.TrimSpace(opts.ClientID)
	if clientID == "" || opts.TokenSource == nil {
		return nil, ErrMissingCredentials
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = infra.DefaultFireflyBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	return &Client{
		baseURL:    baseURL,
		clientID:   clientID,
		tokens:     opts.TokenSource,
		httpClient: httpClient,
		logger:     infra.LoggerOrNop(opts.Logger),
	}, nil
}

// GenerateImagesAsync queues a text-to-image job. An empty version omits the
// x-model-version header.
func (c *Client) GenerateImagesAsync(ctx context.Context, req GenerateImagesRequest, version ModelVersion) (*AsyncAccepted, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, errors.New("firefly: prompt is required")
	}
	header := http.Header{}
	if version != "" {
		header.Set("x-model-version", string(version))
	}
	var accepted AsyncAccepted
	if err := c.doJSON(ctx, "generate", http.MethodPost, "/v3/images/generate-async", nil, header, req, &accepted); err != nil {
		return nil, err
	}
	if accepted.JobID == "" {
		return nil, &domain.ServiceError{Service: serviceName, Op: "generate", Message: "response has no job id"}
	}
	c.logger.Debug().Str("job_id", accepted.JobID).Msg("firefly: text-to-image job queued")
	return &accepted, nil
}

// GenerateObjectCompositeAsync queues a job that places an uploaded subject
// into a generated scene.
func (c *Client) GenerateObjectCompositeAsync(ctx context.Context, req ObjectCompositeRequest) (*AsyncAccepted, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, errors.New("firefly: prompt is required")
	}
	if req.Image.Source.UploadID == "" && req.Image.Source.URL == "" {
		return nil, errors.New("firefly: composite image source is required")
	}
	var accepted AsyncAccepted
	if err := c.doJSON(ctx, "composite", http.MethodPost, "/v3/images/generate-object-composite-async", nil, nil, req, &accepted); err != nil {
		return nil, err
	}
	if accepted.JobID == "" {
		return nil, &domain.ServiceError{Service: serviceName, Op: "composite", Message: "response has no job id"}
	}
	c.logger.Debug().Str("job_id", accepted.JobID).Msg("firefly: composite job queued")
	return &accepted, nil
}

// JobStatus fetches one status snapshot.
func (c *Client) JobStatus(ctx context.Context, jobID string) (*JobResult, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, errors.New("firefly: job id is required")
	}
	var result JobResult
	if err := c.doJSON(ctx, "status", http.MethodGet, "/v3/status/"+url.PathEscape(jobID), nil, nil, nil, &result); err != nil {
		return nil, err
	}
	if result.JobID == "" {
		result.JobID = jobID
	}
	return &result, nil
}

// Upload stores an image for later reference and returns its upload id.
func (c *Client) Upload(ctx context.Context, r io.Reader, contentType string) (string, error) {
	if contentType == "" {
		contentType = "image/png"
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/v2/storage/image", nil, r)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)
	var decoded uploadResponse
	if err := c.do(req, "upload", &decoded); err != nil {
		return "", err
	}
	if len(decoded.Images) == 0 || decoded.Images[0].ID == "" {
		return "", &domain.ServiceError{Service: serviceName, Op: "upload", Message: "response has no upload id"}
	}
	return decoded.Images[0].ID, nil
}

// ListCustomModels returns the custom models visible to the credentials.
func (c *Client) ListCustomModels(ctx context.Context, params ListModelsParams) (*CustomModels, error) {
	query := url.Values{}
	if params.SortBy != "" {
		query.Set("sortBy", params.SortBy)
	}
	if params.Start != "" {
		query.Set("start", params.Start)
	}
	if params.Limit != "" {
		query.Set("limit", params.Limit)
	}
	if params.PublishedState != "" {
		query.Set("publishedState", params.PublishedState)
	}
	var models CustomModels
	if err := c.doJSON(ctx, "custom-models", http.MethodGet, "/v3/custom-models", query, nil, nil, &models); err != nil {
		return nil, err
	}
	return &models, nil
}

// ModelID returns the asset id of the first custom model built on version.
// The model list is fetched once per Client. An empty string means no match.
func (c *Client) ModelID(ctx context.Context, version ModelVersion) (string, error) {
	c.modelsMu.Lock()
	defer c.modelsMu.Unlock()
	if c.models == nil {
		models, err := c.ListCustomModels(ctx, ListModelsParams{})
		if err != nil {
			return "", err
		}
		c.models = models
	}
	for _, m := range c.models.Models {
		if m.BaseModel != nil && m.BaseModel.Name == string(version) {
			return m.AssetID, nil
		}
	}
	return "", nil
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, query url.Values, header http.Header, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("firefly: encode %s request: %w", op, err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, values := range header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	return c.do(req, op, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("firefly: build request: %w", err)
	}
	token, err := c.tokens.Token()
	if err != nil {
		return nil, &domain.ServiceError{Service: serviceName, Op: "authenticate", Err: err}
	}
	token.SetAuthHeader(req)
	req.Header.Set("x-api-key", c.clientID)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, op string, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.ServiceError{Service: serviceName, Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.ServiceError{Service: serviceName, Op: op, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		svcErr := &domain.ServiceError{Service: serviceName, Op: op, Status: strconv.Itoa(resp.StatusCode)}
		var detail errorResponse
		if err := json.Unmarshal(raw, &detail); err == nil && (detail.Message != "" || detail.ErrorCode != "" || detail.Reason != "") {
			svcErr.Message = detail.Message
			svcErr.Code = detail.ErrorCode
			if svcErr.Code == "" {
				svcErr.Code = detail.Reason
			}
		} else {
			svcErr.Message = strings.TrimSpace(string(raw))
		}
		c.logger.Debug().Str("op", op).Int("status", resp.StatusCode).Msg("firefly: request failed")
		return svcErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &domain.ServiceError{Service: serviceName, Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
