package firefly

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/oauth2"

	"github.com/ahmed-musallam/creative-automation-pipeline/internal/domain"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(Options{
		BaseURL:     srv.URL,
		ClientID:    "client-123",
		TokenSource: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok", TokenType: "Bearer"}),
		HTTPClient:  srv.Client(),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func assertAuthHeaders(t *testing.T, r *http.Request) {
	t.Helper()
	if got := r.Header.Get("Authorization"); got != "Bearer tok" {
		t.Errorf("Authorization = %q, want %q", got, "Bearer tok")
	}
	if got := r.Header.Get("x-api-key"); got != "client-123" {
		t.Errorf("x-api-key = %q, want client-123", got)
	}
}

func TestNewClientRequiresCredentials(t *testing.T) {
	if _, err := NewClient(Options{ClientID: "id"}); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("error = %v, want ErrMissingCredentials", err)
	}
}

func TestGenerateImagesAsyncPayload(t *testing.T) {
	var body map[string]any
	var modelHeader string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assertAuthHeaders(t, r)
		if r.Method != http.MethodPost || r.URL.Path != "/v3/images/generate-async" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		modelHeader = r.Header.Get("x-model-version")
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"jobId":"job-1","statusUrl":"s","cancelUrl":"c"}`)
	}))

	accepted, err := client.GenerateImagesAsync(context.Background(), GenerateImagesRequest{
		Prompt:                  "a can on a beach",
		ContentClass:            ContentClassPhoto,
		NumVariations:           3,
		Size:                    &Size{Width: 2688, Height: 1536},
		PromptBiasingLocaleCode: "en-US",
	}, ModelImage4Standard)
	if err != nil {
		t.Fatalf("GenerateImagesAsync returned error: %v", err)
	}
	if accepted.JobID != "job-1" {
		t.Fatalf("JobID = %q, want job-1", accepted.JobID)
	}
	if modelHeader != "image4_standard" {
		t.Fatalf("x-model-version = %q, want image4_standard", modelHeader)
	}
	if body["contentClass"] != "photo" || body["numVariations"] != float64(3) || body["promptBiasingLocaleCode"] != "en-US" {
		t.Fatalf("unexpected body: %#v", body)
	}
	size := body["size"].(map[string]any)
	if size["width"] != float64(2688) || size["height"] != float64(1536) {
		t.Fatalf("size = %#v", size)
	}
}

func TestGenerateImagesAsyncOmitsEmptyModelVersion(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Header["X-Model-Version"]; ok {
			t.Errorf("x-model-version should be omitted")
		}
		_, _ = io.WriteString(w, `{"jobId":"job-2"}`)
	}))
	if _, err := client.GenerateImagesAsync(context.Background(), GenerateImagesRequest{Prompt: "p"}, ""); err != nil {
		t.Fatalf("GenerateImagesAsync returned error: %v", err)
	}
}

func TestObjectCompositePayload(t *testing.T) {
	var body map[string]any
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assertAuthHeaders(t, r)
		if r.URL.Path != "/v3/images/generate-object-composite-async" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = io.WriteString(w, `{"jobId":"job-3"}`)
	}))

	_, err := client.GenerateObjectCompositeAsync(context.Background(), ObjectCompositeRequest{
		Prompt:        "on a marble counter",
		Image:         InputImage{Source: BinaryInput{UploadID: "up-1"}},
		ContentClass:  ContentClassPhoto,
		NumVariations: 3,
		Placement:     CenterPlacement(),
		Size:          &Size{Width: 1024, Height: 1024},
	})
	if err != nil {
		t.Fatalf("GenerateObjectCompositeAsync returned error: %v", err)
	}
	source := body["image"].(map[string]any)["source"].(map[string]any)
	if source["uploadId"] != "up-1" {
		t.Fatalf("image.source = %#v", source)
	}
	alignment := body["placement"].(map[string]any)["alignment"].(map[string]any)
	if alignment["horizontal"] != "center" || alignment["vertical"] != "center" {
		t.Fatalf("alignment = %#v", alignment)
	}
}

func TestUploadReturnsID(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assertAuthHeaders(t, r)
		if r.URL.Path != "/v2/storage/image" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "image/png" {
			t.Errorf("Content-Type = %q, want image/png", ct)
		}
		data, _ := io.ReadAll(r.Body)
		if string(data) != "PNGDATA" {
			t.Errorf("body = %q", data)
		}
		_, _ = io.WriteString(w, `{"images":[{"id":"upload-9"}]}`)
	}))
	id, err := client.Upload(context.Background(), strings.NewReader("PNGDATA"), "")
	if err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}
	if id != "upload-9" {
		t.Fatalf("id = %q, want upload-9", id)
	}
}

func TestJobStatusDecodesOutputs(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/status/job-4" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_, _ = io.WriteString(w, `{"jobId":"job-4","status":"succeeded","result":{"outputs":[{"image":{"url":"https://img/1"},"seed":42},{"image":{"url":"https://img/2"},"seed":43}],"size":{"width":1024,"height":1024}}}`)
	}))
	res, err := client.JobStatus(context.Background(), "job-4")
	if err != nil {
		t.Fatalf("JobStatus returned error: %v", err)
	}
	if res.Status != StatusSucceeded || len(res.Outputs()) != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Outputs()[0].Seed != 42 || res.Outputs()[1].Image.URL != "https://img/2" {
		t.Fatalf("outputs = %+v", res.Outputs())
	}
	if err := CheckResult(res); err != nil {
		t.Fatalf("CheckResult returned error: %v", err)
	}
}

func TestNon2xxBecomesServiceError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error_code":"unknown_job_id","message":"no such job"}`)
	}))
	_, err := client.JobStatus(context.Background(), "missing")
	if !errors.Is(err, domain.ErrExternalService) {
		t.Fatalf("error = %v, want ErrExternalService", err)
	}
	var svcErr *domain.ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected *domain.ServiceError, got %T", err)
	}
	if svcErr.Status != "404" || svcErr.Code != "unknown_job_id" || svcErr.Message != "no such job" {
		t.Fatalf("service error = %+v", svcErr)
	}
}

func TestModelIDCachesList(t *testing.T) {
	calls := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path != "/v3/custom-models" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_, _ = io.WriteString(w, `{"custom_models":[{"assetId":"urn:a","baseModel":{"name":"image3_custom"}},{"assetId":"urn:b","baseModel":{"name":"image4_custom"}}],"total_count":2}`)
	}))
	for i := 0; i < 2; i++ {
		id, err := client.ModelID(context.Background(), ModelImage4Custom)
		if err != nil {
			t.Fatalf("ModelID returned error: %v", err)
		}
		if id != "urn:b" {
			t.Fatalf("ModelID = %q, want urn:b", id)
		}
	}
	if id, _ := client.ModelID(context.Background(), ModelImage4Ultra); id != "" {
		t.Fatalf("ModelID(image4_ultra) = %q, want empty", id)
	}
	if calls != 1 {
		t.Fatalf("custom models fetched %d times, want 1", calls)
	}
}

func TestListCustomModelsQuery(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("sortBy") != "createdDate" || q.Get("limit") != "5" || q.Get("publishedState") != "ready" {
			t.Errorf("query = %v", q)
		}
		if q.Has("start") {
			t.Errorf("empty start should be omitted")
		}
		_, _ = io.WriteString(w, `{"custom_models":[],"total_count":0}`)
	}))
	models, err := client.ListCustomModels(context.Background(), ListModelsParams{SortBy: "createdDate", Limit: "5", PublishedState: "ready"})
	if err != nil {
		t.Fatalf("ListCustomModels returned error: %v", err)
	}
	if models.TotalCount != 0 {
		t.Fatalf("TotalCount = %d", models.TotalCount)
	}
}

func TestNewTokenSourceUsesClientCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostForm.Get("grant_type") != "client_credentials" {
			t.Errorf("grant_type = %q", r.PostForm.Get("grant_type"))
		}
		if r.PostForm.Get("client_id") != "id" || r.PostForm.Get("client_secret") != "secret" {
			t.Errorf("credentials not sent in params: %v", r.PostForm)
		}
		if r.PostForm.Get("scope") != "openid,firefly_api" {
			t.Errorf("scope = %q", r.PostForm.Get("scope"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"ims-token","token_type":"bearer","expires_in":86399}`)
	}))
	defer srv.Close()

	ts, err := NewTokenSource(context.Background(), Credentials{
		ClientID:     "id",
		ClientSecret: "secret",
		TokenURL:     srv.URL,
		Scopes:       []string{"openid", "firefly_api"},
	}, srv.Client())
	if err != nil {
		t.Fatalf("NewTokenSource returned error: %v", err)
	}
	tok, err := ts.Token()
	if err != nil {
		t.Fatalf("Token returned error: %v", err)
	}
	if tok.AccessToken != "ims-token" {
		t.Fatalf("AccessToken = %q, want ims-token", tok.AccessToken)
	}
}
