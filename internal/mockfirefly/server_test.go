package mockfirefly

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ahmed-musallam/creative-automation-pipeline/internal/providers/firefly"
)

func newTestClient(t *testing.T, opts Options) (*firefly.Client, *Server) {
	t.Helper()
	if opts.ClientID == "" {
		opts.ClientID = "client"
		opts.ClientSecret = "secret"
	}
	srv := New(opts)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	tokens, err := firefly.NewTokenSource(context.Background(), firefly.Credentials{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		TokenURL:     ts.URL + TokenPath,
		Scopes:       []string{"openid", "firefly_api"},
	}, ts.Client())
	if err != nil {
		t.Fatalf("NewTokenSource returned error: %v", err)
	}
	client, err := firefly.NewClient(firefly.Options{
		BaseURL:     ts.URL,
		ClientID:    opts.ClientID,
		TokenSource: tokens,
		HTTPClient:  ts.Client(),
	})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	return client, srv
}

func submit(t *testing.T, c *firefly.Client, prompt string) string {
	t.Helper()
	accepted, err := c.GenerateImagesAsync(context.Background(), firefly.GenerateImagesRequest{
		Prompt:        prompt,
		NumVariations: 3,
		Size:          &firefly.Size{Width: 2048, Height: 2048},
	}, firefly.ModelImage4Standard)
	if err != nil {
		t.Fatalf("GenerateImagesAsync returned error: %v", err)
	}
	return accepted.JobID
}

func TestJobRunsThenSucceeds(t *testing.T) {
	client, _ := newTestClient(t, Options{RunningPolls: 2})
	id := submit(t, client, "a can on a beach")

	for i := 0; i < 2; i++ {
		res, err := client.JobStatus(context.Background(), id)
		if err != nil {
			t.Fatalf("JobStatus returned error: %v", err)
		}
		if res.Status != firefly.StatusRunning {
			t.Fatalf("poll %d status = %q, want running", i, res.Status)
		}
	}
	res, err := client.JobStatus(context.Background(), id)
	if err != nil {
		t.Fatalf("JobStatus returned error: %v", err)
	}
	if res.Status != firefly.StatusSucceeded {
		t.Fatalf("status = %q, want succeeded", res.Status)
	}
	outs := res.Outputs()
	if len(outs) != 3 {
		t.Fatalf("outputs = %d, want 3", len(outs))
	}
	seen := map[int64]bool{}
	for _, o := range outs {
		if o.Seed == 0 || seen[o.Seed] {
			t.Fatalf("seed %d is zero or repeated", o.Seed)
		}
		seen[o.Seed] = true
		resp, err := http.Get(o.Image.URL)
		if err != nil {
			t.Fatalf("GET %s: %v", o.Image.URL, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/jpeg" {
			t.Fatalf("image status = %d, content type %q", resp.StatusCode, resp.Header.Get("Content-Type"))
		}
	}
}

func TestPromptMarkers(t *testing.T) {
	client, _ := newTestClient(t, Options{})

	res, err := client.JobStatus(context.Background(), submit(t, client, "product "+MarkerFailed))
	if err != nil {
		t.Fatalf("JobStatus returned error: %v", err)
	}
	if res.Status != firefly.StatusFailed || res.ErrorCode == "" {
		t.Fatalf("result = %+v, want failed with error code", res)
	}

	res, err = client.JobStatus(context.Background(), submit(t, client, "product "+MarkerMissingURL))
	if err != nil {
		t.Fatalf("JobStatus returned error: %v", err)
	}
	outs := res.Outputs()
	if len(outs) != 3 || outs[2].Image.URL != "" || outs[0].Image.URL == "" {
		t.Fatalf("outputs = %+v, want last without url", outs)
	}

	res, err = client.JobStatus(context.Background(), submit(t, client, MarkerTimeout))
	if err != nil {
		t.Fatalf("JobStatus returned error: %v", err)
	}
	if res.Status != firefly.StatusTimeout {
		t.Fatalf("status = %q, want timeout", res.Status)
	}
}

func TestUploadAndComposite(t *testing.T) {
	client, srv := newTestClient(t, Options{})
	id, err := client.Upload(context.Background(), strings.NewReader("\x89PNG fake"), "image/png")
	if err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}
	if srv.Uploads() != 1 {
		t.Fatalf("uploads = %d, want 1", srv.Uploads())
	}
	accepted, err := client.GenerateObjectCompositeAsync(context.Background(), firefly.ObjectCompositeRequest{
		Prompt:        "on a table",
		Image:         firefly.InputImage{Source: firefly.BinaryInput{UploadID: id}},
		NumVariations: 1,
		Placement:     firefly.CenterPlacement(),
		Size:          &firefly.Size{Width: 2688, Height: 1536},
	})
	if err != nil {
		t.Fatalf("GenerateObjectCompositeAsync returned error: %v", err)
	}
	if accepted.JobID == "" {
		t.Fatal("expected job id")
	}

	_, err = client.GenerateObjectCompositeAsync(context.Background(), firefly.ObjectCompositeRequest{
		Prompt: "on a table",
		Image:  firefly.InputImage{Source: firefly.BinaryInput{UploadID: "nope"}},
		Size:   &firefly.Size{Width: 2688, Height: 1536},
	})
	if err == nil || !strings.Contains(err.Error(), "invalid_upload_id") {
		t.Fatalf("error = %v, want invalid_upload_id", err)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv := New(Options{ClientID: "client", ClientSecret: "secret"})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v3/status/abc")
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}

	resp, err = http.PostForm(ts.URL+TokenPath, map[string][]string{
		"grant_type":    {"client_credentials"},
		"client_id":     {"client"},
		"client_secret": {"wrong"},
	})
	if err != nil {
		t.Fatalf("POST token: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("token status = %d, want 401", resp.StatusCode)
	}
}

func TestCustomModelsLimit(t *testing.T) {
	client, _ := newTestClient(t, Options{CustomModels: []firefly.CustomModel{
		{AssetID: "urn:aaid:1", DisplayName: "Brand A"},
		{AssetID: "urn:aaid:2", DisplayName: "Brand B"},
	}})
	models, err := client.ListCustomModels(context.Background(), firefly.ListModelsParams{Limit: "1"})
	if err != nil {
		t.Fatalf("ListCustomModels returned error: %v", err)
	}
	if len(models.Models) != 1 || models.TotalCount != 2 {
		t.Fatalf("models = %+v, want one of two", models)
	}
}
