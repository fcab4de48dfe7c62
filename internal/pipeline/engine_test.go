package pipeline

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ahmed-musallam/creative-automation-pipeline/internal/domain"
	"github.com/ahmed-musallam/creative-automation-pipeline/internal/mockfirefly"
	"github.com/ahmed-musallam/creative-automation-pipeline/internal/providers/firefly"
	"github.com/ahmed-musallam/creative-automation-pipeline/internal/providers/image"
	"github.com/ahmed-musallam/creative-automation-pipeline/internal/providers/prompt"
)

// instantClock fires every timer immediately and records the requested waits.
type instantClock struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (c *instantClock) Now() time.Time { return time.Unix(0, 0) }

func (c *instantClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.waits = append(c.waits, d)
	c.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- time.Unix(0, 0)
	return ch
}

type memoryRecorder struct {
	mu     sync.Mutex
	assets []domain.GeneratedAsset
	err    error
}

func (r *memoryRecorder) RecordAssets(_ context.Context, assets []domain.GeneratedAsset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assets = append(r.assets, assets...)
	return r.err
}

func newTestEngine(t *testing.T) (*Engine, *mockfirefly.Server) {
	t.Helper()
	srv := mockfirefly.New(mockfirefly.Options{ClientID: "client", ClientSecret: "secret", RunningPolls: 1})
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	tokens, err := firefly.NewTokenSource(context.Background(), firefly.Credentials{
		ClientID:     "client",
		ClientSecret: "secret",
		TokenURL:     ts.URL + mockfirefly.TokenPath,
	}, ts.Client())
	if err != nil {
		t.Fatalf("NewTokenSource returned error: %v", err)
	}
	client, err := firefly.NewClient(firefly.Options{
		BaseURL:     ts.URL,
		ClientID:    "client",
		TokenSource: tokens,
		HTTPClient:  ts.Client(),
	})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	clock := &instantClock{}
	return &Engine{
		Prompts: prompt.TemplateBuilder{},
		Images: &image.FireflyGenerator{
			API:    client,
			Poller: &firefly.Poller{Status: client, Clock: clock},
		},
		HTTPClient: ts.Client(),
		Clock:      clock,
		Pacing:     -1,
	}, srv
}

func testBrief(products ...domain.Product) *domain.CampaignBrief {
	if len(products) == 0 {
		products = []domain.Product{{Name: "sparkling-water", Description: "Lemon water"}}
	}
	return &domain.CampaignBrief{
		Name:            "summer-splash",
		TargetRegion:    "en-US",
		TargetAudience:  "young adults",
		CampaignMessage: "Stay cool",
		Products:        products,
	}
}

func collect(events *[]domain.Progress) ProgressFunc {
	return func(p domain.Progress) { *events = append(*events, p) }
}

func TestRunWritesEveryOutput(t *testing.T) {
	engine, _ := newTestEngine(t)
	out := t.TempDir()
	var events []domain.Progress

	summary, err := engine.Run(context.Background(), testBrief(), Options{OutputDir: out, Ratios: []string{"1:1", "16:9"}}, collect(&events))
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Units != 2 || summary.Succeeded != 2 || summary.Failed != 0 {
		t.Fatalf("summary = %+v, want 2 succeeded units", summary)
	}
	if len(summary.Files) != 6 {
		t.Fatalf("files = %d, want 6", len(summary.Files))
	}
	if len(events) != 2 || events[0].Ratio != "1:1" || events[1].Ratio != "16:9" || events[1].Index != 2 || events[1].Total != 2 {
		t.Fatalf("events = %+v", events)
	}
	for _, ratio := range []string{"1:1", "16:9"} {
		dir := filepath.Join(out, "summer-splash", "en-US", "sparkling-water", ratio)
		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatalf("read %s: %v", dir, err)
		}
		if len(entries) != 3 {
			t.Fatalf("%s has %d files, want 3", dir, len(entries))
		}
		suffix := "-summer-splash-en-US-sparkling-water-" + ratio + ".jpg"
		for _, e := range entries {
			if !strings.HasSuffix(e.Name(), suffix) || strings.HasPrefix(e.Name(), "0-") {
				t.Fatalf("file %q does not match <seed>%s", e.Name(), suffix)
			}
		}
	}
}

func TestRunApproximatesUnsupportedRatio(t *testing.T) {
	engine, srv := newTestEngine(t)
	var logs bytes.Buffer
	logger := zerolog.New(&logs)
	engine.Logger = &logger
	out := t.TempDir()

	summary, err := engine.Run(context.Background(), testBrief(), Options{OutputDir: out, Ratios: []string{"21:9"}}, nil)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Approximations["21:9"] != "16:9" {
		t.Fatalf("approximations = %v, want 21:9 -> 16:9", summary.Approximations)
	}
	subs := srv.Submissions()
	if len(subs) != 1 {
		t.Fatalf("submissions = %d, want 1", len(subs))
	}
	if subs[0].Size.Width != 2688 || subs[0].Size.Height != 1536 {
		t.Fatalf("size = %dx%d, want 2688x1536", subs[0].Size.Width, subs[0].Size.Height)
	}
	if !strings.Contains(logs.String(), "aspect ratio 21:9 is not supported, using closest supported ratio 16:9") {
		t.Fatalf("missing approximation warning in logs: %s", logs.String())
	}
	if _, err := os.Stat(filepath.Join(out, "summer-splash", "en-US", "sparkling-water", "16:9")); err != nil {
		t.Fatalf("expected 16:9 directory: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "summer-splash", "en-US", "sparkling-water", "21:9")); !os.IsNotExist(err) {
		t.Fatalf("21:9 directory should not exist, stat err = %v", err)
	}
}

func TestRunContinuesAfterFailedJob(t *testing.T) {
	engine, _ := newTestEngine(t)
	b := testBrief(
		domain.Product{Name: "broken", Description: "always " + mockfirefly.MarkerFailed},
		domain.Product{Name: "iced-tea", Description: "Black tea"},
	)
	var events []domain.Progress

	summary, err := engine.Run(context.Background(), b, Options{OutputDir: t.TempDir(), Ratios: []string{"1:1"}}, collect(&events))
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Failed != 1 || summary.Succeeded != 1 {
		t.Fatalf("summary = %+v, want one failed and one succeeded", summary)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if !events[0].Failed() || events[1].Failed() {
		t.Fatalf("events = %+v, want first failed only", events)
	}
	var svcErr *domain.ServiceError
	if !errors.As(events[0].Err, &svcErr) || svcErr.Status != string(firefly.StatusFailed) {
		t.Fatalf("err = %v, want failed job service error", events[0].Err)
	}
}

func TestRunSkipsOutputWithoutURL(t *testing.T) {
	engine, _ := newTestEngine(t)
	rec := &memoryRecorder{err: errors.New("ledger down")}
	engine.Recorder = rec
	b := testBrief(domain.Product{Name: "partial", Description: "sometimes " + mockfirefly.MarkerMissingURL})
	var events []domain.Progress

	summary, err := engine.Run(context.Background(), b, Options{OutputDir: t.TempDir(), Ratios: []string{"1:1"}}, collect(&events))
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Failed != 0 || len(events) != 1 || events[0].Failed() {
		t.Fatalf("summary = %+v events = %+v, want unit to succeed", summary, events)
	}
	if len(events[0].Files) != 2 {
		t.Fatalf("files = %d, want 2", len(events[0].Files))
	}
	if len(rec.assets) != 2 {
		t.Fatalf("recorded assets = %d, want 2", len(rec.assets))
	}
	a := rec.assets[0]
	if a.RunID != summary.RunID || a.JobID == "" || a.AspectRatio != "1:1" || a.Bytes == 0 || a.Width != 1024 {
		t.Fatalf("asset = %+v", a)
	}
}

func TestRunValidatesBeforeCreatingOutput(t *testing.T) {
	engine, srv := newTestEngine(t)
	out := filepath.Join(t.TempDir(), "out")
	b := testBrief()
	b.TargetRegion = "xx-US"

	_, err := engine.Run(context.Background(), b, Options{OutputDir: out, Ratios: []string{"1:1"}}, nil)
	if !errors.Is(err, domain.ErrInvalidBrief) {
		t.Fatalf("err = %v, want ErrInvalidBrief", err)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Fatalf("output dir should not exist, stat err = %v", statErr)
	}
	if n := len(srv.Requests()); n != 0 {
		t.Fatalf("requests = %d, want none", n)
	}
}

func TestRunRejectsMalformedRatio(t *testing.T) {
	engine, _ := newTestEngine(t)
	_, err := engine.Run(context.Background(), testBrief(), Options{OutputDir: t.TempDir(), Ratios: []string{"1:1", "wide"}}, nil)
	var ferr *domain.FormatError
	if !errors.As(err, &ferr) || ferr.Input != "wide" {
		t.Fatalf("err = %v, want format error for wide", err)
	}
}

func TestRunPacesBetweenUnits(t *testing.T) {
	engine, _ := newTestEngine(t)
	clock := &instantClock{}
	engine.Clock = clock
	engine.Pacing = 0
	b := testBrief(
		domain.Product{Name: "a", Description: "first"},
		domain.Product{Name: "b", Description: "second"},
	)
	if _, err := engine.Run(context.Background(), b, Options{OutputDir: t.TempDir(), Ratios: []string{"1:1", "4:3"}}, nil); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(clock.waits) != 3 {
		t.Fatalf("pacing waits = %v, want 3", clock.waits)
	}
	for _, d := range clock.waits {
		if d != DefaultPacing {
			t.Fatalf("wait = %s, want %s", d, DefaultPacing)
		}
	}
}

func TestRunStopsWhenCancelled(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := engine.Run(ctx, testBrief(), Options{OutputDir: t.TempDir(), Ratios: []string{"1:1"}}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestPlanDeduplicates(t *testing.T) {
	t.Parallel()
	res, err := Plan([]string{"16:9", "21:9", "1:1", "16:9"}, false)
	if err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}
	if len(res) != 2 || res[0].Key != "16:9" || res[1].Key != "1:1" {
		t.Fatalf("Plan = %+v, want [16:9 1:1]", res)
	}

	all, err := Plan(nil, false)
	if err != nil || len(all) != 7 {
		t.Fatalf("Plan(nil) = %d entries, err %v, want every preset", len(all), err)
	}

	exact, err := Plan([]string{"21:9"}, true)
	if err != nil || exact[0].Key != "21:9" || exact[0].Approximated {
		t.Fatalf("Plan exact = %+v, err %v", exact, err)
	}
}
