package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"rssdigest/internal/config"
	"rssdigest/internal/domain"
)

type completionRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

// newCompletionServer answers chat completions using reply to build the
// content from the user message.
func newCompletionServer(t *testing.T, reply func(req completionRequest) string) (*httptest.Server, *[]completionRequest) {
	t.Helper()

	var (
		mu       sync.Mutex
		requests []completionRequest
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req completionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		mu.Lock()
		requests = append(requests, req)
		mu.Unlock()

		content := reply(req)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		})
	}))
	t.Cleanup(server.Close)
	return server, &requests
}

func newTestClient(serverURL string) *Client {
	return NewClient(config.AIConfig{
		BaseURL:     serverURL,
		APIKey:      "test-key",
		Stage1Model: "stage1-model",
		Stage2Model: "stage2-model",
	}, 4, nil)
}

func TestSummarizeArticlesMergesInOrder(t *testing.T) {
	t.Parallel()

	server, _ := newCompletionServer(t, func(req completionRequest) string {
		user := req.Messages[len(req.Messages)-1].Content
		for i := 0; i < 5; i++ {
			if strings.Contains(user, fmt.Sprintf("Title: article-%d", i)) {
				return fmt.Sprintf("summary-%d", i)
			}
		}
		return "unknown"
	})

	entries := make([]domain.Entry, 5)
	for i := range entries {
		entries[i] = domain.Entry{
			ID:      int64(i + 1),
			Title:   fmt.Sprintf("article-%d", i),
			Content: "body",
			Link:    fmt.Sprintf("https://example.org/%d", i),
		}
	}

	merged, err := newTestClient(server.URL).SummarizeArticles(context.Background(), entries)
	if err != nil {
		t.Fatalf("SummarizeArticles: %v", err)
	}

	last := -1
	for i := 0; i < 5; i++ {
		pos := strings.Index(merged, fmt.Sprintf("summary-%d", i))
		if pos < 0 {
			t.Fatalf("summary-%d missing from merge: %q", i, merged)
		}
		if pos < last {
			t.Fatalf("summaries out of entry order: %q", merged)
		}
		last = pos
	}
}

func TestSummarizeArticlesSkipsFailedArticle(t *testing.T) {
	t.Parallel()

	server, _ := newCompletionServer(t, func(req completionRequest) string {
		user := req.Messages[len(req.Messages)-1].Content
		if strings.Contains(user, "Title: bad") {
			return "" // blank completion, classified as a failure
		}
		return "fine"
	})

	entries := []domain.Entry{
		{ID: 1, Title: "good", Content: "a"},
		{ID: 2, Title: "bad", Content: "b"},
	}

	merged, err := newTestClient(server.URL).SummarizeArticles(context.Background(), entries)
	if err != nil {
		t.Fatalf("SummarizeArticles: %v", err)
	}
	if !strings.Contains(merged, "good") || strings.Contains(merged, "bad**") {
		t.Fatalf("unexpected merge: %q", merged)
	}
}

func TestSummarizeArticlesAllFailed(t *testing.T) {
	t.Parallel()

	server, _ := newCompletionServer(t, func(completionRequest) string { return "" })

	_, err := newTestClient(server.URL).SummarizeArticles(context.Background(), []domain.Entry{
		{ID: 1, Title: "only", Content: "a"},
	})
	if !errors.Is(err, ErrEmptyCompletion) {
		t.Fatalf("expected ErrEmptyCompletion, got %v", err)
	}
}

func TestFinalizeDigestSendsHistory(t *testing.T) {
	t.Parallel()

	server, requests := newCompletionServer(t, func(completionRequest) string {
		return "## AI\n- digest"
	})

	body, err := newTestClient(server.URL).FinalizeDigest(context.Background(), "merged text", []string{"past digest"})
	if err != nil {
		t.Fatalf("FinalizeDigest: %v", err)
	}
	if body != "## AI\n- digest" {
		t.Fatalf("unexpected body: %q", body)
	}

	reqs := *requests
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}
	if reqs[0].Model != "stage2-model" {
		t.Fatalf("stage 2 must use the stage-2 model, got %s", reqs[0].Model)
	}
	user := reqs[0].Messages[len(reqs[0].Messages)-1].Content
	if !strings.Contains(user, "past digest") || !strings.Contains(user, "merged text") {
		t.Fatalf("prompt missing history or summaries: %q", user)
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	if _, err := classify("   \n"); !errors.Is(err, ErrEmptyCompletion) {
		t.Fatalf("blank must classify as empty, got %v", err)
	}
	if _, err := classify("ok text with Failed to generate digest marker"); !errors.Is(err, ErrFailureMarker) {
		t.Fatalf("english marker must classify as failure, got %v", err)
	}
	if _, err := classify("前言 无法生成摘要 后语"); !errors.Is(err, ErrFailureMarker) {
		t.Fatalf("chinese marker must classify as failure, got %v", err)
	}
	out, err := classify("  a good digest \n")
	if err != nil || out != "a good digest" {
		t.Fatalf("unexpected classify result: %q, %v", out, err)
	}
}

func TestFinalizeDigestHTTPError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	t.Cleanup(server.Close)

	_, err := newTestClient(server.URL).FinalizeDigest(context.Background(), "merged", nil)
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected status error, got %v", err)
	}
}
