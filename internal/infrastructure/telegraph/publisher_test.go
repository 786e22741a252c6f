package telegraph

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestPublisher(serverURL string) *Publisher {
	p := NewPublisher("test-token", "RSS Digest Bot", nil)
	p.apiURL = serverURL
	return p
}

func TestPublishDigestCreatesPage(t *testing.T) {
	t.Parallel()

	var gotTitle, gotContent, gotToken string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/createPage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotTitle = r.PostFormValue("title")
		gotContent = r.PostFormValue("content")
		gotToken = r.PostFormValue("access_token")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"path":"Digest-08-31"}}`))
	}))
	t.Cleanup(server.Close)

	url, err := newTestPublisher(server.URL).PublishDigest(context.Background(), "Digest", "## AI\n- item")
	if err != nil {
		t.Fatalf("PublishDigest: %v", err)
	}

	if url != "https://telegra.ph/Digest-08-31" {
		t.Fatalf("unexpected page url: %s", url)
	}
	if gotTitle != "Digest" || gotToken != "test-token" {
		t.Fatalf("unexpected form: title=%q token=%q", gotTitle, gotToken)
	}
	if !strings.Contains(gotContent, "<h4>AI</h4>") {
		t.Fatalf("content not converted to HTML: %q", gotContent)
	}
}

func TestPublishDigestAPIError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false,"error":"ACCESS_TOKEN_INVALID"}`))
	}))
	t.Cleanup(server.Close)

	_, err := newTestPublisher(server.URL).PublishDigest(context.Background(), "Digest", "body")
	if err == nil || !strings.Contains(err.Error(), "ACCESS_TOKEN_INVALID") {
		t.Fatalf("expected API error, got %v", err)
	}
}

func TestPublishDigestMalformedResponse(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true,"result":{}}`))
	}))
	t.Cleanup(server.Close)

	_, err := newTestPublisher(server.URL).PublishDigest(context.Background(), "Digest", "body")
	if err == nil || !strings.Contains(err.Error(), "missing page path") {
		t.Fatalf("expected malformed-response error, got %v", err)
	}
}

func TestPublishDigestNoToken(t *testing.T) {
	t.Parallel()

	p := NewPublisher("", "bot", nil)
	if _, err := p.PublishDigest(context.Background(), "Digest", "body"); err == nil {
		t.Fatalf("expected misconfiguration error")
	}
}
