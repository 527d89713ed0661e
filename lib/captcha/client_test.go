package captcha

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storescout/lib/telemetry"

	"github.com/stretchr/testify/require"
)

func TestExtractSiteKey(t *testing.T) {
	html := `<div class="g-recaptcha" data-sitekey="6LfD3PIbAAAAAJs_eEHvoOl75_83eXSqpPSRFJ_u"></div>`
	require.Equal(t, "6LfD3PIbAAAAAJs_eEHvoOl75_83eXSqpPSRFJ_u", ExtractSiteKey(html))

	require.Equal(t, "", ExtractSiteKey("<html><body>no challenge here</body></html>"))
}

func TestSolveRecaptcha(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:lib/captcha")
	defer cleanup()

	polls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/in.php":
			require.Equal(t, "userrecaptcha", r.URL.Query().Get("method"))
			require.Equal(t, "sitekey-123", r.URL.Query().Get("googlekey"))
			require.Equal(t, "user:pass@proxy.example.com:33335", r.URL.Query().Get("proxy"))
			require.Equal(t, "HTTP", r.URL.Query().Get("proxytype"))
			w.Write([]byte(`{"status": 1, "request": "task-42"}`))
		case "/res.php":
			require.Equal(t, "task-42", r.URL.Query().Get("id"))
			polls++
			if polls < 3 {
				w.Write([]byte(`{"status": 0, "request": "CAPCHA_NOT_READY"}`))
				return
			}
			w.Write([]byte(`{"status": 1, "request": "solved-token"}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(ClientOptions{Key: "test-key", BaseURL: server.URL})
	require.NoError(t, err)
	client.PollInterval = time.Millisecond

	token, err := client.SolveRecaptcha(context.Background(), SolveRequest{
		SiteKey: "sitekey-123",
		PageURL: "https://www.google.com/search?q=test",
		Proxy: &Proxy{
			Host:     "proxy.example.com",
			Port:     "33335",
			Username: "user",
			Password: "pass",
		},
	})
	require.NoError(t, err)
	require.Equal(t, "solved-token", token)
	require.Equal(t, 3, polls)
}

func TestSolveRecaptchaRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": 0, "request": "ERROR_WRONG_GOOGLEKEY"}`))
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(ClientOptions{Key: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.SolveRecaptcha(context.Background(), SolveRequest{SiteKey: "bad"})
	require.ErrorContains(t, err, "ERROR_WRONG_GOOGLEKEY")
}

func TestSolveRecaptchaContextCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/in.php":
			w.Write([]byte(`{"status": 1, "request": "task-1"}`))
		case "/res.php":
			w.Write([]byte(`{"status": 0, "request": "CAPCHA_NOT_READY"}`))
		}
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(ClientOptions{Key: "test-key", BaseURL: server.URL})
	require.NoError(t, err)
	client.PollInterval = time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond*20)
	defer cancel()

	_, err = client.SolveRecaptcha(ctx, SolveRequest{SiteKey: "sitekey"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
