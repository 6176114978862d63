package transcribe

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/voxpipe/voxpipe/internal/wav"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c := New(Config{
		APIBase:  baseURL,
		APIKey:   "test-key",
		KeyAlias: "test-alias",
		Model:    "whisper-1",
	}, nil)
	c.retryDelay = time.Millisecond
	return c
}

func writeTestArtifact(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.wav")
	samples := make([]int16, 1600)
	for i := range samples {
		samples[i] = int16(i % 1000)
	}
	require.NoError(t, wav.WritePCM16(path, samples, 16000))
	return path
}

func TestTranscribeSuccess(t *testing.T) {
	var gotAuth, gotAlias, gotRequestID, gotCache string
	var gotModel, gotFormat, gotFilename string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		gotAlias = r.Header.Get("X-Key-Alias")
		gotRequestID = r.Header.Get("X-Request-ID")
		gotCache = r.Header.Get("Cache-Control")

		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotModel = r.FormValue("model")
		gotFormat = r.FormValue("response_format")
		require.NotEmpty(t, r.FormValue("timestamp"))

		_, fileHeader, err := r.FormFile("file")
		require.NoError(t, err)
		gotFilename = fileHeader.Filename

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"text":"  hello world  "}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	text, err := client.Transcribe(context.Background(), writeTestArtifact(t))
	require.NoError(t, err)
	require.Equal(t, "hello world", text)

	require.Equal(t, "Bearer test-key", gotAuth)
	require.Equal(t, "test-alias", gotAlias)
	require.NotEmpty(t, gotRequestID)
	require.Equal(t, "no-cache", gotCache)
	require.Equal(t, "whisper-1", gotModel)
	require.Equal(t, "json", gotFormat)
	require.Contains(t, gotFilename, gotRequestID)
}

func TestTranscribeServiceUnavailableExhaustsThreeAttempts(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Transcribe(context.Background(), writeTestArtifact(t))
	require.ErrorIs(t, err, ErrRetriesExhausted)
	require.ErrorIs(t, err, ErrServiceUnavailable)
	require.Equal(t, int32(3), attempts.Load())
}

func TestTranscribeInvalidCredentialsNoRetry(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Transcribe(context.Background(), writeTestArtifact(t))
	require.ErrorIs(t, err, ErrInvalidCredentials)
	require.NotErrorIs(t, err, ErrRetriesExhausted)
	require.Equal(t, int32(1), attempts.Load())
}

func TestTranscribeOtherStatusSurfacesCodeAfterRetries(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream exploded"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Transcribe(context.Background(), writeTestArtifact(t))
	require.ErrorIs(t, err, ErrRetriesExhausted)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	require.Equal(t, int32(3), attempts.Load())
}

func TestTranscribeNetworkErrorRetriesThenFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close() // connection refused from the first attempt

	client := newTestClient(t, server.URL)
	_, err := client.Transcribe(context.Background(), writeTestArtifact(t))
	require.ErrorIs(t, err, ErrRetriesExhausted)
	require.ErrorIs(t, err, ErrNetwork)
}

func TestTranscribeRequestIDsAreUniqueAcrossCalls(t *testing.T) {
	var ids []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids = append(ids, r.Header.Get("X-Request-ID"))
		_, _ = w.Write([]byte(`{"text":"ok"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	artifact := writeTestArtifact(t)

	_, err := client.Transcribe(context.Background(), artifact)
	require.NoError(t, err)
	_, err = client.Transcribe(context.Background(), artifact)
	require.NoError(t, err)

	require.Len(t, ids, 2)
	require.NotEqual(t, ids[0], ids[1])
}

func TestTranscribeSmallArtifactUploadedUnmodified(t *testing.T) {
	var uploaded []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, _, err := r.FormFile("file")
		require.NoError(t, err)
		uploaded, err = io.ReadAll(file)
		require.NoError(t, err)
		_, _ = w.Write([]byte(`{"text":"ok"}`))
	}))
	defer server.Close()

	artifact := writeTestArtifact(t)
	original, err := os.ReadFile(artifact)
	require.NoError(t, err)

	client := newTestClient(t, server.URL)
	_, err = client.Transcribe(context.Background(), artifact)
	require.NoError(t, err)
	require.Equal(t, original, uploaded) // byte-for-byte, no resampling
}

func TestTranscribeCancellationStopsRetrying(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	client.retryDelay = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Transcribe(ctx, writeTestArtifact(t))
	require.Error(t, err)
	require.Equal(t, int32(1), attempts.Load())
}

func TestTranscribeMissingFile(t *testing.T) {
	client := newTestClient(t, "http://127.0.0.1:0")
	_, err := client.Transcribe(context.Background(), filepath.Join(t.TempDir(), "missing.wav"))
	require.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	complete := New(Config{APIBase: "http://api", APIKey: "k", KeyAlias: "a", Model: "m"}, nil)
	require.True(t, complete.ValidateConfig())
	require.Empty(t, complete.ConfigErrors())

	incomplete := New(Config{APIBase: "http://api"}, nil)
	require.False(t, incomplete.ValidateConfig())
	require.Len(t, incomplete.ConfigErrors(), 3)
}

func TestTestConnection(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		ok      bool
		message string
	}{
		{"ok", http.StatusOK, true, "connection successful"},
		{"endpoint absent", http.StatusNotFound, true, "authentication worked"},
		{"bad key", http.StatusUnauthorized, false, "invalid API key"},
		{"forbidden", http.StatusForbidden, false, "access denied"},
		{"other", http.StatusTeapot, false, "HTTP 418"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "/v1/models", r.URL.Path)
				w.WriteHeader(tc.status)
			}))
			defer server.Close()

			ok, message := newTestClient(t, server.URL).TestConnection(context.Background())
			require.Equal(t, tc.ok, ok)
			require.Contains(t, message, tc.message)
		})
	}
}

func TestTestConnectionMissingConfig(t *testing.T) {
	client := New(Config{}, nil)
	ok, message := client.TestConnection(context.Background())
	require.False(t, ok)
	require.Contains(t, message, "configuration errors")
}
