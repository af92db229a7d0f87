package gcs

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticTokens() *tokenSource {
	return &tokenSource{fetch: func(context.Context) (string, time.Time, error) {
		return "token", time.Now().Add(time.Hour), nil
	}}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &Client{
		httpClient:    srv.Client(),
		baseURL:       srv.URL,
		defaultBucket: "proofs-bucket",
		tokenSource:   staticTokens(),
	}
}

func TestUploadObjectSendsMediaUpload(t *testing.T) {
	t.Parallel()

	var gotBody string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/upload/storage/v1/b/proofs-bucket/o", r.URL.Path)
		assert.Equal(t, "media", r.URL.Query().Get("uploadType"))
		assert.Equal(t, "proofs/r1/abc.png", r.URL.Query().Get("name"))
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		assert.Equal(t, "image/png", r.Header.Get("Content-Type"))
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"name":"proofs/r1/abc.png"}`))
	})

	require.NoError(t, client.UploadObject(context.Background(), "", "proofs/r1/abc.png", "image/png", []byte("png")))
	assert.Equal(t, "png", gotBody)
}

func TestDownloadObject(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.EscapedPath(), "missing") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		assert.Equal(t, "media", r.URL.Query().Get("alt"))
		assert.Equal(t, "/storage/v1/b/proofs-bucket/o/proofs%2Fr1%2Fabc.png", r.URL.EscapedPath())
		_, _ = w.Write([]byte("png"))
	})

	data, err := client.DownloadObject(context.Background(), "", "proofs/r1/abc.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), data)

	_, err = client.DownloadObject(context.Background(), "", "proofs/missing.png")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteObjectTreatsNotFoundAsDeleted(t *testing.T) {
	t.Parallel()

	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, http.MethodDelete, r.Method)
		if calls == 1 {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	require.NoError(t, client.DeleteObject(context.Background(), "", "proofs/r1/abc.png"))
	require.NoError(t, client.DeleteObject(context.Background(), "", "proofs/r1/abc.png"))
	assert.Equal(t, 2, calls)
}

func TestDeleteObjectSurfacesServerErrors(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend unavailable", http.StatusServiceUnavailable)
	})

	err := client.DeleteObject(context.Background(), "", "proofs/r1/abc.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend unavailable")
}

func TestPingListsBucket(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/storage/v1/b/proofs-bucket/o", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("maxResults"))
		_, _ = w.Write([]byte(`{"items":[]}`))
	})
	require.NoError(t, client.Ping(context.Background()))
}

func TestObjectCallsValidateInput(t *testing.T) {
	t.Parallel()

	client := &Client{tokenSource: staticTokens()}
	require.Error(t, client.UploadObject(context.Background(), "", "obj", "image/png", nil))

	client.defaultBucket = "bucket"
	require.Error(t, client.DeleteObject(context.Background(), "", " "))

	var empty *Client
	require.Error(t, empty.Ping(context.Background()))
}

func TestServiceAccountTokenSource(t *testing.T) {
	t.Parallel()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pemKey := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})

	fetches := 0
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches++
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "urn:ietf:params:oauth:grant-type:jwt-bearer", r.PostForm.Get("grant_type"))
		assert.Equal(t, 3, len(strings.Split(r.PostForm.Get("assertion"), ".")))
		_, _ = w.Write([]byte(`{"access_token":"sa-token","expires_in":3600}`))
	}))
	t.Cleanup(tokenSrv.Close)

	creds, err := json.Marshal(map[string]string{
		"client_email": "uploader@example.iam.gserviceaccount.com",
		"private_key":  string(pemKey),
		"token_uri":    tokenSrv.URL,
	})
	require.NoError(t, err)

	ts, err := newServiceAccountTokenSource(tokenSrv.Client(), string(creds))
	require.NoError(t, err)

	token, err := ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sa-token", token)

	_, err = ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, fetches, "cached token should be reused")
}

func TestServiceAccountTokenSourceRejectsBadCredentials(t *testing.T) {
	t.Parallel()

	_, err := newServiceAccountTokenSource(http.DefaultClient, `{"client_email":""}`)
	require.Error(t, err)
	_, err = parsePrivateKey("not a pem")
	require.Error(t, err)
}
