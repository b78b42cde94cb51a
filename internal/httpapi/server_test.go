package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filecrate/filecrate/internal/store"
	"github.com/filecrate/filecrate/internal/store/local"
)

func newTestServer(t *testing.T) *httptest.Server {
	srv, _ := newTestServerWith(t, nil)
	return srv
}

func newTestServerWith(t *testing.T, mutate func(*local.Config)) (*httptest.Server, *local.Driver) {
	t.Helper()
	cfg := local.DefaultConfig(t.TempDir())
	if mutate != nil {
		mutate(cfg)
	}
	st, err := local.New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	srv := httptest.NewServer(NewServer(st, nil).Handler())
	t.Cleanup(srv.Close)
	return srv, st
}

func multipartUpload(t *testing.T, fileName, content string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = io.WriteString(part, content)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func uploadFile(t *testing.T, srv *httptest.Server, fileName, content string, fields map[string]string) store.FileRecord {
	t.Helper()
	body, contentType := multipartUpload(t, fileName, content, fields)
	resp, err := http.Post(srv.URL+"/files", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var rec store.FileRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	return rec
}

func TestUploadAndDownload(t *testing.T) {
	srv := newTestServer(t)

	rec := uploadFile(t, srv, "greeting.txt", "hello", map[string]string{
		"folder":   "docs",
		"metadata": `{"author":"ada"}`,
	})
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "greeting.txt", rec.Name)
	assert.Equal(t, "docs", rec.Folder)
	assert.Equal(t, int64(5), rec.SizeBytes)
	assert.Equal(t, map[string]string{"author": "ada"}, rec.Metadata)

	resp, err := http.Get(srv.URL + "/files/" + rec.ID)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/plain", resp.Header.Get("Content-Type"))

	got, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}

// The folder form field comes straight from the client; dot segments in it
// must be rejected, not built into a storage path.
func TestUploadRejectsTraversalFolder(t *testing.T) {
	srv := newTestServer(t)

	body, contentType := multipartUpload(t, "evil.txt", "x", map[string]string{
		"folder": "../escaped",
	})
	resp, err := http.Post(srv.URL+"/files", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

// A local-driver signed URL points back at the download route; the adapter
// must verify the signature when the query carries one.
func TestSignedDownloadVerification(t *testing.T) {
	srv, st := newTestServerWith(t, func(cfg *local.Config) {
		cfg.SignedURLKey = []byte("test-signing-key")
	})
	rec := uploadFile(t, srv, "secret.txt", "classified", nil)

	signed, err := st.SignedURL(context.Background(), rec.ID, time.Minute)
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + signed)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "classified", string(got))

	// A tampered signature is refused.
	resp, err = http.Get(srv.URL + "/files/" + rec.ID + "?expires=9999999999&signature=deadbeef")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Requests without signature parameters stay on the open route.
	resp, err = http.Get(srv.URL + "/files/" + rec.ID)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetadataEndpoint(t *testing.T) {
	srv := newTestServer(t)
	rec := uploadFile(t, srv, "a.txt", "x", nil)

	resp, err := http.Get(srv.URL + "/files/" + rec.ID + "/metadata")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got store.FileRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, rec.ID, got.ID)
}

func TestErrorStatusMapping(t *testing.T) {
	srv := newTestServer(t)
	rec := uploadFile(t, srv, "a.txt", "x", nil)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{"unknown id is 404", http.MethodGet, "/files/no-such-id/metadata", "", http.StatusNotFound},
		{"invalid rename is 422", http.MethodPost, "/files/" + rec.ID + "/rename", `{"name":"bad/name.txt"}`, http.StatusUnprocessableEntity},
		{"unsigned driver is 501", http.MethodGet, "/files/" + rec.ID + "/urls", "", http.StatusNotImplemented},
		{"malformed body is 400", http.MethodPost, "/files/" + rec.ID + "/rename", `{not json`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, srv.URL+tt.path, strings.NewReader(tt.body))
			require.NoError(t, err)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

func TestRenameMoveDelete(t *testing.T) {
	srv := newTestServer(t)
	rec := uploadFile(t, srv, "draft.txt", "body", nil)

	resp, err := http.Post(srv.URL+"/files/"+rec.ID+"/rename", "application/json",
		strings.NewReader(`{"name":"final.txt"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var renamed store.FileRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&renamed))
	assert.Equal(t, "final.txt", renamed.Name)

	resp, err = http.Post(srv.URL+"/files/"+rec.ID+"/move", "application/json",
		strings.NewReader(`{"folder":"archive"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/files/"+rec.ID, nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var deleted map[string]bool
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&deleted))
	assert.True(t, deleted["deleted"])
}

func TestListAndSearch(t *testing.T) {
	srv := newTestServer(t)
	uploadFile(t, srv, "one.txt", "x", map[string]string{"folder": "docs"})
	uploadFile(t, srv, "two.txt", "x", map[string]string{"folder": "docs"})
	uploadFile(t, srv, "other.pdf", "%PDF-fake", map[string]string{"folder": "media"})

	resp, err := http.Get(srv.URL + "/files?folder=docs&page=1&pageSize=10")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var page store.Page
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	assert.Equal(t, 2, page.TotalCount)

	resp, err = http.Post(srv.URL+"/files/search", "application/json",
		strings.NewReader(`{"namePattern":"*.pdf"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var found store.Page
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&found))
	require.Len(t, found.Items, 1)
	assert.Equal(t, "other.pdf", found.Items[0].Name)
}

func TestFolderEndpoints(t *testing.T) {
	srv := newTestServer(t)
	uploadFile(t, srv, "a.txt", "x", map[string]string{"folder": "docs/2026"})

	resp, err := http.Post(srv.URL+"/folders", "application/json",
		strings.NewReader(`{"path":"empty/zone"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/folders")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var listed map[string][]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listed))
	assert.Contains(t, listed["folders"], "docs/2026")
	assert.Contains(t, listed["folders"], "empty/zone")

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/folders?path=docs&recursive=true", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var deleted map[string]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&deleted))
	assert.Equal(t, 1, deleted["deleted"])
}

func TestBulkEndpoints(t *testing.T) {
	srv := newTestServer(t)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for _, name := range []string{"a.txt", "b.txt"} {
		part, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = io.WriteString(part, "payload")
		require.NoError(t, err)
	}
	require.NoError(t, mw.WriteField("folder", "bulk"))
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/files/bulk", mw.FormDataContentType(), body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var uploaded struct {
		Saved []store.FileRecord `json:"saved"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&uploaded))
	require.Len(t, uploaded.Saved, 2)

	ids := []string{uploaded.Saved[0].ID, "no-such-id", uploaded.Saved[1].ID}
	raw, err := json.Marshal(map[string]any{"ids": ids})
	require.NoError(t, err)

	resp, err = http.Post(srv.URL+"/files/bulk-delete", "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var deleted struct {
		Deleted []string `json:"deleted"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&deleted))
	assert.Equal(t, []string{uploaded.Saved[0].ID, uploaded.Saved[1].ID}, deleted.Deleted)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
