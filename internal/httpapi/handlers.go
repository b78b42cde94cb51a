package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/filecrate/filecrate/internal/errs"
	"github.com/filecrate/filecrate/internal/store"
	"github.com/filecrate/filecrate/internal/thumbnail"
)

// maxMultipartMemory bounds the in-memory part of multipart parsing; larger
// uploads spill to temp files.
const maxMultipartMemory = 32 << 20

const defaultSignedURLExpiry = 15 * time.Minute

// handleUpload accepts one multipart file under the "file" field. Optional
// form fields: folder, overwrite, metadata (a JSON object).
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		badRequest(w, "invalid multipart body")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		badRequest(w, "missing file field")
		return
	}
	defer file.Close()

	metadata, err := parseMetadataField(r.FormValue("metadata"))
	if err != nil {
		badRequest(w, "metadata must be a JSON object of strings")
		return
	}

	rec, err := s.store.Save(r.Context(), file, header.Filename, store.SaveOptions{
		Folder:       r.FormValue("folder"),
		Metadata:     metadata,
		Overwrite:    r.FormValue("overwrite") == "true",
		DeclaredSize: header.Size,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// handleBulkUpload accepts multiple files under the "files" field, all saved
// into the same folder.
func (s *Server) handleBulkUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		badRequest(w, "invalid multipart body")
		return
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		badRequest(w, "missing files field")
		return
	}

	items := make([]store.SaveItem, 0, len(headers))
	var opened []io.Closer
	defer func() {
		for _, c := range opened {
			c.Close()
		}
	}()
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			badRequest(w, "unreadable multipart file: "+h.Filename)
			return
		}
		opened = append(opened, f)
		items = append(items, store.SaveItem{FileName: h.Filename, Content: f})
	}

	records, err := s.store.BulkSave(r.Context(), items, r.FormValue("folder"))
	if err != nil {
		// Partial successes persist; surface them alongside the failure.
		writeJSON(w, statusFor(err), map[string]any{
			"saved": records,
			"error": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"saved": records})
}

// signedURLVerifier is implemented by drivers whose signed URLs point back at
// this adapter's download route instead of at the backend directly.
type signedURLVerifier interface {
	VerifySignedURL(id string, expires int64, signature string) bool
}

// checkSignature validates signed-URL query parameters when present. Requests
// without them pass through untouched.
func (s *Server) checkSignature(r *http.Request, id string) error {
	q := r.URL.Query()
	expStr, sig := q.Get("expires"), q.Get("signature")
	if expStr == "" && sig == "" {
		return nil
	}

	v, ok := s.store.(signedURLVerifier)
	if !ok {
		return errs.New(errs.ErrKindPermissionDenied, "this backend does not verify signed URLs")
	}
	expires, err := strconv.ParseInt(expStr, 10, 64)
	if err != nil || !v.VerifySignedURL(id, expires, sig) {
		return errs.New(errs.ErrKindPermissionDenied, "invalid or expired signature")
	}
	return nil
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.checkSignature(r, id); err != nil {
		writeError(w, err)
		return
	}
	rec, err := s.store.GetMetadata(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	content, err := s.store.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	defer content.Close()

	w.Header().Set("Content-Type", rec.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+rec.Name+`"`)
	if rec.SizeBytes > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(rec.SizeBytes, 10))
	}
	io.Copy(w, content)
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.GetMetadata(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.store.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &body); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	rec, err := s.store.Rename(r.Context(), chi.URLParam(r, "id"), body.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Folder string `json:"folder"`
	}
	if err := decodeBody(r, &body); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	rec, err := s.store.Move(r.Context(), chi.URLParam(r, "id"), body.Folder)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleCopy(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Folder string `json:"folder"`
	}
	if err := decodeBody(r, &body); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	rec, err := s.store.Copy(r.Context(), chi.URLParam(r, "id"), body.Folder)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleBulkDelete(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IDs []string `json:"ids"`
	}
	if err := decodeBody(r, &body); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	deleted := s.store.BulkDelete(r.Context(), body.IDs)
	writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}

func (s *Server) handleBulkMove(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IDs    []string `json:"ids"`
		Folder string   `json:"folder"`
	}
	if err := decodeBody(r, &body); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	moved := s.store.BulkMove(r.Context(), body.IDs, body.Folder)
	writeJSON(w, http.StatusOK, map[string]any{"moved": moved})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("pageSize"))

	result, err := s.store.List(r.Context(), q.Get("folder"), page, pageSize)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// searchRequest is the JSON binding of store.SearchCriteria.
type searchRequest struct {
	NamePattern       string            `json:"namePattern"`
	Folder            *string           `json:"folder"`
	IncludeSubfolders *bool             `json:"includeSubfolders"`
	FolderStartsWith  string            `json:"folderStartsWith"`
	Extension         string            `json:"extension"`
	ContentType       string            `json:"contentType"`
	MinSizeBytes      *int64            `json:"minSizeBytes"`
	MaxSizeBytes      *int64            `json:"maxSizeBytes"`
	CreatedAfter      *time.Time        `json:"createdAfter"`
	CreatedBefore     *time.Time        `json:"createdBefore"`
	UpdatedAfter      *time.Time        `json:"updatedAfter"`
	UpdatedBefore     *time.Time        `json:"updatedBefore"`
	Metadata          map[string]string `json:"metadata"`
	SortBy            string            `json:"sortBy"`
	SortDescending    bool              `json:"sortDescending"`
	Page              int               `json:"page"`
	PageSize          int               `json:"pageSize"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var body searchRequest
	if err := decodeBody(r, &body); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	result, err := s.store.Search(r.Context(), store.SearchCriteria{
		NamePattern:       body.NamePattern,
		Folder:            body.Folder,
		IncludeSubfolders: body.IncludeSubfolders,
		FolderStartsWith:  body.FolderStartsWith,
		Extension:         body.Extension,
		ContentType:       body.ContentType,
		MinSizeBytes:      body.MinSizeBytes,
		MaxSizeBytes:      body.MaxSizeBytes,
		CreatedAfter:      body.CreatedAfter,
		CreatedBefore:     body.CreatedBefore,
		UpdatedAfter:      body.UpdatedAfter,
		UpdatedBefore:     body.UpdatedBefore,
		Metadata:          body.Metadata,
		SortBy:            store.SortField(body.SortBy),
		SortDescending:    body.SortDescending,
		Page:              body.Page,
		PageSize:          body.PageSize,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	size := thumbnail.Size(r.URL.Query().Get("size"))
	if size == "" {
		size = thumbnail.SizeSmall
	}

	thumb, err := s.store.Thumbnail(r.Context(), chi.URLParam(r, "id"), size)
	if err != nil {
		writeError(w, err)
		return
	}
	defer thumb.Close()

	w.Header().Set("Content-Type", "image/jpeg")
	io.Copy(w, thumb)
}

func (s *Server) handleURLs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	expiry := defaultSignedURLExpiry
	if v := r.URL.Query().Get("expirySeconds"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			badRequest(w, "expirySeconds must be a positive integer")
			return
		}
		expiry = time.Duration(secs) * time.Second
	}

	resp := map[string]string{
		"publicUrl": s.store.PublicURL(r.Context(), id),
	}
	signed, err := s.store.SignedURL(r.Context(), id, expiry)
	if err != nil {
		writeError(w, err)
		return
	}
	resp["signedUrl"] = signed
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListFolders(w http.ResponseWriter, r *http.Request) {
	folders, err := s.store.ListFolders(r.Context(), r.URL.Query().Get("parent"))
	if err != nil {
		writeError(w, err)
		return
	}
	if folders == nil {
		folders = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"folders": folders})
}

func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Path string `json:"path"`
	}
	if err := decodeBody(r, &body); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	created, err := s.store.CreateFolder(r.Context(), body.Path)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"path": created})
}

func (s *Server) handleDeleteFolder(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	count, err := s.store.DeleteFolder(r.Context(), q.Get("path"), q.Get("recursive") == "true")
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": count})
}

func parseMetadataField(raw string) (map[string]string, error) {
	if raw == "" {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, err
	}
	return m, nil
}
