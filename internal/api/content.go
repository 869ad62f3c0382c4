package api

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/echotwin/echotwin/internal/apperr"
	"github.com/echotwin/echotwin/internal/core"
	"github.com/echotwin/echotwin/internal/store"
)

// Ingestion handlers run on a background context: a client disconnect must
// not abort in-flight extraction/embedding/upsert work, which would leave
// half-written vector or metadata state.

type SaveTextRequest struct {
	Text string `json:"text"`
}

func (h *APIHandler) SaveTextHandler(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.resolveScope(w, r)
	if !ok {
		return
	}

	var req SaveTextRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.Text == "" {
		h.writeError(w, apperr.NewValidation("text is required"))
		return
	}

	item, err := h.ingestion.IngestText(context.Background(), scope, req.Text, store.KindConversation)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, item)
}

func (h *APIHandler) UploadFileHandler(w http.ResponseWriter, r *http.Request) {
	h.handleUpload(w, r, false)
}

func (h *APIHandler) UploadWritingSampleHandler(w http.ResponseWriter, r *http.Request) {
	h.handleUpload(w, r, true)
}

func (h *APIHandler) handleUpload(w http.ResponseWriter, r *http.Request, isWritingSample bool) {
	scope, ok := h.resolveScope(w, r)
	if !ok {
		return
	}
	if isWritingSample && scope.IsProject() {
		h.writeError(w, apperr.NewValidation("writing samples belong to the profile scope"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.UploadMaxBytes)
	if err := r.ParseMultipartForm(h.cfg.UploadMaxBytes); err != nil {
		h.writeError(w, apperr.NewValidation("invalid multipart upload: "+err.Error()))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, apperr.NewValidation("file form field is required"))
		return
	}
	defer file.Close()

	tmpPath, err := h.saveTemp(file, header.Filename)
	if err != nil {
		h.writeError(w, err)
		return
	}
	// Temp cleanup happens whether or not extraction/ingestion succeeds.
	defer func() {
		if err := os.Remove(tmpPath); err != nil {
			h.logger.Warn("failed to remove temp upload", zap.String("path", tmpPath), zap.Error(err))
		}
	}()

	mimeType := header.Header.Get("Content-Type")
	item, err := h.ingestion.IngestFile(context.Background(), scope, tmpPath, header.Filename, mimeType, isWritingSample)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, item)
}

func (h *APIHandler) saveTemp(src io.Reader, filename string) (string, error) {
	tmp, err := os.CreateTemp("", "echotwin-upload-*"+filepath.Ext(filename))
	if err != nil {
		return "", apperr.NewInternal(err)
	}
	defer tmp.Close()

	if _, err := io.Copy(tmp, src); err != nil {
		os.Remove(tmp.Name())
		return "", apperr.NewInternal(err)
	}
	return tmp.Name(), nil
}

func (h *APIHandler) ListConversationsHandler(w http.ResponseWriter, r *http.Request) {
	h.listItems(w, r, store.KindConversation)
}

func (h *APIHandler) ListFilesHandler(w http.ResponseWriter, r *http.Request) {
	h.listItems(w, r, store.KindFile)
}

func (h *APIHandler) listItems(w http.ResponseWriter, r *http.Request, kind string) {
	scope, ok := h.resolveScope(w, r)
	if !ok {
		return
	}
	items, err := h.ingestion.ListItems(scope, kind)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if items == nil {
		items = []store.ContentItem{}
	}
	h.writeJSON(w, http.StatusOK, items)
}

func (h *APIHandler) DeleteConversationHandler(w http.ResponseWriter, r *http.Request) {
	h.deleteItem(w, r, store.KindConversation)
}

func (h *APIHandler) DeleteFileHandler(w http.ResponseWriter, r *http.Request) {
	h.deleteItem(w, r, store.KindFile)
}

func (h *APIHandler) deleteItem(w http.ResponseWriter, r *http.Request, kind string) {
	scope, ok := h.resolveScope(w, r)
	if !ok {
		return
	}
	if err := h.ingestion.DeleteItem(context.Background(), scope, urlParam(r, "itemID"), kind); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// resolveScope derives the quota/namespace scope for a request: the caller's
// profile scope, or — on routes carrying a projectID — the project scope,
// which is owner-only for content mutation and listing.
func (h *APIHandler) resolveScope(w http.ResponseWriter, r *http.Request) (core.Scope, bool) {
	uid := uidFromContext(r)
	projectID := urlParam(r, "projectID")
	if projectID == "" {
		return core.ProfileScope(uid), true
	}

	project, err := h.projects.Get(projectID)
	if err != nil {
		h.writeError(w, err)
		return core.Scope{}, false
	}
	if project.OwnerID != uid {
		h.writeError(w, apperr.NewPermission("only the project owner may manage its content"))
		return core.Scope{}, false
	}
	return core.ProjectScope(project.OwnerID, project.ID), true
}
