package api

import (
	"net/http"

	"github.com/echotwin/echotwin/internal/apperr"
	"github.com/echotwin/echotwin/internal/core"
	"github.com/echotwin/echotwin/internal/store"
)

func (h *APIHandler) CreateProjectHandler(w http.ResponseWriter, r *http.Request) {
	var params core.ProjectParams
	if err := h.decodeJSON(r, &params); err != nil {
		h.writeError(w, err)
		return
	}

	project, err := h.projects.Create(uidFromContext(r), params)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, project)
}

func (h *APIHandler) ListProjectsHandler(w http.ResponseWriter, r *http.Request) {
	projects, err := h.projects.List(uidFromContext(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if projects == nil {
		projects = []store.Project{}
	}
	h.writeJSON(w, http.StatusOK, projects)
}

// GetProjectHandler is public so project assistants can be shared by id.
func (h *APIHandler) GetProjectHandler(w http.ResponseWriter, r *http.Request) {
	project, err := h.projects.Get(urlParam(r, "projectID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, project)
}

func (h *APIHandler) UpdateProjectHandler(w http.ResponseWriter, r *http.Request) {
	var params core.ProjectParams
	if err := h.decodeJSON(r, &params); err != nil {
		h.writeError(w, err)
		return
	}

	project, err := h.projects.Update(uidFromContext(r), urlParam(r, "projectID"), params)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, project)
}

func (h *APIHandler) DeleteProjectHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.projects.Delete(r.Context(), uidFromContext(r), urlParam(r, "projectID")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AskProjectHandler answers within a project's namespace. Owners can always
// ask; anyone authenticated can ask a public project.
func (h *APIHandler) AskProjectHandler(w http.ResponseWriter, r *http.Request) {
	project, err := h.projects.Get(urlParam(r, "projectID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !project.IsPublic && project.OwnerID != uidFromContext(r) {
		h.writeError(w, apperr.NewPermission("project is not public"))
		return
	}

	var req AskRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	answer, err := h.assistant.Answer(r.Context(), core.ProjectScope(project.OwnerID, project.ID), req.Question, req.History)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, answer)
}
