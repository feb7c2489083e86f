package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"studioflow-project/backend/auth"
	"studioflow-project/backend/services"
	"studioflow-project/backend/storage"
	"studioflow-project/backend/utils"

	"github.com/gorilla/mux"
)

type FileHandler struct {
	service *services.FileService
	roles   *auth.RoleStore
}

func NewFileHandler(service *services.FileService, roles *auth.RoleStore) *FileHandler {
	return &FileHandler{service: service, roles: roles}
}

// Upload accepts a multipart form with a single "file" part.
func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	principal, err := authorize(r, h.roles, auth.ActionCreate, auth.ResourceFiles, "")
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxObjectSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		utils.WriteError(w, fmt.Errorf("%w: a file part is required", utils.ErrValidation))
		return
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	created, err := h.service.Upload(r.Context(), principal.ID, mux.Vars(r)["projectId"], header.Filename, mimeType, header.Size, file)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, created)
}

// AddLink records a URL attachment.
func (h *FileHandler) AddLink(w http.ResponseWriter, r *http.Request) {
	principal, err := authorize(r, h.roles, auth.ActionCreate, auth.ResourceFiles, "")
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	var req struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, utils.ErrValidation)
		return
	}

	created, err := h.service.AddLink(r.Context(), principal.ID, mux.Vars(r)["projectId"], req.Name, req.URL)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, created)
}

func (h *FileHandler) ByProject(w http.ResponseWriter, r *http.Request) {
	if _, err := authorize(r, h.roles, auth.ActionList, auth.ResourceFiles, ""); err != nil {
		utils.WriteError(w, err)
		return
	}

	files, err := h.service.ByProject(r.Context(), mux.Vars(r)["projectId"])
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, files)
}

// Download streams the stored bytes of an uploaded attachment.
func (h *FileHandler) Download(w http.ResponseWriter, r *http.Request) {
	if _, err := authorize(r, h.roles, auth.ActionRead, auth.ResourceFiles, ""); err != nil {
		utils.WriteError(w, err)
		return
	}

	file, reader, err := h.service.Open(r.Context(), mux.Vars(r)["fileId"])
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", file.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(file.Size, 10))
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(file.Name))
	io.Copy(w, reader)
}

func (h *FileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if _, err := authorize(r, h.roles, auth.ActionDelete, auth.ResourceFiles, ""); err != nil {
		utils.WriteError(w, err)
		return
	}

	if err := h.service.Delete(r.Context(), mux.Vars(r)["fileId"]); err != nil {
		utils.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
