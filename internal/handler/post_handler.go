package handler

import (
	"encoding/json"
	"net/http"

	"go-token-gate/internal/middleware"
	"go-token-gate/internal/model"
	"go-token-gate/internal/service"
	"go-token-gate/pkg/apierror"
)

const maxPostBody = 64 << 10

type PostHandler struct {
	service *service.PostService
}

func NewPostHandler(service *service.PostService) *PostHandler {
	return &PostHandler{service: service}
}

func (h *PostHandler) List(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, model.PostsResponse{Posts: h.service.List()})
}

func (h *PostHandler) Add(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.AddPostRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPostBody)).Decode(&payload); err != nil {
		writeError(w, apierror.Wrap(model.ErrValidation, "VALIDATION_ERROR", "Message is required", http.StatusBadRequest))
		return
	}

	actor := ""
	if claims, ok := middleware.ClaimsFromContext(r.Context()); ok {
		actor = claims.Username
	}

	posts, err := h.service.Add(actor, payload.Message)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, model.AddPostResponse{
		Message: "Post added successfully",
		Posts:   posts,
	})
}
