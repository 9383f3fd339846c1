package service

import (
	"net/http"
	"strings"

	"go-token-gate/internal/event"
	"go-token-gate/internal/model"
	"go-token-gate/internal/repository"
	"go-token-gate/pkg/apierror"
)

type PostService struct {
	posts  *repository.PostRepository
	events event.Publisher
}

func NewPostService(posts *repository.PostRepository, events event.Publisher) *PostService {
	return &PostService{posts: posts, events: events}
}

func (s *PostService) List() []string {
	return s.posts.List()
}

func (s *PostService) Add(actor string, message string) ([]string, error) {
	if strings.TrimSpace(message) == "" {
		err := apierror.Wrap(model.ErrValidation, "VALIDATION_ERROR", "Message is required", http.StatusBadRequest)
		err.Details = "message"
		return nil, err
	}

	posts := s.posts.Append(message)
	if s.events != nil {
		s.events.Publish(event.Event{
			Type:    event.TypePostAdded,
			Actor:   actor,
			Payload: map[string]any{"count": len(posts)},
		})
	}

	return posts, nil
}
