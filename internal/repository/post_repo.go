package repository

import "sync"

const seedPost = "Early bird catches the worm"

type PostRepository struct {
	mu    sync.RWMutex
	posts []string
}

func NewPostRepository(seed ...string) *PostRepository {
	if len(seed) == 0 {
		seed = []string{seedPost}
	}

	posts := make([]string, len(seed))
	copy(posts, seed)

	return &PostRepository{posts: posts}
}

func (r *PostRepository) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.snapshotLocked()
}

// Append adds text to the end of the sequence and returns the resulting snapshot.
func (r *PostRepository) Append(text string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.posts = append(r.posts, text)

	return r.snapshotLocked()
}

func (r *PostRepository) snapshotLocked() []string {
	out := make([]string, len(r.posts))
	copy(out, r.posts)
	return out
}
