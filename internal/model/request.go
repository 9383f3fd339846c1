package model

type AddPostRequest struct {
	Message string `json:"message"`
}

type SignInResponse struct {
	AccessToken string   `json:"accessToken"`
	User        AuthUser `json:"user"`
}

type RefreshResponse struct {
	AccessToken string `json:"accessToken"`
}

type PostsResponse struct {
	Posts []string `json:"posts"`
}

type AddPostResponse struct {
	Message string   `json:"message"`
	Posts   []string `json:"posts"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
