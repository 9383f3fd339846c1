package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-token-gate/internal/client"
)

type stubCommands struct {
	calls []string
}

func (s *stubCommands) signIn(_ context.Context, username string) error {
	s.calls = append(s.calls, "signin "+username)
	return nil
}

func (s *stubCommands) posts(context.Context) error {
	s.calls = append(s.calls, "posts")
	return nil
}

func (s *stubCommands) addPost(_ context.Context, message string) error {
	s.calls = append(s.calls, "add "+message)
	return nil
}

func (s *stubCommands) refresh(context.Context) error {
	s.calls = append(s.calls, "refresh")
	return nil
}

func (s *stubCommands) logout(context.Context) error {
	s.calls = append(s.calls, "logout")
	return nil
}

func (s *stubCommands) prompt() string { return "> " }

func TestREPLDispatch(t *testing.T) {
	input := strings.Join([]string{
		"signin admin",
		"",
		"  add   hello world ",
		"posts",
		"refresh",
		"signin",
		"dance",
		"logout",
		"quit",
		"posts",
	}, "\n")

	stub := &stubCommands{}
	var out bytes.Buffer
	runREPL(context.Background(), stub, bufio.NewScanner(strings.NewReader(input)), &out)

	assert.Equal(t, []string{"signin admin", "add hello world", "posts", "refresh", "logout"}, stub.calls)
	assert.Contains(t, out.String(), "usage: signin <user>")
	assert.Contains(t, out.String(), "unknown command: dance")
	assert.Contains(t, out.String(), "bye")
}

func TestREPLStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stub := &stubCommands{}
	runREPL(ctx, stub, bufio.NewScanner(strings.NewReader("posts\n")), &bytes.Buffer{})
	assert.Empty(t, stub.calls)
}

func TestSessionSignInReadsPassword(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, _ := r.BasicAuth()
		w.Header().Set("Content-Type", "application/json")
		if password != "admin123" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"success": false,
				"error":   map[string]string{"code": "INVALID_CREDENTIALS", "message": "Invalid username or password"},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]any{"accessToken": "token", "user": map[string]string{"username": username}},
		})
	}))
	t.Cleanup(srv.Close)

	original := readPassword
	t.Cleanup(func() { readPassword = original })

	api, err := client.New(srv.URL, nil)
	require.NoError(t, err)

	var out bytes.Buffer
	s := &session{api: api, out: &out}

	readPassword = func(int) ([]byte, error) { return []byte("wrong"), nil }
	require.Error(t, s.signIn(context.Background(), "admin"))
	assert.Contains(t, out.String(), "INVALID_CREDENTIALS")
	assert.Equal(t, "> ", s.prompt())

	readPassword = func(int) ([]byte, error) { return []byte("admin123"), nil }
	require.NoError(t, s.signIn(context.Background(), "admin"))
	assert.Contains(t, out.String(), "signed in as admin")
	assert.Equal(t, "admin> ", s.prompt())
}
