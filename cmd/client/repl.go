package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"golang.org/x/term"

	"go-token-gate/internal/client"
)

// readPassword is swapped out in tests so they never touch a terminal.
var readPassword = term.ReadPassword

type commands interface {
	signIn(ctx context.Context, username string) error
	posts(ctx context.Context) error
	addPost(ctx context.Context, message string) error
	refresh(ctx context.Context) error
	logout(ctx context.Context) error
	prompt() string
}

type session struct {
	api     *client.Client
	out     io.Writer
	stdinFd int
}

func (s *session) signIn(ctx context.Context, username string) error {
	fmt.Fprint(s.out, "password: ")
	password, err := readPassword(s.stdinFd)
	fmt.Fprintln(s.out)
	if err != nil {
		s.println("read password:", err)
		return err
	}

	user, err := s.api.SignIn(ctx, username, string(password))
	if err != nil {
		s.println("sign in failed:", err)
		return err
	}

	s.println("signed in as", user.Username)
	return nil
}

func (s *session) posts(ctx context.Context) error {
	posts, err := s.api.Posts(ctx)
	if err != nil {
		s.println(err)
		return err
	}
	s.printPosts(posts)
	return nil
}

func (s *session) addPost(ctx context.Context, message string) error {
	posts, err := s.api.AddPost(ctx, message)
	if err != nil {
		s.println(err)
		return err
	}
	s.printPosts(posts)
	return nil
}

func (s *session) refresh(ctx context.Context) error {
	if err := s.api.Refresh(ctx); err != nil {
		s.println(err)
		return err
	}
	s.println("access token refreshed")
	return nil
}

func (s *session) logout(ctx context.Context) error {
	if err := s.api.Logout(ctx); err != nil {
		s.println(err)
		return err
	}
	s.println("logged out")
	return nil
}

func (s *session) prompt() string {
	if user, ok := s.api.User(); ok {
		return user.Username + "> "
	}
	return "> "
}

func (s *session) println(a ...any) {
	fmt.Fprintln(s.out, a...)
}

func (s *session) printPosts(posts []string) {
	for i, post := range posts {
		fmt.Fprintf(s.out, "%d. %s\n", i+1, post)
	}
}

// runREPL reads one command per line until EOF, quit or a cancelled context. Command errors
// are printed by the command itself.
func runREPL(ctx context.Context, c commands, scanner *bufio.Scanner, out io.Writer) {
	for ctx.Err() == nil {
		fmt.Fprint(out, c.prompt())
		if !scanner.Scan() {
			return
		}

		line := strings.TrimSpace(scanner.Text())
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch cmd := fields[0]; cmd {
		case "help":
			fmt.Fprintln(out, "commands: signin <user>, posts, add <message>, refresh, logout, quit")
		case "signin", "login":
			if len(fields) < 2 {
				fmt.Fprintln(out, "usage: signin <user>")
				continue
			}
			_ = c.signIn(ctx, fields[1])
		case "posts", "ls":
			_ = c.posts(ctx)
		case "add":
			_ = c.addPost(ctx, strings.TrimSpace(strings.TrimPrefix(line, cmd)))
		case "refresh":
			_ = c.refresh(ctx)
		case "logout":
			_ = c.logout(ctx)
		case "quit", "exit":
			fmt.Fprintln(out, "bye")
			return
		default:
			fmt.Fprintln(out, "unknown command:", cmd)
		}
	}
}
