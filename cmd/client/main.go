package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go-token-gate/internal/client"
)

func main() {
	server := flag.String("server", "http://localhost:3000", "token-gate server URL")
	username := flag.String("user", "", "username to sign in with at startup")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api, err := client.New(*server, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	app := &session{api: api, out: os.Stdout, stdinFd: int(os.Stdin.Fd())}
	if *username != "" {
		_ = app.signIn(ctx, *username)
	}

	runREPL(ctx, app, bufio.NewScanner(os.Stdin), os.Stdout)
}
