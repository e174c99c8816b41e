package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
)

func main() {
	server := pflag.StringP("server", "s", "http://localhost:8080", "budgetdesk server URL")
	timeout := pflag.Duration("timeout", 30*time.Second, "per-request timeout")
	once := pflag.StringP("message", "m", "", "send a single message and exit")
	pflag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := NewClient(*server, *timeout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *once != "" {
		answer, err := client.Send(ctx, *once)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		Render(os.Stdout, answer)
		return
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			return
		}
		answer, err := client.Send(ctx, line)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			if ctx.Err() != nil {
				return
			}
			continue
		}
		Render(os.Stdout, answer)
	}
}
