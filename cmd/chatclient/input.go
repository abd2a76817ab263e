package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// readLines delivers r line by line until EOF, then closes the channel.
func readLines(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

type lineSender interface {
	Send(ctx context.Context, content string) error
}

// sendLine posts one stdin line. Stdin arrives a whole line at a time, so the
// CLI never reports keystrokes; typing presence is for interactive front ends.
func sendLine(ctx context.Context, s lineSender, line string, errOut io.Writer) bool {
	if strings.TrimSpace(line) == "" {
		return false
	}
	if err := s.Send(ctx, line); err != nil {
		fmt.Fprintf(errOut, "Not sent: %v\n", err)
		return false
	}
	return true
}
