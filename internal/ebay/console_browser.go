package ebay

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// ConsoleBrowser asks the user to open the consent page themselves and paste
// back the URL they were redirected to. An empty line cancels.
type ConsoleBrowser struct {
	In  io.Reader
	Out io.Writer
}

func (b ConsoleBrowser) Authenticate(ctx context.Context, authURL, callbackScheme string) (string, error) {
	fmt.Fprintf(b.Out, "Open this URL to link your eBay account:\n\n  %s\n\n", authURL)
	fmt.Fprintf(b.Out, "Paste the %s:// URL you were redirected to (empty to cancel): ", callbackScheme)

	lines := make(chan string, 1)
	errs := make(chan error, 1)
	go func() {
		line, err := bufio.NewReader(b.In).ReadString('\n')
		if err != nil && line == "" {
			errs <- err
			return
		}
		lines <- strings.TrimSpace(line)
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case err := <-errs:
		if err == io.EOF {
			return "", ErrCancelled
		}
		return "", fmt.Errorf("failed to read callback: %w", err)
	case line := <-lines:
		if line == "" {
			return "", ErrCancelled
		}
		return line, nil
	}
}
