// Package screenshot captures a region of a rendered HTML report as a PNG.
package screenshot

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"
)

// ErrCapture is returned when the page cannot be loaded or captured.
var ErrCapture = errors.New("screenshot capture failed")

const (
	// DefaultOutput is where the image is written when no output is set.
	DefaultOutput = "assets/coverage.png"
	// DefaultSelector is the CSS selector of the captured region.
	DefaultSelector = "main"
	// DefaultTimeout bounds a whole capture, browser start included.
	DefaultTimeout = 60 * time.Second
)

// Capturer turns an HTML document into an image and returns the image path.
// Implementations remove htmlPath after a successful capture.
type Capturer interface {
	Capture(ctx context.Context, htmlPath string) (string, error)
}

// CaptureFunc adapts a function to the Capturer interface.
type CaptureFunc func(ctx context.Context, htmlPath string) (string, error)

func (f CaptureFunc) Capture(ctx context.Context, htmlPath string) (string, error) {
	return f(ctx, htmlPath)
}

// Chrome captures pages with a headless Chrome driven over the DevTools protocol.
type Chrome struct {
	Output   string
	Selector string
	Timeout  time.Duration
	// AllocatorOptions are appended to chromedp's default exec allocator options.
	AllocatorOptions []chromedp.ExecAllocatorOption
}

// NewChrome returns a capturer writing the selector's region to output.
func NewChrome(output, selector string, timeout time.Duration) *Chrome {
	c := &Chrome{Output: output, Selector: selector, Timeout: timeout}
	if c.Output == "" {
		c.Output = DefaultOutput
	}
	if c.Selector == "" {
		c.Selector = DefaultSelector
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// Capture loads htmlPath, screenshots the first node matching Selector and
// writes it to Output. The HTML file is deleted only when the image was written.
func (c *Chrome) Capture(ctx context.Context, htmlPath string) (string, error) {
	abs, err := filepath.Abs(htmlPath)
	if err != nil {
		return "", fmt.Errorf("%w: resolve %s: %v", ErrCapture, htmlPath, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return "", fmt.Errorf("%w: %v", ErrCapture, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:], c.AllocatorOptions...)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var image []byte
	err = chromedp.Run(browserCtx,
		chromedp.Navigate(fileURL(abs)),
		chromedp.Screenshot(c.Selector, &image, chromedp.NodeVisible, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrCapture, c.Selector, err)
	}

	if err := os.MkdirAll(filepath.Dir(c.Output), 0755); err != nil {
		return "", fmt.Errorf("create image directory: %w", err)
	}
	if err := os.WriteFile(c.Output, image, 0644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}

	if err := os.Remove(abs); err != nil && !errors.Is(err, os.ErrNotExist) {
		return c.Output, fmt.Errorf("remove %s: %w", htmlPath, err)
	}
	return c.Output, nil
}

func fileURL(abs string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String()
}
