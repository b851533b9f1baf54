package printjob

import (
	"context"
	"encoding/base64"
	"errors"
	"regexp"
	"strings"
)

var (
	ErrNoImage      = errors.New("no image data provided")
	ErrInvalidImage = errors.New("image data is not valid base64")

	dataURLPrefix = regexp.MustCompile(`^data:image/[A-Za-z0-9.+-]+;base64,`)
)

// Job is one decoded photo strip ready for a printer.
type Job struct {
	PrintID string
	Image   []byte
}

type Outcome struct {
	Fallback   bool
	Platform   string
	Message    string
	Suggestion string
}

// Dispatcher hands a job to whatever prints it.
type Dispatcher interface {
	Dispatch(ctx context.Context, job Job) (Outcome, error)
}

// BrowserFallback never prints. It tells the kiosk to use the browser print
// dialog instead.
type BrowserFallback struct{}

func (BrowserFallback) Dispatch(ctx context.Context, job Job) (Outcome, error) {
	return Outcome{
		Fallback:   true,
		Platform:   "browser",
		Message:    "Image processed successfully - use browser printing",
		Suggestion: "Browser printing will be used automatically",
	}, nil
}

// DecodeImage accepts raw base64 or an image data URL.
func DecodeImage(data string) ([]byte, error) {
	data = strings.TrimSpace(data)
	if data == "" {
		return nil, ErrNoImage
	}
	data = dataURLPrefix.ReplaceAllString(data, "")

	img, err := base64.StdEncoding.DecodeString(data)
	if err != nil || len(img) == 0 {
		return nil, ErrInvalidImage
	}
	return img, nil
}
