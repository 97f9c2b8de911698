package transcriber

import (
	"context"
	"io"
)

// Transcriber sends one recorded chunk to a speech-to-text backend.
// ctx carries the owning session's lifetime, so an in-flight request is
// cancelled the moment its connection closes rather than outliving it.
type Transcriber interface {
	SendAudio(ctx context.Context, input io.Reader, fileExtension string, prompt string) (result string, err error)
}
