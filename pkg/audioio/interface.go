package audioio

import (
	"context"
	"io"
	"sync"

	"github.com/wsvoicebridge/voxstream/pkg/models"
)

// InputDevice
// TODO(P1, wip): This interface was made around microphones,
// might want to change it to say Init(), PauseRecording(), Close().
type InputDevice interface {
	// StartRecording runs until ctx is cancelled or StopRecording is
	// called; whichever comes first stops new chunks from being enqueued.
	// streamID is stamped onto every models.Trace this recording emits.
	StartRecording(ctx context.Context, recordingChan chan models.AudioData, streamID string) error
	StopRecording() ([]byte, error)
}

type OutputDevice interface {
	// Play blocks until audioOutput is exhausted, Stop is called, or ctx
	// is cancelled, whichever comes first.
	Play(ctx context.Context, audioOutput io.Reader) (*sync.WaitGroup, error)
	Stop() error
}
