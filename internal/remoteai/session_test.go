package remoteai

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/wsvoicebridge/voxstream/pkg/agent"
	"github.com/wsvoicebridge/voxstream/pkg/models"
)

// fakeTranscriber is never exercised by this test (it drives textChunksChan
// directly, bypassing TranscribeAudioRoutine), it only needs to satisfy
// transcriber.Transcriber so NewSession can be constructed.
type fakeTranscriber struct{}

func (fakeTranscriber) SendAudio(ctx context.Context, input io.Reader, fileExtension string, prompt string) (string, error) {
	return "", nil
}

// fakeAgent echoes a fixed reply token stream, independent of the prompt.
type fakeAgent struct{}

func (fakeAgent) RunPrompt(ctx context.Context, quality agent.ModelQuality, conversation *models.Conversation, outputChan chan string) error {
	outputChan <- "hi there"
	close(outputChan)
	return nil
}

// fakeSynthesizer turns any text into a one-byte PCM chunk, format "pcm" so
// toWirePCM passes it through unmodified.
type fakeSynthesizer struct{}

func (fakeSynthesizer) CreateSpeech(text string, speed float64) ([]byte, string, error) {
	return []byte{0x01, 0x02}, "pcm", nil
}

// TestSessionHandlesMultipleTurns drives two consecutive turns through a
// real Session by feeding textChunksChan directly (the same channel
// TranscribeAudioRoutine feeds), and asserts both complete. Before
// TextToSpeechAndEncodeRoutine closed audioOutputChan on every exit path,
// runTurn's range over a normal (non-barge-in) reply's audioOutputChan
// never returned, runOrchestrator never advanced past the first turn, and
// this test's second turn would hang until the test's own timeout fired.
func TestSessionHandlesMultipleTurns(t *testing.T) {
	var sentFrames [][]byte
	frameReceived := make(chan struct{}, 16)

	session := NewSession(fakeTranscriber{}, fakeAgent{}, fakeSynthesizer{}, 16000, 1, "test-stream")
	session.Attach(Sink{
		SendBinary: func(data []byte) error {
			sentFrames = append(sentFrames, append([]byte(nil), data...))
			frameReceived <- struct{}{}
			return nil
		},
		SendControl: func(data []byte) error { return nil },
	})
	defer session.Close()

	driveOneTurn(t, session, "first question", frameReceived)
	firstTurnFrames := len(sentFrames)
	if firstTurnFrames == 0 {
		t.Fatal("first turn produced no synthesized frames")
	}

	driveOneTurn(t, session, "second question", frameReceived)
	if len(sentFrames) <= firstTurnFrames {
		t.Fatal("second turn produced no synthesized frames; runOrchestrator likely deadlocked after the first turn")
	}
}

// driveOneTurn feeds one question onto the session's internal
// textChunksChan, the same channel TranscribeAudioRoutine writes to, and
// waits for at least one synthesized frame to come back out.
func driveOneTurn(t *testing.T, session *Session, question string, frameReceived chan struct{}) {
	t.Helper()
	session.textChunksChan <- models.AudioData{Text: question}
	session.textChunksChan <- models.NewAudioDataSubmit("session_test", session.streamID)

	select {
	case <-frameReceived:
	case <-time.After(5 * time.Second):
		t.Fatal("turn never produced a synthesized frame")
	}
}
