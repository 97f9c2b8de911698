package transcriber

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wsvoicebridge/voxstream/pkg/models"
)

// TranscribeAudioRoutine is intended to run for the entire lifespan of a
// conversation. ctx is the owning session's lifetime context: once it is
// cancelled, the in-flight SendAudio call is abandoned rather than blocking
// a session that has already closed. streamID correlates every
// models.Trace this routine emits with the transceiver activation feeding
// audioChunksChan.
func TranscribeAudioRoutine(ctx context.Context, transcriber Transcriber, audioChunksChan chan models.AudioData, textChunksChan chan models.AudioData, earlyTranscriptChan chan string, streamID string) string {
	log.Info().Str("stream_id", streamID).Msg("TranscribeAudioRoutine started")

	var earlyTranscriptStartTime *time.Time
	sendEarlyTranscript := true

	var transcriptBuilder strings.Builder
	transcriptRepetitions := 0

	for audioChunk := range audioChunksChan {
		if earlyTranscriptStartTime == nil {
			earlyTranscriptStartTime = &audioChunk.Trace.CreatedAt
		}
		audioChunk.Trace.ReceivedAt = time.Now()

		if audioChunk.EventType == models.SubmitPrompt {
			log.Info().Str("stream_id", streamID).Msg("TranscribeAudioRoutine encountered SubmitPrompt; will clear state to start working on the next")

			transcriptBuilder.Reset()
			earlyTranscriptStartTime = nil
			sendEarlyTranscript = true

			textChunksChan <- audioChunk
			continue
		}

		recordingBytes := audioChunk.ByteData
		previousWords := transcriptBuilder.String()
		transcript, err := transcriber.SendAudio(ctx, bytes.NewReader(recordingBytes), "wav", previousWords)
		if err != nil {
			log.Error().Err(err).Str("stream_id", streamID).Int("wav_chunk_byte_length", len(recordingBytes)).Msg("cannot transcribe audio, skipping chunk")
			continue
		}
		// TODO(P0, ux): Here, we need to detect if a question was finished, interrupt voiced or passed turn to agent
		// E.g. silence in whisper can be repeating last prompt words over and over like:
		// * .. in 100 words. All right. All right. Well, please, let's do it. All right. Go. All right. All right.
		// TODO: Add audio length here as a threshold
		if len(transcript) >= 3 && strings.HasSuffix(previousWords, transcript) {
			transcriptRepetitions += 1
		} else {
			transcriptRepetitions = 0
		}
		if transcriptRepetitions >= 2 {
			log.Info().Str("stream_id", streamID).Msgf("transcripts repeated itself for %d times, gonna submit prompt. Transcript: %s", transcriptRepetitions, transcript)
			textChunksChan <- models.NewAudioDataSubmit("transcriber.worker", streamID)
			continue
		}
		if transcriptRepetitions > 0 {
			log.Info().Str("stream_id", streamID).Msgf("transcript repeated previous words, skipping audio for: %s", transcript)
			continue
		}

		transcriptBuilder.WriteString(" ")
		transcriptBuilder.WriteString(transcript)

		audioChunk.Text = transcript
		audioChunk.Trace.ProcessedAt = time.Now()
		audioChunk.Trace.Processor = "transcribe_open_ai_whisper"
		audioChunk.Trace.Log()
		textChunksChan <- audioChunk

		if sendEarlyTranscript && time.Since(*earlyTranscriptStartTime).Seconds() > 7 {
			sendEarlyTranscript = false
			select {
			case earlyTranscriptChan <- transcriptBuilder.String():
				log.Info().Str("stream_id", streamID).Msgf("TranscribeAudioRoutine sending earlyTranscript")
			default:
				log.Warn().Str("stream_id", streamID).Msgf("could NOT send earlyTranscript cause channel full")
			}
		}
	}

	finalTranscript := transcriptBuilder.String()
	log.Info().Str("stream_id", streamID).Msgf("TranscribeAudioRoutine ended with finalTranscript %s", finalTranscript)
	close(textChunksChan)
	return finalTranscript
}
