// Package remoteai simulates the far end of the WebSocket in SPEC_FULL.md's
// demo: a minimal real-time voice AI bridge that transcribes inbound audio,
// runs a chat completion, synthesizes speech, and streams it back — the
// same transcribe -> chat -> synthesize shape
// original_source/test_e2e/websocket_server.py's AIProvider implements for
// OpenAI Realtime and AWS Nova Sonic, reduced to a synchronous demo shape
// built on the teacher's own worker routines.
package remoteai

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/rs/zerolog/log"

	"github.com/wsvoicebridge/voxstream/pkg/agent"
	"github.com/wsvoicebridge/voxstream/pkg/audio_utils"
	"github.com/wsvoicebridge/voxstream/pkg/models"
	"github.com/wsvoicebridge/voxstream/pkg/synthesizer"
	"github.com/wsvoicebridge/voxstream/pkg/transcriber"
)

// Sink is how a Session talks back to whatever transport owns the
// connection: one callback for outbound audio, one for the
// {"type":"clear"} barge-in control frame.
type Sink struct {
	SendBinary  func([]byte) error
	SendControl func([]byte) error
}

// Session runs the transcribe -> chat -> synthesize pipeline for one
// connected client, started the moment a connection is accepted and
// stopped when it closes.
type Session struct {
	transcriber transcriber.Transcriber
	agent       agent.ChatAgent
	synth       synthesizer.Synthesizer

	sampleRate uint32
	channels   uint32

	streamID string
	ctx      context.Context
	cancel   context.CancelFunc

	audioChunksChan     chan models.AudioData
	textChunksChan      chan models.AudioData
	earlyTranscriptChan chan string
	conversation        *models.Conversation

	sinkMu sync.Mutex
	sink   Sink

	speakingMu sync.Mutex
	speaking   bool

	closeOnce sync.Once
	stopCh    chan struct{}
}

var clearMessage = []byte(`{"type":"clear"}`)

// NewSession wires a fresh pipeline around the given collaborators and
// starts its background goroutines. sampleRate/channels describe the PCM
// caps negotiated on the transceiver side of this connection. streamID
// correlates every trace and log line this session emits with the
// transceiver activation on the other end of the socket, and bounds the
// lifetime of any in-flight transcribe/chat-completion request: cancelling
// it via Close abandons requests rather than leaving them running past a
// closed connection.
func NewSession(t transcriber.Transcriber, a agent.ChatAgent, s synthesizer.Synthesizer, sampleRate, channels uint32, streamID string) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	sess := &Session{
		transcriber:         t,
		agent:               a,
		synth:               s,
		sampleRate:          sampleRate,
		channels:            channels,
		streamID:            streamID,
		ctx:                 ctx,
		cancel:              cancel,
		audioChunksChan:     make(chan models.AudioData, 32),
		textChunksChan:      make(chan models.AudioData, 32),
		earlyTranscriptChan: make(chan string, 4),
		conversation:        &models.Conversation{StartedAt: time.Now()},
		stopCh:              make(chan struct{}),
	}

	go transcriber.TranscribeAudioRoutine(sess.ctx, sess.transcriber, sess.audioChunksChan, sess.textChunksChan, sess.earlyTranscriptChan, sess.streamID)
	go sess.drainEarlyTranscripts()
	go sess.runOrchestrator()

	return sess
}

// Attach registers the transport callbacks. Safe to call once per session,
// before or after the first PushAudio.
func (s *Session) Attach(sink Sink) {
	s.sinkMu.Lock()
	s.sink = sink
	s.sinkMu.Unlock()
}

// Close stops the session's background goroutines and cancels any
// in-flight transcribe/chat-completion request. Idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		close(s.stopCh)
		close(s.audioChunksChan)
	})
}

// PushAudio accepts one inbound raw-PCM frame (spec §4.3's binary branch,
// mirrored server-side). A frame arriving while a reply is still playing
// is this demo's barge-in trigger, exactly as
// original_source/test_e2e/websocket_server.py's
// input_audio_buffer.speech_started handler calls send_barge_in.
func (s *Session) PushAudio(pcm []byte) {
	if s.isSpeaking() {
		s.setSpeaking(false)
		s.sendControl(clearMessage)
		log.Info().Msg("remoteai: inbound audio while speaking, sent barge-in clear")
	}

	wavBytes, err := audio_utils.ConvertByteSamplesToWav(pcm, s.sampleRate, s.channels)
	if err != nil {
		log.Warn().Err(err).Msg("remoteai: cannot wrap inbound frame as wav, dropping")
		return
	}

	select {
	case s.audioChunksChan <- models.AudioData{
		EventType: models.AudioInput,
		ByteData:  wavBytes,
		Format:    "wav",
		Trace:     models.NewTrace("remoteai.session", s.streamID),
	}:
	case <-s.stopCh:
	}
}

func (s *Session) drainEarlyTranscripts() {
	for transcript := range s.earlyTranscriptChan {
		log.Debug().Str("early_transcript", transcript).Msg("remoteai: early transcript observed")
	}
}

// runOrchestrator assembles the running transcript across chunks emitted
// by TranscribeAudioRoutine and, once it signals SubmitPrompt, runs one
// full chat -> synthesize turn.
func (s *Session) runOrchestrator() {
	var utterance strings.Builder

	for chunk := range s.textChunksChan {
		if chunk.EventType == models.SubmitPrompt {
			question := strings.TrimSpace(utterance.String())
			utterance.Reset()
			if question == "" {
				continue
			}
			s.runTurn(question)
			continue
		}
		if chunk.Text != "" {
			utterance.WriteString(" ")
			utterance.WriteString(chunk.Text)
		}
	}
}

// runTurn executes one chat completion and speaks its response, blocking
// until the reply has been fully synthesized and sent. A connection only
// ever has one turn in flight, matching the teacher's single-conversation
// assumption.
func (s *Session) runTurn(question string) {
	s.conversation.Add("user", question)
	log.Info().Str("question", question).Msg("remoteai: submitting turn")

	llmOutputChan := make(chan string, 16)
	audioOutputChan := make(chan models.AudioData, 4)

	var reply strings.Builder
	teedChan := make(chan string, 16)
	go func() {
		for token := range teedChan {
			reply.WriteString(token)
			llmOutputChan <- token
		}
		close(llmOutputChan)
	}()

	go synthesizer.TextToSpeechAndEncodeRoutine(s.synth, llmOutputChan, audioOutputChan, s.streamID)

	go func() {
		if err := s.agent.RunPrompt(s.ctx, agent.FastAndCheap, s.conversation, teedChan); err != nil {
			log.Error().Err(err).Str("stream_id", s.streamID).Msg("remoteai: chat completion failed")
		}
	}()

	s.setSpeaking(true)
	for audioOut := range audioOutputChan {
		if !s.isSpeaking() {
			break // barge-in fired mid-reply; stop forwarding the rest of this turn.
		}
		pcm, err := s.toWirePCM(audioOut)
		if err != nil {
			log.Warn().Err(err).Str("format", audioOut.Format).Msg("remoteai: cannot decode synthesized audio, dropping chunk")
			continue
		}
		if err := s.sendBinary(pcm); err != nil {
			log.Warn().Err(err).Msg("remoteai: cannot send synthesized audio, dropping rest of turn")
			break
		}
	}
	s.setSpeaking(false)

	if reply.Len() > 0 {
		s.conversation.Add("assistant", reply.String())
	}
}

// toWirePCM decodes a synthesizer chunk down to the raw PCM the caps
// negotiated on this connection promise, so the bytes that cross the wire
// always match what the transceiver's caps adapter advertised — mirroring
// the teacher's own decode-before-play step in pkg/audioio/worker.go,
// relocated here since this module decodes at the source instead of the
// sink.
func (s *Session) toWirePCM(audioOut models.AudioData) ([]byte, error) {
	var intBuffer *audio.IntBuffer
	var err error

	switch audioOut.Format {
	case "mp3":
		intBuffer, err = audio_utils.DecodeFromMp3(audioOut.ByteData)
	case "flac":
		intBuffer, err = audio_utils.DecodeFromFlac(audioOut.ByteData)
	default:
		return audioOut.ByteData, nil
	}
	if err != nil {
		return nil, err
	}

	return io.ReadAll(audio_utils.IntBufferToPCMReader(intBuffer))
}

func (s *Session) isSpeaking() bool {
	s.speakingMu.Lock()
	defer s.speakingMu.Unlock()
	return s.speaking
}

func (s *Session) setSpeaking(v bool) {
	s.speakingMu.Lock()
	s.speaking = v
	s.speakingMu.Unlock()
}

func (s *Session) sendBinary(data []byte) error {
	s.sinkMu.Lock()
	sink := s.sink
	s.sinkMu.Unlock()
	if sink.SendBinary == nil {
		return nil
	}
	return sink.SendBinary(data)
}

func (s *Session) sendControl(data []byte) error {
	s.sinkMu.Lock()
	sink := s.sink
	s.sinkMu.Unlock()
	if sink.SendControl == nil {
		return nil
	}
	return sink.SendControl(data)
}
