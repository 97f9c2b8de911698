// TLDR; Go itself cannot work with Microphone's well
// BUT it can bind with C-libraries which can do this with a bit of black-magic.
package audioio

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wsvoicebridge/voxstream/pkg/audio_utils"
	"github.com/wsvoicebridge/voxstream/pkg/models"
	"github.com/wsvoicebridge/voxstream/pkg/transceiver"
)

func dbg(err error) {
	if err != nil {
		log.Debug().Err(err).Msg("sth non-essential failed")
	}
}

const MyDeviceInputChannels uint32 = 1
const MyDeviceSampleRate uint32 = 44100

// microphone's clock and logger mirror whatever transceiver.Element this
// device feeds (see transceiver.New), so a recording's elapsed-time trace
// lines up with the element's own pacing clock rather than the wall clock.
type microphone struct {
	device       *malgo.Device
	deviceConfig malgo.DeviceConfig
	malgoContext *malgo.AllocatedContext
	clock        transceiver.Clock
	logger       zerolog.Logger

	ctx            context.Context
	streamID       string
	recordingStart time.Duration
	recordingChan  chan models.AudioData

	pSampleData          []byte
	pSampleDataBufferIdx int
}

// NewMicrophone inits the microphone device,
// you should defer StopRecording
func NewMicrophone(clock transceiver.Clock, logger zerolog.Logger) (result InputDevice, err error) {
	logger.Info().Msg("microphone: malgo init context (miniaudio)")
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debug().Msg(strings.Replace("malgo devices: "+message, "\n", "", -1))
	})
	if err != nil {
		return nil, wrapDeviceError("microphone", err, "cannot init malgo context")
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Duplex)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = MyDeviceInputChannels
	// TODO: maybe doing lower would fasten transcription up?
	deviceConfig.SampleRate = MyDeviceSampleRate
	deviceConfig.Alsa.NoMMap = 1

	result = &microphone{
		device:               nil,
		deviceConfig:         deviceConfig,
		malgoContext:         ctx,
		clock:                clock,
		logger:               logger,
		recordingChan:        nil,
		pSampleData:          make([]byte, 0),
		pSampleDataBufferIdx: 0,
	}
	return
}

func (m *microphone) getFormat() malgo.FormatType {
	return m.deviceConfig.Capture.Format
}

func (m *microphone) getSampleRate() uint32 {
	return m.deviceConfig.SampleRate
}

func (m *microphone) getNumChannels() uint32 {
	return m.deviceConfig.Capture.Channels
}

// StartRecording can only be called once for NewMicrophone. ctx bounds the
// recording: once cancelled, further captured frames are dropped rather
// than buffered, and streamID is threaded onto every models.Trace this
// device emits so it correlates with the rest of that connection's traces.
// Mostly from https://github.com/gen2brain/malgo/blob/master/_examples/capture/capture.go
func (m *microphone) StartRecording(ctx context.Context, recordingChan chan models.AudioData, streamID string) (err error) {
	m.ctx = ctx
	m.streamID = streamID
	m.recordingChan = recordingChan
	format := m.getFormat()
	sizeInBytes := uint32(malgo.SampleSizeInBytes(format))
	if sizeInBytes != 2 {
		return wrapDeviceError("microphone", fmt.Errorf("expected 2 bytes per sample, got %d for %s", sizeInBytes, format), "unsupported capture format")
	}

	// Some black-magic event-handling which I don't really understand.
	// https://github.com/gen2brain/malgo/blob/master/_examples/capture/capture.go
	onRecvFrames := func(pSample2, pSample []byte, framecount uint32) {
		if m.ctx.Err() != nil {
			return // recording was cancelled; stop accumulating new frames.
		}
		// Empirically, len(pSample) is 480, so for sample rate 44100 it's triggered about every 10ms.
		m.pSampleData = append(m.pSampleData, pSample...)
		m.pSampleDataBufferIdx = m.maybeFlushBuffer(false)
	}

	captureCallbacks := malgo.DeviceCallbacks{
		Data: onRecvFrames,
	}
	m.device, err = malgo.InitDevice(m.malgoContext.Context, m.deviceConfig, captureCallbacks)
	if err != nil {
		return wrapDeviceError("microphone", err, fmt.Sprintf("cannot init malgo device with config %v", m.deviceConfig))
	}

	m.logger.Info().Msg("microphone: malgo START recording...")
	m.recordingStart = m.clock.Now()
	if err = m.device.Start(); err != nil {
		return wrapDeviceError("microphone", err, "cannot start malgo device")
	}
	return nil
}

func (m *microphone) StopRecording() (entireRecording []byte, err error) {
	m.logger.Info().Dur("recording_duration", m.clock.Now()-m.recordingStart).Msg("microphone: malgo STOP recording")
	dbg(m.device.Stop())
	dbg(m.malgoContext.Uninit())

	// TODO(P0, ux): IF we can detect silence, than two things:
	// * We can use silence to stop the recording
	// * We do NOT need to send the end silence for transcription (can give us 500-1000ms).

	// Since we chunk up stuff - there might be some leftovers.
	// TODO(P0, ux): This is a major contributor to the Stop to Playback latency
	m.maybeFlushBuffer(true)

	// WRITE IT INTO A WAV STUFF
	// Might NOT work with non-1 number of channels
	entireRecording, err = audio_utils.ConvertByteSamplesToWav(m.pSampleData, m.getSampleRate(), m.getNumChannels())
	if err != nil {
		err = wrapDeviceError("microphone", err, "cannot convert captured samples to wav")
	}

	m.malgoContext.Free()
	return
}

// Function to find the last index where the average of the last windowSize bytes is below threshold.
func findLastIndexBelowAverage(data []byte, windowSize int, threshold float64, logger zerolog.Logger) int {
	n := len(data)
	if n < windowSize {
		logger.Trace().Int("last_index", -1).Int("data_size", len(data)).Int("window_size", windowSize).Float64("threshold", threshold).Msg("findLastIndexBelowAverage window size too big")
		return -1 // Not enough data to form a window
	}

	lastIndex := -1
	var sum int

	// Initialize the first window
	for i := 0; i < windowSize; i++ {
		sum += int(data[i])
	}

	// Iterate over the array
	for i := windowSize; i < n; i++ {
		avg := float64(sum) / float64(windowSize)
		if avg < threshold {
			lastIndex = i
		}

		// Update the sum to include the next byte and exclude the oldest byte
		sum -= int(data[i-windowSize])
		sum += int(data[i])
	}

	logger.Trace().Int("last_index", lastIndex).Int("data_size", len(data)).Int("window_size", windowSize).Float64("threshold", threshold).Msg("findLastIndexBelowAverage returned")
	return lastIndex
}

func sampleCountForMilliseconds(sampleRate uint32, numChannels uint32, milliseconds int) int {
	return int(int64(milliseconds) * int64(sampleRate) * int64(numChannels) / int64(1000))
}

func (m *microphone) maybeFlushBuffer(isEnd bool) int {
	sampleRate := m.getSampleRate()
	numChannels := m.getNumChannels()

	flushByteSizeThreshold := 2 * int(sampleRate*2) // About two seconds
	shouldFlush := isEnd || ((len(m.pSampleData) - m.pSampleDataBufferIdx) > flushByteSizeThreshold)
	if !shouldFlush {
		return m.pSampleDataBufferIdx
	}
	startIndex := m.pSampleDataBufferIdx
	endIndex := len(m.pSampleData)
	windowSize := sampleCountForMilliseconds(sampleRate, numChannels, 20)

	// Poor mens VAP to detect silence: for now just better understand this, later we can do better.
	// TODO(P1, ux): See how vocode or WebRTC VAP does that
	if !isEnd { // when isEnd, we just take the end
		newData := m.pSampleData[startIndex:]
		// TODO: empiric for "silence" - in real world we need much better, Do min an max between 100 and 140
		threshold := 110.0
		candidateIndex := findLastIndexBelowAverage(newData, windowSize, threshold, m.logger)
		// end of "silence" is likely already when new voice is coming in, so take midpoint
		if candidateIndex >= 0 {
			// Whisper: Minimum audio length is 0.1 seconds.
			if candidateIndex >= sampleCountForMilliseconds(sampleRate, numChannels, 250) {
				endIndex = startIndex + candidateIndex - (windowSize / 2)
			} else {
				m.logger.Trace().Msg("microphone: not enough 'non-silence' from the beginning")
				return startIndex
			}
		} else {
			endIndex = len(m.pSampleData)
		}
		if endIndex%2 == 1 { // this should only happen in the `candidateIndex >= 0` case
			endIndex--
		}
	}

	if !isEnd && endIndex == len(m.pSampleData) {
		// TODO: This makes the algorithm N^2 worst case - which is fine as I am just experimenting for now.
		return startIndex
	}

	m.logger.Trace().Int("start_byte_index", startIndex).Int("end_byte_index", endIndex).Msg("microphone: flushing pSample data into wav output")

	byteData := m.pSampleData[m.pSampleDataBufferIdx:endIndex]
	wavData, err := audio_utils.ConvertByteSamplesToWav(byteData, sampleRate, numChannels)
	if err != nil {
		m.logger.Error().Err(err).Int("byte_data_length", len(byteData)).Msg("microphone: could not convert byteData to wavData")
		return endIndex
	}

	audioData := models.AudioData{
		ByteData: wavData,
		Format:   "wav",
		Length:   time.Duration(float64(len(wavData)) / float64(sampleRate)),
		Trace: models.Trace{
			DataName:  "audio_data",
			StreamID:  m.streamID,
			CreatedAt: time.Now(),
			Creator:   "microphone_client",
		},
	}
	m.recordingChan <- audioData
	dbg(os.WriteFile(fmt.Sprintf("output/%d-%d.wav", startIndex, endIndex), wavData, 0644))
	if isEnd {
		m.logger.Info().Msg("microphone: closing wavChunksChan from maybeFlushBuffer")
		close(m.recordingChan)
	}

	return endIndex
}
