package audio_utils

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/mewkiz/flac"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"io"
)

func dbg(err error) {
	if err != nil {
		log.Debug().Err(err).Msg("sth non-essential failed")
	}
}

// ConvertTwoByteSamplesToWav assumes S16 encoding (or two bytes per value)
func ConvertTwoByteSamplesToWav(byteData []byte, sampleRate uint32, numChannels uint32) (result []byte, err error) {
	intData := twoByteDataToIntSlice(byteData)

	// For most parameters, we just do the same in both input and output.
	inputBuffer := &audio.IntBuffer{
		Data: intData,
		Format: &audio.Format{
			SampleRate:  int(sampleRate),
			NumChannels: int(numChannels),
		},
		SourceBitDepth: 16,
	}

	audioFormat := 1
	return convertIntSamplesToWav(inputBuffer, sampleRate, numChannels, audioFormat)
}

// ConvertOneByteMulawSamplesToWav assumes encoding 7 (or one byte per value)
func ConvertOneByteMulawSamplesToWav(byteData []byte, inputSampleRate, outputSampleRate uint32) (result []byte, err error) {
	// https://github.com/go-audio/wav/issues/29
	intData := oneByteDataToIntSlice(byteData)
	sourceBitDepth := 8
	numChannels := uint32(1)
	audioFormat := 7

	inputBuffer := &audio.IntBuffer{
		Data: intData,
		Format: &audio.Format{
			SampleRate:  int(inputSampleRate),
			NumChannels: int(numChannels),
		},
		SourceBitDepth: sourceBitDepth,
	}

	return convertIntSamplesToWav(inputBuffer, outputSampleRate, numChannels, audioFormat)
}

// ConvertIntSamplesToWav assumes S16 encoding (or two bytes per value)
func convertIntSamplesToWav(inputBuffer *audio.IntBuffer, sampleRate uint32, numChannels uint32, audioFormat int) (result []byte, err error) {
	if len(inputBuffer.Data) == 0 {
		return // Nothing to do
	}

	// Create a new in-memory file system
	fs := afero.NewMemMapFs()
	// Create an in-memory file to support io.WriteSeeker needed for NewEncoder which is needed for finalizing headers.
	inMemoryFilename := "in-memory-output.wav"
	inMemoryFile, err := fs.Create(inMemoryFilename)
	dbg(err)
	// We will call Close ourselves.

	outputBitDepth := 16
	iSampleRate := int(sampleRate)
	iNumChannels := int(numChannels)
	// TODO: Should we somewhat adjust outputSampleRate? Here we re-use the input one.
	// Create a new WAV wavEncoder
	wavEncoder := wav.NewEncoder(inMemoryFile, iSampleRate, outputBitDepth, iNumChannels, audioFormat)
	log.Debug().Int("int_data_length", len(inputBuffer.Data)).Int("sample_rate", iSampleRate).Int("source_bit_depth", inputBuffer.SourceBitDepth).Int("output_bit_depth", outputBitDepth).Int("num_channels", iNumChannels).Int("audio_format", audioFormat).Msg("encoding int stream output as a wav")
	// Write to WAV wavEncoder
	if err = wavEncoder.Write(inputBuffer); err != nil {
		err = fmt.Errorf("cannot encode byte output as wav %w", err)
		return
	}

	// Close the wavEncoder to flush any remaining data and finalize the WAV file
	if err = wavEncoder.Close(); err != nil {
		err = fmt.Errorf("cannot finish wav encoding %w", err)
		return
	}

	// We close and re-open the file so we can properly read-all of its contents.
	dbg(inMemoryFile.Close())
	inMemoryFileReopen, err := fs.Open(inMemoryFilename)
	dbg(err)
	result, err = io.ReadAll(inMemoryFileReopen)
	dbg(err)
	if err == nil && len(result) == 0 {
		err = fmt.Errorf("wav output is empty when input was not")
		return
	}
	return
}

// ConvertByteSamplesToWav assumes the S16 capture format malgo hands us
// (two bytes per value, interleaved channels).
func ConvertByteSamplesToWav(byteData []byte, sampleRate uint32, numChannels uint32) (result []byte, err error) {
	return ConvertTwoByteSamplesToWav(byteData, sampleRate, numChannels)
}

// DecodeFromMp3 decodes an MP3 byte stream to a PCM S16LE int buffer via
// go-mp3's streaming decoder (it always emits stereo 16-bit PCM).
func DecodeFromMp3(rawAudioBytes []byte) (*audio.IntBuffer, error) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(rawAudioBytes))
	if err != nil {
		return nil, fmt.Errorf("cannot create mp3 decoder: %w", err)
	}

	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return nil, fmt.Errorf("cannot decode mp3 stream: %w", err)
	}

	const mp3Channels = 2
	return &audio.IntBuffer{
		Data: twoByteDataToIntSlice(pcm),
		Format: &audio.Format{
			SampleRate:  decoder.SampleRate(),
			NumChannels: mp3Channels,
		},
		SourceBitDepth: 16,
	}, nil
}

// DecodeFromFlac decodes a FLAC byte stream to an interleaved int buffer,
// keeping every sample unchanged at the stream's own bit depth, which it
// records as SourceBitDepth (mewkiz/flac hands back bits-per-sample-sized
// integers, unlike go-mp3's fixed 16-bit PCM).
func DecodeFromFlac(rawAudioBytes []byte) (*audio.IntBuffer, error) {
	stream, err := flac.New(bytes.NewReader(rawAudioBytes))
	if err != nil {
		return nil, fmt.Errorf("cannot open flac stream: %w", err)
	}
	defer stream.Close()

	numChannels := int(stream.Info.NChannels)
	intData := make([]int, 0, stream.Info.NSamples*uint64(numChannels))

	for {
		frame, decodeErr := stream.ParseNext()
		if decodeErr == io.EOF {
			break
		}
		if decodeErr != nil {
			return nil, fmt.Errorf("cannot parse flac frame: %w", decodeErr)
		}
		numSamples := len(frame.Subframes[0].Samples)
		for i := 0; i < numSamples; i++ {
			for ch := 0; ch < numChannels; ch++ {
				intData = append(intData, int(frame.Subframes[ch].Samples[i]))
			}
		}
	}

	return &audio.IntBuffer{
		Data: intData,
		Format: &audio.Format{
			SampleRate:  int(stream.Info.SampleRate),
			NumChannels: numChannels,
		},
		SourceBitDepth: int(stream.Info.BitsPerSample),
	}, nil
}

// IntBufferToPCMReader encodes a decoded int buffer back to raw signed
// 16-bit little-endian PCM bytes, the wire format oto's player expects.
func IntBufferToPCMReader(buf *audio.IntBuffer) io.Reader {
	pcm := make([]byte, len(buf.Data)*2)
	for i, sample := range buf.Data {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(sample)))
	}
	return bytes.NewReader(pcm)
}

func oneByteDataToIntSlice(bytes []byte) []int {
	intData := make([]int, len(bytes))
	for i, b := range bytes {
		intData[i] = int(b)
	}
	return intData
}

func twoByteDataToIntSlice(audioData []byte) []int {
	intData := make([]int, len(audioData)/2)
	for i := 0; i < len(audioData); i += 2 {
		// Convert the pCapturedSamples byte slice to int16 slice for FormatS16 as we go
		value := int(binary.LittleEndian.Uint16(audioData[i : i+2]))
		intData[i/2] = value
	}
	return intData
}
