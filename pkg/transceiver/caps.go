package transceiver

// Format tags recognized by the caps adapter (spec §4.2, §6).
type Format string

const (
	FormatPCMS16LE Format = "S16LE"
	FormatPCMS16BE Format = "S16BE"
	FormatPCMS32LE Format = "S32LE"
	FormatPCMS32BE Format = "S32BE"
	FormatPCMF32LE Format = "F32LE"
	FormatPCMF32BE Format = "F32BE"
	FormatMuLaw    Format = "MULAW"
	FormatALaw     Format = "ALAW"
	FormatUnknown  Format = ""
)

// bytesPerSampleForFormat derives bytes-per-sample from the format tag's
// bit depth, per spec §4.2: raw PCM -> bit-depth/8, mu-law/A-law -> 1,
// unknown -> 1 (with a caller-side warning).
func bytesPerSampleForFormat(f Format) (bytesPerSample int, known bool) {
	switch f {
	case FormatPCMS16LE, FormatPCMS16BE:
		return 2, true
	case FormatPCMS32LE, FormatPCMS32BE, FormatPCMF32LE, FormatPCMF32BE:
		return 4, true
	case FormatMuLaw, FormatALaw:
		return 1, true
	default:
		return 1, false
	}
}

// AudioParameters are frozen once caps_ready is set (spec §3): format,
// rate, channels, bytes-per-sample, frame duration, and the derived
// frame size. They are read-only until the next lifecycle reset.
type AudioParameters struct {
	Format          Format
	SampleRate      uint
	Channels        uint
	BytesPerSample  int
	FrameDurationMs uint
}

// FrameSizeBytes recomputes rate * bytesPerSample * channels *
// frameDurationMs / 1000, the derived frame size from spec §3. It is
// never cached so it can never desync from its inputs.
func (p AudioParameters) FrameSizeBytes() int {
	return int(p.SampleRate) * p.BytesPerSample * int(p.Channels) * int(p.FrameDurationMs) / 1000
}

// resolveCaps extracts rate and channels from a negotiated caps event
// (spec §4.2), failing with CapsError if either is absent, and derives
// bytes-per-sample from the format tag.
func resolveCaps(format Format, rate, channels uint, frameDurationMs uint) (AudioParameters, bool, error) {
	if rate == 0 {
		return AudioParameters{}, false, newCapsError("missing sample rate")
	}
	if channels == 0 {
		return AudioParameters{}, false, newCapsError("missing channel count")
	}
	bytesPerSample, known := bytesPerSampleForFormat(format)
	return AudioParameters{
		Format:          format,
		SampleRate:      rate,
		Channels:        channels,
		BytesPerSample:  bytesPerSample,
		FrameDurationMs: frameDurationMs,
	}, known, nil
}
