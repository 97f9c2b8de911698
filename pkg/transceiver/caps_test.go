package transceiver

import "testing"

func TestResolveCapsKnownFormat(t *testing.T) {
	params, known, err := resolveCaps(FormatPCMS16LE, 16000, 1, 250)
	if err != nil {
		t.Fatalf("resolveCaps() error = %v", err)
	}
	if !known {
		t.Fatal("known = false for S16LE, want true")
	}
	if params.BytesPerSample != 2 {
		t.Fatalf("BytesPerSample = %d, want 2", params.BytesPerSample)
	}
	if got, want := params.FrameSizeBytes(), 16000*2*1*250/1000; got != want {
		t.Fatalf("FrameSizeBytes() = %d, want %d", got, want)
	}
}

func TestResolveCapsUnknownFormatDefaultsToOneByte(t *testing.T) {
	params, known, err := resolveCaps(Format("opus"), 48000, 2, 20)
	if err != nil {
		t.Fatalf("resolveCaps() error = %v", err)
	}
	if known {
		t.Fatal("known = true for an unrecognized format tag, want false")
	}
	if params.BytesPerSample != 1 {
		t.Fatalf("BytesPerSample = %d, want 1 for unknown format", params.BytesPerSample)
	}
}

func TestResolveCapsMissingRate(t *testing.T) {
	if _, _, err := resolveCaps(FormatPCMS16LE, 0, 1, 250); err == nil {
		t.Fatal("resolveCaps() error = nil, want CapsError for missing rate")
	}
}

func TestResolveCapsMissingChannels(t *testing.T) {
	if _, _, err := resolveCaps(FormatPCMS16LE, 16000, 0, 250); err == nil {
		t.Fatal("resolveCaps() error = nil, want CapsError for missing channels")
	}
}

func TestBytesPerSampleForFormatTable(t *testing.T) {
	cases := []struct {
		format Format
		want   int
	}{
		{FormatPCMS16LE, 2},
		{FormatPCMS16BE, 2},
		{FormatPCMS32LE, 4},
		{FormatPCMS32BE, 4},
		{FormatPCMF32LE, 4},
		{FormatPCMF32BE, 4},
		{FormatMuLaw, 1},
		{FormatALaw, 1},
		{FormatUnknown, 1},
	}
	for _, c := range cases {
		got, _ := bytesPerSampleForFormat(c.format)
		if got != c.want {
			t.Errorf("bytesPerSampleForFormat(%q) = %d, want %d", c.format, got, c.want)
		}
	}
}
