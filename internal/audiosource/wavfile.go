package audiosource

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-audio/wav"
)

// blockFrames is the chunk size WAVFileSource delivers per callback,
// chosen to land close to the processing context's 44 Hz tick so a
// demo run approximates the cadence a real audio device would produce.
const blockFrames = 1024

// WAVFileSource plays a PCM WAV file back at its native sample rate,
// delivering interleaved blocks to the registered callback on a
// dedicated goroutine. It exists for demos and integration tests where
// no real audio device is available; spec.md's AudioSource is normally
// backed by a platform driver outside this repo's scope.
//
// The decoder setup (wav.NewDecoder, IsValidFile, ReadInfo) mirrors
// schollz-221e's internal/getbpm.Length.
type WAVFileSource struct {
	baseSource

	path       string
	sampleRate int
	channels   int
	samples    []float32 // full interleaved file, decoded once at Start

	mu      sync.Mutex
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
}

// NewWAVFileSource builds a source bound to a single WAV file path.
// Decoding happens lazily in Start, not here, since construction
// shouldn't do I/O.
func NewWAVFileSource(path string) *WAVFileSource {
	s := &WAVFileSource{baseSource: newBaseSource(), path: path}
	s.active = path
	return s
}

// Start decodes the file into memory and begins delivering blocks at
// the file's native sample rate.
func (s *WAVFileSource) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	if s.samples == nil {
		if err := s.decode(); err != nil {
			return fmt.Errorf("audiosource: decode %s: %w", s.path, err)
		}
	}
	s.stopCh = make(chan struct{})
	s.running = true
	s.wg.Add(1)
	go s.run(s.stopCh)
	return nil
}

func (s *WAVFileSource) decode() error {
	f, err := os.Open(s.path)
	if err != nil {
		return err
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return fmt.Errorf("invalid WAV file")
	}
	d.ReadInfo()
	if d.SampleRate == 0 {
		return fmt.Errorf("invalid sample rate: 0")
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return fmt.Errorf("decode PCM: %w", err)
	}

	s.sampleRate = int(d.SampleRate)
	s.channels = buf.Format.NumChannels
	if s.channels <= 0 {
		s.channels = 1
	}

	maxMagnitude := float32(int64(1) << uint(d.BitDepth-1))
	if maxMagnitude <= 0 {
		maxMagnitude = 1 << 15
	}
	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float32(v) / maxMagnitude
	}
	s.samples = samples
	return nil
}

func (s *WAVFileSource) run(stop chan struct{}) {
	defer s.wg.Done()

	frameBytes := blockFrames * s.channels
	period := time.Duration(float64(blockFrames) / float64(s.sampleRate) * float64(time.Second))
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	offset := 0
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if offset >= len(s.samples) {
				return // end of file: stop delivering, like a closed device
			}
			end := offset + frameBytes
			if end > len(s.samples) {
				end = len(s.samples)
			}
			s.deliver(s.samples[offset:end], s.channels)
			offset = end
		}
	}
}

// Stop halts delivery. It is safe to call even if Start was never
// called or delivery already finished.
func (s *WAVFileSource) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	close(s.stopCh)
	s.running = false
	s.mu.Unlock()
	s.wg.Wait()
	return nil
}

// ListDevices reports the single file path this source plays.
func (s *WAVFileSource) ListDevices() ([]string, error) {
	return []string{s.path}, nil
}

// Select only accepts the source's own path; WAVFileSource has exactly
// one fixed device.
func (s *WAVFileSource) Select(name string) error {
	if name != s.path {
		return errNotSelectable
	}
	return nil
}
