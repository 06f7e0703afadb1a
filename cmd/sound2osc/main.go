package main

import (
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sound2osc/engine/internal/audiosource"
	"github.com/sound2osc/engine/internal/diagnostics"
	"github.com/sound2osc/engine/internal/emitter"
	"github.com/sound2osc/engine/internal/engine"
	"github.com/sound2osc/engine/internal/midiclock"
	"github.com/sound2osc/engine/internal/oscctl"
	"github.com/sound2osc/engine/internal/preset"
	"github.com/sound2osc/engine/internal/tempo"
	"github.com/sound2osc/engine/internal/transport"
)

func main() {
	var (
		presetFile  string
		wavFile     string
		udpAddr     string
		tcpAddr     string
		oscMode     string
		ctlAddr     string
		midiPort    string
		debugLog    string
	)
	flag.StringVar(&presetFile, "preset", "", "PresetDocument JSON file to load; empty starts from defaults")
	flag.StringVar(&wavFile, "wav", "", "WAV file to play as the audio source; empty uses a silent mock source")
	flag.StringVar(&udpAddr, "udp", "127.0.0.1:9000", "UDP address to send OSC messages to")
	flag.StringVar(&tcpAddr, "tcp", "", "SLIP-framed TCP address to send OSC messages to; empty disables TCP output")
	flag.StringVar(&oscMode, "osc-mode", "1.0", "OSC wire mode: 1.0 (bundles) or 1.1 (never bundles)")
	flag.StringVar(&ctlAddr, "ctl-addr", ":9001", "address to listen on for inbound OSC control messages")
	flag.StringVar(&midiPort, "midi-port", "", "MIDI output port name for beat-clock pulses; empty disables MIDI clock")
	flag.StringVar(&debugLog, "debug", "", "if set, write debug logs to this file; empty disables logging")
	flag.Parse()

	if debugLog != "" {
		f, err := os.OpenFile(debugLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatalf("sound2osc: open debug log: %v", err)
		}
		defer f.Close()
		log.SetOutput(f)
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	} else {
		log.SetOutput(io.Discard)
	}

	doc := loadOrDefaultPreset(presetFile)

	source := buildAudioSource(wavFile)

	sender, err := buildSender(udpAddr, tcpAddr)
	if err != nil {
		log.Fatalf("sound2osc: build transport: %v", err)
	}

	mode := emitter.OSC10
	if oscMode == "1.1" {
		mode = emitter.OSC11
	}

	diag := diagnostics.NewLogSink(log.Printf)

	var midiOut tempo.MidiClock
	if midiPort != "" {
		clock, err := midiclock.Open(midiPort)
		if err != nil {
			log.Printf("sound2osc: midi clock unavailable: %v", err)
		} else {
			defer clock.Close()
			midiOut = clock
		}
	}

	eng, err := engine.New(engine.Config{
		Document:    doc,
		Source:      source,
		Sender:      sender,
		EmitterMode: mode,
		Diagnostics: diag,
		MidiClock:   midiOut,
	})
	if err != nil {
		log.Fatalf("sound2osc: build engine: %v", err)
	}

	listener := oscctl.New(ctlAddr, oscctl.Handlers{
		SetThreshold: func(triggerID string, threshold float32) {
			state := eng.ToState()
			if def := state.Triggers[preset.TriggerID(triggerID)]; def != nil {
				def.Threshold = threshold
				def.Clamp()
				if err := eng.FromState(state); err != nil {
					log.Printf("sound2osc: apply threshold: %v", err)
				}
			}
		},
		LoadPreset: func(path string) {
			data, err := os.ReadFile(path)
			if err != nil {
				log.Printf("sound2osc: load preset %q: %v", path, err)
				return
			}
			loaded, err := preset.Load(data)
			if err != nil {
				log.Printf("sound2osc: parse preset %q: %v", path, err)
				return
			}
			if err := eng.FromState(loaded); err != nil {
				log.Printf("sound2osc: apply preset %q: %v", path, err)
			}
		},
		SetBPMMute: func(mute bool) {
			state := eng.ToState()
			state.BPM.Mute = mute
			if err := eng.FromState(state); err != nil {
				log.Printf("sound2osc: apply bpm mute: %v", err)
			}
		},
		TapBPM: func() {
			// Tap-tempo input is out of scope for this engine's onset-driven
			// tempo estimator; reserved for a future manual override.
		},
	})
	go func() {
		if err := listener.ListenAndServe(); err != nil {
			log.Printf("sound2osc: control listener stopped: %v", err)
		}
	}()

	if err := eng.Start(); err != nil {
		log.Fatalf("sound2osc: start engine: %v", err)
	}

	waitForShutdownSignal()
	_ = eng.Stop()
}

func loadOrDefaultPreset(path string) *preset.Document {
	if path == "" {
		doc, err := preset.Load([]byte(`{}`))
		if err != nil {
			log.Fatalf("sound2osc: build default preset: %v", err)
		}
		return doc
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("sound2osc: read preset %q: %v", path, err)
	}
	doc, err := preset.Load(data)
	if err != nil {
		log.Fatalf("sound2osc: parse preset %q: %v", path, err)
	}
	return doc
}

func buildAudioSource(wavFile string) audiosource.Source {
	if wavFile == "" {
		return audiosource.NewMockSource(audiosource.ExpectedSampleRate, 1)
	}
	return audiosource.NewWAVFileSource(wavFile)
}

func buildSender(udpAddr, tcpAddr string) (transport.Sender, error) {
	if tcpAddr != "" {
		return transport.NewTCPSender(tcpAddr, nil), nil
	}
	return transport.NewUDPSender(udpAddr, nil)
}

func waitForShutdownSignal() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	<-c
}
