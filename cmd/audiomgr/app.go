package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lokutor-ai/audio-manager/pkg/audio"
	"github.com/lokutor-ai/audio-manager/pkg/audiomgr"
	"github.com/lokutor-ai/audio-manager/pkg/logging"
	"github.com/lokutor-ai/audio-manager/pkg/playback"
	"github.com/lokutor-ai/audio-manager/pkg/uplink"
)

const (
	outboundQueueSize = 256
	playChunkSamples  = audiomgr.PlaybackFrameSamples * 16
	maxBackoff        = 30 * time.Second
)

// outbound is one message for the voice server: either an event or a frame
type outbound struct {
	event   string
	wakeup  *audiomgr.WakeupData
	samples []int16
}

// app ties the manager to recordings on disk and the optional voice server
type app struct {
	s      settings
	logger *logging.ZerologLogger
	mgr    *audiomgr.Manager
	link   *uplink.Client

	out chan outbound

	mu      sync.Mutex
	rec     *audio.Recorder
	recFile *os.File
	turn    int
}

func run(ctx context.Context, s settings, logger *logging.ZerologLogger) error {
	registry := prometheus.NewRegistry()
	metrics, err := audiomgr.NewMetrics(registry)
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	if s.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              s.MetricsAddr,
			Handler:           metricsHandler(registry),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("serving metrics", "addr", s.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if s.RecordDir != "" {
		if err := os.MkdirAll(s.RecordDir, 0o755); err != nil {
			return fmt.Errorf("failed to create record directory: %w", err)
		}
	}

	a := &app{
		s:      s,
		logger: logger,
		mgr:    audiomgr.New(logger.With("audiomgr")),
		out:    make(chan outbound, outboundQueueSize),
	}
	a.mgr.SetMetrics(metrics)

	if s.UplinkURL != "" {
		a.link = uplink.New(uplink.Config{
			URL:        s.UplinkURL,
			APIKey:     s.UplinkKey,
			SampleRate: 16000,
			Logger:     logger.With("uplink"),
		})
		defer a.link.Close()
	}

	a.mgr.SetRecordCallback(a.onRecord)
	if err := a.mgr.Init(boardConfig(s, a.handleEvent)); err != nil {
		return fmt.Errorf("failed to initialize audio manager: %w", err)
	}
	a.mgr.SetVolume(s.Volume)
	if err := a.mgr.Start(); err != nil {
		a.mgr.Deinit()
		return fmt.Errorf("failed to start listening: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.sendLoop(ctx)
	}()
	if a.link != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.receiveLoop(ctx)
		}()
	}

	if s.Greeting != "" {
		if err := a.playFile(ctx, s.Greeting); err != nil {
			logger.Warn("failed to play greeting", "path", s.Greeting, "error", err)
		}
	}

	logger.Info("listening, press the button to talk", "volume", int(a.mgr.GetVolume()))
	<-ctx.Done()
	logger.Info("shutting down")

	_ = a.mgr.Stop()
	a.mgr.Deinit()
	// no callbacks run after Deinit
	close(a.out)
	wg.Wait()
	a.finishTurn()
	return nil
}

func metricsHandler(registry *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	}))
	return mux
}

// handleEvent runs on the manager's dispatch goroutine
func (a *app) handleEvent(ev audiomgr.Event) {
	a.logger.Debug("event", "type", string(ev.Type))

	switch ev.Type {
	case audiomgr.EventButtonTrigger, audiomgr.EventWakeupDetected:
		// barge in on whatever is playing
		_ = a.mgr.ClearPlaybackBuffer()
		_ = a.mgr.StopPlayback()

		a.finishTurn()
		if err := a.startTurn(); err != nil {
			a.logger.Warn("failed to open recording", "error", err)
		}
		if err := a.mgr.StartRecording(); err != nil {
			a.logger.Warn("failed to start recording", "error", err)
			return
		}
		a.post(outbound{event: string(ev.Type), wakeup: ev.Wakeup})

	case audiomgr.EventVADStart:
		a.post(outbound{event: string(ev.Type)})

	case audiomgr.EventVADEnd, audiomgr.EventButtonRelease:
		if !a.mgr.IsRecording() {
			return
		}
		_ = a.mgr.StopRecording()
		a.finishTurn()
		a.post(outbound{event: string(ev.Type)})
	}
}

// onRecord runs on the front-end goroutine
func (a *app) onRecord(pcm []int16) {
	a.mu.Lock()
	if a.rec != nil {
		if err := a.rec.Write(pcm); err != nil {
			a.logger.Warn("failed to write recording", "error", err)
		}
	}
	a.mu.Unlock()

	a.post(outbound{samples: pcm})
}

func (a *app) post(msg outbound) {
	if a.link == nil {
		return
	}
	select {
	case a.out <- msg:
	default:
		a.logger.Warn("uplink queue full, message dropped", "event", msg.event)
	}
}

func (a *app) startTurn() error {
	if a.s.RecordDir == "" {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.turn++
	name := fmt.Sprintf("turn-%s-%03d.wav", time.Now().Format("20060102-150405"), a.turn)
	f, err := os.Create(filepath.Join(a.s.RecordDir, name))
	if err != nil {
		return err
	}
	a.recFile = f
	a.rec = audio.NewRecorder(f, 16000)
	return nil
}

func (a *app) finishTurn() {
	a.mu.Lock()
	rec, f := a.rec, a.recFile
	a.rec, a.recFile = nil, nil
	a.mu.Unlock()

	if rec == nil {
		return
	}
	samples := rec.Samples()
	if err := rec.Close(); err != nil {
		a.logger.Warn("failed to finalise recording", "error", err)
	}
	if err := f.Close(); err != nil {
		a.logger.Warn("failed to close recording", "error", err)
	}
	if samples == 0 {
		_ = os.Remove(f.Name())
		return
	}
	a.logger.Info("recording saved", "path", f.Name(), "seconds", float64(samples)/16000)
}

// sendLoop forwards queued events and frames until the queue is closed
func (a *app) sendLoop(ctx context.Context) {
	for msg := range a.out {
		if ctx.Err() != nil {
			continue
		}
		var err error
		if msg.samples != nil {
			err = a.link.SendAudio(ctx, msg.samples)
		} else {
			idx, db := 0, 0.0
			if msg.wakeup != nil {
				idx, db = msg.wakeup.WakeWordIndex, msg.wakeup.VolumeDB
			}
			err = a.link.SendEvent(ctx, msg.event, idx, db)
		}
		if err != nil {
			a.logger.Debug("uplink send failed", "error", err)
		}
	}
}

// receiveLoop plays every server response, reconnecting with backoff
func (a *app) receiveLoop(ctx context.Context) {
	backoff := time.Second
	for ctx.Err() == nil {
		err := a.link.Receive(ctx, func(pcm []int16) error {
			return a.play(ctx, pcm)
		})
		if err == nil {
			backoff = time.Second
			continue
		}
		if ctx.Err() != nil {
			return
		}
		a.logger.Warn("voice server receive failed", "error", err, "retryIn", backoff)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

// play queues pcm in chunks and keeps playback running while it does, so
// responses longer than the playback queue still fit
func (a *app) play(ctx context.Context, pcm []int16) error {
	for len(pcm) > 0 {
		n := min(len(pcm), playChunkSamples)
		err := a.mgr.PlayAudio(ctx, pcm[:n])
		if errors.Is(err, playback.ErrQueueFull) {
			a.logger.Warn("playback queue full, audio dropped", "samples", n)
		} else if err != nil {
			return err
		}
		if !a.mgr.IsPlaying() {
			if err := a.mgr.StartPlayback(); err != nil {
				return err
			}
		}
		pcm = pcm[n:]
	}
	return nil
}

func (a *app) playFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	pcm, rate, err := audio.ReadWAV(f)
	if err != nil {
		return err
	}
	if rate != 16000 {
		a.logger.Warn("greeting sample rate differs from the speaker", "rate", rate)
	}
	return a.play(ctx, pcm)
}
