// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package poller owns the incremental poll window and drives the
// fetch -> assemble -> deliver pipeline, one recording at a time.
package poller

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rapidaai/vcon-bridge/internal/signalwire"
	"github.com/rapidaai/vcon-bridge/internal/vcon"
	"github.com/rapidaai/vcon-bridge/internal/webhook"
	"github.com/rapidaai/vcon-bridge/pkg/commons"
)

// Stats is a point-in-time snapshot of loop counters, read by the health
// surface. Failed counts recordings aborted by any step, fetch to delivery.
type Stats struct {
	Cycles    uint64
	Processed uint64
	Delivered uint64
	Failed    uint64
	LastCycle time.Time
}

// Options tunes the loop; all fields are required except the two flags.
type Options struct {
	Interval            time.Duration
	EmbedAudio          bool
	FetchTranscriptions bool
}

// Poller is the orchestrator: it is the only owner of the poll window and of
// the loop-control state. One bad recording never blocks the rest of the
// batch, and one bad cycle never stops the loop.
type Poller struct {
	logger    commons.Logger
	provider  signalwire.Client
	assembler *vcon.Assembler
	sink      webhook.Client
	opts      Options

	cycles    atomic.Uint64
	processed atomic.Uint64
	delivered atomic.Uint64
	failed    atomic.Uint64
	lastCycle atomic.Value // time.Time
}

// New builds a poller over the given collaborators.
func New(logger commons.Logger, provider signalwire.Client, assembler *vcon.Assembler, sink webhook.Client, opts Options) *Poller {
	return &Poller{
		logger:    logger,
		provider:  provider,
		assembler: assembler,
		sink:      sink,
		opts:      opts,
	}
}

// Stats returns a snapshot of the loop counters.
func (p *Poller) Stats() Stats {
	s := Stats{
		Cycles:    p.cycles.Load(),
		Processed: p.processed.Load(),
		Delivered: p.delivered.Load(),
		Failed:    p.failed.Load(),
	}
	if v := p.lastCycle.Load(); v != nil {
		s.LastCycle = v.(time.Time)
	}
	return s
}

// Run executes poll cycles until ctx is cancelled. The window starts at
// now - interval; there is no durable checkpoint, so a restart re-derives it
// the same way. Cancellation is observed before each cycle and at every tick
// of the inter-cycle sleep, never by aborting an in-flight call.
func (p *Poller) Run(ctx context.Context) error {
	lastCheck := time.Now().UTC().Add(-p.opts.Interval)
	p.logger.Infow("starting recording poll loop",
		"interval", p.opts.Interval.String(),
		"embed_audio", p.opts.EmbedAudio,
		"fetch_transcriptions", p.opts.FetchTranscriptions)

	for {
		if ctx.Err() != nil {
			p.logger.Info("shutdown requested, stopping poll loop")
			return nil
		}

		cycleStart := time.Now().UTC()
		p.runCycle(ctx, lastCheck)

		// The window advances to the time captured before the batch ran:
		// recordings created during the batch land in the next cycle.
		lastCheck = cycleStart

		if !p.sleep(ctx) {
			p.logger.Info("shutdown requested during sleep, stopping poll loop")
			return nil
		}
	}
}

// runCycle performs one fetch + batch pass. A failed fetch is logged and the
// cycle ends; it never propagates out of the loop.
func (p *Poller) runCycle(ctx context.Context, since time.Time) {
	defer func() {
		p.cycles.Add(1)
		p.lastCycle.Store(time.Now().UTC())
	}()

	p.logger.Infow("checking for new recordings", "since", since.Format(time.RFC3339))

	recordings, err := p.provider.ListRecordingsSince(ctx, since)
	if err != nil {
		p.logger.Errorw("failed to list recordings", "error", err)
		return
	}
	if len(recordings) == 0 {
		p.logger.Debug("no new recordings")
		return
	}

	p.logger.Infow("fetched new recordings", "count", len(recordings))

	// Per-recording work runs on a detached context: a shutdown request
	// stops the batch between recordings, never by aborting an in-flight
	// call. Each call is still bounded by the client timeouts.
	work := context.WithoutCancel(ctx)
	for _, rec := range recordings {
		if ctx.Err() != nil {
			p.logger.Info("shutdown requested, leaving remaining recordings to the next start")
			return
		}
		p.processRecording(work, rec)
	}
}

// processRecording runs the full pipeline for one recording. Every failure
// is logged with the recording sid and aborts only this recording.
func (p *Poller) processRecording(ctx context.Context, rec signalwire.Recording) {
	p.logger.Infow("processing recording", "sid", rec.SID, "call_sid", rec.CallSID)
	p.processed.Add(1)

	meta, err := p.provider.ResolveCallMeta(ctx, rec)
	if err != nil {
		p.failed.Add(1)
		p.logger.Errorw("failed to resolve call meta", "sid", rec.SID, "error", err)
		return
	}

	var transcriptions []signalwire.Transcription
	if p.opts.FetchTranscriptions {
		transcriptions, err = p.provider.Transcriptions(ctx, rec)
		if err != nil {
			p.failed.Add(1)
			p.logger.Errorw("failed to fetch transcriptions", "sid", rec.SID, "error", err)
			return
		}
	}

	mediaURL := p.provider.MediaURL(rec)

	var audio []byte
	if p.opts.EmbedAudio {
		audio, err = p.provider.DownloadAudio(ctx, mediaURL)
		if err != nil {
			p.failed.Add(1)
			p.logger.Errorw("failed to download recording audio", "sid", rec.SID, "error", err)
			return
		}
		if audio == nil {
			// fetched but empty: keep it distinct from audio-disabled
			audio = []byte{}
		}
	}

	doc, err := p.assembler.Assemble(vcon.Input{
		Recording:      rec,
		Meta:           meta,
		Transcriptions: transcriptions,
		MediaURL:       mediaURL,
		Audio:          audio,
	})
	if err != nil {
		p.failed.Add(1)
		p.logger.Errorw("failed to assemble conversation record", "sid", rec.SID, "error", err)
		return
	}

	outcome := p.sink.Deliver(ctx, doc)
	if !outcome.Delivered {
		p.failed.Add(1)
		p.logger.Errorw("failed to deliver conversation record",
			"sid", rec.SID, "uuid", doc.UUID, "status", outcome.StatusCode, "error", outcome.Err)
		return
	}

	p.delivered.Add(1)
	p.logger.Infow("delivered conversation record",
		"sid", rec.SID, "uuid", doc.UUID, "status", outcome.StatusCode)
}

// sleep waits out the poll interval in one-second ticks so a shutdown signal
// takes effect within about a second. Returns false when ctx was cancelled.
func (p *Poller) sleep(ctx context.Context) bool {
	seconds := int(p.opts.Interval / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	p.logger.Infof("sleeping for %d seconds", seconds)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for i := 0; i < seconds; i++ {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
	return true
}
