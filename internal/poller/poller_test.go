// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package poller

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidaai/vcon-bridge/internal/signalwire"
	"github.com/rapidaai/vcon-bridge/internal/vcon"
	"github.com/rapidaai/vcon-bridge/internal/webhook"
	"github.com/rapidaai/vcon-bridge/pkg/commons"
)

func newTestLogger(t *testing.T) commons.Logger {
	t.Helper()
	logger, err := commons.NewApplicationLogger(
		commons.Name("test-poller"),
		commons.Path(t.TempDir()),
		commons.Level("debug"),
	)
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	return logger
}

type fakeProvider struct {
	mu         sync.Mutex
	sinceSeen  []time.Time
	recordings []signalwire.Recording
	listErr    error
	metaErr    map[string]error
	transErr   map[string]error
	audioErr   map[string]error
	audio      []byte
}

func (f *fakeProvider) ListRecordingsSince(_ context.Context, since time.Time) ([]signalwire.Recording, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sinceSeen = append(f.sinceSeen, since)
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.recordings, nil
}

func (f *fakeProvider) ResolveCallMeta(_ context.Context, rec signalwire.Recording) (*signalwire.CallMeta, error) {
	if err := f.metaErr[rec.SID]; err != nil {
		return nil, err
	}
	return &signalwire.CallMeta{
		SID:           rec.CallSID,
		FromFormatted: "+15550001111",
		ToFormatted:   "+15550002222",
	}, nil
}

func (f *fakeProvider) Transcriptions(_ context.Context, rec signalwire.Recording) ([]signalwire.Transcription, error) {
	if err := f.transErr[rec.SID]; err != nil {
		return nil, err
	}
	return nil, nil
}

func (f *fakeProvider) DownloadAudio(_ context.Context, mediaURL string) ([]byte, error) {
	sid := strings.TrimSuffix(strings.TrimPrefix(mediaURL, "https://media.test/"), ".mp3")
	if err := f.audioErr[sid]; err != nil {
		return nil, err
	}
	return f.audio, nil
}

func (f *fakeProvider) MediaURL(rec signalwire.Recording) string {
	return "https://media.test/" + rec.SID + ".mp3"
}

func (f *fakeProvider) windows() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.sinceSeen...)
}

type fakeSink struct {
	mu        sync.Mutex
	delivered []*vcon.Vcon
	outcome   *webhook.Outcome
}

func (f *fakeSink) Deliver(_ context.Context, doc *vcon.Vcon) webhook.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.outcome != nil {
		return *f.outcome
	}
	f.delivered = append(f.delivered, doc)
	return webhook.Outcome{Delivered: true, StatusCode: 200}
}

func (f *fakeSink) documents() []*vcon.Vcon {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*vcon.Vcon(nil), f.delivered...)
}

func recording(sid string) signalwire.Recording {
	return signalwire.Recording{
		SID:         sid,
		CallSID:     "CA-" + sid,
		DateCreated: "Fri, 14 Oct 2022 21:43:43 +0000",
		Duration:    "13",
		Channels:    1,
		URI:         "/api/laml/2010-04-01/Accounts/AC/Recordings/" + sid + ".json",
	}
}

func newTestPoller(t *testing.T, provider *fakeProvider, sink *fakeSink, interval time.Duration) *Poller {
	t.Helper()
	return newTestPollerWithOptions(t, provider, sink, Options{
		Interval:            interval,
		EmbedAudio:          false,
		FetchTranscriptions: true,
	})
}

func newTestPollerWithOptions(t *testing.T, provider *fakeProvider, sink *fakeSink, opts Options) *Poller {
	t.Helper()
	logger := newTestLogger(t)
	return New(logger, provider, vcon.NewAssembler(logger, vcon.PartyOrderToFirst), sink, opts)
}

func runUntil(t *testing.T, p *Poller, condition func() bool) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, condition, 5*time.Second, 20*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("poll loop did not stop after cancellation")
	}
}

// --- Delivery Scenarios ---

func TestRunDeliversNewRecording(t *testing.T) {
	provider := &fakeProvider{recordings: []signalwire.Recording{recording("RE1")}}
	sink := &fakeSink{}
	p := newTestPoller(t, provider, sink, time.Second)

	runUntil(t, p, func() bool { return p.Stats().Delivered >= 1 })

	docs := sink.documents()
	require.NotEmpty(t, docs)
	doc := docs[0]
	assert.Len(t, doc.Parties, 2)
	require.Len(t, doc.Dialog, 1)
	assert.Equal(t, []int{0, 1}, doc.Dialog[0].Parties)
	require.Len(t, doc.Attachments, 1)
	assert.Equal(t, vcon.AttachmentRecordingMetadata, doc.Attachments[0].Type)
}

func TestRunAdvancesWindowToCycleStart(t *testing.T) {
	provider := &fakeProvider{}
	p := newTestPoller(t, provider, &fakeSink{}, time.Second)

	start := time.Now().UTC()
	runUntil(t, p, func() bool { return len(provider.windows()) >= 2 })

	windows := provider.windows()
	// first window is reset to now - interval, later windows never regress
	assert.WithinDuration(t, start.Add(-time.Second), windows[0], 500*time.Millisecond)
	for i := 1; i < len(windows); i++ {
		assert.True(t, windows[i].After(windows[i-1]), "window must be monotonically increasing")
	}
}

func TestRunContinuesAfterDeliveryFailure(t *testing.T) {
	provider := &fakeProvider{recordings: []signalwire.Recording{recording("RE1"), recording("RE2")}}
	sink := &fakeSink{outcome: &webhook.Outcome{
		StatusCode: 500,
		Err:        &webhook.DeliveryError{UUID: "x", StatusCode: 500},
	}}
	p := newTestPoller(t, provider, sink, time.Second)

	runUntil(t, p, func() bool { return p.Stats().Failed >= 2 })

	stats := p.Stats()
	assert.Zero(t, stats.Delivered)
	assert.GreaterOrEqual(t, stats.Processed, uint64(2))
}

func TestRunIsolatesBadRecording(t *testing.T) {
	provider := &fakeProvider{
		recordings: []signalwire.Recording{recording("RE1"), recording("RE2"), recording("RE3")},
		metaErr: map[string]error{
			"RE2": &signalwire.FetchError{Op: "resolve call meta", StatusCode: 404},
		},
	}
	sink := &fakeSink{}
	p := newTestPoller(t, provider, sink, time.Second)

	runUntil(t, p, func() bool { return p.Stats().Delivered >= 2 })

	stats := p.Stats()
	assert.GreaterOrEqual(t, stats.Failed, uint64(1))
	require.GreaterOrEqual(t, len(sink.documents()), 2)
}

func TestRunIsolatesTranscriptionFetchFailure(t *testing.T) {
	provider := &fakeProvider{
		recordings: []signalwire.Recording{recording("RE1"), recording("RE2"), recording("RE3")},
		transErr: map[string]error{
			"RE2": &signalwire.FetchError{Op: "fetch transcriptions", StatusCode: 502},
		},
	}
	sink := &fakeSink{}
	p := newTestPoller(t, provider, sink, time.Second)

	runUntil(t, p, func() bool { return p.Stats().Delivered >= 2 })

	stats := p.Stats()
	assert.GreaterOrEqual(t, stats.Failed, uint64(1))

	// neighbors keep flowing; the failed recording never reaches the sink
	docs := sink.documents()
	require.GreaterOrEqual(t, len(docs), 2)
	for _, doc := range docs {
		meta := doc.Attachments[0].Body.(map[string]interface{})
		assert.NotEqual(t, "RE2", meta["sid"])
	}
}

func TestRunIsolatesAudioDownloadFailure(t *testing.T) {
	provider := &fakeProvider{
		recordings: []signalwire.Recording{recording("RE1"), recording("RE2"), recording("RE3")},
		audio:      []byte{0x52, 0x49, 0x46, 0x46},
		audioErr: map[string]error{
			"RE2": &signalwire.FetchError{Op: "download audio", StatusCode: 403},
		},
	}
	sink := &fakeSink{}
	p := newTestPollerWithOptions(t, provider, sink, Options{
		Interval:            time.Second,
		EmbedAudio:          true,
		FetchTranscriptions: true,
	})

	runUntil(t, p, func() bool { return p.Stats().Delivered >= 2 })

	stats := p.Stats()
	assert.GreaterOrEqual(t, stats.Failed, uint64(1))

	docs := sink.documents()
	require.GreaterOrEqual(t, len(docs), 2)
	for _, doc := range docs {
		meta := doc.Attachments[0].Body.(map[string]interface{})
		assert.NotEqual(t, "RE2", meta["sid"])

		// delivered neighbors carry their embedded audio
		last := doc.Attachments[len(doc.Attachments)-1]
		assert.Equal(t, vcon.AttachmentAudioRecording, last.Type)
	}
}

func TestRunSurvivesFetchFailure(t *testing.T) {
	provider := &fakeProvider{listErr: fmt.Errorf("provider down")}
	p := newTestPoller(t, provider, &fakeSink{}, time.Second)

	// a failing fetch must not stop the loop: cycles keep accumulating
	runUntil(t, p, func() bool { return p.Stats().Cycles >= 2 })
	assert.Zero(t, p.Stats().Processed)
}

// --- Shutdown Scenarios ---

func TestRunStopsMidSleepWithinATick(t *testing.T) {
	provider := &fakeProvider{}
	p := newTestPoller(t, provider, &fakeSink{}, 30*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	// let the first cycle finish and the long sleep begin
	require.Eventually(t, func() bool { return p.Stats().Cycles >= 1 }, 5*time.Second, 10*time.Millisecond)

	cancelled := time.Now()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
		assert.Less(t, time.Since(cancelled), 2*time.Second, "shutdown must interrupt the sleep within about a second")
	case <-time.After(5 * time.Second):
		t.Fatal("poll loop ignored the shutdown signal")
	}

	// no new cycle was started after cancellation
	assert.Equal(t, uint64(1), p.Stats().Cycles)
}

func TestRunStopsBeforeFirstCycleWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	provider := &fakeProvider{recordings: []signalwire.Recording{recording("RE1")}}
	p := newTestPoller(t, provider, &fakeSink{}, time.Second)

	require.NoError(t, p.Run(ctx))
	assert.Empty(t, provider.windows())
}
