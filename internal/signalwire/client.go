// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package signalwire

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/rapidaai/vcon-bridge/pkg/commons"
)

const (
	laMLPathPrefix = "/api/laml/2010-04-01"

	// A recording's metadata resource ends in the JSON suffix; the audio
	// file lives at the same path with the audio suffix instead.
	metadataSuffix = ".json"
	audioSuffix    = ".mp3"

	// DefaultMimetype is used when the provider does not report a media
	// content type for the recording.
	DefaultMimetype = "audio/mp3"

	// the list endpoint filters on creation time strictly after the bound
	createdAfterParam = "DateCreated>"
)

// FetchError classifies a failed provider call: either a transport error or
// a non-2xx response.
type FetchError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("signalwire: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("signalwire: %s: unexpected status %d", e.Op, e.StatusCode)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Client is the provider-facing surface of the bridge. All calls use the
// project/token credential pair and a finite timeout.
type Client interface {
	// ListRecordingsSince returns recordings created strictly after since,
	// in the order the provider returns them.
	ListRecordingsSince(ctx context.Context, since time.Time) ([]Recording, error)

	// ResolveCallMeta yields the call detail for one recording. On the
	// native variant this is a pass-through of the recording's own fields;
	// on the url variant it is a live call lookup.
	ResolveCallMeta(ctx context.Context, rec Recording) (*CallMeta, error)

	// Transcriptions fetches the recording's transcription subresource.
	// Entries without text are dropped. Returns nil when the recording
	// lists no transcription subresource.
	Transcriptions(ctx context.Context, rec Recording) ([]Transcription, error)

	// DownloadAudio fetches the raw audio bytes at url.
	DownloadAudio(ctx context.Context, url string) ([]byte, error)

	// MediaURL derives the audio location for a recording.
	MediaURL(rec Recording) string
}

type client struct {
	logger    commons.Logger
	http      *resty.Client
	spaceURL  string
	projectID string
	resolver  callMetaResolver
}

// NewClient builds a provider client for one SignalWire space. The variant
// decides how per-recording call metadata is resolved.
func NewClient(logger commons.Logger, spaceURL, projectID, authToken string, variant Variant, timeout time.Duration) Client {
	httpClient := resty.New().
		SetBaseURL(spaceURL).
		SetBasicAuth(projectID, authToken).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	c := &client{
		logger:    logger,
		http:      httpClient,
		spaceURL:  strings.TrimRight(spaceURL, "/"),
		projectID: projectID,
	}
	switch variant {
	case VariantNative:
		c.resolver = nativeResolver{}
	default:
		c.resolver = lookupResolver{c: c}
	}
	return c
}

func (c *client) ListRecordingsSince(ctx context.Context, since time.Time) ([]Recording, error) {
	var page recordingPage
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam(createdAfterParam, since.UTC().Format(time.RFC3339)).
		SetResult(&page).
		Get(fmt.Sprintf("%s/Accounts/%s/Recordings.json", laMLPathPrefix, c.projectID))
	if err != nil {
		return nil, &FetchError{Op: "list recordings", Err: err}
	}
	if !resp.IsSuccess() {
		return nil, &FetchError{Op: "list recordings", StatusCode: resp.StatusCode()}
	}
	return page.Recordings, nil
}

func (c *client) ResolveCallMeta(ctx context.Context, rec Recording) (*CallMeta, error) {
	return c.resolver.resolve(ctx, rec)
}

func (c *client) Transcriptions(ctx context.Context, rec Recording) ([]Transcription, error) {
	if rec.SubresourceURIs.Transcriptions == "" {
		return nil, nil
	}

	var page transcriptionPage
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&page).
		Get(rec.SubresourceURIs.Transcriptions)
	if err != nil {
		return nil, &FetchError{Op: "fetch transcriptions", Err: err}
	}
	if !resp.IsSuccess() {
		return nil, &FetchError{Op: "fetch transcriptions", StatusCode: resp.StatusCode()}
	}

	transcriptions := make([]Transcription, 0, len(page.Transcriptions))
	for _, t := range page.Transcriptions {
		if strings.TrimSpace(t.TranscriptionText) == "" {
			continue
		}
		transcriptions = append(transcriptions, t)
	}
	return transcriptions, nil
}

func (c *client) DownloadAudio(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "*/*").
		Get(url)
	if err != nil {
		return nil, &FetchError{Op: "download recording", Err: err}
	}
	if !resp.IsSuccess() {
		return nil, &FetchError{Op: "download recording", StatusCode: resp.StatusCode()}
	}
	return resp.Body(), nil
}

// MediaURL prefers the provider-reported media location and otherwise derives
// it from the metadata resource path by swapping the resource suffix. The
// transform is exact: no other URL shape is assumed.
func (c *client) MediaURL(rec Recording) string {
	if rec.MediaURL != "" {
		return rec.MediaURL
	}
	return c.spaceURL + strings.TrimSuffix(rec.URI, metadataSuffix) + audioSuffix
}
