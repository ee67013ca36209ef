// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package signalwire

// Variant selects how much call detail a recording carries natively.
type Variant string

const (
	// VariantNative recordings embed the formatted numbers themselves,
	// no extra call lookup is needed.
	VariantNative Variant = "native"
	// VariantURL recordings only reference the call by sid; the numbers
	// come from a per-recording call lookup.
	VariantURL Variant = "url"
)

// SubresourceURIs indexes the subresources a recording exposes.
type SubresourceURIs struct {
	Transcriptions string `json:"transcriptions"`
}

// Recording is the normalized provider recording shape. Both variants are
// decoded into this one structure at the client boundary so downstream code
// never branches on provider version.
type Recording struct {
	SID         string `json:"sid"`
	AccountSID  string `json:"account_sid"`
	CallSID     string `json:"call_sid"`
	DateCreated string `json:"date_created"`
	Duration    string `json:"duration"`
	Channels    int    `json:"channels"`

	// URI is the metadata JSON resource path relative to the space.
	URI string `json:"uri"`

	// Native-variant fields; empty on the url variant.
	MediaURL         string `json:"media_url"`
	MediaContentType string `json:"media_content_type"`
	FromFormatted    string `json:"from_formatted"`
	ToFormatted      string `json:"to_formatted"`

	SubresourceURIs SubresourceURIs `json:"subresource_uris"`
}

type recordingPage struct {
	Recordings []Recording `json:"recordings"`
}

// CallMeta is the call detail needed to name the two parties of a recording.
type CallMeta struct {
	SID           string `json:"sid"`
	FromFormatted string `json:"from_formatted"`
	ToFormatted   string `json:"to_formatted"`
	Status        string `json:"status"`
}

// Transcription is one transcription subresource entry.
type Transcription struct {
	SID               string `json:"sid"`
	Status            string `json:"status"`
	TranscriptionText string `json:"transcription_text"`
}

type transcriptionPage struct {
	Transcriptions []Transcription `json:"transcriptions"`
}
