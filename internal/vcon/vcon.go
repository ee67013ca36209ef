// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package vcon builds the standardized conversation-record document that the
// bridge forwards downstream: two parties, one dialog entry describing the
// recording, and typed attachments.
package vcon

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Version is the conversation-record schema version stamped on every document.
const Version = "0.0.1"

// Attachment types.
const (
	AttachmentRecordingMetadata = "recording_metadata"
	AttachmentTranscription     = "transcription"
	AttachmentAudioRecording    = "audio_recording"
)

// Attachment body encodings.
const (
	EncodingJSON      = "json"
	EncodingBase64URL = "base64url"
)

// DialogTypeRecording marks a dialog entry describing a call recording.
const DialogTypeRecording = "recording"

// Party is one leg of the conversation.
type Party struct {
	Tel string `json:"tel,omitempty"`
}

// Dialog describes one communication event and which parties participated.
// Start is omitted entirely when the source timestamp was unparsable;
// duration is always on the wire, a zero-second recording is legitimate.
type Dialog struct {
	Type     string `json:"type"`
	Start    string `json:"start,omitempty"`
	Duration int    `json:"duration"`
	Parties  []int  `json:"parties"`
	URL      string `json:"url,omitempty"`
	Mimetype string `json:"mimetype,omitempty"`
}

// Attachment is a typed side-document on the conversation record.
type Attachment struct {
	Type     string      `json:"type"`
	Body     interface{} `json:"body"`
	Encoding string      `json:"encoding,omitempty"`
}

// Vcon is the assembled conversation record. It is created fresh per
// recording, fully populated synchronously, then serialized and discarded.
type Vcon struct {
	Vcon        string       `json:"vcon"`
	UUID        string       `json:"uuid"`
	CreatedAt   string       `json:"created_at"`
	Parties     []Party      `json:"parties"`
	Dialog      []Dialog     `json:"dialog"`
	Attachments []Attachment `json:"attachments"`
}

// New returns an empty conversation record with a fresh UUID.
func New() *Vcon {
	return &Vcon{
		Vcon:        Version,
		UUID:        uuid.New().String(),
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
		Parties:     []Party{},
		Dialog:      []Dialog{},
		Attachments: []Attachment{},
	}
}

// AddParty appends a party and returns its index for dialog references.
func (v *Vcon) AddParty(p Party) int {
	v.Parties = append(v.Parties, p)
	return len(v.Parties) - 1
}

// AddDialog appends a dialog entry.
func (v *Vcon) AddDialog(d Dialog) {
	v.Dialog = append(v.Dialog, d)
}

// AddAttachment appends an attachment.
func (v *Vcon) AddAttachment(a Attachment) {
	v.Attachments = append(v.Attachments, a)
}

// MarshalBody serializes the document to its JSON wire form.
func (v *Vcon) MarshalBody() ([]byte, error) {
	return json.Marshal(v)
}
