// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package vcon

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/rapidaai/vcon-bridge/internal/signalwire"
	"github.com/rapidaai/vcon-bridge/pkg/commons"
)

// PartyOrder fixes which call leg sits at party index 0. The convention
// differs between provider variants and must never be inferred at call time.
type PartyOrder int

const (
	// PartyOrderFromFirst puts the caller at index 0 (native provider shape).
	PartyOrderFromFirst PartyOrder = iota
	// PartyOrderToFirst puts the callee at index 0 (url provider shape).
	PartyOrderToFirst
)

// sourceLabel identifies the provider on the metadata attachment.
const sourceLabel = "SignalWire"

// AssemblyError marks a recording whose inputs cannot form a valid document.
type AssemblyError struct {
	RecordingSID string
	Reason       string
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("assemble recording %s: %s", e.RecordingSID, e.Reason)
}

// Input carries everything one assembly pass needs: the normalized recording,
// its resolved call detail, optional transcriptions, the derived audio
// location, and optionally the downloaded audio bytes. Audio nil means no
// audio was fetched; a non-nil empty slice is a fetched, empty body and
// still becomes an attachment.
type Input struct {
	Recording      signalwire.Recording
	Meta           *signalwire.CallMeta
	Transcriptions []signalwire.Transcription
	MediaURL       string
	Audio          []byte
}

// Assembler turns recordings into conversation records.
type Assembler struct {
	logger commons.Logger
	order  PartyOrder
}

// NewAssembler builds an assembler with a fixed party-order convention.
func NewAssembler(logger commons.Logger, order PartyOrder) *Assembler {
	return &Assembler{logger: logger, order: order}
}

// Assemble builds one conversation record: exactly two parties, exactly one
// recording dialog entry referencing them, one metadata attachment, zero or
// more transcription attachments, and at most one audio attachment.
func (a *Assembler) Assemble(in Input) (*Vcon, error) {
	rec := in.Recording
	if in.Meta == nil {
		return nil, &AssemblyError{RecordingSID: rec.SID, Reason: "missing call meta"}
	}

	doc := New()

	first, second := Party{Tel: in.Meta.FromFormatted}, Party{Tel: in.Meta.ToFormatted}
	if a.order == PartyOrderToFirst {
		first, second = second, first
	}
	doc.AddParty(first)
	doc.AddParty(second)

	mimetype := rec.MediaContentType
	if mimetype == "" {
		mimetype = signalwire.DefaultMimetype
	}
	doc.AddDialog(Dialog{
		Type:     DialogTypeRecording,
		Start:    a.startTime(rec),
		Duration: a.durationSeconds(rec),
		Parties:  []int{0, 1},
		URL:      in.MediaURL,
		Mimetype: mimetype,
	})

	doc.AddAttachment(Attachment{
		Type: AttachmentRecordingMetadata,
		Body: map[string]interface{}{
			"sid":         rec.SID,
			"account_sid": rec.AccountSID,
			"call_sid":    rec.CallSID,
			"channels":    rec.Channels,
			"source":      sourceLabel,
		},
		Encoding: EncodingJSON,
	})

	for _, t := range in.Transcriptions {
		if strings.TrimSpace(t.TranscriptionText) == "" {
			continue
		}
		doc.AddAttachment(Attachment{
			Type: AttachmentTranscription,
			Body: map[string]interface{}{
				"sid":    t.SID,
				"status": t.Status,
				"text":   t.TranscriptionText,
			},
			Encoding: EncodingJSON,
		})
	}

	if in.Audio != nil {
		doc.AddAttachment(Attachment{
			Type:     AttachmentAudioRecording,
			Body:     base64.RawURLEncoding.EncodeToString(in.Audio),
			Encoding: EncodingBase64URL,
		})
	}

	return doc, nil
}

// startTime parses the provider timestamp leniently; depending on variant it
// arrives in RFC-2822 or ISO-8601 form. An unparsable value yields an absent
// start rather than a failed assembly.
func (a *Assembler) startTime(rec signalwire.Recording) string {
	if rec.DateCreated == "" {
		return ""
	}
	ts, err := dateparse.ParseAny(rec.DateCreated)
	if err != nil {
		a.logger.Warnw("unparsable recording timestamp, omitting dialog start",
			"sid", rec.SID, "date_created", rec.DateCreated)
		return ""
	}
	return ts.UTC().Format(time.RFC3339)
}

func (a *Assembler) durationSeconds(rec signalwire.Recording) int {
	if rec.Duration == "" {
		return 0
	}
	seconds, err := strconv.Atoi(rec.Duration)
	if err != nil {
		a.logger.Warnw("unparsable recording duration",
			"sid", rec.SID, "duration", rec.Duration)
		return 0
	}
	return seconds
}
