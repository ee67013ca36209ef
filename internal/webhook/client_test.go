// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidaai/vcon-bridge/internal/vcon"
	"github.com/rapidaai/vcon-bridge/pkg/commons"
)

func newTestLogger(t *testing.T) commons.Logger {
	t.Helper()
	logger, err := commons.NewApplicationLogger(
		commons.Name("test-webhook"),
		commons.Path(t.TempDir()),
		commons.Level("debug"),
	)
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	return logger
}

func testDocument() *vcon.Vcon {
	doc := vcon.New()
	doc.AddParty(vcon.Party{Tel: "+15550001111"})
	doc.AddParty(vcon.Party{Tel: "+15550002222"})
	doc.AddDialog(vcon.Dialog{Type: vcon.DialogTypeRecording, Parties: []int{0, 1}})
	return doc
}

func TestDeliverSuccess(t *testing.T) {
	var received map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	doc := testDocument()
	outcome := NewClient(newTestLogger(t), server.URL, 5*time.Second).Deliver(context.Background(), doc)

	assert.True(t, outcome.Delivered)
	assert.Equal(t, http.StatusOK, outcome.StatusCode)
	assert.NoError(t, outcome.Err)
	assert.Equal(t, doc.UUID, received["uuid"])
}

func TestDeliverServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	doc := testDocument()
	outcome := NewClient(newTestLogger(t), server.URL, 5*time.Second).Deliver(context.Background(), doc)

	assert.False(t, outcome.Delivered)
	assert.Equal(t, http.StatusInternalServerError, outcome.StatusCode)

	var deliveryErr *DeliveryError
	require.ErrorAs(t, outcome.Err, &deliveryErr)
	assert.Equal(t, doc.UUID, deliveryErr.UUID)
}

func TestDeliverTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	outcome := NewClient(newTestLogger(t), server.URL, time.Second).Deliver(context.Background(), testDocument())

	assert.False(t, outcome.Delivered)
	var deliveryErr *DeliveryError
	require.ErrorAs(t, outcome.Err, &deliveryErr)
	assert.NotNil(t, deliveryErr.Err)
}
