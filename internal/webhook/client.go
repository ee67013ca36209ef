// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/rapidaai/vcon-bridge/internal/vcon"
	"github.com/rapidaai/vcon-bridge/pkg/commons"
)

// DeliveryError classifies a failed webhook POST.
type DeliveryError struct {
	UUID       string
	StatusCode int
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("deliver %s: %v", e.UUID, e.Err)
	}
	return fmt.Sprintf("deliver %s: unexpected status %d", e.UUID, e.StatusCode)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Outcome is the ephemeral result of one webhook POST. It is logged by the
// caller and never persisted.
type Outcome struct {
	Delivered  bool
	StatusCode int
	Err        error
}

// Client posts conversation records to the configured webhook. Retries, if
// any, are the caller's decision; this client performs exactly one attempt.
type Client interface {
	Deliver(ctx context.Context, doc *vcon.Vcon) Outcome
}

type client struct {
	logger commons.Logger
	http   *resty.Client
	url    string
}

// NewClient builds a webhook client with a bounded per-request timeout.
func NewClient(logger commons.Logger, url string, timeout time.Duration) Client {
	return &client{
		logger: logger,
		http:   resty.New().SetTimeout(timeout),
		url:    url,
	}
}

func (c *client) Deliver(ctx context.Context, doc *vcon.Vcon) Outcome {
	body, err := doc.MarshalBody()
	if err != nil {
		return Outcome{Err: &DeliveryError{UUID: doc.UUID, Err: err}}
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(c.url)
	if err != nil {
		return Outcome{Err: &DeliveryError{UUID: doc.UUID, Err: err}}
	}
	if !resp.IsSuccess() {
		return Outcome{
			StatusCode: resp.StatusCode(),
			Err:        &DeliveryError{UUID: doc.UUID, StatusCode: resp.StatusCode()},
		}
	}
	return Outcome{Delivered: true, StatusCode: resp.StatusCode()}
}
