// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package signalwire

import (
	"context"
	"fmt"
)

// callMetaResolver abstracts the two provider shapes: recordings that embed
// enough call detail natively and recordings that require a call lookup.
type callMetaResolver interface {
	resolve(ctx context.Context, rec Recording) (*CallMeta, error)
}

// nativeResolver passes through the call detail the recording already carries.
type nativeResolver struct{}

func (nativeResolver) resolve(_ context.Context, rec Recording) (*CallMeta, error) {
	if rec.FromFormatted == "" && rec.ToFormatted == "" {
		return nil, &FetchError{
			Op:  "resolve call meta",
			Err: fmt.Errorf("recording %s carries no call detail", rec.SID),
		}
	}
	return &CallMeta{
		SID:           rec.CallSID,
		FromFormatted: rec.FromFormatted,
		ToFormatted:   rec.ToFormatted,
	}, nil
}

// lookupResolver fetches the call resource referenced by the recording.
type lookupResolver struct {
	c *client
}

func (r lookupResolver) resolve(ctx context.Context, rec Recording) (*CallMeta, error) {
	var meta CallMeta
	resp, err := r.c.http.R().
		SetContext(ctx).
		SetResult(&meta).
		Get(fmt.Sprintf("%s/Accounts/%s/Calls/%s.json", laMLPathPrefix, r.c.projectID, rec.CallSID))
	if err != nil {
		return nil, &FetchError{Op: "resolve call meta", Err: err}
	}
	if !resp.IsSuccess() {
		return nil, &FetchError{Op: "resolve call meta", StatusCode: resp.StatusCode()}
	}
	return &meta, nil
}
