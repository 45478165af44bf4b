package market

import (
	"errors"
	"fmt"
)

// ErrEmptyInput is returned by Analyze when there is nothing to aggregate.
var ErrEmptyInput = errors.New("analyze: empty record set")

// FetchError wraps any failure to obtain the market listing: transport,
// non-2xx status, undecodable payload or cancellation.
type FetchError struct {
	Source string
	Status int // HTTP status, 0 when no response was received
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.Source, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// MalformedRecordError reports a required field missing from one raw asset.
type MalformedRecordError struct {
	Index   int
	AssetID string
	Field   string
}

func (e *MalformedRecordError) Error() string {
	if e.AssetID != "" {
		return fmt.Sprintf("record %d (%s): missing required field %q", e.Index, e.AssetID, e.Field)
	}
	return fmt.Sprintf("record %d: missing required field %q", e.Index, e.Field)
}

// RenderError wraps a renderer failure. The previous artifact is left in
// place whenever the renderer writes through a temp file.
type RenderError struct {
	Renderer string
	Err      error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.Renderer, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }
