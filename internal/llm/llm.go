// Package llm abstracts the inference collaborator. The pipeline only sees
// ordered turns going in and text (whole or fragmented) coming out.
package llm

import (
	"context"
	"errors"
)

// ErrUpstream marks any inference collaborator failure, including abnormal
// stream termination.
var ErrUpstream = errors.New("inference upstream failure")

// Turn is one message of the conversation context sent to the model.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client is the inference collaborator.
type Client interface {
	// Complete returns one full response for the conversation.
	Complete(ctx context.Context, turns []Turn) (string, error)

	// Stream starts a streaming completion. The returned stream yields text
	// fragments from Recv until io.EOF; any other error means the stream
	// terminated abnormally and its output must be discarded.
	Stream(ctx context.Context, turns []Turn) (CompletionStream, error)
}

// CompletionStream is a finite, non-restartable sequence of text fragments.
type CompletionStream interface {
	Recv() (string, error)
	Close() error
}
