package tarefo

import (
	"context"
	"fmt"
	"time"

	"github.com/mvieira/tarefo/pkg/api"
)

// Client performs one-shot workflow operations against an engine adapter:
// starting, cancelling and messaging process instances, and deploying
// process definitions.
//
// All methods are thin wrappers over the adapter; they validate obvious
// caller mistakes up front and otherwise pass the adapter's typed errors
// through unchanged, so callers can distinguish not-found, invalid-input and
// infrastructure conditions with errors.Is.
type Client struct {
	adapter EngineAdapter
}

// NewClient creates a Client on the given adapter.
func NewClient(adapter EngineAdapter) *Client {
	return &Client{adapter: adapter}
}

// Adapter returns the underlying engine adapter.
func (c *Client) Adapter() EngineAdapter {
	return c.adapter
}

// RunProcess starts an instance of the process with the given id and returns
// the engine-assigned instance key. Use LatestVersion for the newest
// deployed version.
func (c *Client) RunProcess(ctx context.Context, processID string, version int32, variables Variables) (int64, error) {
	if processID == "" {
		return 0, fmt.Errorf("%w: process id must not be empty", api.ErrInvalidInput)
	}
	return c.adapter.CreateInstance(ctx, processID, version, variables)
}

// RunProcessWithResult starts an instance and waits for it to complete,
// returning its final variables. A zero timeout uses the engine default;
// a non-nil fetchVariables limits which variables are returned.
func (c *Client) RunProcessWithResult(ctx context.Context, processID string, version int32, variables Variables, timeout time.Duration, fetchVariables []string) (Variables, error) {
	if processID == "" {
		return nil, fmt.Errorf("%w: process id must not be empty", api.ErrInvalidInput)
	}
	return c.adapter.CreateInstanceWithResult(ctx, processID, version, variables, timeout, fetchVariables)
}

// CancelProcessInstance cancels a running instance.
func (c *Client) CancelProcessInstance(ctx context.Context, instanceKey int64) error {
	return c.adapter.CancelInstance(ctx, instanceKey)
}

// DeployProcess deploys one or more process definitions; each becomes the
// latest version of its process id.
func (c *Client) DeployProcess(ctx context.Context, definitions ...ProcessDefinition) error {
	return c.adapter.DeployProcess(ctx, definitions...)
}

// PublishMessage publishes a named message with the given correlation key.
// A non-empty messageID deduplicates: a second publish with the same id
// while the first message is alive fails with ErrMessageAlreadyExists.
// A zero ttl uses the engine default.
func (c *Client) PublishMessage(ctx context.Context, name, correlationKey string, ttl time.Duration, messageID string, variables Variables) error {
	if name == "" {
		return fmt.Errorf("%w: message name must not be empty", api.ErrInvalidInput)
	}
	return c.adapter.PublishMessage(ctx, Message{
		Name:           name,
		CorrelationKey: correlationKey,
		TimeToLive:     ttl,
		MessageID:      messageID,
		Variables:      variables,
	})
}
