// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package llm is the boundary to the text-generation collaborator.
//
// Providers (Anthropic, Gemini) only move text. Client layers the collaborator
// contract on top: a bounded timeout per call, normalization of the response, and
// recognition of the reserved abort token. Callers never see the token itself;
// they get Reply.Refused instead.
package llm

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	errs "seedfast/querygate/internal/errors"

	"github.com/pterm/pterm"
)

// AbortToken is the literal a model emits to refuse a task.
const AbortToken = "abort"

// Field is one named piece of structured context passed along with a prompt.
type Field struct {
	Name  string
	Value string
}

// Prompt is a single request to the collaborator.
type Prompt struct {
	// Task names the request in logs, e.g. "classify".
	Task        string
	System      string
	Instruction string
	Context     []Field
}

// Render produces the user message: the instruction followed by one section per field.
func (p Prompt) Render() string {
	var b strings.Builder
	b.WriteString(p.Instruction)
	for _, f := range p.Context {
		b.WriteString("\n\n")
		b.WriteString(f.Name)
		b.WriteString(":\n")
		b.WriteString(f.Value)
	}
	return b.String()
}

// Completion is what a provider returned. Refused is set when the provider itself
// reports a refusal (stop reason, safety block).
type Completion struct {
	Text    string
	Refused bool
}

// Provider moves a prompt to a model and back.
type Provider interface {
	Name() string
	Generate(ctx context.Context, system, user string) (Completion, error)
}

// Reply is the normalized result of Client.Complete. When Refused is true, Text is empty.
type Reply struct {
	Text    string
	Refused bool
}

// Generator is what pipeline stages depend on.
type Generator interface {
	Complete(ctx context.Context, p Prompt) (Reply, error)
}

// Client implements Generator over a Provider.
type Client struct {
	provider Provider
	timeout  time.Duration
	logger   *pterm.Logger
}

// NewClient wraps provider. A zero timeout means 60 seconds.
func NewClient(provider Provider, timeout time.Duration, logger *pterm.Logger) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = pterm.DefaultLogger.WithLevel(pterm.LogLevelDisabled)
	}
	return &Client{provider: provider, timeout: timeout, logger: logger}
}

// Complete sends p and normalizes the answer. Errors are *errs.E of kind
// CollaboratorTimeout, CollaboratorUnavailable or Cancelled.
func (c *Client) Complete(ctx context.Context, p Prompt) (Reply, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	out, err := c.provider.Generate(callCtx, p.System, p.Render())
	c.logger.Debug("llm call",
		c.logger.Args("provider", c.provider.Name(), "task", p.Task, "elapsed", time.Since(start).Round(time.Millisecond), "failed", err != nil))
	if err != nil {
		return Reply{}, errs.FromCall(ctx, fmt.Sprintf("%s %s", c.provider.Name(), p.Task), err)
	}

	text := StripFencing(out.Text)
	if out.Refused || IsAbort(text) {
		return Reply{Refused: true}, nil
	}
	return Reply{Text: text}, nil
}

// IsAbort reports whether s is the abort token, ignoring case and surrounding quotes.
func IsAbort(s string) bool {
	return strings.EqualFold(strings.Trim(strings.TrimSpace(s), "'\"."), AbortToken)
}

var fenceRe = regexp.MustCompile("(?i)```(?:sql|postgresql|postgres|pgsql|promql|jql|jira|text)?[ \t]*")

// StripFencing removes Markdown code fences and surrounding backticks and whitespace.
func StripFencing(s string) string {
	s = fenceRe.ReplaceAllString(s, "")
	return strings.Trim(s, "` \t\r\n")
}
