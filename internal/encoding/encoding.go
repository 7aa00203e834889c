// Package encoding converts image bytes to the migration target format by
// shelling out to an external encoder binary.
package encoding

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"crabmigrate/internal/config"
	"crabmigrate/internal/mediatype"
)

var commandContext = exec.CommandContext

// Params selects the target format and its tuning knobs.
type Params struct {
	Format  string
	Quality float64
	Speed   int
}

// Client defines encoder behaviour.
type Client interface {
	Encode(ctx context.Context, data []byte, params Params) ([]byte, error)
}

// Option configures the CLI client.
type Option func(*CLI)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// WithTimeout bounds a single encode invocation.
func WithTimeout(timeout time.Duration) Option {
	return func(c *CLI) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// CLI wraps the command-line encoder.
type CLI struct {
	binary  string
	timeout time.Duration
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "crabenc"}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// NewFromConfig constructs a CLI client from daemon configuration.
func NewFromConfig(cfg *config.Config) *CLI {
	return NewCLI(
		WithBinary(cfg.Encoder.Binary),
		WithTimeout(time.Duration(cfg.Encoder.TimeoutSeconds)*time.Second),
	)
}

// Encode writes the source bytes to a scratch file, runs the encoder, and
// reads the converted output back. An empty result is an error: the caller
// must never upload a zero-byte asset.
func (c *CLI) Encode(ctx context.Context, data []byte, params Params) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("source data is empty")
	}
	format := mediatype.Format(params.Format)
	quality := params.Quality
	if quality <= 0 {
		quality = format.DefaultQuality
	}

	scratch, err := os.MkdirTemp("", "crabmigrate-encode-")
	if err != nil {
		return nil, fmt.Errorf("scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	inputPath := filepath.Join(scratch, "source")
	outputPath := filepath.Join(scratch, "encoded."+format.Extension)
	if err := os.WriteFile(inputPath, data, 0o600); err != nil {
		return nil, fmt.Errorf("write scratch input: %w", err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := []string{
		"encode",
		"--input", inputPath,
		"--output", outputPath,
		"--format", format.Name,
		"--quality", strconv.FormatFloat(quality, 'f', -1, 64),
	}
	if format.SupportsSpeed {
		args = append(args, "--speed", strconv.Itoa(params.Speed))
	}

	cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
	// A killed encoder can leave children holding the output pipe;
	// WaitDelay forces CombinedOutput to return after cancellation.
	cmd.WaitDelay = time.Second
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("encoder failed: %w: %s", err, firstLine(output))
	}

	encoded, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, fmt.Errorf("read encoder output: %w", err)
	}
	if len(encoded) == 0 {
		return nil, errors.New("encoder produced empty output")
	}
	return encoded, nil
}

func firstLine(output []byte) string {
	for i, b := range output {
		if b == '\n' {
			return string(output[:i])
		}
	}
	return string(output)
}

var _ Client = (*CLI)(nil)
