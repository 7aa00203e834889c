package encoding

import (
	"context"
	"os"
	"os/exec"
	"testing"
	"time"
)

func stubEncoder(t *testing.T, script string) *[]string {
	t.Helper()

	var captured []string
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		captured = append([]string(nil), args...)
		cmd := exec.CommandContext(ctx, "sh", "-c", script)
		cmd.Env = append(os.Environ(), "ENCODE_OUTPUT="+argValue(args, "--output"))
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
	return &captured
}

func argValue(args []string, flag string) string {
	for i, arg := range args {
		if arg == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func TestNewCLIWithBinary(t *testing.T) {
	cli := NewCLI(WithBinary("/opt/crabenc"))
	if cli.binary != "/opt/crabenc" {
		t.Fatalf("expected binary override to be applied, got %q", cli.binary)
	}
}

func TestEncodeRequiresData(t *testing.T) {
	cli := NewCLI()
	if _, err := cli.Encode(context.Background(), nil, Params{Format: "avif"}); err == nil {
		t.Fatal("expected error for empty source data")
	}
}

func TestEncodeRunsBinaryAndReadsOutput(t *testing.T) {
	captured := stubEncoder(t, `printf converted > "$ENCODE_OUTPUT"`)

	cli := NewCLI()
	encoded, err := cli.Encode(context.Background(), []byte("source"), Params{Format: "avif", Quality: 70, Speed: 8})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if string(encoded) != "converted" {
		t.Fatalf("unexpected encoder output %q", encoded)
	}

	args := *captured
	if argValue(args, "--format") != "avif" {
		t.Fatalf("format flag missing from %v", args)
	}
	if argValue(args, "--quality") != "70" {
		t.Fatalf("quality flag missing from %v", args)
	}
	if argValue(args, "--speed") != "8" {
		t.Fatalf("speed flag missing from %v", args)
	}
}

func TestEncodeOmitsSpeedForFormatsWithoutIt(t *testing.T) {
	captured := stubEncoder(t, `printf converted > "$ENCODE_OUTPUT"`)

	cli := NewCLI()
	if _, err := cli.Encode(context.Background(), []byte("source"), Params{Format: "webp", Speed: 5}); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if argValue(*captured, "--speed") != "" {
		t.Fatalf("speed flag present for webp: %v", *captured)
	}
}

func TestEncodeDefaultsQualityPerFormat(t *testing.T) {
	captured := stubEncoder(t, `printf converted > "$ENCODE_OUTPUT"`)

	cli := NewCLI()
	if _, err := cli.Encode(context.Background(), []byte("source"), Params{Format: "webp"}); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if argValue(*captured, "--quality") != "75" {
		t.Fatalf("expected webp default quality 75, got args %v", *captured)
	}
}

func TestEncodePassesFractionalQuality(t *testing.T) {
	captured := stubEncoder(t, `printf converted > "$ENCODE_OUTPUT"`)

	cli := NewCLI()
	if _, err := cli.Encode(context.Background(), []byte("source"), Params{Format: "avif", Quality: 62.5}); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if argValue(*captured, "--quality") != "62.5" {
		t.Fatalf("expected fractional quality to pass through, got args %v", *captured)
	}
}

func TestEncodeFailsOnEmptyOutput(t *testing.T) {
	stubEncoder(t, `: > "$ENCODE_OUTPUT"`)

	cli := NewCLI()
	if _, err := cli.Encode(context.Background(), []byte("source"), Params{Format: "avif"}); err == nil {
		t.Fatal("expected error for empty encoder output")
	}
}

func TestEncodeSurfacesBinaryFailure(t *testing.T) {
	stubEncoder(t, `echo "encode blew up" >&2; exit 3`)

	cli := NewCLI()
	if _, err := cli.Encode(context.Background(), []byte("source"), Params{Format: "avif"}); err == nil {
		t.Fatal("expected error when encoder exits nonzero")
	}
}

func TestEncodeHonorsTimeout(t *testing.T) {
	stubEncoder(t, `sleep 5; printf converted > "$ENCODE_OUTPUT"`)

	cli := NewCLI(WithTimeout(50 * time.Millisecond))
	start := time.Now()
	if _, err := cli.Encode(context.Background(), []byte("source"), Params{Format: "avif"}); err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("timeout not enforced, took %v", elapsed)
	}
}
