package tts

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/mattn/go-shellwords"
)

// langPlaceholder is replaced by the requested language in command arguments
const langPlaceholder = "{lang}"

// ExecSynth runs a local command per unit, e.g. "espeak-ng --stdout -v {lang}".
// The text is written to stdin and the encoded audio is read from stdout.
type ExecSynth struct {
	cmd []string
}

// NewExecSynth parses the command line
func NewExecSynth(command string) (*ExecSynth, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse tts command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("tts command empty")
	}
	return &ExecSynth{cmd: args}, nil
}

// Synthesize runs the command once for text
func (e *ExecSynth) Synthesize(ctx context.Context, text, language string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text is empty", ErrRejected)
	}

	args := make([]string, 0, len(e.cmd)-1)
	for _, arg := range e.cmd[1:] {
		args = append(args, strings.ReplaceAll(arg, langPlaceholder, language))
	}

	cmd := exec.CommandContext(ctx, e.cmd[0], args...)
	cmd.Stdin = strings.NewReader(text)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("tts command failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("tts command produced no audio")
	}
	return stdout.Bytes(), nil
}

// Check verifies the command can be found
func (e *ExecSynth) Check(ctx context.Context) error {
	if _, err := exec.LookPath(e.cmd[0]); err != nil {
		return fmt.Errorf("tts command not found: %w", err)
	}
	return nil
}
