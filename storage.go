package meme

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/k1LoW/errors"
	"github.com/k1LoW/exec"
	"github.com/k1LoW/meme/template"
	"github.com/lestrrat-go/backoff/v2"
)

// Sink is where exported images are delivered.
type Sink interface {
	Save(ctx context.Context, name, mimeType string, data []byte) (location string, err error)
}

// DirSink writes exports into a directory.
type DirSink struct {
	dir string
}

// NewDirSink creates a DirSink. The directory is created on first save.
func NewDirSink(dir string) *DirSink {
	if dir == "" {
		dir = "."
	}
	return &DirSink{dir: dir}
}

// Save writes data to dir/name. The file is written under a temporary name and renamed,
// so readers never observe a partial image.
func (s *DirSink) Save(ctx context.Context, name, mimeType string, data []byte) (_ string, err error) {
	defer func() {
		err = errors.WithStack(err)
	}()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", s.dir, err)
	}
	dst := filepath.Join(s.dir, filepath.Base(name))
	tmp := filepath.Join(s.dir, fmt.Sprintf(".meme-%s.tmp", uuid.New().String()))
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		if rerr := os.Remove(tmp); rerr != nil {
			err = errors.Join(err, rerr)
		}
		return "", fmt.Errorf("failed to save %s: %w", dst, err)
	}
	abs, err := filepath.Abs(dst)
	if err != nil {
		return dst, nil
	}
	return abs, nil
}

// CommandSink pipes exports to an external command.
type CommandSink struct {
	cmd      string
	retries  int
	interval time.Duration
}

// NewCommandSink creates a CommandSink running cmd with the user's shell.
// cmd may use {{name}}, {{mime}} and {{env.XXX}}. A failed command is retried
// up to retries times with exponential backoff.
func NewCommandSink(cmd string, retries int) *CommandSink {
	return &CommandSink{
		cmd:      cmd,
		retries:  retries,
		interval: 500 * time.Millisecond,
	}
}

// Save runs the command with the image on stdin and MEME_EXPORT_NAME / MEME_EXPORT_MIME set.
// The first line of the command's stdout is used as the location; when the command prints
// nothing the name is returned.
func (s *CommandSink) Save(ctx context.Context, name, mimeType string, data []byte) (_ string, err error) {
	defer func() {
		err = errors.WithStack(err)
	}()
	if s.retries <= 0 {
		return s.run(ctx, name, mimeType, data)
	}
	policy := backoff.Exponential(
		backoff.WithMinInterval(s.interval),
		backoff.WithMaxInterval(10*s.interval),
		backoff.WithJitterFactor(0.05),
		backoff.WithMaxRetries(s.retries),
	)
	b := policy.Start(ctx)
	var lastErr error
	for backoff.Continue(b) {
		location, err := s.run(ctx, name, mimeType, data)
		if err == nil {
			return location, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = ctx.Err()
	}
	return "", fmt.Errorf("export command failed after retries: %w", lastErr)
}

func (s *CommandSink) run(ctx context.Context, name, mimeType string, data []byte) (string, error) {
	const (
		envExportName = "MEME_EXPORT_NAME"
		envExportMIME = "MEME_EXPORT_MIME"
	)
	env := template.EnvironToMap()
	env[envExportName] = name
	env[envExportMIME] = mimeType
	store := map[string]any{
		"name": name,
		"mime": mimeType,
		"env":  env,
	}
	expandedCmd, err := template.Expand(s.cmd, store)
	if err != nil {
		return "", fmt.Errorf("failed to expand export command template: %w", err)
	}
	c, args, err := buildCommand(expandedCmd)
	if err != nil {
		return "", fmt.Errorf("failed to build export command: %w", err)
	}

	cmd := exec.CommandContext(ctx, c, args...)
	cmd.Stdin = bytes.NewReader(data)
	cmd.Env = os.Environ()
	cmd.Env = append(cmd.Env, envExportName+"="+name, envExportMIME+"="+mimeType)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("failed to run export command: %w\nstderr: %s", err, stderr.String())
	}

	scanner := bufio.NewScanner(&stdout)
	if scanner.Scan() {
		if location := strings.TrimSpace(scanner.Text()); location != "" {
			return location, nil
		}
	}
	return name, nil
}

// buildCommand parses a command string and returns the command and arguments.
func buildCommand(cmdStr string) (string, []string, error) {
	shell, err := DetectShell()
	if err != nil {
		return "", nil, err
	}
	return shell, []string{"-c", cmdStr}, nil
}

// DetectShell returns the shell export commands run with.
func DetectShell() (string, error) {
	shells := []string{
		os.Getenv("SHELL"),
		"/bin/bash",
		"/bin/sh",
	}
	for _, shell := range shells {
		if shell == "" {
			continue
		}
		if _, err := os.Stat(shell); err == nil {
			return shell, nil
		}
	}
	return "", fmt.Errorf("failed to detect shell")
}
