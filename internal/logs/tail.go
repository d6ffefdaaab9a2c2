package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

const (
	pollInterval = 250 * time.Millisecond
	maxLineBytes = 1024 * 1024
)

// Options control a single Tail call.
type Options struct {
	// Offset is a byte offset to resume from. Negative means "last Limit lines".
	Offset int64
	Limit  int
	Follow bool
	Wait   time.Duration
	Match  string
}

// Chunk is one batch of lines plus the offset to resume from.
type Chunk struct {
	Lines  []string
	Offset int64
}

// Tail reads lines from path according to opts. A missing file yields an
// empty chunk at offset zero so callers can start following before the daemon
// writes anything.
func Tail(ctx context.Context, path string, opts Options) (Chunk, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return Chunk{}, nil
	}
	if err != nil {
		return Chunk{}, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return Chunk{}, fmt.Errorf("stat log: %w", err)
	}
	if info.IsDir() {
		return Chunk{}, fmt.Errorf("log path %q is a directory", path)
	}

	var chunk Chunk
	if opts.Offset < 0 {
		chunk, err = lastLines(file, opts.Limit, opts.Match)
	} else {
		offset := opts.Offset
		if offset > info.Size() {
			// The file was truncated or replaced; start over.
			offset = 0
		}
		chunk, err = linesFrom(file, offset, opts.Match)
	}
	if err != nil {
		return chunk, err
	}
	if len(chunk.Lines) > 0 || !opts.Follow || opts.Wait <= 0 {
		return chunk, nil
	}
	return poll(ctx, file, chunk.Offset, opts)
}

func lastLines(file *os.File, limit int, match string) (Chunk, error) {
	if limit <= 0 {
		end, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return Chunk{}, fmt.Errorf("seek log: %w", err)
		}
		return Chunk{Offset: end}, nil
	}
	all, err := linesFrom(file, 0, match)
	if err != nil {
		return Chunk{}, err
	}
	if len(all.Lines) > limit {
		all.Lines = append([]string(nil), all.Lines[len(all.Lines)-limit:]...)
	}
	return all, nil
}

// linesFrom reads complete lines starting at offset. A trailing partial line
// is left for the next call.
func linesFrom(file *os.File, offset int64, match string) (Chunk, error) {
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return Chunk{}, fmt.Errorf("seek log: %w", err)
	}
	reader := bufio.NewReaderSize(file, 64*1024)
	chunk := Chunk{Offset: offset}
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return chunk, nil
			}
			return chunk, fmt.Errorf("read log: %w", err)
		}
		chunk.Offset += int64(len(line))
		if len(line) > maxLineBytes {
			continue
		}
		text := strings.TrimRight(line, "\r\n")
		if match != "" && !strings.Contains(text, match) {
			continue
		}
		chunk.Lines = append(chunk.Lines, text)
	}
}

func poll(ctx context.Context, file *os.File, offset int64, opts Options) (Chunk, error) {
	deadline := time.NewTimer(opts.Wait)
	defer deadline.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	current := Chunk{Offset: offset}
	for {
		select {
		case <-ctx.Done():
			return current, ctx.Err()
		case <-deadline.C:
			return current, nil
		case <-ticker.C:
		}
		next, err := linesFrom(file, current.Offset, opts.Match)
		if err != nil {
			return current, err
		}
		current.Offset = next.Offset
		if len(next.Lines) > 0 {
			current.Lines = next.Lines
			return current, nil
		}
	}
}
