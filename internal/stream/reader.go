// Package stream reads log files incrementally, surviving rotation and
// mid-line writes. Reads are offset-driven so a reader can be recreated at
// a checkpointed position.
package stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	chunkSize = 64 * 1024
	// maxLineBytes bounds the partial-line holdback so a log with no
	// newlines cannot grow the buffer without limit. Longer runs are
	// force-split at the cap.
	maxLineBytes = 1 << 20
	// rewindScan bounds the backward search for a line start when opening
	// at an arbitrary checkpointed offset.
	rewindScan = 1 << 20
	tailBlock  = 8 * 1024
)

// Reader delivers complete lines from a log file starting at a byte offset.
// A trailing partial line is held back until its newline arrives.
type Reader struct {
	path    string
	file    *os.File
	offset  int64 // position of the next unread committed byte
	partial []byte
}

// Open positions a reader at offset. If offset lands mid-line (the file was
// appended to mid-write when the checkpoint was taken, or truncated oddly),
// the reader rewinds to the nearest preceding line start so no line is
// delivered half-cut.
func Open(path string, offset int64) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat log: %w", err)
	}
	if offset < 0 {
		offset = 0
	}
	if offset > info.Size() {
		offset = 0
	}
	if offset > 0 {
		offset, err = rewindToLineStart(f, offset)
		if err != nil {
			f.Close()
			return nil, err
		}
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("seek log: %w", err)
	}
	return &Reader{path: path, file: f, offset: offset}, nil
}

// rewindToLineStart finds the first byte after the last newline at or
// before offset-1, scanning back at most rewindScan bytes. If no newline
// turns up within the scan, the offset stands: a line that long exceeds
// the line cap anyway.
func rewindToLineStart(f *os.File, offset int64) (int64, error) {
	scanFrom := offset - rewindScan
	if scanFrom < 0 {
		scanFrom = 0
	}
	buf := make([]byte, offset-scanFrom)
	if _, err := f.ReadAt(buf, scanFrom); err != nil && err != io.EOF {
		return 0, fmt.Errorf("rewind scan: %w", err)
	}
	if i := bytes.LastIndexByte(buf, '\n'); i >= 0 {
		return scanFrom + int64(i) + 1, nil
	}
	if scanFrom == 0 {
		return 0, nil
	}
	return offset, nil
}

// Offset returns the byte position up to which complete lines have been
// delivered. Held-back partial bytes are not counted, so a checkpoint at
// this offset replays the unfinished line on resume.
func (r *Reader) Offset() int64 { return r.offset }

// ReadAvailable drains everything currently in the file, invoking fn once
// per complete line with trailing newline stripped and invalid UTF-8
// replaced. It returns the number of lines delivered. Context cancellation
// stops the drain between chunks and returns ctx.Err.
func (r *Reader) ReadAvailable(ctx context.Context, fn func(line string)) (int, error) {
	buf := make([]byte, chunkSize)
	lines := 0
	for {
		if err := ctx.Err(); err != nil {
			return lines, err
		}
		n, err := r.file.Read(buf)
		if n > 0 {
			r.partial = append(r.partial, buf[:n]...)
			lines += r.flushLines(fn)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return lines, nil
			}
			return lines, fmt.Errorf("read log: %w", err)
		}
	}
}

func (r *Reader) flushLines(fn func(line string)) int {
	lines := 0
	for {
		i := bytes.IndexByte(r.partial, '\n')
		if i < 0 {
			if len(r.partial) >= maxLineBytes {
				// Force-split an unterminated run at the cap.
				fn(sanitize(r.partial[:maxLineBytes]))
				r.offset += maxLineBytes
				r.partial = append(r.partial[:0], r.partial[maxLineBytes:]...)
				lines++
				continue
			}
			return lines
		}
		line := r.partial[:i]
		if len(line) > 0 && line[len(line)-1] == '\r' {
			line = line[:len(line)-1]
		}
		fn(sanitize(line))
		r.offset += int64(i) + 1
		r.partial = append(r.partial[:0], r.partial[i+1:]...)
		lines++
	}
}

func sanitize(b []byte) string {
	return strings.ToValidUTF8(string(b), "�")
}

// CheckRotation stats the path by name and reports whether the file was
// rotated out from under the reader. A size smaller than the read offset
// means a new file took the name; the reader reopens it from byte 0 and
// drops any held-back partial. Stat failures are treated as "not rotated":
// the writer may be mid-rename.
func (r *Reader) CheckRotation() (bool, error) {
	info, err := os.Stat(r.path)
	if err != nil {
		return false, nil
	}
	if info.Size() >= r.offset {
		return false, nil
	}
	f, err := os.Open(r.path)
	if err != nil {
		return false, fmt.Errorf("reopen rotated log: %w", err)
	}
	r.file.Close()
	r.file = f
	r.offset = 0
	r.partial = r.partial[:0]
	return true, nil
}

// SeekEnd skips to the current end of file, discarding unread content.
func (r *Reader) SeekEnd() error {
	end, err := r.file.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("seek end: %w", err)
	}
	r.offset = end
	r.partial = r.partial[:0]
	return nil
}

func (r *Reader) Close() error { return r.file.Close() }

// TailOffset returns the byte offset of the line-start such that reading
// from it yields at most n final lines of the file at path. It scans
// backward in fixed blocks counting newlines, so only the tail of a large
// file is touched.
func TailOffset(path string, n int) (int64, error) {
	if n <= 0 {
		f, err := os.Stat(path)
		if err != nil {
			return 0, fmt.Errorf("stat log: %w", err)
		}
		return f.Size(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open log: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat log: %w", err)
	}
	size := info.Size()
	if size == 0 {
		return 0, nil
	}

	// A trailing newline terminates the last line rather than starting a
	// new one, so it does not count toward n.
	needed := n
	pos := size
	last := true
	buf := make([]byte, tailBlock)
	for pos > 0 {
		blockStart := pos - tailBlock
		if blockStart < 0 {
			blockStart = 0
		}
		block := buf[:pos-blockStart]
		if _, err := f.ReadAt(block, blockStart); err != nil && err != io.EOF {
			return 0, fmt.Errorf("tail scan: %w", err)
		}
		for i := len(block) - 1; i >= 0; i-- {
			if block[i] != '\n' {
				continue
			}
			if last && blockStart+int64(i) == size-1 {
				last = false
				continue
			}
			needed--
			if needed == 0 {
				return blockStart + int64(i) + 1, nil
			}
		}
		pos = blockStart
	}
	return 0, nil
}
