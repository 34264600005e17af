package stream

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "launch.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func drain(t *testing.T, r *Reader) []string {
	t.Helper()
	var lines []string
	if _, err := r.ReadAvailable(context.Background(), func(line string) {
		lines = append(lines, line)
	}); err != nil {
		t.Fatalf("ReadAvailable: %v", err)
	}
	return lines
}

func TestReadCompleteLines(t *testing.T) {
	path := writeLog(t, "alpha\nbeta\ngamma\n")
	r, err := Open(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	lines := drain(t, r)
	if len(lines) != 3 || lines[0] != "alpha" || lines[2] != "gamma" {
		t.Errorf("lines = %q", lines)
	}
	if r.Offset() != 17 {
		t.Errorf("offset = %d, want 17", r.Offset())
	}
}

func TestPartialLineHeldBack(t *testing.T) {
	path := writeLog(t, "complete\npart")
	r, err := Open(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	lines := drain(t, r)
	if len(lines) != 1 || lines[0] != "complete" {
		t.Fatalf("lines = %q, want only the terminated line", lines)
	}
	if r.Offset() != 9 {
		t.Errorf("offset = %d, want 9 (partial excluded)", r.Offset())
	}

	// Complete the line and append another; the next drain delivers both.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("ial\nnext\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	lines = drain(t, r)
	if len(lines) != 2 || lines[0] != "partial" || lines[1] != "next" {
		t.Errorf("second drain = %q", lines)
	}
}

func TestOpenMidLineRewinds(t *testing.T) {
	path := writeLog(t, "first line\nsecond line\n")
	// Offset 14 lands inside "second line".
	r, err := Open(path, 14)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if r.Offset() != 11 {
		t.Fatalf("offset = %d, want rewind to line start 11", r.Offset())
	}
	lines := drain(t, r)
	if len(lines) != 1 || lines[0] != "second line" {
		t.Errorf("lines = %q", lines)
	}
}

func TestOpenPastEOFStartsOver(t *testing.T) {
	path := writeLog(t, "only\n")
	r, err := Open(path, 9999)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if r.Offset() != 0 {
		t.Errorf("offset = %d, want 0 for offset past EOF", r.Offset())
	}
}

func TestCRLFAndInvalidUTF8(t *testing.T) {
	path := writeLog(t, "dos line\r\nbad \xff\xfe bytes\n")
	r, err := Open(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	lines := drain(t, r)
	if lines[0] != "dos line" {
		t.Errorf("CR not stripped: %q", lines[0])
	}
	if !strings.Contains(lines[1], "�") || strings.Contains(lines[1], "\xff") {
		t.Errorf("invalid bytes not replaced: %q", lines[1])
	}
}

func TestOversizedLineForceSplit(t *testing.T) {
	long := strings.Repeat("x", maxLineBytes+100)
	path := writeLog(t, long+"\ntail\n")
	r, err := Open(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	lines := drain(t, r)
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want forced split + remainder + tail", len(lines))
	}
	if len(lines[0]) != maxLineBytes {
		t.Errorf("first segment = %d bytes, want cap", len(lines[0]))
	}
	if lines[2] != "tail" {
		t.Errorf("last line = %q", lines[2])
	}
}

func TestRotationDetection(t *testing.T) {
	path := writeLog(t, "old one\nold two\n")
	r, err := Open(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	drain(t, r)

	// Replace the file with a shorter one, as logrotate does.
	if err := os.WriteFile(path, []byte("new\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	rotated, err := r.CheckRotation()
	if err != nil {
		t.Fatal(err)
	}
	if !rotated {
		t.Fatal("rotation not detected")
	}
	if r.Offset() != 0 {
		t.Errorf("offset after rotation = %d, want 0", r.Offset())
	}
	lines := drain(t, r)
	if len(lines) != 1 || lines[0] != "new" {
		t.Errorf("post-rotation lines = %q", lines)
	}
}

func TestNoRotationOnGrowth(t *testing.T) {
	path := writeLog(t, "a\n")
	r, err := Open(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	drain(t, r)

	f, _ := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	f.WriteString("b\n")
	f.Close()

	rotated, err := r.CheckRotation()
	if err != nil || rotated {
		t.Errorf("growth misread as rotation: rotated=%v err=%v", rotated, err)
	}
}

func TestContextCancellation(t *testing.T) {
	path := writeLog(t, "x\n")
	r, err := Open(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.ReadAvailable(ctx, func(string) {})
	if err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestTailOffset(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 100; i++ {
		fmt.Fprintf(&sb, "line %03d\n", i)
	}
	path := writeLog(t, sb.String())

	off, err := TailOffset(path, 5)
	if err != nil {
		t.Fatal(err)
	}
	r, err := Open(path, off)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	lines := drain(t, r)
	if len(lines) != 5 || lines[0] != "line 095" || lines[4] != "line 099" {
		t.Errorf("tail lines = %q", lines)
	}
}

func TestTailOffsetShortFile(t *testing.T) {
	path := writeLog(t, "a\nb\n")
	off, err := TailOffset(path, 50)
	if err != nil {
		t.Fatal(err)
	}
	if off != 0 {
		t.Errorf("offset = %d, want 0 when the file has fewer lines", off)
	}
}

func TestTailOffsetZero(t *testing.T) {
	path := writeLog(t, "a\nb\n")
	off, err := TailOffset(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	if off != 4 {
		t.Errorf("offset = %d, want EOF for n=0", off)
	}
}

func TestTailOffsetUnterminatedFinalLine(t *testing.T) {
	path := writeLog(t, "one\ntwo\nthree")
	off, err := TailOffset(path, 2)
	if err != nil {
		t.Fatal(err)
	}
	r, err := Open(path, off)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	lines := drain(t, r)
	// "three" has no newline yet so only "two" is deliverable.
	if len(lines) != 1 || lines[0] != "two" {
		t.Errorf("lines = %q", lines)
	}
}
