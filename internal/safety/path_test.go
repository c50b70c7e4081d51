package safety

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestCleanRelativePath(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "a/b/c.txt", want: "a/b/c.txt"},
		{in: "./a/./b/../c.txt", want: "a/c.txt"},
		{in: `dir\sub\file.dll`, want: "dir/sub/file.dll"},
		{in: "a//b/", want: "a/b"},
		{in: "", wantErr: true},
		{in: ".", wantErr: true},
		{in: "../escape.txt", wantErr: true},
		{in: "a/../../escape.txt", wantErr: true},
		{in: "/abs/path.txt", wantErr: true},
		{in: `C:\Windows\file.txt`, wantErr: true},
	}

	for _, tt := range tests {
		got, err := CleanRelativePath(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("CleanRelativePath(%q) = %q, expected error", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("CleanRelativePath(%q) returned error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("CleanRelativePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEnsureUnderRoot(t *testing.T) {
	root := t.TempDir()
	if _, err := EnsureUnderRoot(root, root+"/child/file.txt"); err != nil {
		t.Fatalf("EnsureUnderRoot failed for child path: %v", err)
	}
	if _, err := EnsureUnderRoot(root, root+"/../escape"); err == nil {
		t.Fatal("expected escape path to fail")
	}
}

func TestReadAllWithLimit(t *testing.T) {
	_, err := ReadAllWithLimit(strings.NewReader("abc"), 2)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}

	data, err := ReadAllWithLimit(io.NopCloser(strings.NewReader("abc")), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "abc" {
		t.Fatalf("unexpected data: %q", string(data))
	}

	if _, err := ReadAllWithLimit(strings.NewReader("abc"), 0); err == nil {
		t.Fatal("expected error for non-positive limit")
	}
}
