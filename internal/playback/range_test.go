package playback

import (
	"errors"
	"testing"
)

func TestParseRange(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		size    int64
		want    *Range
		wantErr error
	}{
		{"no header", "", 1000, nil, nil},
		{"whole file", "bytes=0-999", 1000, &Range{0, 999}, nil},
		{"open ended", "bytes=500-", 1000, &Range{500, 999}, nil},
		{"suffix", "bytes=-500", 1000, &Range{500, 999}, nil},
		{"suffix past start", "bytes=-2000", 500, &Range{0, 499}, nil},
		{"first byte", "bytes=0-0", 1000, &Range{0, 0}, nil},
		{"last byte", "bytes=999-", 1000, &Range{999, 999}, nil},
		{"end clamped", "bytes=100-5000", 1000, &Range{100, 999}, nil},
		{"first of many", "bytes=0-99, 200-299", 1000, &Range{0, 99}, nil},

		{"start at size", "bytes=1000-", 1000, nil, ErrUnsatisfiable},
		{"start past size", "bytes=1500-2000", 1000, nil, ErrUnsatisfiable},
		{"reversed", "bytes=500-100", 1000, nil, ErrUnsatisfiable},
		{"empty file", "bytes=0-", 0, nil, ErrUnsatisfiable},
		{"empty file suffix", "bytes=-10", 0, nil, ErrUnsatisfiable},
		{"not bytes", "items=0-1", 1000, nil, ErrInvalidRange},
		{"garbage", "bytes", 1000, nil, ErrInvalidRange},
		{"no dash", "bytes=100", 1000, nil, ErrInvalidRange},
		{"bad start", "bytes=x-100", 1000, nil, ErrInvalidRange},
		{"bad end", "bytes=0-y", 1000, nil, ErrInvalidRange},
		{"zero suffix", "bytes=-0", 1000, nil, ErrInvalidRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRange(tt.header, tt.size)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseRange() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRange() unexpected error: %v", err)
			}
			if tt.want == nil {
				if got != nil {
					t.Errorf("ParseRange() = %+v, want nil", got)
				}
				return
			}
			if got == nil || *got != *tt.want {
				t.Errorf("ParseRange() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRange_Headers(t *testing.T) {
	r := Range{Start: 500, End: 999}
	if got := r.ContentLength(); got != 500 {
		t.Errorf("ContentLength() = %d, want 500", got)
	}
	if got := r.ContentRange(1000); got != "bytes 500-999/1000" {
		t.Errorf("ContentRange() = %s", got)
	}
	if got := (Range{}).ContentLength(); got != 1 {
		t.Errorf("zero range ContentLength() = %d, want 1", got)
	}
}
