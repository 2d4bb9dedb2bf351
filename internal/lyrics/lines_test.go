package lyrics

import (
	"reflect"
	"testing"
)

func TestSplitLines(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", []string{}},
		{"blank only", "\n  \n\t\n", []string{}},
		{"strips and drops", "  I love you baby \n\n Hold me tonight\n", []string{"I love you baby", "Hold me tonight"}},
		{"crlf", "one\r\ntwo\r\n", []string{"one", "two"}},
		{"duplicates kept", "la la\nla la", []string{"la la", "la la"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitLines(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitLines(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
