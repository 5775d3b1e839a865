package placeholder

import (
	"bytes"
	"image/jpeg"
	"reflect"
	"strings"
	"testing"
)

func TestRenderer_Render(t *testing.T) {
	data, err := Renderer{}.Render("Overtime dinner", "Rp 75,000")
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a JPEG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != width || b.Dy() != height {
		t.Errorf("bounds = %v, want %dx%d", b, width, height)
	}


	other, err := Renderer{}.Render("Parking", "Rp 5,000")
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if bytes.Equal(data, other) {
		t.Error("different text produced identical images")
	}
}

func TestRenderer_LongNote(t *testing.T) {
	if _, err := (Renderer{Title: "Tanpa bukti"}).Render(strings.Repeat("very long note ", 40), "Rp 1"); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
}

func TestWrap(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want []string
	}{
		{"", 10, nil},
		{"short", 10, []string{"short"}},
		{"one two three", 7, []string{"one two", "three"}},
		{"abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
		{"a   b", 10, []string{"a b"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := wrap(tt.in, tt.n); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("wrap(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
			}
		})
	}
}
