package rembes

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestCodec_RoundTrip(t *testing.T) {
	loc := time.FixedZone("WIB", 7*60*60)
	c := NewCodec(loc)
	createdAt := time.Date(2024, 1, 10, 14, 5, 9, 0, loc)

	key, err := c.Encode(createdAt, "Lunch at café", 50000)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if key != "20240110_140509_Lunch_at_caf__50000.jpg" {
		t.Errorf("Encode() = %q", key)
	}

	rec, err := c.Decode(key)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if rec.Amount != 50000 {
		t.Errorf("Amount = %d, want 50000", rec.Amount)
	}
	if !rec.CreatedAt.Equal(createdAt) {
		t.Errorf("CreatedAt = %v, want %v", rec.CreatedAt, createdAt)
	}
	if rec.Note != "Lunch_at_caf_" {
		t.Errorf("Note = %q, want %q", rec.Note, "Lunch_at_caf_")
	}
	if got := rec.DisplayNote(); got != "Lunch at caf " {
		t.Errorf("DisplayNote() = %q, want %q", got, "Lunch at caf ")
	}
	if rec.Key != key {
		t.Errorf("Key = %q, want %q", rec.Key, key)
	}
}

func TestCodec_EncodeConvertsToCodecLocation(t *testing.T) {
	loc := time.FixedZone("WIB", 7*60*60)
	c := NewCodec(loc)

	key, err := c.Encode(time.Date(2024, 1, 10, 20, 0, 0, 0, time.UTC), "x", 1)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if !strings.HasPrefix(key, "20240111_030000_") {
		t.Errorf("Encode() = %q, want timestamp in WIB", key)
	}
}

func TestCodec_Encode(t *testing.T) {
	c := NewCodec(time.UTC)
	ts := time.Date(2024, 2, 1, 8, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		note    string
		amount  int64
		want    string
		wantErr bool
	}{
		{name: "plain", note: "Airport trip", amount: 45000, want: "20240201_083000_Airport_trip_45000.jpg"},
		{name: "keeps dot hyphen underscore", note: "5.5km-ride_home", amount: 1, want: "20240201_083000_5.5km-ride_home_1.jpg"},
		{name: "slashes cannot break the path", note: "a/b\\c", amount: 0, want: "20240201_083000_a_b_c_0.jpg"},
		{name: "empty note", note: "", amount: 7, want: "20240201_083000__7.jpg"},
		{name: "negative amount", note: "x", amount: -1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Encode(ts, tt.note, tt.amount)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Encode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Errorf("error type = %T, want *ValidationError", err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("Encode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCodec_Decode(t *testing.T) {
	c := NewCodec(time.UTC)

	tests := []struct {
		name     string
		key      string
		wantNote string
		wantAmt  int64
		wantErr  bool
	}{
		{name: "multi word note", key: "20240201_083000_Grab_to_office_32000.jpg", wantNote: "Grab_to_office", wantAmt: 32000},
		{name: "note containing dot", key: "20240201_083000_5.5km_100.jpg", wantNote: "5.5km", wantAmt: 100},
		{name: "empty note", key: "20240201_083000__7.jpg", wantNote: "", wantAmt: 7},
		{name: "other extension", key: "20240201_083000_fuel_90000.png", wantNote: "fuel", wantAmt: 90000},
		{name: "too few segments", key: "20240201_083000_45000.jpg", wantErr: true},
		{name: "only timestamp", key: "20240201_083000.jpg", wantErr: true},
		{name: "garbage", key: "photo.jpg", wantErr: true},
		{name: "bad timestamp", key: "2024020X_083000_fuel_1.jpg", wantErr: true},
		{name: "non numeric amount", key: "20240201_083000_fuel_abc.jpg", wantErr: true},
		{name: "negative amount", key: "20240201_083000_fuel_-5.jpg", wantErr: true},
		{name: "formatted amount", key: "20240201_083000_fuel_1,000.jpg", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := c.Decode(tt.key)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Decode(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
			if tt.wantErr {
				var derr *DecodeError
				if !errors.As(err, &derr) {
					t.Errorf("error type = %T, want *DecodeError", err)
				}
				return
			}
			if rec.Note != tt.wantNote {
				t.Errorf("Note = %q, want %q", rec.Note, tt.wantNote)
			}
			if rec.Amount != tt.wantAmt {
				t.Errorf("Amount = %d, want %d", rec.Amount, tt.wantAmt)
			}
		})
	}
}

func TestRecord_DisplayNote(t *testing.T) {
	tests := []struct {
		note string
		want string
	}{
		{note: "airport_trip", want: "Airport trip"},
		{note: "GRAB_home", want: "GRAB home"},
		{note: "", want: ""},
		{note: "_x", want: " x"},
	}
	for _, tt := range tests {
		if got := (Record{Note: tt.note}).DisplayNote(); got != tt.want {
			t.Errorf("DisplayNote(%q) = %q, want %q", tt.note, got, tt.want)
		}
	}
}

func TestObjectPath(t *testing.T) {
	p := Period{Year: 2024, Month: time.March}
	if got := ObjectPath("grab", p, "k.jpg"); got != "grab/2024-03/k.jpg" {
		t.Errorf("ObjectPath() = %q", got)
	}
	if got := ScopePrefix("grab", p); got != "grab/2024-03/" {
		t.Errorf("ScopePrefix() = %q", got)
	}
}

func TestParseAmount(t *testing.T) {
	valid := map[string]int64{"0": 0, "45000": 45000, "007": 7}
	for in, want := range valid {
		got, err := ParseAmount(in)
		if err != nil || got != want {
			t.Errorf("ParseAmount(%q) = %d, %v; want %d", in, got, err, want)
		}
	}
	for _, in := range []string{"", " 1", "+1", "-1", "1.5", "1e3", "99999999999999999999"} {
		if _, err := ParseAmount(in); err == nil {
			t.Errorf("ParseAmount(%q) expected error", in)
		}
	}
}

func TestSplitObjectPath(t *testing.T) {
	cat, period, key, err := SplitObjectPath("grab/2023-12/20240110_140509_Airport_trip_45000.jpg")
	if err != nil {
		t.Fatalf("SplitObjectPath() error = %v", err)
	}
	if cat != "grab" || period != (Period{Year: 2023, Month: time.December}) || key != "20240110_140509_Airport_trip_45000.jpg" {
		t.Errorf("SplitObjectPath() = %q, %v, %q", cat, period, key)
	}

	for _, bad := range []string{"", "grab/2023-12", "grab/december/k.jpg", "/2023-12/k.jpg", "grab/2023-12/", "a/grab/2023-12/k.jpg"} {
		if _, _, _, err := SplitObjectPath(bad); err == nil {
			t.Errorf("SplitObjectPath(%q) expected error", bad)
		}
	}
}
