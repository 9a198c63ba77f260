package live

import (
	"errors"
	"fmt"
	"testing"
)

func TestMappingError_IsErrMapping(t *testing.T) {
	var err error = &MappingError{Field: "room.title"}
	wrapped := fmt.Errorf("decode: %w", err)

	if !errors.Is(wrapped, ErrMapping) {
		t.Error("expected wrapped MappingError to match ErrMapping")
	}
	if errors.Is(wrapped, ErrParse) {
		t.Error("MappingError should not match ErrParse")
	}

	var me *MappingError
	if !errors.As(wrapped, &me) {
		t.Fatal("errors.As should find *MappingError")
	}
	if me.Field != "room.title" {
		t.Errorf("expected field room.title, got %q", me.Field)
	}
}

func TestMappingError_Message(t *testing.T) {
	err := &MappingError{Field: "room.status", Err: errors.New("expected number")}
	want := `schema mismatch: field "room.status": expected number`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestInfo_IsLive(t *testing.T) {
	if !(Info{Status: StatusLive}).IsLive() {
		t.Error("status 2 should be live")
	}
	if (Info{Status: StatusEnded}).IsLive() {
		t.Error("status 4 should not be live")
	}
	if got := (Info{Status: 9}).StatusText(); got != "unknown(9)" {
		t.Errorf("StatusText() = %q", got)
	}
}

func TestParseRoomURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "123456", want: "https://live.douyin.com/123456"},
		{in: "https://live.douyin.com/123456?foo=bar#x", want: "https://live.douyin.com/123456"},
		{in: "live.douyin.com/123456/", want: "https://live.douyin.com/123456"},
		{in: "http://live.douyin.com/987", want: "https://live.douyin.com/987"},
		{in: "", wantErr: true},
		{in: "https://example.com/123", wantErr: true},
		{in: "https://live.douyin.com/", wantErr: true},
		{in: "ftp://live.douyin.com/1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRoomURL(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidRef) {
					t.Errorf("expected ErrInvalidRef, got %q, %v", got, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseRoomURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
