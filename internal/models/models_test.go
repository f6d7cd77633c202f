package models

import (
	"testing"
	"time"
)

func TestFileStatusValidity(t *testing.T) {
	valid := []FileStatus{StatusReceived, StatusPending, StatusProcessing, StatusProcessed, StatusError}
	for _, s := range valid {
		if !s.IsValid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if FileStatus("queued").IsValid() {
		t.Error("unknown status should be invalid")
	}
}

func TestFileStatusTerminal(t *testing.T) {
	if !StatusProcessed.IsTerminal() || !StatusError.IsTerminal() {
		t.Error("processed and error are terminal")
	}
	if StatusProcessing.IsTerminal() || StatusReceived.IsTerminal() {
		t.Error("non-terminal states misreported")
	}
}

func TestReceivedFileValidate(t *testing.T) {
	now := time.Now()
	msg := "boom"

	tests := []struct {
		name    string
		file    ReceivedFile
		wantErr bool
	}{
		{
			name: "processed with timestamp",
			file: ReceivedFile{ID: "f1", Status: StatusProcessed, ProcessedAt: &now},
		},
		{
			name:    "processed without timestamp",
			file:    ReceivedFile{ID: "f1", Status: StatusProcessed},
			wantErr: true,
		},
		{
			name:    "processing with stale timestamp",
			file:    ReceivedFile{ID: "f1", Status: StatusProcessing, ProcessedAt: &now},
			wantErr: true,
		},
		{
			name: "error with message",
			file: ReceivedFile{ID: "f1", Status: StatusError, ErrorMessage: &msg},
		},
		{
			name:    "error without message",
			file:    ReceivedFile{ID: "f1", Status: StatusError},
			wantErr: true,
		},
		{
			name:    "success with leftover error message",
			file:    ReceivedFile{ID: "f1", Status: StatusProcessed, ProcessedAt: &now, ErrorMessage: &msg},
			wantErr: true,
		},
		{
			name:    "unknown status",
			file:    ReceivedFile{ID: "f1", Status: "queued"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.file.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCanonicalCoercions(t *testing.T) {
	if StringValue(nil) != "" || FloatValue(nil) != "" || TimeValue(nil) != "" {
		t.Error("nil must coerce to empty string")
	}

	s := "abc"
	if StringValue(&s) != "abc" {
		t.Error("StringValue")
	}

	f := 126.0
	if FloatValue(&f) != "126" {
		t.Errorf("FloatValue(126.0) = %s, want shortest form", FloatValue(&f))
	}
	f = 1234.56
	if FloatValue(&f) != "1234.56" {
		t.Errorf("FloatValue(1234.56) = %s", FloatValue(&f))
	}

	ts := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	if TimeValue(&ts) != "2025-03-01T00:00:00" {
		t.Errorf("TimeValue = %s", TimeValue(&ts))
	}
}
