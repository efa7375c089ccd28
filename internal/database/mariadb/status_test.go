package mariadb

import (
	"testing"

	"github.com/kozaktomas/signet/internal/signature"
)

func TestLegacyStatus(t *testing.T) {
	tests := []struct {
		status signature.CheckStatus
		legacy string
	}{
		{signature.CheckStatusPending, "ยังไม่ตรวจสอบ"},
		{signature.CheckStatusPassed, "ผ่านการตรวจสอบ"},
		{signature.CheckStatusFailed, "ไม่ผ่านการตรวจสอบ"},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			got, err := toLegacyStatus(tt.status)
			if err != nil || got != tt.legacy {
				t.Errorf("toLegacyStatus(%q) = %q, %v", tt.status, got, err)
			}
			back, err := fromLegacyStatus(tt.legacy)
			if err != nil || back != tt.status {
				t.Errorf("fromLegacyStatus(%q) = %q, %v", tt.legacy, back, err)
			}
		})
	}
}

func TestFromLegacyStatus_Canonical(t *testing.T) {
	got, err := fromLegacyStatus("passed")
	if err != nil || got != signature.CheckStatusPassed {
		t.Errorf("expected canonical value to parse, got %q, %v", got, err)
	}
	if _, err := fromLegacyStatus("??"); err == nil {
		t.Error("expected error for unknown label")
	}
	if _, err := toLegacyStatus("unknown"); err == nil {
		t.Error("expected error for unknown status")
	}
}
