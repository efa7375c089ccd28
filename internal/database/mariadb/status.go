package mariadb

import (
	"fmt"

	"github.com/kozaktomas/signet/internal/signature"
)

// The legacy schema stores check states as Thai display labels.
const (
	legacyPending = "ยังไม่ตรวจสอบ"
	legacyPassed  = "ผ่านการตรวจสอบ"
	legacyFailed  = "ไม่ผ่านการตรวจสอบ"
)

func toLegacyStatus(s signature.CheckStatus) (string, error) {
	switch s {
	case signature.CheckStatusPending:
		return legacyPending, nil
	case signature.CheckStatusPassed:
		return legacyPassed, nil
	case signature.CheckStatusFailed:
		return legacyFailed, nil
	}
	return "", fmt.Errorf("unknown check status %q", s)
}

// fromLegacyStatus also accepts the canonical English values, which rows
// written by other tools may contain.
func fromLegacyStatus(s string) (signature.CheckStatus, error) {
	switch s {
	case legacyPending:
		return signature.CheckStatusPending, nil
	case legacyPassed:
		return signature.CheckStatusPassed, nil
	case legacyFailed:
		return signature.CheckStatusFailed, nil
	}
	return signature.ParseCheckStatus(s)
}
