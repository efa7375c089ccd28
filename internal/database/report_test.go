package database

import (
	"bytes"
	"testing"

	"github.com/kozaktomas/signet/internal/signature"
)

func TestWriteMembersReport(t *testing.T) {
	members := []Member{
		{StdID: "6201", FirstName: "Anna", LastName: "Novak", CheckStatus: signature.CheckStatusPassed},
		{StdID: "6202", FirstName: "Petr", LastName: "Svoboda, Jr.", CheckStatus: signature.CheckStatusPending},
	}

	var buf bytes.Buffer
	if err := WriteMembersReport(&buf, members); err != nil {
		t.Fatalf("WriteMembersReport failed: %v", err)
	}

	want := "Std Id,First Name,Last Name,Status\n" +
		"6201,Anna,Novak,passed\n" +
		"6202,Petr,\"Svoboda, Jr.\",pending\n"
	if got := buf.String(); got != want {
		t.Errorf("unexpected report:\n%s\nwant:\n%s", got, want)
	}
}

func TestWriteMembersReport_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMembersReport(&buf, nil); err != nil {
		t.Fatalf("WriteMembersReport failed: %v", err)
	}
	if got := buf.String(); got != "Std Id,First Name,Last Name,Status\n" {
		t.Errorf("expected header only, got %q", got)
	}
}
