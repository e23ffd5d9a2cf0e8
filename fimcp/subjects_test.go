package fimcp

import "testing"

func TestKnownSubjects(t *testing.T) {
	if !IsKnownSubject("2222222222") {
		t.Error("IsKnownSubject(default subject) = false, want true")
	}
	if IsKnownSubject("0000000000") {
		t.Error("IsKnownSubject(unknown) = true, want false")
	}

	if desc := DescribeSubject("7777777777"); desc != "Debt-Heavy Low Performer" {
		t.Errorf("DescribeSubject() = %q, want documented scenario", desc)
	}
	if desc := DescribeSubject("0000000000"); desc != "" {
		t.Errorf("DescribeSubject(unknown) = %q, want empty", desc)
	}
}
