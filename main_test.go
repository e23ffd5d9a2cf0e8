package main

import (
	"context"
	"os"
	"syscall"
	"testing"

	"fin_backend/core"
)

func TestExitStatus(t *testing.T) {
	tests := []struct {
		name  string
		cause error
		want  int
	}{
		{"plain cancellation", context.Canceled, core.ExitCodeSuccess},
		{"sigint", &signalError{sig: os.Interrupt}, core.ExitCodeSIGINT},
		{"sigterm", &signalError{sig: syscall.SIGTERM}, core.ExitCodeSIGTERM},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitStatus(tt.cause); got != tt.want {
				t.Errorf("exitStatus(%v) = %d, want %d", tt.cause, got, tt.want)
			}
		})
	}
}
