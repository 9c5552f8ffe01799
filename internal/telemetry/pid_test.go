package telemetry

import (
	"os"
	"testing"
)

func TestCurrentPIDMatchesOSGetpid(t *testing.T) {
	if got := currentPID(); got != os.Getpid() {
		t.Errorf("currentPID() = %d, want %d", got, os.Getpid())
	}
}
