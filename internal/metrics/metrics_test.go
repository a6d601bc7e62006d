package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterAndWriteFile(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := Register(reg); err == nil {
		t.Error("Expected error registering twice")
	}

	before := testutil.ToFloat64(AcquisitionsTotal.WithLabelValues("success"))
	AcquisitionsTotal.WithLabelValues("success").Inc()
	if got := testutil.ToFloat64(AcquisitionsTotal.WithLabelValues("success")); got != before+1 {
		t.Errorf("acquisitions_total = %v, want %v", got, before+1)
	}

	out := filepath.Join(t.TempDir(), "roteiro.prom")
	if err := WriteFile(out, reg); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "roteiro_acquisitions_total") {
		t.Errorf("metrics file does not contain acquisitions counter:\n%s", data)
	}
}
