package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	m := New()
	m.HostScanned()
	m.HostScanned()
	m.HostAlive(3*time.Millisecond, true)
	m.HostAlive(0, false)
	m.EnrichmentFailed("nmap")
	m.EnrichmentFailed("nmap")
	m.EnrichmentFailed("directory")

	if got := testutil.ToFloat64(m.scanned); got != 2 {
		t.Errorf("scanned = %v", got)
	}
	if got := testutil.ToFloat64(m.alive); got != 2 {
		t.Errorf("alive = %v", got)
	}
	if got := testutil.ToFloat64(m.failures.WithLabelValues("nmap")); got != 2 {
		t.Errorf("nmap failures = %v", got)
	}
	if got := testutil.CollectAndCount(m.rtt); got != 1 {
		t.Errorf("rtt collectors = %d", got)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.HostScanned()
	m.HostAlive(time.Millisecond, true)
	m.EnrichmentFailed("snmp")
	if err := m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")); err != nil {
		t.Errorf("WriteTextfile: %v", err)
	}
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.HostScanned()
	m.EnrichmentFailed("remote")

	path := filepath.Join(t.TempDir(), "netinventory.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"netinventory_hosts_scanned_total 1",
		`netinventory_enrichment_failures_total{source="remote"} 1`,
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("textfile missing %q:\n%s", want, data)
		}
	}
}
