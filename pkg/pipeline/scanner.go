package pipeline

import (
	"context"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/netinventory/pkg/peerdiscovery/common"
	"github.com/projectdiscovery/netinventory/pkg/types"
	mapsutil "github.com/projectdiscovery/utils/maps"
	syncutil "github.com/projectdiscovery/utils/sync"
	"github.com/rs/xid"
)

// DefaultConcurrency is the number of addresses enriched in parallel
const DefaultConcurrency = 25

// HostScanner enriches a single address
type HostScanner interface {
	ScanIP(ctx context.Context, ip net.IP) *types.DeviceRecord
}

// Progress describes how far a scan has come
type Progress struct {
	Index int
	Total int
}

// Percent is the integer completion percentage
func (p Progress) Percent() int {
	if p.Total == 0 {
		return 0
	}
	return p.Index * 100 / p.Total
}

func (p Progress) String() string {
	return fmt.Sprintf("%d/%d (%d%%)", p.Index, p.Total, p.Percent())
}

// ShouldReport reports whether progress is announced at index: the first
// address, every tenth and the last
func ShouldReport(index, total int) bool {
	return index == 1 || index%10 == 0 || index == total
}

// Scanner runs a HostScanner over many addresses
type Scanner struct {
	hosts       HostScanner
	concurrency int
	onProgress  func(Progress)
	onDevice    func(*types.DeviceRecord)
	order       func([]net.IP) []net.IP

	progressMu sync.Mutex
}

// ScannerOption configures a Scanner
type ScannerOption func(*Scanner)

// WithConcurrency bounds the number of parallel hosts
func WithConcurrency(n int) ScannerOption {
	return func(s *Scanner) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithProgress sets the progress callback. Calls are serialized.
func WithProgress(fn func(Progress)) ScannerOption {
	return func(s *Scanner) {
		s.onProgress = fn
	}
}

// WithDeviceCallback is called for every live host as soon as it is enriched.
// Calls are serialized with progress calls.
func WithDeviceCallback(fn func(*types.DeviceRecord)) ScannerOption {
	return func(s *Scanner) {
		s.onDevice = fn
	}
}

// WithDispatchOrder reorders addresses before they are dispatched. Results
// are sorted ascending regardless.
func WithDispatchOrder(fn func([]net.IP) []net.IP) ScannerOption {
	return func(s *Scanner) {
		s.order = fn
	}
}

// NewScanner returns a scanner, logging progress with gologger by default
func NewScanner(hosts HostScanner, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		hosts:       hosts,
		concurrency: DefaultConcurrency,
		onProgress: func(p Progress) {
			gologger.Info().Msgf("Progress: %s", p)
		},
		onDevice: func(record *types.DeviceRecord) {
			gologger.Info().Msgf("Found device: %s", describe(record))
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan expands spec and enriches every address. A malformed spec yields an
// empty result and the error. Only live hosts are returned, sorted by address.
func (s *Scanner) Scan(ctx context.Context, spec common.TargetSpec) ([]*types.DeviceRecord, error) {
	ips, err := common.Expand(spec)
	if err != nil {
		return []*types.DeviceRecord{}, err
	}

	scanID := xid.New().String()
	start := time.Now()
	gologger.Info().Msgf("Scan %s: %d addresses in %s", scanID, len(ips), spec)

	records, err := s.ScanIPs(ctx, ips)
	if err != nil {
		return []*types.DeviceRecord{}, err
	}

	gologger.Info().Msgf("Scan %s finished in %s: %d live hosts", scanID, time.Since(start).Round(time.Millisecond), len(records))
	return records, nil
}

// ScanIPs enriches ips with a bounded worker pool. Cancelling ctx stops new
// addresses from being dispatched; hosts already in flight finish.
func (s *Scanner) ScanIPs(ctx context.Context, ips []net.IP) ([]*types.DeviceRecord, error) {
	awg, err := syncutil.New(syncutil.WithSize(s.concurrency))
	if err != nil {
		return nil, fmt.Errorf("failed to create adaptive waitgroup: %w", err)
	}

	results := mapsutil.NewSyncLockMap[string, *types.DeviceRecord]()
	total := len(ips)
	completed := 0
	if s.order != nil {
		ips = s.order(ips)
	}

	for i, ip := range ips {
		if ctx.Err() != nil {
			gologger.Warning().Msgf("Scan cancelled, %d addresses not dispatched", total-i)
			break
		}

		awg.Add()
		go func(ip net.IP) {
			defer awg.Done()

			record := s.scanHost(ctx, ip)

			s.progressMu.Lock()
			defer s.progressMu.Unlock()

			completed++
			index := completed

			if record != nil && record.IsAlive {
				_ = results.Set(record.IP, record)
				if s.onDevice != nil {
					s.onDevice(record)
				}
			}
			if s.onProgress != nil && ShouldReport(index, total) {
				s.onProgress(Progress{Index: index, Total: total})
			}
		}(ip)
	}
	awg.Wait()

	records := make([]*types.DeviceRecord, 0)
	_ = results.Iterate(func(_ string, record *types.DeviceRecord) error {
		records = append(records, record)
		return nil
	})
	SortRecords(records)
	return records, nil
}

func (s *Scanner) scanHost(ctx context.Context, ip net.IP) (record *types.DeviceRecord) {
	defer func() {
		if r := recover(); r != nil {
			gologger.Warning().Msgf("%s: scan panicked: %v", ip, r)
			record = nil
		}
	}()
	return s.hosts.ScanIP(ctx, ip)
}

// SortRecords orders records by ascending address
func SortRecords(records []*types.DeviceRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return common.CompareIP(net.ParseIP(records[i].IP), net.ParseIP(records[j].IP)) < 0
	})
}

func describe(record *types.DeviceRecord) string {
	out := record.IP
	if name := record.Get(types.FieldHostname); name != "" {
		out += " (" + name + ")"
	}
	if mac := record.Get(types.FieldMAC); mac != "" {
		out += " [" + mac + "]"
	}
	return out
}
