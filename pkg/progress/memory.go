package progress

import (
	"fmt"
	"os"
	"sync"

	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/jsonify/vox/pkg/models"
)

// MemoryMonitor samples process resident memory against system totals and
// tracks the high-water mark across samples.
type MemoryMonitor struct {
	mu   sync.Mutex
	proc *process.Process
	peak uint64
}

// NewMemoryMonitor binds a monitor to the current process.
func NewMemoryMonitor() (*MemoryMonitor, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("binding memory monitor to pid %d: %w", os.Getpid(), err)
	}
	return &MemoryMonitor{proc: proc}, nil
}

// CurrentUsage samples resident and system memory. The returned usage
// percentage always equals CurrentBytes/TotalBytes within float tolerance.
func (m *MemoryMonitor) CurrentUsage() (models.MemoryUsage, error) {
	info, err := m.proc.MemoryInfo()
	if err != nil {
		return models.MemoryUsage{}, fmt.Errorf("sampling process memory: %w", err)
	}
	vm, err := mem.VirtualMemory()
	if err != nil {
		return models.MemoryUsage{}, fmt.Errorf("sampling system memory: %w", err)
	}

	m.mu.Lock()
	if info.RSS > m.peak {
		m.peak = info.RSS
	}
	peak := m.peak
	m.mu.Unlock()

	return models.MemoryUsage{
		CurrentBytes:   info.RSS,
		PeakBytes:      peak,
		AvailableBytes: vm.Available,
		TotalBytes:     vm.Total,
	}, nil
}
