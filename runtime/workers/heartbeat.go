package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

const defaultHeartbeatInterval = 30 * time.Second

// SessionCounter reports how many users hold a live session.
type SessionCounter interface {
	Len() int
}

// HeartbeatWorker logs the health of the process (CPU, RAM, status)
// together with the number of connected users at a fixed interval.
type HeartbeatWorker struct {
	log      *slog.Logger
	sessions SessionCounter
	interval time.Duration
}

func NewHeartbeatWorker(log *slog.Logger, sessions SessionCounter, interval time.Duration) *HeartbeatWorker {
	if interval <= 0 {
		interval = defaultHeartbeatInterval
	}
	return &HeartbeatWorker{log: log, sessions: sessions, interval: interval}
}

func (w *HeartbeatWorker) Run(ctx context.Context) error {
	w.log.Info("Starting heartbeat worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.beat(p)
		}
	}
}

func (w *HeartbeatWorker) beat(p *process.Process) {
	rss, cpu, status, err := getSelfStats(p)
	if err != nil {
		w.log.Error("Failed to collect self stats", "error", err)
		return
	}
	w.log.Info("Heartbeat",
		"pid", p.Pid,
		"status", status,
		"cpu_percent", cpu,
		"ram_bytes", rss,
		"connected_users", w.sessions.Len())
}

// getSelfStats retrieves memory, CPU and OS status of the given process.
func getSelfStats(p *process.Process) (uint64, float64, string, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, "", err
	}

	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, "", err
	}

	status, err := p.Status()
	if err != nil {
		return 0, 0, "", err
	}
	return memInfo.RSS, cpuPercent, status, nil
}
