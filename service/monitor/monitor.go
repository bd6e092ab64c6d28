package monitor

import (
	"context"
	"encoding/json"
	"os"
	"strconv"
	"time"

	"MProject/logger"
	"MProject/service/gateway"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

const metricsChannel = "system:metrics"

// MetricsSource is satisfied by the gateway router.
type MetricsSource interface {
	Metrics() gateway.Metrics
}

// Sink is the slice of the broker the monitor writes to.
type Sink interface {
	Publish(ctx context.Context, channel string, payload []byte)
	HSet(ctx context.Context, key string, pairs ...string)
	Expire(ctx context.Context, key string, ttl time.Duration)
}

// Snapshot is one published health sample.
type Snapshot struct {
	Host           string  `json:"host"`
	PID            int     `json:"pid"`
	Timestamp      int64   `json:"timestamp"`
	Connections    int     `json:"connections"`
	Users          int     `json:"users"`
	Rooms          int     `json:"rooms"`
	MemUsedPercent float64 `json:"memUsedPercent"`
	CPUPercent     float64 `json:"cpuPercent"`
	LoadAvg1       float64 `json:"loadAvg1"`
	UptimeSeconds  int64   `json:"uptimeSeconds"`
}

type Conf struct {
	Interval time.Duration // sample period, default 1m
	TTL      time.Duration // broker hash lifetime, default 10m
}

func (c Conf) norm() Conf {
	if c.Interval <= 0 {
		c.Interval = time.Minute
	}
	if c.TTL <= 0 {
		c.TTL = 10 * time.Minute
	}
	return c
}

// Monitor samples instance health on a fixed period and mirrors it to the
// broker twice: a pub/sub message for live dashboards and a TTL'd hash
// that outlives the instance just long enough to notice it went quiet.
type Monitor struct {
	src     MetricsSource
	sink    Sink
	conf    Conf
	host    string
	pid     int
	started time.Time

	hostStats func() (memPct, cpuPct, load1 float64)
}

func New(src MetricsSource, sink Sink, conf Conf) *Monitor {
	host, _ := os.Hostname()
	return &Monitor{
		src:       src,
		sink:      sink,
		conf:      conf.norm(),
		host:      host,
		pid:       os.Getpid(),
		started:   time.Now(),
		hostStats: readHostStats,
	}
}

func readHostStats() (float64, float64, float64) {
	var memPct, cpuPct, load1 float64
	if vm, err := mem.VirtualMemory(); err == nil {
		memPct = vm.UsedPercent
	}
	if pcts, err := cpu.Percent(0, false); err == nil && len(pcts) > 0 {
		cpuPct = pcts[0]
	}
	if avg, err := load.Avg(); err == nil {
		load1 = avg.Load1
	}
	return memPct, cpuPct, load1
}

// Key is the broker hash this instance writes, unique per host and pid.
func (m *Monitor) Key() string {
	return "metrics:" + m.host + ":" + strconv.Itoa(m.pid)
}

// Run publishes until ctx is cancelled. One sample immediately, then one
// per interval.
func (m *Monitor) Run(ctx context.Context) {
	t := time.NewTicker(m.conf.Interval)
	defer t.Stop()

	m.publish(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.publish(ctx)
		}
	}
}

func (m *Monitor) sample() Snapshot {
	memPct, cpuPct, load1 := m.hostStats()
	reg := m.src.Metrics()
	return Snapshot{
		Host:           m.host,
		PID:            m.pid,
		Timestamp:      time.Now().UnixMilli(),
		Connections:    reg.Connections,
		Users:          reg.Users,
		Rooms:          reg.Rooms,
		MemUsedPercent: memPct,
		CPUPercent:     cpuPct,
		LoadAvg1:       load1,
		UptimeSeconds:  int64(time.Since(m.started).Seconds()),
	}
}

func (m *Monitor) publish(ctx context.Context) {
	snap := m.sample()

	data, err := json.Marshal(snap)
	if err != nil {
		logger.Errorf("[monitor] marshal snapshot: %v", err)
		return
	}
	m.sink.Publish(ctx, metricsChannel, data)

	key := m.Key()
	m.sink.HSet(ctx, key,
		"timestamp", strconv.FormatInt(snap.Timestamp, 10),
		"connections", strconv.Itoa(snap.Connections),
		"users", strconv.Itoa(snap.Users),
		"rooms", strconv.Itoa(snap.Rooms),
		"memUsedPercent", strconv.FormatFloat(snap.MemUsedPercent, 'f', 2, 64),
		"cpuPercent", strconv.FormatFloat(snap.CPUPercent, 'f', 2, 64),
		"loadAvg1", strconv.FormatFloat(snap.LoadAvg1, 'f', 2, 64),
		"uptimeSeconds", strconv.FormatInt(snap.UptimeSeconds, 10),
	)
	m.sink.Expire(ctx, key, m.conf.TTL)
}
