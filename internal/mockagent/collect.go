package mockagent

import (
	"context"
	"runtime"
	"sort"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	gopsnet "github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

// maxProcesses bounds the processlist response.
const maxProcesses = 200

func collectSystem(ctx context.Context) (any, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"hostname":     info.Hostname,
		"os_name":      info.OS,
		"platform":     info.KernelArch,
		"linux_distro": info.Platform + " " + info.PlatformVersion,
		"hr_name":      info.OS + " " + info.KernelVersion,
		"cpucount":     runtime.NumCPU(),
	}, nil
}

func collectCPU(ctx context.Context) (any, error) {
	times, err := cpu.TimesWithContext(ctx, false)
	if err != nil || len(times) == 0 {
		return nil, err
	}
	t := times[0]
	total := t.User + t.Nice + t.System + t.Idle + t.Iowait +
		t.Irq + t.Softirq + t.Steal + t.Guest + t.GuestNice
	if total <= 0 {
		total = 1
	}
	pct := func(v float64) float64 { return v / total * 100 }
	return map[string]any{
		"total":      pct(total - t.Idle - t.Iowait),
		"user":       pct(t.User),
		"nice":       pct(t.Nice),
		"system":     pct(t.System),
		"idle":       pct(t.Idle),
		"iowait":     pct(t.Iowait),
		"irq":        pct(t.Irq),
		"softirq":    pct(t.Softirq),
		"steal":      pct(t.Steal),
		"guest":      pct(t.Guest),
		"guest_nice": pct(t.GuestNice),
		"cpucore":    runtime.NumCPU(),
	}, nil
}

func collectMemory(ctx context.Context) (any, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"total":     vm.Total,
		"available": vm.Available,
		"percent":   vm.UsedPercent,
		"used":      vm.Used,
		"free":      vm.Free,
		"active":    vm.Active,
		"inactive":  vm.Inactive,
		"buffers":   vm.Buffers,
		"cached":    vm.Cached,
		"shared":    vm.Shared,
		"slab":      vm.Slab,
	}, nil
}

func collectLoad(ctx context.Context) (any, error) {
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"min1":    avg.Load1,
		"min5":    avg.Load5,
		"min15":   avg.Load15,
		"cpucore": runtime.NumCPU(),
	}, nil
}

func collectUptime(ctx context.Context) (any, error) {
	seconds, err := host.UptimeWithContext(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"seconds": seconds}, nil
}

func collectFilesystems(ctx context.Context) (any, error) {
	parts, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(parts))
	for _, p := range parts {
		usage, err := disk.UsageWithContext(ctx, p.Mountpoint)
		if err != nil {
			continue
		}
		out = append(out, map[string]any{
			"device_name": p.Device,
			"mnt_point":   p.Mountpoint,
			"fs_type":     p.Fstype,
			"size":        usage.Total,
			"used":        usage.Used,
			"free":        usage.Free,
			"percent":     usage.UsedPercent,
		})
	}
	return out, nil
}

func collectDiskIO(ctx context.Context) (any, error) {
	counters, err := disk.IOCountersWithContext(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(counters))
	for name := range counters {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]map[string]any, 0, len(names))
	for _, name := range names {
		c := counters[name]
		out = append(out, map[string]any{
			"disk_name":   name,
			"read_count":  c.ReadCount,
			"write_count": c.WriteCount,
			"read_bytes":  c.ReadBytes,
			"write_bytes": c.WriteBytes,
			"read_time":   c.ReadTime,
			"write_time":  c.WriteTime,
		})
	}
	return out, nil
}

func collectNetwork(ctx context.Context) (any, error) {
	counters, err := gopsnet.IOCountersWithContext(ctx, true)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(counters))
	for _, c := range counters {
		out = append(out, map[string]any{
			"interface_name": c.Name,
			"rx_bytes":       c.BytesRecv,
			"tx_bytes":       c.BytesSent,
			"rx_packets":     c.PacketsRecv,
			"tx_packets":     c.PacketsSent,
			"rx_errors":      c.Errin,
			"tx_errors":      c.Errout,
			"rx_dropped":     c.Dropin,
			"tx_dropped":     c.Dropout,
		})
	}
	return out, nil
}

func collectConnections(ctx context.Context) (any, error) {
	conns, err := gopsnet.ConnectionsWithContext(ctx, "tcp")
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(conns))
	for _, c := range conns {
		out = append(out, map[string]any{
			"local_addr":  c.Laddr.IP,
			"local_port":  c.Laddr.Port,
			"remote_addr": c.Raddr.IP,
			"remote_port": c.Raddr.Port,
			"status":      c.Status,
			"pid":         c.Pid,
		})
	}
	return out, nil
}

// statusCode maps gopsutil process states onto the single-letter codes
// Glances reports.
func statusCode(states []string) string {
	if len(states) == 0 {
		return "?"
	}
	switch states[0] {
	case process.Running:
		return "R"
	case process.Sleep:
		return "S"
	case process.Idle:
		return "I"
	case process.Zombie:
		return "Z"
	case process.Stop:
		return "T"
	case process.Wait:
		return "D"
	default:
		return "?"
	}
}

func collectProcesses(ctx context.Context) (any, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		entry := map[string]any{
			"pid":  p.Pid,
			"name": name,
		}
		if username, err := p.UsernameWithContext(ctx); err == nil {
			entry["username"] = username
		}
		if cpuPct, err := p.CPUPercentWithContext(ctx); err == nil {
			entry["cpu_percent"] = cpuPct
		}
		if memPct, err := p.MemoryPercentWithContext(ctx); err == nil {
			entry["memory_percent"] = float64(memPct)
		}
		if mi, err := p.MemoryInfoWithContext(ctx); err == nil && mi != nil {
			entry["memory_info"] = map[string]any{"rss": mi.RSS, "vms": mi.VMS}
		}
		if states, err := p.StatusWithContext(ctx); err == nil {
			entry["status"] = statusCode(states)
		}
		if threads, err := p.NumThreadsWithContext(ctx); err == nil {
			entry["num_threads"] = threads
		}
		if nice, err := p.NiceWithContext(ctx); err == nil {
			entry["nice"] = nice
		}
		if cmdline, err := p.CmdlineSliceWithContext(ctx); err == nil {
			entry["cmdline"] = cmdline
		}
		out = append(out, entry)
	}

	sort.Slice(out, func(i, j int) bool {
		ci, _ := out[i]["cpu_percent"].(float64)
		cj, _ := out[j]["cpu_percent"].(float64)
		return ci > cj
	})
	if len(out) > maxProcesses {
		out = out[:maxProcesses]
	}
	return out, nil
}

func collectSensors(ctx context.Context) (any, error) {
	temps, err := host.SensorsTemperaturesWithContext(ctx)
	if err != nil {
		// Sensors are unavailable on many hosts and containers.
		return map[string]any{"temperatures": []any{}}, nil
	}
	readings := make([]map[string]any, 0, len(temps))
	for _, t := range temps {
		readings = append(readings, map[string]any{
			"label":    t.SensorKey,
			"value":    t.Temperature,
			"high":     t.High,
			"critical": t.Critical,
		})
	}
	return map[string]any{"temperatures": readings}, nil
}

func collectAll(ctx context.Context) (any, error) {
	all := make(map[string]any)
	sections := map[string]collector{
		"system":  collectSystem,
		"cpu":     collectCPU,
		"mem":     collectMemory,
		"load":    collectLoad,
		"uptime":  collectUptime,
		"fs":      collectFilesystems,
		"network": collectNetwork,
	}
	for key, collect := range sections {
		doc, err := collect(ctx)
		if err != nil {
			continue
		}
		all[key] = doc
	}
	return all, nil
}
