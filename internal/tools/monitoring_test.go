package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/jmagar/glances-mcp/internal/config"
	"github.com/jmagar/glances-mcp/internal/glances"
)

func TestListServers(t *testing.T) {
	ts := glancesStub(map[string]string{
		"/api/3/version": `{"version":"3.4.0"}`,
		"/api/3/system":  `{}`,
	})
	t.Cleanup(ts.Close)

	disabled := false
	offline := serverFromURL(t, ts.URL, "spare")
	offline.Enabled = &disabled
	cfg := &config.Config{
		Servers: []config.Server{
			serverFromURL(t, ts.URL, "web-01"),
			offline,
		},
	}
	cfg.Servers[0].Environment = config.EnvironmentProduction
	cfg.Servers[0].Region = "us-east"

	svc := newTestService(t, cfg)
	list, err := svc.ListServers(context.Background())
	if err != nil {
		t.Fatalf("ListServers() error = %v", err)
	}

	if list.Summary.TotalServers != 2 || list.Summary.EnabledServers != 1 {
		t.Errorf("summary = %d total / %d enabled, want 2/1",
			list.Summary.TotalServers, list.Summary.EnabledServers)
	}
	if list.Summary.HealthyServers != 1 {
		t.Errorf("HealthyServers = %d, want 1", list.Summary.HealthyServers)
	}
	if len(list.Servers) != 2 {
		t.Fatalf("server count = %d, want 2", len(list.Servers))
	}
	// Healthy entries sort before unknown ones.
	if list.Servers[0].Alias != "web-01" {
		t.Errorf("first entry = %q, want web-01", list.Servers[0].Alias)
	}
	if got := list.Servers[1].Status.Health; got != glances.StatusUnknown {
		t.Errorf("disabled server health = %q, want %q", got, glances.StatusUnknown)
	}
	if len(list.Summary.Environments) != 1 || list.Summary.Environments[0] != "production" {
		t.Errorf("Environments = %v, want [production]", list.Summary.Environments)
	}
	if len(list.Summary.Regions) != 1 || list.Summary.Regions[0] != "us-east" {
		t.Errorf("Regions = %v, want [us-east]", list.Summary.Regions)
	}
}

func TestSystemOverview(t *testing.T) {
	svc := singleServerService(t, map[string]string{
		"/api/3/system": `{"hostname":"web-01","platform":"x86_64","linux_distro":"Debian 12","hr_name":"Linux 6.1","cpucount":8}`,
		"/api/3/cpu":    `{"total":35.5,"user":20.0,"system":10.0,"iowait":1.5}`,
		"/api/3/mem":    `{"total":17179869184,"available":8589934592,"used":8589934592,"percent":50.0}`,
		"/api/3/load":   `{"min1":1.2,"min5":1.0,"min15":0.8,"cpucore":8}`,
		"/api/3/uptime": `{"seconds":90061}`,
	})

	out, err := svc.SystemOverview(context.Background(), "test")
	if err != nil {
		t.Fatalf("SystemOverview() error = %v", err)
	}
	o, ok := out["test"]
	if !ok {
		t.Fatalf("missing entry for test, got %v", out)
	}
	if o.Error != "" {
		t.Fatalf("Error = %q, want empty", o.Error)
	}
	if o.System.Hostname != "web-01" {
		t.Errorf("Hostname = %q, want web-01", o.System.Hostname)
	}
	if o.CPU.TotalUsage != 35.5 || o.CPU.UsageFormatted != "35.5%" {
		t.Errorf("CPU = %v / %q, want 35.5 / 35.5%%", o.CPU.TotalUsage, o.CPU.UsageFormatted)
	}
	if o.Memory.TotalFormatted != "16.0 GB" {
		t.Errorf("TotalFormatted = %q, want 16.0 GB", o.Memory.TotalFormatted)
	}
	if o.Uptime.Formatted != "1d 1h" {
		t.Errorf("Uptime = %q, want 1d 1h", o.Uptime.Formatted)
	}
}

func TestSystemOverviewFetchFailure(t *testing.T) {
	svc := singleServerService(t, map[string]string{})

	out, err := svc.SystemOverview(context.Background(), "test")
	if err != nil {
		t.Fatalf("SystemOverview() error = %v, want per-server annotation", err)
	}
	if out["test"].Error == "" {
		t.Error("Error is empty, want fetch failure message")
	}
	if out["test"].System != nil {
		t.Error("System != nil on failed fetch")
	}
}

func TestDiskUsage(t *testing.T) {
	svc := singleServerService(t, map[string]string{
		"/api/3/fs": `[
			{"device_name":"/dev/sda1","mnt_point":"/","fs_type":"ext4","size":1000,"used":960,"free":40,"percent":96.0},
			{"device_name":"/dev/sdb1","mnt_point":"/home","fs_type":"ext4","size":1000,"used":880,"free":120,"percent":88.0},
			{"device_name":"tmpfs","mnt_point":"/run","fs_type":"tmpfs","size":500,"used":250,"free":250,"percent":50.0}
		]`,
	})

	out, err := svc.DiskUsage(context.Background(), "test")
	if err != nil {
		t.Fatalf("DiskUsage() error = %v", err)
	}
	report := out["test"]
	if report.Error != "" {
		t.Fatalf("Error = %q, want empty", report.Error)
	}
	if len(report.Filesystems) != 3 {
		t.Fatalf("filesystem count = %d, want 3", len(report.Filesystems))
	}

	// Virtual mounts stay listed but are excluded from the totals.
	if report.Summary.TotalSize != 2000 || report.Summary.TotalUsed != 1840 {
		t.Errorf("totals = %v size / %v used, want 2000/1840",
			report.Summary.TotalSize, report.Summary.TotalUsed)
	}
	if report.Summary.TotalPercent != 92.0 {
		t.Errorf("TotalPercent = %v, want 92", report.Summary.TotalPercent)
	}
	if len(report.Summary.CriticalFilesystems) != 1 || report.Summary.CriticalFilesystems[0].MountPoint != "/" {
		t.Errorf("CriticalFilesystems = %v, want [/]", report.Summary.CriticalFilesystems)
	}
	if len(report.Summary.WarningFilesystems) != 1 || report.Summary.WarningFilesystems[0].MountPoint != "/home" {
		t.Errorf("WarningFilesystems = %v, want [/home]", report.Summary.WarningFilesystems)
	}
}

func TestIsVirtualMount(t *testing.T) {
	tests := []struct {
		mount string
		want  bool
	}{
		{"/", false},
		{"/home", false},
		{"/dev/shm", true},
		{"/proc", true},
		{"/sys/fs/cgroup", true},
		{"/run/lock", true},
	}
	for _, tt := range tests {
		if got := isVirtualMount(tt.mount); got != tt.want {
			t.Errorf("isVirtualMount(%q) = %v, want %v", tt.mount, got, tt.want)
		}
	}
}

func TestNetworkStats(t *testing.T) {
	svc := singleServerService(t, map[string]string{
		"/api/3/network": `[
			{"interface_name":"eth0","rx_bytes":1000,"tx_bytes":2000,"rx_packets":100,"tx_packets":100,"rx_errors":2,"tx_errors":0},
			{"interface_name":"lo","rx_bytes":500,"tx_bytes":500,"rx_packets":50,"tx_packets":50},
			{"interface_name":"docker0","rx_bytes":100,"tx_bytes":100,"rx_packets":10,"tx_packets":10}
		]`,
	})

	out, err := svc.NetworkStats(context.Background(), "test")
	if err != nil {
		t.Fatalf("NetworkStats() error = %v", err)
	}
	report := out["test"]
	if report.Summary.InterfaceCount != 3 || report.Summary.PhysicalInterfaces != 1 {
		t.Errorf("interfaces = %d total / %d physical, want 3/1",
			report.Summary.InterfaceCount, report.Summary.PhysicalInterfaces)
	}
	// Physical totals exclude lo and docker0.
	if report.Summary.TotalRxBytes != 1000 || report.Summary.TotalTxBytes != 2000 {
		t.Errorf("totals = %v rx / %v tx, want 1000/2000",
			report.Summary.TotalRxBytes, report.Summary.TotalTxBytes)
	}
	if report.Summary.OverallErrorRate != 1.0 {
		t.Errorf("OverallErrorRate = %v, want 1.0", report.Summary.OverallErrorRate)
	}
	if len(report.Summary.InterfacesWithErrors) != 1 || report.Summary.InterfacesWithErrors[0] != "eth0" {
		t.Errorf("InterfacesWithErrors = %v, want [eth0]", report.Summary.InterfacesWithErrors)
	}

	var eth0 NetworkInterface
	for _, iface := range report.Interfaces {
		if iface.InterfaceName == "eth0" {
			eth0 = iface
		}
	}
	if !eth0.IsPhysical || eth0.ErrorRate != 1.0 {
		t.Errorf("eth0 = physical %v / error rate %v, want true/1.0", eth0.IsPhysical, eth0.ErrorRate)
	}
}

func TestIsPhysicalInterface(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"eth0", true},
		{"enp3s0", true},
		{"lo", false},
		{"docker0", false},
		{"veth12ab", false},
		{"br-f00d", false},
	}
	for _, tt := range tests {
		if got := isPhysicalInterface(tt.name); got != tt.want {
			t.Errorf("isPhysicalInterface(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestTopProcesses(t *testing.T) {
	svc := singleServerService(t, map[string]string{
		"/api/3/processlist": `[
			{"pid":100,"name":"postgres","username":"postgres","cpu_percent":12.5,"memory_percent":20.0,"status":"S","memory_info":{"rss":1048576,"vms":2097152},"cmdline":["postgres","-D","/var/lib/postgresql"]},
			{"pid":200,"name":"nginx","username":"www-data","cpu_percent":45.0,"memory_percent":5.0,"status":"R","cmdline":["nginx","worker"]},
			{"pid":300,"name":"idle-daemon","username":"root","cpu_percent":0.5,"memory_percent":1.0,"status":"S","cmdline":[]}
		]`,
	})

	out, err := svc.TopProcesses(context.Background(), "test", 2, SortByCPU, "")
	if err != nil {
		t.Fatalf("TopProcesses() error = %v", err)
	}
	report := out["test"]
	if report.Summary.TotalProcesses != 3 || report.Summary.DisplayedProcesses != 2 {
		t.Errorf("processes = %d total / %d displayed, want 3/2",
			report.Summary.TotalProcesses, report.Summary.DisplayedProcesses)
	}
	if report.Processes[0].Name != "nginx" || report.Processes[1].Name != "postgres" {
		t.Errorf("order = [%s %s], want [nginx postgres]",
			report.Processes[0].Name, report.Processes[1].Name)
	}
	if report.Processes[1].Cmdline != "postgres -D /var/lib/postgresql" {
		t.Errorf("Cmdline = %q, want joined command line", report.Processes[1].Cmdline)
	}
	if report.Processes[1].MemoryRSSFormatted != "1.0 MB" {
		t.Errorf("MemoryRSSFormatted = %q, want 1.0 MB", report.Processes[1].MemoryRSSFormatted)
	}
	if report.Summary.RunningProcesses != 1 || report.Summary.SleepingProcesses != 2 {
		t.Errorf("states = %d running / %d sleeping, want 1/2",
			report.Summary.RunningProcesses, report.Summary.SleepingProcesses)
	}
}

func TestTopProcessesFilterAndSort(t *testing.T) {
	svc := singleServerService(t, map[string]string{
		"/api/3/processlist": `[
			{"pid":100,"name":"postgres","cpu_percent":12.5,"memory_percent":20.0},
			{"pid":200,"name":"nginx","cpu_percent":45.0,"memory_percent":5.0}
		]`,
	})

	out, err := svc.TopProcesses(context.Background(), "test", 10, SortByMemory, "post")
	if err != nil {
		t.Fatalf("TopProcesses() error = %v", err)
	}
	report := out["test"]
	if len(report.Processes) != 1 || report.Processes[0].Name != "postgres" {
		t.Fatalf("filtered processes = %v, want only postgres", report.Processes)
	}
	if report.Summary.FilterApplied != "post" || report.Summary.SortedBy != SortByMemory {
		t.Errorf("summary echo = %q/%q, want post/memory",
			report.Summary.FilterApplied, report.Summary.SortedBy)
	}
}

func TestTopProcessesBadSortKey(t *testing.T) {
	svc := singleServerService(t, nil)
	if _, err := svc.TopProcesses(context.Background(), "test", 10, "disk", ""); err == nil {
		t.Error("TopProcesses(disk) error = nil, want invalid sort key error")
	}
}

func TestCmdlineTruncation(t *testing.T) {
	long := strings.Repeat("x", 120)
	got := cmdlineString(map[string]any{"cmdline": []any{long}})
	if len(got) != maxCmdlineLength {
		t.Fatalf("len = %d, want %d", len(got), maxCmdlineLength)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("truncated cmdline %q lacks ellipsis", got)
	}

	if got := cmdlineString(map[string]any{"name": "kthreadd", "cmdline": []any{}}); got != "kthreadd" {
		t.Errorf("empty cmdline fallback = %q, want kthreadd", got)
	}
}

func TestContainers(t *testing.T) {
	svc := singleServerService(t, map[string]string{
		"/api/3/containers": `[
			{"Id":"abcdef1234567890ffff","name":"web","image":["nginx:latest"],"Status":"Up 3 days","cpu_percent":5.0,"memory_usage":1048576,"memory_limit":4194304},
			{"Id":"0123456789abcdefffff","name":"batch","image":"alpine","Status":"Exited (0) 2 hours ago","cpu_percent":0.0}
		]`,
	})

	out, err := svc.Containers(context.Background(), "test", false)
	if err != nil {
		t.Fatalf("Containers() error = %v", err)
	}
	report := out["test"]
	if !report.Summary.ContainersAvailable {
		t.Fatal("ContainersAvailable = false, want true")
	}
	if report.Summary.TotalContainers != 2 || report.Summary.RunningContainers != 1 || report.Summary.StoppedContainers != 1 {
		t.Errorf("summary = %d/%d/%d, want 2 total, 1 running, 1 stopped",
			report.Summary.TotalContainers, report.Summary.RunningContainers, report.Summary.StoppedContainers)
	}
	if len(report.Containers) != 1 {
		t.Fatalf("displayed = %d, want 1 (stopped excluded)", len(report.Containers))
	}
	c := report.Containers[0]
	if c.ID != "abcdef123456" {
		t.Errorf("ID = %q, want 12-char prefix", c.ID)
	}
	if c.Image != "nginx:latest" || !c.IsRunning {
		t.Errorf("container = image %q / running %v, want nginx:latest/true", c.Image, c.IsRunning)
	}

	withStopped, err := svc.Containers(context.Background(), "test", true)
	if err != nil {
		t.Fatalf("Containers(include_stopped) error = %v", err)
	}
	if got := len(withStopped["test"].Containers); got != 2 {
		t.Errorf("displayed with stopped = %d, want 2", got)
	}
}

func TestContainersUnavailable(t *testing.T) {
	svc := singleServerService(t, map[string]string{})

	out, err := svc.Containers(context.Background(), "test", false)
	if err != nil {
		t.Fatalf("Containers() error = %v", err)
	}
	report := out["test"]
	if report.Summary.ContainersAvailable {
		t.Error("ContainersAvailable = true, want false")
	}
	if len(report.Containers) != 0 {
		t.Errorf("containers = %v, want empty", report.Containers)
	}
}

func TestDetailedMetrics(t *testing.T) {
	svc := singleServerService(t, map[string]string{
		"/api/3/cpu":    `{"total":35.5,"user":20.0,"system":10.0,"iowait":1.5,"idle":64.5}`,
		"/api/3/mem":    `{"total":17179869184,"percent":50.0,"used":8589934592}`,
		"/api/3/diskio": `[{"disk_name":"sda","read_count":100,"write_count":200,"read_bytes":1048576,"write_bytes":2097152}]`,
	})

	out, err := svc.DetailedMetricsFor(context.Background(), "test", false)
	if err != nil {
		t.Fatalf("DetailedMetricsFor() error = %v", err)
	}
	entry := out["test"]
	if entry.Error != "" {
		t.Fatalf("Error = %q, want empty", entry.Error)
	}
	if entry.CPUDetailed["total"] != 35.5 || entry.CPUDetailed["iowait"] != 1.5 {
		t.Errorf("CPUDetailed = %v, want total 35.5 iowait 1.5", entry.CPUDetailed)
	}
	if entry.MemoryDetailed["percent"] != 50.0 {
		t.Errorf("memory percent = %v, want 50", entry.MemoryDetailed["percent"])
	}
	if len(entry.DiskIO) != 1 || entry.DiskIO[0].ReadBytesFormatted != "1.0 MB" {
		t.Errorf("DiskIO = %v, want one sda entry with 1.0 MB read", entry.DiskIO)
	}
	if entry.Sensors != nil {
		t.Error("Sensors != nil without include_sensors")
	}
}
