package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmagar/glances-mcp/internal/glances"
)

// ServerListing is one entry in a ListServers result.
type ServerListing struct {
	Alias       string        `json:"alias"`
	Host        string        `json:"host"`
	Port        int           `json:"port"`
	Protocol    string        `json:"protocol"`
	Environment string        `json:"environment,omitempty"`
	Region      string        `json:"region,omitempty"`
	Tags        []string      `json:"tags,omitempty"`
	Enabled     bool          `json:"enabled"`
	Status      ListingStatus `json:"status"`
}

// ListingStatus is the condensed health block of a server listing.
type ListingStatus struct {
	Health         string     `json:"health"`
	Message        string     `json:"message"`
	LastCheck      *time.Time `json:"last_check,omitempty"`
	ResponseTimeMs float64    `json:"response_time_ms,omitempty"`
	GlancesVersion string     `json:"glances_version,omitempty"`
	Capabilities   []string   `json:"capabilities,omitempty"`
}

// ServerList is the full ListServers result.
type ServerList struct {
	Servers []ServerListing   `json:"servers"`
	Summary ServerListSummary `json:"summary"`
}

// ServerListSummary aggregates the fleet's configuration and health.
type ServerListSummary struct {
	TotalServers      int      `json:"total_servers"`
	EnabledServers    int      `json:"enabled_servers"`
	HealthyServers    int      `json:"healthy_servers"`
	ServersWithIssues int      `json:"servers_with_issues"`
	Environments      []string `json:"environments"`
	Regions           []string `json:"regions"`
}

// listingHealthRank orders listings best first; unknown sorts last.
func listingHealthRank(health string) int {
	switch health {
	case glances.StatusHealthy:
		return 0
	case glances.StatusWarning:
		return 1
	case "degraded":
		return 2
	case glances.StatusCritical:
		return 3
	case glances.StatusUnknown:
		return 4
	default:
		return 5
	}
}

// ListServers lists every configured server with its probed status, sorted
// healthiest first. Disabled servers appear with an unknown status.
func (s *Service) ListServers(ctx context.Context) (*ServerList, error) {
	ctx, done := s.observe(ctx, "list_servers")
	var err error
	defer func() { done(err) }()

	statuses, herr := s.pool.HealthCheckAll(ctx)
	if herr != nil {
		err = herr
		return nil, herr
	}
	byAlias := make(map[string]glances.ServerStatus, len(statuses))
	for _, st := range statuses {
		byAlias[st.Alias] = st
	}

	list := &ServerList{Servers: make([]ServerListing, 0, len(s.cfg.Servers))}
	envs := make(map[string]bool)
	regions := make(map[string]bool)

	for i := range s.cfg.Servers {
		srv := &s.cfg.Servers[i]
		entry := ServerListing{
			Alias:       srv.Alias,
			Host:        srv.Host,
			Port:        srv.Port,
			Protocol:    srv.Protocol,
			Environment: string(srv.Environment),
			Region:      srv.Region,
			Tags:        srv.Tags,
			Enabled:     srv.IsEnabled(),
			Status: ListingStatus{
				Health:  glances.StatusUnknown,
				Message: "No status available",
			},
		}
		if st, ok := byAlias[srv.Alias]; ok {
			t := st.Health.Timestamp
			entry.Status = ListingStatus{
				Health:         st.Health.Status,
				Message:        st.Health.Message,
				LastCheck:      &t,
				ResponseTimeMs: st.ResponseTimeMs,
				GlancesVersion: st.GlancesVersion,
				Capabilities:   st.Capabilities,
			}
		}
		list.Servers = append(list.Servers, entry)

		if entry.Environment != "" {
			envs[entry.Environment] = true
		}
		if entry.Region != "" {
			regions[entry.Region] = true
		}

		list.Summary.TotalServers++
		if entry.Enabled {
			list.Summary.EnabledServers++
		}
		switch entry.Status.Health {
		case glances.StatusHealthy:
			list.Summary.HealthyServers++
		case glances.StatusWarning, glances.StatusCritical:
			list.Summary.ServersWithIssues++
		}
	}

	sort.Slice(list.Servers, func(i, j int) bool {
		ri, rj := listingHealthRank(list.Servers[i].Status.Health), listingHealthRank(list.Servers[j].Status.Health)
		if ri != rj {
			return ri < rj
		}
		return list.Servers[i].Alias < list.Servers[j].Alias
	})

	list.Summary.Environments = sortedKeys(envs)
	list.Summary.Regions = sortedKeys(regions)
	return list, nil
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ServerConfigInfo echoes the configuration behind a status entry.
type ServerConfigInfo struct {
	Host        string   `json:"host"`
	Port        int      `json:"port"`
	Environment string   `json:"environment,omitempty"`
	Region      string   `json:"region,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// ServerDetail is the full status record of one server.
type ServerDetail struct {
	Health                   string           `json:"health"`
	Message                  string           `json:"message"`
	Timestamp                time.Time        `json:"timestamp"`
	LastSuccessfulConnection *time.Time       `json:"last_successful_connection,omitempty"`
	ResponseTimeMs           float64          `json:"response_time_ms,omitempty"`
	GlancesVersion           string           `json:"glances_version,omitempty"`
	Capabilities             []string         `json:"capabilities,omitempty"`
	ServerConfig             ServerConfigInfo `json:"server_config"`
}

// ServerStatus probes one server, or every enabled server when the alias is
// empty, and returns the detailed status per alias.
func (s *Service) ServerStatus(ctx context.Context, serverAlias string) (map[string]ServerDetail, error) {
	ctx, done := s.observe(ctx, "get_server_status")
	var err error
	defer func() { done(err) }()

	var statuses []glances.ServerStatus
	if serverAlias != "" {
		st, herr := s.pool.HealthCheck(ctx, serverAlias)
		if herr != nil {
			err = herr
			return nil, herr
		}
		statuses = []glances.ServerStatus{st}
	} else {
		statuses, err = s.pool.HealthCheckAll(ctx)
		if err != nil {
			return nil, err
		}
	}

	out := make(map[string]ServerDetail, len(statuses))
	for _, st := range statuses {
		detail := ServerDetail{
			Health:                   st.Health.Status,
			Message:                  st.Health.Message,
			Timestamp:                st.Health.Timestamp,
			LastSuccessfulConnection: st.LastSuccessfulConnection,
			ResponseTimeMs:           st.ResponseTimeMs,
			GlancesVersion:           st.GlancesVersion,
			Capabilities:             st.Capabilities,
		}
		if srv := s.cfg.ServerByAlias(st.Alias); srv != nil {
			detail.ServerConfig = ServerConfigInfo{
				Host:        srv.Host,
				Port:        srv.Port,
				Environment: string(srv.Environment),
				Region:      srv.Region,
				Tags:        srv.Tags,
			}
		}
		out[st.Alias] = detail
	}
	return out, nil
}

// Overview is the system snapshot of one server. A fetch failure leaves the
// sections nil and sets Error.
type Overview struct {
	ServerAlias string          `json:"server_alias"`
	Timestamp   time.Time       `json:"timestamp"`
	Error       string          `json:"error,omitempty"`
	System      *OverviewSystem `json:"system,omitempty"`
	CPU         *OverviewCPU    `json:"cpu,omitempty"`
	Memory      *OverviewMemory `json:"memory,omitempty"`
	Load        *OverviewLoad   `json:"load,omitempty"`
	Uptime      *OverviewUptime `json:"uptime,omitempty"`
}

// OverviewSystem identifies the host.
type OverviewSystem struct {
	Hostname    string `json:"hostname"`
	Platform    string `json:"platform"`
	LinuxDistro string `json:"linux_distro"`
	HRName      string `json:"hr_name"`
}

// OverviewCPU summarizes processor usage.
type OverviewCPU struct {
	Count          float64 `json:"count"`
	TotalUsage     float64 `json:"total_usage"`
	User           float64 `json:"user"`
	System         float64 `json:"system"`
	IOWait         float64 `json:"iowait"`
	UsageFormatted string  `json:"usage_formatted"`
}

// OverviewMemory summarizes memory usage.
type OverviewMemory struct {
	Total              float64 `json:"total"`
	Available          float64 `json:"available"`
	Used               float64 `json:"used"`
	Percent            float64 `json:"percent"`
	TotalFormatted     string  `json:"total_formatted"`
	AvailableFormatted string  `json:"available_formatted"`
	UsageFormatted     string  `json:"usage_formatted"`
}

// OverviewLoad carries the load averages.
type OverviewLoad struct {
	Min1    float64 `json:"min1"`
	Min5    float64 `json:"min5"`
	Min15   float64 `json:"min15"`
	CPUCore float64 `json:"cpucore"`
}

// OverviewUptime carries the uptime in raw and formatted form.
type OverviewUptime struct {
	Seconds   float64 `json:"seconds"`
	Formatted string  `json:"formatted"`
}

// SystemOverview returns the CPU/memory/load/uptime snapshot per server.
func (s *Service) SystemOverview(ctx context.Context, serverAlias string) (map[string]Overview, error) {
	ctx, done := s.observe(ctx, "get_system_overview")
	var err error
	defer func() { done(err) }()

	clients, cerr := s.clientsFor(serverAlias)
	if cerr != nil {
		err = cerr
		return nil, cerr
	}

	out := make(map[string]Overview, len(clients))
	for _, c := range clients {
		out[c.Server().Alias] = s.overviewFor(ctx, c)
	}
	return out, nil
}

func (s *Service) overviewFor(ctx context.Context, c *glances.Client) Overview {
	alias := c.Server().Alias
	o := Overview{ServerAlias: alias, Timestamp: time.Now()}

	fail := func(err error) Overview {
		s.logger.Warn("system overview fetch failed", "server_alias", alias, "error", err)
		return Overview{ServerAlias: alias, Timestamp: time.Now(), Error: err.Error()}
	}

	system, err := c.SystemInfo(ctx)
	if err != nil {
		return fail(err)
	}
	cpu, err := c.CPUInfo(ctx)
	if err != nil {
		return fail(err)
	}
	mem, err := c.MemoryInfo(ctx)
	if err != nil {
		return fail(err)
	}
	load, err := c.LoadAverage(ctx)
	if err != nil {
		return fail(err)
	}
	uptime, err := c.Uptime(ctx)
	if err != nil {
		return fail(err)
	}

	o.System = &OverviewSystem{
		Hostname:    str(system, "hostname", "unknown"),
		Platform:    str(system, "platform", "unknown"),
		LinuxDistro: str(system, "linux_distro", "unknown"),
		HRName:      str(system, "hr_name", "unknown"),
	}
	o.CPU = &OverviewCPU{
		Count:          num(system, "cpucount"),
		TotalUsage:     num(cpu, "total"),
		User:           num(cpu, "user"),
		System:         num(cpu, "system"),
		IOWait:         num(cpu, "iowait"),
		UsageFormatted: FormatPercentage(num(cpu, "total")),
	}
	o.Memory = &OverviewMemory{
		Total:              num(mem, "total"),
		Available:          num(mem, "available"),
		Used:               num(mem, "used"),
		Percent:            num(mem, "percent"),
		TotalFormatted:     FormatBytes(num(mem, "total")),
		AvailableFormatted: FormatBytes(num(mem, "available")),
		UsageFormatted:     FormatPercentage(num(mem, "percent")),
	}
	o.Load = &OverviewLoad{
		Min1:    num(load, "min1"),
		Min5:    num(load, "min5"),
		Min15:   num(load, "min15"),
		CPUCore: num(load, "cpucore"),
	}
	o.Uptime = &OverviewUptime{
		Seconds:   num(uptime, "seconds"),
		Formatted: FormatUptime(int64(num(uptime, "seconds"))),
	}
	return o
}

// DiskIOStat is one device's cumulative I/O counters.
type DiskIOStat struct {
	DiskName            string  `json:"disk_name"`
	ReadCount           float64 `json:"read_count"`
	WriteCount          float64 `json:"write_count"`
	ReadBytes           float64 `json:"read_bytes"`
	WriteBytes          float64 `json:"write_bytes"`
	ReadTime            float64 `json:"read_time"`
	WriteTime           float64 `json:"write_time"`
	ReadBytesFormatted  string  `json:"read_bytes_formatted"`
	WriteBytesFormatted string  `json:"write_bytes_formatted"`
}

// DetailedMetrics is the extended metric snapshot of one server.
type DetailedMetrics struct {
	ServerAlias    string             `json:"server_alias"`
	Timestamp      time.Time          `json:"timestamp"`
	Error          string             `json:"error,omitempty"`
	CPUDetailed    map[string]float64 `json:"cpu_detailed,omitempty"`
	MemoryDetailed map[string]float64 `json:"memory_detailed,omitempty"`
	DiskIO         []DiskIOStat       `json:"disk_io,omitempty"`
	Sensors        map[string]any     `json:"sensors,omitempty"`
}

// DetailedMetricsFor returns extended CPU, memory and disk I/O statistics per
// server. Sensor readings are included on request when the agent has them.
func (s *Service) DetailedMetricsFor(ctx context.Context, serverAlias string, includeSensors bool) (map[string]DetailedMetrics, error) {
	ctx, done := s.observe(ctx, "get_detailed_metrics")
	var err error
	defer func() { done(err) }()

	clients, cerr := s.clientsFor(serverAlias)
	if cerr != nil {
		err = cerr
		return nil, cerr
	}

	out := make(map[string]DetailedMetrics, len(clients))
	for _, c := range clients {
		alias := c.Server().Alias
		entry := DetailedMetrics{ServerAlias: alias, Timestamp: time.Now()}

		cpu, ferr := c.CPUInfo(ctx)
		if ferr == nil {
			var mem map[string]any
			if mem, ferr = c.MemoryInfo(ctx); ferr == nil {
				entry.CPUDetailed = floats(cpu,
					"total", "user", "nice", "system", "idle", "iowait",
					"irq", "softirq", "steal", "guest", "guest_nice")
				entry.MemoryDetailed = floats(mem,
					"total", "available", "percent", "used", "free", "active",
					"inactive", "buffers", "cached", "shared", "slab")

				if diskIO, derr := c.DiskIO(ctx); derr == nil {
					for _, d := range diskIO {
						entry.DiskIO = append(entry.DiskIO, DiskIOStat{
							DiskName:            str(d, "disk_name", "unknown"),
							ReadCount:           num(d, "read_count"),
							WriteCount:          num(d, "write_count"),
							ReadBytes:           num(d, "read_bytes"),
							WriteBytes:          num(d, "write_bytes"),
							ReadTime:            num(d, "read_time"),
							WriteTime:           num(d, "write_time"),
							ReadBytesFormatted:  FormatBytes(num(d, "read_bytes")),
							WriteBytesFormatted: FormatBytes(num(d, "write_bytes")),
						})
					}
				}
				if includeSensors {
					if sensors, serr := c.Sensors(ctx); serr == nil && len(sensors) > 0 {
						entry.Sensors = sensors
					}
				}
			}
		}
		if ferr != nil {
			s.logger.Warn("detailed metrics fetch failed", "server_alias", alias, "error", ferr)
			entry = DetailedMetrics{ServerAlias: alias, Timestamp: time.Now(), Error: ferr.Error()}
		}
		out[alias] = entry
	}
	return out, nil
}

// Filesystem is one mount point's usage.
type Filesystem struct {
	DeviceName     string  `json:"device_name"`
	MountPoint     string  `json:"mnt_point"`
	FSType         string  `json:"fs_type"`
	Size           float64 `json:"size"`
	Used           float64 `json:"used"`
	Free           float64 `json:"free"`
	Percent        float64 `json:"percent"`
	SizeFormatted  string  `json:"size_formatted"`
	UsedFormatted  string  `json:"used_formatted"`
	FreeFormatted  string  `json:"free_formatted"`
	UsageFormatted string  `json:"usage_formatted"`
}

// DiskUsageSummary aggregates one server's filesystems, excluding virtual
// mounts from the totals.
type DiskUsageSummary struct {
	FilesystemCount     int          `json:"filesystem_count"`
	TotalSize           float64      `json:"total_size"`
	TotalUsed           float64      `json:"total_used"`
	TotalFree           float64      `json:"total_free"`
	TotalPercent        float64      `json:"total_percent"`
	TotalSizeFormatted  string       `json:"total_size_formatted"`
	TotalUsedFormatted  string       `json:"total_used_formatted"`
	TotalFreeFormatted  string       `json:"total_free_formatted"`
	CriticalFilesystems []Filesystem `json:"critical_filesystems"`
	WarningFilesystems  []Filesystem `json:"warning_filesystems"`
}

// DiskUsageReport is one server's disk usage result.
type DiskUsageReport struct {
	ServerAlias string            `json:"server_alias"`
	Timestamp   time.Time         `json:"timestamp"`
	Error       string            `json:"error,omitempty"`
	Filesystems []Filesystem      `json:"filesystems,omitempty"`
	Summary     *DiskUsageSummary `json:"summary,omitempty"`
}

// virtualMountPrefixes are excluded from disk totals.
var virtualMountPrefixes = []string{"/dev", "/proc", "/sys", "/run"}

func isVirtualMount(mount string) bool {
	for _, p := range virtualMountPrefixes {
		if strings.HasPrefix(mount, p) {
			return true
		}
	}
	return false
}

// DiskUsage returns per-filesystem usage and aggregate totals per server.
// Filesystems at 95% or more are flagged critical, 85-95% warning.
func (s *Service) DiskUsage(ctx context.Context, serverAlias string) (map[string]DiskUsageReport, error) {
	ctx, done := s.observe(ctx, "get_disk_usage")
	var err error
	defer func() { done(err) }()

	clients, cerr := s.clientsFor(serverAlias)
	if cerr != nil {
		err = cerr
		return nil, cerr
	}

	out := make(map[string]DiskUsageReport, len(clients))
	for _, c := range clients {
		alias := c.Server().Alias
		disks, ferr := c.DiskUsage(ctx)
		if ferr != nil {
			s.logger.Warn("disk usage fetch failed", "server_alias", alias, "error", ferr)
			out[alias] = DiskUsageReport{ServerAlias: alias, Timestamp: time.Now(), Error: ferr.Error()}
			continue
		}

		report := DiskUsageReport{
			ServerAlias: alias,
			Timestamp:   time.Now(),
			Summary:     &DiskUsageSummary{},
		}
		for _, fs := range disks {
			entry := Filesystem{
				DeviceName:     str(fs, "device_name", "unknown"),
				MountPoint:     str(fs, "mnt_point", "unknown"),
				FSType:         str(fs, "fs_type", "unknown"),
				Size:           num(fs, "size"),
				Used:           num(fs, "used"),
				Free:           num(fs, "free"),
				Percent:        num(fs, "percent"),
				SizeFormatted:  FormatBytes(num(fs, "size")),
				UsedFormatted:  FormatBytes(num(fs, "used")),
				FreeFormatted:  FormatBytes(num(fs, "free")),
				UsageFormatted: FormatPercentage(num(fs, "percent")),
			}
			report.Filesystems = append(report.Filesystems, entry)

			if !isVirtualMount(entry.MountPoint) {
				report.Summary.TotalSize += entry.Size
				report.Summary.TotalUsed += entry.Used
				report.Summary.TotalFree += entry.Free
			}
		}

		sort.Slice(report.Filesystems, func(i, j int) bool {
			return report.Filesystems[i].MountPoint < report.Filesystems[j].MountPoint
		})
		for _, fs := range report.Filesystems {
			switch {
			case fs.Percent >= 95:
				report.Summary.CriticalFilesystems = append(report.Summary.CriticalFilesystems, fs)
			case fs.Percent >= 85:
				report.Summary.WarningFilesystems = append(report.Summary.WarningFilesystems, fs)
			}
		}

		report.Summary.FilesystemCount = len(report.Filesystems)
		if report.Summary.TotalSize > 0 {
			report.Summary.TotalPercent = report.Summary.TotalUsed / report.Summary.TotalSize * 100
		}
		report.Summary.TotalSizeFormatted = FormatBytes(report.Summary.TotalSize)
		report.Summary.TotalUsedFormatted = FormatBytes(report.Summary.TotalUsed)
		report.Summary.TotalFreeFormatted = FormatBytes(report.Summary.TotalFree)

		out[alias] = report
	}
	return out, nil
}

// NetworkInterface is one interface's counters.
type NetworkInterface struct {
	InterfaceName    string  `json:"interface_name"`
	RxBytes          float64 `json:"rx_bytes"`
	TxBytes          float64 `json:"tx_bytes"`
	RxPackets        float64 `json:"rx_packets"`
	TxPackets        float64 `json:"tx_packets"`
	RxErrors         float64 `json:"rx_errors"`
	TxErrors         float64 `json:"tx_errors"`
	RxDropped        float64 `json:"rx_dropped"`
	TxDropped        float64 `json:"tx_dropped"`
	RxBytesFormatted string  `json:"rx_bytes_formatted"`
	TxBytesFormatted string  `json:"tx_bytes_formatted"`
	ErrorRate        float64 `json:"error_rate"`
	IsPhysical       bool    `json:"is_physical"`
}

// NetworkSummary aggregates traffic over physical interfaces only.
type NetworkSummary struct {
	InterfaceCount       int      `json:"interface_count"`
	PhysicalInterfaces   int      `json:"physical_interfaces"`
	TotalRxBytes         float64  `json:"total_rx_bytes"`
	TotalTxBytes         float64  `json:"total_tx_bytes"`
	TotalRxPackets       float64  `json:"total_rx_packets"`
	TotalTxPackets       float64  `json:"total_tx_packets"`
	TotalErrors          float64  `json:"total_errors"`
	TotalRxFormatted     string   `json:"total_rx_formatted"`
	TotalTxFormatted     string   `json:"total_tx_formatted"`
	OverallErrorRate     float64  `json:"overall_error_rate"`
	InterfacesWithErrors []string `json:"interfaces_with_errors"`
}

// NetworkReport is one server's network statistics result.
type NetworkReport struct {
	ServerAlias string             `json:"server_alias"`
	Timestamp   time.Time          `json:"timestamp"`
	Error       string             `json:"error,omitempty"`
	Interfaces  []NetworkInterface `json:"interfaces,omitempty"`
	Summary     *NetworkSummary    `json:"summary,omitempty"`
}

// virtualInterfacePrefixes mark interfaces excluded from physical totals.
var virtualInterfacePrefixes = []string{"lo", "docker", "veth", "br-"}

func isPhysicalInterface(name string) bool {
	for _, p := range virtualInterfacePrefixes {
		if strings.HasPrefix(name, p) {
			return false
		}
	}
	return true
}

// NetworkStats returns per-interface counters and physical-interface totals
// per server.
func (s *Service) NetworkStats(ctx context.Context, serverAlias string) (map[string]NetworkReport, error) {
	ctx, done := s.observe(ctx, "get_network_stats")
	var err error
	defer func() { done(err) }()

	clients, cerr := s.clientsFor(serverAlias)
	if cerr != nil {
		err = cerr
		return nil, cerr
	}

	out := make(map[string]NetworkReport, len(clients))
	for _, c := range clients {
		alias := c.Server().Alias
		ifaces, ferr := c.NetworkInterfaces(ctx)
		if ferr != nil {
			s.logger.Warn("network stats fetch failed", "server_alias", alias, "error", ferr)
			out[alias] = NetworkReport{ServerAlias: alias, Timestamp: time.Now(), Error: ferr.Error()}
			continue
		}

		report := NetworkReport{
			ServerAlias: alias,
			Timestamp:   time.Now(),
			Summary:     &NetworkSummary{},
		}
		for _, raw := range ifaces {
			name := str(raw, "interface_name", "unknown")
			entry := NetworkInterface{
				InterfaceName:    name,
				RxBytes:          num(raw, "rx_bytes"),
				TxBytes:          num(raw, "tx_bytes"),
				RxPackets:        num(raw, "rx_packets"),
				TxPackets:        num(raw, "tx_packets"),
				RxErrors:         num(raw, "rx_errors"),
				TxErrors:         num(raw, "tx_errors"),
				RxDropped:        num(raw, "rx_dropped"),
				TxDropped:        num(raw, "tx_dropped"),
				RxBytesFormatted: FormatBytes(num(raw, "rx_bytes")),
				TxBytesFormatted: FormatBytes(num(raw, "tx_bytes")),
				IsPhysical:       isPhysicalInterface(name),
			}
			if packets := entry.RxPackets + entry.TxPackets; packets > 0 {
				entry.ErrorRate = (entry.RxErrors + entry.TxErrors) / packets * 100
			}
			report.Interfaces = append(report.Interfaces, entry)

			if entry.IsPhysical {
				report.Summary.PhysicalInterfaces++
				report.Summary.TotalRxBytes += entry.RxBytes
				report.Summary.TotalTxBytes += entry.TxBytes
				report.Summary.TotalRxPackets += entry.RxPackets
				report.Summary.TotalTxPackets += entry.TxPackets
				report.Summary.TotalErrors += entry.RxErrors + entry.TxErrors
			}
			if entry.RxErrors > 0 || entry.TxErrors > 0 {
				report.Summary.InterfacesWithErrors = append(report.Summary.InterfacesWithErrors, name)
			}
		}

		sort.Slice(report.Interfaces, func(i, j int) bool {
			return report.Interfaces[i].InterfaceName < report.Interfaces[j].InterfaceName
		})
		sort.Strings(report.Summary.InterfacesWithErrors)

		report.Summary.InterfaceCount = len(report.Interfaces)
		report.Summary.TotalRxFormatted = FormatBytes(report.Summary.TotalRxBytes)
		report.Summary.TotalTxFormatted = FormatBytes(report.Summary.TotalTxBytes)
		if packets := report.Summary.TotalRxPackets + report.Summary.TotalTxPackets; packets > 0 {
			report.Summary.OverallErrorRate = report.Summary.TotalErrors / packets * 100
		}

		out[alias] = report
	}
	return out, nil
}

// Process is one process list entry.
type Process struct {
	PID                int     `json:"pid"`
	Name               string  `json:"name"`
	Username           string  `json:"username"`
	CPUPercent         float64 `json:"cpu_percent"`
	MemoryPercent      float64 `json:"memory_percent"`
	MemoryRSS          float64 `json:"memory_rss"`
	MemoryVMS          float64 `json:"memory_vms"`
	Status             string  `json:"status"`
	NumThreads         float64 `json:"num_threads"`
	Nice               float64 `json:"nice"`
	MemoryRSSFormatted string  `json:"memory_rss_formatted"`
	MemoryVMSFormatted string  `json:"memory_vms_formatted"`
	Cmdline            string  `json:"cmdline"`
}

// ProcessSummary describes the full process table behind a top-N view.
type ProcessSummary struct {
	TotalProcesses          int     `json:"total_processes"`
	DisplayedProcesses      int     `json:"displayed_processes"`
	SortedBy                string  `json:"sorted_by"`
	FilterApplied           string  `json:"filter_applied,omitempty"`
	TopProcessesCPUTotal    float64 `json:"top_processes_cpu_total"`
	TopProcessesMemoryTotal float64 `json:"top_processes_memory_total"`
	RunningProcesses        int     `json:"running_processes"`
	SleepingProcesses       int     `json:"sleeping_processes"`
}

// ProcessReport is one server's top-process result.
type ProcessReport struct {
	ServerAlias string          `json:"server_alias"`
	Timestamp   time.Time       `json:"timestamp"`
	Error       string          `json:"error,omitempty"`
	Processes   []Process       `json:"processes,omitempty"`
	Summary     *ProcessSummary `json:"summary,omitempty"`
}

// Process sort orders.
const (
	SortByCPU    = "cpu"
	SortByMemory = "memory"
)

const maxCmdlineLength = 100

// TopProcesses returns the heaviest processes per server, sorted by CPU or
// memory usage. A non-positive limit defaults to 10.
func (s *Service) TopProcesses(ctx context.Context, serverAlias string, limit int, sortBy, filterName string) (map[string]ProcessReport, error) {
	ctx, done := s.observe(ctx, "get_top_processes")
	var err error
	defer func() { done(err) }()

	if limit <= 0 {
		limit = 10
	}
	if sortBy == "" {
		sortBy = SortByCPU
	}
	if sortBy != SortByCPU && sortBy != SortByMemory {
		err = fmt.Errorf("sort_by must be %q or %q", SortByCPU, SortByMemory)
		return nil, err
	}

	clients, cerr := s.clientsFor(serverAlias)
	if cerr != nil {
		err = cerr
		return nil, cerr
	}

	out := make(map[string]ProcessReport, len(clients))
	for _, c := range clients {
		alias := c.Server().Alias
		procs, ferr := c.Processes(ctx)
		if ferr != nil {
			s.logger.Warn("process list fetch failed", "server_alias", alias, "error", ferr)
			out[alias] = ProcessReport{ServerAlias: alias, Timestamp: time.Now(), Error: ferr.Error()}
			continue
		}
		if len(procs) == 0 {
			out[alias] = ProcessReport{ServerAlias: alias, Timestamp: time.Now(), Error: "no process data available"}
			continue
		}

		if filterName != "" {
			filtered := procs[:0]
			for _, p := range procs {
				if strings.Contains(strings.ToLower(str(p, "name", "")), strings.ToLower(filterName)) {
					filtered = append(filtered, p)
				}
			}
			procs = filtered
		}

		sortKey := "cpu_percent"
		if sortBy == SortByMemory {
			sortKey = "memory_percent"
		}
		sort.SliceStable(procs, func(i, j int) bool {
			return num(procs[i], sortKey) > num(procs[j], sortKey)
		})

		report := ProcessReport{
			ServerAlias: alias,
			Timestamp:   time.Now(),
			Summary: &ProcessSummary{
				TotalProcesses: len(procs),
				SortedBy:       sortBy,
				FilterApplied:  filterName,
			},
		}
		for _, p := range procs {
			switch str(p, "status", "") {
			case "running", "R":
				report.Summary.RunningProcesses++
			case "sleeping", "S":
				report.Summary.SleepingProcesses++
			}
		}

		top := procs
		if len(top) > limit {
			top = top[:limit]
		}
		for _, p := range top {
			memInfo, _ := p["memory_info"].(map[string]any)
			entry := Process{
				PID:                int(num(p, "pid")),
				Name:               str(p, "name", "unknown"),
				Username:           str(p, "username", "unknown"),
				CPUPercent:         num(p, "cpu_percent"),
				MemoryPercent:      num(p, "memory_percent"),
				MemoryRSS:          num(memInfo, "rss"),
				MemoryVMS:          num(memInfo, "vms"),
				Status:             str(p, "status", "unknown"),
				NumThreads:         num(p, "num_threads"),
				Nice:               num(p, "nice"),
				MemoryRSSFormatted: FormatBytes(num(memInfo, "rss")),
				MemoryVMSFormatted: FormatBytes(num(memInfo, "vms")),
				Cmdline:            cmdlineString(p),
			}
			report.Processes = append(report.Processes, entry)
			report.Summary.TopProcessesCPUTotal += entry.CPUPercent
			report.Summary.TopProcessesMemoryTotal += entry.MemoryPercent
		}
		report.Summary.DisplayedProcesses = len(report.Processes)

		out[alias] = report
	}
	return out, nil
}

// cmdlineString joins and truncates the process command line, falling back to
// the process name when the agent omits it.
func cmdlineString(p map[string]any) string {
	raw, _ := p["cmdline"].([]any)
	parts := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return str(p, "name", "unknown")
	}
	cmd := strings.Join(parts, " ")
	if len(cmd) > maxCmdlineLength {
		cmd = cmd[:maxCmdlineLength-3] + "..."
	}
	return cmd
}

// Container is one container's stats.
type Container struct {
	ID                   string  `json:"id"`
	Name                 string  `json:"name"`
	Image                string  `json:"image"`
	Status               string  `json:"status"`
	IsRunning            bool    `json:"is_running"`
	CPUPercent           float64 `json:"cpu_percent"`
	MemoryUsage          float64 `json:"memory_usage"`
	MemoryLimit          float64 `json:"memory_limit"`
	MemoryPercent        float64 `json:"memory_percent"`
	NetworkRx            float64 `json:"network_rx"`
	NetworkTx            float64 `json:"network_tx"`
	IORead               float64 `json:"io_r"`
	IOWrite              float64 `json:"io_w"`
	MemoryUsageFormatted string  `json:"memory_usage_formatted"`
	MemoryLimitFormatted string  `json:"memory_limit_formatted"`
	NetworkRxFormatted   string  `json:"network_rx_formatted"`
	NetworkTxFormatted   string  `json:"network_tx_formatted"`
}

// ContainerSummary aggregates one server's containers.
type ContainerSummary struct {
	TotalContainers      int     `json:"total_containers"`
	RunningContainers    int     `json:"running_containers"`
	StoppedContainers    int     `json:"stopped_containers"`
	DisplayedContainers  int     `json:"displayed_containers"`
	IncludeStopped       bool    `json:"include_stopped"`
	ContainersAvailable  bool    `json:"containers_available"`
	TotalCPUUsage        float64 `json:"total_cpu_usage"`
	TotalMemoryUsage     float64 `json:"total_memory_usage"`
	TotalMemoryFormatted string  `json:"total_memory_usage_formatted"`
}

// ContainerReport is one server's container result.
type ContainerReport struct {
	ServerAlias string           `json:"server_alias"`
	Timestamp   time.Time        `json:"timestamp"`
	Error       string           `json:"error,omitempty"`
	Containers  []Container      `json:"containers"`
	Summary     ContainerSummary `json:"summary"`
}

// Containers returns container stats per server, sorted by CPU usage.
// Stopped containers are excluded unless requested; servers without container
// support return an empty report with ContainersAvailable false.
func (s *Service) Containers(ctx context.Context, serverAlias string, includeStopped bool) (map[string]ContainerReport, error) {
	ctx, done := s.observe(ctx, "get_containers")
	var err error
	defer func() { done(err) }()

	clients, cerr := s.clientsFor(serverAlias)
	if cerr != nil {
		err = cerr
		return nil, cerr
	}

	out := make(map[string]ContainerReport, len(clients))
	for _, c := range clients {
		alias := c.Server().Alias
		containers, ferr := c.Containers(ctx)
		if ferr != nil {
			s.logger.Warn("container fetch failed", "server_alias", alias, "error", ferr)
			out[alias] = ContainerReport{
				ServerAlias: alias,
				Timestamp:   time.Now(),
				Error:       ferr.Error(),
				Containers:  []Container{},
			}
			continue
		}

		report := ContainerReport{
			ServerAlias: alias,
			Timestamp:   time.Now(),
			Containers:  []Container{},
			Summary:     ContainerSummary{IncludeStopped: includeStopped},
		}
		if len(containers) == 0 {
			out[alias] = report
			continue
		}
		report.Summary.ContainersAvailable = true
		report.Summary.TotalContainers = len(containers)

		for _, raw := range containers {
			status := str(raw, "Status", "unknown")
			isRunning := strings.HasPrefix(status, "Up")
			if isRunning {
				report.Summary.RunningContainers++
			} else {
				report.Summary.StoppedContainers++
				if !includeStopped {
					continue
				}
			}

			id := str(raw, "Id", "unknown")
			if len(id) > 12 {
				id = id[:12]
			}
			entry := Container{
				ID:                   id,
				Name:                 str(raw, "name", "unknown"),
				Image:                containerImage(raw),
				Status:               status,
				IsRunning:            isRunning,
				CPUPercent:           num(raw, "cpu_percent"),
				MemoryUsage:          num(raw, "memory_usage"),
				MemoryLimit:          num(raw, "memory_limit"),
				MemoryPercent:        num(raw, "memory_percent"),
				NetworkRx:            num(raw, "network_rx"),
				NetworkTx:            num(raw, "network_tx"),
				IORead:               num(raw, "io_r"),
				IOWrite:              num(raw, "io_w"),
				MemoryUsageFormatted: FormatBytes(num(raw, "memory_usage")),
				MemoryLimitFormatted: FormatBytes(num(raw, "memory_limit")),
				NetworkRxFormatted:   FormatBytes(num(raw, "network_rx")),
				NetworkTxFormatted:   FormatBytes(num(raw, "network_tx")),
			}
			report.Containers = append(report.Containers, entry)
			report.Summary.TotalCPUUsage += entry.CPUPercent
			report.Summary.TotalMemoryUsage += entry.MemoryUsage
		}

		sort.SliceStable(report.Containers, func(i, j int) bool {
			return report.Containers[i].CPUPercent > report.Containers[j].CPUPercent
		})
		report.Summary.DisplayedContainers = len(report.Containers)
		report.Summary.TotalMemoryFormatted = FormatBytes(report.Summary.TotalMemoryUsage)

		out[alias] = report
	}
	return out, nil
}

// containerImage handles both string and list-valued image fields.
func containerImage(raw map[string]any) string {
	switch v := raw["image"].(type) {
	case string:
		return v
	case []any:
		if len(v) > 0 {
			if s, ok := v[0].(string); ok {
				return s
			}
		}
	}
	return "unknown"
}
