package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/prometheus/common/model"
	"github.com/sirupsen/logrus"

	"github.com/valter-silva-au/opswatch/pkg/models"
)

// PromQL expressions for the node-level convenience readings.
const (
	cpuQuery          = `100 - (avg(rate(node_cpu_seconds_total{mode="idle"}[5m])) * 100)`
	memTotalQuery     = `node_memory_MemTotal_bytes`
	memAvailableQuery = `node_memory_MemAvailable_bytes`
	diskQuery         = `100 - (node_filesystem_avail_bytes{fstype!="tmpfs",fstype!="ramfs"} / node_filesystem_size_bytes{fstype!="tmpfs",fstype!="ramfs"} * 100)`
	netErrorsQuery    = `sum(rate(node_network_receive_errs_total[5m]) + rate(node_network_transmit_errs_total[5m]))`
	netReceiveQuery   = `sum by (device) (node_network_receive_bytes_total{device!="lo"})`
	netTransmitQuery  = `sum by (device) (node_network_transmit_bytes_total{device!="lo"})`
	netUpQuery        = `node_network_up{device!="lo"}`
	tcpEstabQuery     = `node_netstat_Tcp_CurrEstab`
	topCPUQueryFmt    = `topk(%d, sum by (groupname) (rate(namedprocess_namegroup_cpu_seconds_total[5m])) * 100)`
	topMemoryQueryFmt = `topk(%d, sum by (groupname) (namedprocess_namegroup_memory_bytes{memtype="resident"}))`
)

const bytesPerGB = 1024 * 1024 * 1024

// MetricsClient queries the metrics backend. Instant and range queries use
// raw PromQL; the remaining methods are convenience readings built on top of
// them for the standard node exporter metrics.
type MetricsClient interface {
	// CurrentValue runs an instant query and returns the first sample.
	// An empty result is reported as ErrMalformed since exactly one
	// current reading was expected.
	CurrentValue(ctx context.Context, query string) (models.MetricSnapshot, error)

	// RangeValues runs a range query. An empty result is valid and yields
	// an empty slice, not an error.
	RangeValues(ctx context.Context, query string, start, end time.Time, step time.Duration) ([]models.MetricSnapshot, error)

	CurrentCPU(ctx context.Context) (float64, error)
	MemoryInfo(ctx context.Context) (models.MemoryInfo, error)
	DiskUsage(ctx context.Context) ([]models.DiskUsage, error)
	NetworkErrorRate(ctx context.Context) (float64, error)

	// NetworkStatus gathers per-interface traffic counters, the
	// established TCP connection count and the aggregate error rate.
	// Interfaces are sorted by device name.
	NetworkStatus(ctx context.Context) (models.NetworkStatus, error)

	// TopProcessesByCPU and TopProcessesByMemory rank process groups
	// reported by the process exporter, highest consumer first. An empty
	// result is valid when the exporter is absent.
	TopProcessesByCPU(ctx context.Context, limit int) ([]models.ProcessUsage, error)
	TopProcessesByMemory(ctx context.Context, limit int) ([]models.ProcessUsage, error)

	// CheckHealth reports whether the backend answers its health endpoint.
	CheckHealth(ctx context.Context) bool
}

// prometheusClient implements MetricsClient against the Prometheus HTTP API v1.
type prometheusClient struct {
	baseURL string
	client  *http.Client
	log     *logrus.Entry
}

// NewPrometheusClient creates a MetricsClient for the Prometheus server at
// baseURL. All queries share the given timeout.
func NewPrometheusClient(baseURL string, timeout time.Duration) MetricsClient {
	return &prometheusClient{
		baseURL: trimBaseURL(baseURL),
		client:  &http.Client{Timeout: timeout},
		log:     logrus.WithField("component", "prometheus"),
	}
}

// apiResponse is the envelope every Prometheus API endpoint answers with.
type apiResponse struct {
	Status string `json:"status"`
	Data   struct {
		ResultType string          `json:"resultType"`
		Result     json.RawMessage `json:"result"`
	} `json:"data"`
	ErrorType string `json:"errorType,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (c *prometheusClient) getJSON(ctx context.Context, rawURL string) (*apiResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyTransport(err, ErrTimeout, ErrUnreachable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransport(err, ErrTimeout, ErrUnreachable)
	}

	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: status %d: %v", ErrMalformed, resp.StatusCode, err)
	}
	if parsed.Status != "success" {
		return nil, fmt.Errorf("%w: %s: %s", ErrMalformed, parsed.ErrorType, parsed.Error)
	}
	return &parsed, nil
}

// query runs an instant query and decodes the result into a sample vector.
func (c *prometheusClient) query(ctx context.Context, promql string) (model.Vector, error) {
	q := url.Values{"query": {promql}}
	parsed, err := c.getJSON(ctx, c.baseURL+"/api/v1/query?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var vec model.Vector
	if err := json.Unmarshal(parsed.Data.Result, &vec); err != nil {
		return nil, fmt.Errorf("%w: decoding vector: %v", ErrMalformed, err)
	}
	return vec, nil
}

func (c *prometheusClient) CurrentValue(ctx context.Context, query string) (models.MetricSnapshot, error) {
	vec, err := c.query(ctx, query)
	if err != nil {
		return models.MetricSnapshot{}, err
	}
	if len(vec) == 0 {
		return models.MetricSnapshot{}, fmt.Errorf("%w: empty result for instant query", ErrMalformed)
	}
	return sampleToSnapshot(vec[0], query), nil
}

func (c *prometheusClient) RangeValues(ctx context.Context, query string, start, end time.Time, step time.Duration) ([]models.MetricSnapshot, error) {
	q := url.Values{
		"query": {query},
		"start": {strconv.FormatInt(start.Unix(), 10)},
		"end":   {strconv.FormatInt(end.Unix(), 10)},
		"step":  {strconv.FormatInt(int64(step.Seconds()), 10) + "s"},
	}
	parsed, err := c.getJSON(ctx, c.baseURL+"/api/v1/query_range?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var mat model.Matrix
	if err := json.Unmarshal(parsed.Data.Result, &mat); err != nil {
		return nil, fmt.Errorf("%w: decoding matrix: %v", ErrMalformed, err)
	}

	snapshots := make([]models.MetricSnapshot, 0, len(mat))
	for _, series := range mat {
		name, labels := splitMetric(series.Metric, query)
		for _, pair := range series.Values {
			snapshots = append(snapshots, models.MetricSnapshot{
				Name:      name,
				Value:     float64(pair.Value),
				Timestamp: pair.Timestamp.Time(),
				Labels:    labels,
			})
		}
	}
	return snapshots, nil
}

func (c *prometheusClient) CurrentCPU(ctx context.Context) (float64, error) {
	snap, err := c.CurrentValue(ctx, cpuQuery)
	if err != nil {
		return 0, err
	}
	c.log.Debugf("cpu usage %.2f%%", snap.Value)
	return snap.Value, nil
}

func (c *prometheusClient) MemoryInfo(ctx context.Context) (models.MemoryInfo, error) {
	total, err := c.CurrentValue(ctx, memTotalQuery)
	if err != nil {
		return models.MemoryInfo{}, err
	}
	available, err := c.CurrentValue(ctx, memAvailableQuery)
	if err != nil {
		return models.MemoryInfo{}, err
	}
	if total.Value <= 0 {
		return models.MemoryInfo{}, fmt.Errorf("%w: non-positive total memory", ErrMalformed)
	}

	used := total.Value - available.Value
	return models.MemoryInfo{
		TotalGB:     total.Value / bytesPerGB,
		UsedGB:      used / bytesPerGB,
		AvailableGB: available.Value / bytesPerGB,
		Percent:     used / total.Value * 100,
	}, nil
}

func (c *prometheusClient) DiskUsage(ctx context.Context) ([]models.DiskUsage, error) {
	vec, err := c.query(ctx, diskQuery)
	if err != nil {
		return nil, err
	}

	disks := make([]models.DiskUsage, 0, len(vec))
	for _, sample := range vec {
		disks = append(disks, models.DiskUsage{
			Device:     labelOr(sample.Metric, "device", "unknown"),
			Mountpoint: labelOr(sample.Metric, "mountpoint", "/"),
			Percent:    float64(sample.Value),
		})
	}
	return disks, nil
}

func (c *prometheusClient) NetworkErrorRate(ctx context.Context) (float64, error) {
	snap, err := c.CurrentValue(ctx, netErrorsQuery)
	if err != nil {
		return 0, err
	}
	return snap.Value, nil
}

func (c *prometheusClient) NetworkStatus(ctx context.Context) (models.NetworkStatus, error) {
	rx, err := c.query(ctx, netReceiveQuery)
	if err != nil {
		return models.NetworkStatus{}, err
	}
	tx, err := c.query(ctx, netTransmitQuery)
	if err != nil {
		return models.NetworkStatus{}, err
	}
	up, err := c.query(ctx, netUpQuery)
	if err != nil {
		return models.NetworkStatus{}, err
	}

	byDevice := make(map[string]*models.InterfaceTraffic)
	iface := func(metric model.Metric) *models.InterfaceTraffic {
		device := labelOr(metric, "device", "unknown")
		entry, ok := byDevice[device]
		if !ok {
			entry = &models.InterfaceTraffic{Device: device}
			byDevice[device] = entry
		}
		return entry
	}
	for _, sample := range rx {
		iface(sample.Metric).ReceivedGB = float64(sample.Value) / bytesPerGB
	}
	for _, sample := range tx {
		iface(sample.Metric).TransmittedGB = float64(sample.Value) / bytesPerGB
	}
	for _, sample := range up {
		iface(sample.Metric).Up = sample.Value > 0
	}

	status := models.NetworkStatus{Interfaces: make([]models.InterfaceTraffic, 0, len(byDevice))}
	for _, entry := range byDevice {
		status.Interfaces = append(status.Interfaces, *entry)
	}
	sort.Slice(status.Interfaces, func(i, j int) bool {
		return status.Interfaces[i].Device < status.Interfaces[j].Device
	})

	// The netstat and rate series may legitimately be absent; an empty
	// vector is zero, not an error.
	if tcp, err := c.query(ctx, tcpEstabQuery); err != nil {
		return models.NetworkStatus{}, err
	} else if len(tcp) > 0 {
		status.TCPEstablished = int(tcp[0].Value)
	}
	if errRate, err := c.query(ctx, netErrorsQuery); err != nil {
		return models.NetworkStatus{}, err
	} else if len(errRate) > 0 {
		status.ErrorRate = float64(errRate[0].Value)
	}
	return status, nil
}

func (c *prometheusClient) TopProcessesByCPU(ctx context.Context, limit int) ([]models.ProcessUsage, error) {
	vec, err := c.query(ctx, fmt.Sprintf(topCPUQueryFmt, limit))
	if err != nil {
		return nil, err
	}

	procs := make([]models.ProcessUsage, 0, len(vec))
	for _, sample := range vec {
		procs = append(procs, models.ProcessUsage{
			Name:       labelOr(sample.Metric, "groupname", "unknown"),
			CPUPercent: float64(sample.Value),
		})
	}
	sort.Slice(procs, func(i, j int) bool { return procs[i].CPUPercent > procs[j].CPUPercent })
	return procs, nil
}

func (c *prometheusClient) TopProcessesByMemory(ctx context.Context, limit int) ([]models.ProcessUsage, error) {
	vec, err := c.query(ctx, fmt.Sprintf(topMemoryQueryFmt, limit))
	if err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		return nil, nil
	}
	total, err := c.CurrentValue(ctx, memTotalQuery)
	if err != nil {
		return nil, err
	}

	procs := make([]models.ProcessUsage, 0, len(vec))
	for _, sample := range vec {
		usage := models.ProcessUsage{
			Name:     labelOr(sample.Metric, "groupname", "unknown"),
			MemoryGB: float64(sample.Value) / bytesPerGB,
		}
		if total.Value > 0 {
			usage.MemoryPercent = float64(sample.Value) / total.Value * 100
		}
		procs = append(procs, usage)
	}
	sort.Slice(procs, func(i, j int) bool { return procs[i].MemoryGB > procs[j].MemoryGB })
	return procs, nil
}

func (c *prometheusClient) CheckHealth(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/-/healthy", nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warnf("health check failed: %v", err)
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// sampleToSnapshot converts an instant-query sample, falling back to the
// query text as the metric name when the backend dropped __name__.
func sampleToSnapshot(sample *model.Sample, query string) models.MetricSnapshot {
	name, labels := splitMetric(sample.Metric, query)
	return models.MetricSnapshot{
		Name:      name,
		Value:     float64(sample.Value),
		Timestamp: sample.Timestamp.Time(),
		Labels:    labels,
	}
}

func splitMetric(metric model.Metric, fallbackName string) (string, map[string]string) {
	name := fallbackName
	labels := make(map[string]string, len(metric))
	for k, v := range metric {
		if k == model.MetricNameLabel {
			name = string(v)
			continue
		}
		labels[string(k)] = string(v)
	}
	if len(labels) == 0 {
		labels = nil
	}
	return name, labels
}

func labelOr(metric model.Metric, label, fallback string) string {
	if v, ok := metric[model.LabelName(label)]; ok {
		return string(v)
	}
	return fallback
}

func trimBaseURL(u string) string {
	for len(u) > 0 && u[len(u)-1] == '/' {
		u = u[:len(u)-1]
	}
	return u
}
