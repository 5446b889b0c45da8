package domain

// Namespace prefixes every emitted metric line
const Namespace = "autometrics"

// MetricType selects the output template of a record
type MetricType string

const (
	MetricCounter MetricType = "counter"
	MetricMeter   MetricType = "meter"
	MetricTimer   MetricType = "timer"
	MetricUnknown MetricType = "unknown"
)

// ParseMetricType maps a record "type" value to a MetricType.
// Anything unrecognized (including empty) is MetricUnknown.
func ParseMetricType(s string) MetricType {
	switch MetricType(s) {
	case MetricCounter, MetricMeter, MetricTimer:
		return MetricType(s)
	default:
		return MetricUnknown
	}
}

// Category returns the plural category segment used in the metric name
func (t MetricType) Category() string {
	switch t {
	case MetricCounter:
		return "counters"
	case MetricMeter:
		return "meters"
	case MetricTimer:
		return "timers"
	default:
		return ""
	}
}

// MetricRecord is a record extracted from one JSON log line
type MetricRecord struct {
	Name      string
	Type      MetricType
	Value     string // Kept verbatim from the input
	Timestamp int64  // Unix seconds
	Tags      map[string]string
	HasTags   bool // Tags field was present in the input
}
