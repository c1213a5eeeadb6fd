// Package model contains core data types for the project.
package model

const (
	PerfBlobDataType = "LINUX_PERF_BLOB" // DataType of the only supported record family.

	RegionDim   = "Region"       // First dimension, carries the record's Host.
	InstanceDim = "InstanceName" // Second dimension, carries the item's InstanceName.

	// KeySeparator joins identity components into a cache key. Names
	// containing it are rejected at decode time.
	KeySeparator = "\x00"
)

// RawRecord is a structured record as received from the supplier.
// Numbers are expected as json.Number.
type RawRecord map[string]any

// PerfRecord is the typed shape of a LINUX_PERF_BLOB record.
type PerfRecord struct {
	DataType  string     `json:"DataType"`
	DataItems []DataItem `json:"DataItems"`
}

// DataItem is one host's sample window.
type DataItem struct {
	Timestamp    string       `json:"Timestamp"`    // RFC 3339 UTC, fractional seconds.
	Host         string       `json:"Host"`         // Region dimension value.
	ObjectName   string       `json:"ObjectName"`   // Metric namespace.
	InstanceName string       `json:"InstanceName"` // InstanceName dimension value.
	Collections  []Collection `json:"Collections"`
}

// Collection is a single counter reading.
type Collection struct {
	CounterName string `json:"CounterName"`
	Value       any    `json:"Value"` // Number or numeric string.
}

// MetricIdentity identifies a backend metric handle. Dimension values are
// not part of it.
type MetricIdentity struct {
	Namespace string `json:"namespace"`
	Metric    string `json:"metric"`
	Dim1Name  string `json:"dim1"`
	Dim2Name  string `json:"dim2"`
}

// Key serializes the identity for use as a map key.
func (id MetricIdentity) Key() string {
	return id.Namespace + KeySeparator + id.Metric + KeySeparator + id.Dim1Name + KeySeparator + id.Dim2Name
}

// Sample is one decoded counter value ready for emission.
type Sample struct {
	Ticks     int64
	Host      string
	Namespace string
	Instance  string
	Counter   string
	Value     int64
}

// Identity returns the identity the sample is emitted under.
func (s Sample) Identity() MetricIdentity {
	return MetricIdentity{
		Namespace: s.Namespace,
		Metric:    s.Counter,
		Dim1Name:  RegionDim,
		Dim2Name:  InstanceDim,
	}
}
