package models

// WindowMetrics is the return over one lookback window.
type WindowMetrics struct {
	ReturnPct float64 `json:"returnPct"`
	APYPct    float64 `json:"apyPct"`
	Days      int     `json:"days"`
}

// PerformanceMetrics are derived from one value series and never stored
// except in the short-lived metrics cache. Windows lacking two points are
// absent from Windows.
type PerformanceMetrics struct {
	Windows            map[string]WindowMetrics `json:"windows"`
	VolatilityPct      float64                  `json:"volatilityPct"`
	MaxDrawdownPct     float64                  `json:"maxDrawdownPct"`
	SharpeRatio        float64                  `json:"sharpeRatio"`
	MaxValue           float64                  `json:"maxValue"`
	MinValue           float64                  `json:"minValue"`
	CurrentValue       float64                  `json:"currentValue"`
	CurrentDrawdownPct float64                  `json:"currentDrawdownPct"`
	Points             int                      `json:"points"`
}

// Window keys used in PerformanceMetrics.Windows.
const (
	WindowAllTime = "all_time"
)
