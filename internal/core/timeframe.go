package core

// Timeframe is a candle duration in seconds.
type Timeframe int64

const (
	TimeframeM1  Timeframe = 60
	TimeframeM3  Timeframe = 180
	TimeframeM5  Timeframe = 300
	TimeframeM15 Timeframe = 900
	TimeframeM30 Timeframe = 1800
	TimeframeH1  Timeframe = 3600
	TimeframeH2  Timeframe = 7200
	TimeframeH4  Timeframe = 14400
	TimeframeH6  Timeframe = 21600
	TimeframeH12 Timeframe = 43200
	TimeframeD1  Timeframe = 86400
	TimeframeW1  Timeframe = 604800
	TimeframeMN1 Timeframe = 2592000
)
