package service

// DatabaseStatusResponse wraps values
// returned by calls to /status/database
type DatabaseStatusResponse struct {
	TotalAggregatedRequestMetrics int64 `json:"total_aggregated_request_metrics"` // total number of rows in the aggregated_request_metrics table
}

// ErrorResponse is the body written for requests the pipeline could not serve
type ErrorResponse struct {
	Errors []string `json:"errors"`
}
