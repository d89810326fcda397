package models

// Requests for the status HTTP endpoints.

type ObservationsRequest struct {
	Source    string `query:"source" json:"source" validate:"omitempty,oneof=live fallback-parse-error fallback-network-error"`
	Anomalous string `query:"anomalous" json:"anomalous" validate:"omitempty,oneof=true false"`
	Limit     int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=1000"`
}

type ObservationRequest struct {
	Symbol string `param:"symbol" json:"symbol" validate:"required,max=32"`
}

// Health is the body of the liveness endpoint.
type Health struct {
	Sink  string `json:"sink"`
	Ready bool   `json:"ready"`
}
