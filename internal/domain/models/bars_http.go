package models

// Requests for the read API endpoints. Defined in domain for consistency and reuse.

type CandlesRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	TF     string `query:"tf" json:"tf" default:"1m"`
	From   string `query:"from" json:"from" validate:"required"`
	To     string `query:"to" json:"to" validate:"required"`
	Limit  int    `query:"limit" json:"limit" default:"10000" validate:"gte=1,lte=50000"`
}

type GapsRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	From   string `query:"from" json:"from" validate:"required"`
	To     string `query:"to" json:"to" validate:"required"`
}

type CoverageRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	From   string `query:"from" json:"from" validate:"required"`
	To     string `query:"to" json:"to" validate:"required"`
}

// GapRepairRequest is the payload of an on-demand gap-repair message.
type GapRepairRequest struct {
	Symbol string `json:"symbol" validate:"required"`
	From   string `json:"from" validate:"required"`
	To     string `json:"to" validate:"required"`
}
