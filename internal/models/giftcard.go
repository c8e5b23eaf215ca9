package models

// IssuedGiftCard is the redemption payload returned to the kiosk after a
// gift card purchase. Codes are never persisted server-side.
type IssuedGiftCard struct {
	Brand     string  `json:"brand"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	Reference string  `json:"reference"`
	Code      string  `json:"code,omitempty"`
	URL       string  `json:"url,omitempty"`
	ExpiresAt string  `json:"expires_at,omitempty"`
}

type CancelGiftCardRequest struct {
	Brand           string `json:"brand" binding:"required"`
	Reference       string `json:"reference" binding:"required"`
	ClientRequestID string `json:"client_request_id" binding:"required"`
}
