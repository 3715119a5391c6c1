package domain

import "time"

// Check tags read from the provider's result list.
const (
	CheckCompanySanctions    = "COMPANY_SANCTIONS"
	CheckShipSanctions       = "SANCTIONS"
	CheckShipMovementHistory = "SHIP_MOVE_HIST"
	CheckPSCHistory          = "PSC_HISTORY"
)

// ScreeningResult is written into a notification when a screening session resolves.
// A nil check value means the provider did not report that tag.
type ScreeningResult struct {
	TransactionID       string    `json:"transaction_id"`
	ScreeningID         string    `json:"screening_id,omitempty"`
	Status              string    `json:"screening_status"`
	OverallSeverity     string    `json:"overall_severity"`
	CompanySanctions    *string   `json:"company_sanctions"`
	ShipSanctions       *string   `json:"ship_sanctions"`
	ShipMovementHistory *string   `json:"ship_movement_history"`
	PSCHistory          *string   `json:"psc_history"`
	ScreenedAt          time.Time `json:"screened_at"`
}
