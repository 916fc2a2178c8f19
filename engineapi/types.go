// Package engineapi defines the wire types of the settlement HTTP API
// and the mapping from engine errors to stable error codes. It has no
// dependency on the HTTP framework so other transports can reuse it.
package engineapi

import (
	"errors"
	"net/http"

	"github.com/vicodeox/stackAuc/core"
)

// Stable error codes returned in API responses. Clients branch on these
// rather than on message text.
const (
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeNotWhitelisted    = "NOT_WHITELISTED"
	CodeEmergencyStop     = "EMERGENCY_STOP"
	CodeReentrancy        = "REENTRANCY"
	CodeInvalidState      = "INVALID_STATE"
	CodeNotFound          = "NOT_FOUND"
	CodeInvalidParameters = "INVALID_PARAMETERS"
	CodeBidTooLow         = "BID_TOO_LOW"
	CodeBelowReserve      = "BELOW_RESERVE"
	CodeAlreadyRefunded   = "ALREADY_REFUNDED"
	CodeStillLeading      = "STILL_LEADING"
	CodeAlreadyFinalized  = "ALREADY_FINALIZED"
	CodeTransferFailed    = "TRANSFER_FAILED"
	CodeInternal          = "INTERNAL"
)

// ErrorCode classifies an engine error into its stable code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, core.ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, core.ErrNotWhitelisted):
		return CodeNotWhitelisted
	case errors.Is(err, core.ErrEmergencyStop):
		return CodeEmergencyStop
	case errors.Is(err, core.ErrReentrancy):
		return CodeReentrancy
	case errors.Is(err, core.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, core.ErrBidTooLow):
		return CodeBidTooLow
	case errors.Is(err, core.ErrBelowReserve):
		return CodeBelowReserve
	case errors.Is(err, core.ErrAlreadyRefunded):
		return CodeAlreadyRefunded
	case errors.Is(err, core.ErrStillLeading):
		return CodeStillLeading
	case errors.Is(err, core.ErrAlreadyFinalized):
		return CodeAlreadyFinalized
	case errors.Is(err, core.ErrInvalidState):
		return CodeInvalidState
	case errors.Is(err, core.ErrInvalidParameters):
		return CodeInvalidParameters
	case errors.Is(err, core.ErrTransferFailed):
		return CodeTransferFailed
	default:
		return CodeInternal
	}
}

// HTTPStatus maps an error code to the status of the API response.
func HTTPStatus(code string) int {
	switch code {
	case CodeUnauthorized, CodeNotWhitelisted:
		return http.StatusForbidden
	case CodeEmergencyStop:
		return http.StatusServiceUnavailable
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidParameters, CodeBidTooLow, CodeBelowReserve:
		return http.StatusBadRequest
	case CodeInvalidState, CodeReentrancy, CodeAlreadyRefunded,
		CodeStillLeading, CodeAlreadyFinalized:
		return http.StatusConflict
	case CodeTransferFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse is the uniform error body of every failed API call.
type ErrorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// NewErrorResponse classifies err and builds the response body.
func NewErrorResponse(err error) (int, ErrorResponse) {
	code := ErrorCode(err)
	return HTTPStatus(code), ErrorResponse{Code: code, Error: err.Error()}
}

// CreateAuctionRequest mirrors engine.CreateAuctionParams on the wire.
type CreateAuctionRequest struct {
	Caller          string             `json:"caller" binding:"required"`
	ItemID          string             `json:"item_id" binding:"required"`
	Kind            string             `json:"kind" binding:"required"`
	Token           string             `json:"token" binding:"required"`
	StartPrice      uint64             `json:"start_price" binding:"required"`
	ReservePrice    uint64             `json:"reserve_price"`
	EndPrice        uint64             `json:"end_price"`
	StartTick       uint64             `json:"start_tick"`
	Duration        uint64             `json:"duration" binding:"required"`
	AntiSnipeWindow uint64             `json:"anti_snipe_window"`
	ExtensionTicks  uint64             `json:"extension_ticks"`
	Split           *core.PaymentSplit `json:"split,omitempty"`
}

type CreateAuctionResponse struct {
	AuctionID uint64 `json:"auction_id"`
}

type PlaceBidRequest struct {
	Bidder string `json:"bidder" binding:"required"`
	Amount uint64 `json:"amount" binding:"required"`
}

// AuctionResponse combines the stored auction row with its tick-resolved
// status and current price.
type AuctionResponse struct {
	Auction       *core.Auction `json:"auction"`
	ResolvedState core.Status   `json:"resolved_status"`
	CurrentPrice  uint64        `json:"current_price"`
}

type CallerRequest struct {
	Caller string `json:"caller" binding:"required"`
}

type RefundRequest struct {
	Caller string `json:"caller" binding:"required"`
	Bidder string `json:"bidder" binding:"required"`
}

type SplitRequest struct {
	Caller string             `json:"caller" binding:"required"`
	Split  *core.PaymentSplit `json:"split" binding:"required"`
}

type PrincipalRequest struct {
	Caller    string `json:"caller" binding:"required"`
	Principal string `json:"principal" binding:"required"`
}

type FlagRequest struct {
	Caller  string `json:"caller" binding:"required"`
	Enabled bool   `json:"enabled"`
}

type FeeRateRequest struct {
	Caller     string `json:"caller" binding:"required"`
	FeeRateBps uint64 `json:"fee_rate_bps"`
}

// ReceiptResponse carries the decoded receipt next to the base64 signed
// envelope clients feed to the offline validator.
type ReceiptResponse struct {
	Receipt *core.SettlementReceipt `json:"receipt"`
	Signed  []byte                  `json:"signed"` // base64 in JSON
}

// SecurityEventResponse pairs an audit log entry with its integrity
// hash so external audit consumers can detect tampering in transit.
type SecurityEventResponse struct {
	Event *core.SecurityEvent `json:"event"`
	Hash  string              `json:"hash"`
}

// NewSecurityEventResponse stamps the event with its hash.
func NewSecurityEventResponse(ev *core.SecurityEvent) SecurityEventResponse {
	return SecurityEventResponse{Event: ev, Hash: core.ComputeEventHash(ev)}
}
