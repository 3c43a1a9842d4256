package orchestrator

import "fmt"

// User-visible messages surfaced by the orchestrator. Handlers localize
// them before rendering.
const (
	MsgNoChanges      = "No changes selected."
	MsgNoEligible     = "Select at least one eligible registrant."
	MsgPaymentStart   = "Could not start payment."
	MsgCaptureFailed  = "Payment capture failed."
	MsgDetailsMissing = "Details Missing"
)

// InputError means the request itself was unusable: empty delta, missing
// ids, no eligible registrant. Retrying without changing the input will
// fail again.
type InputError struct {
	Msg string
}

func (e *InputError) Error() string { return e.Msg }

// PaymentCaptureError means the capture call failed. The lock has been
// released, so the user may safely try again.
type PaymentCaptureError struct {
	Msg string
	Err error
}

func (e *PaymentCaptureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *PaymentCaptureError) Unwrap() error { return e.Err }

// StaleStateError means the pending intent is gone and the capture never
// finished: there is nothing safe left to do with this order.
type StaleStateError struct {
	Msg string
}

func (e *StaleStateError) Error() string { return e.Msg }
