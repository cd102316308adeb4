package services

import "fmt"

// AmountMismatchError reports that the client-declared order total and the
// gateway-confirmed charged amount disagree beyond the tolerance. A tampered
// client total must never silently become the recorded order total.
type AmountMismatchError struct {
	ExpectedTotal float64
	GatewayAmount float64
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("amount mismatch: client total %.2f, gateway amount %.2f", e.ExpectedTotal, e.GatewayAmount)
}

// ReferenceMismatchError reports that the client-supplied tx_ref and the
// gateway's reference disagree.
type ReferenceMismatchError struct {
	ClientTxRef  string
	GatewayTxRef string
}

func (e *ReferenceMismatchError) Error() string {
	return fmt.Sprintf("tx_ref mismatch: client %q, gateway %q", e.ClientTxRef, e.GatewayTxRef)
}

// PersistenceError reports a failed database write. After the gateway has
// confirmed the charge this is the dangerous window: the charge exists with
// the gateway but the local order may not. The tx_ref stays replayable so
// the client can resubmit and the idempotency guard resumes the pipeline.
type PersistenceError struct {
	Step string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure at %s: %v", e.Step, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
