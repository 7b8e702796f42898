// Package tracing names the reasons the EVM Adapter's flush phase logs for
// each account delta it materializes into the State Store — useful for
// debugging a divergent state root without re-running the interpreter.
package tracing

// DeltaReason describes why an account ended up in the adapter's flush set.
type DeltaReason int

const (
	DeltaUnspecified DeltaReason = iota
	DeltaSelfDestruct
	DeltaBalanceChange
	DeltaNonceChange
	DeltaCodeDeployed
	DeltaStorageWrite
)

// String returns a human-readable label for the reason, used as a
// structured-log value.
func (r DeltaReason) String() string {
	switch r {
	case DeltaUnspecified:
		return "unspecified"
	case DeltaSelfDestruct:
		return "self_destruct"
	case DeltaBalanceChange:
		return "balance_change"
	case DeltaNonceChange:
		return "nonce_change"
	case DeltaCodeDeployed:
		return "code_deployed"
	case DeltaStorageWrite:
		return "storage_write"
	}
	return "unknown"
}
