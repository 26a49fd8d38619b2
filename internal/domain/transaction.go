package domain

// TransactionRole tags a transaction's place in the settlement sequence.
type TransactionRole string

// Role constants, in submission order. Setup creates missing accounts,
// swap performs the economic transfer, cleanup closes temporary
// wrapped-asset accounts. Any subset except swap may be absent.
const (
	RoleSetup   TransactionRole = "setup"
	RoleSwap    TransactionRole = "swap"
	RoleCleanup TransactionRole = "cleanup"
)

// UnsignedTransaction is one aggregator-built transaction awaiting signatures.
type UnsignedTransaction struct {
	Role    TransactionRole
	Payload []byte // serialized wire transaction
}

// UnsignedTransactionSet is the ordered list of transactions built for a
// quote. Ordering follows role order: setup, swap, cleanup.
type UnsignedTransactionSet []UnsignedTransaction

// Swap returns the swap-role transaction, or nil if absent.
func (s UnsignedTransactionSet) Swap() *UnsignedTransaction {
	for i := range s {
		if s[i].Role == RoleSwap {
			return &s[i]
		}
	}
	return nil
}
