package domain

// AssociatedAccount is a deterministically derived token account for an
// (owner, mint) pair. Exists is a point-in-time fact: the account can be
// created concurrently by unrelated activity, so it is re-checked before use.
type AssociatedAccount struct {
	Owner   string
	Mint    string
	Address string
	Exists  bool
}
