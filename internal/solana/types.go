package solana

// Commitment levels.
const (
	CommitmentProcessed = "processed"
	CommitmentConfirmed = "confirmed"
	CommitmentFinalized = "finalized"
)

// AccountInfo represents Solana account information.
type AccountInfo struct {
	Lamports   uint64
	Owner      string
	Data       []byte // decoded from base64
	Executable bool
	RentEpoch  uint64
}

// Blockhash is a recent blockhash with the last block height at which
// transactions referencing it are still valid.
type Blockhash struct {
	Hash                 Hash
	LastValidBlockHeight uint64
}

// SendOpts configures sendTransaction.
type SendOpts struct {
	SkipPreflight       bool
	PreflightCommitment string
	MaxRetries          *uint
}

// SignatureStatus from getSignatureStatuses.
type SignatureStatus struct {
	Slot               uint64
	Confirmations      *uint64
	Err                interface{}
	ConfirmationStatus string
}

// IsConfirmed reports whether the status reached at least confirmed commitment.
func (s *SignatureStatus) IsConfirmed() bool {
	if s == nil {
		return false
	}
	return s.ConfirmationStatus == CommitmentConfirmed || s.ConfirmationStatus == CommitmentFinalized
}
