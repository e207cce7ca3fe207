package solana

import "context"

// WSClient defines the Solana WebSocket subscription interface.
type WSClient interface {
	// SubscribeProgram streams updates of accounts owned by programID that match filter.
	SubscribeProgram(ctx context.Context, programID PublicKey, filter ProgramFilter) (<-chan ProgramNotification, error)

	// Close closes the WebSocket connection.
	Close() error
}

// ProgramFilter narrows a program subscription.
type ProgramFilter struct {
	// DataSize matches accounts with exactly this many data bytes. Zero disables it.
	DataSize uint64
	// Memcmp matches raw bytes at fixed offsets.
	Memcmp []Memcmp
}

// Memcmp compares account data at Offset with Bytes.
type Memcmp struct {
	Offset uint64
	Bytes  []byte
}

// ProgramNotification is one account update from a program subscription.
type ProgramNotification struct {
	Slot    uint64
	Pubkey  PublicKey
	Account AccountInfo
}
