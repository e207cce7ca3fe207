package spl

import "solana-sniper/internal/solana"

// Token program instruction tags.
const (
	closeAccountTag = 9
)

// Associated token account program instruction tags.
const (
	createIdempotentTag = 1
)

// CloseAccount closes a token account, sending its rent to dest.
func CloseAccount(account, dest, owner solana.PublicKey) solana.Instruction {
	return solana.Instruction{
		ProgramID: solana.TokenProgramID,
		Accounts: []solana.AccountMeta{
			{PublicKey: account, IsWritable: true},
			{PublicKey: dest, IsWritable: true},
			{PublicKey: owner, IsSigner: true},
		},
		Data: []byte{closeAccountTag},
	}
}

// CreateAssociatedTokenAccountIdempotent creates ata for owner and mint
// unless it already exists.
func CreateAssociatedTokenAccountIdempotent(payer, ata, owner, mint solana.PublicKey) solana.Instruction {
	return solana.Instruction{
		ProgramID: solana.AssociatedTokenProgramID,
		Accounts: []solana.AccountMeta{
			{PublicKey: payer, IsSigner: true, IsWritable: true},
			{PublicKey: ata, IsWritable: true},
			{PublicKey: owner},
			{PublicKey: mint},
			{PublicKey: solana.SystemProgramID},
			{PublicKey: solana.TokenProgramID},
		},
		Data: []byte{createIdempotentTag},
	}
}
