package program

import "github.com/gagliardetto/solana-go"

var (
	Token          = solana.MustPublicKeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	System         = solana.MustPublicKeyFromBase58("11111111111111111111111111111111")
	ComputeBudget  = solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")
	SysClock       = solana.MustPublicKeyFromBase58("SysvarC1ock11111111111111111111111111111111")
	SysRent        = solana.MustPublicKeyFromBase58("SysvarRent111111111111111111111111111111111")
	MatchingEngine = solana.MustPublicKeyFromBase58("mPydpGUWxzERTNpyvTKdvS7v8kvw5sgwfiP8WQFrXVS")
	TokenRouter    = solana.MustPublicKeyFromBase58("tD8RmtdcV7bzBeuFgyrFc8wvayj988ChccEzRQzo6md")
)

var (
	USDC = solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	SOL  = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
)
