package matchingengine

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

const (
	FeePrecisionMax = uint32(1_000_000)
	// EpochSlots is the minimum delay between proposing and enacting a
	// parameter change.
	EpochSlots = uint64(432_000)
	// VaaAuctionExpiration bounds how long after its timestamp a fast order
	// may start an auction, and gates reclaiming its auction account.
	VaaAuctionExpiration = int64(2 * 60 * 60)
)

type AuctionParameters struct {
	UserPenaltyRewardBps uint32
	InitialPenaltyBps    uint32
	Duration             uint16
	GracePeriod          uint16
	PenaltyPeriod        uint16
	MinOfferDeltaBps     uint32
	SecurityDepositBase  uint64
	SecurityDepositBps   uint32
}

type AuctionConfig struct {
	ID         uint32
	Parameters AuctionParameters
}

type MessageProtocolKind uint8

const (
	ProtocolNone MessageProtocolKind = iota
	ProtocolLocal
	ProtocolCctp
)

// MessageProtocol is how funds reach a destination chain.
type MessageProtocol struct {
	Kind      MessageProtocolKind
	ProgramID solana.PublicKey // Local
	Domain    uint32           // Cctp
}

func LocalProtocol(programID solana.PublicKey) MessageProtocol {
	return MessageProtocol{Kind: ProtocolLocal, ProgramID: programID}
}

func CctpProtocol(domain uint32) MessageProtocol {
	return MessageProtocol{Kind: ProtocolCctp, Domain: domain}
}

func (p MessageProtocol) String() string {
	switch p.Kind {
	case ProtocolNone:
		return "none"
	case ProtocolLocal:
		return "local"
	case ProtocolCctp:
		return fmt.Sprintf("cctp(%d)", p.Domain)
	default:
		return fmt.Sprintf("unknown(%d)", p.Kind)
	}
}

type AuctionStatusKind uint8

const (
	StatusNotStarted AuctionStatusKind = iota
	StatusActive
	StatusCompleted
	StatusSettled
)

// AuctionStatus is NotStarted, Active, Completed{Slot, ExecutePenalty} or
// Settled{Fee, TotalPenalty}.
type AuctionStatus struct {
	Kind           AuctionStatusKind
	Slot           uint64
	ExecutePenalty *uint64
	Fee            uint64
	TotalPenalty   *uint64
}

func Active() AuctionStatus {
	return AuctionStatus{Kind: StatusActive}
}

func Completed(slot uint64, penalty *uint64) AuctionStatus {
	return AuctionStatus{Kind: StatusCompleted, Slot: slot, ExecutePenalty: penalty}
}

func Settled(fee uint64, totalPenalty *uint64) AuctionStatus {
	return AuctionStatus{Kind: StatusSettled, Fee: fee, TotalPenalty: totalPenalty}
}

func (s AuctionStatus) String() string {
	switch s.Kind {
	case StatusNotStarted:
		return "not_started"
	case StatusActive:
		return "active"
	case StatusCompleted:
		return fmt.Sprintf("completed(slot=%d)", s.Slot)
	case StatusSettled:
		return fmt.Sprintf("settled(fee=%d)", s.Fee)
	default:
		return fmt.Sprintf("unknown(%d)", s.Kind)
	}
}

type DestinationAssetInfo struct {
	CustodyTokenBump uint8
	AmountOut        uint64
}

type AuctionInfo struct {
	ConfigID             uint32
	VaaSequence          uint64
	SourceChain          uint16
	BestOfferToken       solana.PublicKey
	InitialOfferToken    solana.PublicKey
	StartSlot            uint64
	AmountIn             uint64
	SecurityDeposit      uint64
	OfferPrice           uint64
	MaxFee               uint64
	InitAuctionFee       uint64
	RedeemerMessageLen   uint32
	DestinationAssetInfo *DestinationAssetInfo
}

// TotalDeposit is what a best offer has at stake: the principal it fronts,
// the fee ceiling and the security deposit.
func (info *AuctionInfo) TotalDeposit() uint64 {
	return info.AmountIn + info.MaxFee + info.SecurityDeposit
}

func (info *AuctionInfo) EndSlot(params *AuctionParameters) uint64 {
	return info.StartSlot + uint64(params.Duration)
}

func (info *AuctionInfo) GraceEndSlot(params *AuctionParameters) uint64 {
	return info.StartSlot + uint64(params.GracePeriod)
}

type Auction struct {
	Bump           uint8
	VaaHash        [32]byte
	VaaTimestamp   uint32
	TargetProtocol MessageProtocol
	Status         AuctionStatus
	PreparedBy     solana.PublicKey
	Info           *AuctionInfo
}

func (a *Auction) clone() *Auction {
	c := *a
	c.Status = cloneStatus(a.Status)
	if a.Info != nil {
		info := *a.Info
		if a.Info.DestinationAssetInfo != nil {
			dst := *a.Info.DestinationAssetInfo
			info.DestinationAssetInfo = &dst
		}
		c.Info = &info
	}
	return &c
}

func cloneStatus(s AuctionStatus) AuctionStatus {
	if s.ExecutePenalty != nil {
		v := *s.ExecutePenalty
		s.ExecutePenalty = &v
	}
	if s.TotalPenalty != nil {
		v := *s.TotalPenalty
		s.TotalPenalty = &v
	}
	return s
}

type Custodian struct {
	Owner             solana.PublicKey
	PendingOwner      *solana.PublicKey
	Paused            bool
	PausedSetBy       solana.PublicKey
	OwnerAssistant    solana.PublicKey
	FeeRecipientToken solana.PublicKey
	AuctionConfigID   uint32
	NextProposalID    uint64
}

type RouterEndpoint struct {
	Bump          uint8
	Chain         uint16
	Address       [32]byte
	MintRecipient [32]byte
	Protocol      MessageProtocol
}

func (e *RouterEndpoint) Enabled() bool {
	return e.Protocol.Kind != ProtocolNone && e.Address != [32]byte{}
}

type ProposalActionKind uint8

const (
	ActionNone ProposalActionKind = iota
	ActionUpdateAuctionParameters
)

type ProposalAction struct {
	Kind       ProposalActionKind
	ID         uint32
	Parameters AuctionParameters
}

type Proposal struct {
	ID             uint64
	Bump           uint8
	Action         ProposalAction
	By             solana.PublicKey
	Owner          solana.PublicKey
	SlotProposedAt uint64
	SlotEnactDelay uint64
	SlotEnactedAt  *uint64
}

type PreparedOrderResponse struct {
	Bump            uint8
	FastVaaHash     [32]byte
	PreparedBy      solana.PublicKey
	BaseFeeToken    solana.PublicKey
	SourceChain     uint16
	BaseFee         uint64
	AmountIn        uint64
	InitAuctionFee  uint64
	Sender          [32]byte
	Redeemer        [32]byte
	TargetChain     uint16
	RedeemerMessage []byte
}
