package matchingengine

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

const (
	// Rent charged to the payer that creates an auction or prepared order
	// response, refunded when the account is closed.
	AuctionRent  = uint64(2_500_000)
	PreparedRent = uint64(3_000_000)
)

// Env is the runtime context of one ledger operation.
type Env struct {
	Slot          uint64
	UnixTimestamp int64
	Signer        solana.PublicKey
}

type accountKind uint8

const (
	kindCustodian accountKind = iota
	kindAuctionConfig
	kindRouterEndpoint
	kindAuction
	kindPreparedOrderResponse
	kindProposal
)

type accountRef struct {
	kind accountKind
	id   uint64
	hash [32]byte
}

// Ledger is the matching engine's state: the custodian, auction configs,
// router endpoints, auctions, prepared order responses and governance
// proposals, plus the token balances they control. A Ledger is not safe for
// concurrent use.
type Ledger struct {
	addresses   Addresses
	localChain  uint16
	initialized bool
	custodian   Custodian
	configs     map[uint32]*AuctionConfig
	endpoints   map[uint16]*RouterEndpoint
	auctions    map[[32]byte]*Auction
	prepared    map[[32]byte]*PreparedOrderResponse
	proposals   map[uint64]*Proposal
	index       map[solana.PublicKey]accountRef
	bank        *Bank
	routers     *Routers
}

func NewLedger(programID solana.PublicKey, localChain uint16) *Ledger {
	return &Ledger{
		addresses:  NewAddresses(programID),
		localChain: localChain,
		configs:    make(map[uint32]*AuctionConfig),
		endpoints:  make(map[uint16]*RouterEndpoint),
		auctions:   make(map[[32]byte]*Auction),
		prepared:   make(map[[32]byte]*PreparedOrderResponse),
		proposals:  make(map[uint64]*Proposal),
		index:      make(map[solana.PublicKey]accountRef),
		bank:       NewBank(),
		routers:    NewRouters(),
	}
}

func (l *Ledger) Addresses() Addresses {
	return l.addresses
}

func (l *Ledger) Bank() *Bank {
	return l.bank
}

func (l *Ledger) Routers() *Routers {
	return l.routers
}

// Initialize creates the custodian with the signer as owner and the first
// auction config.
func (l *Ledger) Initialize(env Env, assistant, feeRecipientToken solana.PublicKey, params AuctionParameters) error {
	if l.initialized {
		return ErrAlreadyInitialized
	}
	if assistant.IsZero() {
		return ErrInvalidNewAssistant
	}
	if feeRecipientToken.IsZero() {
		return ErrInvalidFeeRecipient
	}
	if err := params.Validate(); err != nil {
		return err
	}
	l.custodian = Custodian{
		Owner:             env.Signer,
		OwnerAssistant:    assistant,
		FeeRecipientToken: feeRecipientToken,
		AuctionConfigID:   0,
		NextProposalID:    0,
	}
	l.putConfig(&AuctionConfig{ID: 0, Parameters: params})
	l.index[l.addresses.Custodian()] = accountRef{kind: kindCustodian}
	l.initialized = true
	return nil
}

func (l *Ledger) Custodian() Custodian {
	c := l.custodian
	if c.PendingOwner != nil {
		pending := *c.PendingOwner
		c.PendingOwner = &pending
	}
	return c
}

func (l *Ledger) AuctionConfig(id uint32) (*AuctionConfig, bool) {
	c, ok := l.configs[id]
	if !ok {
		return nil, false
	}
	clone := *c
	return &clone, true
}

func (l *Ledger) RouterEndpoint(chain uint16) (*RouterEndpoint, bool) {
	e, ok := l.endpoints[chain]
	if !ok {
		return nil, false
	}
	clone := *e
	return &clone, true
}

func (l *Ledger) Auction(vaaHash [32]byte) (*Auction, bool) {
	a, ok := l.auctions[vaaHash]
	if !ok {
		return nil, false
	}
	return a.clone(), true
}

func (l *Ledger) PreparedOrderResponse(vaaHash [32]byte) (*PreparedOrderResponse, bool) {
	p, ok := l.prepared[vaaHash]
	if !ok {
		return nil, false
	}
	clone := *p
	clone.RedeemerMessage = append([]byte(nil), p.RedeemerMessage...)
	return &clone, true
}

func (l *Ledger) Proposal(id uint64) (*Proposal, bool) {
	p, ok := l.proposals[id]
	if !ok {
		return nil, false
	}
	clone := *p
	if p.SlotEnactedAt != nil {
		at := *p.SlotEnactedAt
		clone.SlotEnactedAt = &at
	}
	return &clone, true
}

// Account returns the encoded account stored at key, as an account
// subscription would deliver it.
func (l *Ledger) Account(key solana.PublicKey) ([]byte, bool) {
	ref, ok := l.index[key]
	if !ok {
		return nil, false
	}
	switch ref.kind {
	case kindCustodian:
		return EncodeCustodian(&l.custodian), true
	case kindAuctionConfig:
		if c, ok := l.configs[uint32(ref.id)]; ok {
			return EncodeAuctionConfig(c), true
		}
	case kindRouterEndpoint:
		if e, ok := l.endpoints[uint16(ref.id)]; ok {
			return EncodeRouterEndpoint(e), true
		}
	case kindAuction:
		if a, ok := l.auctions[ref.hash]; ok {
			return EncodeAuction(a), true
		}
	case kindPreparedOrderResponse:
		if p, ok := l.prepared[ref.hash]; ok {
			return EncodePreparedOrderResponse(p), true
		}
	case kindProposal:
		if p, ok := l.proposals[ref.id]; ok {
			return EncodeProposal(p), true
		}
	}
	return nil, false
}

func (l *Ledger) putConfig(c *AuctionConfig) {
	l.configs[c.ID] = c
	l.index[l.addresses.AuctionConfig(c.ID)] = accountRef{kind: kindAuctionConfig, id: uint64(c.ID)}
}

func (l *Ledger) putEndpoint(e *RouterEndpoint) {
	l.endpoints[e.Chain] = e
	l.index[l.addresses.RouterEndpoint(e.Chain)] = accountRef{kind: kindRouterEndpoint, id: uint64(e.Chain)}
}

func (l *Ledger) putAuction(a *Auction) {
	l.auctions[a.VaaHash] = a
	l.index[l.addresses.Auction(a.VaaHash)] = accountRef{kind: kindAuction, hash: a.VaaHash}
}

func (l *Ledger) putPrepared(p *PreparedOrderResponse) {
	l.prepared[p.FastVaaHash] = p
	l.index[l.addresses.PreparedOrderResponse(p.FastVaaHash)] = accountRef{kind: kindPreparedOrderResponse, hash: p.FastVaaHash}
}

func (l *Ledger) putProposal(p *Proposal) {
	l.proposals[p.ID] = p
	l.index[l.addresses.Proposal(p.ID)] = accountRef{kind: kindProposal, id: p.ID}
}

func (l *Ledger) currentConfig() (*AuctionConfig, error) {
	c, ok := l.configs[l.custodian.AuctionConfigID]
	if !ok {
		return nil, fmt.Errorf("%w: config %d missing", ErrAuctionConfigMismatch, l.custodian.AuctionConfigID)
	}
	return c, nil
}

func (l *Ledger) requireOwner(env Env) error {
	if env.Signer != l.custodian.Owner {
		return ErrOwnerOnly
	}
	return nil
}

func (l *Ledger) requireOwnerOrAssistant(env Env) error {
	if env.Signer != l.custodian.Owner && env.Signer != l.custodian.OwnerAssistant {
		return ErrOwnerOrAssistantOnly
	}
	return nil
}
