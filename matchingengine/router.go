package matchingengine

import (
	"fmt"

	"github.com/egaotan/fast-transfer-solver/vaa"
	"github.com/gagliardetto/solana-go"
)

// Delivery moves amount out of the custody account to the order's
// recipient on TargetChain.
type Delivery struct {
	Custody     solana.PublicKey
	Amount      uint64
	TargetChain uint16
	Endpoint    *RouterEndpoint
	Fill        vaa.Fill
}

// Receipt is the fill notification produced for the recipient side.
type Receipt struct {
	Protocol    MessageProtocol
	TargetChain uint16
	Amount      uint64
	Sequence    uint64 // fast fill sequence (Local) or burn nonce (Cctp)
	Payload     []byte
}

// TokenRouter delivers executed or settled orders. It debits the custody
// account from the bank itself.
type TokenRouter interface {
	Deliver(bank *Bank, d *Delivery) (*Receipt, error)
}

// LocalRouter is the same-chain path: a fast fill credited to a local
// redeemer and recorded for it to claim.
type LocalRouter struct {
	nextSequence uint64
	Fills        []*Receipt
}

func (r *LocalRouter) Deliver(bank *Bank, d *Delivery) (*Receipt, error) {
	redeemer := solana.PublicKeyFromBytes(d.Fill.Redeemer[:])
	if err := bank.Transfer(d.Custody, redeemer, d.Amount); err != nil {
		return nil, fmt.Errorf("local fill: %w", err)
	}
	receipt := &Receipt{
		Protocol:    d.Endpoint.Protocol,
		TargetChain: d.TargetChain,
		Amount:      d.Amount,
		Sequence:    r.nextSequence,
		Payload:     d.Fill.Marshal(),
	}
	r.nextSequence++
	r.Fills = append(r.Fills, receipt)
	return receipt, nil
}

// CctpRouter is the cross-chain path: tokens are burned here and a message
// carrying the fill is emitted for minting on the destination.
type CctpRouter struct {
	Burned    solana.PublicKey
	nextNonce uint64
	Burns     []*Receipt
}

func (r *CctpRouter) Deliver(bank *Bank, d *Delivery) (*Receipt, error) {
	if d.Endpoint.MintRecipient == [32]byte{} {
		return nil, ErrInvalidMintRecipient
	}
	if err := bank.Transfer(d.Custody, r.Burned, d.Amount); err != nil {
		return nil, fmt.Errorf("cctp burn: %w", err)
	}
	receipt := &Receipt{
		Protocol:    d.Endpoint.Protocol,
		TargetChain: d.TargetChain,
		Amount:      d.Amount,
		Sequence:    r.nextNonce,
		Payload:     d.Fill.Marshal(),
	}
	r.nextNonce++
	r.Burns = append(r.Burns, receipt)
	return receipt, nil
}

// Routers dispatches a delivery by the endpoint's protocol.
type Routers struct {
	Local *LocalRouter
	Cctp  *CctpRouter
}

func NewRouters() *Routers {
	return &Routers{
		Local: &LocalRouter{},
		Cctp:  &CctpRouter{Burned: solana.PublicKeyFromBytes(make([]byte, 32))},
	}
}

func (r *Routers) Deliver(bank *Bank, d *Delivery) (*Receipt, error) {
	switch d.Endpoint.Protocol.Kind {
	case ProtocolLocal:
		return r.Local.Deliver(bank, d)
	case ProtocolCctp:
		return r.Cctp.Deliver(bank, d)
	case ProtocolNone:
		return nil, ErrEndpointDisabled
	default:
		return nil, fmt.Errorf("%w: protocol %d", ErrInvalidEndpoint, d.Endpoint.Protocol.Kind)
	}
}
