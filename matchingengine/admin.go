package matchingengine

import (
	"github.com/gagliardetto/solana-go"
)

func (l *Ledger) SetPause(env Env, paused bool) error {
	if err := l.requireOwnerOrAssistant(env); err != nil {
		return err
	}
	l.custodian.Paused = paused
	l.custodian.PausedSetBy = env.Signer
	return nil
}

func (l *Ledger) checkChain(chain uint16, cctp bool) error {
	if chain == 0 || (cctp && chain == l.localChain) {
		return ErrChainNotAllowed
	}
	return nil
}

// AddCctpRouterEndpoint registers the token router on a CCTP chain.
func (l *Ledger) AddCctpRouterEndpoint(env Env, chain uint16, domain uint32, address, mintRecipient [32]byte) (*RouterEndpoint, error) {
	if err := l.requireOwnerOrAssistant(env); err != nil {
		return nil, err
	}
	if err := l.checkChain(chain, true); err != nil {
		return nil, err
	}
	if address == [32]byte{} {
		return nil, ErrInvalidEndpoint
	}
	if mintRecipient == [32]byte{} {
		return nil, ErrInvalidMintRecipient
	}
	endpoint := &RouterEndpoint{
		Chain:         chain,
		Address:       address,
		MintRecipient: mintRecipient,
		Protocol:      CctpProtocol(domain),
	}
	l.putEndpoint(endpoint)
	clone := *endpoint
	return &clone, nil
}

// AddLocalRouterEndpoint registers the token router on this chain.
func (l *Ledger) AddLocalRouterEndpoint(env Env, tokenRouter solana.PublicKey, custodyToken solana.PublicKey) (*RouterEndpoint, error) {
	if err := l.requireOwnerOrAssistant(env); err != nil {
		return nil, err
	}
	if err := l.checkChain(l.localChain, false); err != nil {
		return nil, err
	}
	if tokenRouter.IsZero() {
		return nil, ErrInvalidEndpoint
	}
	endpoint := &RouterEndpoint{
		Chain:         l.localChain,
		Address:       tokenRouter,
		MintRecipient: custodyToken,
		Protocol:      LocalProtocol(tokenRouter),
	}
	l.putEndpoint(endpoint)
	clone := *endpoint
	return &clone, nil
}

func (l *Ledger) UpdateCctpRouterEndpoint(env Env, chain uint16, domain uint32, address, mintRecipient [32]byte) (*RouterEndpoint, error) {
	if err := l.requireOwner(env); err != nil {
		return nil, err
	}
	if err := l.checkChain(chain, true); err != nil {
		return nil, err
	}
	if _, ok := l.endpoints[chain]; !ok {
		return nil, ErrInvalidEndpoint
	}
	if address == [32]byte{} {
		return nil, ErrInvalidEndpoint
	}
	if mintRecipient == [32]byte{} {
		return nil, ErrInvalidMintRecipient
	}
	endpoint := l.endpoints[chain]
	endpoint.Address = address
	endpoint.MintRecipient = mintRecipient
	endpoint.Protocol = CctpProtocol(domain)
	clone := *endpoint
	return &clone, nil
}

// DisableRouterEndpoint keeps the endpoint account but stops orders from
// being auctioned to or from its chain.
func (l *Ledger) DisableRouterEndpoint(env Env, chain uint16) error {
	if err := l.requireOwner(env); err != nil {
		return err
	}
	endpoint, ok := l.endpoints[chain]
	if !ok {
		return ErrInvalidEndpoint
	}
	endpoint.Address = [32]byte{}
	endpoint.MintRecipient = [32]byte{}
	endpoint.Protocol = MessageProtocol{Kind: ProtocolNone}
	return nil
}

func (l *Ledger) SubmitOwnershipTransferRequest(env Env, newOwner solana.PublicKey) error {
	if err := l.requireOwner(env); err != nil {
		return err
	}
	if newOwner.IsZero() {
		return ErrInvalidNewOwner
	}
	if newOwner == l.custodian.Owner {
		return ErrAlreadyOwner
	}
	l.custodian.PendingOwner = &newOwner
	return nil
}

func (l *Ledger) ConfirmOwnershipTransferRequest(env Env) error {
	if l.custodian.PendingOwner == nil {
		return ErrNoTransferOwnershipRequest
	}
	if env.Signer != *l.custodian.PendingOwner {
		return ErrNotPendingOwner
	}
	l.custodian.Owner = env.Signer
	l.custodian.PendingOwner = nil
	return nil
}

func (l *Ledger) CancelOwnershipTransferRequest(env Env) error {
	if err := l.requireOwner(env); err != nil {
		return err
	}
	l.custodian.PendingOwner = nil
	return nil
}

func (l *Ledger) UpdateOwnerAssistant(env Env, assistant solana.PublicKey) error {
	if err := l.requireOwner(env); err != nil {
		return err
	}
	if assistant.IsZero() {
		return ErrInvalidNewAssistant
	}
	l.custodian.OwnerAssistant = assistant
	return nil
}

func (l *Ledger) UpdateFeeRecipient(env Env, feeRecipientToken solana.PublicKey) error {
	if err := l.requireOwnerOrAssistant(env); err != nil {
		return err
	}
	if feeRecipientToken.IsZero() {
		return ErrInvalidFeeRecipient
	}
	l.custodian.FeeRecipientToken = feeRecipientToken
	return nil
}
