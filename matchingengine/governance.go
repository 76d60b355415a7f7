package matchingengine

import (
	"fmt"
)

// ProposeAuctionParameters schedules a new auction config. It can be
// enacted once EpochSlots have passed.
func (l *Ledger) ProposeAuctionParameters(env Env, params AuctionParameters) (*Proposal, error) {
	if err := l.requireOwnerOrAssistant(env); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	configID := l.custodian.AuctionConfigID + 1
	for _, p := range l.proposals {
		if p.SlotEnactedAt == nil && p.Action.Kind == ActionUpdateAuctionParameters && p.Action.ID == configID {
			return nil, fmt.Errorf("%w: proposal %d", ErrProposalAlreadyPending, p.ID)
		}
	}
	proposal := &Proposal{
		ID: l.custodian.NextProposalID,
		Action: ProposalAction{
			Kind:       ActionUpdateAuctionParameters,
			ID:         configID,
			Parameters: params,
		},
		By:             env.Signer,
		Owner:          l.custodian.Owner,
		SlotProposedAt: env.Slot,
		SlotEnactDelay: EpochSlots,
	}
	l.putProposal(proposal)
	l.custodian.NextProposalID++
	clone, _ := l.Proposal(proposal.ID)
	return clone, nil
}

// UpdateAuctionParameters enacts a proposal, making its parameters the
// current auction config.
func (l *Ledger) UpdateAuctionParameters(env Env, proposalID uint64) (*AuctionConfig, error) {
	if err := l.requireOwner(env); err != nil {
		return nil, err
	}
	proposal, ok := l.proposals[proposalID]
	if !ok || proposal.Action.Kind != ActionUpdateAuctionParameters {
		return nil, ErrInvalidProposal
	}
	if proposal.SlotEnactedAt != nil {
		return nil, ErrProposalAlreadyEnacted
	}
	if enactAt := proposal.SlotProposedAt + proposal.SlotEnactDelay; env.Slot < enactAt {
		return nil, fmt.Errorf("%w: slot %d, enact at %d", ErrProposalDelayNotExpired, env.Slot, enactAt)
	}
	if proposal.Action.ID != l.custodian.AuctionConfigID+1 {
		return nil, fmt.Errorf("%w: config %d is not next", ErrInvalidProposal, proposal.Action.ID)
	}
	config := &AuctionConfig{ID: proposal.Action.ID, Parameters: proposal.Action.Parameters}
	l.putConfig(config)
	l.custodian.AuctionConfigID = config.ID
	slot := env.Slot
	proposal.SlotEnactedAt = &slot
	clone := *config
	return &clone, nil
}

// CloseProposal discards a proposal that was never enacted.
func (l *Ledger) CloseProposal(env Env, proposalID uint64) error {
	if err := l.requireOwner(env); err != nil {
		return err
	}
	proposal, ok := l.proposals[proposalID]
	if !ok {
		return ErrInvalidProposal
	}
	if proposal.SlotEnactedAt != nil {
		return ErrProposalAlreadyEnacted
	}
	delete(l.proposals, proposalID)
	delete(l.index, l.addresses.Proposal(proposalID))
	return nil
}
