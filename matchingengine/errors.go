package matchingengine

import "errors"

// Rejections: the ledger refuses the operation. A solver that hits one of
// these lost a race or acted on stale state.
var (
	ErrOwnerOnly                    = errors.New("owner only")
	ErrOwnerOrAssistantOnly         = errors.New("owner or assistant only")
	ErrPaused                       = errors.New("paused")
	ErrAlreadyInitialized           = errors.New("already initialized")
	ErrInvalidEndpoint              = errors.New("invalid endpoint")
	ErrEndpointDisabled             = errors.New("endpoint disabled")
	ErrInvalidSourceRouter          = errors.New("invalid source router")
	ErrInvalidTargetRouter          = errors.New("invalid target router")
	ErrChainNotAllowed              = errors.New("chain not allowed")
	ErrInvalidMintRecipient         = errors.New("invalid mint recipient")
	ErrInvalidNewOwner              = errors.New("invalid new owner")
	ErrAlreadyOwner                 = errors.New("already owner")
	ErrNoTransferOwnershipRequest   = errors.New("no transfer ownership request")
	ErrNotPendingOwner              = errors.New("not pending owner")
	ErrInvalidNewAssistant          = errors.New("invalid new assistant")
	ErrInvalidFeeRecipient          = errors.New("invalid fee recipient")
	ErrZeroDuration                 = errors.New("zero duration")
	ErrZeroGracePeriod              = errors.New("zero grace period")
	ErrGracePeriodTooShort          = errors.New("grace period shorter than duration")
	ErrZeroPenaltyPeriod            = errors.New("zero penalty period")
	ErrUserPenaltyRewardBpsTooLarge = errors.New("user penalty reward bps too large")
	ErrInitialPenaltyBpsTooLarge    = errors.New("initial penalty bps too large")
	ErrMinOfferDeltaBpsTooLarge     = errors.New("min offer delta bps too large")
	ErrZeroSecurityDepositBase      = errors.New("zero security deposit base")
	ErrSecurityDepositBpsTooLarge   = errors.New("security deposit bps too large")
	ErrProposalAlreadyEnacted       = errors.New("proposal already enacted")
	ErrProposalDelayNotExpired      = errors.New("proposal delay not expired")
	ErrProposalAlreadyPending       = errors.New("proposal already pending for config")
	ErrInvalidProposal              = errors.New("invalid proposal")
	ErrAuctionConfigMismatch        = errors.New("auction config mismatch")
	ErrNotFastMarketOrder           = errors.New("not fast market order")
	ErrFastMarketOrderExpired       = errors.New("fast market order expired")
	ErrOfferPriceTooHigh            = errors.New("offer price too high")
	ErrAuctionAlreadyExists         = errors.New("auction already exists")
	ErrAuctionNotFound              = errors.New("auction not found")
	ErrAuctionNotActive             = errors.New("auction not active")
	ErrAuctionPeriodExpired         = errors.New("auction period expired")
	ErrAuctionPeriodNotExpired      = errors.New("auction period not expired")
	ErrCarpingNotAllowed            = errors.New("offer does not beat best offer by min delta")
	ErrAuctionNotCompleted          = errors.New("auction not completed")
	ErrAuctionAlreadySettled        = errors.New("auction already settled")
	ErrAuctionNotSettled            = errors.New("auction not settled")
	ErrExecutorNotPreparedBy        = errors.New("executor not prepared by")
	ErrCannotCloseAuctionYet        = errors.New("cannot close auction yet")
	ErrVaaMismatch                  = errors.New("vaa mismatch")
	ErrCctpNonceMismatch            = errors.New("cctp nonce mismatch")
	ErrNotSlowOrderResponse         = errors.New("not slow order response")
	ErrOrderResponseAlreadyPrepared = errors.New("order response already prepared")
	ErrOrderResponseNotPrepared     = errors.New("order response not prepared")
	ErrInsufficientFunds            = errors.New("insufficient funds")
	ErrU64Overflow                  = errors.New("u64 overflow")
)

// Decoding failures: malformed account data or instruction data.
var (
	ErrAccountDiscriminatorMismatch = errors.New("account discriminator mismatch")
	ErrAccountDidNotDeserialize     = errors.New("account did not deserialize")
	ErrInstructionNotRecognized     = errors.New("instruction not recognized")
)

var rejections = []error{
	ErrOwnerOnly, ErrOwnerOrAssistantOnly, ErrPaused, ErrAlreadyInitialized,
	ErrInvalidEndpoint, ErrEndpointDisabled, ErrInvalidSourceRouter, ErrInvalidTargetRouter,
	ErrChainNotAllowed, ErrInvalidMintRecipient, ErrInvalidNewOwner, ErrAlreadyOwner,
	ErrNoTransferOwnershipRequest, ErrNotPendingOwner, ErrInvalidNewAssistant, ErrInvalidFeeRecipient,
	ErrZeroDuration, ErrZeroGracePeriod, ErrGracePeriodTooShort, ErrZeroPenaltyPeriod,
	ErrUserPenaltyRewardBpsTooLarge, ErrInitialPenaltyBpsTooLarge, ErrMinOfferDeltaBpsTooLarge,
	ErrZeroSecurityDepositBase, ErrSecurityDepositBpsTooLarge,
	ErrProposalAlreadyEnacted, ErrProposalDelayNotExpired, ErrProposalAlreadyPending, ErrInvalidProposal,
	ErrAuctionConfigMismatch, ErrNotFastMarketOrder, ErrFastMarketOrderExpired, ErrOfferPriceTooHigh,
	ErrAuctionAlreadyExists, ErrAuctionNotFound, ErrAuctionNotActive, ErrAuctionPeriodExpired,
	ErrAuctionPeriodNotExpired, ErrCarpingNotAllowed, ErrAuctionNotCompleted, ErrAuctionAlreadySettled,
	ErrAuctionNotSettled, ErrExecutorNotPreparedBy, ErrCannotCloseAuctionYet, ErrVaaMismatch,
	ErrCctpNonceMismatch, ErrNotSlowOrderResponse, ErrOrderResponseAlreadyPrepared,
	ErrOrderResponseNotPrepared, ErrInsufficientFunds, ErrU64Overflow,
}

// IsRejection reports whether err is the ledger refusing an operation, as
// opposed to a transport or decoding failure.
func IsRejection(err error) bool {
	if err == nil {
		return false
	}
	for _, r := range rejections {
		if errors.Is(err, r) {
			return true
		}
	}
	return false
}

// ErrorCodeOffset is where program-defined error codes start.
const ErrorCodeOffset = 6000

// ErrorCode maps a rejection to the custom program error code reported in
// failed transaction logs.
func ErrorCode(err error) (uint32, bool) {
	for i, r := range rejections {
		if errors.Is(err, r) {
			return uint32(ErrorCodeOffset + i), true
		}
	}
	return 0, false
}

// RejectionFromCode is the inverse of ErrorCode. Unknown codes give nil.
func RejectionFromCode(code uint32) error {
	if code < ErrorCodeOffset || int(code-ErrorCodeOffset) >= len(rejections) {
		return nil
	}
	return rejections[code-ErrorCodeOffset]
}
