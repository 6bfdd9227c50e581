package lifecycle

import (
	"veridoc/internal/domain"
	"veridoc/internal/eventbus"
	dErrors "veridoc/pkg/domain-errors"
)

// Guard carries the data a transition may need to validate beyond the
// current state and trigger.
type Guard struct {
	Actor    domain.Actor
	Decision domain.Decision
	Expired  bool
}

// transitionSources lists the states a trigger may fire from. Approve and
// reject appear twice because both the decision stage (from MERGED) and an
// officer (from REVIEW_IN_PROGRESS) may produce them; the guard pins the
// actor type to the source.
var transitionSources = map[eventbus.Type][]domain.DocumentState{
	eventbus.TypeDocumentPreprocessed: {domain.StateReceived},
	eventbus.TypeOCRCompleted:         {domain.StatePreprocessing},
	eventbus.TypeBranchStarted:        {domain.StateOCRComplete},
	eventbus.TypeDocumentMerged:       {domain.StateBranched},
	eventbus.TypeFlaggedForReview:     {domain.StateMerged},
	eventbus.TypeReviewStarted:        {domain.StateWaitingForReview, domain.StateDisputed},
	eventbus.TypeDocumentApproved:     {domain.StateMerged, domain.StateReviewInProgress},
	eventbus.TypeDocumentRejected:     {domain.StateMerged, domain.StateReviewInProgress},
	eventbus.TypeDocumentDisputed:     {domain.StateRejected},
	eventbus.TypeDocumentExpired: {
		domain.StateReceived, domain.StatePreprocessing, domain.StateOCRComplete,
		domain.StateBranched, domain.StateMerged, domain.StateWaitingForReview,
	},
	eventbus.TypeDocumentArchived: {
		domain.StateApproved, domain.StateRejected, domain.StateExpired, domain.StateFailed,
	},
}

var transitionTargets = map[eventbus.Type]domain.DocumentState{
	eventbus.TypeDocumentPreprocessed: domain.StatePreprocessing,
	eventbus.TypeOCRCompleted:         domain.StateOCRComplete,
	eventbus.TypeBranchStarted:        domain.StateBranched,
	eventbus.TypeDocumentMerged:       domain.StateMerged,
	eventbus.TypeFlaggedForReview:     domain.StateWaitingForReview,
	eventbus.TypeReviewStarted:        domain.StateReviewInProgress,
	eventbus.TypeDocumentApproved:     domain.StateApproved,
	eventbus.TypeDocumentRejected:     domain.StateRejected,
	eventbus.TypeDocumentDisputed:     domain.StateDisputed,
	eventbus.TypeDocumentExpired:      domain.StateExpired,
	eventbus.TypeDocumentArchived:     domain.StateArchived,
	eventbus.TypeDocumentFailed:       domain.StateFailed,
}

// Next is the pure transition function: given the current state, the
// triggering event type, and guard data it returns the next state or a
// rejection. It never mutates anything.
func Next(current domain.DocumentState, trigger eventbus.Type, guard Guard) (domain.DocumentState, error) {
	// Any non-archived state may fail on an unrecoverable pipeline fault.
	if trigger == eventbus.TypeDocumentFailed {
		if current == domain.StateArchived {
			return "", rejection(current, trigger, "archived documents are immutable")
		}
		return domain.StateFailed, nil
	}

	target, known := transitionTargets[trigger]
	if !known {
		return "", dErrors.Newf(dErrors.CodeIllegalTransition, "event %s does not drive a transition", trigger)
	}

	sources := transitionSources[trigger]
	if !containsState(sources, current) {
		return "", rejection(current, trigger, "not allowed from current state")
	}

	switch trigger {
	case eventbus.TypeDocumentApproved, eventbus.TypeDocumentRejected:
		// The decision stage finalizes from MERGED; only an officer may
		// finalize from an open review.
		if current == domain.StateMerged && guard.Actor.Type != domain.ActorSystem {
			return "", rejection(current, trigger, "pipeline decision requires system actor")
		}
		if current == domain.StateReviewInProgress && guard.Actor.Type != domain.ActorOfficer {
			return "", rejection(current, trigger, "review decision requires officer actor")
		}
	case eventbus.TypeDocumentDisputed:
		if guard.Actor.Type != domain.ActorCitizen {
			return "", rejection(current, trigger, "disputes are citizen-initiated")
		}
	case eventbus.TypeDocumentExpired:
		if !guard.Expired {
			return "", rejection(current, trigger, "document has not expired")
		}
	}

	return target, nil
}

func containsState(states []domain.DocumentState, s domain.DocumentState) bool {
	for _, candidate := range states {
		if candidate == s {
			return true
		}
	}
	return false
}

func rejection(current domain.DocumentState, trigger eventbus.Type, why string) error {
	return dErrors.Newf(dErrors.CodeIllegalTransition, "transition %s on %s rejected: %s", trigger, current, why)
}
