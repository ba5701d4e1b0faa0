package domain

var legalTransitions = map[OrderStatus][]OrderStatus{
	StatusPendingPayment: {StatusDepositPaid, StatusProcessing, StatusCancelled},
	StatusDepositPaid:    {StatusProcessing, StatusCancelled},
	StatusProcessing:     {StatusReadyForPickup, StatusShipping},
	StatusReadyForPickup: {StatusCompleted},
	StatusShipping:       {StatusCompleted},
}

func CanTransition(from, to OrderStatus) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func CheckTransition(from, to OrderStatus) error {
	if !CanTransition(from, to) {
		return &IllegalStatusTransitionError{From: from, To: to}
	}
	return nil
}

func ParseOrderStatus(s string) (OrderStatus, bool) {
	st := OrderStatus(s)
	switch st {
	case StatusPendingPayment, StatusDepositPaid, StatusProcessing, StatusReadyForPickup,
		StatusShipping, StatusCompleted, StatusCancelled:
		return st, true
	}
	return "", false
}
