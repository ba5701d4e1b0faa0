package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"checkout-service/internal/checkout"
	"checkout-service/internal/domain"
	"checkout-service/internal/infra/gateway"
	rabbit "checkout-service/internal/infra/rabbitmq"
	"checkout-service/internal/repository"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrStatusConflict means another writer changed the order between our
	// read and the compare-and-set.
	ErrStatusConflict = errors.New("order status changed concurrently")
	// ErrTrancheOutOfOrder is a payment for a tranche the order is not
	// currently waiting for, such as a balance before the deposit.
	ErrTrancheOutOfOrder = errors.New("payment tranche does not match order status")
)

var _ checkout.Handoff = (*ReconciliationService)(nil)

type ReconciliationOptions struct {
	CancellationWindow time.Duration
	PollAttempts       int
	PollInterval       time.Duration
	PollMaxInterval    time.Duration
	IntentRetries      int
}

// ReconciliationService owns every order status change after creation.
// Webhooks, status syncs, cancellations and admin updates all funnel into
// transition.
type ReconciliationService struct {
	repo      repository.OrderRepository
	gateway   gateway.Gateway
	publisher rabbit.PublisherInterface
	logger    *zap.Logger
	opts      ReconciliationOptions

	syncs singleflight.Group
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewReconciliationService(r repository.OrderRepository, gw gateway.Gateway, pub rabbit.PublisherInterface, logger *zap.Logger, opts ReconciliationOptions) *ReconciliationService {
	if opts.PollAttempts <= 0 {
		opts.PollAttempts = 1
	}
	if opts.IntentRetries <= 0 {
		opts.IntentRetries = 1
	}
	if opts.PollMaxInterval < opts.PollInterval {
		opts.PollMaxInterval = opts.PollInterval
	}
	return &ReconciliationService{
		repo:      r,
		gateway:   gw,
		publisher: pub,
		logger:    logger,
		opts:      opts,
		now:       func() time.Time { return time.Now().UTC() },
		sleep:     sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// CreateIntent asks the gateway for an intent covering the tranche the order
// is waiting for. Unavailable gateways are retried with backoff.
func (s *ReconciliationService) CreateIntent(ctx context.Context, orderCode string) (*domain.PaymentIntent, error) {
	order, err := s.find(ctx, orderCode)
	if err != nil {
		return nil, err
	}

	tranche, amount, err := outstandingTranche(order)
	if err != nil {
		return nil, err
	}

	var intent *domain.PaymentIntent
	delay := s.opts.PollInterval
	for attempt := 1; ; attempt++ {
		intent, err = s.gateway.CreatePaymentIntent(ctx, order.OrderCode, tranche, amount, order.PaymentMethod)
		if err == nil || !errors.Is(err, domain.ErrGatewayUnavailable) || attempt >= s.opts.IntentRetries {
			break
		}
		s.logger.Warn("payment gateway unavailable, retrying",
			zap.String("order_code", order.OrderCode),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if err := s.sleep(ctx, delay); err != nil {
			return nil, err
		}
		delay = s.nextDelay(delay)
	}
	if err != nil {
		s.logger.Error("create payment intent",
			zap.String("order_code", order.OrderCode),
			zap.String("tranche", string(tranche)),
			zap.Int64("amount", amount),
			zap.Error(err),
		)
		return nil, err
	}

	txn := &domain.PaymentTransaction{
		OrderCode:  order.OrderCode,
		IntentID:   intent.IntentID,
		Tranche:    tranche,
		Amount:     amount,
		Status:     domain.TxInitiated,
		ReceivedAt: s.now(),
	}
	if err := s.repo.AppendTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("record payment intent: %w", err)
	}
	return intent, nil
}

// CreateIntentFor is CreateIntent behind the customer phone check.
func (s *ReconciliationService) CreateIntentFor(ctx context.Context, orderCode, phone string) (*domain.PaymentIntent, error) {
	order, err := lookup(ctx, s.repo, orderCode, phone)
	if err != nil {
		return nil, err
	}
	return s.CreateIntent(ctx, order.OrderCode)
}

// HandleWebhook applies a verified gateway notification. Duplicates are
// accepted and change nothing.
func (s *ReconciliationService) HandleWebhook(ctx context.Context, n *domain.PaymentNotification) error {
	return s.reconcile(ctx, n)
}

// SyncNow queries the gateway for the order's latest intent and applies the
// answer. Concurrent syncs for one order share a single query.
func (s *ReconciliationService) SyncNow(ctx context.Context, orderCode string) (*domain.Order, error) {
	v, err, _ := s.syncs.Do(orderCode, func() (any, error) {
		return s.sync(ctx, orderCode)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Order), nil
}

// SyncFor is SyncNow behind the customer phone check.
func (s *ReconciliationService) SyncFor(ctx context.Context, orderCode, phone string) (*domain.Order, error) {
	order, err := lookup(ctx, s.repo, orderCode, phone)
	if err != nil {
		return nil, err
	}
	return s.SyncNow(ctx, order.OrderCode)
}

func (s *ReconciliationService) sync(ctx context.Context, orderCode string) (*domain.Order, error) {
	order, err := s.find(ctx, orderCode)
	if err != nil {
		return nil, err
	}
	if order.Status != domain.StatusPendingPayment && order.Status != domain.StatusDepositPaid {
		return order, nil
	}

	intent, err := s.repo.LatestIntent(ctx, order.OrderCode)
	if err != nil {
		return nil, err
	}
	if intent == nil {
		return order, nil
	}

	n, err := s.gateway.QueryPaymentStatus(ctx, intent.IntentID)
	if err != nil {
		s.logger.Warn("query payment status",
			zap.String("order_code", order.OrderCode),
			zap.String("intent_id", intent.IntentID),
			zap.Error(err),
		)
		return nil, err
	}
	if n.OrderCode == "" {
		n.OrderCode = order.OrderCode
	}
	if n.Status == domain.TxInitiated {
		return order, nil
	}
	if err := s.reconcile(ctx, n); err != nil {
		return nil, err
	}
	return s.find(ctx, order.OrderCode)
}

const awaitSupportMessage = "we could not confirm your payment, please contact support with your order code"

// Await polls the gateway until the order leaves its waiting state or the
// attempt budget runs out. Running out yields a pending outcome; the payment
// itself is left alone.
func (s *ReconciliationService) Await(ctx context.Context, orderCode string) (checkout.Outcome, error) {
	delay := s.opts.PollInterval
	for attempt := 1; attempt <= s.opts.PollAttempts; attempt++ {
		order, err := s.SyncNow(ctx, orderCode)
		switch {
		case err == nil:
			if out, done := s.outcomeFor(ctx, order); done {
				return out, nil
			}
		case errors.Is(err, domain.ErrGatewayUnavailable):
		case errors.Is(err, domain.ErrOrderNotFound),
			errors.Is(err, context.Canceled),
			errors.Is(err, context.DeadlineExceeded):
			return checkout.Outcome{}, err
		default:
			s.logger.Error("reconcile while awaiting payment",
				zap.String("order_code", orderCode),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return checkout.Outcome{
				Message:   awaitSupportMessage,
				OrderCode: orderCode,
			}, nil
		}

		if attempt == s.opts.PollAttempts {
			break
		}
		if err := s.sleep(ctx, delay); err != nil {
			break
		}
		delay = s.nextDelay(delay)
	}

	return checkout.Outcome{
		Pending:   true,
		Status:    domain.StatusPendingPayment,
		Message:   "payment pending, check status later",
		OrderCode: orderCode,
	}, nil
}

func (s *ReconciliationService) outcomeFor(ctx context.Context, order *domain.Order) (checkout.Outcome, bool) {
	out := checkout.Outcome{Status: order.Status, OrderCode: order.OrderCode}
	switch order.Status {
	case domain.StatusPendingPayment:
		if s.latestIntentFailed(ctx, order.OrderCode) {
			out.Message = "payment failed"
			return out, true
		}
		return out, false
	case domain.StatusCancelled:
		out.Message = "order cancelled"
		return out, true
	case domain.StatusDepositPaid:
		out.Success = true
		out.Message = "deposit received"
		return out, true
	}
	out.Success = true
	out.Message = "payment received"
	return out, true
}

// Cancel is the customer cancellation path.
func (s *ReconciliationService) Cancel(ctx context.Context, orderCode, phone string) (*domain.Order, error) {
	order, err := lookup(ctx, s.repo, orderCode, phone)
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, order, domain.StatusCancelled, nil); err != nil {
		return nil, err
	}
	return order, nil
}

// UpdateOrderStatus is the operator path for fulfilment statuses.
func (s *ReconciliationService) UpdateOrderStatus(ctx context.Context, orderCode string, to domain.OrderStatus) (*domain.Order, error) {
	order, err := s.find(ctx, orderCode)
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, order, to, nil); err != nil {
		return nil, err
	}
	return order, nil
}

// ListPayments returns the order's transaction history.
func (s *ReconciliationService) ListPayments(ctx context.Context, orderCode, phone string) ([]domain.PaymentTransaction, error) {
	order, err := lookup(ctx, s.repo, orderCode, phone)
	if err != nil {
		return nil, err
	}
	return s.repo.ListTransactions(ctx, order.OrderCode)
}

func (s *ReconciliationService) reconcile(ctx context.Context, n *domain.PaymentNotification) error {
	log := s.logger.With(
		zap.String("order_code", n.OrderCode),
		zap.String("intent_id", n.IntentID),
		zap.String("transaction_id", n.TransactionID),
		zap.Int64("amount", n.Amount),
	)

	order, err := s.find(ctx, n.OrderCode)
	if err != nil {
		log.Warn("payment notification for unknown order", zap.Error(err))
		return err
	}

	switch n.Status {
	case domain.TxSucceeded:
	case domain.TxFailed:
		return s.recordFailure(ctx, order, n)
	default:
		return nil
	}

	existing, err := s.repo.FindSucceededTransaction(ctx, n.TransactionID)
	if err != nil {
		return err
	}
	if existing != nil {
		log.Info("duplicate payment notification ignored")
		return nil
	}

	tranche, next, err := s.matchTranche(ctx, order, n)
	if err != nil {
		log.Error("payment rejected",
			zap.String("status", order.Status.String()),
			zap.Error(err),
		)
		return err
	}

	txn := &domain.PaymentTransaction{
		OrderCode:            order.OrderCode,
		IntentID:             n.IntentID,
		GatewayTransactionID: n.TransactionID,
		Tranche:              tranche,
		Amount:               n.Amount,
		Status:               domain.TxSucceeded,
		SucceededKey:         domain.SucceededKeyFor(order.OrderCode, tranche),
		ReceivedAt:           s.now(),
	}
	err = s.transition(ctx, order, next, txn)
	if errors.Is(err, repository.ErrDuplicateTranche) {
		log.Info("tranche already settled", zap.String("tranche", string(tranche)))
		return nil
	}
	return err
}

// matchTranche decides which tranche a succeeded payment settles. The
// tranche recorded with the intent wins; otherwise the amount decides.
func (s *ReconciliationService) matchTranche(ctx context.Context, order *domain.Order, n *domain.PaymentNotification) (domain.Tranche, domain.OrderStatus, error) {
	tranche, known, err := s.intentTranche(ctx, order.OrderCode, n.IntentID)
	if err != nil {
		return "", "", err
	}

	if !known {
		switch {
		case order.Status == domain.StatusPendingPayment && n.Amount == order.TotalAmount:
			tranche = domain.TrancheFull
		case order.Status == domain.StatusPendingPayment && order.DepositAmount > 0 && n.Amount == order.DepositAmount:
			tranche = domain.TrancheDeposit
		case order.Status == domain.StatusDepositPaid && n.Amount == order.BalanceAmount():
			tranche = domain.TrancheBalance
		default:
			return "", "", fmt.Errorf("%w: %d for order %s in %s", domain.ErrInvalidAmount, n.Amount, order.OrderCode, order.Status)
		}
	}

	from, to, amount := trancheTerms(order, tranche)
	if n.Amount != amount {
		return "", "", fmt.Errorf("%w: got %d, %s tranche is %d", domain.ErrInvalidAmount, n.Amount, tranche, amount)
	}
	if order.Status != from {
		return "", "", fmt.Errorf("%w: %s tranche while %s", ErrTrancheOutOfOrder, tranche, order.Status)
	}
	return tranche, to, nil
}

func (s *ReconciliationService) intentTranche(ctx context.Context, code, intentID string) (domain.Tranche, bool, error) {
	if intentID == "" {
		return "", false, nil
	}
	txns, err := s.repo.ListTransactions(ctx, code)
	if err != nil {
		return "", false, err
	}
	for _, t := range txns {
		if t.IntentID == intentID && t.Status == domain.TxInitiated {
			return t.Tranche, true, nil
		}
	}
	return "", false, nil
}

// trancheTerms returns the status a tranche is paid from, the status it leads
// to and its amount.
func trancheTerms(order *domain.Order, tranche domain.Tranche) (domain.OrderStatus, domain.OrderStatus, int64) {
	switch tranche {
	case domain.TrancheDeposit:
		return domain.StatusPendingPayment, domain.StatusDepositPaid, order.DepositAmount
	case domain.TrancheBalance:
		return domain.StatusDepositPaid, domain.StatusProcessing, order.BalanceAmount()
	}
	return domain.StatusPendingPayment, domain.StatusProcessing, order.TotalAmount
}

// outstandingTranche is the tranche an order in its current status is
// waiting for.
func outstandingTranche(order *domain.Order) (domain.Tranche, int64, error) {
	switch order.Status {
	case domain.StatusPendingPayment:
		if order.DepositAmount > 0 {
			return domain.TrancheDeposit, order.DepositAmount, nil
		}
		return domain.TrancheFull, order.TotalAmount, nil
	case domain.StatusDepositPaid:
		if order.BalanceAmount() > 0 {
			return domain.TrancheBalance, order.BalanceAmount(), nil
		}
	}
	return "", 0, fmt.Errorf("%w: order %s is %s", domain.ErrNoPendingPayment, order.OrderCode, order.Status)
}

func (s *ReconciliationService) recordFailure(ctx context.Context, order *domain.Order, n *domain.PaymentNotification) error {
	txns, err := s.repo.ListTransactions(ctx, order.OrderCode)
	if err != nil {
		return err
	}
	tranche := domain.Tranche("")
	for _, t := range txns {
		if t.IntentID == n.IntentID {
			tranche = t.Tranche
		}
	}
	if failedSinceInitiated(txns, n.IntentID) {
		return nil
	}
	if tranche == "" {
		tranche, _, _ = outstandingTranche(order)
	}

	s.logger.Warn("payment failed",
		zap.String("order_code", order.OrderCode),
		zap.String("intent_id", n.IntentID),
		zap.String("transaction_id", n.TransactionID),
	)
	return s.repo.AppendTransaction(ctx, &domain.PaymentTransaction{
		OrderCode:            order.OrderCode,
		IntentID:             n.IntentID,
		GatewayTransactionID: n.TransactionID,
		Tranche:              tranche,
		Amount:               n.Amount,
		Status:               domain.TxFailed,
		ReceivedAt:           s.now(),
	})
}

func (s *ReconciliationService) latestIntentFailed(ctx context.Context, code string) bool {
	txns, err := s.repo.ListTransactions(ctx, code)
	if err != nil {
		return false
	}
	latest := ""
	for _, t := range txns {
		if t.Status == domain.TxInitiated {
			latest = t.IntentID
		}
	}
	return latest != "" && failedSinceInitiated(txns, latest)
}

// failedSinceInitiated reports whether intentID has a failed row after its
// most recent initiated row. The gateway reuses an intent id when the same
// tranche is retried, so older failures do not count.
func failedSinceInitiated(txns []domain.PaymentTransaction, intentID string) bool {
	failed := false
	for _, t := range txns {
		if t.IntentID != intentID {
			continue
		}
		switch t.Status {
		case domain.TxInitiated:
			failed = false
		case domain.TxFailed:
			failed = true
		}
	}
	return failed
}

// transition is the only place an order's status changes after creation.
// With txn set, the succeeded transaction is recorded in the same database
// transaction as the status change.
func (s *ReconciliationService) transition(ctx context.Context, order *domain.Order, next domain.OrderStatus, txn *domain.PaymentTransaction) error {
	from := order.Status
	log := s.logger.With(
		zap.String("order_code", order.OrderCode),
		zap.String("from", from.String()),
		zap.String("to", next.String()),
	)
	if txn != nil {
		log = log.With(zap.String("transaction_id", txn.GatewayTransactionID))
	}

	if err := domain.CheckTransition(from, next); err != nil {
		log.Warn("status transition rejected", zap.Error(err))
		return err
	}

	now := s.now()
	if from == domain.StatusDepositPaid && next == domain.StatusCancelled && !s.withinCancellationWindow(order, now) {
		log.Warn("status transition rejected", zap.Error(domain.ErrCancellationWindowClosed))
		return domain.ErrCancellationWindowClosed
	}

	var (
		ok  bool
		err error
	)
	if txn != nil {
		ok, err = s.repo.ApplyPayment(ctx, txn, from, next)
	} else {
		ok, err = s.repo.CompareAndSetStatus(ctx, order.OrderCode, from, next, now)
	}
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateTranche) {
			return err
		}
		log.Error("status transition failed", zap.Error(err))
		return fmt.Errorf("transition order %s: %w", order.OrderCode, err)
	}
	if !ok {
		log.Warn("status transition lost a race")
		return fmt.Errorf("%w: order %s", ErrStatusConflict, order.OrderCode)
	}

	order.Status = next
	order.UpdatedAt = now
	if next == domain.StatusDepositPaid {
		order.DepositPaidAt = &now
	}
	log.Info("order status changed")

	evt := domain.OrderStatusChangedEvent{
		OrderCode: order.OrderCode,
		From:      from,
		To:        next,
		ChangedAt: now,
	}
	if txn != nil {
		evt.TransactionID = txn.GatewayTransactionID
	}
	go s.publishStatusChanged(context.Background(), evt)
	return nil
}

func (s *ReconciliationService) withinCancellationWindow(order *domain.Order, now time.Time) bool {
	if order.DepositPaidAt == nil {
		return true
	}
	return now.Sub(*order.DepositPaidAt) <= s.opts.CancellationWindow
}

func (s *ReconciliationService) publishStatusChanged(ctx context.Context, evt domain.OrderStatusChangedEvent) {
	if err := s.publisher.Publish(ctx, domain.EventOrderStatusChanged, evt); err != nil {
		s.logger.Error("publish order.status_changed", zap.String("order_code", evt.OrderCode), zap.Error(err))
	}
}

func (s *ReconciliationService) find(ctx context.Context, code string) (*domain.Order, error) {
	order, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

func (s *ReconciliationService) nextDelay(d time.Duration) time.Duration {
	d *= 2
	if d > s.opts.PollMaxInterval {
		return s.opts.PollMaxInterval
	}
	return d
}
