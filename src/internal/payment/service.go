package payment

import (
	"context"
	"fmt"

	"quizhub-subscription-svc/src/internal/config"
	"quizhub-subscription-svc/src/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Service interface {
	Initiate(ctx context.Context, userID string, req *InitiateRequest) (*InitiateResponse, error)
}

type paymentService struct {
	txns     Repository
	gateways *GatewayResolver
	cfg      *config.Configuration
}

func NewPaymentService(txns Repository, gateways *GatewayResolver, cfg *config.Configuration) Service {
	return &paymentService{
		txns:     txns,
		gateways: gateways,
		cfg:      cfg,
	}
}

// Initiate creates the pending transaction first, then asks the gateway for
// a checkout URL. The pending row must exist before the gateway learns the
// transaction id, otherwise an early webhook has nothing to match.
func (s *paymentService) Initiate(ctx context.Context, userID string, req *InitiateRequest) (*InitiateResponse, error) {
	plan := s.cfg.PlanByID(req.PlanID)
	if plan == nil {
		return nil, models.ErrUnknownPlan
	}

	gateway, err := s.gateways.Resolve(req.Gateway)
	if err != nil {
		return nil, err
	}

	txn := &Transaction{
		TransactionID:    uuid.NewString(),
		UserID:           userID,
		Amount:           plan.Amount,
		DurationInMonths: plan.DurationInMonths,
		PlanID:           plan.ID,
		Status:           StatusPending,
		PaymentGateway:   req.Gateway,
	}

	if err := s.txns.Insert(ctx, txn); err != nil {
		return nil, err
	}

	description := fmt.Sprintf("%s premium subscription (%s)", s.cfg.App.Name, plan.ID)
	invoice, err := gateway.CreateInvoice(ctx, txn.TransactionID, plan.Amount, description)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"transaction_id": txn.TransactionID,
			"gateway":        req.Gateway,
		}).Error("Gateway invoice creation failed")

		if markErr := s.txns.MarkStatusIfPending(ctx, txn.TransactionID, StatusFailed); markErr != nil {
			logrus.WithError(markErr).WithField("transaction_id", txn.TransactionID).Warn("Failed to mark transaction failed")
		}
		return nil, models.ErrGatewayUnavailable
	}

	if err := s.txns.SetGatewayRef(ctx, txn.TransactionID, invoice.GatewayRef); err != nil {
		logrus.WithError(err).WithField("transaction_id", txn.TransactionID).Warn("Failed to store gateway ref")
	}

	logrus.WithFields(logrus.Fields{
		"transaction_id": txn.TransactionID,
		"user_id":        userID,
		"plan_id":        plan.ID,
		"amount":         plan.Amount,
		"gateway":        req.Gateway,
	}).Info("Payment initiated")

	return &InitiateResponse{
		TransactionID: txn.TransactionID,
		RedirectURL:   invoice.RedirectURL,
	}, nil
}
