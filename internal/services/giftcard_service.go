package services

import (
	"context"
	"errors"
	"fmt"

	"smartwish-backend/internal/logger"
	"smartwish-backend/internal/models"
	"smartwish-backend/internal/storage"
	"smartwish-backend/internal/tillo"
)

var (
	ErrOrderNotPaid    = errors.New("order is not paid")
	ErrNoGiftCardItems = errors.New("order has no gift card items")
)

// TilloAPI is the slice of the Tillo client the service depends on.
type TilloAPI interface {
	ListBrands(ctx context.Context) ([]tillo.Brand, error)
	CheckBrand(ctx context.Context, slug string) (*tillo.Brand, error)
	IssueGiftCard(ctx context.Context, req tillo.IssueRequest) (*tillo.GiftCard, error)
	CancelGiftCard(ctx context.Context, req tillo.CancelRequest) error
}

type GiftCardService struct {
	store storage.Store
	tillo TilloAPI
	log   *logger.Logger
}

func NewGiftCardService(store storage.Store, tillo TilloAPI, log *logger.Logger) *GiftCardService {
	return &GiftCardService{
		store: store,
		tillo: tillo,
		log:   log,
	}
}

func (s *GiftCardService) ListBrands(ctx context.Context) ([]tillo.Brand, error) {
	return s.tillo.ListBrands(ctx)
}

// CheckBrand verifies a brand is purchasable before the kiosk shows it.
func (s *GiftCardService) CheckBrand(ctx context.Context, slug string) (*tillo.Brand, error) {
	return s.tillo.CheckBrand(ctx, slug)
}

// IssueForOrder buys one digital gift card per gift card unit on a paid
// order. The order ID seeds each client_request_id, so replaying the call
// after a crash cannot double-issue on the provider side.
//
// On a mid-order failure the cards issued so far are returned along with the
// error, so the kiosk can still hand over what the customer paid for.
func (s *GiftCardService) IssueForOrder(ctx context.Context, orderID string) ([]*models.IssuedGiftCard, error) {
	order, err := s.store.GetOrder(orderID)
	if err != nil {
		return nil, ErrOrderNotFound
	}

	if order.Status != models.OrderPaid && order.Status != models.OrderCompleted {
		s.log.LogSecurity("GIFTCARD_BLOCKED", fmt.Sprintf("Issue attempt for order %s in status %s", order.OrderID, order.Status))
		return nil, ErrOrderNotPaid
	}

	var issued []*models.IssuedGiftCard
	seq := 0
	for _, item := range order.Items {
		if item.Type != models.ItemGiftCard {
			continue
		}

		quantity := item.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		brand := tillo.NormalizeBrandSlug(item.Brand)

		for i := 0; i < quantity; i++ {
			seq++
			card, err := s.tillo.IssueGiftCard(ctx, tillo.IssueRequest{
				ClientRequestID: fmt.Sprintf("%s-%d", order.OrderID, seq),
				Brand:           brand,
				Amount:          item.UnitPrice,
				Currency:        order.Currency,
			})
			if err != nil {
				s.log.Error("GIFTCARD", fmt.Sprintf("Failed to issue %s card %d for order %s: %v", brand, seq, order.OrderID, err))
				return issued, fmt.Errorf("failed to issue %s gift card: %w", brand, err)
			}

			issued = append(issued, &models.IssuedGiftCard{
				Brand:     brand,
				Amount:    item.UnitPrice,
				Currency:  order.Currency,
				Reference: card.Reference,
				Code:      card.Code,
				URL:       card.URL,
				ExpiresAt: card.ExpiresAt,
			})
			s.log.LogPayment("GIFTCARD_ISSUED", order.OrderID, fmt.Sprintf("%s card %s", brand, card.Reference))
		}
	}

	if seq == 0 {
		return nil, ErrNoGiftCardItems
	}
	return issued, nil
}

// CancelCard voids a previously issued gift card, e.g. after a refund.
func (s *GiftCardService) CancelCard(ctx context.Context, req *models.CancelGiftCardRequest) error {
	err := s.tillo.CancelGiftCard(ctx, tillo.CancelRequest{
		ClientRequestID:   req.ClientRequestID,
		Brand:             tillo.NormalizeBrandSlug(req.Brand),
		OriginalReference: req.Reference,
	})
	if err != nil {
		return fmt.Errorf("failed to cancel gift card: %w", err)
	}

	s.log.LogPayment("GIFTCARD_CANCELLED", req.ClientRequestID, fmt.Sprintf("%s card %s", req.Brand, req.Reference))
	return nil
}
