package orders

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazaarhq/bazaar-backend/pkg/auth"
	"github.com/bazaarhq/bazaar-backend/pkg/db/models"
	"github.com/bazaarhq/bazaar-backend/pkg/enums"
	pkgerrors "github.com/bazaarhq/bazaar-backend/pkg/errors"
	"github.com/bazaarhq/bazaar-backend/pkg/outbox"
	"github.com/bazaarhq/bazaar-backend/pkg/outbox/payloads"
)

// SendDigitalLink re-issues the download link of a paid digital line.
func (s *Service) SendDigitalLink(ctx context.Context, detailID uuid.UUID) (*DigitalLink, error) {
	var link *DigitalLink
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		detail, err := repo.FindDetail(ctx, detailID)
		if err != nil {
			return mapNotFound(err, "Order detail not found", "load order detail")
		}
		if detail.PaymentStatus != enums.PaymentStatusPaid {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "Order has not been paid")
		}
		order, err := repo.FindOrder(ctx, detail.OrderID)
		if err != nil {
			return mapNotFound(err, "Order not found", "load order")
		}
		link, err = s.issueDigitalLink(ctx, tx, repo, order, detail)
		if err != nil {
			return err
		}
		if link == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "Order detail has no digital file")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return link, nil
}

// issueDigitalLink signs a download token for a digital line, emits the link
// notification and completes the detail. Non-digital lines return nil.
func (s *Service) issueDigitalLink(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order, detail *models.OrderDetail) (*DigitalLink, error) {
	if detail.ProductDetails.Type != enums.ProductTypeDigital {
		return nil, nil
	}
	fileID := detail.DigitalFileID()
	if fileID == nil {
		return nil, nil
	}

	token, expiresAt, err := auth.MintDigitalToken(s.cfg.Digital, s.now(), detail.ID, *fileID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sign digital token")
	}
	link := &DigitalLink{
		OrderDetailID: detail.ID,
		URL:           s.downloadURL(detail.ID, token),
		ExpiresAt:     expiresAt,
	}

	if !detail.Status.IsTerminal() {
		from := detail.Status
		if err := repo.UpdateDetail(ctx, detail.ID, map[string]any{"status": enums.OrderStatusCompleted}); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete digital order detail")
		}
		detail.Status = enums.OrderStatusCompleted
		if err := addLog(ctx, repo, LogEntry{
			OrderID:       detail.OrderID,
			OrderDetailID: &detail.ID,
			EventType:     LogEventDigitalLink,
			OldData:       map[string]any{"status": from},
			NewData:       map[string]any{"status": enums.OrderStatusCompleted},
		}); err != nil {
			return nil, err
		}
	}

	err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventDigitalLinkIssued,
		AggregateType: enums.AggregateOrderDetail,
		AggregateID:   detail.ID,
		Data: payloads.DigitalLinkIssuedEvent{
			OrderID:       detail.OrderID,
			OrderDetailID: detail.ID,
			CustomerID:    detail.CustomerID,
			Email:         order.Email,
			ProductName:   detail.ProductDetails.Name,
			DownloadURL:   link.URL,
			ExpiresAt:     expiresAt,
		},
	})
	if err != nil {
		return nil, err
	}
	return link, nil
}

func (s *Service) downloadURL(detailID uuid.UUID, token string) string {
	base := strings.TrimRight(s.cfg.BaseURL, "/")
	return fmt.Sprintf("%s/api/v1/orders/details/%s/digitals/download?token=%s", base, detailID, url.QueryEscape(token))
}

// DigitalFileFromToken verifies a download token and returns the stored file
// it grants access to.
func (s *Service) DigitalFileFromToken(ctx context.Context, detailID uuid.UUID, token string) (*models.DigitalFile, error) {
	claims, err := auth.ParseDigitalToken(s.cfg.Digital, strings.TrimSpace(token))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid download token")
	}
	if detailID != uuid.Nil && claims.OrderDetailID != detailID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "download token does not match order detail")
	}
	return s.catalog.DigitalFile(ctx, claims.DigitalFileID)
}
