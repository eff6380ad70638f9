package notifications

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/bazaarhq/bazaar-backend/pkg/db/models"
	"github.com/bazaarhq/bazaar-backend/pkg/enums"
	"github.com/bazaarhq/bazaar-backend/pkg/outbox/payloads"
	"github.com/bazaarhq/bazaar-backend/pkg/outbox/registry"
)

// Mail templates.
const (
	TemplateOrderReceipt    = "order_receipt"
	TemplateOrderAdmin      = "order_admin"
	TemplatePaymentReceipt  = "payment_receipt"
	TemplatePaymentAdmin    = "payment_admin"
	TemplateOrderStatus     = "order_status"
	TemplateRefundShop      = "refund_shop"
	TemplateRefundDesk      = "refund_desk"
	TemplateDigitalDownload = "digital_download"
	TemplateDeliveryStatus  = "delivery_status"
	TemplateDriverAssigned  = "driver_assigned"
	TemplateCompanyVerified = "company_verified"
	TemplatePayoutRequested = "payout_requested"
	TemplatePayoutDecided   = "payout_decided"
)

// dispatch is everything one event fans out into.
type dispatch struct {
	mail  []MailJob
	inApp []models.Notification
}

func (d *dispatch) addMail(job MailJob) {
	if strings.TrimSpace(job.Recipient) == "" {
		return
	}
	d.mail = append(d.mail, job)
}

func (d *dispatch) notify(role enums.ActorRole, id uuid.UUID, kind enums.NotificationType, title, message, link string) {
	if id == uuid.Nil {
		return
	}
	n := models.Notification{
		RecipientRole: role,
		RecipientID:   id,
		Type:          kind,
		Title:         title,
		Message:       message,
	}
	if link != "" {
		n.Link = &link
	}
	d.inApp = append(d.inApp, n)
}

// translate maps a decoded domain event to mail jobs and in-app rows.
func (c *Consumer) translate(ctx context.Context, event *registry.ResolvedEvent) (dispatch, error) {
	var out dispatch
	switch payload := event.Payload.(type) {
	case *payloads.OrderCreatedEvent:
		data := map[string]any{
			"tracking_code":  payload.TrackingCode,
			"total_price":    payload.TotalPrice.StringFixed(2),
			"currency":       payload.Currency,
			"payment_method": payload.PaymentMethod,
		}
		// prepaid orders get their summary from the payment receipt
		if payload.PaymentMethod == enums.PaymentMethodCOD {
			out.addMail(MailJob{Template: TemplateOrderReceipt, Recipient: payload.Email, Subject: "Your order " + payload.TrackingCode, Payload: data})
		}
		out.addMail(MailJob{Template: TemplateOrderAdmin, Recipient: c.cfg.AdminEmail, Subject: "New order " + payload.TrackingCode, Payload: data})
		for _, shopID := range payload.ShopIDs {
			out.notify(enums.ActorRoleShop, shopID, enums.NotificationTypeOrderAlert,
				"New order",
				fmt.Sprintf("Order %s includes your products.", payload.TrackingCode),
				"/orders/"+payload.OrderID.String())
		}

	case *payloads.OrderPaidEvent:
		lines := make([]map[string]any, 0, len(payload.Lines))
		for _, line := range payload.Lines {
			lines = append(lines, map[string]any{
				"product_name": line.ProductName,
				"quantity":     line.Quantity,
				"total_price":  line.TotalPrice.StringFixed(2),
			})
		}
		data := map[string]any{
			"tracking_code":  payload.TrackingCode,
			"transaction_id": payload.TransactionID,
			"total_price":    payload.TotalPrice.StringFixed(2),
			"currency":       payload.Currency,
			"lines":          lines,
		}
		out.addMail(MailJob{Template: TemplatePaymentReceipt, Recipient: payload.Email, Subject: "Payment received for " + payload.TrackingCode, Payload: data})
		out.addMail(MailJob{Template: TemplatePaymentAdmin, Recipient: c.cfg.AdminEmail, Subject: "Order paid " + payload.TrackingCode, Payload: data})

	case *payloads.OrderStatusChangedEvent:
		out.addMail(MailJob{
			Template:  TemplateOrderStatus,
			Recipient: payload.Email,
			Subject:   fmt.Sprintf("Order %s is %s", payload.TrackingCode, payload.To),
			Payload: map[string]any{
				"tracking_code": payload.TrackingCode,
				"from":          payload.From,
				"to":            payload.To,
			},
		})

	case *payloads.RefundRequestedEvent:
		data := map[string]any{
			"tracking_code":   payload.TrackingCode,
			"order_detail_id": payload.OrderDetailID.String(),
			"reason":          payload.Reason,
		}
		shopEmail, err := c.repo.ShopEmail(ctx, payload.ShopID)
		if err != nil {
			return dispatch{}, fmt.Errorf("lookup shop email: %w", err)
		}
		out.addMail(MailJob{Template: TemplateRefundShop, Recipient: shopEmail, Subject: "Refund requested for " + payload.TrackingCode, Payload: data})
		out.addMail(MailJob{Template: TemplateRefundDesk, Recipient: c.cfg.RefundEmail, Subject: "Refund requested for " + payload.TrackingCode, Payload: data})
		out.notify(enums.ActorRoleShop, payload.ShopID, enums.NotificationTypeRefundAlert,
			"Refund requested",
			fmt.Sprintf("A customer asked for a refund on order %s.", payload.TrackingCode),
			"/refunds/"+payload.RefundRequestID.String())

	case *payloads.DigitalLinkIssuedEvent:
		out.addMail(MailJob{
			Template:  TemplateDigitalDownload,
			Recipient: payload.Email,
			Subject:   "Your download for " + payload.ProductName,
			Payload: map[string]any{
				"product_name": payload.ProductName,
				"download_url": payload.DownloadURL,
				"expires_at":   payload.ExpiresAt,
			},
		})

	case *payloads.DeliveryStatusChangedEvent:
		out.addMail(MailJob{
			Template:  TemplateDeliveryStatus,
			Recipient: payload.Email,
			Subject:   fmt.Sprintf("Order %s: %s", payload.TrackingCode, payload.StatusText),
			Payload: map[string]any{
				"tracking_code": payload.TrackingCode,
				"status":        payload.To,
				"status_text":   payload.StatusText,
			},
		})
		out.notify(enums.ActorRoleCompany, payload.CompanyID, enums.NotificationTypeDeliveryAlert,
			"Delivery updated",
			fmt.Sprintf("Order %s: %s.", payload.TrackingCode, payload.StatusText),
			"/deliveries/"+payload.OrderDetailID.String())

	case *payloads.DriverAssignedEvent:
		driverEmail, err := c.repo.DriverEmail(ctx, payload.DriverID)
		if err != nil {
			return dispatch{}, fmt.Errorf("lookup driver email: %w", err)
		}
		ids := make([]string, 0, len(payload.OrderDetailIDs))
		for _, id := range payload.OrderDetailIDs {
			ids = append(ids, id.String())
		}
		out.addMail(MailJob{
			Template:  TemplateDriverAssigned,
			Recipient: driverEmail,
			Subject:   fmt.Sprintf("%d new deliveries assigned", len(ids)),
			Payload:   map[string]any{"order_detail_ids": ids},
		})
		out.notify(enums.ActorRoleDriver, payload.DriverID, enums.NotificationTypeDeliveryAlert,
			"New deliveries",
			fmt.Sprintf("You have %d new deliveries.", len(ids)),
			"/deliveries")

	case *payloads.CompanyVerifiedEvent:
		out.addMail(MailJob{
			Template:  TemplateCompanyVerified,
			Recipient: payload.Email,
			Subject:   "Your delivery company is verified",
			Payload:   map[string]any{"name": payload.Name},
		})
		out.notify(enums.ActorRoleCompany, payload.CompanyID, enums.NotificationTypeAccountAlert,
			"Account verified",
			fmt.Sprintf("%s can now receive deliveries.", payload.Name),
			"")

	case *payloads.PayoutRequestedEvent:
		out.addMail(MailJob{
			Template:  TemplatePayoutRequested,
			Recipient: c.cfg.AdminEmail,
			Subject:   "Payout request " + payload.Code,
			Payload: map[string]any{
				"code":        payload.Code,
				"tenant_type": payload.TenantType,
				"tenant_id":   payload.TenantID.String(),
				"balance":     payload.Balance.StringFixed(2),
				"total_order": payload.TotalOrder,
				"attempts":    payload.RequestAttempts,
			},
		})

	case *payloads.PayoutDecidedEvent:
		role, email, err := c.tenantContact(ctx, payload.TenantType, payload.TenantID)
		if err != nil {
			return dispatch{}, err
		}
		data := map[string]any{
			"code":    payload.Code,
			"status":  payload.Status,
			"balance": payload.Balance.StringFixed(2),
		}
		message := fmt.Sprintf("Payout %s of %s was approved.", payload.Code, payload.Balance.StringFixed(2))
		if payload.Status == enums.PayoutStatusRejected {
			reason := ""
			if payload.RejectReason != nil {
				reason = *payload.RejectReason
				data["reason"] = reason
			}
			message = fmt.Sprintf("Payout %s was rejected. Reason: %s", payload.Code, reason)
		}
		out.addMail(MailJob{Template: TemplatePayoutDecided, Recipient: email, Subject: "Payout " + payload.Code + " " + string(payload.Status), Payload: data})
		out.notify(role, payload.TenantID, enums.NotificationTypePayoutAlert,
			"Payout "+string(payload.Status),
			strings.TrimSpace(message),
			"/payouts/"+payload.PayoutRequestID.String())

	default:
		return dispatch{}, nil
	}
	return out, nil
}

func (c *Consumer) tenantContact(ctx context.Context, tenantType enums.TenantType, id uuid.UUID) (enums.ActorRole, string, error) {
	switch tenantType {
	case enums.TenantTypeShop:
		email, err := c.repo.ShopEmail(ctx, id)
		if err != nil {
			return "", "", fmt.Errorf("lookup shop email: %w", err)
		}
		return enums.ActorRoleShop, email, nil
	case enums.TenantTypeDelivery:
		email, err := c.repo.CompanyEmail(ctx, id)
		if err != nil {
			return "", "", fmt.Errorf("lookup company email: %w", err)
		}
		return enums.ActorRoleCompany, email, nil
	}
	return "", "", fmt.Errorf("unknown tenant type %q", tenantType)
}
