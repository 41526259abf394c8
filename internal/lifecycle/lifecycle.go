// Package lifecycle holds the order state machine shared by every order store.
//
// Order status only moves forward: pending_payment precedes each of the
// terminal states payment_approved, payment_rejected and payment_cancelled,
// and no terminal state supersedes another. The decision is computed from
// the absolute payment status reported by the gateway, so replaying the same
// notification, or replaying notifications in a different order, converges
// on the same document.
package lifecycle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/jayjaytrn/storefront-checkout/models"
)

// Target returns the order status a payment status implies, and false when
// the payment status implies no transition at all (refunds, chargebacks,
// vocabulary this service does not know).
func Target(s models.PaymentStatus) (models.OrderStatus, bool) {
	switch s {
	case models.PaymentApproved:
		return models.OrderPaymentApproved, true
	case models.PaymentRejected:
		return models.OrderPaymentRejected, true
	case models.PaymentCancelled:
		return models.OrderPaymentCancelled, true
	case models.PaymentPending, models.PaymentInProcess, models.PaymentAuthorized, models.PaymentInMediation:
		return models.OrderPendingPayment, true
	default:
		return "", false
	}
}

type Decision struct {
	To models.OrderStatus
	// Record is false when the payment fields must be left untouched:
	// stale deliveries and conflicting terminal statuses.
	Record   bool
	Conflict bool
}

// Next decides how an order in current reacts to a payment in incoming.
func Next(current models.OrderStatus, incoming models.PaymentStatus) Decision {
	target, implies := Target(incoming)

	if !current.IsTerminal() {
		if implies {
			return Decision{To: target, Record: true}
		}
		return Decision{To: current, Record: true}
	}

	switch {
	case !implies, target == current:
		return Decision{To: current, Record: true}
	case target == models.OrderPendingPayment:
		return Decision{To: current}
	default:
		return Decision{To: current, Conflict: true}
	}
}

// Apply mutates o according to u and reports what happened. UpdatedAt only
// moves when some field actually changed.
func Apply(o *models.Order, u models.PaymentUpdate, now time.Time) models.UpdateResult {
	res := models.UpdateResult{Order: o, From: o.OrderStatus, To: o.OrderStatus}

	if o.PaymentID != "" && u.PaymentID != "" && o.PaymentID != u.PaymentID {
		res.Conflict = true
		res.ConflictOn = fmt.Sprintf("payment %s reported for order bound to payment %s", u.PaymentID, o.PaymentID)
		res.Changed = flagReview(o, res.ConflictOn)
		if res.Changed {
			o.UpdatedAt = now
		}
		return res
	}

	d := Next(o.OrderStatus, u.PaymentStatus)
	changed := false

	if d.Conflict {
		res.Conflict = true
		res.ConflictOn = fmt.Sprintf("payment status %s received for order already %s", u.PaymentStatus, o.OrderStatus)
		changed = flagReview(o, res.ConflictOn)
	}

	if d.Record {
		if o.PaymentStatus != u.PaymentStatus {
			o.PaymentStatus = u.PaymentStatus
			changed = true
		}
		if o.PaymentID == "" && u.PaymentID != "" {
			o.PaymentID = u.PaymentID
			changed = true
		}
		if len(u.PaymentSnapshot) > 0 && !sameJSON(o.PaymentSnapshot, u.PaymentSnapshot) {
			o.PaymentSnapshot = append([]byte(nil), u.PaymentSnapshot...)
			changed = true
		}
	}

	if o.OrderStatus != d.To {
		o.OrderStatus = d.To
		changed = true
	}

	if changed {
		o.UpdatedAt = now
	}
	res.To = o.OrderStatus
	res.Changed = changed
	return res
}

func flagReview(o *models.Order, reason string) bool {
	if o.ReviewRequired && o.ReviewReason == reason {
		return false
	}
	o.ReviewRequired = true
	o.ReviewReason = reason
	return true
}

// sameJSON compares documents semantically; stores may normalise key order.
func sameJSON(a, b []byte) bool {
	if bytes.Equal(a, b) {
		return true
	}
	var va, vb any
	if json.Unmarshal(a, &va) != nil || json.Unmarshal(b, &vb) != nil {
		return false
	}
	return reflect.DeepEqual(va, vb)
}
