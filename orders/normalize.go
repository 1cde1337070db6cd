// Package orders turns remote order documents into local rows and persists
// them.
package orders

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-orderfeed/core"
)

const (
	PickupAtCounter = "pickup at counter"

	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

type NormalizeOptions struct {
	// Location is the local timezone timestamps are converted to. Nil means UTC.
	Location *time.Location
	Source   string
}

// Normalize flattens an order document into item, payment and benefit rows.
// It never fails: malformed timestamps become nil and missing quantities
// default to one.
func Normalize(doc core.OrderDocument, opts NormalizeOptions) core.NormalizedOrder {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	orderID := strings.TrimSpace(doc.ID)
	orderDate, orderTime := splitTimestamp(doc.CreatedAt, loc)
	_, scheduledTime := splitTimestamp(firstNonEmpty(
		doc.Schedule.DeliveryDateTimeStart,
		doc.Delivery.DeliveryDateTime,
	), loc)
	deliverAt := scheduledTime
	if deliverAt == nil {
		deliverAt = orderTime
	}
	address := FormatAddress(doc.Delivery.DeliveryAddress)
	pickupCode := doc.VerificationCodes.PickupCode()

	out := core.NormalizedOrder{
		OrderID:  orderID,
		Items:    make([]core.OrderItemRow, 0, len(doc.Items)),
		Payments: make([]core.OrderPaymentRow, 0, len(doc.Payments.Methods)),
		Benefits: []core.OrderBenefitRow{},
	}

	for index, item := range doc.Items {
		quantity := normalizeQuantity(item.Quantity.Float())
		price := item.TotalPrice.Float()
		if price == 0 && item.UnitPrice != 0 {
			price = item.UnitPrice.Float() * float64(quantity)
		}
		out.Items = append(out.Items, core.OrderItemRow{
			OrderID:          orderID,
			ItemIndex:        index,
			DisplayID:        doc.DisplayID.String(),
			Name:             strings.TrimSpace(item.Name),
			Quantity:         quantity,
			Price:            price,
			Extra:            itemExtra(item),
			Status:           core.StatusPending,
			CustomerName:     strings.TrimSpace(doc.Customer.Name),
			CustomerDocument: doc.Customer.DocumentNumber.String(),
			OrderDate:        orderDate,
			OrderTime:        orderTime,
			DeliverAt:        deliverAt,
			OrderTiming:      strings.TrimSpace(doc.OrderTiming),
			DeliveryAddress:  address,
			PickupCode:       pickupCode,
			Source:           strings.TrimSpace(opts.Source),
		})
	}

	for index, method := range doc.Payments.Methods {
		amount := method.Value.Float()
		if method.Amount.Value != 0 {
			amount = centsToUnits(method.Amount.Value.Float())
		}
		out.Payments = append(out.Payments, core.OrderPaymentRow{
			OrderID:     orderID,
			MethodIndex: index,
			Name:        firstNonEmpty(method.Name, method.Method),
			InPerson:    bool(method.InPerson),
			CardBrand:   strings.TrimSpace(method.Card.Brand),
			Provider:    strings.TrimSpace(method.Card.Provider),
			Amount:      amount,
			Liability:   strings.TrimSpace(method.Liability),
		})
	}

	for benefitIndex, benefit := range doc.Benefits {
		for sponsorIndex, sponsor := range benefit.Sponsors() {
			out.Benefits = append(out.Benefits, core.OrderBenefitRow{
				OrderID:          orderID,
				BenefitIndex:     benefitIndex,
				SponsorshipIndex: sponsorIndex,
				Target:           strings.TrimSpace(benefit.Target),
				Liability:        sponsor.Payer(),
				Amount:           centsToUnits(sponsor.Amount.Value.Float()),
			})
		}
	}

	return out
}

// FormatAddress renders "street number", or PickupAtCounter when the order
// has no street.
func FormatAddress(addr core.OrderAddress) string {
	parts := make([]string, 0, 2)
	if street := strings.TrimSpace(addr.StreetName); street != "" {
		parts = append(parts, street)
	}
	if number := addr.StreetNumber.String(); number != "" && len(parts) > 0 {
		parts = append(parts, number)
	}
	if len(parts) == 0 {
		return PickupAtCounter
	}
	return strings.Join(parts, " ")
}

// splitTimestamp converts an ISO-8601 timestamp to loc and returns its date
// and time parts. Zone-less values are read as UTC.
func splitTimestamp(raw string, loc *time.Location) (*string, *string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range timestampLayouts {
		parsed, err := time.ParseInLocation(layout, raw, time.UTC)
		if err != nil {
			continue
		}
		local := parsed.In(loc)
		date := local.Format(dateLayout)
		clock := local.Format(timeLayout)
		return &date, &clock
	}
	return nil, nil
}

func itemExtra(item core.OrderItem) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(item.Observations))
	for _, option := range item.Options {
		writeOptionLine(&b, "", option)
		for _, custom := range option.Customizations {
			writeOptionLine(&b, "  ", custom)
		}
	}
	return b.String()
}

func writeOptionLine(b *strings.Builder, indent string, option core.OrderOption) {
	b.WriteString("\n")
	b.WriteString(indent)
	b.WriteString(formatQuantity(option.Quantity.Float()))
	b.WriteString(" ")
	b.WriteString(strings.TrimSpace(option.Name))
}

func normalizeQuantity(value float64) int {
	quantity := int(math.Round(value))
	if quantity <= 0 {
		return 1
	}
	return quantity
}

func formatQuantity(value float64) string {
	if value <= 0 {
		return "1"
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

func centsToUnits(cents float64) float64 {
	return cents / 100
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
