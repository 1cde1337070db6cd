package core

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// OrderDocument is the remote order detail as returned by the marketplace.
type OrderDocument struct {
	ID                string            `json:"id"`
	DisplayID         FlexString        `json:"displayId"`
	CreatedAt         string            `json:"createdAt"`
	OrderTiming       string            `json:"orderTiming"`
	OrderType         string            `json:"orderType"`
	Customer          OrderCustomer     `json:"customer"`
	Items             []OrderItem       `json:"items"`
	Delivery          OrderDelivery     `json:"delivery"`
	Schedule          OrderSchedule     `json:"schedule"`
	Payments          OrderPayments     `json:"payments"`
	Benefits          OrderBenefits     `json:"benefits"`
	VerificationCodes VerificationCodes `json:"verificationCodes"`
	Total             OrderTotal        `json:"total"`
}

type OrderCustomer struct {
	Name           string     `json:"name"`
	DocumentNumber FlexString `json:"documentNumber"`
}

type OrderItem struct {
	Name         string        `json:"name"`
	Quantity     FlexNumber    `json:"quantity"`
	UnitPrice    FlexNumber    `json:"unitPrice"`
	TotalPrice   FlexNumber    `json:"totalPrice"`
	Observations string        `json:"observations"`
	Options      []OrderOption `json:"options"`
}

type OrderOption struct {
	Name           string        `json:"name"`
	GroupName      string        `json:"groupName"`
	Quantity       FlexNumber    `json:"quantity"`
	Price          FlexNumber    `json:"price"`
	Customizations []OrderOption `json:"customizations"`
}

type OrderDelivery struct {
	DeliveryAddress  OrderAddress `json:"deliveryAddress"`
	DeliveryDateTime string       `json:"deliveryDateTime"`
	Observations     string       `json:"observations"`
}

type OrderAddress struct {
	StreetName    string     `json:"streetName"`
	StreetNumber  FlexString `json:"streetNumber"`
	Complement    string     `json:"complement"`
	Neighborhood  string     `json:"neighborhood"`
	City          string     `json:"city"`
	State         string     `json:"state"`
	PostalCode    FlexString `json:"postalCode"`
	Reference     string     `json:"reference"`
	FormattedText string     `json:"formattedAddress"`
}

type OrderSchedule struct {
	DeliveryDateTimeStart string `json:"deliveryDateTimeStart"`
	DeliveryDateTimeEnd   string `json:"deliveryDateTimeEnd"`
}

type OrderPayments struct {
	Prepaid FlexNumber           `json:"prepaid"`
	Pending FlexNumber           `json:"pending"`
	Methods []OrderPaymentMethod `json:"methods"`
}

type OrderPaymentMethod struct {
	Method    string      `json:"method"`
	Type      string      `json:"type"`
	Name      string      `json:"name"`
	InPerson  FlexBool    `json:"inPerson"`
	Liability string      `json:"liability"`
	Value     FlexNumber  `json:"value"`
	Currency  string      `json:"currency"`
	Card      OrderCard   `json:"card"`
	Amount    OrderAmount `json:"amount"`
}

type OrderCard struct {
	Brand    string `json:"brand"`
	Provider string `json:"provider"`
}

// OrderAmount carries monetary values in cents.
type OrderAmount struct {
	Value FlexNumber `json:"value"`
}

type OrderBenefit struct {
	Target      string     `json:"target"`
	TargetID    string     `json:"targetId"`
	Value       FlexNumber `json:"value"`
	Description string     `json:"description"`

	// Sponsorships and SponsorshipValues are alternative spellings of the
	// same split; Sponsors returns whichever is populated.
	Sponsorships      []OrderSponsorship `json:"sponsorships"`
	SponsorshipValues []OrderSponsorship `json:"sponsorshipValues"`
}

func (b OrderBenefit) Sponsors() []OrderSponsorship {
	if len(b.Sponsorships) > 0 {
		return b.Sponsorships
	}
	return b.SponsorshipValues
}

// OrderSponsorship names who pays a share of a benefit. Liability may be
// carried as name.
type OrderSponsorship struct {
	Liability   string      `json:"liability"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Amount      OrderAmount `json:"amount"`
}

func (s OrderSponsorship) Payer() string {
	return firstNonEmpty(s.Liability, s.Name)
}

// OrderBenefits accepts either a bare list or an object wrapping the list
// under "benefits".
type OrderBenefits []OrderBenefit

func (b *OrderBenefits) UnmarshalJSON(raw []byte) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		*b = nil
		return nil
	}
	if raw[0] == '[' {
		var list []OrderBenefit
		if err := json.Unmarshal(raw, &list); err != nil {
			return err
		}
		*b = list
		return nil
	}
	var wrapped struct {
		Benefits []OrderBenefit `json:"benefits"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return err
	}
	*b = wrapped.Benefits
	return nil
}

type VerificationCodes struct {
	Takeout FlexString `json:"takeout"`
	Pickup  FlexString `json:"pickup"`
	Code    FlexString `json:"code"`
}

func (v VerificationCodes) PickupCode() string {
	return firstNonEmpty(string(v.Takeout), string(v.Pickup), string(v.Code))
}

type OrderTotal struct {
	SubTotal    FlexNumber `json:"subTotal"`
	DeliveryFee FlexNumber `json:"deliveryFee"`
	Benefits    FlexNumber `json:"benefits"`
	OrderAmount FlexNumber `json:"orderAmount"`
}

// FlexString reads any JSON scalar as text. Numbers and booleans keep their
// literal form; null, objects and arrays decode to "".
type FlexString string

func (s *FlexString) UnmarshalJSON(raw []byte) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		*s = ""
		return nil
	}
	switch raw[0] {
	case '"':
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return err
		}
		*s = FlexString(text)
	case '{', '[', 'n':
		*s = ""
	default:
		*s = FlexString(raw)
	}
	return nil
}

func (s FlexString) String() string {
	return strings.TrimSpace(string(s))
}

// FlexNumber reads a JSON number or a numeric string, accepting a decimal
// comma. Anything else decodes to 0.
type FlexNumber float64

func (n *FlexNumber) UnmarshalJSON(raw []byte) error {
	*n = 0
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return err
		}
		text = strings.ReplaceAll(strings.TrimSpace(text), ",", ".")
	}
	value, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return nil
	}
	*n = FlexNumber(value)
	return nil
}

func (n FlexNumber) Float() float64 {
	return float64(n)
}

// FlexBool reads a JSON boolean, a boolean string such as "true" or "1", or
// a number where non-zero is true. Anything else decodes to false.
type FlexBool bool

func (b *FlexBool) UnmarshalJSON(raw []byte) error {
	*b = false
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return err
		}
	}
	if value, err := strconv.ParseBool(strings.TrimSpace(text)); err == nil {
		*b = FlexBool(value)
		return nil
	}
	if value, err := strconv.ParseFloat(strings.TrimSpace(text), 64); err == nil {
		*b = value != 0
	}
	return nil
}

// ParseOrderDocument decodes a remote order detail body. Mistyped scalar
// fields default instead of failing the document.
func ParseOrderDocument(raw []byte) (OrderDocument, error) {
	var doc OrderDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return OrderDocument{}, MalformedPayloadError("order detail is not valid JSON", map[string]any{
			"error": err.Error(),
		})
	}
	return doc, nil
}

// OrderItemRow is one persisted line item of an order.
type OrderItemRow struct {
	OrderID          string
	ItemIndex        int
	DisplayID        string
	Name             string
	Quantity         int
	Price            float64
	Extra            string
	Status           OrderStatus
	CustomerName     string
	CustomerDocument string
	OrderDate        *string
	OrderTime        *string
	DeliverAt        *string
	OrderTiming      string
	DeliveryAddress  string
	PickupCode       string
	Source           string
}

type OrderPaymentRow struct {
	OrderID     string
	MethodIndex int
	Name        string
	InPerson    bool
	CardBrand   string
	Provider    string
	Amount      float64
	Liability   string
}

type OrderBenefitRow struct {
	OrderID          string
	BenefitIndex     int
	SponsorshipIndex int
	Target           string
	Liability        string
	Amount           float64
}

// NormalizedOrder is the set of rows derived from one order document.
type NormalizedOrder struct {
	OrderID  string            `json:"orderId"`
	Items    []OrderItemRow    `json:"items"`
	Payments []OrderPaymentRow `json:"payments"`
	Benefits []OrderBenefitRow `json:"benefits"`
}

// OrderInsertResult counts rows actually written; ignored duplicates are excluded.
type OrderInsertResult struct {
	Items    int
	Payments int
	Benefits int
}

// OrderState is the persisted view of an order.
type OrderState struct {
	OrderID  string
	Status   OrderStatus
	Items    []OrderItemRow
	Payments []OrderPaymentRow
	Benefits []OrderBenefitRow
}
