package orders

import (
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-orderfeed/core"
)

const sampleDocument = `{
  "id": "o-1",
  "displayId": "4821",
  "createdAt": "2024-05-01T15:30:00.000Z",
  "orderTiming": "IMMEDIATE",
  "customer": {"name": "Ana Souza", "documentNumber": "12345678900"},
  "items": [
    {
      "name": "X-Burger",
      "quantity": 2,
      "unitPrice": 15,
      "totalPrice": 32,
      "observations": "no onion",
      "options": [
        {"name": "bacon", "quantity": 1, "customizations": [{"name": "crispy", "quantity": 1}]},
        {"name": "cheddar", "quantity": 2}
      ]
    },
    {"name": "Soda", "unitPrice": 6}
  ],
  "delivery": {
    "deliveryAddress": {"streetName": "Rua das Flores", "streetNumber": "10"},
    "deliveryDateTime": "2024-05-01T16:10:00Z"
  },
  "payments": {
    "methods": [
      {"method": "CREDIT", "inPerson": false, "liability": "IFOOD", "card": {"brand": "VISA", "provider": "CIELO"}, "amount": {"value": 3800}}
    ]
  },
  "benefits": [
    {"target": "CART", "sponsorships": [{"liability": "IFOOD", "amount": {"value": 250}}, {"liability": "MERCHANT", "amount": {"value": 100}}]},
    {"target": "DELIVERY_FEE", "sponsorshipValues": [{"name": "IFOOD", "amount": {"value": 500}}]}
  ],
  "verificationCodes": {"pickup": "7788"}
}`

func TestNormalize_ItemRows(t *testing.T) {
	doc := mustParse(t, sampleDocument)
	order := Normalize(doc, NormalizeOptions{Location: saoPaulo(t), Source: "IFOOD"})

	if order.OrderID != "o-1" {
		t.Fatalf("expected order id o-1, got %q", order.OrderID)
	}
	if len(order.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(order.Items))
	}
	first := order.Items[0]
	if first.Quantity != 2 || first.Price != 32 {
		t.Fatalf("expected quantity 2 price 32, got %d %v", first.Quantity, first.Price)
	}
	wantExtra := "no onion\n1 bacon\n  1 crispy\n2 cheddar"
	if first.Extra != wantExtra {
		t.Fatalf("unexpected extra %q", first.Extra)
	}
	if first.Status != core.StatusPending {
		t.Fatalf("expected pending status, got %q", first.Status)
	}
	if first.OrderDate == nil || *first.OrderDate != "2024-05-01" {
		t.Fatalf("unexpected order date %v", first.OrderDate)
	}
	if first.OrderTime == nil || *first.OrderTime != "12:30:00" {
		t.Fatalf("expected local order time 12:30:00, got %v", first.OrderTime)
	}
	if first.DeliverAt == nil || *first.DeliverAt != "13:10:00" {
		t.Fatalf("expected deliver at 13:10:00, got %v", first.DeliverAt)
	}
	if first.DeliveryAddress != "Rua das Flores 10" {
		t.Fatalf("unexpected address %q", first.DeliveryAddress)
	}
	if first.PickupCode != "7788" || first.Source != "IFOOD" || first.DisplayID != "4821" {
		t.Fatalf("unexpected identity fields %+v", first)
	}
	if first.CustomerName != "Ana Souza" || first.CustomerDocument != "12345678900" {
		t.Fatalf("unexpected customer fields %+v", first)
	}

	second := order.Items[1]
	if second.Quantity != 1 {
		t.Fatalf("expected missing quantity to default to 1, got %d", second.Quantity)
	}
	if second.Price != 6 {
		t.Fatalf("expected unit price fallback, got %v", second.Price)
	}
	if second.ItemIndex != 1 || second.Extra != "" {
		t.Fatalf("unexpected second item %+v", second)
	}
}

func TestNormalize_PaymentsAndBenefits(t *testing.T) {
	order := Normalize(mustParse(t, sampleDocument), NormalizeOptions{})

	if len(order.Payments) != 1 {
		t.Fatalf("expected 1 payment, got %d", len(order.Payments))
	}
	payment := order.Payments[0]
	if payment.Amount != 38 || payment.Name != "CREDIT" || payment.CardBrand != "VISA" || payment.Provider != "CIELO" {
		t.Fatalf("unexpected payment %+v", payment)
	}
	if payment.Liability != "IFOOD" || payment.InPerson {
		t.Fatalf("unexpected payment liability %+v", payment)
	}

	if len(order.Benefits) != 3 {
		t.Fatalf("expected one row per sponsorship, got %d", len(order.Benefits))
	}
	if order.Benefits[1].BenefitIndex != 0 || order.Benefits[1].SponsorshipIndex != 1 || order.Benefits[1].Liability != "MERCHANT" || order.Benefits[1].Amount != 1 {
		t.Fatalf("unexpected second benefit row %+v", order.Benefits[1])
	}
	if order.Benefits[2].Target != "DELIVERY_FEE" || order.Benefits[2].Liability != "IFOOD" || order.Benefits[2].Amount != 5 {
		t.Fatalf("unexpected sponsorshipValues row %+v", order.Benefits[2])
	}
}

func TestNormalize_PickupAndMalformedTimestamps(t *testing.T) {
	doc := core.OrderDocument{
		ID:        "o-2",
		CreatedAt: "yesterday",
		Items:     []core.OrderItem{{Name: "Coffee", Quantity: 1, TotalPrice: 5}},
	}
	order := Normalize(doc, NormalizeOptions{Location: time.UTC})

	item := order.Items[0]
	if item.DeliveryAddress != PickupAtCounter {
		t.Fatalf("expected pickup address, got %q", item.DeliveryAddress)
	}
	if item.OrderDate != nil || item.OrderTime != nil || item.DeliverAt != nil {
		t.Fatalf("expected malformed timestamps to be nil, got %+v", item)
	}
	if len(order.Payments) != 0 || len(order.Benefits) != 0 {
		t.Fatalf("expected no payments or benefits")
	}
}

func TestNormalize_DeliverAtFallsBackToOrderTime(t *testing.T) {
	doc := core.OrderDocument{
		ID:        "o-3",
		CreatedAt: "2024-05-01T10:00:00Z",
		Items:     []core.OrderItem{{Name: "Tea"}},
	}
	order := Normalize(doc, NormalizeOptions{Location: time.UTC})
	if order.Items[0].DeliverAt == nil || *order.Items[0].DeliverAt != "10:00:00" {
		t.Fatalf("expected order time fallback, got %v", order.Items[0].DeliverAt)
	}
}

func TestNormalize_ScheduledDeliveryWins(t *testing.T) {
	doc := core.OrderDocument{
		ID:        "o-4",
		CreatedAt: "2024-05-01T10:00:00Z",
		Schedule:  core.OrderSchedule{DeliveryDateTimeStart: "2024-05-01T19:45:00Z"},
		Delivery:  core.OrderDelivery{DeliveryDateTime: "2024-05-01T11:00:00Z"},
		Items:     []core.OrderItem{{Name: "Pizza"}},
	}
	order := Normalize(doc, NormalizeOptions{Location: time.UTC})
	if got := order.Items[0].DeliverAt; got == nil || *got != "19:45:00" {
		t.Fatalf("expected scheduled delivery time, got %v", got)
	}
}

func TestNormalize_MistypedScalarsDefault(t *testing.T) {
	doc := mustParse(t, `{
	  "id": "o1",
	  "displayId": 4821,
	  "customer": {"name": "Ana", "documentNumber": 12345678900},
	  "items": [
	    {"name": "Burger", "quantity": "2", "unitPrice": "16,50"},
	    {"name": "Fries", "quantity": null, "totalPrice": {"value": 9}},
	    {"name": "Soda", "quantity": true, "totalPrice": "6"}
	  ],
	  "delivery": {"deliveryAddress": {"streetName": "Rua X", "streetNumber": 123}},
	  "payments": {"methods": [{"method": "CASH", "inPerson": "true", "value": "38.5"}]},
	  "verificationCodes": {"pickup": 7788}
	}`)
	order := Normalize(doc, NormalizeOptions{})

	if len(order.Items) != 3 {
		t.Fatalf("expected every item kept, got %d", len(order.Items))
	}
	burger := order.Items[0]
	if burger.Quantity != 2 || burger.Price != 33 {
		t.Fatalf("expected string quantity and decimal comma price, got %d %v", burger.Quantity, burger.Price)
	}
	if fries := order.Items[1]; fries.Quantity != 1 || fries.Price != 0 {
		t.Fatalf("expected defaults for null quantity and object price, got %d %v", fries.Quantity, fries.Price)
	}
	if soda := order.Items[2]; soda.Quantity != 1 || soda.Price != 6 {
		t.Fatalf("expected boolean quantity to default, got %d %v", soda.Quantity, soda.Price)
	}
	if burger.DeliveryAddress != "Rua X 123" {
		t.Fatalf("expected numeric street number, got %q", burger.DeliveryAddress)
	}
	if burger.DisplayID != "4821" || burger.CustomerDocument != "12345678900" || burger.PickupCode != "7788" {
		t.Fatalf("expected numeric codes kept as text, got %+v", burger)
	}
	if len(order.Payments) != 1 || !order.Payments[0].InPerson || order.Payments[0].Amount != 38.5 {
		t.Fatalf("unexpected payments %+v", order.Payments)
	}
}

func TestFormatAddress(t *testing.T) {
	cases := []struct {
		addr core.OrderAddress
		want string
	}{
		{core.OrderAddress{StreetName: "Av. Paulista", StreetNumber: "1000"}, "Av. Paulista 1000"},
		{core.OrderAddress{StreetName: "Av. Paulista"}, "Av. Paulista"},
		{core.OrderAddress{StreetNumber: "12"}, PickupAtCounter},
		{core.OrderAddress{}, PickupAtCounter},
	}
	for _, tc := range cases {
		if got := FormatAddress(tc.addr); got != tc.want {
			t.Fatalf("FormatAddress(%+v) = %q, want %q", tc.addr, got, tc.want)
		}
	}
}

func mustParse(t *testing.T, raw string) core.OrderDocument {
	t.Helper()
	doc, err := core.ParseOrderDocument([]byte(strings.TrimSpace(raw)))
	if err != nil {
		t.Fatalf("parse order document: %v", err)
	}
	return doc
}

func saoPaulo(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}
