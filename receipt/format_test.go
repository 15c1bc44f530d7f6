package receipt

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"printedge/orders"
)

func i64(v int64) *int64 { return &v }

func deliveryOrder() orders.Order {
	return orders.Order{
		ID:              "9f3ab210-77aa-4f10-9c01-aabbccddeeff",
		OrderNumber:     i64(57),
		OrderType:       orders.TypeDelivery,
		CustomerName:    "Maria Souza",
		DeliveryPhone:   "11 98888-7777",
		DeliveryAddress: "Rua das Laranjeiras 1520, apto 42, Bairro Alto, Sao Paulo",
		Notes:           "Entregar na portaria",
		Total:           87.4,
		DeliveryFee:     8.0,
		CreatedAt:       "2025-03-01T18:32:10Z",
		Items: []orders.LineItem{
			{ProductName: "X-Burger Especial", Quantity: 2, ProductPrice: 32.5},
			{ProductName: "Refrigerante Lata", Quantity: 1, ProductPrice: 6.4, Notes: "bem gelado"},
		},
	}
}

func TestFormatRejectsNarrowWidth(t *testing.T) {
	if _, err := Format(deliveryOrder(), 19); err == nil {
		t.Fatal("expected error for width below minimum")
	}
	if _, err := Format(deliveryOrder(), 20); err != nil {
		t.Fatalf("width 20 should be accepted: %v", err)
	}
}

func TestFormatDeliveryReceipt(t *testing.T) {
	const w = 42
	out, err := Format(deliveryOrder(), w)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}

	wants := []string{
		"PEDIDO #57",
		"01/03/2025 18:32",
		"*** ENTREGA ***",
		"Cliente: Maria Souza",
		"Tel: 11 98888-7777",
		"End: ",
		"ITENS:",
		"2x X-Burger Especial",
		"R$65.00",
		"1x Refrigerante Lata",
		"  > bem gelado",
		"OBS: Entregar na portaria",
		"Taxa entrega: R$ 8.00",
		"TOTAL: R$ 87.40",
	}
	for _, want := range wants {
		if !strings.Contains(out, want) {
			t.Errorf("receipt missing %q\n%s", want, out)
		}
	}

	for i, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		if len(line) > w {
			t.Errorf("line %d exceeds width %d: %q", i, w, line)
		}
	}
}

func TestFormatTableOrder(t *testing.T) {
	const w = 48
	o := orders.Order{
		ID:          "o1",
		OrderType:   orders.TypeTable,
		TableNumber: i64(5),
		Total:       20.0,
		Items:       []orders.LineItem{{ProductName: "Burger", Quantity: 2, ProductPrice: 10.0}},
	}
	out, err := Format(o, w)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if !strings.Contains(out, "*** MESA 5 ***") {
		t.Errorf("missing table banner:\n%s", out)
	}

	itemLine := "2x Burger"
	price := "R$20.00"
	wantItem := itemLine + strings.Repeat(" ", w-len(itemLine)-len(price)) + price
	if !strings.Contains(out, wantItem) {
		t.Errorf("missing item line %q\n%s", wantItem, out)
	}

	wantTotal := strings.Repeat(" ", w-len("TOTAL: R$ 20.00")) + "TOTAL: R$ 20.00"
	if !strings.Contains(out, "\n"+wantTotal+"\n") {
		t.Errorf("missing right-justified total %q\n%s", wantTotal, out)
	}
}

func TestFormatTableWithoutNumberOmitsBanner(t *testing.T) {
	o := orders.Order{ID: "t1", OrderType: orders.TypeTable, Total: 10}
	out, err := Format(o, 32)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if strings.Contains(out, "MESA") {
		t.Errorf("banner should be omitted without a table number:\n%s", out)
	}
}

func TestFormatCounterAndTakeoutBanners(t *testing.T) {
	for orderType, banner := range map[string]string{
		orders.TypeCounter: "*** BALCAO ***",
		orders.TypeTakeout: "*** RETIRADA ***",
		"drive":            "*** DRIVE ***",
	} {
		out, err := Format(orders.Order{ID: "x", OrderType: orderType}, 32)
		if err != nil {
			t.Fatalf("Format(%s): %v", orderType, err)
		}
		if !strings.Contains(out, banner) {
			t.Errorf("type %s: missing banner %q", orderType, banner)
		}
	}
}

func TestFormatZeroItems(t *testing.T) {
	o := orders.Order{ID: "empty1", OrderType: orders.TypeCounter, Total: 0}
	out, err := Format(o, 32)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if !strings.Contains(out, "(Sem itens)") {
		t.Errorf("missing empty-order marker:\n%s", out)
	}
	if !strings.Contains(out, "TOTAL: R$ 0.00") {
		t.Errorf("missing zero total:\n%s", out)
	}
}

func TestFormatLongItemNameTruncated(t *testing.T) {
	const w = 32
	o := orders.Order{
		ID:    "long1",
		Items: []orders.LineItem{{ProductName: strings.Repeat("A", 60), Quantity: 1, ProductPrice: 5}},
	}
	out, err := Format(o, w)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	want := "1x " + strings.Repeat("A", w-8) + "..."
	if !strings.Contains(out, want) {
		t.Errorf("missing truncated item line %q\n%s", want, out)
	}
	for _, line := range strings.Split(out, "\n") {
		if len(line) > w {
			t.Errorf("line exceeds width: %q", line)
		}
	}
}

func TestFormatPriceDropsToOwnLineWhenTight(t *testing.T) {
	const w = 20
	o := orders.Order{
		ID:    "tight1",
		Items: []orders.LineItem{{ProductName: strings.Repeat("B", 30), Quantity: 9, ProductPrice: 111.11}},
	}
	out, err := Format(o, w)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	price := fmt.Sprintf("R$%.2f", 9*111.11)
	wantLine := strings.Repeat(" ", w-len(price)) + price
	if !strings.Contains(out, "\n"+wantLine+"\n") {
		t.Errorf("price should be right-justified on its own line\n%s", out)
	}
}

func TestFormatAddressWrap(t *testing.T) {
	const w = 24
	addr := strings.Repeat("R", 50)
	o := orders.Order{ID: "addr1", OrderType: orders.TypeDelivery, DeliveryAddress: addr}
	out, err := Format(o, w)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	first := "End: " + addr[:w-5]
	second := strings.Repeat(" ", 5) + addr[w-5:2*(w-5)]
	if !strings.Contains(out, first) {
		t.Errorf("missing first address line %q\n%s", first, out)
	}
	if !strings.Contains(out, second) {
		t.Errorf("missing continuation line %q\n%s", second, out)
	}
}

func TestFormatAccentedTextKeepsRunesWhole(t *testing.T) {
	const w = 24
	o := orders.Order{
		ID:              "acc1",
		OrderType:       orders.TypeDelivery,
		DeliveryAddress: strings.Repeat("ç", 40),
		Notes:           "Atenção: não tocar a campainha",
		Items: []orders.LineItem{
			{ProductName: strings.Repeat("ã", 30), Quantity: 1, ProductPrice: 5},
		},
	}
	out, err := Format(o, w)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if !utf8.ValidString(out) {
		t.Fatalf("receipt contains invalid UTF-8:\n%q", out)
	}

	first := "End: " + strings.Repeat("ç", w-5)
	if !strings.Contains(out, first+"\n") {
		t.Errorf("missing first address line %q\n%s", first, out)
	}
	wantItem := "1x " + strings.Repeat("ã", w-8) + "..."
	if !strings.Contains(out, wantItem) {
		t.Errorf("missing truncated item line %q\n%s", wantItem, out)
	}
	for i, line := range strings.Split(out, "\n") {
		if utf8.RuneCountInString(line) > w {
			t.Errorf("line %d exceeds width %d: %q", i, w, line)
		}
	}
}

func TestFormatBadCreatedAtStillRenders(t *testing.T) {
	o := deliveryOrder()
	o.CreatedAt = "garbage"
	out, err := Format(o, 42)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if !strings.Contains(out, "PEDIDO #57") || !strings.Contains(out, "TOTAL: R$ 87.40") {
		t.Errorf("receipt incomplete with unparseable created_at:\n%s", out)
	}
}

func TestFormatEndsWithFeedLines(t *testing.T) {
	out, err := Format(deliveryOrder(), 42)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if !strings.HasSuffix(out, strings.Repeat("=", 42)+"\n\n\n\n") {
		t.Errorf("receipt should end with rule and three blank lines:\n%q", out[len(out)-60:])
	}
}
