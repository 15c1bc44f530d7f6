package receipt

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"printedge/orders"
)

// MinWidth is the narrowest receipt the layout can render.
const MinWidth = 20

// Format renders an order as a fixed-width receipt. The output is plain
// text with \n line endings; sinks add their own control codes. Width
// below MinWidth is a configuration error.
func Format(o orders.Order, width int) (string, error) {
	if width < MinWidth {
		return "", fmt.Errorf("receipt width %d below minimum %d", width, MinWidth)
	}

	heavy := strings.Repeat("=", width)
	thin := strings.Repeat("-", width)

	var lines []string
	push := func(ls ...string) { lines = append(lines, ls...) }

	push(heavy)
	push(center("PEDIDO #"+o.DisplayNumber(), width))
	push(heavy)
	if t, ok := o.CreatedTime(); ok {
		push(center(t.Format("02/01/2006 15:04"), width))
	}
	push("")

	if banner := typeBanner(o); banner != "" {
		push(center(banner, width))
		push("")
	}

	if o.CustomerName != "" {
		push("Cliente: " + o.CustomerName)
	}
	if o.DeliveryPhone != "" {
		push("Tel: " + o.DeliveryPhone)
	}
	if o.DeliveryAddress != "" {
		chunks := wrap(o.DeliveryAddress, width-5)
		push("End: " + chunks[0])
		for _, c := range chunks[1:] {
			push(strings.Repeat(" ", 5) + c)
		}
	}

	push(thin)
	push("ITENS:")
	push(thin)

	if len(o.Items) == 0 {
		push("(Sem itens)")
	}
	for _, item := range o.Items {
		name := item.ProductName
		if utf8.RuneCountInString(name) > width-8 {
			name = string([]rune(name)[:width-8]) + "..."
		}
		itemLine := fmt.Sprintf("%dx %s", item.Qty(), name)
		price := fmt.Sprintf("R$%.2f", item.Extension())
		if n := utf8.RuneCountInString(itemLine); n+len(price)+1 <= width {
			push(itemLine + strings.Repeat(" ", width-n-len(price)) + price)
		} else {
			push(itemLine)
			push(rightAlign(price, width))
		}
		if item.Notes != "" {
			for _, c := range wrap(item.Notes, width-4) {
				push("  > " + c)
			}
		}
	}

	push(thin)
	if o.Notes != "" {
		push(wrap("OBS: "+o.Notes, width)...)
		push(thin)
	}

	if o.DeliveryFee > 0 {
		push(rightAlign(fmt.Sprintf("Taxa entrega: R$ %.2f", o.DeliveryFee), width))
	}
	push(rightAlign(fmt.Sprintf("TOTAL: R$ %.2f", o.Total), width))
	push(heavy)

	// Paper feed
	push("", "", "")

	return strings.Join(lines, "\n") + "\n", nil
}

func typeBanner(o orders.Order) string {
	switch o.OrderType {
	case orders.TypeDelivery:
		return "*** ENTREGA ***"
	case orders.TypeCounter:
		return "*** BALCAO ***"
	case orders.TypeTakeout:
		return "*** RETIRADA ***"
	case orders.TypeTable:
		if o.TableNumber != nil {
			return fmt.Sprintf("*** MESA %d ***", *o.TableNumber)
		}
		return ""
	case "":
		return ""
	default:
		return "*** " + strings.ToUpper(o.OrderType) + " ***"
	}
}

// center pads s on both sides to exactly w columns. Strings already w
// or wider pass through unchanged.
func center(s string, w int) string {
	n := utf8.RuneCountInString(s)
	if n >= w {
		return s
	}
	left := (w - n) / 2
	right := w - n - left
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", right)
}

func rightAlign(s string, w int) string {
	n := utf8.RuneCountInString(s)
	if n >= w {
		return s
	}
	return strings.Repeat(" ", w-n) + s
}

// wrap hard-splits s into chunks of at most w runes, never inside a
// rune. Always returns at least one chunk.
func wrap(s string, w int) []string {
	if w < 1 {
		w = 1
	}
	r := []rune(s)
	if len(r) <= w {
		return []string{s}
	}
	var chunks []string
	for len(r) > w {
		chunks = append(chunks, string(r[:w]))
		r = r[w:]
	}
	if len(r) > 0 {
		chunks = append(chunks, string(r))
	}
	return chunks
}
