// Package receipt assembles the per-order receipt shown after a capture:
// charge lines for added persons, instant-refund lines for removed persons
// whose prior charge was a completed PayPal payment, and the totals.
package receipt

import (
	"fmt"
	"strings"
	"time"

	"github.com/gracepoint/registration-gateway/internal/model"
)

// FooterNote is printed on every rendered receipt. Refund lines only cover
// PayPal reversals executed with this order; door-side savings settle later.
const FooterNote = "Refunds shown reflect PayPal reversals executed with this order. " +
	"Other savings (e.g., door removals) may not appear here."

// Line is one charge or refund row.
//
// Fields:
//  PersonID      – SelfID or a family member id.
//  Label         – display name resolved from the details map.
//  Amount        – non-negative amount for this row.
//  Method        – how the row settles (free, door, paypal).
//  TransactionID – provider transaction reference, when any.
//  LineID        – backend payment line reference, when any.
//  Complete      – whether the payment behind the row completed.
type Line struct {
	PersonID      string            `json:"person_id"`
	Label         string            `json:"label"`
	Amount        float64           `json:"amount"`
	Method        model.PaymentType `json:"method"`
	TransactionID string            `json:"transaction_id,omitempty"`
	LineID        string            `json:"line_id,omitempty"`
	Complete      bool              `json:"complete"`
}

// Receipt is the assembled per-order view.
type Receipt struct {
	OrderID       string    `json:"order_id"`
	EventTitle    string    `json:"event_title"`
	EventStartsAt time.Time `json:"event_starts_at"`
	Location      string    `json:"location,omitempty"`
	BannerURL     string    `json:"banner_url,omitempty"`
	Charges       []Line    `json:"charges"`
	Refunds       []Line    `json:"refunds"`
	TotalCharged  float64   `json:"total_charged"`
	TotalRefunded float64   `json:"total_refunded"`
}

// NetTotal is the grand net: charged minus refunded.
func (r Receipt) NetTotal() float64 { return r.TotalCharged - r.TotalRefunded }

// Label resolves the display name for a person id: the details map first,
// then "You (Self)" for the acting user, then the raw id.
func Label(id string, names map[string]model.PersonName) string {
	if n, ok := names[id]; ok {
		if full := n.FullName(); full != "" {
			return full
		}
	}
	if id == model.SelfID {
		return "You (Self)"
	}
	return id
}

// Assemble builds a receipt from charge and refund lines, resolving labels
// and summing the non-negative amounts per side.
func Assemble(orderID string, event model.Event, bannerURL string, charges, refunds []Line, names map[string]model.PersonName) Receipt {
	r := Receipt{
		OrderID:       orderID,
		EventTitle:    event.Title,
		EventStartsAt: event.StartsAt,
		Location:      event.Location,
		BannerURL:     bannerURL,
	}
	for _, l := range charges {
		if l.Label == "" {
			l.Label = Label(l.PersonID, names)
		}
		if l.Amount > 0 {
			r.TotalCharged += l.Amount
		}
		r.Charges = append(r.Charges, l)
	}
	for _, l := range refunds {
		if l.Label == "" {
			l.Label = Label(l.PersonID, names)
		}
		if l.Amount > 0 {
			r.TotalRefunded += l.Amount
		}
		r.Refunds = append(r.Refunds, l)
	}
	return r
}

// RenderText renders a plain-text receipt for logs and email fallbacks.
func (r Receipt) RenderText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Order %s\n", r.OrderID)
	fmt.Fprintf(&b, "%s\n", r.EventTitle)
	fmt.Fprintf(&b, "%s\n", r.EventStartsAt.Format("Mon, Jan 2 2006 3:04 PM"))
	if r.Location != "" {
		fmt.Fprintf(&b, "%s\n", r.Location)
	}
	b.WriteString("\n")
	for _, l := range r.Charges {
		fmt.Fprintf(&b, "Charge  %-24s $%.2f  %s  %s\n", l.Label, l.Amount, l.Method, l.TransactionID)
	}
	for _, l := range r.Refunds {
		fmt.Fprintf(&b, "Refund  %-24s $%.2f  %s  %s\n", l.Label, l.Amount, l.Method, l.TransactionID)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Total Charged:   $%.2f\n", r.TotalCharged)
	fmt.Fprintf(&b, "Instant Refunds: $%.2f\n", r.TotalRefunded)
	fmt.Fprintf(&b, "Net Total:       $%.2f\n", r.NetTotal())
	b.WriteString("\n" + FooterNote + "\n")
	return b.String()
}

// RenderHTML renders the printable receipt document: banner, header block,
// a single table of lines and the totals. The page is self-contained so the
// browser's print dialog can produce the PDF.
func (r Receipt) RenderHTML() string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>Receipt %s</title>\n", htmlEscape(r.OrderID))
	b.WriteString("<style>body{font-family:sans-serif;margin:2em}table{border-collapse:collapse;width:100%}" +
		"td,th{border:1px solid #ccc;padding:6px;text-align:left}.banner{width:100%;object-fit:cover;max-height:220px}" +
		".totals{margin-top:1em}.note{margin-top:2em;font-size:.85em;color:#555}</style>\n</head>\n<body>\n")
	if r.BannerURL != "" {
		fmt.Fprintf(&b, "<img class=\"banner\" src=\"%s\" alt=\"\">\n", htmlEscape(r.BannerURL))
	}
	fmt.Fprintf(&b, "<h1>%s</h1>\n", htmlEscape(r.EventTitle))
	fmt.Fprintf(&b, "<p>Order: %s<br>%s", htmlEscape(r.OrderID), htmlEscape(r.EventStartsAt.Format("Mon, Jan 2 2006 3:04 PM")))
	if r.Location != "" {
		fmt.Fprintf(&b, "<br>%s", htmlEscape(r.Location))
	}
	b.WriteString("</p>\n<table>\n<tr><th>Type</th><th>Name</th><th>Amount</th><th>Method</th><th>Txn</th><th>Line</th></tr>\n")
	for _, l := range r.Charges {
		writeRow(&b, "Charge", l)
	}
	for _, l := range r.Refunds {
		writeRow(&b, "Refund", l)
	}
	b.WriteString("</table>\n<div class=\"totals\">\n")
	fmt.Fprintf(&b, "<p>Total Charged: $%.2f<br>Instant Refunds: $%.2f<br><strong>Net Total: $%.2f</strong></p>\n",
		r.TotalCharged, r.TotalRefunded, r.NetTotal())
	b.WriteString("</div>\n")
	fmt.Fprintf(&b, "<p class=\"note\">%s</p>\n", htmlEscape(FooterNote))
	b.WriteString("</body>\n</html>\n")
	return b.String()
}

func writeRow(b *strings.Builder, kind string, l Line) {
	fmt.Fprintf(b, "<tr><td>%s</td><td>%s</td><td>$%.2f</td><td>%s</td><td>%s</td><td>%s</td></tr>\n",
		kind, htmlEscape(l.Label), l.Amount, htmlEscape(string(l.Method)), htmlEscape(l.TransactionID), htmlEscape(l.LineID))
}

func htmlEscape(s string) string {
	replacer := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return replacer.Replace(s)
}
