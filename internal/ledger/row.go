package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-pharma-orders/internal/orders"
)

var Header = []any{
	"ID", "Дата", "Код", "Медпредставитель", "Username",
	"Учреждение", "Препараты и количество",
	"Сумма полная", "Оплата %", "К оплате", "Статус",
}

const dateLayout = "02.01.2006 15:04"

// FormatRow renders o from its own snapshot only; the catalog and registry
// are never consulted.
func FormatRow(o orders.Order, loc *time.Location) []any {
	if loc == nil {
		loc = time.UTC
	}
	handle := "—"
	if h := strings.TrimPrefix(o.Handle, "@"); h != "" {
		handle = "@" + h
	}

	items := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, fmt.Sprintf("%s: %d %s × %s", it.ProductName, it.Quantity, it.Unit, it.UnitPrice.StringFixed(2)))
	}

	return []any{
		o.ID,
		o.CreatedAt.In(loc).Format(dateLayout),
		o.RepCode,
		o.RepName,
		handle,
		o.Institution,
		strings.Join(items, "; "),
		o.TotalPrice.StringFixed(2),
		fmt.Sprintf("%d%%", o.PaymentPercent),
		o.PaymentAmount.StringFixed(2),
		o.Status.Label(),
	}
}
