package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/wppbot/internal/dashboard"
	"github.com/matheus3301/wppbot/internal/model"
	"github.com/matheus3301/wppbot/internal/tui/ui"
	"github.com/rivo/tview"
)

var orderColumns = []column{
	{title: "CLIENTE", exp: 2},
	{title: "ITENS", exp: 3},
	{title: "TOTAL", align: tview.AlignRight},
	{title: "PAGAMENTO", exp: 1},
	{title: "STATUS", exp: 1},
	{title: "DATA", align: tview.AlignRight},
}

// OrdersView shows order statistics and either the active or the delivered orders.
type OrdersView struct {
	*tview.Flex
	theme   *ui.Theme
	stats   *tview.TextView
	table   *tview.Table
	detail  *tview.TextView
	visible []model.Order
}

// NewOrdersView creates the orders page.
func NewOrdersView(theme *ui.Theme) *OrdersView {
	stats := tview.NewTextView().
		SetDynamicColors(true)
	stats.SetBackgroundColor(theme.BgColor)
	stats.SetBorderPadding(0, 0, 1, 1)

	detail := tview.NewTextView().
		SetDynamicColors(true).
		SetWordWrap(true)
	detail.SetBorder(true)
	detail.SetBorderColor(theme.BorderColor)
	detail.SetBackgroundColor(theme.BgColor)
	detail.SetTextColor(theme.FgColor)
	detail.SetTitle(" Detalhes ")
	detail.SetTitleColor(theme.TitleColor)

	v := &OrdersView{
		theme:  theme,
		stats:  stats,
		table:  newTable(theme, " Pedidos "),
		detail: detail,
	}
	v.table.SetSelectionChangedFunc(func(int, int) { v.renderDetail() })
	v.Flex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(stats, 1, 0, false).
		AddItem(v.table, 0, 3, true).
		AddItem(detail, 7, 0, false)
	return v
}

// Name implements ui.Component.
func (v *OrdersView) Name() string { return "Pedidos" }

// Render redraws the page from s.
func (v *OrdersView) Render(s dashboard.State) {
	v.stats.Clear()
	_, _ = fmt.Fprintf(v.stats, "Pendentes: [%s::b]%d[-:-:-]   Entregues: [::b]%d[-:-:-]   Faturamento: [%s::b]%s[-:-:-]",
		ui.Tag(v.theme.PendingColor), dashboard.PendingCount(s.Orders),
		dashboard.CompletedCount(s.Orders),
		ui.Tag(v.theme.OkColor), model.FormatPrice(dashboard.TotalRevenue(s.Orders)))

	v.visible = dashboard.DisplayOrders(s.Orders, s.ShowCompleted)
	v.table.Clear()
	setHeader(v.table, v.theme, orderColumns)
	now := time.Now()
	for i, o := range v.visible {
		color := v.statusColor(o.Status)
		if s.OrderBusy[o.ID] {
			color = v.theme.MutedColor
		}
		payment := o.PaymentMethod
		if dashboard.PixAwaitingApproval(o) {
			payment += " (aguardando)"
		}
		v.table.SetCell(i+1, 0, cell(contactLabel(o.ContactName, o.ContactNumber), color, orderColumns[0]))
		v.table.SetCell(i+1, 1, cell(truncate(itemsSummary(o.Items), 60), color, orderColumns[1]))
		v.table.SetCell(i+1, 2, cell(model.FormatPrice(o.Total), color, orderColumns[2]))
		v.table.SetCell(i+1, 3, cell(payment, color, orderColumns[3]))
		v.table.SetCell(i+1, 4, cell(o.Status.Label(), color, orderColumns[4]))
		v.table.SetCell(i+1, 5, cell(formatWhen(o.Date, 0, now), color, orderColumns[5]))
	}

	if s.ShowCompleted {
		v.table.SetTitle(fmt.Sprintf(" Pedidos entregues (%d) ", len(v.visible)))
	} else {
		v.table.SetTitle(fmt.Sprintf(" Pedidos ativos (%d) ", len(v.visible)))
	}
	clampSelection(v.table, len(v.visible))
	v.renderDetail()
}

func (v *OrdersView) renderDetail() {
	v.detail.Clear()
	o, ok := v.Selected()
	if !ok {
		return
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "[::b]#%s[-:-:-] %s · %s\n", tview.Escape(o.ID), tview.Escape(contactLabel(o.ContactName, o.ContactNumber)), o.Status.Label())
	for _, it := range o.Items {
		fmt.Fprintf(&sb, "  %dx %s  %s\n", it.Quantity, tview.Escape(it.Name), model.FormatPrice(it.Price*float64(it.Quantity)))
	}
	if o.Observations != "" {
		fmt.Fprintf(&sb, "[%s]Obs: %s[-]\n", ui.Tag(v.theme.PendingColor), tview.Escape(o.Observations))
	}
	_, _ = fmt.Fprint(v.detail, sb.String())
}

// Table returns the order table, which takes focus on this page.
func (v *OrdersView) Table() *tview.Table { return v.table }

// Selected returns the highlighted order.
func (v *OrdersView) Selected() (model.Order, bool) {
	i := selectedIndex(v.table, len(v.visible))
	if i < 0 {
		return model.Order{}, false
	}
	return v.visible[i], true
}

func (v *OrdersView) statusColor(st model.OrderStatus) tcell.Color {
	switch st {
	case model.StatusPending:
		return v.theme.PendingColor
	case model.StatusDelivered:
		return v.theme.MutedColor
	case model.StatusReady:
		return v.theme.OkColor
	default:
		return v.theme.FgColor
	}
}

func contactLabel(name, number string) string {
	if name == "" {
		return number
	}
	return name
}

func itemsSummary(items []model.OrderItem) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, fmt.Sprintf("%dx %s", it.Quantity, it.Name))
	}
	return strings.Join(parts, ", ")
}
