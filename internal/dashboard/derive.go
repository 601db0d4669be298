package dashboard

import "github.com/matheus3301/wppbot/internal/model"

// TotalRevenue sums the total of every order.
func TotalRevenue(orders []model.Order) float64 {
	var sum float64
	for _, o := range orders {
		sum += o.Total
	}
	return sum
}

// PendingCount counts orders still pending.
func PendingCount(orders []model.Order) int {
	n := 0
	for _, o := range orders {
		if o.Status == model.StatusPending {
			n++
		}
	}
	return n
}

// CompletedCount counts delivered orders.
func CompletedCount(orders []model.Order) int {
	return len(DeliveredOrders(orders))
}

// ActiveOrders returns orders not yet delivered, in input order.
func ActiveOrders(orders []model.Order) []model.Order {
	out := []model.Order{}
	for _, o := range orders {
		if o.Status != model.StatusDelivered {
			out = append(out, o)
		}
	}
	return out
}

// DeliveredOrders returns delivered orders, in input order.
func DeliveredOrders(orders []model.Order) []model.Order {
	out := []model.Order{}
	for _, o := range orders {
		if o.Status == model.StatusDelivered {
			out = append(out, o)
		}
	}
	return out
}

// DisplayOrders picks the partition the orders view is showing.
func DisplayOrders(orders []model.Order, showCompleted bool) []model.Order {
	if showCompleted {
		return DeliveredOrders(orders)
	}
	return ActiveOrders(orders)
}

// UnresolvedHelp returns help requests still waiting for a human.
func UnresolvedHelp(reqs []model.HelpRequest) []model.HelpRequest {
	out := []model.HelpRequest{}
	for _, r := range reqs {
		if !r.Resolved {
			out = append(out, r)
		}
	}
	return out
}

// PixAwaitingApproval reports whether o shows the approve-PIX action.
func PixAwaitingApproval(o model.Order) bool {
	return o.AwaitingPix()
}

// FindOrder looks an order up by id.
func FindOrder(orders []model.Order, id string) (model.Order, bool) {
	for _, o := range orders {
		if o.ID == id {
			return o, true
		}
	}
	return model.Order{}, false
}
