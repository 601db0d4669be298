package api

import "github.com/matheus3301/wppbot/internal/model"

// StatusResponse is the body of GET /status. Pointer fields distinguish
// "absent" from zero values so callers can apply their own fallbacks.
type StatusResponse struct {
	Connected     *bool `json:"connected"`
	MessagesCount *int  `json:"messagesCount"`
	ContactsCount *int  `json:"contactsCount"`
	BotEnabled    *bool `json:"botEnabled"`
}

// Apply returns the connection status with absent fields replaced by
// false, 0, 0 and true respectively.
func (r *StatusResponse) Apply() model.ConnectionStatus {
	st := model.DefaultStatus()
	if r == nil {
		return st
	}
	if r.Connected != nil {
		st.Connected = *r.Connected
	}
	if r.MessagesCount != nil {
		st.MessagesCount = *r.MessagesCount
	}
	if r.ContactsCount != nil {
		st.ContactsCount = *r.ContactsCount
	}
	if r.BotEnabled != nil {
		st.BotEnabled = *r.BotEnabled
	}
	return st
}

// QRResponse is the body of GET /qr.
type QRResponse struct {
	Connected bool   `json:"connected"`
	QRCode    string `json:"qrCode"`
}

// Result is the success envelope returned by command endpoints.
type Result struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// OK reports whether the envelope explicitly signalled success.
func (r *Result) OK() bool {
	return r != nil && r.Success != nil && *r.Success
}

// ExplicitFailure reports whether the envelope carried success:false.
func (r *Result) ExplicitFailure() bool {
	return r != nil && r.Success != nil && !*r.Success
}

// Reason returns the server-supplied failure text, if any.
func (r *Result) Reason() string {
	if r == nil {
		return ""
	}
	if r.Error != "" {
		return r.Error
	}
	return r.Message
}

type contactsResponse struct {
	Contacts []model.Contact `json:"contacts"`
}

type messagesResponse struct {
	Messages []model.Message `json:"messages"`
}

type ordersResponse struct {
	Orders []model.Order `json:"orders"`
}

type helpResponse struct {
	Requests []model.HelpRequest `json:"requests"`
}

type userRequest struct {
	UserID string `json:"userId"`
}

type toggleRequest struct {
	UserID  string `json:"userId"`
	Enabled bool   `json:"enabled"`
}

type orderStatusRequest struct {
	UserID  string            `json:"userId"`
	OrderID string            `json:"orderId"`
	Status  model.OrderStatus `json:"status"`
}

type orderRequest struct {
	UserID  string `json:"userId"`
	OrderID string `json:"orderId"`
}

type resolveRequest struct {
	UserID    string `json:"userId"`
	RequestID string `json:"requestId"`
}
