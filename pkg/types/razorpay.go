package types

// Razorpay webhook event. The signature header is verified over the raw body
// before any of this is parsed.
type RazorpayWebhookEvent struct {
	Entity    string          `json:"entity"`
	AccountID string          `json:"account_id"`
	Event     string          `json:"event"` // payment.captured, payment.failed
	Contains  []string        `json:"contains"`
	Payload   RazorpayPayload `json:"payload"`
	CreatedAt int64           `json:"created_at"`
}

type RazorpayPayload struct {
	Payment struct {
		Entity RazorpayPayment `json:"entity"`
	} `json:"payment"`
}

type RazorpayPayment struct {
	ID               string `json:"id"`
	Entity           string `json:"entity"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	Status           string `json:"status"`
	OrderID          string `json:"order_id"`
	Method           string `json:"method"`
	Email            string `json:"email,omitempty"`
	Contact          string `json:"contact,omitempty"`
	ErrorCode        string `json:"error_code,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
	CreatedAt        int64  `json:"created_at"`
}
