package mpesa

// CallbackEnvelope is the inbound webhook payload, shape dictated by
// the gateway.
type CallbackEnvelope struct {
	Body CallbackBody `json:"Body"`
}

// CallbackBody wraps the stkCallback element.
type CallbackBody struct {
	StkCallback StkCallback `json:"stkCallback"`
}

// StkCallback carries the final outcome of one push attempt.
// ResultCode 0 means the payer completed the payment; any other value
// is a failure or cancellation.
type StkCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        int               `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata,omitempty"`
}

// CallbackMetadata is present only on successful payments.
type CallbackMetadata struct {
	Item []MetadataItem `json:"Item"`
}

// MetadataItem is one name/value pair in the callback metadata. Values
// are strings or numbers depending on the item.
type MetadataItem struct {
	Name  string `json:"Name"`
	Value any    `json:"Value,omitempty"`
}

// ReceiptNumber extracts the settlement transaction id
// (MpesaReceiptNumber) from the callback metadata. Returns "" if the
// item is absent.
func (c StkCallback) ReceiptNumber() string {
	if c.CallbackMetadata == nil {
		return ""
	}
	for _, item := range c.CallbackMetadata.Item {
		if item.Name == "MpesaReceiptNumber" {
			if v, ok := item.Value.(string); ok {
				return v
			}
		}
	}
	return ""
}

// AcknowledgeResponse is what the webhook always returns to the
// gateway, regardless of internal outcome, so it never retries a
// delivered callback.
type AcknowledgeResponse struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}
