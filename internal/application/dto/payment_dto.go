package dto

// STKCallbackEnvelope cuerpo del webhook de Daraja: {"Body":{"stkCallback":{...}}}.
type STKCallbackEnvelope struct {
	Body struct {
		STKCallback STKCallback `json:"stkCallback"`
	} `json:"Body"`
}

// STKCallback resultado del STK push. ResultCode puede llegar como número o string.
type STKCallback struct {
	MerchantRequestID string `json:"MerchantRequestID"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
	ResultCode        any    `json:"ResultCode"`
	ResultDesc        string `json:"ResultDesc"`
	CallbackMetadata  *struct {
		Item []STKMetadataItem `json:"Item"`
	} `json:"CallbackMetadata,omitempty"`
}

// STKMetadataItem ítem Name/Value del CallbackMetadata.
type STKMetadataItem struct {
	Name  string `json:"Name"`
	Value any    `json:"Value,omitempty"`
}

// CallbackAck respuesta que Daraja espera del webhook.
type CallbackAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

// PaymentQueryResponse resultado de consultar un checkout al proveedor.
type PaymentQueryResponse struct {
	CheckoutID string `json:"checkoutRequestId"`
	Pending    bool   `json:"pending"`
	ResultCode *int   `json:"resultCode,omitempty"`
	ResultDesc string `json:"resultDesc,omitempty"`
	Enqueued   bool   `json:"enqueued"`
}
