package events

import "time"

const TypeInvoicePosted = "INVOICE_POSTED"

type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

type StockChange struct {
	ProductID string `json:"product_id"`
	Action    string `json:"action"` // updated | created
	Stock     int    `json:"stock"`
}

// InvoicePosted публикуется после проведения накладной (в т.ч. частичного).
type InvoicePosted struct {
	BaseEvent
	Tenant    string        `json:"tenant"`
	InvoiceID string        `json:"invoice_id"`
	Number    string        `json:"number"`
	Supplier  string        `json:"supplier"`
	Updated   int           `json:"updated"`
	Created   int           `json:"created"`
	Failed    int           `json:"failed"`
	Stock     []StockChange `json:"stock,omitempty"`
}
