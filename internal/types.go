package internal

import (
	"time"

	"github.com/shopspring/decimal"
)

type ReceptionStatus string

const (
	StatusDraft  ReceptionStatus = "Draft"
	StatusPosted ReceptionStatus = "Posted"
)

// RawLineItem is an unvalidated line extracted from a source document.
// It only lives between the adapter and the draft save.
type RawLineItem struct {
	SupplierCode string
	Description  string
	Quantity     decimal.Decimal
	SourceRow    int
}

type StockReceptionItem struct {
	ID           int
	ReceptionID  int
	SupplierCode string
	Description  string
	Quantity     decimal.Decimal
	ProductID    *int
	Barcode      *string
}

// StockReception is the aggregate root. Mark is the globally unique
// fingerprint of the external document and the idempotency key for
// re-imports. Items are owned wholesale: a draft save replaces them.
type StockReception struct {
	ID            int
	SupplierID    int
	ReceptionDate time.Time
	Mark          string
	Status        ReceptionStatus
	Items         []StockReceptionItem
}

// SupplierProductMap is a learned association between a supplier's item
// code and a catalog product, written at Post time.
type SupplierProductMap struct {
	ID           int
	SupplierID   int
	SupplierCode string
	ProductID    int
}

type Product struct {
	ID         int
	Barcode    string
	Name       string
	Stock      int
	SupplierID *int
}

type Supplier struct {
	ID      int
	Name    string
	Address *string
	Phone   *string
}

// Suggestion is an advisory pass-2 match for one reception line (Row is
// the item's 0-based position). Nothing is written until the operator
// confirms it.
type Suggestion struct {
	Row         int
	Barcode     string
	ProductName string
}

func StringPtr(v string) *string { return &v }

func IntPtr(v int) *int { return &v }
