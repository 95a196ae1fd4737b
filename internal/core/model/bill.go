package model

import (
	"math"
	"strings"
)

type BillType string

const (
	BillUnknown      BillType = "UNKNOWN"
	BillUtility      BillType = "UTILITY"
	BillMedical      BillType = "MEDICAL"
	BillSubscription BillType = "SUBSCRIPTION"
	BillTelecom      BillType = "TELECOM"
)

// BillTypes lists the categories a bill can be routed to.
var BillTypes = []BillType{BillUtility, BillMedical, BillSubscription, BillTelecom}

// ParseBillType normalises a label and falls back to UTILITY for anything
// that is not one of BillTypes.
func ParseBillType(s string) BillType {
	t := BillType(strings.ToUpper(strings.TrimSpace(s)))
	if t.Valid() {
		return t
	}
	return BillUtility
}

func (t BillType) Valid() bool {
	switch t {
	case BillUtility, BillMedical, BillSubscription, BillTelecom:
		return true
	}
	return false
}

func (t BillType) String() string { return string(t) }

// Lower returns the agent name for the bill type, such as "utility".
func (t BillType) Lower() string { return strings.ToLower(string(t)) }

type BillRecord struct {
	OCRText  string   `json:"ocr_text"`
	Company  string   `json:"company,omitempty"`
	Amount   float64  `json:"amount,omitempty"`
	BillType BillType `json:"bill_type,omitempty"`
	UserID   string   `json:"user_id,omitempty"`
}

// Round2 rounds a currency value to cents.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Round1 rounds to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
