package models

import "strings"

// Status is the verification state of a record.
type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusRejected Status = "rejected"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusVerified, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transition is expected from s.
func (s Status) Terminal() bool {
	return s == StatusVerified || s == StatusRejected
}

// Category labels the kind of financial data a record carries.
type Category string

const (
	CategoryIncome Category = "Income"
	CategoryCredit Category = "Credit"
	CategoryAsset  Category = "Asset"
	CategoryDebt   Category = "Debt"
	CategoryOther  Category = "Other"
)

// Categories lists every accepted category in display order.
var Categories = []Category{CategoryIncome, CategoryCredit, CategoryAsset, CategoryDebt, CategoryOther}

var categoryTitles = map[Category]string{
	CategoryIncome: "Income Verification",
	CategoryCredit: "Credit History",
	CategoryAsset:  "Asset Verification",
	CategoryDebt:   "Debt Information",
	CategoryOther:  "Other Financial Data",
}

// Valid reports whether c is one of Categories.
func (c Category) Valid() bool {
	_, ok := categoryTitles[c]
	return ok
}

// Title is the human readable name of the category.
func (c Category) Title() string {
	if t, ok := categoryTitles[c]; ok {
		return t
	}
	return string(c)
}

// Record is one submitted data item as seen by the dashboard.
type Record struct {
	ID        string   `json:"id"`
	Payload   string   `json:"payload"`
	CreatedAt int64    `json:"created_at"`
	Owner     string   `json:"owner"`
	Category  Category `json:"category"`
	Status    Status   `json:"status"`
}

// OwnedBy compares owner addresses case-insensitively.
func (r Record) OwnedBy(addr string) bool {
	return addr != "" && strings.EqualFold(r.Owner, addr)
}

// Actionable reports whether addr may be offered verify/reject on r.
func (r Record) Actionable(addr string) bool {
	return r.OwnedBy(addr) && r.Status == StatusPending
}
