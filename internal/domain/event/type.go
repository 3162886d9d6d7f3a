package event

// Type identifies the type of domain event
type Type string

const (
	TypeExpensesReported Type = "expenses.reported"
	TypeSheetSubmitted   Type = "sheet.submitted"
	TypeSheetApproved    Type = "sheet.approved"
	TypeSheetRefused     Type = "sheet.refused"
	TypeSheetReset       Type = "sheet.reset"
	TypeSheetPosted      Type = "sheet.posted"
	TypeSheetPaid        Type = "sheet.paid"
	TypeAdvanceSettled   Type = "advance.settled"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeExpensesReported,
		TypeSheetSubmitted,
		TypeSheetApproved,
		TypeSheetRefused,
		TypeSheetReset,
		TypeSheetPosted,
		TypeSheetPaid,
		TypeAdvanceSettled:
		return true
	default:
		return false
	}
}

// AllTypes lists every event type
func AllTypes() []Type {
	return []Type{
		TypeExpensesReported,
		TypeSheetSubmitted,
		TypeSheetApproved,
		TypeSheetRefused,
		TypeSheetReset,
		TypeSheetPosted,
		TypeSheetPaid,
		TypeAdvanceSettled,
	}
}
