package entity

// Payment modes: who bore the cost of an expense
const (
	PaymentModeOwnAccount     = "own_account"
	PaymentModeCompanyAccount = "company_account"
)

// Payment account modes: which budget an expense is charged to
const (
	PaymentAccountManagerArea = "manager_area"
	PaymentAccountCompany     = "company"
)

// Expense line states (computed)
const (
	ExpenseStateDraft     = "draft"
	ExpenseStateReported  = "reported"
	ExpenseStateSubmitted = "submitted"
	ExpenseStateApproved  = "approved"
	ExpenseStateDone      = "done"
	ExpenseStateRefused   = "refused"
)

// Approval states stored on a sheet. The empty value means not submitted.
const (
	ApprovalNone    = ""
	ApprovalSubmit  = "submit"
	ApprovalApprove = "approve"
	ApprovalCancel  = "cancel"
)

// Sheet states (computed)
const (
	SheetStateDraft   = "draft"
	SheetStateSubmit  = "submit"
	SheetStateApprove = "approve"
	SheetStatePost    = "post"
	SheetStateDone    = "done"
	SheetStateCancel  = "cancel"
)

// Liquidation statuses
const (
	LiquidationPending    = "pending"
	LiquidationLiquidated = "liquidated"
)

// Transport types used on expense lines
const (
	TransportPlane = "avion"
	TransportTrain = "tren"
	TransportCar   = "auto"
	TransportBus   = "bus"
	TransportOther = "otros"
)

// Ticket types used on sheets
const (
	TicketAir             = "air"
	TicketTerrestrialBus  = "terrestrial_bus"
	TicketTerrestrialAuto = "terrestrial_auto"
)

// Move types
const (
	MoveTypeEntry      = "entry"
	MoveTypeInInvoice  = "in_invoice"
	MoveTypeOutInvoice = "out_invoice"
)

// Move states
const (
	MoveStateDraft  = "draft"
	MoveStatePosted = "posted"
	MoveStateCancel = "cancel"
)

// Payment states of moves and sheets
const (
	PaymentStateNotPaid  = "not_paid"
	PaymentStatePartial  = "partial"
	PaymentStatePaid     = "paid"
	PaymentStateReversed = "reversed"
)

// Move line display types
const (
	LineTypeProduct     = "product"
	LineTypeTax         = "tax"
	LineTypePaymentTerm = "payment_term"
)

// Payment directions and counterpart types
const (
	PaymentInbound  = "inbound"
	PaymentOutbound = "outbound"

	PartnerTypeSupplier = "supplier"
	PartnerTypeCustomer = "customer"
)

// Payment record states
const (
	PaymentRecordDraft    = "draft"
	PaymentRecordPosted   = "posted"
	PaymentRecordCanceled = "canceled"
)

// Journal types
const (
	JournalPurchase = "purchase"
	JournalSale     = "sale"
	JournalBank     = "bank"
	JournalCash     = "cash"
	JournalGeneral  = "general"
)

// Account types
const (
	AccountExpense     = "expense"
	AccountIncome      = "income"
	AccountPayable     = "payable"
	AccountReceivable  = "receivable"
	AccountOutstanding = "outstanding"
	AccountTax         = "tax"
	AccountBank        = "bank"
)

// Security groups
const (
	GroupAccountant  = "accountant"
	GroupTreasury    = "treasury"
	GroupAccountUser = "account_user"
)

// Chatter message subtypes
const (
	MessageNote    = "note"
	MessageComment = "comment"
)

// Activity states and types
const (
	ActivityOpen = "open"
	ActivityDone = "done"

	ActivityTypeApproval = "expense_approval"
)

// Chatter models
const (
	ModelSheet = "expense.sheet"
)
