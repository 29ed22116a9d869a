package enums

// EscrowTransactionType maps to the escrow_transaction_type enum.
type EscrowTransactionType string

const (
	EscrowTypeMilestonePayment EscrowTransactionType = "milestone_payment"
	EscrowTypeRefund           EscrowTransactionType = "refund"
)

var validEscrowTypes = []EscrowTransactionType{EscrowTypeMilestonePayment, EscrowTypeRefund}

func (t EscrowTransactionType) IsValid() bool { return contains(validEscrowTypes, t) }

func ParseEscrowTransactionType(value string) (EscrowTransactionType, error) {
	return parse("escrow transaction type", validEscrowTypes, value)
}

// EscrowTransactionStatus maps to the escrow_transaction_status enum.
type EscrowTransactionStatus string

const (
	EscrowStatusPending   EscrowTransactionStatus = "pending"
	EscrowStatusCompleted EscrowTransactionStatus = "completed"
	EscrowStatusFailed    EscrowTransactionStatus = "failed"
)

var validEscrowStatuses = []EscrowTransactionStatus{EscrowStatusPending, EscrowStatusCompleted, EscrowStatusFailed}

func (s EscrowTransactionStatus) IsValid() bool { return contains(validEscrowStatuses, s) }

// WalletDirection marks a wallet ledger row as money in or out.
type WalletDirection string

const (
	WalletCredit WalletDirection = "credit"
	WalletDebit  WalletDirection = "debit"
)

func (d WalletDirection) IsValid() bool { return d == WalletCredit || d == WalletDebit }
