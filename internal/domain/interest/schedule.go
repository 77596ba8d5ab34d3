package interest

import "time"

type InstallmentStatus string

const (
	InstallmentDue     InstallmentStatus = "DUE"
	InstallmentPartial InstallmentStatus = "PARTIAL"
	InstallmentPaid    InstallmentStatus = "PAID"
)

// Installment is one monthly slice of the total payable.
type Installment struct {
	Number           int               `json:"number"`
	DueDate          time.Time         `json:"due_date"`
	Amount           int64             `json:"amount"`
	OutstandingAfter int64             `json:"outstanding_after"`
	Status           InstallmentStatus `json:"status"`
}

// Installments splits totalPayable into tenureMonths equal slices due monthly
// after start. The final slice carries the rounding remainder.
func Installments(totalPayable int64, tenureMonths int, start time.Time) []Installment {
	if tenureMonths <= 0 || totalPayable <= 0 {
		return nil
	}

	emi := totalPayable / int64(tenureMonths)
	out := make([]Installment, tenureMonths)
	outstanding := totalPayable
	for i := 0; i < tenureMonths; i++ {
		amount := emi
		if i == tenureMonths-1 {
			amount = outstanding
		}
		outstanding -= amount
		out[i] = Installment{
			Number:           i + 1,
			DueDate:          start.AddDate(0, i+1, 0),
			Amount:           amount,
			OutstandingAfter: outstanding,
			Status:           InstallmentDue,
		}
	}
	return out
}

// MarkPaid allocates paid against installments oldest first and sets their status.
func MarkPaid(installments []Installment, paid int64) []Installment {
	for i := range installments {
		switch {
		case paid >= installments[i].Amount:
			installments[i].Status = InstallmentPaid
			paid -= installments[i].Amount
		case paid > 0:
			installments[i].Status = InstallmentPartial
			paid = 0
		default:
			installments[i].Status = InstallmentDue
		}
	}
	return installments
}
