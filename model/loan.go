package model

import "time"

type Loan struct {
	ID               string    `json:"id"`
	TenantID         string    `json:"tenant_id"`
	BorrowerID       string    `json:"borrower_id"`
	Amount           float64   `json:"amount"`
	InterestRate     float64   `json:"interest_rate"`
	TermMonths       int       `json:"term_months"`
	MonthlyPayment   float64   `json:"monthly_payment"`
	RemainingBalance float64   `json:"remaining_balance"`
	Status           string    `json:"status"`
	StartDate        time.Time `json:"start_date"`
	CreatedAt        time.Time `json:"created_at"`
}

type Borrower struct {
	ID               string    `json:"id"`
	TenantID         string    `json:"tenant_id"`
	Name             string    `json:"name"`
	Email            string    `json:"email"`
	CreditScore      int       `json:"credit_score"`
	AnnualIncome     float64   `json:"annual_income"`
	EmploymentStatus string    `json:"employment_status"`
	CreatedAt        time.Time `json:"created_at"`
}

// ScheduleEntry is one row of an amortization schedule.
type ScheduleEntry struct {
	Number    int       `json:"number"`
	DueDate   time.Time `json:"due_date"`
	Principal float64   `json:"principal"`
	Interest  float64   `json:"interest"`
	Balance   float64   `json:"balance"`
}

// StatusCount is a status bucket in the portfolio distribution report.
type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}
