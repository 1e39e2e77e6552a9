// file: service/loan_service.go

package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"loan-desk-api/dispatch"
	"loan-desk-api/model"
	"loan-desk-api/repository"
	"math"
	"time"
)

// loanCacheTTL bounds how stale a cached single-entity read may be.
const loanCacheTTL = 10 * time.Minute

// LoanService implements the business operations behind the dispatch
// registry. Hot single-entity reads use a cache-aside strategy; the cache
// client may be nil, in which case every read goes to the database.
type LoanService struct {
	repo  repository.ILoanRepository
	cache ICacheClient
}

func NewLoanService(repo repository.ILoanRepository, cache ICacheClient) *LoanService {
	return &LoanService{repo: repo, cache: cache}
}

// GetLoanDetails returns a single loan, utilizing a cache-aside strategy.
func (s *LoanService) GetLoanDetails(ctx context.Context, tenantID, loanID string) (*model.Loan, error) {
	cacheKey := fmt.Sprintf("loan:%s:%s", tenantID, loanID)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var loan model.Loan
			if err := json.Unmarshal([]byte(cached), &loan); err == nil {
				return &loan, nil
			}
		}
	}

	loan, err := s.repo.GetLoanByID(tenantID, loanID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dispatch.NewNotFoundError("loan", loanID)
		}
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(loan); err == nil {
			s.cache.Set(ctx, cacheKey, data, loanCacheTTL)
		}
	}
	return loan, nil
}

func (s *LoanService) ListLoans(ctx context.Context, tenantID, status string, limit int) ([]*model.Loan, error) {
	return s.repo.ListLoansByTenant(tenantID, status, limit)
}

func (s *LoanService) SearchLoans(ctx context.Context, tenantID, term string, limit int) ([]*model.Loan, error) {
	return s.repo.SearchLoans(tenantID, term, limit)
}

// GetBorrowerProfile returns a single borrower, cache-aside like loans.
func (s *LoanService) GetBorrowerProfile(ctx context.Context, tenantID, borrowerID string) (*model.Borrower, error) {
	cacheKey := fmt.Sprintf("borrower:%s:%s", tenantID, borrowerID)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var borrower model.Borrower
			if err := json.Unmarshal([]byte(cached), &borrower); err == nil {
				return &borrower, nil
			}
		}
	}

	borrower, err := s.repo.GetBorrowerByID(tenantID, borrowerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dispatch.NewNotFoundError("borrower", borrowerID)
		}
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(borrower); err == nil {
			s.cache.Set(ctx, cacheKey, data, loanCacheTTL)
		}
	}
	return borrower, nil
}

func (s *LoanService) GetBorrowerLoans(ctx context.Context, tenantID, borrowerID string) ([]*model.Loan, error) {
	if _, err := s.GetBorrowerProfile(ctx, tenantID, borrowerID); err != nil {
		return nil, err
	}
	return s.repo.ListLoansByBorrower(tenantID, borrowerID)
}

// BorrowerRisk is the default-risk assessment payload.
type BorrowerRisk struct {
	BorrowerID      string   `json:"borrower_id"`
	RiskScore       float64  `json:"risk_score"`
	RiskLevel       string   `json:"risk_level"`
	CreditScore     int      `json:"credit_score"`
	OutstandingDebt float64  `json:"outstanding_debt"`
	DebtToIncome    float64  `json:"debt_to_income"`
	ActiveLoans     int      `json:"active_loans"`
	DelinquentLoans int      `json:"delinquent_loans"`
	Factors         []string `json:"factors"`
}

// GetBorrowerDefaultRisk scores a borrower from credit standing, leverage
// and payment history across their loans in the tenant.
func (s *LoanService) GetBorrowerDefaultRisk(ctx context.Context, tenantID, borrowerID string) (*BorrowerRisk, error) {
	borrower, err := s.GetBorrowerProfile(ctx, tenantID, borrowerID)
	if err != nil {
		return nil, err
	}
	loans, err := s.repo.ListLoansByBorrower(tenantID, borrowerID)
	if err != nil {
		return nil, err
	}

	risk := &BorrowerRisk{
		BorrowerID:  borrower.ID,
		CreditScore: borrower.CreditScore,
		Factors:     []string{},
	}
	for _, loan := range loans {
		risk.OutstandingDebt += loan.RemainingBalance
		switch loan.Status {
		case "active":
			risk.ActiveLoans++
		case "delinquent", "default":
			risk.DelinquentLoans++
		}
	}
	if borrower.AnnualIncome > 0 {
		risk.DebtToIncome = risk.OutstandingDebt / borrower.AnnualIncome
	}

	score := 0.0
	if borrower.CreditScore < 580 {
		score += 40
		risk.Factors = append(risk.Factors, "subprime credit score")
	} else if borrower.CreditScore < 670 {
		score += 20
		risk.Factors = append(risk.Factors, "fair credit score")
	}
	if risk.DebtToIncome > 0.43 {
		score += 25
		risk.Factors = append(risk.Factors, "debt-to-income above 43%")
	} else if risk.DebtToIncome > 0.28 {
		score += 10
		risk.Factors = append(risk.Factors, "elevated debt-to-income")
	}
	if risk.DelinquentLoans > 0 {
		score += 30
		risk.Factors = append(risk.Factors, fmt.Sprintf("%d delinquent loan(s)", risk.DelinquentLoans))
	}
	if borrower.EmploymentStatus == "unemployed" {
		score += 15
		risk.Factors = append(risk.Factors, "no employment income")
	}
	risk.RiskScore = math.Min(score, 100)

	switch {
	case risk.RiskScore >= 60:
		risk.RiskLevel = "high"
	case risk.RiskScore >= 30:
		risk.RiskLevel = "medium"
	default:
		risk.RiskLevel = "low"
	}
	return risk, nil
}

// GetLoanPaymentSchedule derives the amortization table from loan terms.
func (s *LoanService) GetLoanPaymentSchedule(ctx context.Context, tenantID, loanID string) ([]model.ScheduleEntry, error) {
	loan, err := s.GetLoanDetails(ctx, tenantID, loanID)
	if err != nil {
		return nil, err
	}

	monthlyRate := loan.InterestRate / 100 / 12
	payment := loan.MonthlyPayment
	if payment <= 0 {
		payment = amortizedPayment(loan.Amount, monthlyRate, loan.TermMonths)
	}

	schedule := make([]model.ScheduleEntry, 0, loan.TermMonths)
	balance := loan.Amount
	for i := 1; i <= loan.TermMonths; i++ {
		interest := balance * monthlyRate
		principal := payment - interest
		if principal > balance {
			principal = balance
		}
		balance -= principal
		schedule = append(schedule, model.ScheduleEntry{
			Number:    i,
			DueDate:   loan.StartDate.AddDate(0, i, 0),
			Principal: round2(principal),
			Interest:  round2(interest),
			Balance:   round2(balance),
		})
		if balance <= 0 {
			break
		}
	}
	return schedule, nil
}

// PortfolioSummary aggregates the tenant's book.
type PortfolioSummary struct {
	LoanCount        int                 `json:"loan_count"`
	TotalPrincipal   float64             `json:"total_principal"`
	TotalOutstanding float64             `json:"total_outstanding"`
	AverageLoanSize  float64             `json:"average_loan_size"`
	StatusBreakdown  []model.StatusCount `json:"status_breakdown"`
}

func (s *LoanService) GetPortfolioSummary(ctx context.Context, tenantID string) (*PortfolioSummary, error) {
	count, principal, outstanding, err := s.repo.GetPortfolioTotals(tenantID)
	if err != nil {
		return nil, err
	}
	breakdown, err := s.repo.CountLoansByStatus(tenantID)
	if err != nil {
		return nil, err
	}

	summary := &PortfolioSummary{
		LoanCount:        count,
		TotalPrincipal:   round2(principal),
		TotalOutstanding: round2(outstanding),
		StatusBreakdown:  breakdown,
	}
	if count > 0 {
		summary.AverageLoanSize = round2(principal / float64(count))
	}
	return summary, nil
}

// DelinquencyReport lists the tenant's delinquent book and its exposure.
type DelinquencyReport struct {
	Count       int           `json:"count"`
	TotalAtRisk float64       `json:"total_at_risk"`
	Loans       []*model.Loan `json:"loans"`
}

func (s *LoanService) GetDelinquencyReport(ctx context.Context, tenantID string) (*DelinquencyReport, error) {
	loans, err := s.repo.ListDelinquentLoans(tenantID)
	if err != nil {
		return nil, err
	}
	report := &DelinquencyReport{Count: len(loans), Loans: loans}
	for _, loan := range loans {
		report.TotalAtRisk += loan.RemainingBalance
	}
	report.TotalAtRisk = round2(report.TotalAtRisk)
	return report, nil
}

func (s *LoanService) GetLoanStatusDistribution(ctx context.Context, tenantID string) ([]model.StatusCount, error) {
	return s.repo.CountLoansByStatus(tenantID)
}

func amortizedPayment(principal, monthlyRate float64, termMonths int) float64 {
	if termMonths <= 0 {
		return principal
	}
	if monthlyRate == 0 {
		return principal / float64(termMonths)
	}
	factor := math.Pow(1+monthlyRate, float64(termMonths))
	return principal * monthlyRate * factor / (factor - 1)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
