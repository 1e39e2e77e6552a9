package repository

import (
	"database/sql"
	"loan-desk-api/logger"
	"loan-desk-api/model"
)

// ILoanRepository defines the tenant-scoped read contract behind the
// dispatched loan and borrower operations. Every query takes the effective
// tenant resolved by the authorization gate; rows from other tenants are
// invisible at the SQL level.
type ILoanRepository interface {
	GetLoanByID(tenantID, loanID string) (*model.Loan, error)
	ListLoansByTenant(tenantID string, status string, limit int) ([]*model.Loan, error)
	ListLoansByBorrower(tenantID, borrowerID string) ([]*model.Loan, error)
	SearchLoans(tenantID, term string, limit int) ([]*model.Loan, error)
	GetBorrowerByID(tenantID, borrowerID string) (*model.Borrower, error)
	CountLoansByStatus(tenantID string) ([]model.StatusCount, error)
	GetPortfolioTotals(tenantID string) (count int, principal, outstanding float64, err error)
	ListDelinquentLoans(tenantID string) ([]*model.Loan, error)
}

type LoanRepository struct {
	DB *sql.DB
}

func NewLoanRepository(db *sql.DB) *LoanRepository {
	return &LoanRepository{DB: db}
}

const loanColumns = `id, tenant_id, borrower_id, amount, interest_rate, term_months,
	monthly_payment, remaining_balance, status, start_date, created_at`

func scanLoan(row interface{ Scan(...any) error }) (*model.Loan, error) {
	loan := &model.Loan{}
	err := row.Scan(
		&loan.ID, &loan.TenantID, &loan.BorrowerID, &loan.Amount,
		&loan.InterestRate, &loan.TermMonths, &loan.MonthlyPayment,
		&loan.RemainingBalance, &loan.Status, &loan.StartDate, &loan.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return loan, nil
}

func (r *LoanRepository) GetLoanByID(tenantID, loanID string) (*model.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE tenant_id = $1 AND id = $2`
	return scanLoan(r.DB.QueryRow(query, tenantID, loanID))
}

func (r *LoanRepository) ListLoansByTenant(tenantID string, status string, limit int) ([]*model.Loan, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + loanColumns + ` FROM loans WHERE tenant_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC LIMIT $3`
	rows, err := r.DB.Query(query, tenantID, status, limit)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to list loans")
		return nil, err
	}
	defer rows.Close()
	return collectLoans(rows)
}

func (r *LoanRepository) ListLoansByBorrower(tenantID, borrowerID string) ([]*model.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE tenant_id = $1 AND borrower_id = $2 ORDER BY created_at DESC`
	rows, err := r.DB.Query(query, tenantID, borrowerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLoans(rows)
}

func (r *LoanRepository) SearchLoans(tenantID, term string, limit int) ([]*model.Loan, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + loanColumns + ` FROM loans l WHERE l.tenant_id = $1 AND
		(l.id ILIKE '%' || $2 || '%' OR l.borrower_id ILIKE '%' || $2 || '%' OR l.status ILIKE '%' || $2 || '%')
		ORDER BY l.created_at DESC LIMIT $3`
	rows, err := r.DB.Query(query, tenantID, term, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLoans(rows)
}

func (r *LoanRepository) GetBorrowerByID(tenantID, borrowerID string) (*model.Borrower, error) {
	b := &model.Borrower{}
	query := `SELECT id, tenant_id, name, email, credit_score, annual_income, employment_status, created_at
		FROM borrowers WHERE tenant_id = $1 AND id = $2`
	err := r.DB.QueryRow(query, tenantID, borrowerID).Scan(
		&b.ID, &b.TenantID, &b.Name, &b.Email,
		&b.CreditScore, &b.AnnualIncome, &b.EmploymentStatus, &b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *LoanRepository) CountLoansByStatus(tenantID string) ([]model.StatusCount, error) {
	query := `SELECT status, COUNT(*) FROM loans WHERE tenant_id = $1 GROUP BY status ORDER BY status`
	rows, err := r.DB.Query(query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []model.StatusCount
	for rows.Next() {
		var c model.StatusCount
		if err := rows.Scan(&c.Status, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func (r *LoanRepository) GetPortfolioTotals(tenantID string) (int, float64, float64, error) {
	var count int
	var principal, outstanding float64
	query := `SELECT COUNT(*), COALESCE(SUM(amount), 0), COALESCE(SUM(remaining_balance), 0)
		FROM loans WHERE tenant_id = $1`
	err := r.DB.QueryRow(query, tenantID).Scan(&count, &principal, &outstanding)
	if err != nil {
		return 0, 0, 0, err
	}
	return count, principal, outstanding, nil
}

func (r *LoanRepository) ListDelinquentLoans(tenantID string) ([]*model.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE tenant_id = $1 AND status IN ('delinquent', 'default')
		ORDER BY remaining_balance DESC`
	rows, err := r.DB.Query(query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLoans(rows)
}

func collectLoans(rows *sql.Rows) ([]*model.Loan, error) {
	var loans []*model.Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, loan)
	}
	return loans, rows.Err()
}
