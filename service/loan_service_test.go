package service

import (
	"context"
	"database/sql"
	"loan-desk-api/dispatch"
	"loan-desk-api/model"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockLoanRepo struct{ mock.Mock }

func (m *mockLoanRepo) GetLoanByID(tenantID, loanID string) (*model.Loan, error) {
	args := m.Called(tenantID, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Loan), args.Error(1)
}

func (m *mockLoanRepo) ListLoansByTenant(tenantID string, status string, limit int) ([]*model.Loan, error) {
	args := m.Called(tenantID, status, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Loan), args.Error(1)
}

func (m *mockLoanRepo) ListLoansByBorrower(tenantID, borrowerID string) ([]*model.Loan, error) {
	args := m.Called(tenantID, borrowerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Loan), args.Error(1)
}

func (m *mockLoanRepo) SearchLoans(tenantID, term string, limit int) ([]*model.Loan, error) {
	args := m.Called(tenantID, term, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Loan), args.Error(1)
}

func (m *mockLoanRepo) GetBorrowerByID(tenantID, borrowerID string) (*model.Borrower, error) {
	args := m.Called(tenantID, borrowerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Borrower), args.Error(1)
}

func (m *mockLoanRepo) CountLoansByStatus(tenantID string) ([]model.StatusCount, error) {
	args := m.Called(tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.StatusCount), args.Error(1)
}

func (m *mockLoanRepo) GetPortfolioTotals(tenantID string) (int, float64, float64, error) {
	args := m.Called(tenantID)
	return args.Int(0), args.Get(1).(float64), args.Get(2).(float64), args.Error(3)
}

func (m *mockLoanRepo) ListDelinquentLoans(tenantID string) ([]*model.Loan, error) {
	args := m.Called(tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Loan), args.Error(1)
}

func TestGetLoanDetails(t *testing.T) {
	ctx := context.Background()

	t.Run("hits the repository when cache is nil", func(t *testing.T) {
		repo := new(mockLoanRepo)
		svc := NewLoanService(repo, nil)
		repo.On("GetLoanByID", "T1", "L001").Return(&model.Loan{ID: "L001", Amount: 1000}, nil)

		loan, err := svc.GetLoanDetails(ctx, "T1", "L001")
		assert.NoError(t, err)
		assert.Equal(t, "L001", loan.ID)
		repo.AssertExpectations(t)
	})

	t.Run("missing loan yields a typed not-found", func(t *testing.T) {
		repo := new(mockLoanRepo)
		svc := NewLoanService(repo, nil)
		repo.On("GetLoanByID", "T1", "L404").Return(nil, sql.ErrNoRows)

		_, err := svc.GetLoanDetails(ctx, "T1", "L404")
		var notFound *dispatch.NotFoundError
		assert.ErrorAs(t, err, &notFound)
		assert.Equal(t, "loan", notFound.Entity)
		assert.Equal(t, "L404", notFound.ID)
	})

	t.Run("repository failure is passed through", func(t *testing.T) {
		repo := new(mockLoanRepo)
		svc := NewLoanService(repo, nil)
		repo.On("GetLoanByID", "T1", "L001").Return(nil, assert.AnError)

		_, err := svc.GetLoanDetails(ctx, "T1", "L001")
		assert.ErrorIs(t, err, assert.AnError)
	})
}

func TestGetBorrowerDefaultRisk(t *testing.T) {
	ctx := context.Background()

	setup := func(borrower *model.Borrower, loans []*model.Loan) *LoanService {
		repo := new(mockLoanRepo)
		repo.On("GetBorrowerByID", "T1", borrower.ID).Return(borrower, nil)
		repo.On("ListLoansByBorrower", "T1", borrower.ID).Return(loans, nil)
		return NewLoanService(repo, nil)
	}

	t.Run("strong borrower scores low", func(t *testing.T) {
		svc := setup(
			&model.Borrower{ID: "B1", CreditScore: 780, AnnualIncome: 120000, EmploymentStatus: "employed"},
			[]*model.Loan{{ID: "L1", Status: "active", RemainingBalance: 10000}},
		)
		risk, err := svc.GetBorrowerDefaultRisk(ctx, "T1", "B1")
		assert.NoError(t, err)
		assert.Equal(t, "low", risk.RiskLevel)
		assert.Equal(t, 0.0, risk.RiskScore)
		assert.Empty(t, risk.Factors)
	})

	t.Run("fair credit with elevated leverage is medium", func(t *testing.T) {
		svc := setup(
			&model.Borrower{ID: "B2", CreditScore: 640, AnnualIncome: 100000, EmploymentStatus: "employed"},
			[]*model.Loan{{ID: "L1", Status: "active", RemainingBalance: 35000}},
		)
		risk, err := svc.GetBorrowerDefaultRisk(ctx, "T1", "B2")
		assert.NoError(t, err)
		assert.Equal(t, "medium", risk.RiskLevel)
		assert.Equal(t, 30.0, risk.RiskScore)
		assert.InDelta(t, 0.35, risk.DebtToIncome, 0.001)
	})

	t.Run("delinquent unemployed subprime borrower is high and capped", func(t *testing.T) {
		svc := setup(
			&model.Borrower{ID: "B3", CreditScore: 540, AnnualIncome: 20000, EmploymentStatus: "unemployed"},
			[]*model.Loan{
				{ID: "L1", Status: "delinquent", RemainingBalance: 15000},
				{ID: "L2", Status: "default", RemainingBalance: 8000},
			},
		)
		risk, err := svc.GetBorrowerDefaultRisk(ctx, "T1", "B3")
		assert.NoError(t, err)
		assert.Equal(t, "high", risk.RiskLevel)
		assert.Equal(t, 100.0, risk.RiskScore)
		assert.Equal(t, 2, risk.DelinquentLoans)
		assert.Len(t, risk.Factors, 4)
	})

	t.Run("unknown borrower yields not-found", func(t *testing.T) {
		repo := new(mockLoanRepo)
		repo.On("GetBorrowerByID", "T1", "B404").Return(nil, sql.ErrNoRows)
		svc := NewLoanService(repo, nil)

		_, err := svc.GetBorrowerDefaultRisk(ctx, "T1", "B404")
		var notFound *dispatch.NotFoundError
		assert.ErrorAs(t, err, &notFound)
		assert.Equal(t, "borrower", notFound.Entity)
	})
}

func TestGetLoanPaymentSchedule(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	t.Run("amortizes interest-bearing terms to zero", func(t *testing.T) {
		repo := new(mockLoanRepo)
		repo.On("GetLoanByID", "T1", "L1").Return(&model.Loan{
			ID: "L1", Amount: 12000, InterestRate: 6.0, TermMonths: 12, StartDate: start,
		}, nil)
		svc := NewLoanService(repo, nil)

		schedule, err := svc.GetLoanPaymentSchedule(ctx, "T1", "L1")
		assert.NoError(t, err)
		assert.Len(t, schedule, 12)

		// First month's interest on 12000 at 6% annual is 60.
		assert.InDelta(t, 60.0, schedule[0].Interest, 0.01)
		assert.Equal(t, start.AddDate(0, 1, 0), schedule[0].DueDate)
		assert.InDelta(t, 0.0, schedule[len(schedule)-1].Balance, 0.01)

		// Principal portions grow as the balance declines.
		assert.Greater(t, schedule[11].Principal, schedule[0].Principal)
	})

	t.Run("zero-rate loans split evenly", func(t *testing.T) {
		repo := new(mockLoanRepo)
		repo.On("GetLoanByID", "T1", "L2").Return(&model.Loan{
			ID: "L2", Amount: 1200, InterestRate: 0, TermMonths: 6, StartDate: start,
		}, nil)
		svc := NewLoanService(repo, nil)

		schedule, err := svc.GetLoanPaymentSchedule(ctx, "T1", "L2")
		assert.NoError(t, err)
		assert.Len(t, schedule, 6)
		for _, entry := range schedule {
			assert.InDelta(t, 200.0, entry.Principal, 0.01)
			assert.InDelta(t, 0.0, entry.Interest, 0.001)
		}
	})
}

func TestGetPortfolioSummary(t *testing.T) {
	repo := new(mockLoanRepo)
	repo.On("GetPortfolioTotals", "T1").Return(4, 100000.0, 62000.0, nil)
	repo.On("CountLoansByStatus", "T1").Return([]model.StatusCount{
		{Status: "active", Count: 3},
		{Status: "delinquent", Count: 1},
	}, nil)
	svc := NewLoanService(repo, nil)

	summary, err := svc.GetPortfolioSummary(context.Background(), "T1")
	assert.NoError(t, err)
	assert.Equal(t, 4, summary.LoanCount)
	assert.Equal(t, 25000.0, summary.AverageLoanSize)
	assert.Len(t, summary.StatusBreakdown, 2)
}

func TestGetPortfolioSummary_EmptyBook(t *testing.T) {
	repo := new(mockLoanRepo)
	repo.On("GetPortfolioTotals", "T1").Return(0, 0.0, 0.0, nil)
	repo.On("CountLoansByStatus", "T1").Return([]model.StatusCount(nil), nil)
	svc := NewLoanService(repo, nil)

	summary, err := svc.GetPortfolioSummary(context.Background(), "T1")
	assert.NoError(t, err)
	assert.Equal(t, 0, summary.LoanCount)
	assert.Equal(t, 0.0, summary.AverageLoanSize)
}

func TestGetDelinquencyReport(t *testing.T) {
	repo := new(mockLoanRepo)
	repo.On("ListDelinquentLoans", "T1").Return([]*model.Loan{
		{ID: "L1", Status: "delinquent", RemainingBalance: 15000.50},
		{ID: "L2", Status: "default", RemainingBalance: 7999.25},
	}, nil)
	svc := NewLoanService(repo, nil)

	report, err := svc.GetDelinquencyReport(context.Background(), "T1")
	assert.NoError(t, err)
	assert.Equal(t, 2, report.Count)
	assert.Equal(t, 22999.75, report.TotalAtRisk)
}

func TestGetBorrowerLoans(t *testing.T) {
	t.Run("verifies the borrower before listing", func(t *testing.T) {
		repo := new(mockLoanRepo)
		repo.On("GetBorrowerByID", "T1", "B404").Return(nil, sql.ErrNoRows)
		svc := NewLoanService(repo, nil)

		_, err := svc.GetBorrowerLoans(context.Background(), "T1", "B404")
		var notFound *dispatch.NotFoundError
		assert.ErrorAs(t, err, &notFound)
		repo.AssertNotCalled(t, "ListLoansByBorrower", "T1", "B404")
	})
}
