// file: service/functions.go

package service

import (
	"context"
	"loan-desk-api/dispatch"
)

// RegisterLoanFunctions wires every dispatched loan/borrower operation into
// the registry. Called once at startup; a duplicate registration panics.
func RegisterLoanFunctions(registry *dispatch.Registry, loans *LoanService) {
	loanID := dispatch.Field{
		Name: "loan_id", Kind: dispatch.KindString,
		Required: true, Identifier: true, Aliases: []string{"loanId"},
	}
	borrowerID := dispatch.Field{
		Name: "borrower_id", Kind: dispatch.KindString,
		Required: true, Identifier: true, Aliases: []string{"borrowerId"},
	}

	registry.Register(dispatch.Descriptor{
		Name:   "getLoanDetails",
		Fields: []dispatch.Field{loanID},
	}, func(ctx context.Context, args dispatch.Args) (any, error) {
		return loans.GetLoanDetails(ctx, dispatch.TenantFromContext(ctx), args.String("loan_id"))
	})

	registry.Register(dispatch.Descriptor{
		Name: "listLoans",
		Fields: []dispatch.Field{
			{Name: "status", Kind: dispatch.KindString},
			{Name: "limit", Kind: dispatch.KindInt},
		},
	}, func(ctx context.Context, args dispatch.Args) (any, error) {
		return loans.ListLoans(ctx, dispatch.TenantFromContext(ctx), args.String("status"), args.Int("limit"))
	})

	registry.Register(dispatch.Descriptor{
		Name: "searchLoans",
		Fields: []dispatch.Field{
			{Name: "query", Kind: dispatch.KindString, Required: true, Aliases: []string{"term"}},
			{Name: "limit", Kind: dispatch.KindInt},
		},
	}, func(ctx context.Context, args dispatch.Args) (any, error) {
		return loans.SearchLoans(ctx, dispatch.TenantFromContext(ctx), args.String("query"), args.Int("limit"))
	})

	registry.Register(dispatch.Descriptor{
		Name:   "getLoanPaymentSchedule",
		Fields: []dispatch.Field{loanID},
	}, func(ctx context.Context, args dispatch.Args) (any, error) {
		return loans.GetLoanPaymentSchedule(ctx, dispatch.TenantFromContext(ctx), args.String("loan_id"))
	})

	registry.Register(dispatch.Descriptor{
		Name:   "getBorrowerProfile",
		Fields: []dispatch.Field{borrowerID},
	}, func(ctx context.Context, args dispatch.Args) (any, error) {
		return loans.GetBorrowerProfile(ctx, dispatch.TenantFromContext(ctx), args.String("borrower_id"))
	})

	registry.Register(dispatch.Descriptor{
		Name:   "getBorrowerLoans",
		Fields: []dispatch.Field{borrowerID},
	}, func(ctx context.Context, args dispatch.Args) (any, error) {
		return loans.GetBorrowerLoans(ctx, dispatch.TenantFromContext(ctx), args.String("borrower_id"))
	})

	registry.Register(dispatch.Descriptor{
		Name:   "getBorrowerDefaultRisk",
		Fields: []dispatch.Field{borrowerID},
	}, func(ctx context.Context, args dispatch.Args) (any, error) {
		return loans.GetBorrowerDefaultRisk(ctx, dispatch.TenantFromContext(ctx), args.String("borrower_id"))
	})

	registry.Register(dispatch.Descriptor{
		Name: "getPortfolioSummary",
	}, func(ctx context.Context, args dispatch.Args) (any, error) {
		return loans.GetPortfolioSummary(ctx, dispatch.TenantFromContext(ctx))
	})

	registry.Register(dispatch.Descriptor{
		Name: "getDelinquencyReport",
	}, func(ctx context.Context, args dispatch.Args) (any, error) {
		return loans.GetDelinquencyReport(ctx, dispatch.TenantFromContext(ctx))
	})

	registry.Register(dispatch.Descriptor{
		Name: "getLoanStatusDistribution",
	}, func(ctx context.Context, args dispatch.Args) (any, error) {
		return loans.GetLoanStatusDistribution(ctx, dispatch.TenantFromContext(ctx))
	})
}
