package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"splitledger/internal/config"
	"splitledger/internal/ledger"
	"splitledger/internal/models"
	"splitledger/internal/money"
	"splitledger/internal/services"
	"splitledger/internal/store"
	"splitledger/internal/websocket"

	"github.com/go-chi/chi/v5"
)

type stubExpenseService struct {
	createFn         func(ctx context.Context, in services.ExpenseInput) (models.Expense, error)
	editFn           func(ctx context.Context, expenseID string, in services.ExpenseInput) (models.Expense, error)
	clearSplitFn     func(ctx context.Context, expenseID string) error
	deleteFn         func(ctx context.Context, expenseID string) error
	settleFn         func(ctx context.Context, debtID string) (models.Debt, error)
	getFn            func(ctx context.Context, expenseID string) (services.ExpenseDetail, error)
	listFn           func(ctx context.Context, filter models.ExpenseFilter) ([]models.Expense, error)
	categoryTotalsFn func(ctx context.Context, filter models.ExpenseFilter, userID *string) (map[models.Category]money.Money, error)
	netBalanceFn     func(ctx context.Context, userID string, groupID *string) (money.Money, error)
	groupBalancesFn  func(ctx context.Context, groupID string) ([]ledger.Balance, error)
	listDebtsFn      func(ctx context.Context, groupID string, includeSettled bool) ([]models.Debt, error)
	getDebtFn        func(ctx context.Context, debtID string) (models.Debt, error)
	owedBetweenFn    func(ctx context.Context, from, to, groupID string) (money.Money, error)
}

func (s stubExpenseService) CreateExpense(ctx context.Context, in services.ExpenseInput) (models.Expense, error) {
	if s.createFn == nil {
		return models.Expense{}, nil
	}
	return s.createFn(ctx, in)
}

func (s stubExpenseService) EditExpense(ctx context.Context, expenseID string, in services.ExpenseInput) (models.Expense, error) {
	if s.editFn == nil {
		return models.Expense{}, nil
	}
	return s.editFn(ctx, expenseID, in)
}

func (s stubExpenseService) ClearSplit(ctx context.Context, expenseID string) error {
	if s.clearSplitFn == nil {
		return nil
	}
	return s.clearSplitFn(ctx, expenseID)
}

func (s stubExpenseService) DeleteExpense(ctx context.Context, expenseID string) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, expenseID)
}

func (s stubExpenseService) SettleDebt(ctx context.Context, debtID string) (models.Debt, error) {
	if s.settleFn == nil {
		return models.Debt{}, nil
	}
	return s.settleFn(ctx, debtID)
}

func (s stubExpenseService) GetExpense(ctx context.Context, expenseID string) (services.ExpenseDetail, error) {
	if s.getFn == nil {
		return services.ExpenseDetail{}, nil
	}
	return s.getFn(ctx, expenseID)
}

func (s stubExpenseService) ListExpenses(ctx context.Context, filter models.ExpenseFilter) ([]models.Expense, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, filter)
}

func (s stubExpenseService) CategoryTotals(ctx context.Context, filter models.ExpenseFilter, userID *string) (map[models.Category]money.Money, error) {
	if s.categoryTotalsFn == nil {
		return nil, nil
	}
	return s.categoryTotalsFn(ctx, filter, userID)
}

func (s stubExpenseService) NetBalance(ctx context.Context, userID string, groupID *string) (money.Money, error) {
	if s.netBalanceFn == nil {
		return 0, nil
	}
	return s.netBalanceFn(ctx, userID, groupID)
}

func (s stubExpenseService) GroupBalances(ctx context.Context, groupID string) ([]ledger.Balance, error) {
	if s.groupBalancesFn == nil {
		return nil, nil
	}
	return s.groupBalancesFn(ctx, groupID)
}

func (s stubExpenseService) ListDebts(ctx context.Context, groupID string, includeSettled bool) ([]models.Debt, error) {
	if s.listDebtsFn == nil {
		return nil, nil
	}
	return s.listDebtsFn(ctx, groupID, includeSettled)
}

func (s stubExpenseService) GetDebt(ctx context.Context, debtID string) (models.Debt, error) {
	if s.getDebtFn == nil {
		return models.Debt{}, nil
	}
	return s.getDebtFn(ctx, debtID)
}

func (s stubExpenseService) OwedBetween(ctx context.Context, from, to, groupID string) (money.Money, error) {
	if s.owedBetweenFn == nil {
		return 0, nil
	}
	return s.owedBetweenFn(ctx, from, to, groupID)
}

type stubDirectoryService struct {
	createUserFn   func(ctx context.Context, name string, email *string) (models.User, error)
	getUserFn      func(ctx context.Context, userID string) (models.User, error)
	createGroupFn  func(ctx context.Context, name string, memberIDs []string) (models.Group, error)
	addMemberFn    func(ctx context.Context, groupID, userID string) (models.Group, error)
	removeMemberFn func(ctx context.Context, groupID, userID string) (models.Group, error)
	getGroupFn     func(ctx context.Context, groupID string) (models.Group, error)
	listGroupsFn   func(ctx context.Context) ([]models.Group, error)
	groupTotalFn   func(ctx context.Context, groupID string) (money.Money, error)
}

func (s stubDirectoryService) CreateUser(ctx context.Context, name string, email *string) (models.User, error) {
	if s.createUserFn == nil {
		return models.User{}, nil
	}
	return s.createUserFn(ctx, name, email)
}

func (s stubDirectoryService) GetUser(ctx context.Context, userID string) (models.User, error) {
	if s.getUserFn == nil {
		return models.User{ID: userID}, nil
	}
	return s.getUserFn(ctx, userID)
}

func (s stubDirectoryService) CreateGroup(ctx context.Context, name string, memberIDs []string) (models.Group, error) {
	if s.createGroupFn == nil {
		return models.Group{}, nil
	}
	return s.createGroupFn(ctx, name, memberIDs)
}

func (s stubDirectoryService) AddMember(ctx context.Context, groupID, userID string) (models.Group, error) {
	if s.addMemberFn == nil {
		return models.Group{ID: groupID}, nil
	}
	return s.addMemberFn(ctx, groupID, userID)
}

func (s stubDirectoryService) RemoveMember(ctx context.Context, groupID, userID string) (models.Group, error) {
	if s.removeMemberFn == nil {
		return models.Group{ID: groupID}, nil
	}
	return s.removeMemberFn(ctx, groupID, userID)
}

func (s stubDirectoryService) GetGroup(ctx context.Context, groupID string) (models.Group, error) {
	if s.getGroupFn == nil {
		return models.Group{ID: groupID}, nil
	}
	return s.getGroupFn(ctx, groupID)
}

func (s stubDirectoryService) ListGroups(ctx context.Context) ([]models.Group, error) {
	if s.listGroupsFn == nil {
		return nil, nil
	}
	return s.listGroupsFn(ctx)
}

func (s stubDirectoryService) GroupTotal(ctx context.Context, groupID string) (money.Money, error) {
	if s.groupTotalFn == nil {
		return 0, nil
	}
	return s.groupTotalFn(ctx, groupID)
}

func notFound(context.Context, string) (models.Group, error) {
	return models.Group{}, store.ErrNotFound
}

func newTestHandler(expenses ExpenseService, directory DirectoryService) *Handler {
	cfg := config.Config{
		AppEnv:         "test",
		Port:           "0",
		DBDriver:       config.DriverMemory,
		AllowedOrigins: "*",
		LedgerAtomic:   true,
	}
	return New(cfg, expenses, directory, websocket.NewHub())
}

// serve runs a request through the full router so chi fills in URL params.
func serve(t *testing.T, handler *Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rr, req)
	return rr
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func stringPtr(value string) *string {
	return &value
}
