package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/expenseflow-prototype/internal/audit"
	"github.com/xela07ax/expenseflow-prototype/internal/domain"
	"go.uber.org/zap"
)

// memStore — in-memory реализация Store/Tx для тестов ядра.
// Транзакционность не эмулируется: тестовые сценарии не полагаются на откаты.
type memStore struct {
	expenses map[string]*domain.Expense
	records  map[string]*domain.ApprovalRecord
	rules    []domain.ApprovalRule
	users    map[string]domain.User
}

func newMemStore() *memStore {
	return &memStore{
		expenses: make(map[string]*domain.Expense),
		records:  make(map[string]*domain.ApprovalRecord),
		users:    make(map[string]domain.User),
	}
}

func (s *memStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	return fn(&memTx{s})
}

type memTx struct {
	s *memStore
}

func (t *memTx) CreateExpense(_ context.Context, e *domain.Expense) error {
	cp := *e
	t.s.expenses[e.ID] = &cp
	return nil
}

func (t *memTx) GetExpenseForUpdate(_ context.Context, id string) (*domain.Expense, error) {
	e, ok := t.s.expenses[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (t *memTx) UpdateExpenseStatus(_ context.Context, id string, status domain.ExpenseStatus, now time.Time) error {
	e, ok := t.s.expenses[id]
	if !ok {
		return domain.ErrNotFound
	}
	if e.Status != domain.ExpensePending {
		return domain.ErrTerminalStatus
	}
	e.Status = status
	e.UpdatedAt = now
	return nil
}

func (t *memTx) GetRecord(_ context.Context, id string) (*domain.ApprovalRecord, error) {
	r, ok := t.s.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (t *memTx) ListRecords(_ context.Context, expenseID string) ([]domain.ApprovalRecord, error) {
	var out []domain.ApprovalRecord
	for _, r := range t.s.records {
		if r.ExpenseID == expenseID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (t *memTx) UpdateRecordDecision(_ context.Context, rec *domain.ApprovalRecord) error {
	stored, ok := t.s.records[rec.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.Status != domain.RecordPending {
		return domain.ErrConflict
	}
	cp := *rec
	t.s.records[rec.ID] = &cp
	return nil
}

func (t *memTx) InsertRecords(_ context.Context, recs []domain.ApprovalRecord) error {
	for _, r := range recs {
		cp := r
		t.s.records[r.ID] = &cp
	}
	return nil
}

func (t *memTx) ListCompanyRules(_ context.Context, companyID string) ([]domain.ApprovalRule, error) {
	var out []domain.ApprovalRule
	for _, r := range t.s.rules {
		if r.CompanyID == companyID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (t *memTx) CompanyDirectory(_ context.Context, companyID string) (map[string]domain.User, error) {
	out := make(map[string]domain.User)
	for id, u := range t.s.users {
		if u.CompanyID == companyID {
			out[id] = u
		}
	}
	return out, nil
}

type memNotifier struct {
	sent []domain.Notification
}

func (n *memNotifier) Publish(_ context.Context, notif domain.Notification) error {
	n.sent = append(n.sent, notif)
	return nil
}

func testEngine(store *memStore) (*Engine, *memNotifier) {
	notifier := &memNotifier{}
	return NewEngine(store, notifier, audit.Discard{}, nil, zap.NewNop()), notifier
}

func (s *memStore) addUser(id string, role string) {
	s.users[id] = domain.User{ID: id, CompanyID: "acme", Role: role}
}

func (s *memStore) pendingFor(approverID string) *domain.ApprovalRecord {
	for _, r := range s.records {
		if r.ApproverID == approverID && r.Status == domain.RecordPending {
			return r
		}
	}
	return nil
}

func submit(t *testing.T, eng *Engine) *domain.Expense {
	t.Helper()
	expense, err := eng.Submit(context.Background(), SubmitRequest{
		CompanyID:   "acme",
		SubmitterID: "emp",
		Amount:      300,
		Currency:    "EUR",
		Description: "team offsite",
	})
	require.NoError(t, err)
	return expense
}

func TestSubmitValidation(t *testing.T) {
	eng, _ := testEngine(newMemStore())

	_, err := eng.Submit(context.Background(), SubmitRequest{CompanyID: "acme", SubmitterID: "emp", Amount: 0})
	assert.True(t, domain.IsValidation(err))

	_, err = eng.Submit(context.Background(), SubmitRequest{Amount: 10})
	assert.True(t, domain.IsValidation(err))
}

// Компания без правил: резервный этап из менеджеров и админов,
// решение принимается единогласно.
func TestFallbackWorkflowUnanimity(t *testing.T) {
	store := newMemStore()
	store.addUser("emp", domain.RoleEmployee)
	store.addUser("m1", domain.RoleManager)
	store.addUser("m2", domain.RoleAdmin)
	eng, notifier := testEngine(store)

	expense := submit(t, eng)
	assert.Equal(t, domain.ExpensePending, expense.Status)

	// Оба eligible-пользователя получили записи и уведомления
	require.NotNil(t, store.pendingFor("m1"))
	require.NotNil(t, store.pendingFor("m2"))
	assert.Len(t, notifier.sent, 2)

	// Первое одобрение — еще не конец
	res, err := eng.Decide(context.Background(), DecisionRequest{
		RecordID:   store.pendingFor("m1").ID,
		ApproverID: "m1",
		Approve:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ExpensePending, res.Expense.Status)

	// Второе одобрение закрывает расход и уведомляет автора
	res, err = eng.Decide(context.Background(), DecisionRequest{
		RecordID:   store.pendingFor("m2").ID,
		ApproverID: "m2",
		Approve:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ExpenseApproved, res.Expense.Status)

	last := notifier.sent[len(notifier.sent)-1]
	assert.Equal(t, "emp", last.RecipientUserID)
	assert.Equal(t, domain.NotifyApproval, last.Type)
}

// Процентное правило 34% от трех согласующих: этапы открываются по одному,
// кворум ceil(0.34*3)=2 закрывает расход досрочно.
func TestPercentageQuorumShortCircuit(t *testing.T) {
	store := newMemStore()
	store.addUser("emp", domain.RoleEmployee)
	store.addUser("m1", domain.RoleManager)
	store.addUser("m2", domain.RoleManager)
	store.addUser("m3", domain.RoleManager)
	store.rules = []domain.ApprovalRule{{
		ID:                    "r1",
		CompanyID:             "acme",
		RuleType:              domain.RulePercentage,
		Approvers:             []string{"m1", "m2", "m3"},
		MinApprovalPercentage: 34,
	}}
	eng, _ := testEngine(store)

	submit(t, eng)

	// Открыт только первый этап
	require.NotNil(t, store.pendingFor("m1"))
	assert.Nil(t, store.pendingFor("m2"))

	res, err := eng.Decide(context.Background(), DecisionRequest{
		RecordID: store.pendingFor("m1").ID, ApproverID: "m1", Approve: true,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ExpensePending, res.Expense.Status)
	require.NotNil(t, store.pendingFor("m2"))

	// Второе одобрение добивает кворум, m3 уже не нужен
	res, err = eng.Decide(context.Background(), DecisionRequest{
		RecordID: store.pendingFor("m2").ID, ApproverID: "m2", Approve: true,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ExpenseApproved, res.Expense.Status)
}

func TestRejectionIsTerminal(t *testing.T) {
	store := newMemStore()
	store.addUser("emp", domain.RoleEmployee)
	store.addUser("m1", domain.RoleManager)
	store.addUser("m2", domain.RoleManager)
	store.rules = []domain.ApprovalRule{{
		ID:                    "r1",
		CompanyID:             "acme",
		RuleType:              domain.RulePercentage,
		Approvers:             []string{"m1", "m2"},
		MinApprovalPercentage: 100,
	}}
	eng, notifier := testEngine(store)

	submit(t, eng)

	comment := "missing receipts"
	res, err := eng.Decide(context.Background(), DecisionRequest{
		RecordID: store.pendingFor("m1").ID, ApproverID: "m1", Approve: false, Comment: comment,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ExpenseRejected, res.Expense.Status)
	require.NotNil(t, res.Record.Comments)
	assert.Equal(t, comment, *res.Record.Comments)

	// Второй этап после отклонения не открывается
	assert.Nil(t, store.pendingFor("m2"))

	last := notifier.sent[len(notifier.sent)-1]
	assert.Equal(t, "emp", last.RecipientUserID)
	assert.Equal(t, domain.NotifyRejection, last.Type)
}

func TestDoubleDecisionConflicts(t *testing.T) {
	store := newMemStore()
	store.addUser("emp", domain.RoleEmployee)
	store.addUser("m1", domain.RoleManager)
	store.addUser("m2", domain.RoleManager)
	eng, _ := testEngine(store)

	submit(t, eng)
	recID := store.pendingFor("m1").ID

	_, err := eng.Decide(context.Background(), DecisionRequest{RecordID: recID, ApproverID: "m1", Approve: true})
	require.NoError(t, err)

	_, err = eng.Decide(context.Background(), DecisionRequest{RecordID: recID, ApproverID: "m1", Approve: false})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestDecisionByWrongApproverConflicts(t *testing.T) {
	store := newMemStore()
	store.addUser("emp", domain.RoleEmployee)
	store.addUser("m1", domain.RoleManager)
	store.addUser("m2", domain.RoleManager)
	eng, _ := testEngine(store)

	submit(t, eng)

	_, err := eng.Decide(context.Background(), DecisionRequest{
		RecordID: store.pendingFor("m1").ID, ApproverID: "m2", Approve: true,
	})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestDecisionOnTerminalExpense(t *testing.T) {
	store := newMemStore()
	store.addUser("emp", domain.RoleEmployee)
	store.addUser("m1", domain.RoleManager)
	store.addUser("m2", domain.RoleManager)
	store.addUser("m3", domain.RoleManager)
	store.rules = []domain.ApprovalRule{{
		ID:                    "r1",
		CompanyID:             "acme",
		RuleType:              domain.RulePercentage,
		Approvers:             []string{"m1", "m2", "m3"},
		MinApprovalPercentage: 34,
	}}
	eng, _ := testEngine(store)

	submit(t, eng)
	for _, approver := range []string{"m1", "m2"} {
		_, err := eng.Decide(context.Background(), DecisionRequest{
			RecordID: store.pendingFor(approver).ID, ApproverID: approver, Approve: true,
		})
		require.NoError(t, err)
	}

	// Кворум собран, расход approved; запоздавшее решение m3 отклоняется
	late := store.pendingFor("m3")
	require.NotNil(t, late)
	_, err := eng.Decide(context.Background(), DecisionRequest{RecordID: late.ID, ApproverID: "m3", Approve: true})
	assert.ErrorIs(t, err, domain.ErrTerminalStatus)
}

func TestDecideUnknownRecord(t *testing.T) {
	eng, _ := testEngine(newMemStore())

	_, err := eng.Decide(context.Background(), DecisionRequest{RecordID: "missing", ApproverID: "m1", Approve: true})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// Правило ссылается на ушедшего пользователя: расход принимается,
// но остается pending без открытых записей (stalled)
func TestSubmitStallsOnDepartedApprovers(t *testing.T) {
	store := newMemStore()
	store.addUser("emp", domain.RoleEmployee)
	store.rules = []domain.ApprovalRule{{
		ID:                    "r1",
		CompanyID:             "acme",
		RuleType:              domain.RulePercentage,
		Approvers:             []string{"ghost"},
		MinApprovalPercentage: 100,
	}}
	eng, notifier := testEngine(store)

	expense := submit(t, eng)

	assert.Equal(t, domain.ExpensePending, expense.Status)
	assert.Empty(t, store.records)
	assert.Empty(t, notifier.sent)
}

// Автор расхода не согласует сам себя: резервный этап исключает его,
// даже если он менеджер
func TestSubmitterExcludedFromFallback(t *testing.T) {
	store := newMemStore()
	store.addUser("emp", domain.RoleManager)
	store.addUser("m1", domain.RoleManager)
	eng, _ := testEngine(store)

	submit(t, eng)

	assert.Nil(t, store.pendingFor("emp"))
	require.NotNil(t, store.pendingFor("m1"))
}
