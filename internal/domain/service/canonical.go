package service

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bibbank/bnpl/internal/domain/model"
	"github.com/bibbank/bnpl/pkg/money"
)

// canonicalField writes one named member of a canonical JSON object.
type canonicalField[T any] struct {
	name  string
	write func(w *canonicalWriter, v T)
}

// planFields is the canonical member order of a plan. Version and update time
// are persistence bookkeeping and deliberately absent.
var planFields = []canonicalField[model.Plan]{
	{"planId", func(w *canonicalWriter, p model.Plan) { w.str(p.ID()) }},
	{"tenantId", func(w *canonicalWriter, p model.Plan) { w.str(p.TenantID()) }},
	{"orderId", func(w *canonicalWriter, p model.Plan) { w.str(p.OrderID()) }},
	{"planTypeId", func(w *canonicalWriter, p model.Plan) { w.str(p.PlanTypeID()) }},
	{"status", func(w *canonicalWriter, p model.Plan) { w.str(p.Status().String()) }},
	{"orderTotal", func(w *canonicalWriter, p model.Plan) { w.amount(p.OrderTotal()) }},
	{"initialPayment", func(w *canonicalWriter, p model.Plan) { w.amount(p.InitialPayment()) }},
	{"installmentCount", func(w *canonicalWriter, p model.Plan) { w.integer(p.InstallmentCount()) }},
	{"amountPerInstallment", func(w *canonicalWriter, p model.Plan) { w.amount(p.AmountPerInstallment()) }},
	{"totalPayable", func(w *canonicalWriter, p model.Plan) { w.amount(p.TotalPayable()) }},
	{"totalInterest", func(w *canonicalWriter, p model.Plan) { w.amount(p.TotalInterest()) }},
	{"interestRate", func(w *canonicalWriter, p model.Plan) { w.rate(p.InterestRate()) }},
	{"lateInterestRate", func(w *canonicalWriter, p model.Plan) { w.rate(p.LateInterestRate()) }},
	{"referencePeriodDays", func(w *canonicalWriter, p model.Plan) { w.integer(p.ReferencePeriodDays()) }},
	{"startDate", func(w *canonicalWriter, p model.Plan) { w.instant(p.StartDate()) }},
	{"nextDueDate", func(w *canonicalWriter, p model.Plan) { w.instant(p.NextDueDate()) }},
	{"remainingBalance", func(w *canonicalWriter, p model.Plan) { w.amount(p.RemainingBalance()) }},
	{"createdAt", func(w *canonicalWriter, p model.Plan) { w.instant(p.CreatedAt()) }},
}

// installmentFields is the canonical member order of an installment. The
// sub-cent accrual residue is not part of the settled state.
var installmentFields = []canonicalField[model.Installment]{
	{"installmentId", func(w *canonicalWriter, i model.Installment) { w.str(i.ID()) }},
	{"number", func(w *canonicalWriter, i model.Installment) { w.integer(i.Number()) }},
	{"dueDate", func(w *canonicalWriter, i model.Installment) { w.instant(i.DueDate()) }},
	{"baseAmount", func(w *canonicalWriter, i model.Installment) { w.amount(i.BaseAmount()) }},
	{"arrearsCarried", func(w *canonicalWriter, i model.Installment) { w.amount(i.ArrearsCarried()) }},
	{"overPaymentCarried", func(w *canonicalWriter, i model.Installment) { w.amount(i.OverPaymentCarried()) }},
	{"lateInterest", func(w *canonicalWriter, i model.Installment) { w.amount(i.LateInterest()) }},
	{"totalDue", func(w *canonicalWriter, i model.Installment) { w.amount(i.TotalDue()) }},
	{"amountPaid", func(w *canonicalWriter, i model.Installment) { w.amount(i.AmountPaid()) }},
	{"arrearsPaid", func(w *canonicalWriter, i model.Installment) { w.amount(i.ArrearsPaid()) }},
	{"lateInterestPaid", func(w *canonicalWriter, i model.Installment) { w.amount(i.LateInterestPaid()) }},
	{"basePaid", func(w *canonicalWriter, i model.Installment) { w.amount(i.BasePaid()) }},
	{"principalRolledOver", func(w *canonicalWriter, i model.Installment) { w.amount(i.PrincipalRolledOver()) }},
	{"interestRolledOver", func(w *canonicalWriter, i model.Installment) { w.amount(i.InterestRolledOver()) }},
	{"status", func(w *canonicalWriter, i model.Installment) { w.str(i.Status().String()) }},
	{"lastPaymentDate", func(w *canonicalWriter, i model.Installment) { w.instant(i.LastPaymentDate()) }},
	{"lastAccrualDate", func(w *canonicalWriter, i model.Installment) { w.instant(i.LastAccrualDate()) }},
	{"refundDate", func(w *canonicalWriter, i model.Installment) { w.instant(i.RefundDate()) }},
}

// canonicalWriter emits compact JSON with no insignificant whitespace.
type canonicalWriter struct {
	b strings.Builder
}

func (w *canonicalWriter) str(s string) {
	// Marshalling a string cannot fail.
	raw, _ := json.Marshal(s)
	w.b.Write(raw)
}

func (w *canonicalWriter) amount(d decimal.Decimal) { w.str(money.Fixed(d)) }

// rate is written in its shortest exact form so 10 and 10.00 agree.
func (w *canonicalWriter) rate(d decimal.Decimal) { w.str(d.String()) }

func (w *canonicalWriter) integer(n int) { w.b.WriteString(strconv.Itoa(n)) }

func (w *canonicalWriter) instant(t time.Time) {
	if t.IsZero() {
		w.b.WriteString("null")
		return
	}
	w.str(t.UTC().Format(time.RFC3339))
}

// writeMembers writes the non-redacted members of v without the enclosing
// braces and reports whether anything was written.
func writeMembers[T any](w *canonicalWriter, fields []canonicalField[T], v T, redacted map[string]struct{}) bool {
	wrote := false
	for _, f := range fields {
		if _, skip := redacted[f.name]; skip {
			continue
		}
		if wrote {
			w.b.WriteByte(',')
		}
		wrote = true
		w.str(f.name)
		w.b.WriteByte(':')
		f.write(w, v)
	}
	return wrote
}

// canonicalPlan renders the plan with its installments as the last member.
func canonicalPlan(plan model.Plan, redacted map[string]struct{}) string {
	var w canonicalWriter
	w.b.WriteByte('{')
	if writeMembers(&w, planFields, plan, redacted) {
		w.b.WriteByte(',')
	}
	w.str("installments")
	w.b.WriteString(":[")
	for idx, inst := range plan.Installments() {
		if idx > 0 {
			w.b.WriteByte(',')
		}
		w.b.WriteByte('{')
		writeMembers(&w, installmentFields, inst, redacted)
		w.b.WriteByte('}')
	}
	w.b.WriteString("]}")
	return w.b.String()
}
