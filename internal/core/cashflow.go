package core

import "sort"

// InterestSuffix marks asset-expense entries synthesized from a tracked
// debt's own interest amount.
const InterestSuffix = " (interest)"

type (
	// NamedAmount is a single entry of a synthesized name -> amount mapping.
	NamedAmount struct {
		Name   string  `json:"name"`
		Amount float64 `json:"amount"`
	}

	// Summary is the aggregated cash flow of one report.
	Summary struct {
		TotalIncome     float64 `json:"totalIncome"`
		TotalExpense    float64 `json:"totalExpense"`
		NetCashFlow     float64 `json:"netCashFlow"`
		LaborIncome     float64 `json:"laborIncome"`
		AssetIncome     float64 `json:"assetIncome"`
		LivingExpense   float64 `json:"livingExpense"`
		InterestExpense float64 `json:"interestExpense"`
		AssetExpense    float64 `json:"assetExpense"`

		LaborIncomeItems     []IncomeExpenseItem `json:"laborIncomeItems"`
		LivingExpenseItems   []IncomeExpenseItem `json:"livingExpenseItems"`
		AssetIncomeItems     []NamedAmount       `json:"assetIncomeItems"`
		InterestExpenseItems []NamedAmount       `json:"interestExpenseItems"`
		AssetExpenseItems    []NamedAmount       `json:"assetExpenseItems"`
	}

	// NetWorth is the balance-sheet roll-up carried in snapshots.
	NetWorth struct {
		TotalAssets float64 `json:"totalAssets"`
		TotalDebts  float64 `json:"totalDebts"`
		NetWorth    float64 `json:"netWorth"`
	}
)

// ComputeCashFlow classifies and sums a report's items into the cash-flow
// summary. Classification rules:
//
//   - Labor income: INCOME items in LABOR_INCOME, summed at face value.
//   - Asset income: every balance-sheet asset is valued at its balance
//     unless an ASSET_INCOME entry under the same name overrides it.
//   - Living expense: EXPENSE items in LIVING_EXPENSE, summed at face value.
//   - Interest expense: interest-flagged EXPENSE items whose name is not a
//     tracked debt; interest on tracked debts is counted through the debt's
//     own interest amount instead.
//   - Asset expense: tracked-debt interest amounts (keyed name+" (interest)"),
//     plus ASSET_EXPENSE/LOAN_REPAYMENT entries: on a tracked debt only the
//     interest portion counts (principal repayment is not cash flow), off the
//     sheet the full amount counts.
//
// The input slices are never mutated.
func ComputeCashFlow(bsItems []BalanceSheetItem, ieItems []IncomeExpenseItem) Summary {
	var s Summary

	laborItems := make([]IncomeExpenseItem, 0)
	for _, i := range ieItems {
		if i.Type == Income && i.Category == LaborIncome {
			laborItems = append(laborItems, i)
			s.LaborIncome += i.Amount
		}
	}
	s.LaborIncomeItems = laborItems

	assetIncomeMap := make(map[string]float64)
	for _, b := range bsItems {
		if b.Category.IsAsset() {
			assetIncomeMap[b.Name] = b.Amount
		}
	}
	for _, i := range ieItems {
		if i.Type == Income && i.Category == AssetIncome {
			assetIncomeMap[i.Name] = i.Amount
		}
	}

	livingItems := make([]IncomeExpenseItem, 0)
	for _, i := range ieItems {
		if i.Type == Expense && i.Category == LivingExpense {
			livingItems = append(livingItems, i)
			s.LivingExpense += i.Amount
		}
	}
	s.LivingExpenseItems = livingItems

	debtNames := make(map[string]bool)
	for _, b := range bsItems {
		if b.Category.IsDebt() {
			debtNames[b.Name] = true
		}
	}

	interestMap := make(map[string]float64)
	for _, i := range ieItems {
		if i.Type == Expense && i.IsInterest && !debtNames[i.Name] {
			interestMap[i.Name] = i.Amount
		}
	}

	assetExpenseMap := make(map[string]float64)
	for _, b := range bsItems {
		if !b.Category.IsDebt() {
			continue
		}
		if b.IsInterest != nil && *b.IsInterest && b.InterestAmount != nil && *b.InterestAmount > 0 {
			assetExpenseMap[b.Name+InterestSuffix] = *b.InterestAmount
		}
	}
	for _, i := range ieItems {
		if i.Type != Expense || (i.Category != AssetExpense && i.Category != LoanRepayment) {
			continue
		}
		if debtNames[i.Name] {
			// Tracked debt: only the interest portion is cash flow.
			if i.IsInterest && i.InterestAmount != nil && *i.InterestAmount > 0 {
				assetExpenseMap[i.Name] = *i.InterestAmount
			}
		} else {
			assetExpenseMap[i.Name] = i.Amount
		}
	}

	s.AssetIncomeItems = sortedEntries(assetIncomeMap)
	s.InterestExpenseItems = sortedEntries(interestMap)
	s.AssetExpenseItems = sortedEntries(assetExpenseMap)

	for _, e := range s.AssetIncomeItems {
		s.AssetIncome += e.Amount
	}
	for _, e := range s.InterestExpenseItems {
		s.InterestExpense += e.Amount
	}
	for _, e := range s.AssetExpenseItems {
		s.AssetExpense += e.Amount
	}

	s.TotalIncome = s.LaborIncome + s.AssetIncome
	s.TotalExpense = s.LivingExpense + s.InterestExpense + s.AssetExpense
	s.NetCashFlow = s.TotalIncome - s.TotalExpense

	return s
}

// ComputeNetWorth sums the asset and debt sides of the balance sheet.
func ComputeNetWorth(bsItems []BalanceSheetItem) NetWorth {
	var nw NetWorth
	for _, b := range bsItems {
		switch {
		case b.Category.IsAsset():
			nw.TotalAssets += b.Amount
		case b.Category.IsDebt():
			nw.TotalDebts += b.Amount
		}
	}
	nw.NetWorth = nw.TotalAssets - nw.TotalDebts
	return nw
}

// sortedEntries flattens a name -> amount map into a name-ordered slice so
// recomputing an unchanged report yields identical output.
func sortedEntries(m map[string]float64) []NamedAmount {
	out := make([]NamedAmount, 0, len(m))
	for name, amount := range m {
		out = append(out, NamedAmount{Name: name, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
