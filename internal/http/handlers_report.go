package http

import (
	"net/http"

	"cashflow/internal/core"
)

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	reports, err := s.reports.ListReports(r.Context(), UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func (s *Server) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type core.ReportType `json:"type"`
		Name string          `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	rep, err := s.reports.CreateReport(r.Context(), UserID(r.Context()), req.Type, req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rep)
}

func (s *Server) handleDeleteReport(w http.ResponseWriter, r *http.Request) {
	reportID, err := pathID(r, "id")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.reports.DeleteReport(r.Context(), UserID(r.Context()), reportID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListBalanceSheet(w http.ResponseWriter, r *http.Request) {
	reportID, err := pathID(r, "id")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	items, err := s.reports.ListBalanceSheetItems(r.Context(), UserID(r.Context()), reportID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleCreateBalanceSheet(w http.ResponseWriter, r *http.Request) {
	reportID, err := pathID(r, "id")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	var item core.BalanceSheetItem
	if err := decodeJSON(r, &item); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.reports.CreateBalanceSheetItem(r.Context(), UserID(r.Context()), reportID, item)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateBalanceSheet(w http.ResponseWriter, r *http.Request) {
	reportID, err := pathID(r, "id")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	itemID, err := pathID(r, "itemID")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	var item core.BalanceSheetItem
	if err := decodeJSON(r, &item); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := s.reports.UpdateBalanceSheetItem(r.Context(), UserID(r.Context()), reportID, itemID, item)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteBalanceSheet(w http.ResponseWriter, r *http.Request) {
	reportID, err := pathID(r, "id")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	itemID, err := pathID(r, "itemID")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.reports.DeleteBalanceSheetItem(r.Context(), UserID(r.Context()), reportID, itemID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListIncomeExpense(w http.ResponseWriter, r *http.Request) {
	reportID, err := pathID(r, "id")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	items, err := s.reports.ListIncomeExpenseItems(r.Context(), UserID(r.Context()), reportID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleCreateIncomeExpense(w http.ResponseWriter, r *http.Request) {
	reportID, err := pathID(r, "id")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	var item core.IncomeExpenseItem
	if err := decodeJSON(r, &item); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.reports.CreateIncomeExpenseItem(r.Context(), UserID(r.Context()), reportID, item)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateIncomeExpense(w http.ResponseWriter, r *http.Request) {
	reportID, err := pathID(r, "id")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	itemID, err := pathID(r, "itemID")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	var item core.IncomeExpenseItem
	if err := decodeJSON(r, &item); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := s.reports.UpdateIncomeExpenseItem(r.Context(), UserID(r.Context()), reportID, itemID, item)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteIncomeExpense(w http.ResponseWriter, r *http.Request) {
	reportID, err := pathID(r, "id")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	itemID, err := pathID(r, "itemID")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.reports.DeleteIncomeExpenseItem(r.Context(), UserID(r.Context()), reportID, itemID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCashFlow(w http.ResponseWriter, r *http.Request) {
	reportID, err := pathID(r, "id")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := s.reports.CashFlow(r.Context(), UserID(r.Context()), reportID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleNetWorth(w http.ResponseWriter, r *http.Request) {
	reportID, err := pathID(r, "id")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	nw, err := s.reports.NetWorth(r.Context(), UserID(r.Context()), reportID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nw)
}
