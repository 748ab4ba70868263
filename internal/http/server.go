package http

import (
	"context"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cashflow/internal/auth"
	"cashflow/internal/services"
)

// Server wires the API routes over the service layer.
type Server struct {
	http.Server
	jwt          *auth.JWTManager
	authService  *services.AuthService
	userService  *services.UserService
	reports      *services.ReportService
	aiProxy      *AIProxy
	rateLimiter  *rateLimiter
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, jwt *auth.JWTManager, authSvc *services.AuthService, userSvc *services.UserService, reports *services.ReportService, aiProxy *AIProxy) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		jwt:         jwt,
		authService: authSvc,
		userService: userSvc,
		reports:     reports,
		aiProxy:     aiProxy,
		rateLimiter: newRateLimiter(),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Auth endpoints are the only unauthenticated API surface.
	mux.HandleFunc("POST /api/auth/register", s.withCommon(s.handleRegister))
	mux.HandleFunc("POST /api/auth/login", s.withCommon(s.handleLogin))
	mux.HandleFunc("POST /api/auth/send-code", s.withCommon(s.handleSendCode))

	mux.HandleFunc("GET /api/user/profile", s.withCommon(s.withAuth(s.handleProfile)))
	mux.HandleFunc("PUT /api/user/profile", s.withCommon(s.withAuth(s.handleUpdateProfile)))

	mux.HandleFunc("GET /api/reports", s.withCommon(s.withAuth(s.handleListReports)))
	mux.HandleFunc("POST /api/reports", s.withCommon(s.withAuth(s.handleCreateReport)))
	mux.HandleFunc("DELETE /api/reports/{id}", s.withCommon(s.withAuth(s.handleDeleteReport)))

	mux.HandleFunc("GET /api/reports/{id}/balance-sheet", s.withCommon(s.withAuth(s.handleListBalanceSheet)))
	mux.HandleFunc("POST /api/reports/{id}/balance-sheet", s.withCommon(s.withAuth(s.handleCreateBalanceSheet)))
	mux.HandleFunc("PUT /api/reports/{id}/balance-sheet/{itemID}", s.withCommon(s.withAuth(s.handleUpdateBalanceSheet)))
	mux.HandleFunc("DELETE /api/reports/{id}/balance-sheet/{itemID}", s.withCommon(s.withAuth(s.handleDeleteBalanceSheet)))

	mux.HandleFunc("GET /api/reports/{id}/income-expense", s.withCommon(s.withAuth(s.handleListIncomeExpense)))
	mux.HandleFunc("POST /api/reports/{id}/income-expense", s.withCommon(s.withAuth(s.handleCreateIncomeExpense)))
	mux.HandleFunc("PUT /api/reports/{id}/income-expense/{itemID}", s.withCommon(s.withAuth(s.handleUpdateIncomeExpense)))
	mux.HandleFunc("DELETE /api/reports/{id}/income-expense/{itemID}", s.withCommon(s.withAuth(s.handleDeleteIncomeExpense)))

	mux.HandleFunc("GET /api/reports/{id}/cashflow", s.withCommon(s.withAuth(s.handleCashFlow)))
	mux.HandleFunc("GET /api/reports/{id}/networth", s.withCommon(s.withAuth(s.handleNetWorth)))

	if aiProxy != nil {
		mux.HandleFunc("POST /api/ai/chat", s.withCommon(s.withAuth(aiProxy.handleChat)))
		mux.HandleFunc("GET /api/ai/health", s.withCommon(s.withAuth(aiProxy.handleHealth)))
	}

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
