package handlers

import (
	"net/http"

	"splitledger/internal/config"
	"splitledger/internal/middleware"
	"splitledger/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handler struct {
	cfg       config.Config
	expenses  ExpenseService
	directory DirectoryService
	hub       *websocket.Hub
}

func New(cfg config.Config, expenses ExpenseService, directory DirectoryService, hub *websocket.Hub) *Handler {
	return &Handler{
		cfg:       cfg,
		expenses:  expenses,
		directory: directory,
		hub:       hub,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(middleware.EchoRequestID)
	router.Use(middleware.Logger)
	router.Use(chimiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.cfg.Origins(),
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", chimiddleware.RequestIDHeader},
		ExposedHeaders: []string{chimiddleware.RequestIDHeader},
		MaxAge:         300,
	}))

	router.Route("/users", func(r chi.Router) {
		r.Post("/", h.CreateUser)
		r.Get("/{id}", h.GetUser)
		r.Get("/{id}/balance", h.UserBalance)
	})
	router.Route("/groups", func(r chi.Router) {
		r.Post("/", h.CreateGroup)
		r.Get("/", h.ListGroups)
		r.Get("/{id}", h.GetGroup)
		r.Post("/{id}/members", h.AddMember)
		r.Delete("/{id}/members/{userID}", h.RemoveMember)
		r.Get("/{id}/debts", h.ListDebts)
		r.Get("/{id}/balances", h.GroupBalances)
		r.Get("/{id}/owed", h.OwedBetween)
	})
	router.Route("/expenses", func(r chi.Router) {
		r.Post("/", h.CreateExpense)
		r.Get("/", h.ListExpenses)
		r.Get("/{id}", h.GetExpense)
		r.Put("/{id}", h.EditExpense)
		r.Delete("/{id}", h.DeleteExpense)
		r.Post("/{id}/clear-split", h.ClearSplit)
	})
	router.Post("/debts/{id}/settle", h.SettleDebt)
	router.Get("/reports/categories", h.CategoryReport)
	router.Get("/ws/groups/{id}", h.WSGroup)

	router.Handle("/metrics", promhttp.Handler())
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router
}
