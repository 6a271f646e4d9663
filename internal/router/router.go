package router

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/plainclause/contract-analyzer-api/internal/config"
	"github.com/plainclause/contract-analyzer-api/internal/handlers"
	"github.com/plainclause/contract-analyzer-api/internal/middleware"
	"github.com/plainclause/contract-analyzer-api/internal/services"
	"github.com/plainclause/contract-analyzer-api/internal/utils"
	"github.com/plainclause/contract-analyzer-api/web"
)

func NewRouter(contractService services.ContractService, cfg *config.Config, logger *utils.Logger) http.Handler {
	r := mux.NewRouter()

	// Middlewares
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.CORSAllowOrigins))
	r.Use(middleware.Recovery(logger))

	contractHandler := handlers.NewContractHandler(contractService, logger, cfg.MaxFileSize)

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	// Contract analysis. OPTIONS is registered so CORS preflights reach the
	// middleware chain instead of a 405.
	r.HandleFunc("/analyze-contract/", contractHandler.AnalyzeContract).Methods(http.MethodPost, http.MethodOptions)

	// Embedded upload widget
	r.PathPrefix("/").Handler(web.Handler()).Methods(http.MethodGet)

	return r
}
