package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"catalog-crawler/internal/app"
	"catalog-crawler/internal/config"
	"catalog-crawler/internal/types"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// CrawlRequest is the body of POST /crawl
type CrawlRequest struct {
	Categories []CategoryRequest `json:"categories"`
}

// CategoryRequest names one category to crawl
type CategoryRequest struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// APIResponse represents the response from the API
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Server holds the API server state
type Server struct {
	logger *logrus.Logger
	app    *app.App
	router *mux.Router
}

// NewServer creates a new API server around a
func NewServer(a *app.App, logger *logrus.Logger) *Server {
	s := &Server{logger: logger, app: a, router: mux.NewRouter()}

	s.router.Use(s.cors)
	s.router.HandleFunc("/crawl", s.handleCrawl).Methods(http.MethodPost, http.MethodOptions)
	s.router.HandleFunc("/discover", s.handleDiscover).Methods(http.MethodPost, http.MethodOptions)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.HandlerFor(a.Metrics.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return s
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleCrawl crawls the requested categories and returns the run summary
func (s *Server) handleCrawl(w http.ResponseWriter, r *http.Request) {
	var req CrawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Categories) == 0 {
		s.sendError(w, "No categories provided", http.StatusBadRequest)
		return
	}

	nodes := make([]types.CategoryNode, 0, len(req.Categories))
	for _, c := range req.Categories {
		name, url := strings.TrimSpace(c.Name), strings.TrimSpace(c.URL)
		if name == "" || url == "" {
			s.sendError(w, "Every category needs a name and a url", http.StatusBadRequest)
			return
		}
		nodes = append(nodes, types.CategoryNode{Name: name, URL: url})
	}

	s.logger.Infof("API request received for %d categories", len(nodes))

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Hour)
	defer cancel()

	summary := s.app.Engine.Run(ctx, nodes)
	s.send(w, APIResponse{Success: true, Data: summary}, http.StatusOK)
}

// handleDiscover refreshes the category taxonomy
func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()

	nodes, err := s.app.Engine.Discover(ctx)
	if err != nil {
		s.logger.Errorf("Category discovery failed: %v", err)
		s.sendError(w, err.Error(), http.StatusBadGateway)
		return
	}
	s.send(w, APIResponse{Success: true, Data: nodes}, http.StatusOK)
}

// handleHealth handles the health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.send(w, map[string]string{"status": "healthy"}, http.StatusOK)
}

func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	s.send(w, APIResponse{Success: false, Error: message}, statusCode)
}

func (s *Server) send(w http.ResponseWriter, body interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Errorf("Failed to encode response: %v", err)
	}
}

// Start starts the API server
func (s *Server) Start(port string) error {
	s.logger.Infof("Starting API server on port %s", port)
	s.logger.Info("Available endpoints:")
	s.logger.Info("  POST /crawl    - Crawl categories")
	s.logger.Info("  POST /discover - Rediscover the category taxonomy")
	s.logger.Info("  GET  /health   - Health check")
	s.logger.Info("  GET  /metrics  - Prometheus metrics")

	return http.ListenAndServe(":"+port, s.router)
}

func main() {
	// Load .env file if present
	_ = godotenv.Load()

	logger := app.NewLogger(false)

	serverPort := "8080"
	if envPort := os.Getenv("API_PORT"); envPort != "" {
		serverPort = envPort
	}

	file := config.Default()
	if path := os.Getenv("CRAWLER_CONFIG"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			logger.Fatalf("Failed to load configuration: %v", err)
		}
		file = loaded
	}

	a, err := app.New(context.Background(), file, logger)
	if err != nil {
		logger.Fatalf("Failed to start: %v", err)
	}
	defer a.Close(context.Background())

	server := NewServer(a, logger)
	if err := server.Start(serverPort); err != nil {
		logger.Fatal(fmt.Errorf("server stopped: %w", err))
	}
}
