package server

import (
	"crypto/tls"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/negroni"
	"golang.org/x/crypto/acme/autocert"

	"github.com/serisow/parchemin/handlers"
	"github.com/serisow/parchemin/services/rag_service"
)

type Config struct {
	Domains      []string
	CertCacheDir string
	HTTPPort     string
	HTTPSPort    string
}

// Services bundles everything the HTTP surface needs.
type Services struct {
	Ingestor      *rag_service.Ingestor
	BatchIngestor *rag_service.BatchIngestor
	Retriever     *rag_service.Retriever
	Storage       rag_service.Storage
	MaxUploadSize int64
}

func SetupRoutes(svc Services, logger *slog.Logger, db *pgxpool.Pool) *mux.Router {
	r := mux.NewRouter()

	healthHandler := handlers.NewHealthHandler(db, logger)
	r.HandleFunc("/health", healthHandler.Health).Methods("GET")
	r.HandleFunc("/ready", healthHandler.Ready).Methods("GET")

	ingestHandler := handlers.NewIngestHandler(svc.Ingestor, svc.MaxUploadSize, logger)
	r.Handle("/api/v1/rag/ingest", ingestHandler).Methods("POST")

	batchHandler := handlers.NewBatchIngestHandler(svc.BatchIngestor, svc.MaxUploadSize, logger)
	r.Handle("/api/v1/rag/ingest/batch", batchHandler).Methods("POST")

	queryHandler := handlers.NewQueryHandler(svc.Retriever, logger)
	r.Handle("/api/v1/rag/query", queryHandler).Methods("POST")

	documentsHandler := handlers.NewDocumentsHandler(svc.Storage, logger)
	r.HandleFunc("/api/v1/rag/documents", documentsHandler.List).Methods("GET")
	r.HandleFunc("/api/v1/rag/documents/{id}", documentsHandler.Delete).Methods("DELETE")

	return r
}

// ServeProduction runs the server behind autocert-managed TLS.
func ServeProduction(n *negroni.Negroni, cfg Config) {
	autocertManager := autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(cfg.Domains...),
		Cache:      autocert.DirCache(cfg.CertCacheDir),
	}

	// Port 80 serves ACME "http-01" challenges and redirects everything else
	// to HTTPS.
	go func() {
		srv := &http.Server{
			Addr:         ":" + cfg.HTTPPort,
			Handler:      autocertManager.HTTPHandler(nil),
			IdleTimeout:  time.Minute,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		}

		err := srv.ListenAndServe()
		log.Fatal(err)
	}()

	tlsConfig := &tls.Config{
		GetCertificate:           autocertManager.GetCertificate,
		PreferServerCipherSuites: true,
		CurvePreferences:         []tls.CurveID{tls.X25519, tls.CurveP256},
	}

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPSPort,
		Handler:      n,
		TLSConfig:    tlsConfig,
		IdleTimeout:  time.Minute,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	// Key and cert are provided by autocert.
	err := srv.ListenAndServeTLS("", "")
	log.Fatal(err)
}

// ServeDevelopment runs a plain HTTP server.
func ServeDevelopment(s *http.Server) {
	log.Fatal(s.ListenAndServe())
}
