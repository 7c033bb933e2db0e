package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/BTreeMap/EnrollBot/internal/models"
)

// Server timeouts.
const (
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultShutdownTimeout   = 15 * time.Second
)

// StatsProvider exposes the conversation counters.
type StatsProvider interface {
	Snapshot() models.MetricsCounters
	Reset(ctx context.Context) error
}

// ConversationLister lists active conversations.
type ConversationLister interface {
	List(ctx context.Context) ([]models.ConversationState, error)
}

// ReceiptLister returns stored delivery receipts.
type ReceiptLister interface {
	GetReceipts() ([]models.Receipt, error)
}

// Server is EnrollBot's HTTP surface: health, stats, conversations, receipts
// and the Twilio webhook.
type Server struct {
	transport string
	stats     StatsProvider
	states    ConversationLister
	receipts  ReceiptLister
	webhook   http.HandlerFunc

	httpServer *http.Server
}

// NewServer creates a Server. receipts and webhook may be nil.
func NewServer(transport string, stats StatsProvider, states ConversationLister, receipts ReceiptLister, webhook http.HandlerFunc) *Server {
	return &Server{
		transport: transport,
		stats:     stats,
		states:    states,
		receipts:  receipts,
		webhook:   webhook,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/stats", s.statsHandler)
	mux.HandleFunc("/stats/reset", s.statsResetHandler)
	mux.HandleFunc("/conversations", s.conversationsHandler)
	mux.HandleFunc("/receipts", s.receiptsHandler)
	mux.HandleFunc("/webhook/twilio", s.webhookHandler)
	return mux
}

// Start listens on addr and serves in the background. Listen errors are
// returned synchronously.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.httpServer = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: DefaultReadHeaderTimeout}
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server stopped unexpectedly", "error", err)
		}
	}()
	slog.Info("EnrollBot API listening", "addr", ln.Addr().String())
	return nil
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
