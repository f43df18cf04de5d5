package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/vincentbai/telemetry-converter/internal/models"
	"github.com/vincentbai/telemetry-converter/internal/value"
)

const (
	contentTypeJSON    = "application/json"
	contentTypeMsgpack = "application/msgpack"

	defaultMaxBodyBytes    = 10 << 20
	defaultShutdownTimeout = 30 * time.Second
)

// Processor converts and delivers one batch of raw records.
type Processor interface {
	Process(ctx context.Context, records []value.Value) (models.Result, error)
}

type Server struct {
	stage           Processor
	address         string
	server          *http.Server
	maxBodyBytes    int64
	shutdownTimeout time.Duration
	clock           func() time.Time
}

type Option func(*Server)

func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

func NewServer(stage Processor, address string, opts ...Option) *Server {
	s := &Server{
		stage:           stage,
		address:         address,
		maxBodyBytes:    defaultMaxBodyBytes,
		shutdownTimeout: defaultShutdownTimeout,
		clock:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte("ok"))
}

func (s *Server) handleTelemetry(w http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, request.Body, s.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}
	if !gjson.ValidBytes(body) {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}
	events := gjson.GetBytes(body, "events")
	if !events.IsArray() {
		http.Error(w, "Missing events array", http.StatusBadRequest)
		return
	}
	batch, err := s.decodeBatch(events)
	if err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}
	if len(batch.Events) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	result, err := s.stage.Process(request.Context(), batch.Events)
	if err != nil {
		log.Printf("Pipeline error: %v", err)
		http.Error(w, "Failed to process events", http.StatusInternalServerError)
		return
	}
	log.Printf("Processed batch of %d records (%s): %d converted, %d indexed, %d skipped, %d failed",
		result.Received, humanize.Bytes(uint64(len(body))),
		result.Converted, result.Indexed, result.Skipped, result.Failed)

	if err := writeResult(w, request, result); err != nil {
		log.Printf("Write response: %v", err)
	}
}

// decodeBatch normalizes the events array and decodes it into a batch. Object
// records without a syncts field are stamped with the receive time in epoch
// milliseconds.
func (s *Server) decodeBatch(events gjson.Result) (models.Batch, error) {
	syncts := s.clock().UTC().UnixMilli()
	var buf bytes.Buffer
	buf.WriteString(`{"events":[`)
	var stampErr error
	first := true
	events.ForEach(func(_, element gjson.Result) bool {
		raw := []byte(element.Raw)
		if element.IsObject() && !element.Get("syncts").Exists() {
			stamped, err := sjson.SetBytes(raw, "syncts", syncts)
			if err != nil {
				stampErr = fmt.Errorf("stamp syncts: %w", err)
				return false
			}
			raw = stamped
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		buf.Write(raw)
		return true
	})
	if stampErr != nil {
		return models.Batch{}, stampErr
	}
	buf.WriteString(`]}`)

	var batch models.Batch
	if err := json.Unmarshal(buf.Bytes(), &batch); err != nil {
		return models.Batch{}, err
	}
	return batch, nil
}

func writeResult(w http.ResponseWriter, request *http.Request, result models.Result) error {
	var buf bytes.Buffer
	contentType := contentTypeJSON
	if strings.Contains(request.Header.Get("Accept"), contentTypeMsgpack) {
		contentType = contentTypeMsgpack
		enc := msgpack.NewEncoder(&buf)
		enc.SetCustomStructTag("json")
		if err := enc.Encode(result); err != nil {
			http.Error(w, "Failed to encode response", http.StatusInternalServerError)
			return err
		}
	} else if err := json.NewEncoder(&buf).Encode(result); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return err
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, err := w.Write(buf.Bytes())
	return err
}

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/v1/telemetry", s.handleTelemetry)
	return mux
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	mux := s.setupRoutes()
	s.server = &http.Server{
		Addr:         s.address,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	serveErrors := make(chan error, 1)
	go func() {
		log.Printf("Telemetry converter listening on %s", s.address)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErrors <- err
		}
	}()

	select {
	case err := <-serveErrors:
		return fmt.Errorf("server failed to start: %w", err)
	case <-ctx.Done():
	}
	log.Println("Shutting down server...")

	shutdownContext, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownContext); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("Server exited")
	return nil
}
