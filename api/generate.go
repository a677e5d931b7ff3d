package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/openclaw/qrbatch/bundle"
	"github.com/openclaw/qrbatch/encoder"
	"github.com/openclaw/qrbatch/service"
	"github.com/openclaw/qrbatch/store"
)

// generateRequest is the body the form posts. "strings" is accepted as a
// shorter alias of "stringsArray".
type generateRequest struct {
	StringsArray []string        `json:"stringsArray"`
	Strings      []string        `json:"strings"`
	Opts         json.RawMessage `json:"opts"`
}

type resultItem struct {
	Index    int    `json:"index"`
	Payload  string `json:"payload"`
	OK       bool   `json:"ok"`
	Filename string `json:"filename,omitempty"`
	Error    string `json:"error,omitempty"`
	Kind     string `json:"kind,omitempty"`
}

type generateResponse struct {
	BatchID     string       `json:"batch_id"`
	DownloadURL string       `json:"downloadUrl,omitempty"`
	Total       int          `json:"total"`
	Failed      int          `json:"failed"`
	Results     []resultItem `json:"results"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	payloads := req.StringsArray
	if payloads == nil {
		payloads = req.Strings
	}
	if len(payloads) == 0 {
		writeError(w, http.StatusBadRequest, "invalid input: provide an array of strings")
		return
	}

	opts, err := s.decodeOptions(req.Opts)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	batch, err := s.Generator.Generate(r.Context(), payloads, opts)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	resp := generateResponse{
		BatchID: batch.ID,
		Total:   batch.Total,
		Failed:  batch.Failed,
		Results: make([]resultItem, len(batch.Items)),
	}
	if batch.ArchivePath != "" {
		resp.DownloadURL = service.DownloadPath(batch.ID)
	}
	for i, it := range batch.Items {
		resp.Results[i] = resultItem{
			Index:    it.Position,
			Payload:  it.Payload,
			OK:       it.Status == store.StatusOK,
			Filename: it.Filename,
			Error:    it.Error,
			Kind:     it.Kind,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

type encodeRequest struct {
	Text string          `json:"text"`
	Opts json.RawMessage `json:"opts"`
}

// handleEncode returns a single image, used by the form for previews.
func (s *Server) handleEncode(w http.ResponseWriter, r *http.Request) {
	var req encodeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	opts, err := s.decodeOptions(req.Opts)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	a, err := encoder.Encode(req.Text, opts)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	w.Header().Set("Content-Type", a.ContentType())
	w.Header().Set("X-QR-Version", strconv.Itoa(a.Version))
	w.Header().Set("X-QR-Mask", strconv.Itoa(a.Mask))
	w.WriteHeader(http.StatusOK)
	w.Write(a.Data)
}

func (s *Server) handleListBatches(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	batches, err := s.Generator.Batches(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if batches == nil {
		batches = []store.Batch{}
	}
	writeJSON(w, http.StatusOK, batches)
}

func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	batch, err := s.Generator.Batch(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, batch)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	f, err := s.Generator.Archives().Open(id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+bundle.ArchiveName+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f); err != nil {
		s.Log.Warn("download interrupted", "batch_id", id, "error", err)
	}
}

// decodeOptions overlays the request's options on the configured defaults.
func (s *Server) decodeOptions(raw json.RawMessage) (encoder.Options, error) {
	opts := s.Defaults
	if len(raw) == 0 || string(raw) == "null" {
		return opts, nil
	}
	if err := json.Unmarshal(raw, &opts); err != nil {
		var oe *encoder.OptionError
		if errors.As(err, &oe) {
			return opts, oe
		}
		return opts, errors.New("invalid opts: " + err.Error())
	}
	return opts, nil
}

// statusFor maps error classes onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, encoder.ErrInvalidPayload),
		errors.Is(err, encoder.ErrInvalidOption),
		errors.Is(err, service.ErrNoPayloads),
		errors.Is(err, bundle.ErrInvalidID):
		return http.StatusBadRequest
	case errors.Is(err, encoder.ErrCapacityExceeded),
		errors.Is(err, service.ErrTooManyPayloads):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, bundle.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return defaultVal
	}
	return n
}
