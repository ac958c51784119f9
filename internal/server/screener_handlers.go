package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/aristath/screener/internal/catalog"
	"github.com/aristath/screener/internal/domain"
	"github.com/aristath/screener/internal/screener"
)

// maxBodyBytes caps request bodies
const maxBodyBytes = 64 << 10

// QueryRequest is the body of /query and /parse
type QueryRequest struct {
	Query string `json:"query" validate:"required,max=500"`
}

// CompileRequest is the body of /compile
type CompileRequest struct {
	FilterSet *domain.FilterSet `json:"filterSet" validate:"required"`
}

// FieldInfo describes one queryable field
type FieldInfo struct {
	Name       string            `json:"name"`
	Type       catalog.ValueType `json:"type"`
	ShortNames []string          `json:"shortNames,omitempty"`
	Live       bool              `json:"live"`
}

// FieldsResponse is returned by GET /api/screener/fields
type FieldsResponse struct {
	Fields    []FieldInfo       `json:"fields"`
	Operators []domain.Operator `json:"operators"`
	Sectors   []string          `json:"sectors"`
	Dialect   string            `json:"dialect"`
}

// ScreenerHandlers serves the screener API
type ScreenerHandlers struct {
	service  *screener.Service
	catalog  *catalog.Catalog
	validate *validator.Validate
	log      zerolog.Logger
}

// NewScreenerHandlers creates the screener handlers
func NewScreenerHandlers(service *screener.Service, cat *catalog.Catalog, log zerolog.Logger) *ScreenerHandlers {
	return &ScreenerHandlers{
		service:  service,
		catalog:  cat,
		validate: validator.New(),
		log:      log.With().Str("component", "screener_handlers").Logger(),
	}
}

// RegisterRoutes registers the screener routes
func (h *ScreenerHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/screener", func(r chi.Router) {
		r.Post("/query", h.HandleQuery)
		r.Post("/parse", h.HandleParse)
		r.Post("/compile", h.HandleCompile)
		r.Get("/fields", h.HandleFields)
	})
}

// HandleQuery handles POST /api/screener/query
func (h *ScreenerHandlers) HandleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.service.Run(r.Context(), req.Query)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// HandleParse handles POST /api/screener/parse
func (h *ScreenerHandlers) HandleParse(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !h.decode(w, r, &req) {
		return
	}

	parsed, err := h.service.Parse(r.Context(), req.Query)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"filterSet":      parsed.FilterSet,
		"droppedClauses": parsed.Dropped,
	})
}

// HandleCompile handles POST /api/screener/compile
func (h *ScreenerHandlers) HandleCompile(w http.ResponseWriter, r *http.Request) {
	var req CompileRequest
	if !h.decode(w, r, &req) {
		return
	}

	compiled, err := h.service.Compile(*req.FilterSet)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, compiled)
}

// HandleFields handles GET /api/screener/fields
func (h *ScreenerHandlers) HandleFields(w http.ResponseWriter, r *http.Request) {
	fields := h.catalog.Fields()
	resp := FieldsResponse{
		Fields:    make([]FieldInfo, 0, len(fields)),
		Operators: h.catalog.Operators(),
		Dialect:   string(h.service.Dialect()),
	}
	for _, f := range fields {
		resp.Fields = append(resp.Fields, FieldInfo{
			Name:       f.Name,
			Type:       f.Type,
			ShortNames: f.ShortNames,
			Live:       f.ProviderKey != "",
		})
	}
	for _, s := range h.catalog.Sectors() {
		resp.Sectors = append(resp.Sectors, s.Name)
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// decode reads and validates a JSON body, writing a 400 on failure
func (h *ScreenerHandlers) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		details := []string{}
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				details = append(details, fe.Field()+" failed "+fe.Tag())
			}
		}
		h.writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":   "invalid request",
			"details": details,
		})
		return false
	}
	return true
}

// writeServiceError maps pipeline errors to status codes. Only parse errors
// carry detail back to the caller.
func (h *ScreenerHandlers) writeServiceError(w http.ResponseWriter, err error) {
	message := screener.UserMessage(err)

	var parseErr *domain.ParseError
	switch {
	case errors.As(err, &parseErr):
		h.writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":           message,
			"supportedFields": parseErr.SupportedFields,
		})
	case domain.IsCompilationError(err):
		h.log.Warn().Err(err).Msg("Filter set rejected")
		h.writeError(w, http.StatusUnprocessableEntity, message)
	case message == screener.MessageStorage:
		h.log.Error().Err(err).Msg("Data store unavailable")
		h.writeError(w, http.StatusServiceUnavailable, message)
	default:
		h.log.Error().Err(err).Msg("Unexpected screener failure")
		h.writeError(w, http.StatusInternalServerError, message)
	}
}

func (h *ScreenerHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *ScreenerHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
