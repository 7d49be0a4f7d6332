// Package api exposes the reconciliation core over JSON/HTTP.
//
// Routes:
//
//	GET    /healthz
//	GET    /statements/{id}                          statement with items
//	GET    /statements/{id}?action=summary[&format=]  summary, optionally as csv/xlsx/console
//	GET    /statements/{id}?action=unmatched-movements&fechaDesde&fechaHasta&tipo&montoMin&montoMax
//	PATCH  /statements/{id}                          {action: close|reopen|approve|updateTolerances}
//	DELETE /statements/{id}
//	POST   /statements/{id}/match
//	GET    /statements/{id}/items/{itemId}/candidates
//	PUT    /statements/{id}/items/{itemId}/link      {movementId, release?}
//	DELETE /statements/{id}/items/{itemId}/link
//	GET    /bank-accounts/{accountId}/unmatched-movements
//
// The tenant comes from the X-Company-ID header and the acting user from
// X-User-ID; both are set by the authentication gateway.
package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"statement-reconciliation-service/internal/models"
	"statement-reconciliation-service/internal/reconciler"
	"statement-reconciliation-service/internal/reporter"
	"statement-reconciliation-service/internal/store"
	"statement-reconciliation-service/pkg/errors"
	"statement-reconciliation-service/pkg/logger"
)

// Server holds the HTTP handlers.
type Server struct {
	service Service
	logger  logger.Logger
}

// NewServer creates the HTTP layer over service.
func NewServer(service Service, log logger.Logger) *Server {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Server{
		service: service,
		logger:  log.WithComponent("api"),
	}
}

// Router returns the routed handler with middleware applied.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(requestID, s.accessLog, s.recovery)

	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)

	st := r.PathPrefix("/statements/{id}").Subrouter()
	st.HandleFunc("", s.getStatement).Methods(http.MethodGet)
	st.HandleFunc("", s.patchStatement).Methods(http.MethodPatch)
	st.HandleFunc("", s.deleteStatement).Methods(http.MethodDelete)
	st.HandleFunc("/match", s.autoMatch).Methods(http.MethodPost)
	st.HandleFunc("/items/{itemId}/candidates", s.candidates).Methods(http.MethodGet)
	st.HandleFunc("/items/{itemId}/link", s.forceLink).Methods(http.MethodPut)
	st.HandleFunc("/items/{itemId}/link", s.unlink).Methods(http.MethodDelete)

	r.HandleFunc("/bank-accounts/{accountId}/unmatched-movements", s.unmatchedByAccount).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		s.fail(w, req, errors.New(errors.CategoryNotFound, errors.CodeUnknownAction, "no such route: "+req.URL.Path))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, envelope{Success: false, Error: &errorBody{
			Category: errors.CategoryValidation,
			Code:     errors.CodeUnknownAction,
			Message:  fmt.Sprintf("method %s not allowed on %s", req.Method, req.URL.Path),
		}})
	})
	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Ping(r.Context()); err != nil {
		s.fail(w, r, errors.WrapIfNeeded(err, errors.CategoryStorage, errors.CodeConnectionFailed, "store unreachable"))
		return
	}
	ok(w, map[string]string{"status": "ok"})
}

// statementRequest parses the caller and the statement id shared by every
// statement route.
func statementRequest(r *http.Request) (reconciler.Caller, int64, error) {
	caller, err := callerFrom(r)
	if err != nil {
		return caller, 0, err
	}
	id, err := pathID(r, "id")
	return caller, id, err
}

func (s *Server) getStatement(w http.ResponseWriter, r *http.Request) {
	caller, id, err := statementRequest(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	switch action := r.URL.Query().Get("action"); action {
	case "":
		view, err := s.service.Get(r.Context(), caller, id)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		ok(w, view)
	case "summary":
		s.summary(w, r, caller, id)
	case "unmatched-movements":
		q, err := parseUnmatchedQuery(r.URL.Query())
		if err != nil {
			s.fail(w, r, err)
			return
		}
		movements, err := s.service.Unmatched(r.Context(), caller, id, q)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		ok(w, movements)
	default:
		s.fail(w, r, errors.ValidationError(errors.CodeUnknownAction, "action", action, nil).
			WithSuggestion("use action=summary or action=unmatched-movements"))
	}
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request, caller reconciler.Caller, id int64) {
	rawFormat := r.URL.Query().Get("format")
	format := reporter.FormatJSON
	if rawFormat != "" {
		var err error
		if format, err = reporter.ParseFormat(rawFormat); err != nil {
			s.fail(w, r, err)
			return
		}
	}

	summary, err := s.service.Summary(r.Context(), caller, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if format == reporter.FormatJSON {
		ok(w, summary)
		return
	}

	config := reporter.DefaultReportConfig()
	config.Format = format
	config.MaxConsoleItems = 0
	generator, err := reporter.NewSafeReportGenerator(config, s.logger)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := generator.GenerateReportSafely(summary, &buf); err != nil {
		s.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=\"statement-%d-summary.%s\"", id, format.Extension()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *Server) patchStatement(w http.ResponseWriter, r *http.Request) {
	caller, id, err := statementRequest(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var req patchRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Action == "" {
		s.fail(w, r, errors.ValidationError(errors.CodeMissingField, "action", nil, nil))
		return
	}
	action, err := models.ParseAction(req.Action)
	if err != nil {
		s.fail(w, r, errors.ValidationError(errors.CodeUnknownAction, "action", req.Action, err))
		return
	}

	var stmt *models.BankStatement
	switch action {
	case models.ActionClose:
		stmt, err = s.service.Close(r.Context(), caller, id)
	case models.ActionReopen:
		stmt, err = s.service.Reopen(r.Context(), caller, id)
	case models.ActionApprove:
		stmt, err = s.service.Approve(r.Context(), caller, id)
	case models.ActionUpdateTolerances:
		stmt, err = s.service.UpdateTolerances(r.Context(), caller, id, reconciler.TolerancePatch{
			Amount: req.ToleranciaMonto,
			Days:   req.ToleranciaDias,
		})
	default:
		err = errors.ValidationError(errors.CodeUnknownAction, "action", req.Action, nil).
			WithSuggestion("PATCH accepts close, reopen, approve and updateTolerances")
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, stmt)
}

func (s *Server) deleteStatement(w http.ResponseWriter, r *http.Request) {
	caller, id, err := statementRequest(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.service.Delete(r.Context(), caller, id); err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, map[string]interface{}{"id": id, "deleted": true})
}

func (s *Server) autoMatch(w http.ResponseWriter, r *http.Request) {
	caller, id, err := statementRequest(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	result, err := s.service.AutoMatch(r.Context(), caller, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, result)
}

func itemRequest(r *http.Request) (reconciler.Caller, int64, int64, error) {
	caller, id, err := statementRequest(r)
	if err != nil {
		return caller, 0, 0, err
	}
	itemID, err := pathID(r, "itemId")
	return caller, id, itemID, err
}

func (s *Server) candidates(w http.ResponseWriter, r *http.Request) {
	caller, id, itemID, err := itemRequest(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	candidates, err := s.service.Candidates(r.Context(), caller, id, itemID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, candidates)
}

func (s *Server) forceLink(w http.ResponseWriter, r *http.Request) {
	caller, id, itemID, err := itemRequest(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req reconciler.LinkRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.MovementID == 0 {
		s.fail(w, r, errors.ValidationError(errors.CodeMissingField, "movementId", nil, nil))
		return
	}

	item, err := s.service.ForceLink(r.Context(), caller, id, itemID, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, item)
}

func (s *Server) unlink(w http.ResponseWriter, r *http.Request) {
	caller, id, itemID, err := itemRequest(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	item, err := s.service.Unlink(r.Context(), caller, id, itemID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, item)
}

func (s *Server) unmatchedByAccount(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	accountID, err := pathID(r, "accountId")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	q, err := parseUnmatchedQuery(r.URL.Query())
	if err != nil {
		s.fail(w, r, err)
		return
	}

	movements, err := s.service.UnmatchedByAccount(r.Context(), store.MovementFilter{
		CompanyID:     caller.CompanyID,
		BankAccountID: accountID,
		FechaDesde:    q.FechaDesde,
		FechaHasta:    q.FechaHasta,
		Tipo:          q.Tipo,
		MontoMin:      q.MontoMin,
		MontoMax:      q.MontoMax,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, movements)
}
