package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"statement-reconciliation-service/internal/models"
	"statement-reconciliation-service/internal/reconciler"
	"statement-reconciliation-service/pkg/errors"
)

// Headers set by the authentication gateway in front of the service.
const (
	CompanyIDHeader = "X-Company-ID"
	UserIDHeader    = "X-User-ID"
)

const maxBodyBytes = 1 << 20

func parseID(field, raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.ValidationError(errors.CodeInvalidID, field, raw, nil)
	}
	return id, nil
}

func pathID(r *http.Request, name string) (int64, error) {
	return parseID(name, mux.Vars(r)[name])
}

// callerFrom reads the tenant and user resolved by the gateway. The company
// is required; the user is optional.
func callerFrom(r *http.Request) (reconciler.Caller, error) {
	raw := r.Header.Get(CompanyIDHeader)
	if strings.TrimSpace(raw) == "" {
		return reconciler.Caller{}, errors.ValidationError(errors.CodeMissingField, CompanyIDHeader, nil, nil).
			WithSuggestion("requests must pass through the authentication gateway")
	}
	companyID, err := parseID(CompanyIDHeader, raw)
	if err != nil {
		return reconciler.Caller{}, err
	}

	caller := reconciler.Caller{CompanyID: companyID}
	if rawUser := r.Header.Get(UserIDHeader); strings.TrimSpace(rawUser) != "" {
		if caller.UserID, err = parseID(UserIDHeader, rawUser); err != nil {
			return reconciler.Caller{}, err
		}
	}
	return caller, nil
}

// decodeBody decodes a JSON body into v, rejecting unknown fields.
func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.ValidationError(errors.CodeInvalidBody, "body", err.Error(), err)
	}
	return nil
}

func queryDate(q url.Values, name string) (*models.Date, error) {
	raw := q.Get(name)
	if raw == "" {
		return nil, nil
	}
	d, err := models.ParseDate(raw)
	if err != nil {
		return nil, errors.ValidationError(errors.CodeInvalidDate, name, raw, err)
	}
	return &d, nil
}

func queryAmount(q url.Values, name string) (*decimal.Decimal, error) {
	raw := q.Get(name)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return nil, errors.ValidationError(errors.CodeInvalidAmount, name, raw, err)
	}
	return &d, nil
}

func queryTipo(q url.Values) (*models.MovementType, error) {
	raw := q.Get("tipo")
	if raw == "" {
		return nil, nil
	}
	t, err := models.ParseMovementType(raw)
	if err != nil {
		return nil, errors.ValidationError(errors.CodeOutOfRange, "tipo", raw, err).
			WithSuggestion("tipo must be INGRESO or EGRESO")
	}
	return &t, nil
}

// parseUnmatchedQuery reads fechaDesde, fechaHasta, tipo, montoMin and montoMax.
func parseUnmatchedQuery(q url.Values) (reconciler.UnmatchedQuery, error) {
	var out reconciler.UnmatchedQuery
	var err error

	if out.FechaDesde, err = queryDate(q, "fechaDesde"); err != nil {
		return out, err
	}
	if out.FechaHasta, err = queryDate(q, "fechaHasta"); err != nil {
		return out, err
	}
	if out.Tipo, err = queryTipo(q); err != nil {
		return out, err
	}
	if out.MontoMin, err = queryAmount(q, "montoMin"); err != nil {
		return out, err
	}
	if out.MontoMax, err = queryAmount(q, "montoMax"); err != nil {
		return out, err
	}
	return out, nil
}

// patchRequest is the body of PATCH /statements/{id}.
type patchRequest struct {
	Action          string           `json:"action"`
	ToleranciaMonto *decimal.Decimal `json:"toleranciaMonto,omitempty"`
	ToleranciaDias  *int             `json:"toleranciaDias,omitempty"`
}
