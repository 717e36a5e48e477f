package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rtm-python/est/internal/app"
	"github.com/rtm-python/est/internal/domain"
	"github.com/rtm-python/est/internal/rating"
	"go.uber.org/zap"
)

const maxPageLimit = 100

// APIHandler serves the JSON endpoints around play: catalog, names, history,
// identity binding and ratings.
type APIHandler struct {
	service *app.TestingService
	log     *zap.Logger
	now     func() time.Time
}

func NewAPIHandler(service *app.TestingService, log *zap.Logger) *APIHandler {
	return &APIHandler{service: service, log: log, now: time.Now}
}

func (h *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/extensions", h.listExtensions)
	mux.HandleFunc("GET /api/tests", h.listTests)
	mux.HandleFunc("POST /api/tests", h.createTest)
	mux.HandleFunc("GET /api/tests/{id}", h.getTest)
	mux.HandleFunc("PUT /api/tests/{id}", h.updateTest)
	mux.HandleFunc("DELETE /api/tests/{id}", h.deleteTest)
	mux.HandleFunc("GET /api/names", h.listNames)
	mux.HandleFunc("POST /api/names", h.createName)
	mux.HandleFunc("GET /api/sessions", h.listSessions)
	mux.HandleFunc("GET /api/sessions/{id}/result", h.result)
	mux.HandleFunc("POST /api/bind", h.bind)
	mux.HandleFunc("GET /api/rating/top", h.topCrammers)
	mux.HandleFunc("GET /api/rating/chart", h.chartSeries)
	mux.HandleFunc("GET /rating/chart", h.chartPage)
}

func (h *APIHandler) listExtensions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Extensions())
}

func (h *APIHandler) listTests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tests, err := h.service.ListTests(r.Context(), domain.TestFilter{
		Name:      q.Get("name"),
		Extension: q.Get("extension"),
		OwnerID:   q.Get("ownerId"),
	}, pageFrom(r))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, tests)
}

func (h *APIHandler) getTest(w http.ResponseWriter, r *http.Request) {
	test, err := h.service.GetTest(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, test)
}

func (h *APIHandler) createTest(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var test domain.Test
	if err := json.NewDecoder(r.Body).Decode(&test); err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload{Message: "invalid test payload"})
		return
	}
	test.OwnerID = userID
	created, err := h.service.CreateTest(r.Context(), test)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *APIHandler) updateTest(w http.ResponseWriter, r *http.Request) {
	if !h.requireTestOwner(w, r) {
		return
	}
	var test domain.Test
	if err := json.NewDecoder(r.Body).Decode(&test); err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload{Message: "invalid test payload"})
		return
	}
	test.ID = r.PathValue("id")
	updated, err := h.service.UpdateTest(r.Context(), test)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *APIHandler) deleteTest(w http.ResponseWriter, r *http.Request) {
	if !h.requireTestOwner(w, r) {
		return
	}
	if err := h.service.DeleteTest(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) listNames(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	names, err := h.service.ListNames(r.Context(), userID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, names)
}

func (h *APIHandler) createName(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var body struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload{Message: "invalid name payload"})
		return
	}
	name, err := h.service.CreateName(r.Context(), userID, body.Value)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, name)
}

// listSessions lists the caller's own history.
func (h *APIHandler) listSessions(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	if actor.Identity.IsZero() {
		writeJSON(w, http.StatusOK, []sessionView{})
		return
	}
	q := r.URL.Query()
	sessions, err := h.service.ListSessions(r.Context(), domain.SessionFilter{
		TestID:        q.Get("testId"),
		Owner:         actor.Identity,
		NameID:        q.Get("nameId"),
		HideCompleted: q.Get("hideCompleted") == "true",
	}, pageFrom(r))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	views := make([]sessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, newSessionView(s))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *APIHandler) result(w http.ResponseWriter, r *http.Request) {
	session, tasks, err := h.service.Result(r.Context(), r.PathValue("id"), actorFrom(r))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, newResultView(session, tasks))
}

// bind moves the visitor's anonymous history to the signed-in user and
// drops the token cookie.
func (h *APIHandler) bind(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	bound := 0
	if cookie, err := r.Cookie(TokenCookie); err == nil {
		var err error
		bound, err = h.service.BindIdentity(r.Context(), userID, cookie.Value)
		if err != nil {
			writeError(w, h.log, err)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: TokenCookie, Path: "/", MaxAge: -1})
	}
	writeJSON(w, http.StatusOK, map[string]int{"bound": bound})
}

type topResponse struct {
	Period string           `json:"period"`
	Since  string           `json:"since,omitempty"`
	Until  string           `json:"until"`
	Rows   []domain.Crammer `json:"rows"`
}

func (h *APIHandler) topCrammers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	period := q.Get("period")
	if period == "" {
		period = rating.Periods[0]
	}
	window, err := rating.PeriodWindow(period, h.now(), locationFrom(r))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload{Message: err.Error()})
		return
	}
	page := pageFrom(r)
	if page.Limit == 0 {
		page.Limit = 10
	}
	rows, err := h.service.TopCrammers(r.Context(), rating.Query{
		Window:    window,
		Extension: q.Get("extension"),
		Limit:     page.Limit,
		Offset:    page.Offset,
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	resp := topResponse{Period: period, Until: window.Until.Format(rating.DayLayout), Rows: rows}
	if !window.Since.IsZero() {
		resp.Since = window.Since.Format(rating.DayLayout)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *APIHandler) chartSeries(w http.ResponseWriter, r *http.Request) {
	points, _, err := h.chartPoints(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, points)
}

// chartPoints reads the trailing chart window. mine=true narrows it to the caller.
func (h *APIHandler) chartPoints(r *http.Request) ([]domain.ChartPoint, rating.Window, error) {
	q := r.URL.Query()
	window := rating.ChartWindow(h.now(), locationFrom(r))
	query := rating.ChartQuery{Window: window, Extension: q.Get("extension")}
	if q.Get("mine") == "true" {
		query.Owner = actorFrom(r).Identity
		if query.Owner.IsZero() {
			return []domain.ChartPoint{}, window, nil
		}
	}
	points, err := h.service.ChartSeries(r.Context(), query)
	return points, window, err
}

func (h *APIHandler) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := actorFrom(r).Identity.UserID()
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorPayload{Message: "sign in required"})
		return "", false
	}
	return userID, true
}

func (h *APIHandler) requireTestOwner(w http.ResponseWriter, r *http.Request) bool {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return false
	}
	test, err := h.service.GetTest(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.log, err)
		return false
	}
	if test.OwnerID != "" && test.OwnerID != userID {
		writeJSON(w, http.StatusForbidden, errorPayload{Message: "test belongs to another user"})
		return false
	}
	return true
}

func pageFrom(r *http.Request) domain.Page {
	q := r.URL.Query()
	offset, _ := strconv.Atoi(q.Get("offset"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return domain.Page{Offset: offset, Limit: limit}
}
