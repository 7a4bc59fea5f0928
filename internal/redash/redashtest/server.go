// Package redashtest provides an in-memory Redash server for tests.
package redashtest

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// Record is a JSON object as the server stores it.
type Record = map[string]any

// Call is one request the server received.
type Call struct {
	Method string
	Path   string
	Body   Record
}

// Server is a fake Redash API backed by maps.
type Server struct {
	*httptest.Server

	// APIKey, when set, must arrive as "Authorization: Key <APIKey>".
	APIKey string
	// PageSize is the server-side page size for query listings.
	PageSize int
	// PaginateDashboards switches the dashboard listing to the envelope form.
	PaginateDashboards bool
	// RejectPublish answers dashboard publish calls with an error payload
	// and a 200 status, leaving the dashboard a draft.
	RejectPublish bool
	// FailQueryNames answers saves of queries with these names with a 500.
	FailQueryNames map[string]bool
	// FailQueryFetches answers GET of these query ids with a 500.
	FailQueryFetches map[int]bool
	// FailDashboardFetches answers GET of dashboards with these names with
	// a 500. Listings still include them.
	FailDashboardFetches map[string]bool

	mu             sync.Mutex
	nextID         int
	queries        map[int]Record
	visualizations map[int]Record
	dashboards     map[int]Record
	widgets        map[int]Record
	users          map[string]Record
	calls          []Call
}

// New starts a server that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		PageSize:       2,
		FailQueryNames:       map[string]bool{},
		FailQueryFetches:     map[int]bool{},
		FailDashboardFetches: map[string]bool{},
		nextID:               100,
		queries:              map[int]Record{},
		visualizations:       map[int]Record{},
		dashboards:           map[int]Record{},
		widgets:              map[int]Record{},
		users:                map[string]Record{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/queries", s.listQueries)
	mux.HandleFunc("GET /api/queries/{id}", s.getQuery)
	mux.HandleFunc("POST /api/queries", s.saveQuery)
	mux.HandleFunc("POST /api/queries/{id}", s.saveQuery)
	mux.HandleFunc("DELETE /api/queries/{id}", s.archiveQuery)
	mux.HandleFunc("POST /api/visualizations", s.saveVisualization)
	mux.HandleFunc("POST /api/visualizations/{id}", s.saveVisualization)
	mux.HandleFunc("GET /api/dashboards", s.listDashboards)
	mux.HandleFunc("GET /api/dashboards/{key}", s.getDashboard)
	mux.HandleFunc("POST /api/dashboards", s.createDashboard)
	mux.HandleFunc("POST /api/dashboards/{id}", s.updateDashboard)
	mux.HandleFunc("POST /api/widgets", s.saveWidget)
	mux.HandleFunc("POST /api/widgets/{id}", s.saveWidget)
	mux.HandleFunc("POST /api/users", s.createUser)

	s.Server = httptest.NewServer(s.record(mux))
	t.Cleanup(s.Close)
	return s
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.APIKey != "" && r.Header.Get("Authorization") != "Key "+s.APIKey {
			writeJSON(w, http.StatusUnauthorized, Record{"message": "Couldn't find resource. Please login and try again."})
			return
		}
		var body Record
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&body)
		}
		s.mu.Lock()
		s.calls = append(s.calls, Call{Method: r.Method, Path: r.URL.Path, Body: body})
		s.mu.Unlock()
		r = r.WithContext(withBody(r.Context(), body))
		next.ServeHTTP(w, r)
	})
}

// SeedQuery stores a query as if it had been created earlier and returns
// its id. visualizations are stored as separate records.
func (s *Server) SeedQuery(q Record, visualizations ...Record) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	stored := maps.Clone(q)
	stored["id"] = id
	if _, ok := stored["options"]; !ok {
		stored["options"] = Record{}
	}
	stored["is_archived"] = false
	s.queries[id] = stored
	for _, v := range visualizations {
		vid := s.id()
		sv := maps.Clone(v)
		sv["id"] = vid
		sv["query_id"] = id
		s.visualizations[vid] = sv
	}
	return id
}

// SeedDashboard stores a published dashboard and returns its id.
func (s *Server) SeedDashboard(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addDashboard(name, false)
}

// SeedWidget places a visualization on a dashboard and returns the widget id.
func (s *Server) SeedWidget(dashboardID, visualizationID int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	s.widgets[id] = Record{
		"id":               id,
		"dashboard_id":     dashboardID,
		"visualization_id": visualizationID,
		"options":          Record{"position": Record{}},
	}
	return id
}

// Calls returns every request received so far.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.calls)
}

// CountCalls counts requests with the method whose path starts with prefix.
func (s *Server) CountCalls(method, prefix string) int {
	n := 0
	for _, c := range s.Calls() {
		if c.Method == method && strings.HasPrefix(c.Path, prefix) {
			n++
		}
	}
	return n
}

// ResetCalls forgets recorded requests.
func (s *Server) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

// Query returns a stored query record.
func (s *Server) Query(id int) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.queries[id]
	return maps.Clone(q), ok
}

// QueryIDs returns the ids of every stored query, archived ones included.
func (s *Server) QueryIDs() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.queries))
}

// Visualization returns a stored visualization record.
func (s *Server) Visualization(id int) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.visualizations[id]
	return maps.Clone(v), ok
}

// DashboardsNamed returns the stored dashboards with the given name.
func (s *Server) DashboardsNamed(name string) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Record
	for _, id := range slices.Sorted(maps.Keys(s.dashboards)) {
		if s.dashboards[id]["name"] == name {
			out = append(out, maps.Clone(s.dashboards[id]))
		}
	}
	return out
}

// Widgets returns the widgets on a dashboard, ordered by id.
func (s *Server) Widgets(dashboardID int) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.widgetsOf(dashboardID)
}

// Users returns the created users keyed by email.
func (s *Server) Users() map[string]Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.users)
}

func (s *Server) listQueries(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pageNum := atoiDefault(r.URL.Query().Get("page"), 1)
	size := atoiDefault(r.URL.Query().Get("page_size"), s.PageSize)
	if s.PageSize > 0 && size > s.PageSize {
		size = s.PageSize
	}

	var live []Record
	for _, id := range slices.Sorted(maps.Keys(s.queries)) {
		q := s.queries[id]
		if archived, _ := q["is_archived"].(bool); archived {
			continue
		}
		summary := maps.Clone(q)
		delete(summary, "visualizations")
		live = append(live, summary)
	}

	start := min((pageNum-1)*size, len(live))
	end := min(start+size, len(live))
	writeJSON(w, http.StatusOK, Record{
		"count":     len(live),
		"page":      pageNum,
		"page_size": size,
		"results":   live[start:end],
	})
}

func (s *Server) getQuery(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, _ := strconv.Atoi(r.PathValue("id"))
	if s.FailQueryFetches[id] {
		writeJSON(w, http.StatusInternalServerError, Record{"message": "Internal Server Error"})
		return
	}
	q, ok := s.queries[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, Record{"message": "Query not found"})
		return
	}
	full := maps.Clone(q)
	var vs []any
	for _, vid := range slices.Sorted(maps.Keys(s.visualizations)) {
		v := s.visualizations[vid]
		if toInt(v["query_id"]) == id {
			withTimes := maps.Clone(v)
			withTimes["created_at"] = "2024-01-01T00:00:00Z"
			withTimes["updated_at"] = "2024-01-02T00:00:00Z"
			vs = append(vs, withTimes)
		}
	}
	full["visualizations"] = vs
	writeJSON(w, http.StatusOK, full)
}

func (s *Server) saveQuery(w http.ResponseWriter, r *http.Request) {
	body := bodyOf(r.Context())
	name, _ := body["name"].(string)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailQueryNames[name] {
		writeJSON(w, http.StatusInternalServerError, Record{"message": "Internal Server Error"})
		return
	}

	id, stored, ok := s.target(r, s.queries)
	if !ok {
		writeJSON(w, http.StatusNotFound, Record{"message": "Query not found"})
		return
	}
	maps.Copy(stored, body)
	stored["id"] = id
	s.queries[id] = stored
	writeJSON(w, http.StatusOK, stored)
}

func (s *Server) archiveQuery(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, _ := strconv.Atoi(r.PathValue("id"))
	q, ok := s.queries[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, Record{"message": "Query not found"})
		return
	}
	q["is_archived"] = true
	writeJSON(w, http.StatusOK, Record{})
}

func (s *Server) saveVisualization(w http.ResponseWriter, r *http.Request) {
	body := bodyOf(r.Context())

	s.mu.Lock()
	defer s.mu.Unlock()

	id, stored, ok := s.target(r, s.visualizations)
	if !ok {
		writeJSON(w, http.StatusNotFound, Record{"message": "Visualization not found"})
		return
	}
	if _, exists := s.queries[toInt(body["query_id"])]; !exists && r.PathValue("id") == "" {
		writeJSON(w, http.StatusBadRequest, Record{"message": "query_id is required"})
		return
	}
	maps.Copy(stored, body)
	stored["id"] = id
	s.visualizations[id] = stored
	writeJSON(w, http.StatusOK, stored)
}

func (s *Server) listDashboards(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var summaries []Record
	for _, id := range slices.Sorted(maps.Keys(s.dashboards)) {
		d := s.dashboards[id]
		summaries = append(summaries, Record{"id": d["id"], "name": d["name"], "slug": d["slug"]})
	}
	if !s.PaginateDashboards {
		writeJSON(w, http.StatusOK, summaries)
		return
	}

	pageNum := atoiDefault(r.URL.Query().Get("page"), 1)
	size := max(s.PageSize, 1)
	start := min((pageNum-1)*size, len(summaries))
	end := min(start+size, len(summaries))
	writeJSON(w, http.StatusOK, Record{
		"count":     len(summaries),
		"page":      pageNum,
		"page_size": size,
		"results":   summaries[start:end],
	})
}

func (s *Server) getDashboard(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := r.PathValue("key")
	for _, d := range s.dashboards {
		if d["slug"] == key || strconv.Itoa(toInt(d["id"])) == key {
			if name, _ := d["name"].(string); s.FailDashboardFetches[name] {
				writeJSON(w, http.StatusInternalServerError, Record{"message": "Internal Server Error"})
				return
			}
			full := maps.Clone(d)
			full["widgets"] = s.widgetsOf(toInt(d["id"]))
			full["layout"] = []any{}
			full["can_edit"] = true
			writeJSON(w, http.StatusOK, full)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, Record{"message": "Dashboard not found"})
}

func (s *Server) createDashboard(w http.ResponseWriter, r *http.Request) {
	body := bodyOf(r.Context())
	name, _ := body["name"].(string)

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.addDashboard(name, true)
	writeJSON(w, http.StatusOK, s.dashboards[id])
}

func (s *Server) updateDashboard(w http.ResponseWriter, r *http.Request) {
	body := bodyOf(r.Context())

	s.mu.Lock()
	defer s.mu.Unlock()

	id, _ := strconv.Atoi(r.PathValue("id"))
	d, ok := s.dashboards[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, Record{"message": "Dashboard not found"})
		return
	}
	if s.RejectPublish {
		writeJSON(w, http.StatusOK, Record{"message": "Dashboard could not be published"})
		return
	}
	maps.Copy(d, body)
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) saveWidget(w http.ResponseWriter, r *http.Request) {
	body := bodyOf(r.Context())

	s.mu.Lock()
	defer s.mu.Unlock()

	id, stored, ok := s.target(r, s.widgets)
	if !ok {
		writeJSON(w, http.StatusNotFound, Record{"message": "Widget not found"})
		return
	}
	if _, exists := s.dashboards[toInt(body["dashboard_id"])]; !exists {
		writeJSON(w, http.StatusBadRequest, Record{"message": "dashboard_id is required"})
		return
	}
	maps.Copy(stored, body)
	stored["id"] = id
	s.widgets[id] = stored
	writeJSON(w, http.StatusOK, stored)
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	body := bodyOf(r.Context())
	email, _ := body["email"].(string)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[email]; exists {
		writeJSON(w, http.StatusBadRequest, Record{"message": "Email already taken."})
		return
	}
	user := maps.Clone(body)
	user["id"] = s.id()
	s.users[email] = user
	writeJSON(w, http.StatusOK, user)
}

// target resolves the record a save addresses: a fresh one for creates,
// a copy of the stored one for updates. Callers hold s.mu.
func (s *Server) target(r *http.Request, store map[int]Record) (int, Record, bool) {
	raw := r.PathValue("id")
	if raw == "" {
		return s.id(), Record{}, true
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, nil, false
	}
	existing, ok := store[id]
	if !ok {
		return 0, nil, false
	}
	return id, maps.Clone(existing), true
}

func (s *Server) addDashboard(name string, draft bool) int {
	id := s.id()
	slug := slugify(name)
	for _, d := range s.dashboards {
		if d["slug"] == slug {
			slug = fmt.Sprintf("%s_%d", slug, id)
			break
		}
	}
	s.dashboards[id] = Record{"id": id, "name": name, "slug": slug, "is_draft": draft}
	return id
}

func (s *Server) widgetsOf(dashboardID int) []Record {
	var out []Record
	for _, id := range slices.Sorted(maps.Keys(s.widgets)) {
		wr := s.widgets[id]
		if toInt(wr["dashboard_id"]) != dashboardID {
			continue
		}
		view := maps.Clone(wr)
		if vid := toInt(wr["visualization_id"]); vid != 0 {
			view["visualization"] = Record{"id": vid}
			delete(view, "visualization_id")
		}
		out = append(out, view)
	}
	return out
}

func (s *Server) id() int {
	s.nextID++
	return s.nextID
}

func slugify(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	}
	return 0
}
