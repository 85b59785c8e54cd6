package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/cors"
	"github.com/wblakecaldwell/profiler"
	"github.com/zenazn/goji/web"
	"github.com/zenazn/goji/web/middleware"

	"github.com/janelia-flyem/omerotools/gateway"
	"github.com/janelia-flyem/omerotools/omero"
	"github.com/janelia-flyem/omerotools/scripts"
)

// WebAPIPath is the root of all web API endpoints.
const WebAPIPath = "/api/"

const webHelp = `
omerotools web API

GET  /api/help
	Returns this help.

GET  /api/server/info
	Returns JSON describing the service.

GET  /api/scripts
	Returns JSON with the name, version and description of compiled scripts.

GET  /api/scripts/<name>/help
	Returns the help of a script.

POST /api/scripts/<name>/run
	Runs a script.  The body is JSON:

	{
		"user": "trainer-1",       (optional, defaults to the service account)
		"password": "...",
		"params": { "Data_Type": "Dataset", "IDs": [101] }
	}

	Returns the report of the run.  The status is 200 even if some units
	failed; check "Failed" in the report.

GET  /api/reports[?script=<name>]
	Lists stored reports, newest first.

GET  /api/reports/<id>
	Returns a stored report.

DELETE /api/reports/<id>
	Deletes a stored report.

If the service is configured with a secret key, script and report endpoints
require an "Authorization: Bearer <token>" header.
`

var profilerOnce sync.Once

// BadRequest writes an error message with status 400 and logs it.
func BadRequest(w http.ResponseWriter, r *http.Request, format string, args ...interface{}) {
	httpError(w, r, http.StatusBadRequest, format, args...)
}

// Unauthorized writes an error message with status 401 and logs it.
func Unauthorized(w http.ResponseWriter, r *http.Request, format string, args ...interface{}) {
	httpError(w, r, http.StatusUnauthorized, format, args...)
}

// Forbidden writes an error message with status 403 and logs it.
func Forbidden(w http.ResponseWriter, r *http.Request, format string, args ...interface{}) {
	httpError(w, r, http.StatusForbidden, format, args...)
}

func httpError(w http.ResponseWriter, r *http.Request, status int, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	omero.Errorf("%s %s: %s\n", r.Method, r.URL.Path, message)
	http.Error(w, message, status)
}

// errorStatus maps a script error to an HTTP status.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, omero.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, omero.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, gateway.ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		omero.Errorf("%s %s: unable to write JSON: %v\n", r.Method, r.URL.Path, err)
	}
}

type resultView struct {
	Unit    string
	Outcome string
	Message string `json:",omitempty"`
	Error   string `json:",omitempty"`
}

// reportView is the JSON form of a report.
type reportView struct {
	ID        string
	Script    string
	Started   time.Time
	Finished  time.Time
	Message   string
	Succeeded int
	Skipped   int
	Failed    int
	Results   []resultView `json:",omitempty"`
}

func newReportView(r *omero.Report, withResults bool) reportView {
	v := reportView{
		ID:       r.ID,
		Script:   r.Script,
		Started:  r.Started,
		Finished: r.Finished,
		Message:  r.Message,
	}
	v.Succeeded, v.Skipped, v.Failed = r.Counts()
	if !withResults {
		return v
	}
	for _, res := range r.Results {
		rv := resultView{Unit: res.Unit, Outcome: res.Outcome.String(), Message: res.Message}
		if res.Err != nil {
			rv.Error = res.Err.Error()
		}
		v.Results = append(v.Results, rv)
	}
	return v
}

type runBody struct {
	User     string                 `json:"user"`
	Password string                 `json:"password"`
	Params   map[string]interface{} `json:"params"`
}

// Handler returns the web API of the service.
func (s *Service) Handler() http.Handler {
	mux := web.New()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.Recoverer)
	if len(s.cfg.Server.CorsDomains) != 0 {
		c := cors.New(cors.Options{
			AllowedOrigins:   s.cfg.Server.CorsDomains,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "HEAD"},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
		})
		mux.Use(c.Handler)
	}
	mux.Use(logRequest)

	mux.Get("/api/help", s.helpHandler)
	mux.Get("/api/server/info", s.serverInfoHandler)

	api := web.New()
	if s.auth != nil {
		api.Use(s.auth.middleware)
	}
	api.Get("/api/scripts", s.scriptsHandler)
	api.Get("/api/scripts/:name/help", s.scriptHelpHandler)
	api.Post("/api/scripts/:name/run", s.runHandler)
	api.Get("/api/reports", s.reportsHandler)
	api.Get("/api/reports/:id", s.reportHandler)
	api.Delete("/api/reports/:id", s.deleteReportHandler)
	mux.Handle("/api/scripts", api)
	mux.Handle("/api/scripts/*", api)
	mux.Handle("/api/reports", api)
	mux.Handle("/api/reports/*", api)

	if s.cfg.Server.AllowProfiling {
		profilerOnce.Do(profiler.AddMemoryProfilingHandlers)
		mux.Handle("/profiler/*", http.DefaultServeMux)
	}
	mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpError(w, r, http.StatusNotFound, "unknown endpoint %q; see %shelp", r.URL.Path, WebAPIPath)
	})
	return mux
}

// logRequest logs each request along with its duration.
func logRequest(c *web.C, h http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		timedLog := omero.NewTimeLog()
		h.ServeHTTP(w, r)
		timedLog.Debugf("HTTP %s: %s (%s)", r.Method, r.URL, middleware.GetReqID(*c))
	}
	return http.HandlerFunc(fn)
}

func (s *Service) helpHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprint(w, webHelp)
}

func (s *Service) serverInfoHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, s.About())
}

func (s *Service) scriptsHandler(w http.ResponseWriter, r *http.Request) {
	type scriptView struct {
		Name        string
		URL         string
		Version     string
		Description string
	}
	var views []scriptView
	for _, name := range scripts.Names() {
		script, err := scripts.Get(name)
		if err != nil {
			continue
		}
		info := script.Info()
		views = append(views, scriptView{info.Name, info.URL, info.Version, info.Description})
	}
	writeJSON(w, r, views)
}

func (s *Service) scriptHelpHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	script, err := scripts.Get(c.URLParams["name"])
	if err != nil {
		httpError(w, r, http.StatusNotFound, "%v", err)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprint(w, script.Help())
}

func (s *Service) runHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	name := c.URLParams["name"]
	var body runBody
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			BadRequest(w, r, "malformed JSON request body: %v", err)
			return
		}
	}
	if user, ok := c.Env["user"].(string); ok {
		omero.Infof("Script %s requested by %s\n", name, user)
	}
	report, err := s.RunScript(r.Context(), name, RunRequest{
		User:     body.User,
		Password: body.Password,
		Params:   scripts.Params(body.Params),
	})
	if err != nil && report == nil {
		httpError(w, r, errorStatus(err), "%v", err)
		return
	}
	writeJSON(w, r, newReportView(report, true))
}

func (s *Service) reportsHandler(w http.ResponseWriter, r *http.Request) {
	reports, err := s.reports.List(r.URL.Query().Get("script"))
	if err != nil {
		httpError(w, r, http.StatusInternalServerError, "%v", err)
		return
	}
	views := make([]reportView, len(reports))
	for i, report := range reports {
		views[i] = newReportView(report, false)
	}
	writeJSON(w, r, views)
}

func (s *Service) reportHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	report, err := s.reports.Get(c.URLParams["id"])
	if err != nil {
		httpError(w, r, errorStatus(err), "%v", err)
		return
	}
	writeJSON(w, r, newReportView(report, true))
}

func (s *Service) deleteReportHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	id := c.URLParams["id"]
	if _, err := s.reports.Get(id); err != nil {
		httpError(w, r, errorStatus(err), "%v", err)
		return
	}
	if err := s.reports.Delete(id); err != nil {
		httpError(w, r, http.StatusInternalServerError, "%v", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, "{%q: %q}\n", "deleted", id)
}

// aboutText returns the service description as aligned lines.
func aboutText(about map[string]string) string {
	var keys []string
	for k := range about {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for _, k := range keys {
		if about[k] != "" {
			fmt.Fprintf(&sb, "%-15s %s\n", k, about[k])
		}
	}
	return sb.String()
}
