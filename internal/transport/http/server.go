package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"team-quiz-service/internal/app"
	"team-quiz-service/internal/domain"
	"team-quiz-service/internal/metrics"

	"github.com/julienschmidt/httprouter"
	"github.com/sirupsen/logrus"
	"github.com/skip2/go-qrcode"
)

const (
	teamCookieName  = "quiz_team"
	adminCookieName = "quiz_admin"
	qrSize          = 320
)

// Server is the web surface: team and admin JSON endpoints plus the live socket.
type Server struct {
	service   *app.QuizService
	admin     *app.AdminAuth
	teams     *app.TeamSessions
	ws        *WSHandler
	log       *logrus.Logger
	metrics   *metrics.Metrics
	publicURL string
}

func NewServer(service *app.QuizService, admin *app.AdminAuth, log *logrus.Logger, m *metrics.Metrics, publicURL string) *Server {
	return &Server{
		service:   service,
		admin:     admin,
		teams:     app.NewTeamSessions(),
		ws:        NewWSHandler(service.Broadcaster(), log),
		log:       log,
		metrics:   m,
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	mux := httprouter.New()

	mux.GET("/healthz", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handler(http.MethodGet, "/metrics", s.metrics.Handler())
	mux.HandlerFunc(http.MethodGet, "/ws", s.ws.ServeWS)
	mux.GET("/join/qr", s.serveJoinQR)

	mux.GET("/api/teams", s.listTeams)
	mux.POST("/api/team", s.selectTeam)
	mux.POST("/api/team/leave", s.leaveTeam)
	mux.GET("/api/question", s.activeQuestion)
	mux.GET("/api/state", s.requireTeam(s.teamState))
	mux.POST("/api/answers", s.requireTeam(s.submitAnswers))
	mux.GET("/api/scoreboard", s.scoreboard)

	mux.POST("/admin/login", s.adminLogin)
	mux.POST("/admin/logout", s.adminLogout)
	mux.GET("/admin/state", s.requireAdmin(s.adminState))
	mux.GET("/admin/answers", s.requireAdmin(s.adminAnswers))
	mux.POST("/admin/active_question", s.requireAdmin(s.setActiveQuestion))
	mux.POST("/admin/submission", s.requireAdmin(s.setSubmissionOpen))
	mux.POST("/admin/rating", s.requireAdmin(s.setRating))

	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, v any) {
		s.log.WithFields(logrus.Fields{"path": r.URL.Path, "panic": v}).Error("handler panic")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}

	return s.middleware(mux)
}

type errorBody struct {
	Error string `json:"error"`
}

type teamHandle func(w http.ResponseWriter, r *http.Request, team string)

func (s *Server) requireTeam(next teamHandle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		team, ok := s.teamFromCookie(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "no team selected"})
			return
		}
		next(w, r, team)
	}
}

func (s *Server) requireAdmin(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		token := ""
		if c, err := r.Cookie(adminCookieName); err == nil {
			token = c.Value
		}
		if err := s.admin.Verify(token); err != nil {
			s.writeError(w, err)
			return
		}
		next(w, r, p)
	}
}

func (s *Server) listTeams(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]any{"teams": s.service.Teams()})
}

type selectTeamRequest struct {
	Team  string `json:"team"`
	Token string `json:"token"`
}

func (s *Server) selectTeam(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req selectTeamRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.service.JoinTeam(req.Team, req.Token); err != nil {
		s.writeError(w, err)
		return
	}
	if c, err := r.Cookie(teamCookieName); err == nil {
		s.teams.Close(c.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     teamCookieName,
		Value:    s.teams.Open(req.Team),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	s.log.WithField("team", req.Team).Info("team selected")
	writeJSON(w, http.StatusOK, map[string]string{"team": req.Team})
}

func (s *Server) leaveTeam(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if c, err := r.Cookie(teamCookieName); err == nil {
		s.teams.Close(c.Value)
	}
	http.SetCookie(w, &http.Cookie{Name: teamCookieName, Value: "", Path: "/", MaxAge: -1})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) activeQuestion(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	state := s.service.State()
	writeJSON(w, http.StatusOK, map[string]any{
		"question":        s.service.ActiveQuestion().Public(),
		"submission_open": state.SubmissionOpen,
	})
}

func (s *Server) teamState(w http.ResponseWriter, _ *http.Request, team string) {
	view, err := s.service.TeamState(team)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type submitRequest struct {
	Answers map[string]string `json:"answers"`
}

func (s *Server) submitAnswers(w http.ResponseWriter, r *http.Request, team string) {
	answers, err := decodeAnswers(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	records, err := s.service.SubmitAnswer(r.Context(), team, answers)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"answers": records})
}

func (s *Server) scoreboard(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]any{"scoreboard": s.service.Scoreboard()})
}

type loginRequest struct {
	Password string `json:"password"`
}

func (s *Server) adminLogin(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	token, err := s.admin.Login(req.Password)
	if err != nil {
		s.log.WithField("remote", r.RemoteAddr).Warn("admin login failed")
		s.writeError(w, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     adminCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) adminLogout(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if c, err := r.Cookie(adminCookieName); err == nil {
		s.admin.Logout(c.Value)
	}
	http.SetCookie(w, &http.Cookie{Name: adminCookieName, Value: "", Path: "/", MaxAge: -1})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) adminState(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]any{
		"state":           s.service.State(),
		"active_question": s.service.ActiveQuestion(),
		"questions":       s.service.Catalog().Questions,
		"teams":           s.service.Teams(),
	})
}

func (s *Server) adminAnswers(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	qid := s.service.State().ActiveQuestionID
	if raw := r.URL.Query().Get("question_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "question_id must be an integer"})
			return
		}
		qid = id
	}
	answers, err := s.service.Answers(qid)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"question_id": qid, "answers": answers})
}

type activeQuestionRequest struct {
	QuestionID int `json:"question_id"`
}

func (s *Server) setActiveQuestion(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req activeQuestionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.service.SetActiveQuestion(r.Context(), req.QuestionID); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.service.State())
}

type submissionRequest struct {
	Open *bool `json:"open"`
}

func (s *Server) setSubmissionOpen(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req submissionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Open == nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "open is required"})
		return
	}
	s.service.SetSubmissionOpen(r.Context(), *req.Open)
	writeJSON(w, http.StatusOK, s.service.State())
}

type ratingRequest struct {
	QuestionID int    `json:"question_id"`
	Team       string `json:"team"`
	SubqIdx    int    `json:"subq_idx"`
	Rating     int    `json:"rating"`
}

func (s *Server) setRating(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req ratingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.service.SetRating(r.Context(), req.QuestionID, req.Team, req.SubqIdx, req.Rating); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// serveJoinQR renders a PNG QR code pointing teams at the quiz.
func (s *Server) serveJoinQR(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	url := s.publicURL
	if url == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
		url = scheme + "://" + r.Host
	}

	png, err := qrcode.Encode(url+"/", qrcode.Medium, qrSize)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(png)
}

// writeError maps service errors onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrUnknownQuestion),
		errors.Is(err, domain.ErrUnknownTeam),
		errors.Is(err, domain.ErrUnknownSubquestion):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrMissingSubanswer),
		errors.Is(err, domain.ErrInvalidFormat):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrSubmissionClosed):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrInvalidToken):
		status = http.StatusUnauthorized
	}
	if status == http.StatusInternalServerError {
		s.log.WithError(err).Error("request failed")
		writeJSON(w, status, errorBody{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

// decodeAnswers accepts either {"answers": {"0": "..."}} or form fields answer-N.
func decodeAnswers(r *http.Request) (map[int]string, error) {
	out := make(map[int]string)
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "application/x-www-form-urlencoded") || strings.HasPrefix(ct, "multipart/form-data") {
		if err := r.ParseForm(); err != nil {
			return nil, errors.New("invalid form body")
		}
		for key, values := range r.PostForm {
			idx, ok := strings.CutPrefix(key, "answer-")
			if !ok || len(values) == 0 {
				continue
			}
			n, err := strconv.Atoi(idx)
			if err != nil {
				return nil, errors.New("invalid answer field " + key)
			}
			out[n] = values[0]
		}
		return out, nil
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.New("invalid JSON body")
	}
	for key, value := range req.Answers {
		n, err := strconv.Atoi(key)
		if err != nil {
			return nil, errors.New("answer keys must be subquestion indexes")
		}
		out[n] = value
	}
	return out, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// teamFromCookie resolves the team session named by the cookie.
func (s *Server) teamFromCookie(r *http.Request) (string, bool) {
	c, err := r.Cookie(teamCookieName)
	if err != nil {
		return "", false
	}
	return s.teams.Team(c.Value)
}
