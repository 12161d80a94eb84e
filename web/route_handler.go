package web

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"dispatchq/internal/state"
	"dispatchq/internal/store"
)

const (
	PageSize = 15
)

// QueueStats is the live view of the queue shown alongside persisted
// history.
type QueueStats interface {
	Len() int
	InFlight() int
}

type HttpRouteHandler struct {
	requestStore store.RequestStore
	stats        QueueStats
	SecretKey    string
	UserName     string
	Password     string
	UseAuth      bool
	Port         uint
}

func NewRouteHandler(
	requestStore store.RequestStore,
	stats QueueStats,
	username string,
	password string,
	secretKey string,
	useAuth bool,
	port uint,
) HttpRouteHandler {
	return HttpRouteHandler{
		requestStore: requestStore,
		stats:        stats,
		SecretKey:    secretKey,
		UserName:     username,
		Password:     password,
		UseAuth:      useAuth,
		Port:         port,
	}
}

// Handler builds the route table. Split from Serve so tests can drive it
// through httptest.
func (handler *HttpRouteHandler) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/requests", handler.authMiddleware(handler.handleRequests))
	mux.HandleFunc("/charts", handler.authMiddleware(handler.handleCharts))
	mux.HandleFunc("/stats", handler.authMiddleware(handler.handleStats))
	mux.HandleFunc("/login", handler.handleLogin)
	mux.HandleFunc("/logout", handler.handleLogout)
	mux.HandleFunc("/", handler.handleIndex)
	return mux
}

func (handler *HttpRouteHandler) Serve() error {
	addr := fmt.Sprintf(":%d", handler.Port)
	printBanner(addr)
	return http.ListenAndServe(addr, handler.Handler())
}

func (handler *HttpRouteHandler) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	if !handler.UseAuth {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if !isAuthenticated(r, handler.SecretKey) {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next(w, r)
	}
}

func (handler *HttpRouteHandler) handleRequests(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pageNumber := getPageNumber(r)
	statusParam := strings.TrimSpace(r.URL.Query().Get("status"))
	status := state.Status(statusParam)

	var statuses []state.Status
	if statusParam != "" {
		statuses = append(statuses, status)
	}

	requests, err := handler.requestStore.Fetch(ctx, pageNumber, PageSize, statuses)
	if err != nil {
		log.Printf("failed to fetch requests: %v", err)
		http.Error(w, "Failed to fetch requests", http.StatusInternalServerError)
		return
	}

	counts, _ := handler.requestStore.CountGroupedByStatus(ctx)

	data := NewPaginatedDataMap(*requests).
		Add("Statuses", state.AllStatuses).
		Add("CurrentStatus", status).
		Add("RequestsCount", counts).
		Add("PrevPage", requests.Page-1).
		Add("NextPage", requests.Page+1)

	render(w, "requests", data.Data)
}

func (handler *HttpRouteHandler) handleCharts(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("loadCharts") != "" {
		counts, err := handler.requestStore.CountGroupedByStatus(r.Context())
		if err != nil {
			log.Println("Error counting requests:", err)
			http.Error(w, "Failed to count requests", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]interface{}{
			"requests": counts,
		}); err != nil {
			log.Println("Error encoding JSON:", err)
		}
		return
	}

	render(w, "charts", nil)
}

func (handler *HttpRouteHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	payload := map[string]int{
		"pending":   0,
		"in_flight": 0,
	}
	if handler.stats != nil {
		payload["pending"] = handler.stats.Len()
		payload["in_flight"] = handler.stats.InFlight()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Println("Error encoding JSON:", err)
	}
}

func (handler *HttpRouteHandler) handleIndex(w http.ResponseWriter, r *http.Request) {
	if !handler.UseAuth || isAuthenticated(r, handler.SecretKey) {
		http.Redirect(w, r, "/requests", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (handler *HttpRouteHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		render(w, "login", map[string]any{})
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	username := r.FormValue("username")
	password := r.FormValue("password")
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(handler.UserName)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(handler.Password)) == 1
	if !userOK || !passOK {
		w.WriteHeader(http.StatusUnauthorized)
		render(w, "login", map[string]any{"Error": "invalid credentials"})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    generateAuthToken(username, handler.SecretKey),
		Path:     "/",
		HttpOnly: true,
		Expires:  time.Now().Add(12 * time.Hour),
	})
	http.Redirect(w, r, "/requests", http.StatusSeeOther)
}

func (handler *HttpRouteHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:    authCookieName,
		Value:   "",
		Path:    "/",
		Expires: time.Unix(0, 0),
	})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
