package server

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"jobwatch/internal/models"
)

const (
	overviewDefaultPasses = 24
	overviewMaxPasses     = 200
	overviewPushInterval  = 60 * time.Second
	overviewWriteTimeout  = 5 * time.Second
	overviewStateOK       = "ok"
	overviewStateIssue    = "issue"
	overviewStateMissing  = "missing"
)

var overviewUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		host := strings.ToLower(strings.TrimSpace(r.Host))
		originHost := strings.ToLower(strings.TrimSpace(u.Host))
		return host == originHost
	},
}

type overviewSnapshot struct {
	GeneratedAt time.Time           `json:"generated_at"`
	Latest      *models.StatusEntry `json:"latest"`
	Items       []overviewItem      `json:"items"`
}

// overviewItem is one watch with its state in each recent pass, oldest first.
type overviewItem struct {
	Task    string          `json:"task"`
	Type    string          `json:"type"`
	Locator string          `json:"locator"`
	States  []overviewState `json:"states"`
}

type overviewState struct {
	Timestamp time.Time `json:"timestamp"`
	State     string    `json:"state"`
	Detail    string    `json:"detail,omitempty"`
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	limit := parseOverviewLimit(r)
	writeJSON(w, http.StatusOK, s.buildOverviewSnapshot(limit))
}

func (s *Server) handleOverviewWS(w http.ResponseWriter, r *http.Request) {
	limit := parseOverviewLimit(r)
	conn, err := overviewUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.serveOverviewConnection(conn, limit)
}

func (s *Server) serveOverviewConnection(conn *websocket.Conn, limit int) {
	defer conn.Close()

	updates := s.subscribe()
	defer s.unsubscribe(updates)

	if err := writeOverviewPayload(conn, s.buildOverviewSnapshot(limit)); err != nil {
		return
	}

	ticker := time.NewTicker(overviewPushInterval)
	defer ticker.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-updates:
		case <-ticker.C:
		case <-done:
			return
		}
		if err := writeOverviewPayload(conn, s.buildOverviewSnapshot(limit)); err != nil {
			return
		}
	}
}

func writeOverviewPayload(conn *websocket.Conn, payload overviewSnapshot) error {
	_ = conn.SetWriteDeadline(time.Now().Add(overviewWriteTimeout))
	return conn.WriteJSON(payload)
}

func (s *Server) buildOverviewSnapshot(limit int) overviewSnapshot {
	history := s.storage.HistoryN(limit)
	snapshot := overviewSnapshot{
		GeneratedAt: time.Now().UTC(),
		Items:       []overviewItem{},
	}
	if len(history) == 0 {
		return snapshot
	}
	latest := history[len(history)-1]
	snapshot.Latest = &latest

	// Items follow the order of the latest pass; watches that have since
	// been removed from the configuration are appended.
	index := make(map[string]int)
	key := func(c models.WatchStatus) string {
		return c.Task + "\x00" + c.Type + "\x00" + c.Locator
	}
	for _, c := range latest.Checks {
		if _, ok := index[key(c)]; ok {
			continue
		}
		index[key(c)] = len(snapshot.Items)
		snapshot.Items = append(snapshot.Items, overviewItem{Task: c.Task, Type: c.Type, Locator: c.Locator})
	}
	for _, entry := range history {
		for _, c := range entry.Checks {
			i, ok := index[key(c)]
			if !ok {
				i = len(snapshot.Items)
				index[key(c)] = i
				snapshot.Items = append(snapshot.Items, overviewItem{Task: c.Task, Type: c.Type, Locator: c.Locator})
			}
			snapshot.Items[i].States = append(snapshot.Items[i].States, overviewState{
				Timestamp: entry.Timestamp,
				State:     checkState(c),
				Detail:    checkDetail(c),
			})
		}
	}
	return snapshot
}

func checkState(c models.WatchStatus) string {
	switch {
	case c.OK:
		return overviewStateOK
	case !c.Exists:
		return overviewStateMissing
	default:
		return overviewStateIssue
	}
}

func checkDetail(c models.WatchStatus) string {
	var parts []string
	if c.Error != nil {
		parts = append(parts, *c.Error)
	}
	if c.Stale {
		parts = append(parts, "stale, age "+c.AgeDisplay)
	}
	if c.ErrorCount > 0 {
		parts = append(parts, strconv.Itoa(c.ErrorCount)+" error lines")
	}
	if len(c.MissingRequires) > 0 {
		parts = append(parts, "missing "+strings.Join(c.MissingRequires, ", "))
	}
	return strings.Join(parts, "; ")
}

func parseOverviewLimit(r *http.Request) int {
	raw := r.URL.Query().Get("passes")
	if raw == "" {
		return overviewDefaultPasses
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return overviewDefaultPasses
	}
	if value > overviewMaxPasses {
		return overviewMaxPasses
	}
	return value
}
