package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/okanyucel2/coloring-book-generator-sub000/types"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the dashboard is same-origin in production; CORS middleware already
	// guards browser access to the rest of the API
	CheckOrigin: func(r *http.Request) bool { return true },
}

// DashboardManager pushes live queue state to WebSocket dashboard clients
type DashboardManager struct {
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	queue     JobQueueInterface
	hub       ProgressHubInterface
	logger    *logrus.Logger
	interval  time.Duration
	quit      chan struct{}
	wg        sync.WaitGroup
}

// DashboardSnapshot is one dashboard push
type DashboardSnapshot struct {
	Jobs       []types.JobSummary `json:"jobs"`
	QueueDepth int                `json:"queue_depth"`
	HubMetrics interface{}        `json:"hub_metrics"`
	Timestamp  time.Time          `json:"timestamp"`
}

// NewDashboardManager creates a dashboard manager that broadcasts on the
// given interval once started.
func NewDashboardManager(q JobQueueInterface, hub ProgressHubInterface, interval time.Duration, logger *logrus.Logger) *DashboardManager {
	return &DashboardManager{
		clients:  make(map[*websocket.Conn]bool),
		queue:    q,
		hub:      hub,
		logger:   logger,
		interval: interval,
		quit:     make(chan struct{}),
	}
}

// Start launches the periodic broadcast loop
func (m *DashboardManager) Start() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-m.quit:
				return
			case <-ticker.C:
				m.Broadcast()
			}
		}
	}()
}

// Stop terminates the broadcast loop and closes all client connections
func (m *DashboardManager) Stop() {
	close(m.quit)
	m.wg.Wait()

	m.clientsMu.Lock()
	defer m.clientsMu.Unlock()
	for conn := range m.clients {
		conn.Close()
		delete(m.clients, conn)
	}
}

// HandleDashboard upgrades the connection and registers it for broadcasts
func (m *DashboardManager) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.WithField("error", err.Error()).Warn("Dashboard upgrade failed")
		return
	}
	m.addClient(conn)
}

func (m *DashboardManager) addClient(conn *websocket.Conn) {
	// initial state before registration, so the broadcast loop cannot write
	// to the connection concurrently with this send
	m.sendSnapshot(conn)

	m.clientsMu.Lock()
	m.clients[conn] = true
	total := len(m.clients)
	m.clientsMu.Unlock()

	m.logger.WithField("clients", total).Info("Dashboard client connected")

	go func() {
		defer func() {
			m.clientsMu.Lock()
			delete(m.clients, conn)
			remaining := len(m.clients)
			m.clientsMu.Unlock()
			conn.Close()
			m.logger.WithField("clients", remaining).Info("Dashboard client disconnected")
		}()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

// Broadcast sends the current snapshot to all connected clients
func (m *DashboardManager) Broadcast() {
	m.clientsMu.Lock()
	conns := make([]*websocket.Conn, 0, len(m.clients))
	for conn := range m.clients {
		conns = append(conns, conn)
	}
	m.clientsMu.Unlock()

	for _, conn := range conns {
		m.sendSnapshot(conn)
	}
}

func (m *DashboardManager) sendSnapshot(conn *websocket.Conn) {
	snapshot := DashboardSnapshot{
		Jobs:       m.queue.ListJobs("", defaultListLimit),
		QueueDepth: m.queue.Depth(),
		HubMetrics: m.hub.Metrics(),
		Timestamp:  time.Now(),
	}

	if err := conn.WriteJSON(snapshot); err != nil {
		m.logger.WithField("error", err.Error()).Debug("Failed to push dashboard snapshot")
	}
}

// ClientCount returns the number of connected dashboard clients
func (m *DashboardManager) ClientCount() int {
	m.clientsMu.Lock()
	defer m.clientsMu.Unlock()
	return len(m.clients)
}
