package messaging

import (
	"encoding/json"
	"log"
	"runtime"
	"sync"
	"time"

	"printedge/engine"
	"printedge/store"
)

// Heartbeater publishes a periodic liveness payload so the backoffice
// can tell whether the restaurant's print agent is up.
type Heartbeater struct {
	client       *Client
	db           *store.DB
	eng          *engine.SyncEngine
	clientID     string
	restaurantID string
	version      string
	topic        string
	interval     time.Duration
	startTime    time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewHeartbeater creates a heartbeater for the given agent identity.
func NewHeartbeater(client *Client, db *store.DB, eng *engine.SyncEngine, clientID, restaurantID, version, topic string, interval time.Duration) *Heartbeater {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &Heartbeater{
		client:       client,
		db:           db,
		eng:          eng,
		clientID:     clientID,
		restaurantID: restaurantID,
		version:      version,
		topic:        topic,
		interval:     interval,
		stopCh:       make(chan struct{}),
	}
}

// Start sends an initial heartbeat and begins the loop.
func (h *Heartbeater) Start() {
	h.startTime = time.Now()
	h.send()
	go h.loop()
}

// Stop halts the heartbeat loop.
func (h *Heartbeater) Stop() {
	h.stopOnce.Do(func() { close(h.stopCh) })
}

func (h *Heartbeater) send() {
	hb := Heartbeat{
		ClientID:      h.clientID,
		RestaurantID:  h.restaurantID,
		ClientName:    "Impressora de Pedidos",
		Version:       h.version,
		Platform:      runtime.GOOS,
		At:            time.Now().UTC().Format(time.RFC3339),
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
	}
	if h.eng != nil {
		hb.IsPrinting = h.eng.IsPrinting()
		hb.PendingOrders = h.eng.PendingCount()
	}
	if h.db != nil {
		if n, err := h.db.CountPrinted(); err == nil {
			hb.PrintedCount = n
		}
	}

	data, err := json.Marshal(hb)
	if err != nil {
		log.Printf("heartbeater: marshal: %v", err)
		return
	}
	if err := h.client.Publish(h.topic, data); err != nil {
		log.Printf("heartbeater: publish: %v", err)
	}
}

func (h *Heartbeater) loop() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
			h.send()
		}
	}
}
