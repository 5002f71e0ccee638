// internal/handlers/live.go

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"prosignum/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is delegated to the CORS layer in front.
		return true
	},
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// ProgressEvent is pushed to subscribers of an initiative whenever its
// signature counts change (new signature, review action).
type ProgressEvent struct {
	InitiativeID primitive.ObjectID `json:"initiative_id"`
	Pending      int                `json:"pending"`
	Accepted     int                `json:"accepted"`
	Progress     int                `json:"progress"`
}

// Hub fans progress events out to websocket subscribers grouped by initiative.
type Hub struct {
	clients    map[primitive.ObjectID]map[*liveClient]bool
	register   chan *liveClient
	unregister chan *liveClient
	broadcast  chan ProgressEvent
	done       chan struct{}
	mutex      sync.RWMutex
}

type liveClient struct {
	hub          *Hub
	conn         *websocket.Conn
	send         chan []byte
	initiativeID primitive.ObjectID
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[primitive.ObjectID]map[*liveClient]bool),
		register:   make(chan *liveClient),
		unregister: make(chan *liveClient),
		broadcast:  make(chan ProgressEvent, 16),
		done:       make(chan struct{}),
	}
}

func (hub *Hub) Run() {
	for {
		select {
		case client := <-hub.register:
			hub.mutex.Lock()
			if hub.clients[client.initiativeID] == nil {
				hub.clients[client.initiativeID] = make(map[*liveClient]bool)
			}
			hub.clients[client.initiativeID][client] = true
			hub.mutex.Unlock()

		case client := <-hub.unregister:
			hub.mutex.Lock()
			if clients, ok := hub.clients[client.initiativeID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.send)
					if len(clients) == 0 {
						delete(hub.clients, client.initiativeID)
					}
				}
			}
			hub.mutex.Unlock()

		case event := <-hub.broadcast:
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}

			hub.mutex.RLock()
			for client := range hub.clients[event.InitiativeID] {
				select {
				case client.send <- payload:
				default:
					// Slow consumer, drop the event for this client.
				}
			}
			hub.mutex.RUnlock()

		case <-hub.done:
			hub.mutex.Lock()
			for _, clients := range hub.clients {
				for client := range clients {
					close(client.send)
				}
			}
			hub.clients = make(map[primitive.ObjectID]map[*liveClient]bool)
			hub.mutex.Unlock()
			return
		}
	}
}

func (hub *Hub) Shutdown() {
	close(hub.done)
}

// add hands a client to the hub loop. Returns false when the hub has shut
// down, so connection goroutines never block on a drained channel.
func (hub *Hub) add(client *liveClient) bool {
	select {
	case hub.register <- client:
		return true
	case <-hub.done:
		return false
	}
}

func (hub *Hub) remove(client *liveClient) {
	select {
	case hub.unregister <- client:
	case <-hub.done:
	}
}

// Broadcast queues an event without blocking the caller.
func (hub *Hub) Broadcast(event ProgressEvent) {
	select {
	case hub.broadcast <- event:
	default:
	}
}

func (hub *Hub) ConnectionCount() int {
	hub.mutex.RLock()
	defer hub.mutex.RUnlock()

	count := 0
	for _, clients := range hub.clients {
		count += len(clients)
	}
	return count
}

// PublishInitiativeProgress recomputes the counts for an initiative and
// broadcasts them. Runs asynchronously; failures only cost an update.
func (hub *Hub) PublishInitiativeProgress(signatureCollection, initiativeCollection *mongo.Collection, initiativeID primitive.ObjectID) {
	if hub == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		pending, err := signatureCollection.CountDocuments(ctx, bson.M{
			"initiative_id": initiativeID,
			"status":        models.SignatureStatusPending,
		})
		if err != nil {
			logrus.WithError(err).Warn("Failed to count pending signatures for live feed")
			return
		}

		accepted, err := signatureCollection.CountDocuments(ctx, bson.M{
			"initiative_id": initiativeID,
			"status":        models.SignatureStatusAccepted,
		})
		if err != nil {
			logrus.WithError(err).Warn("Failed to count accepted signatures for live feed")
			return
		}

		progress := 0
		var initiative models.Initiative
		if err := initiativeCollection.FindOne(ctx, bson.M{"_id": initiativeID}).Decode(&initiative); err == nil {
			progress = initiative.ProgressPercentage(int(accepted))
		}

		hub.Broadcast(ProgressEvent{
			InitiativeID: initiativeID,
			Pending:      int(pending),
			Accepted:     int(accepted),
			Progress:     progress,
		})
	}()
}

// LiveHandler upgrades subscribers onto the initiative progress feed.
type LiveHandler struct {
	hub                  *Hub
	initiativeCollection *mongo.Collection
}

func NewLiveHandler(hub *Hub, initiativeCollection *mongo.Collection) *LiveHandler {
	return &LiveHandler{
		hub:                  hub,
		initiativeCollection: initiativeCollection,
	}
}

func (h *LiveHandler) HandleInitiativeFeed(c *gin.Context) {
	initiativeID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid initiative ID",
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	count, err := h.initiativeCollection.CountDocuments(ctx, bson.M{
		"_id":    initiativeID,
		"status": bson.M{"$ne": models.InitiativeStatusDraft},
	})
	if err != nil || count == 0 {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Initiative not found",
		})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("Websocket upgrade failed")
		return
	}

	client := &liveClient{
		hub:          h.hub,
		conn:         conn,
		send:         make(chan []byte, 8),
		initiativeID: initiativeID,
	}

	if !h.hub.add(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (client *liveClient) readPump() {
	defer func() {
		client.hub.remove(client)
		client.conn.Close()
	}()

	client.conn.SetReadLimit(512)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// The feed is one-directional; incoming frames are drained until the
	// connection closes.
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (client *liveClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
