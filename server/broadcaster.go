package server

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"smwall/models"
)

// Buffered batches per subscriber before new batches are dropped for it
const clientBufferSize = 16

var (
	subscribersGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "smwall_subscribers",
		Help: "The current number of connected wall subscribers",
	})

	batchesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "smwall_batches_dropped_total",
		Help: "Batches not delivered to a subscriber because its buffer was full",
	})
)

// Broadcaster fans published batches out to every connected subscriber
type Broadcaster struct {
	sync.RWMutex
	clients map[string]chan models.MediaBatch
	closed  bool
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients: make(map[string]chan models.MediaBatch),
	}
}

// Publish delivers batch to the subscribers connected at call time. Sends
// never block: a subscriber whose buffer is full misses this batch.
func (b *Broadcaster) Publish(batch models.MediaBatch) {
	b.RLock()
	defer b.RUnlock()

	for key, client := range b.clients {
		select {
		case client <- batch: // Non-blocking send
		default:
			batchesDropped.Inc()
			log.Warnf("Client channel full, skipping batch for client: %v", key)
		}
	}
}

// AddClient registers a subscriber and returns the channel it receives
// batches on. The channel is closed when the client is removed.
func (b *Broadcaster) AddClient(key string) (<-chan models.MediaBatch, bool) {
	b.Lock()
	defer b.Unlock()

	if b.closed {
		return nil, false
	}

	client := make(chan models.MediaBatch, clientBufferSize)
	b.clients[key] = client
	subscribersGauge.Set(float64(len(b.clients)))

	log.WithFields(log.Fields{
		"key":   key,
		"count": len(b.clients),
	}).Info("Adding client to broadcaster")
	return client, true
}

func (b *Broadcaster) RemoveClient(key string) {
	b.Lock()
	defer b.Unlock()

	client, ok := b.clients[key]
	if !ok {
		return
	}
	close(client)
	delete(b.clients, key)
	subscribersGauge.Set(float64(len(b.clients)))

	log.WithFields(log.Fields{
		"key":   key,
		"count": len(b.clients),
	}).Info("Removed client from broadcaster")
}

func (b *Broadcaster) Count() int {
	b.RLock()
	defer b.RUnlock()
	return len(b.clients)
}

// Shutdown disconnects every subscriber and refuses new ones
func (b *Broadcaster) Shutdown() {
	log.Info("Shutting down broadcaster")
	b.Lock()
	defer b.Unlock()

	for key, client := range b.clients {
		close(client)
		delete(b.clients, key)
	}
	b.closed = true
	subscribersGauge.Set(0)
}
