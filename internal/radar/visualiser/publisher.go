// Package visualiser streams per-frame target lists to remote viewers over
// gRPC.
//
// The service is described by a hand-written grpc.ServiceDesc whose
// messages are protobuf well-known types (structpb.Struct, emptypb.Empty).
package visualiser

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/banshee-data/radarchain/internal/monitoring"
	"github.com/banshee-data/radarchain/internal/radar/pipeline"
	"github.com/banshee-data/radarchain/internal/timeutil"
	"google.golang.org/grpc"
)

// ErrFrameDropped is returned by Consume when the broadcast queue is full.
var ErrFrameDropped = errors.New("visualiser queue full, frame dropped")

// Config holds configuration for the visualiser gRPC server.
type Config struct {
	// ListenAddr is the address to listen on (e.g., "localhost:50061")
	ListenAddr string

	// SensorID labels every streamed frame
	SensorID string

	// MaxClients is the maximum number of concurrent streaming clients
	MaxClients int

	// QueueSize is the depth of the broadcast queue and of each client queue
	QueueSize int

	// Clock stamps published frames; nil uses the wall clock
	Clock timeutil.Clock
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		ListenAddr: "localhost:50061",
		SensorID:   "radar-01",
		MaxClients: 5,
		QueueSize:  32,
	}
}

// Publisher manages the gRPC server and frame broadcasting.
type Publisher struct {
	config   Config
	server   *grpc.Server
	listener net.Listener

	frameChan chan *TargetFrame
	clients   map[string]*clientStream
	clientsMu sync.RWMutex
	nextID    atomic.Uint64

	frameCount    atomic.Uint64
	clientCount   atomic.Int32
	droppedFrames atomic.Uint64

	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// clientStream is one connected streaming client.
type clientStream struct {
	id            string
	includeGhosts bool
	frameCh       chan *TargetFrame
}

// NewPublisher creates a new Publisher with the given configuration.
func NewPublisher(cfg Config) *Publisher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = DefaultConfig().MaxClients
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	return &Publisher{
		config:    cfg,
		frameChan: make(chan *TargetFrame, cfg.QueueSize),
		clients:   make(map[string]*clientStream),
		stopCh:    make(chan struct{}),
	}
}

// Start listens on the configured address and serves in the background.
func (p *Publisher) Start() error {
	lis, err := net.Listen("tcp", p.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return p.Serve(lis)
}

// Serve serves the TargetStream service on lis in the background.
func (p *Publisher) Serve(lis net.Listener) error {
	if !p.running.CompareAndSwap(false, true) {
		return fmt.Errorf("publisher already running")
	}
	p.listener = lis
	p.server = grpc.NewServer()
	RegisterTargetStreamServer(p.server, NewServer(p))

	p.wg.Add(2)
	go p.broadcastLoop()
	go func() {
		defer p.wg.Done()
		monitoring.Logf("[Visualiser] gRPC server listening on %s", lis.Addr())
		if err := p.server.Serve(lis); err != nil && p.running.Load() {
			monitoring.Logf("[Visualiser] gRPC server error: %v", err)
		}
	}()
	return nil
}

// Stop gracefully stops the gRPC server.
func (p *Publisher) Stop() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.stopCh)
	p.server.GracefulStop()
	p.wg.Wait()
	monitoring.Logf("[Visualiser] gRPC server stopped")
}

// Publish queues a frame for every connected client. It never blocks; a
// full queue drops the frame and returns false.
func (p *Publisher) Publish(frame *TargetFrame) bool {
	if !p.running.Load() || frame == nil {
		return false
	}
	select {
	case p.frameChan <- frame:
		p.frameCount.Add(1)
		return true
	default:
		dropped := p.droppedFrames.Add(1)
		monitoring.Logf("[Visualiser] DROPPED frame %d (total dropped: %d), channel full", frame.FrameIndex, dropped)
		return false
	}
}

// Name implements pipeline.Sink.
func (p *Publisher) Name() string { return "grpc" }

// Consume implements pipeline.Sink.
func (p *Publisher) Consume(_ context.Context, res *pipeline.FrameResult) error {
	if !p.running.Load() {
		return nil
	}
	if !p.Publish(FromResult(res, p.config.SensorID, p.config.Clock.Now())) {
		return ErrFrameDropped
	}
	return nil
}

// broadcastLoop distributes frames to all connected clients.
func (p *Publisher) broadcastLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			return
		case frame := <-p.frameChan:
			p.clientsMu.RLock()
			for _, client := range p.clients {
				select {
				case client.frameCh <- frame:
				default:
					// Slow client: drop for this client only.
					p.droppedFrames.Add(1)
				}
			}
			p.clientsMu.RUnlock()
		}
	}
}

// addClient registers a streaming client, failing when the limit is reached.
func (p *Publisher) addClient(includeGhosts bool) (*clientStream, error) {
	p.clientsMu.Lock()
	defer p.clientsMu.Unlock()
	if len(p.clients) >= p.config.MaxClients {
		return nil, fmt.Errorf("client limit %d reached", p.config.MaxClients)
	}
	client := &clientStream{
		id:            fmt.Sprintf("grpc-%d", p.nextID.Add(1)),
		includeGhosts: includeGhosts,
		frameCh:       make(chan *TargetFrame, p.config.QueueSize),
	}
	p.clients[client.id] = client
	n := p.clientCount.Add(1)
	monitoring.Logf("[Visualiser] Client connected: %s (total: %d)", client.id, n)
	return client, nil
}

// removeClient unregisters a streaming client.
func (p *Publisher) removeClient(id string) {
	p.clientsMu.Lock()
	defer p.clientsMu.Unlock()
	if _, ok := p.clients[id]; !ok {
		return
	}
	delete(p.clients, id)
	n := p.clientCount.Add(-1)
	monitoring.Logf("[Visualiser] Client disconnected: %s (remaining: %d)", id, n)
}

// Stats returns current publisher statistics.
func (p *Publisher) Stats() PublisherStats {
	return PublisherStats{
		FrameCount:    p.frameCount.Load(),
		DroppedFrames: p.droppedFrames.Load(),
		ClientCount:   p.clientCount.Load(),
		Running:       p.running.Load(),
	}
}

// PublisherStats contains publisher statistics.
type PublisherStats struct {
	FrameCount    uint64
	DroppedFrames uint64
	ClientCount   int32
	Running       bool
}
