/*
Package container provides dependency injection capabilities for the coloring book backend.

This package implements a simple dependency injection container that manages
the batch pipeline services and their lifecycle, replacing hidden module-level
singletons with explicitly constructed dependencies.
*/
package container

import (
	"fmt"
	"sync"

	"github.com/okanyucel2/coloring-book-generator-sub000/handlers"
	"github.com/okanyucel2/coloring-book-generator-sub000/progress"
	"github.com/okanyucel2/coloring-book-generator-sub000/queue"
	"github.com/okanyucel2/coloring-book-generator-sub000/store"
	"github.com/okanyucel2/coloring-book-generator-sub000/worker"
	"github.com/sirupsen/logrus"
)

// Container holds all service dependencies
type Container struct {
	mu         sync.RWMutex
	services   map[string]interface{}
	factories  map[string]func() (interface{}, error)
	singletons map[string]interface{}

	jobQueue    *queue.Queue
	hub         *progress.Hub
	batchWorker *worker.Worker
}

// NewContainer creates a new dependency injection container
func NewContainer() *Container {
	return &Container{
		services:   make(map[string]interface{}),
		factories:  make(map[string]func() (interface{}, error)),
		singletons: make(map[string]interface{}),
	}
}

// Register registers a service instance
func (c *Container) Register(name string, service interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services[name] = service
}

// RegisterFactory registers a factory function for lazy service creation
func (c *Container) RegisterFactory(name string, factory func() (interface{}, error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factories[name] = factory
}

// RegisterSingleton registers a singleton service
func (c *Container) RegisterSingleton(name string, service interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.singletons[name] = service
}

// Get retrieves a service by name
func (c *Container) Get(name string) (interface{}, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if service, exists := c.services[name]; exists {
		return service, nil
	}

	if singleton, exists := c.singletons[name]; exists {
		return singleton, nil
	}

	if factory, exists := c.factories[name]; exists {
		service, err := factory()
		if err != nil {
			return nil, fmt.Errorf("failed to create service %s: %v", name, err)
		}
		return service, nil
	}

	return nil, fmt.Errorf("service %s not found", name)
}

// GetLogger retrieves the logger service
func (c *Container) GetLogger() (*logrus.Logger, error) {
	service, err := c.Get("logger")
	if err != nil {
		return nil, err
	}
	logger, ok := service.(*logrus.Logger)
	if !ok {
		return nil, fmt.Errorf("logger service is not of expected type")
	}
	return logger, nil
}

// GetQueue retrieves the job queue service
func (c *Container) GetQueue() (*queue.Queue, error) {
	service, err := c.Get("queue")
	if err != nil {
		return nil, err
	}
	q, ok := service.(*queue.Queue)
	if !ok {
		return nil, fmt.Errorf("queue service is not of expected type")
	}
	return q, nil
}

// GetHub retrieves the progress hub service
func (c *Container) GetHub() (*progress.Hub, error) {
	service, err := c.Get("hub")
	if err != nil {
		return nil, err
	}
	hub, ok := service.(*progress.Hub)
	if !ok {
		return nil, fmt.Errorf("hub service is not of expected type")
	}
	return hub, nil
}

// GetWorker retrieves the batch worker service
func (c *Container) GetWorker() (*worker.Worker, error) {
	service, err := c.Get("worker")
	if err != nil {
		return nil, err
	}
	w, ok := service.(*worker.Worker)
	if !ok {
		return nil, fmt.Errorf("worker service is not of expected type")
	}
	return w, nil
}

// GetHandler retrieves the handler service
func (c *Container) GetHandler() (*handlers.Handler, error) {
	service, err := c.Get("handler")
	if err != nil {
		return nil, err
	}
	handler, ok := service.(*handlers.Handler)
	if !ok {
		return nil, fmt.Errorf("handler service is not of expected type")
	}
	return handler, nil
}

// InitializeServices initializes all core services with proper dependencies
func (c *Container) InitializeServices(jobQueue *queue.Queue, hub *progress.Hub, batchWorker *worker.Worker, artifacts *store.ArtifactManager, logger *logrus.Logger) error {
	c.jobQueue = jobQueue
	c.hub = hub
	c.batchWorker = batchWorker

	c.RegisterSingleton("logger", logger)
	c.RegisterSingleton("queue", jobQueue)
	c.RegisterSingleton("hub", hub)
	c.RegisterSingleton("worker", batchWorker)
	c.RegisterSingleton("artifacts", artifacts)

	c.RegisterFactory("handler", func() (interface{}, error) {
		return handlers.NewHandler(jobQueue, hub, artifacts, logger), nil
	})

	return nil
}

// Start launches the background services: queue reaper, hub reaper, and the
// batch worker loop.
func (c *Container) Start() {
	if c.jobQueue != nil {
		c.jobQueue.Start()
	}
	if c.hub != nil {
		c.hub.Start()
	}
	if c.batchWorker != nil {
		c.batchWorker.Start()
	}
}

// Close gracefully stops the background services in reverse start order
func (c *Container) Close() error {
	if c.batchWorker != nil {
		c.batchWorker.Stop()
	}
	if c.hub != nil {
		c.hub.Stop()
	}
	if c.jobQueue != nil {
		c.jobQueue.Stop()
	}
	return nil
}
