// Package engine wires the scan session to the republishers and the config,
// and reports what happens on an EventBus. The TUI and headless modes are thin
// consumers of it.
package engine

import (
	"sync"

	"signaltap/backend"
	"signaltap/config"
	"signaltap/kafka"
	"signaltap/mqtt"
	"signaltap/plcman"
	"signaltap/valkey"
)

// LogFunc is the logging callback signature. Engine never imports the tui package.
type LogFunc func(format string, args ...interface{})

// Config holds the parameters needed to create an Engine.
type Config struct {
	AppConfig  *config.Config
	ConfigPath string // empty disables saving
	// Client overrides the backend client built from AppConfig.API.
	Client        plcman.Client
	ManagerOpts   []plcman.Option
	LogFunc       LogFunc
	StartServices bool // connect enabled MQTT/Valkey/Kafka outputs on Start
}

// Engine centralizes session orchestration and republishing.
type Engine struct {
	cfg        *config.Config
	configPath string
	logFn      LogFunc
	client     plcman.Client
	opts       []plcman.Option
	services   bool

	plcMan    *plcman.Manager
	mqttMgr   *mqtt.Manager
	valkeyMgr *valkey.Manager
	kafkaMgr  *kafka.Manager

	Events *EventBus

	watcher  *sessionWatcher
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a new Engine. Call Start() to create managers and wiring.
func New(c Config) *Engine {
	logFn := c.LogFunc
	if logFn == nil {
		logFn = func(string, ...interface{}) {}
	}
	cfg := c.AppConfig
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	client := c.Client
	if client == nil {
		client = backend.NewClient(cfg.API.BaseURL, cfg.API.Timeout)
	}
	return &Engine{
		cfg:        cfg,
		configPath: c.ConfigPath,
		logFn:      logFn,
		client:     client,
		opts:       c.ManagerOpts,
		services:   c.StartServices,
		Events:     NewEventBus(),
		watcher:    &sessionWatcher{},
	}
}

// Start creates all managers, wires callbacks, and auto-starts enabled services.
func (e *Engine) Start() {
	cfg := e.cfg

	opts := append([]plcman.Option{plcman.WithPollRate(cfg.PollRate)}, e.opts...)
	e.plcMan = plcman.NewManager(e.client, opts...)
	if !cfg.Target.IsZero() {
		e.plcMan.SetTarget(plcman.Target{Address: cfg.Target.Address, Slot: cfg.Target.Slot})
	}

	e.mqttMgr = mqtt.NewManager()
	e.mqttMgr.LoadFromConfig(cfg.MQTT)

	e.valkeyMgr = valkey.NewManager()
	e.valkeyMgr.LoadFromConfig(cfg.Valkey)

	e.kafkaMgr = kafka.NewManager()
	e.kafkaMgr.LoadFromConfig(cfg.Kafka)

	setupSessionHandlers(e)

	if e.services {
		e.StartServices()
	}
}

// StartServices connects every enabled republisher in the background.
func (e *Engine) StartServices() {
	e.wg.Add(3)
	go func() {
		defer e.wg.Done()
		if n := e.mqttMgr.StartAll(); n > 0 {
			e.logFn("MQTT: %d publisher(s) connected", n)
			e.emit(EventMQTTStarted, ServiceEvent{Count: n})
		}
	}()
	go func() {
		defer e.wg.Done()
		if n := e.valkeyMgr.StartAll(); n > 0 {
			e.logFn("Valkey: %d publisher(s) connected", n)
			e.emit(EventValkeyStarted, ServiceEvent{Count: n})
		}
	}()
	go func() {
		defer e.wg.Done()
		if n := e.kafkaMgr.StartAll(); n > 0 {
			e.logFn("Kafka: %d cluster(s) connected", n)
			e.emit(EventKafkaConnected, ServiceEvent{Count: n})
		}
	}()
}

// Stop shuts down the session and all republishers.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		if e.plcMan != nil {
			e.plcMan.Close()
		}
		e.wg.Wait()

		if e.mqttMgr != nil {
			e.stopOutputs()
		}
	})
}

func (e *Engine) GetConfig() *config.Config    { return e.cfg }
func (e *Engine) GetConfigPath() string         { return e.configPath }
func (e *Engine) GetPLCMan() *plcman.Manager    { return e.plcMan }
func (e *Engine) GetMQTTMgr() *mqtt.Manager     { return e.mqttMgr }
func (e *Engine) GetValkeyMgr() *valkey.Manager { return e.valkeyMgr }
func (e *Engine) GetKafkaMgr() *kafka.Manager   { return e.kafkaMgr }

func (e *Engine) emit(t EventType, payload interface{}) {
	e.Events.Emit(Event{Type: t, Payload: payload})
}
