package manager

import (
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"imaged/internal/catalog"
	"imaged/internal/loader"
)

// Busy policies for slot transitions.
const (
	PolicyBlock = "block"
	PolicyFail  = "fail"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultMaxWait       = 30 * time.Second
	defaultSteps         = 25
	defaultGuidance      = 7.5
	defaultSize          = 512
	defaultMaxResolution = 2048
)

// GenerationDefaults fill in unset generation parameters.
type GenerationDefaults struct {
	Steps         int
	Guidance      float64
	Width         int
	Height        int
	MaxResolution int
}

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	Catalog *catalog.Catalog
	// Dispatcher defaults to one with no plugins over Backend.
	Dispatcher *loader.Dispatcher
	// Backend defaults to loader.InertBackend.
	Backend loader.Backend
	Device  loader.Device
	// BusyPolicy is PolicyBlock (default) or PolicyFail.
	BusyPolicy string
	// DrainTimeout bounds how long an unload waits for in-flight leases.
	// Zero waits indefinitely.
	DrainTimeout time.Duration
	// MaxWait bounds generation admission.
	MaxWait    time.Duration
	Generation GenerationDefaults
	Logger     zerolog.Logger
	Publisher  EventPublisher
}

// NewWithConfig constructs a Manager from ManagerConfig.
func NewWithConfig(cfg ManagerConfig) *Manager {
	m := &Manager{
		state:        StateUnloaded,
		catalog:      cfg.Catalog,
		dispatcher:   cfg.Dispatcher,
		backend:      cfg.Backend,
		device:       cfg.Device,
		busyPolicy:   cfg.BusyPolicy,
		drainTimeout: cfg.DrainTimeout,
		maxWait:      cfg.MaxWait,
		gen:          cfg.Generation,
		log:          cfg.Logger,
		publisher:    cfg.Publisher,
		sem:          semaphore.NewWeighted(1),
		genCh:        make(chan struct{}, 1),
	}
	if m.catalog == nil {
		m.catalog = catalog.New(catalog.Config{Root: "."})
	}
	if m.backend == nil {
		m.backend = loader.InertBackend{}
	}
	if m.dispatcher == nil {
		m.dispatcher = loader.NewDispatcher(nil, m.backend)
	}
	if m.device.Name == "" {
		m.device = loader.CPU()
	}
	if m.busyPolicy != PolicyFail {
		m.busyPolicy = PolicyBlock
	}
	if m.drainTimeout < 0 {
		m.drainTimeout = 0
	}
	if m.maxWait <= 0 {
		m.maxWait = defaultMaxWait
	}
	if m.gen.Steps <= 0 {
		m.gen.Steps = defaultSteps
	}
	if m.gen.Guidance <= 0 {
		m.gen.Guidance = defaultGuidance
	}
	if m.gen.Width <= 0 {
		m.gen.Width = defaultSize
	}
	if m.gen.Height <= 0 {
		m.gen.Height = defaultSize
	}
	if m.gen.MaxResolution <= 0 {
		m.gen.MaxResolution = defaultMaxResolution
	}
	if m.publisher == nil {
		m.publisher = noopPublisher{}
	}
	m.startTime = time.Now()
	setSlotState(StateUnloaded)
	artifactsGauge.Set(float64(m.catalog.Len()))
	return m
}
