package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/berfenger/pillbox2mqtt/internal/alarm"
	"github.com/berfenger/pillbox2mqtt/internal/config"
	"github.com/berfenger/pillbox2mqtt/internal/discovery"
	"github.com/berfenger/pillbox2mqtt/internal/medication"

	"github.com/asynkron/protoactor-go/actor"
	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"
)

type Server struct {
	port           uint
	httpLog        bool
	rootContext    *actor.RootContext
	masterActor    *actor.PID
	requestTimeout time.Duration
	hub            *Hub
	alarms         *alarm.Store
	medications    *medication.Store
	location       *time.Location
	browser        discovery.Browser
	logger         *zap.Logger
}

// Deps groups the collaborators owned by main.
type Deps struct {
	RootContext *actor.RootContext
	MasterActor *actor.PID
	Hub         *Hub
	Alarms      *alarm.Store
	Medications *medication.Store
	// nil when discovery is disabled
	Browser discovery.Browser
	Logger  *zap.Logger
}

func NewServer(cfg config.Config, deps Deps) *http.Server {
	NewServer := newServer(cfg, deps)

	// Declare Server config
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", NewServer.port),
		Handler:      NewServer.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return server
}

func newServer(cfg config.Config, deps Deps) *Server {
	loc, err := time.LoadLocation(cfg.Alarms.Timezone)
	if err != nil {
		loc = time.Local
	}
	timeout := cfg.Device.Timeout()
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Server{
		port:        cfg.Port,
		httpLog:     cfg.HttpLog,
		rootContext: deps.RootContext,
		masterActor: deps.MasterActor,
		// a command plus its follow-up probe
		requestTimeout: 2*timeout + 2*time.Second,
		hub:            deps.Hub,
		alarms:         deps.Alarms,
		medications:    deps.Medications,
		location:       loc,
		browser:        deps.Browser,
		logger:         deps.Logger.With(zap.String("component", "http")),
	}
}
