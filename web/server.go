package web

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/openvolt/lifemon/lifepower"
	"github.com/rkjdid/util"

	_ "net/http/pprof"
)

type ServerConfig struct {
	ListenAddr        string
	Verbose           bool
	WebsocketInterval util.Duration

	version string
}

var DefaultServerConfig = ServerConfig{
	ListenAddr:        "localhost:3737",
	WebsocketInterval: util.Duration(2 * time.Second),
}

// Server exposes one polled battery to the monitoring host as a small
// JSON/websocket API.
type Server struct {
	Config *Config
	Poller *lifepower.Poller

	cfgPath    string
	router     *mux.Router
	wsUpgrader *websocket.Upgrader
}

// Settings is the identity blob served on /settings.
type Settings struct {
	Type            string
	Address         int
	HardwareVersion string
	FirmwareVersion string
	Online          bool
}

func NewServer(version string, poller *lifepower.Poller, cfg *Config, cfgPath string) *Server {
	if cfg == nil {
		cfg = &DefaultConfig
	}
	cfg.Web.version = version
	srv := &Server{
		Config:  cfg,
		Poller:  poller,
		cfgPath: cfgPath,
	}
	srv.wsUpgrader = &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}

	verbose := srv.Config.Web.Verbose
	srv.router = mux.NewRouter()

	// pprof handlers
	srv.router.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)

	// shh
	srv.router.Handle("/favicon.ico", http.HandlerFunc(NilHandler))

	// register endpoints
	srv.router.Handle("/websocket",
		Logger(http.HandlerFunc(srv.Websocket), "ws-snapshot", verbose)).
		Methods("GET", "HEAD")
	srv.router.Handle("/config",
		Logger(http.HandlerFunc(srv.ConfigHandler), "config", verbose)).
		Methods("GET", "POST", "HEAD")
	srv.router.Handle("/snapshot",
		Logger(http.HandlerFunc(srv.Snapshot), "snapshot", verbose)).
		Methods("GET", "HEAD")
	srv.router.Handle("/settings",
		Logger(http.HandlerFunc(srv.Settings), "settings", verbose)).
		Methods("GET", "HEAD")
	srv.router.Handle("/history",
		Logger(http.HandlerFunc(srv.History), "history", verbose)).
		Methods("GET", "HEAD")
	srv.router.Handle("/",
		Logger(http.HandlerFunc(srv.Home), "web", verbose)).
		Methods("GET", "HEAD")
	return srv
}

// Router exposes the underlying mux, mostly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// StartServer serves a Server built from provided version, Poller & Config.
// It either doesn't return or panics (http.Listen)
func StartServer(version string, poller *lifepower.Poller, cfg *Config, cfgPath string) {
	srv := NewServer(version, poller, cfg, cfgPath)
	httpServer := &http.Server{
		Handler:      srv.router,
		Addr:         srv.Config.Web.ListenAddr,
		WriteTimeout: 4 * time.Second,
		ReadTimeout:  4 * time.Second,
	}
	if err := httpServer.ListenAndServe(); err != nil {
		log.Fatal("http.ListenAndServe:", err)
	}
}

// Websocket pushes a telemetry snapshot every WebsocketInterval
// (?poll= overrides) until the peer goes away.
func (s *Server) Websocket(w http.ResponseWriter, r *http.Request) {
	var interval = time.Duration(s.Config.Web.WebsocketInterval)
	if v, ok := r.URL.Query()["poll"]; ok {
		if d, err := time.ParseDuration(v[0]); err == nil {
			interval = d
		}
	}
	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("error subscribing to websocket:", err)
		http.Error(w, "error subscribing to websocket", 500)
		return
	}

	if s.Config.Web.Verbose {
		log.Printf("websocket - subscription from %s (pollrate: %s)", conn.RemoteAddr(), interval)
	}

	go func(conn *websocket.Conn, s *Server) {
		for {
			sn, _ := s.Poller.Driver().Snapshot()
			if err := conn.WriteJSON(sn); err != nil {
				if s.Config.Web.Verbose {
					log.Printf("websocket - lost connection to %s", conn.RemoteAddr())
				}
				conn.Close()
				return
			}
			<-time.After(interval)
		}
	}(conn, s)
}

// ConfigHandler updates & persists the root config on POST (json encoded)
// and returns the current config on GET. Serial and poller changes take
// effect on next daemon start.
func (s *Server) ConfigHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		// copy current config, this allows for setting only a subset of the whole config
		cfg := *s.Config
		err := json.NewDecoder(r.Body).Decode(&cfg)
		if err != nil {
			log.Println("error decoding json:", err)
			http.Error(w, "couldn't decode provided json", http.StatusUnprocessableEntity)
			return
		}
		*s.Config = cfg

		// save newly set config
		err = util.WriteTomlFile(s.Config, s.cfgPath)
		if err != nil {
			log.Println("error writing config:", err)
		}
	case http.MethodGet:
	default:
		http.Error(w, fmt.Sprintf("unexpected http-method (%s)", r.Method), http.StatusMethodNotAllowed)
		return
	}

	w.WriteHeader(200)
	_ = json.NewEncoder(w).Encode(s.Config)
}

// Snapshot encodes the last good telemetry as json to w.
func (s *Server) Snapshot(w http.ResponseWriter, r *http.Request) {
	sn, ok := s.Poller.Driver().Snapshot()
	if !ok {
		http.Error(w, "no telemetry yet", http.StatusServiceUnavailable)
		return
	}
	_ = json.NewEncoder(w).Encode(sn)
}

// Settings encodes battery identity & versions as json to w.
func (s *Server) Settings(w http.ResponseWriter, r *http.Request) {
	drv := s.Poller.Driver()
	_ = json.NewEncoder(w).Encode(Settings{
		Type:            drv.Type(),
		Address:         int(drv.Address()),
		HardwareVersion: drv.HardwareVersion(),
		FirmwareVersion: drv.FirmwareVersion(),
		Online:          drv.Online(),
	})
}

// History encodes retained snapshots as json to w, oldest first.
func (s *Server) History(w http.ResponseWriter, r *http.Request) {
	_ = json.NewEncoder(w).Encode(s.Poller.History())
}

// Home lists available endpoints.
func (s *Server) Home(w http.ResponseWriter, r *http.Request) {
	_ = json.NewEncoder(w).Encode(map[string]string{
		"version":   s.Config.Web.version,
		"snapshot":  "/snapshot",
		"settings":  "/settings",
		"history":   "/history",
		"config":    "/config",
		"websocket": "/websocket",
	})
}
