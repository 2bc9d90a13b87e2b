// Package callback serves the local HTTP endpoint the Signer companion app
// returns to. A signature posted here is handed to the dispatcher as if the
// deeplink-return handler had fired.
package callback

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	logger "github.com/multiversx/mx-chain-logger-go"
	"github.com/tonsigner/tonsigner/internal/signer"
)

var log = logger.GetOrCreate("callback")

const shutdownTimeout = 5 * time.Second

var (
	ErrNilSink          = errors.New("nil signer result sink")
	ErrEmptyListenAddr  = errors.New("empty listen address")
	ErrServerNotStarted = errors.New("server not started")
)

// ResultSink receives companion-app signatures.
type ResultSink interface {
	SetSignerResult(hexSignature string)
}

// ArgsWebServer is the DTO used to create a WebServer.
type ArgsWebServer struct {
	ListenAddress  string
	Sink           ResultSink
	AllowedOrigins []string
}

// WebServer is the gin server behind the deeplink return URI.
type WebServer struct {
	listenAddress string
	sink          ResultSink
	engine        *gin.Engine

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
}

type resultBody struct {
	Signature string `json:"signature"`
	Link      string `json:"link"`
}

// NewWebServer validates args and wires the routes.
func NewWebServer(args ArgsWebServer) (*WebServer, error) {
	if args.Sink == nil {
		return nil, ErrNilSink
	}
	if args.ListenAddress == "" {
		return nil, ErrEmptyListenAddr
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.New(corsConfig(args.AllowedOrigins)))

	ws := &WebServer{
		listenAddress: args.ListenAddress,
		sink:          args.Sink,
		engine:        engine,
	}
	engine.GET("/health", ws.health)
	engine.GET("/publish", ws.publish)
	engine.POST("/signer/result", ws.signerResult)
	return ws, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

// Handler exposes the router, mainly for tests.
func (ws *WebServer) Handler() http.Handler {
	return ws.engine
}

func (ws *WebServer) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// publish handles GET /publish?sign=<hex>, the path of tonkeeper://publish.
func (ws *WebServer) publish(c *gin.Context) {
	ws.deliver(c, c.Query("sign"))
}

// signerResult handles POST /signer/result with either a raw signature or
// the full return link.
func (ws *WebServer) signerResult(c *gin.Context) {
	var body resultBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json body"})
		return
	}

	sig := body.Signature
	if sig == "" && body.Link != "" {
		parsed, err := signer.ParsePublishLink(body.Link)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		sig = parsed
	}
	ws.deliver(c, sig)
}

func (ws *WebServer) deliver(c *gin.Context, sig string) {
	if err := signer.ValidateSignatureHex(sig); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	log.Debug("signer result received", "remote", c.ClientIP())
	ws.sink.SetSignerResult(sig)
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}

// StartHttpServer binds the listen address and serves in the background.
func (ws *WebServer) StartHttpServer() error {
	ln, err := net.Listen("tcp", ws.listenAddress)
	if err != nil {
		return err
	}

	srv := &http.Server{Handler: ws.engine, ReadHeaderTimeout: 10 * time.Second}
	ws.mu.Lock()
	ws.httpServer, ws.listener = srv, ln
	ws.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("callback server stopped", "error", err)
		}
	}()
	log.Info("callback server listening", "address", ln.Addr().String())
	return nil
}

// Addr is the bound address once started.
func (ws *WebServer) Addr() string {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.listener == nil {
		return ""
	}
	return ws.listener.Addr().String()
}

// Close shuts the server down gracefully.
func (ws *WebServer) Close() error {
	ws.mu.Lock()
	srv := ws.httpServer
	ws.httpServer = nil
	ws.mu.Unlock()

	if srv == nil {
		return ErrServerNotStarted
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
