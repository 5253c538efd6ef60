package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	crypto "github.com/brave-intl/challenge-bypass-ristretto-ffi"
	"github.com/go-chi/chi"
	"github.com/go-chi/httplog"
	cache "github.com/patrickmn/go-cache"
	"github.com/pressly/lg"
	"github.com/sirupsen/logrus"
)

var (
	Version        = "dev"
	maxRequestSize = int64(200 * 1024) // ~1kB per payment credential

	defaultRedemptionTTL = 24 * time.Hour

	ErrNoSigningKeys = errors.New("server config does not contain a signing key")
)

// Server verifies redemption requests the way the confirmations server does.
// It is meant for local development and end to end tests.
type Server struct {
	BindAddress   string   `json:"bind_address,omitempty"`
	ListenPort    int      `json:"listen_port,omitempty"`
	MaxTokens     int      `json:"max_tokens,omitempty"`
	SigningKeys   []string `json:"signing_keys"`
	RedemptionTTL string   `json:"redemption_ttl,omitempty"`

	Logger *logrus.Logger `json:"-"`

	keys        []*crypto.SigningKey
	redemptions *cache.Cache
	redeemLock  sync.Mutex
}

// NewServer returns a Server with the default listen address and limits.
func NewServer() *Server {
	return &Server{
		BindAddress: "127.0.0.1",
		ListenPort:  2416,
		MaxTokens:   100,
	}
}

// LoadSigningKeys decodes the base64 signing keys from the config.
func (c *Server) LoadSigningKeys() error {
	for i, encoded := range c.SigningKeys {
		key := &crypto.SigningKey{}
		if err := key.UnmarshalText([]byte(encoded)); err != nil {
			return fmt.Errorf("could not decode signing key %d: %w", i, err)
		}
		c.AddSigningKey(key)
	}
	if len(c.keys) == 0 {
		return ErrNoSigningKeys
	}
	return nil
}

// AddSigningKey accepts tokens issued with key.
func (c *Server) AddSigningKey(key *crypto.SigningKey) {
	c.keys = append(c.keys, key)
}

func (c *Server) initRedemptions() error {
	if c.redemptions != nil {
		return nil
	}
	ttl := defaultRedemptionTTL
	if c.RedemptionTTL != "" {
		var err error
		ttl, err = time.ParseDuration(c.RedemptionTTL)
		if err != nil {
			return fmt.Errorf("invalid redemption_ttl: %w", err)
		}
	}
	c.redemptions = cache.New(ttl, ttl/2)
	return nil
}

// SetupLogger returns a logrus logger configured from LOG_LEVEL and stores it
// in the context.
func SetupLogger(ctx context.Context) (context.Context, *logrus.Logger) {
	logger := logrus.New()
	logger.Formatter = &logrus.JSONFormatter{}
	logger.Out = os.Stdout

	level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	// Redirect output from the standard logging package "log"
	lg.RedirectStdlogOutput(logger)
	lg.DefaultLogger = logger

	return context.WithValue(ctx, loggerKey{}, logger), logger
}

type loggerKey struct{}

func (c *Server) setupRouter(ctx context.Context, logger *logrus.Logger) (context.Context, *chi.Mux) {
	c.Logger = logger
	if err := c.initRedemptions(); err != nil {
		logger.Panic(err)
	}

	requestLogger := httplog.NewLogger("redemption-server", httplog.Options{
		JSON:    os.Getenv("ENV") != "local",
		Concise: true,
	})

	r := chi.NewRouter()
	r.Use(httplog.RequestLogger(requestLogger))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("."))
	})
	r.Mount("/v2/confirmation/payment", c.paymentRouterV2())

	return ctx, r
}

// ListenAndServe loads the keys and serves until the listener fails.
func (c *Server) ListenAndServe(ctx context.Context, logger *logrus.Logger) error {
	if len(c.keys) == 0 {
		if err := c.LoadSigningKeys(); err != nil {
			return err
		}
	}
	if err := c.initRedemptions(); err != nil {
		return err
	}

	serverCtx, r := c.setupRouter(ctx, logger)

	addr := fmt.Sprintf("%s:%d", c.BindAddress, c.ListenPort)
	srv := http.Server{
		Addr:         addr,
		Handler:      chi.ServerBaseContext(serverCtx, r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	logger.Infof("verification server %s listening on %s", Version, addr)
	return srv.ListenAndServe()
}
