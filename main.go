package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/brave-intl/bat-ads-redeemer/confirmations"
	"github.com/brave-intl/bat-ads-redeemer/kafka"
	"github.com/brave-intl/bat-ads-redeemer/metrics"
	"github.com/brave-intl/bat-ads-redeemer/redemption"
	"github.com/brave-intl/bat-ads-redeemer/server"
	"github.com/brave-intl/bat-ads-redeemer/transport"
	raven "github.com/getsentry/raven-go"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

var (
	errLog *log.Logger = log.New(os.Stderr, "[redeem] ", log.LstdFlags|log.Lshortfile)

	ErrNoWallet = errors.New("no wallet id specified")
	ErrNoTokens = errors.New("no tokens file specified")
)

// Config is read from the -config file, then overridden by flags and env.
type Config struct {
	Endpoint     confirmations.Endpoint `json:"endpoint"`
	WalletID     string                 `json:"wallet_id"`
	TokensPath   string                 `json:"tokens"`
	UserDataPath string                 `json:"user_data,omitempty"`
	Timeout      string                 `json:"timeout,omitempty"`
	MetricsAddr  string                 `json:"metrics_addr,omitempty"`
	KafkaTopic   string                 `json:"kafka_topic,omitempty"`
	KafkaBrokers []string               `json:"kafka_brokers,omitempty"`
	Server       *server.Server         `json:"server,omitempty"`
}

func defaultConfig() Config {
	return Config{
		Timeout: "30s",
		Server:  server.NewServer(),
	}
}

func loadConfigFile(filePath string) (Config, error) {
	conf := defaultConfig()
	data, err := ioutil.ReadFile(filePath)
	if err != nil {
		return conf, err
	}
	err = json.Unmarshal(data, &conf)
	if err != nil {
		return conf, err
	}
	if conf.Server == nil {
		conf.Server = defaultConfig().Server
	}
	return conf, nil
}

// loadEnvFile loads variables from path if it exists. Variables already set in
// the environment win.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	return godotenv.Load(path)
}

// applyEnv overrides conf with any of the supported environment variables and
// validates the environment name.
func applyEnv(conf *Config) error {
	environment := string(conf.Endpoint.Environment)
	if env := os.Getenv("ENV"); env != "" && env != "local" {
		environment = env
	}
	parsed, err := confirmations.ParseEnvironment(environment)
	if err != nil {
		return err
	}
	conf.Endpoint.Environment = parsed

	if host := os.Getenv("ADS_SERVER_HOST"); host != "" {
		conf.Endpoint.HostOverride = host
	}
	if port := os.Getenv("PORT"); port != "" {
		if portNumber, err := strconv.Atoi(port); err == nil {
			conf.Server.ListenPort = portNumber
		}
	}
	if brokers := kafka.BrokersFromEnv(); len(brokers) > 0 {
		conf.KafkaBrokers = brokers
	}
	if topic := os.Getenv("REDEMPTION_PRODUCER_TOPIC"); topic != "" {
		conf.KafkaTopic = topic
	}
	return nil
}

func readTokens(path string) ([]redemption.UnblindedPaymentToken, error) {
	if path == "" {
		return nil, ErrNoTokens
	}
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tokens []redemption.UnblindedPaymentToken
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, fmt.Errorf("could not decode tokens file %s: %w", path, err)
	}
	return tokens, nil
}

func readUserData(path string) (redemption.UserData, error) {
	if path == "" {
		return nil, nil
	}
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var userData redemption.UserData
	if err := json.Unmarshal(data, &userData); err != nil {
		return nil, fmt.Errorf("could not decode user data file %s: %w", path, err)
	}
	return userData, nil
}

// buildRequest builds the redemption request described by conf.
func buildRequest(conf Config) (*redemption.URLRequest, error) {
	if conf.WalletID == "" {
		return nil, ErrNoWallet
	}
	tokens, err := readTokens(conf.TokensPath)
	if err != nil {
		return nil, err
	}
	userData, err := readUserData(conf.UserDataPath)
	if err != nil {
		return nil, err
	}

	builder, err := redemption.NewURLRequestBuilder(conf.Endpoint, redemption.Wallet{ID: conf.WalletID}, tokens, userData)
	if err != nil {
		return nil, err
	}
	return builder.Build()
}

func writeJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func run(ctx context.Context, conf Config, send, publish bool, logger *zerolog.Logger) error {
	request, err := buildRequest(conf)
	if err != nil {
		return err
	}
	logger.Info().Str("url", request.URL).Msg("Built redemption request")

	if publish {
		publisher, err := kafka.NewPublisher(conf.KafkaBrokers, conf.KafkaTopic, logger)
		if err != nil {
			return err
		}
		defer publisher.Close()
		if err := publisher.Publish(ctx, request); err != nil {
			return err
		}
	}

	if !send {
		return writeJSON(os.Stdout, request)
	}

	timeout, err := time.ParseDuration(conf.Timeout)
	if err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	response, err := transport.New(timeout, logger).Send(ctx, request)
	if response != nil {
		fmt.Fprintf(os.Stdout, "%d %s\n", response.StatusCode, response.Body)
	}
	return err
}

func fatal(err error) {
	raven.CaptureErrorAndWait(err, nil)
	errLog.Fatal(err)
}

func main() {
	var configFile, envFile string
	var err error
	var send, publish, serve bool
	conf := defaultConfig()

	flag.StringVar(&configFile, "config", "", "local config file for development (overrides cli options)")
	flag.StringVar(&envFile, "env_file", ".env", "file with environment variables to load when present")
	flag.StringVar(&conf.WalletID, "wallet", "", "payment id of the wallet redeeming the tokens")
	flag.StringVar(&conf.TokensPath, "tokens", "", "path to a json file with the unblinded payment tokens")
	flag.StringVar(&conf.UserDataPath, "user_data", "", "path to a json file with user data merged into the body")
	flag.StringVar((*string)(&conf.Endpoint.Environment), "env", string(confirmations.Production), "confirmations server environment")
	flag.StringVar(&conf.Endpoint.HostOverride, "host", "", "confirmations server host, overrides -env")
	flag.StringVar(&conf.Timeout, "timeout", conf.Timeout, "timeout for sending the request")
	flag.StringVar(&conf.MetricsAddr, "metrics_addr", "", "address to serve prometheus metrics on")
	flag.BoolVar(&send, "send", false, "send the request instead of printing it")
	flag.BoolVar(&publish, "publish", false, "publish the request to REDEMPTION_PRODUCER_TOPIC")
	flag.BoolVar(&serve, "serve", false, "run the verification server")
	flag.IntVar(&conf.Server.ListenPort, "p", conf.Server.ListenPort, "port the verification server listens on")
	flag.Parse()

	if err = loadEnvFile(envFile); err != nil {
		errLog.Fatal(err)
	}

	raven.SetDSN(os.Getenv("SENTRY_DSN"))

	if configFile != "" {
		conf, err = loadConfigFile(configFile)
		if err != nil {
			fatal(err)
			return
		}
	}

	if err = applyEnv(&conf); err != nil {
		fatal(err)
		return
	}

	if conf.MetricsAddr != "" {
		go metrics.RegisterAndListen(conf.MetricsAddr, server.Version, errLog)
	}

	if serve {
		ctx, logrusLogger := server.SetupLogger(context.Background())
		if err = conf.Server.ListenAndServe(ctx, logrusLogger); err != nil {
			fatal(err)
		}
		return
	}

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if err = run(context.Background(), conf, send, publish, &logger); err != nil {
		fatal(err)
	}
}
