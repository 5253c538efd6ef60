package metrics

import (
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	GoVersion string = runtime.Version()
)

var (
	CounterRequestsBuilt = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "redemption_requests_built",
		Help: "Total number of redemption requests built",
	})
	CounterCredentialErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "redemption_credential_errors",
		Help: "Total number of payment credentials that failed, by cryptographic operation",
	}, []string{"op"})
	CounterRequestsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "redemption_requests_sent",
		Help: "Total number of redemption requests sent, by response status code",
	}, []string{"code"})
	CounterSendErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "redemption_send_errors",
		Help: "Total number of redemption requests that could not be sent",
	})
	CounterPublished = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "redemption_requests_published",
		Help: "Total number of redemption requests written to kafka",
	})
	CounterPublishErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "redemption_publish_errors",
		Help: "Total number of failed kafka writes",
	})
	CounterRedeemTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "total_redeem",
		Help: "Total number of payment credentials received by the verification server",
	})
	CounterRedeemSuccess = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "total_redeem_success",
		Help: "Total number of successful token redemptions",
	})
	CounterRedeemErrorFormat = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "total_redeem_error_format",
		Help: "Total number of errors due to malformed redemption requests",
	})
	CounterRedeemErrorVerify = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "total_redeem_error_verify",
		Help: "Total number of failed verification attempts of redeemed tokens",
	})
	CounterDoubleSpend = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "total_double_spend",
		Help: "Total number of double spend detections",
	})
	BuildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "build_info",
			Help: "A metric with a constant '1' value labeled by version, and goversion from which the redeemer was built.",
		},
		[]string{"version", "goversion"},
	)
)

// Collectors returns every metric defined here.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		CounterRequestsBuilt, CounterCredentialErrors, CounterRequestsSent,
		CounterSendErrors, CounterPublished, CounterPublishErrors,
		CounterRedeemTotal, CounterRedeemSuccess, CounterRedeemErrorFormat,
		CounterRedeemErrorVerify, CounterDoubleSpend, BuildInfo,
	}
}

// NewServeMux returns a mux serving the metrics in reg along with pprof and
// version endpoints.
func NewServeMux(reg *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	mux.HandleFunc("/debug/version", func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprintf(w, "GoVersion: %s", GoVersion)
	})
	return mux
}

// RegisterAndListen serves the metrics on listenAddr. It blocks.
func RegisterAndListen(listenAddr, version string, errLog *log.Logger) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(Collectors()...)
	BuildInfo.WithLabelValues(version, GoVersion).Set(1)

	server := http.Server{
		Handler:  NewServeMux(reg),
		Addr:     listenAddr,
		ErrorLog: errLog,
	}

	errLog.Printf("metrics listening on %s", listenAddr)
	err := server.ListenAndServe()
	errLog.Printf("failed to serve metrics: %v", err)
}
