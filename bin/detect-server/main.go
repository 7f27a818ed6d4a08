package main

import (
	"context"
	"errors"
	"grayscale-detector/internal/detect"
	"grayscale-detector/internal/myhttp"
	"grayscale-detector/internal/pixel"
	"grayscale-detector/internal/report"
	"grayscale-detector/internal/retry"
	"grayscale-detector/internal/source"
	"grayscale-detector/internal/telemetry"
	"io"
	"io/fs"
	"log"
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/grafana/pyroscope-go"
	pyroscopepprof "github.com/grafana/pyroscope-go/http/pprof"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprometheus "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"golang.org/x/net/netutil"
	"golang.org/x/xerrors"
)

type Server struct {
	address                string
	terminationGracePeriod time.Duration
	lameduck               time.Duration
	keepAlive              bool
	maxConnections         int
	maxUploadSize          int64
	fetchTimeout           time.Duration
	retryMax               uint
	allowS3                bool
	pyroscopeEndpoint      string
}

func NewServer() *Server {
	return &Server{
		address:                envOrDefaultValue("ADDRESS", "0.0.0.0:8383"),
		terminationGracePeriod: envOrDefaultValue("TERMINATION_GRACE_PERIOD", 10*time.Second),
		lameduck:               envOrDefaultValue("LAMEDUCK", 1*time.Second),
		keepAlive:              envOrDefaultValue("HTTP_KEEPALIVE", true),
		maxConnections:         envOrDefaultValue("MAX_CONNECTIONS", 65532),
		maxUploadSize:          envOrDefaultValue("MAX_UPLOAD_SIZE", int64(32<<20)),
		fetchTimeout:           envOrDefaultValue("FETCH_TIMEOUT", 30*time.Second),
		retryMax:               envOrDefaultValue("RETRY_MAX", uint(2)),
		allowS3:                envOrDefaultValue("ALLOW_S3", false),
		pyroscopeEndpoint:      os.Getenv("PYROSCOPE_ENDPOINT"),
	}
}

func envOrDefaultValue[T any](key string, defaultValue T) T {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}

	switch any(defaultValue).(type) {
	case string:
		return any(value).(T)
	case int:
		if intValue, err := strconv.Atoi(value); err == nil {
			return any(intValue).(T)
		}
	case int64:
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return any(intValue).(T)
		}
	case uint:
		if uintValue, err := strconv.ParseUint(value, 10, 0); err == nil {
			return any(uint(uintValue)).(T)
		}
	case bool:
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return any(boolValue).(T)
		}
	case time.Duration:
		if durationValue, err := time.ParseDuration(value); err == nil {
			return any(durationValue).(T)
		}
	}

	return defaultValue
}

var Debug = envOrDefaultValue("DEBUG", false)

func (s *Server) Start(ctx context.Context) error {
	if s.pyroscopeEndpoint != "" {
		runtime.SetMutexProfileFraction(1)
		runtime.SetBlockProfileRate(1)

		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "detect-server",
			ServerAddress:   s.pyroscopeEndpoint,
			UploadRate:      60 * time.Second,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
				pyroscope.ProfileGoroutines,
			},
		})
		if err != nil {
			return xerrors.Errorf("failed to create profiler: %w", err)
		}
		defer func() {
			if err := profiler.Stop(); err != nil {
				slog.Error("failed to shutdown profiler", "error", err)
			}
		}()
	}

	shutdownTracing, err := telemetry.SetupTracing(ctx, "detect-server")
	if err != nil {
		return err
	}

	exporter, err := otelprometheus.New()
	if err != nil {
		return xerrors.Errorf("failed to create exporter: %w", err)
	}
	// NOTE: Gauge(UpDownCounter), Summary or Untyped does not support exemplars
	// https://github.com/prometheus/client_golang/blob/v1.20.4/prometheus/metric.go#L200
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter)).Meter("detect-server")

	logger, err := telemetry.NewLogger(os.Stderr, slog.LevelInfo, Debug)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	config := source.DefaultConfig()
	config.HTTP.Timeout = s.fetchTimeout
	config.HTTP.Logger = logger
	if s.retryMax > 0 {
		config.HTTP.RetryStrategy = retry.NewExponentialBackOff(100*time.Millisecond, 2*time.Second, s.retryMax, nil)
		config.HTTP.RetryOn = retry.NewDefaultRetryOn()
	}

	handler, err := newHandler(logger, meter, newRouter(config, s.allowS3), s.maxUploadSize)
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return xerrors.Errorf("failed to listen on address %s: %w", s.address, err)
	}

	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	server.SetKeepAlivesEnabled(s.keepAlive)

	go func() {
		if err := server.Serve(netutil.LimitListener(listener, s.maxConnections)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to serve HTTP", "error", err)
		}
	}()
	logger.Info("listening", "address", s.address)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, os.Interrupt)
	<-quit
	time.Sleep(s.lameduck)

	ctx, cancel := context.WithTimeout(ctx, s.terminationGracePeriod)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return xerrors.Errorf("failed to shutdown server: %w", err)
	}

	if err := shutdownTracing(ctx); err != nil {
		return xerrors.Errorf("failed to shutdown trace provider: %w", err)
	}

	return nil
}

// newRouter routes network image URLs only. Local files and page screenshots
// are never reachable by remote callers; S3 objects only with allowS3, since
// the fetch runs with the server's own credentials.
func newRouter(config source.Config, allowS3 bool) *source.Router {
	router := source.NewRouter()
	httpSource := source.Static(source.NewHTTPSource(config.HTTP))
	router.Register("http", httpSource)
	router.Register("https", httpSource)
	if allowS3 {
		router.Register("s3", func(ctx context.Context) (source.Source, error) {
			return source.NewS3Source(ctx, config.S3)
		})
	}
	return router
}

type handlers struct {
	source        source.Source
	maxUploadSize int64
	classified    metric.Int64Counter
}

func newHandler(logger *slog.Logger, meter metric.Meter, src source.Source, maxUploadSize int64) (http.Handler, error) {
	httpRequestsDurationMicroSeconds, err := meter.Int64Histogram("http_requests_duration_micro_seconds")
	if err != nil {
		return nil, xerrors.Errorf("failed to create histogram: %w", err)
	}
	classified, err := meter.Int64Counter("images_classified_total")
	if err != nil {
		return nil, xerrors.Errorf("failed to create counter: %w", err)
	}

	h := &handlers{
		source:        src,
		maxUploadSize: maxUploadSize,
		classified:    classified,
	}

	mux := myhttp.NewServerMux(logger, httpRequestsDurationMicroSeconds)

	mux.HandleFuncWithMiddleware("POST /detect", h.handleDetect)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(http.StatusText(http.StatusOK)))
	})

	mux.Handle("GET /metrics", promhttp.InstrumentMetricHandler(
		prometheus.DefaultRegisterer, promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}),
	))

	if Debug {
		mux.HandleFunc("GET /debug/pprof/", pprof.Index)
		mux.HandleFunc("GET /debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("GET /debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("GET /debug/pprof/trace", pprof.Trace)
		mux.HandleFunc("GET /debug/pprof/profile", pyroscopepprof.Profile)
	}

	return mux, nil
}

// uploaded serves a buffer that arrived in the request body.
type uploaded struct {
	buf *pixel.Buffer
}

func (u *uploaded) Fetch(ctx context.Context, url string) (*pixel.Buffer, error) {
	return u.buf, nil
}

func (h *handlers) handleDetect(w http.ResponseWriter, r *http.Request) {
	logger := myhttp.Logger(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	tolerance, err := strconv.Atoi(r.FormValue("tolerance"))
	if err != nil || tolerance < 0 || tolerance > 100 {
		http.Error(w, "tolerance must be an integer between 0 and 100", http.StatusBadRequest)
		return
	}

	reporter, err := report.New(w, r.FormValue("lang"), report.FormatJSON)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	detector := &detect.Detector{
		Source:    h.source,
		Tolerance: tolerance,
		Logger:    logger,
	}

	url := r.FormValue("url")
	if file, header, err := r.FormFile("image"); err == nil {
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		buf, err := source.Decode(header.Filename, data)
		if err != nil {
			logger.Info("rejected upload", "error", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		detector.Source = &uploaded{buf: buf}
		url = header.Filename
	} else if url == "" {
		http.Error(w, "either url or image is required", http.StatusBadRequest)
		return
	}

	result, err := detector.Run(r.Context(), url)
	if err != nil {
		var fetchErr *source.FetchError
		var decodeErr *source.DecodeError
		switch {
		case errors.As(err, &decodeErr):
			http.Error(w, decodeErr.Error(), http.StatusBadRequest)
		case errors.As(err, &fetchErr):
			http.Error(w, fetchErr.Error(), http.StatusBadGateway)
		default:
			logger.Error("failed to detect", "error", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	h.classified.Add(r.Context(), 1, metric.WithAttributeSet(classificationAttributes(result.Classification)))

	w.Header().Set("Content-Type", "application/json")
	if err := reporter.ReportResult(result); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("Failed to load .env: %v", err)
	}

	ctx := context.Background()

	server := NewServer()
	if err := server.Start(ctx); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
