package cmd

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sadmint001/final-ryoko-tours-kenya-sub001/app/controller"
	"github.com/sadmint001/final-ryoko-tours-kenya-sub001/app/gateway"
	"github.com/sadmint001/final-ryoko-tours-kenya-sub001/app/pricing"
	"github.com/sadmint001/final-ryoko-tours-kenya-sub001/app/repository"
	"github.com/sadmint001/final-ryoko-tours-kenya-sub001/app/service"
	"github.com/sadmint001/final-ryoko-tours-kenya-sub001/config"

	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  "Start the HTTP server handling booking initiation and payment gateway callbacks.",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, bookingService, cleanup := mustCreateBookingService()
	defer cleanup()

	if err := cfg.ValidateServe(); err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}

	bookingController := controller.NewBookingController(bookingService, cfg.Site.BaseURL)
	e := setupHTTPServer(bookingController)

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}

	logrus.Info("Server stopped")
}

func setupHTTPServer(bookingController *controller.BookingController) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())

	e.GET("/health", bookingController.Health)

	bookings := e.Group("/bookings")
	bookings.POST("/initiate", bookingController.InitiateBooking)
	bookings.GET("", bookingController.ListBookings)
	bookings.GET("/:id", bookingController.GetBooking)
	bookings.POST("/:id/confirm-transfer", bookingController.ConfirmBankTransfer)

	payments := e.Group("/payments")
	payments.POST("/mpesa/callback", bookingController.MpesaCallback)
	payments.GET("/pesapal/callback", bookingController.PesapalRedirect)
	payments.POST("/pesapal/ipn", bookingController.PesapalIPN)
	payments.GET("/pesapal/ipn", bookingController.PesapalIPN)
	payments.POST("/card/callback", bookingController.CardCallback)

	return e
}

func mustCreateBookingService() (*config.Config, *service.BookingService, func()) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}

	bookingRepo := repository.NewBookingRepository(db)
	txRepo := repository.NewTransactionRepository(db)
	tourRepo := repository.NewTourRepository(db)

	callbackBase := strings.TrimRight(cfg.Payments.CallbackBaseURL, "/")

	pesapalClient := gateway.NewPesapalClient(gateway.PesapalConfig{
		ConsumerKey:    cfg.Pesapal.ConsumerKey,
		ConsumerSecret: cfg.Pesapal.ConsumerSecret,
		Live:           cfg.Pesapal.Live,
		CallbackURL:    callbackBase + "/payments/pesapal/ipn",
		IPNID:          cfg.Pesapal.IPNID,
		HTTPTimeout:    cfg.Pesapal.HTTPTimeout,
	})
	mpesaClient := gateway.NewMpesaClient(gateway.MpesaConfig{
		ConsumerKey:    cfg.Mpesa.ConsumerKey,
		ConsumerSecret: cfg.Mpesa.ConsumerSecret,
		ShortCode:      cfg.Mpesa.ShortCode,
		Passkey:        cfg.Mpesa.Passkey,
		Live:           cfg.Mpesa.Live,
		CallbackURL:    callbackBase + "/payments/mpesa/callback",
		HTTPTimeout:    cfg.Mpesa.HTTPTimeout,
	})
	cardClient := gateway.NewCardClient(gateway.CardConfig{
		SecretKey:   cfg.Card.SecretKey,
		SuccessURL:  strings.TrimRight(cfg.Site.BaseURL, "/") + "/booking/status",
		CancelURL:   strings.TrimRight(cfg.Site.BaseURL, "/") + "/booking/cancelled",
		HTTPTimeout: cfg.Card.HTTPTimeout,
	})

	registry := gateway.NewRegistry(pesapalClient, mpesaClient, cardClient)
	resolver := pricing.NewResolver(tourRepo)

	bookingService := service.NewBookingService(
		bookingRepo,
		txRepo,
		resolver,
		registry,
		cfg.Payments,
	)

	cleanup := func() {
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close database")
		}
	}

	return cfg, bookingService, cleanup
}

func configureLogging(cfg *config.Config) error {
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.JSONFormatter{})
	return nil
}
