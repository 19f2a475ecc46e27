package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"mangamirror/internal/api"
	"mangamirror/internal/auth"
	"mangamirror/internal/events"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the catalog API server and the sync scheduler",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	router := gin.Default()
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/ready", func(c *gin.Context) {
		pingCtx, pingCancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer pingCancel()
		if err := a.db.PingContext(pingCtx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "not_ready",
				"db_error": err.Error(),
			})
			return
		}
		lastSync, _ := a.store.LastSyncAt(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{
			"status":       "ready",
			"db":           "ok",
			"ws_clients":   a.hub.ClientCount(),
			"last_sync_at": lastSync,
		})
	})

	// event feed
	router.GET("/ws", events.WSHandler(a.hub))

	// catalog (public)
	catalogHandler := api.NewHandler(a.store, a.site)
	catalogHandler.RegisterRoutes(router.Group("/titles"))

	// admin triggers (protected)
	tokenSvc := auth.TokenService{
		Secret:   []byte(a.cfg.JWTSecret),
		Issuer:   a.cfg.JWTIssuer,
		Duration: time.Duration(a.cfg.JWTTTLHours) * time.Hour,
	}
	authHandler := auth.NewHandler(tokenSvc, a.cfg.AdminPasswordHash)
	authHandler.RegisterRoutes(router.Group("/auth"))

	adminGroup := router.Group("/admin")
	adminGroup.Use(auth.Middleware(tokenSvc))
	api.NewAdmin(a.sched).RegisterRoutes(adminGroup)

	httpSrv := &http.Server{
		Addr:    a.cfg.ListenAddr,
		Handler: router,
	}

	go a.sched.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("catalog API listening on %s", a.cfg.ListenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("shutdown signal received: %s", sig)
	case err := <-errCh:
		log.Printf("server error: %v", err)
	}

	cancel() // stop the scheduler loop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown error: %v", err)
	}

	log.Println("server stopped")
	return nil
}
