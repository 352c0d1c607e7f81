// mockwa is a stand-in WhatsApp Business API for local development.
// It accepts sends, fabricates provider message ids, and optionally
// posts delivered/read receipts back to the gateway's status webhook
// after a random delay.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type sendRequest struct {
	To   string `json:"to" binding:"required"`
	Type string `json:"type"`
	Text struct {
		Body string `json:"body"`
	} `json:"text"`
}

type receipt struct {
	RecipientID int64                  `json:"recipient_id"`
	Type        string                 `json:"type"`
	Timestamp   time.Time              `json:"timestamp"`
	Payload     map[string]interface{} `json:"payload,omitempty"`
}

// MockProvider simulates WhatsApp message delivery.
type MockProvider struct {
	mu           sync.Mutex
	deliveryRate float64
	readRate     float64
	minDelay     time.Duration
	maxDelay     time.Duration
	webhookURL   string
	rng          *rand.Rand
	client       *http.Client
}

func NewMockProvider(deliveryRate, readRate float64, minDelay, maxDelay time.Duration, webhookURL string) *MockProvider {
	return &MockProvider{
		deliveryRate: deliveryRate,
		readRate:     readRate,
		minDelay:     minDelay,
		maxDelay:     maxDelay,
		webhookURL:   webhookURL,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		client:       &http.Client{Timeout: 5 * time.Second},
	}
}

func (m *MockProvider) randomDelay() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.maxDelay <= m.minDelay {
		return m.minDelay
	}
	return m.minDelay + time.Duration(m.rng.Int63n(int64(m.maxDelay-m.minDelay)))
}

func (m *MockProvider) roll(rate float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rng.Float64() < rate
}

// emitReceipts posts delivered (and maybe read) callbacks for one
// message. recipientID comes from the X-Recipient-Id header the
// dispatcher is free to omit; without it no callback is sent.
func (m *MockProvider) emitReceipts(recipientID int64, providerID string) {
	if m.webhookURL == "" || recipientID == 0 {
		return
	}

	time.Sleep(m.randomDelay())
	if !m.roll(m.deliveryRate) {
		m.post(receipt{
			RecipientID: recipientID,
			Type:        "error",
			Timestamp:   time.Now().UTC(),
			Payload:     map[string]interface{}{"error": "message undeliverable", "provider_id": providerID},
		})
		return
	}

	m.post(receipt{
		RecipientID: recipientID,
		Type:        "delivered",
		Timestamp:   time.Now().UTC(),
		Payload:     map[string]interface{}{"provider_id": providerID},
	})

	if m.roll(m.readRate) {
		time.Sleep(m.randomDelay())
		m.post(receipt{
			RecipientID: recipientID,
			Type:        "read",
			Timestamp:   time.Now().UTC(),
			Payload:     map[string]interface{}{"provider_id": providerID},
		})
	}
}

func (m *MockProvider) post(r receipt) {
	body, _ := json.Marshal(r)
	resp, err := m.client.Post(m.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Warn().Err(err).Str("type", r.Type).Msg("webhook post failed")
		return
	}
	_ = resp.Body.Close()
	log.Info().Int64("recipient_id", r.RecipientID).Str("type", r.Type).Int("status", resp.StatusCode).Msg("receipt posted")
}

type Handler struct {
	provider *MockProvider
}

func (h *Handler) SendMessage(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"code": 100, "message": "Invalid request: " + err.Error()},
		})
		return
	}

	if !strings.HasPrefix(req.To, "+") {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"code": 131026, "message": "Recipient phone number not in international format"},
		})
		return
	}

	providerID := "wamid." + uuid.New().String()
	log.Info().
		Str("to", req.To).
		Str("provider_id", providerID).
		Int("body_len", len(req.Text.Body)).
		Msg("message accepted")

	var recipientID int64
	_, _ = fmt.Sscanf(c.GetHeader("X-Recipient-Id"), "%d", &recipientID)
	go h.provider.emitReceipts(recipientID, providerID)

	c.JSON(http.StatusOK, gin.H{
		"messages": []gin.H{{"id": providerID}},
	})
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now().UTC()})
}

func (h *Handler) UpdateConfig(c *gin.Context) {
	var cfg struct {
		DeliveryRate *float64 `json:"delivery_rate"`
		ReadRate     *float64 `json:"read_rate"`
	}
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	h.provider.mu.Lock()
	if cfg.DeliveryRate != nil && *cfg.DeliveryRate >= 0 && *cfg.DeliveryRate <= 1 {
		h.provider.deliveryRate = *cfg.DeliveryRate
	}
	if cfg.ReadRate != nil && *cfg.ReadRate >= 0 && *cfg.ReadRate <= 1 {
		h.provider.readRate = *cfg.ReadRate
	}
	h.provider.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"delivery_rate": h.provider.deliveryRate,
		"read_rate":     h.provider.readRate,
	})
}

func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.Default()

	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("request processed")
	})

	v1 := router.Group("/v1")
	{
		v1.POST("/messages", handler.SendMessage)
		v1.PUT("/config", handler.UpdateConfig)
	}
	router.GET("/health", handler.HealthCheck)

	return router
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	port := getEnv("PORT", "8082")
	deliveryRate := getEnvFloat("DELIVERY_RATE", 0.95)
	readRate := getEnvFloat("READ_RATE", 0.6)
	minDelay := getEnvDuration("MIN_DELAY", 500*time.Millisecond)
	maxDelay := getEnvDuration("MAX_DELAY", 3*time.Second)
	webhookURL := os.Getenv("WEBHOOK_URL")

	log.Info().
		Str("port", port).
		Float64("delivery_rate", deliveryRate).
		Float64("read_rate", readRate).
		Str("webhook_url", webhookURL).
		Msg("starting mock whatsapp provider")

	provider := NewMockProvider(deliveryRate, readRate, minDelay, maxDelay, webhookURL)
	handler := &Handler{provider: provider}
	router := SetupRouter(handler)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("server exited")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
