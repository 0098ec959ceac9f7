package config

import (
	"os"
	"strconv"
	"time"
)

type NotifyConfig struct {
	// SubscriberBuffer is the per-subscriber channel depth. A slow
	// subscriber whose buffer is full loses events; it reconciles by
	// re-fetching state.
	SubscriberBuffer int
	// Heartbeat is how often the SSE stream writes a keep-alive comment.
	Heartbeat time.Duration
	// ChannelPrefix namespaces the Redis pub/sub channels.
	ChannelPrefix string
}

func LoadNotifyConfig() *NotifyConfig {
	return &NotifyConfig{
		SubscriberBuffer: getEnvAsInt("NOTIFY_SUBSCRIBER_BUFFER", 16),
		Heartbeat:        getEnvAsDuration("NOTIFY_HEARTBEAT", 25*time.Second),
		ChannelPrefix:    getEnv("NOTIFY_CHANNEL_PREFIX", "udhaar"),
	}
}

type QRConfig struct {
	ImageSize     int
	CacheTTL      time.Duration
	StorefrontURL string
}

func LoadQRConfig() *QRConfig {
	return &QRConfig{
		ImageSize:     getEnvAsInt("QR_IMAGE_SIZE", 256),
		CacheTTL:      getEnvAsDuration("QR_CACHE_TTL", 24*time.Hour),
		StorefrontURL: getEnv("QR_STOREFRONT_URL", "https://udhaarplus.app/shops"),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
