package mongo

import (
	"testing"
	"time"

	"github.com/geodonis/geodonis-web/internal/infrastructure/config"
)

func TestClientOptions_FromConfig(t *testing.T) {
	opts := clientOptions(config.MongoConfig{
		URI:            "mongodb://db.internal:27017",
		AppName:        "geodonis-web",
		MaxPoolSize:    25,
		ConnectTimeout: 3 * time.Second,
	})
	if opts.AppName == nil || *opts.AppName != "geodonis-web" {
		t.Fatalf("AppName = %v", opts.AppName)
	}
	if opts.MaxPoolSize == nil || *opts.MaxPoolSize != 25 {
		t.Fatalf("MaxPoolSize = %v", opts.MaxPoolSize)
	}
	if opts.ConnectTimeout == nil || *opts.ConnectTimeout != 3*time.Second {
		t.Fatalf("ConnectTimeout = %v", opts.ConnectTimeout)
	}
	if opts.ServerSelectionTimeout == nil || *opts.ServerSelectionTimeout != 3*time.Second {
		t.Fatalf("ServerSelectionTimeout = %v", opts.ServerSelectionTimeout)
	}
	if len(opts.Hosts) != 1 || opts.Hosts[0] != "db.internal:27017" {
		t.Fatalf("Hosts = %v", opts.Hosts)
	}
}

func TestClientOptions_ZeroPoolKeepsDriverDefault(t *testing.T) {
	opts := clientOptions(config.MongoConfig{URI: "mongodb://localhost:27017"})
	if opts.MaxPoolSize != nil {
		t.Fatalf("MaxPoolSize = %d, want driver default", *opts.MaxPoolSize)
	}
}
