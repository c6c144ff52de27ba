package bootstrap

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"

	appconfig "github.com/draly94/SW/internal/config"
	"github.com/draly94/SW/internal/notify"
	"github.com/draly94/SW/pkg/logging"
)

func TestBuildRedisClient(t *testing.T) {
	logger := logging.New("error")
	if client := BuildRedisClient(context.Background(), &appconfig.Config{}, logger, true); client != nil {
		t.Fatalf("expected nil client without REDIS_ADDR")
	}

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	addr := mr.Addr()
	client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: addr}, logger, true)
	if client == nil {
		t.Fatalf("expected client for reachable redis")
	}
	_ = client.Close()

	mr.Close()
	if client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: addr}, logger, true); client != nil {
		t.Fatalf("expected nil client when ping fails")
	}
}

func TestBuildEmailSender(t *testing.T) {
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	logger := logging.New("error")

	tests := []struct {
		name string
		cfg  appconfig.Config
		want string
	}{
		{"stub by default", appconfig.Config{}, "stub"},
		{"unknown provider", appconfig.Config{EmailProvider: "pigeon"}, "stub"},
		{"sendgrid without key", appconfig.Config{EmailProvider: "sendgrid"}, "stub"},
		{"sendgrid", appconfig.Config{EmailProvider: "sendgrid", SendGridAPIKey: "SG.test", EmailFrom: "noreply@clinic.test"}, "sendgrid"},
		{"ses", appconfig.Config{
			EmailProvider:       "ses",
			AWSRegion:           "us-east-1",
			AWSAccessKeyID:      "test",
			AWSSecretAccessKey:  "test",
			AWSEndpointOverride: "http://localhost:4566",
		}, "ses"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			var got string
			switch BuildEmailSender(context.Background(), &cfg, logger).(type) {
			case *notify.StubEmailSender:
				got = "stub"
			case *notify.SendGridSender:
				got = "sendgrid"
			case *notify.SESSender:
				got = "ses"
			}
			if got != tt.want {
				t.Fatalf("expected %s sender, got %q", tt.want, got)
			}
		})
	}
}
