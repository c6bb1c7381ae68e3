package config

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.AppName != "voteswap" {
		t.Errorf("AppName = %q, want voteswap", cfg.AppName)
	}
	if cfg.Kafka.ProposalsTopic != "voteswap-proposals" {
		t.Errorf("ProposalsTopic = %q", cfg.Kafka.ProposalsTopic)
	}
	if cfg.Kafka.NotificationsTopic != "voteswap-notifications" {
		t.Errorf("NotificationsTopic = %q", cfg.Kafka.NotificationsTopic)
	}
	if cfg.Kafka.ConsumerGroup == cfg.Kafka.NotifyConsumerGroup {
		t.Error("API server and notify server must use distinct consumer groups")
	}
	if cfg.Database.DBName != "voteswap_db" {
		t.Errorf("DBName = %q", cfg.Database.DBName)
	}
	if cfg.Match.AlmanacCacheTTL != 5*time.Minute {
		t.Errorf("AlmanacCacheTTL = %v, want 5m", cfg.Match.AlmanacCacheTTL)
	}
	if !cfg.Match.ExcludePending {
		t.Error("ExcludePending should default to true")
	}
	if cfg.WebSocket.PongWaitSeconds <= cfg.WebSocket.PingPeriodSeconds {
		t.Error("pings must fire before the pong deadline expires")
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("KAFKA_PROPOSALS_TOPIC", "proposals-test")
	t.Setenv("DATABASE_PORT", "5433")
	t.Setenv("MATCH_EXCLUDE_PENDING", "false")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Kafka.ProposalsTopic != "proposals-test" {
		t.Errorf("ProposalsTopic = %q, want env override", cfg.Kafka.ProposalsTopic)
	}
	if cfg.Database.Port != 5433 {
		t.Errorf("Database.Port = %d, want 5433", cfg.Database.Port)
	}
	if cfg.Match.ExcludePending {
		t.Error("env override for ExcludePending not applied")
	}
}
