package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(New(""))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":8080" || cfg.Session.Backend != "memory" || cfg.Forms.Dir != "forms" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Session.TTL != 24*time.Hour || cfg.Mail.Timeout != 10*time.Second {
		t.Fatalf("unexpected duration defaults %+v", cfg)
	}
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "formflow.yaml")
	body := `
server:
  addr: ":9000"
  strict_sinks: true
session:
  backend: redis
  redis_addr: "redis:6379"
  ttl: 2h
mail:
  host: smtp.example.com
  from: forms@example.com
uploads:
  extensions: [pdf, png]
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("FORMFLOW_SERVER_ADDR", ":9090")
	t.Setenv("FORMFLOW_DATABASE_DSN", "postgres://forms@db/forms")

	cfg, err := Load(New(path))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := struct {
		Addr, Backend, Redis, DSN, MailHost string
		Strict                              bool
		TTL                                 time.Duration
		Extensions                          []string
	}{":9090", "redis", "redis:6379", "postgres://forms@db/forms", "smtp.example.com", true, 2 * time.Hour, []string{"pdf", "png"}}
	got := struct {
		Addr, Backend, Redis, DSN, MailHost string
		Strict                              bool
		TTL                                 time.Duration
		Extensions                          []string
	}{cfg.Server.Addr, cfg.Session.Backend, cfg.Session.RedisAddr, cfg.Database.DSN, cfg.Mail.Host, cfg.Server.StrictSinks, cfg.Session.TTL, cfg.Uploads.Extensions}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"unknown backend":   "session:\n  backend: etcd\n",
		"mail without from": "mail:\n  host: smtp.example.com\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "formflow.yaml")
			if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
				t.Fatalf("write: %v", err)
			}
			if _, err := Load(New(path)); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
	if _, err := Load(New(filepath.Join(t.TempDir(), "missing.yaml"))); err == nil {
		t.Fatalf("expected error for missing explicit file")
	}
}

func TestLoad_TemplateOverridesFromEnvironment(t *testing.T) {
	t.Setenv("FORMFLOW_FORMS_TEMPLATES", "/srv/formflow/templates")
	cfg, err := Load(New(""))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Forms.Templates != "/srv/formflow/templates" {
		t.Fatalf("templates = %q", cfg.Forms.Templates)
	}
}
