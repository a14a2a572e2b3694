package config

import "testing"

func TestDefaults(t *testing.T) {
	cfg, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("port %q, want 8080", cfg.Port)
	}
	if cfg.Production() {
		t.Fatal("default env must not be production")
	}
}

func TestProductionRefusesDefaultSecret(t *testing.T) {
	t.Setenv("MESA_ENV", "production")
	if _, err := New(); err == nil {
		t.Fatal("production with the default secret must fail")
	}
	t.Setenv("MESA_AUTH_SECRET", "an-actual-secret-value")
	if _, err := New(); err != nil {
		t.Fatalf("New with secret: %v", err)
	}
}

func TestInvalidPort(t *testing.T) {
	t.Setenv("MESA_PORT", "not-a-port")
	if _, err := New(); err == nil {
		t.Fatal("invalid port must fail")
	}
}

func TestBuildPostgresDSN(t *testing.T) {
	cfg := &Config{
		PostgresHost:    "db.internal",
		PostgresPort:    "5433",
		PostgresUser:    "mesa",
		PostgresDB:      "mesa",
		PostgresSSLMode: "require",
	}
	dsn, err := cfg.BuildPostgresDSN()
	if err != nil {
		t.Fatalf("BuildPostgresDSN: %v", err)
	}
	want := "host=db.internal port=5433 user=mesa dbname=mesa sslmode=require"
	if dsn != want {
		t.Fatalf("dsn %q, want %q", dsn, want)
	}

	cfg.PostgresDSN = "postgres://mesa@db/mesa"
	dsn, err = cfg.BuildPostgresDSN()
	if err != nil || dsn != "postgres://mesa@db/mesa" {
		t.Fatalf("explicit DSN not preferred: %q, %v", dsn, err)
	}

	if _, err := (&Config{}).BuildPostgresDSN(); err == nil {
		t.Fatal("empty config must fail")
	}
}
