package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "erp-manufacturing", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "postgres", cfg.Database.User)
		assert.Equal(t, "erp", cfg.Database.DBName)
		assert.Equal(t, "disable", cfg.Database.SSLMode)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 5, cfg.Database.MaxIdleConns)
		assert.Equal(t, "", cfg.Redis.Host)
		assert.Equal(t, 30, cfg.MRP.DefaultHorizonDays)
		assert.Equal(t, 365, cfg.MRP.MaxHorizonDays)
		assert.Equal(t, 10*time.Minute, cfg.MRP.RunLockTTL)
		assert.Equal(t, "mrp-runs", cfg.MRP.ArchivePrefix)
		assert.False(t, cfg.MRP.ArchiveEnabled)
		assert.False(t, cfg.MRP.ScheduleEnabled)
		assert.Equal(t, "02:00", cfg.MRP.ScheduleAt)
		assert.Equal(t, cfg.App.Name, cfg.Telemetry.ServiceName)
	})

	t.Run("loads values from environment variables with ERP prefix", func(t *testing.T) {
		t.Setenv("ERP_APP_NAME", "test-app")
		t.Setenv("ERP_APP_PORT", "9000")
		t.Setenv("ERP_DATABASE_HOST", "testdb.local")
		t.Setenv("ERP_DATABASE_PORT", "5433")
		t.Setenv("ERP_DATABASE_PASSWORD", "testpass")
		t.Setenv("ERP_DATABASE_MAX_OPEN_CONNS", "50")
		t.Setenv("ERP_DATABASE_MAX_IDLE_CONNS", "10")
		t.Setenv("ERP_REDIS_HOST", "redis.local")
		t.Setenv("ERP_MRP_DEFAULT_HORIZON_DAYS", "14")
		t.Setenv("ERP_MRP_RUN_LOCK_TTL", "2m")
		t.Setenv("ERP_MRP_ARCHIVE_ENABLED", "true")
		t.Setenv("ERP_STORAGE_BUCKET", "erp-archive")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test-app", cfg.App.Name)
		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.Equal(t, "testpass", cfg.Database.Password)
		assert.Equal(t, 50, cfg.Database.MaxOpenConns)
		assert.Equal(t, 10, cfg.Database.MaxIdleConns)
		assert.Equal(t, "redis.local:6379", cfg.Redis.Addr())
		assert.Equal(t, 14, cfg.MRP.DefaultHorizonDays)
		assert.Equal(t, 2*time.Minute, cfg.MRP.RunLockTTL)
		assert.True(t, cfg.MRP.ArchiveEnabled)
		assert.Equal(t, "erp-archive", cfg.Storage.Bucket)
	})

	t.Run("zero MaxOpenConns uses default", func(t *testing.T) {
		t.Setenv("ERP_DATABASE_MAX_OPEN_CONNS", "0")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	})
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "idle connections exceed open connections",
			env:     map[string]string{"ERP_DATABASE_MAX_OPEN_CONNS": "10", "ERP_DATABASE_MAX_IDLE_CONNS": "20"},
			wantErr: "cannot exceed database.max_open_conns",
		},
		{
			name:    "negative idle connections",
			env:     map[string]string{"ERP_DATABASE_MAX_IDLE_CONNS": "-1"},
			wantErr: "max_idle_conns cannot be negative",
		},
		{
			name:    "default horizon past maximum",
			env:     map[string]string{"ERP_MRP_DEFAULT_HORIZON_DAYS": "400"},
			wantErr: "cannot exceed mrp.max_horizon_days",
		},
		{
			name:    "negative default horizon",
			env:     map[string]string{"ERP_MRP_DEFAULT_HORIZON_DAYS": "-5"},
			wantErr: "mrp.default_horizon_days must be positive",
		},
		{
			name:    "archive without bucket",
			env:     map[string]string{"ERP_MRP_ARCHIVE_ENABLED": "true"},
			wantErr: "storage.bucket is required",
		},
		{
			name:    "malformed schedule time",
			env:     map[string]string{"ERP_MRP_SCHEDULE_AT": "2am"},
			wantErr: "mrp.schedule_at must be HH:MM",
		},
		{
			name:    "sampling ratio out of range",
			env:     map[string]string{"ERP_TELEMETRY_SAMPLING_RATIO": "1.5"},
			wantErr: "telemetry.sampling_ratio",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_ProductionValidation(t *testing.T) {
	setValidProductionBase := func(t *testing.T) {
		t.Setenv("ERP_APP_ENV", "production")
		t.Setenv("ERP_DATABASE_PASSWORD", "secure-password")
		t.Setenv("ERP_DATABASE_SSLMODE", "require")
	}

	t.Run("requires database.password in production", func(t *testing.T) {
		t.Setenv("ERP_APP_ENV", "production")
		t.Setenv("ERP_DATABASE_SSLMODE", "require")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.password is required in production")
	})

	t.Run("requires SSL enabled in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("ERP_DATABASE_SSLMODE", "disable")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.sslmode cannot be 'disable' in production")
	})

	t.Run("rejects full SQL in traces in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("ERP_TELEMETRY_DB_LOG_FULL_SQL", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db_log_full_sql")
	})

	t.Run("passes validation with valid production config", func(t *testing.T) {
		setValidProductionBase(t)

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("generates valid DSN", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "testuser",
			Password: "testpass",
			DBName:   "testdb",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "localhost")
		assert.Contains(t, dsn, "5432")
		assert.Contains(t, dsn, "testuser")
		assert.Contains(t, dsn, "testdb")
		assert.Contains(t, dsn, "sslmode=disable")
	})

	t.Run("escapes special characters in password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "pass@word#123",
			DBName:   "db",
			SSLMode:  "disable",
		}

		assert.Contains(t, cfg.DSN(), "pass%40word%23123")
	})
}
