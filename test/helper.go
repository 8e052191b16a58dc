package test

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"clinic-auth/config"
	"clinic-auth/entity"
	"clinic-auth/migrations"
	"clinic-auth/pkg/logger"
	"clinic-auth/repository"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// TestDB wraps a test database connection
type TestDB struct {
	DB     *sqlx.DB
	Config config.Database
}

// SetupTestDB connects to the test database and runs migrations. The test is
// skipped unless TEST_DB_HOST is set.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set, skipping database test")
	}

	port, err := strconv.Atoi(getEnvOrDefault("TEST_DB_PORT", "5432"))
	require.NoError(t, err, "TEST_DB_PORT must be a number")

	// Get base database name and add _test suffix
	baseDBName := getEnvOrDefault("DATABASE_NAME", "clinic_auth")
	dbCfg := config.Database{
		Host:     host,
		Port:     port,
		User:     getEnvOrDefault("TEST_DB_USER", "clinic_auth"),
		Password: getEnvOrDefault("TEST_DB_PASSWORD", "clinic_auth"),
		Name:     getEnvOrDefault("TEST_DB_NAME", baseDBName+"_test"),
		SSLMode:  "disable",
	}

	db, err := sqlx.Connect("postgres", dbCfg.DSN())
	require.NoError(t, err, "Failed to connect to test database")

	require.NoError(t, migrations.RunMigrations(dbCfg.URL()), "Failed to run test migrations")

	tdb := &TestDB{DB: db, Config: dbCfg}
	t.Cleanup(tdb.Close)
	tdb.CleanTables(t)
	return tdb
}

// Close closes the test database connection
func (tdb *TestDB) Close() {
	if tdb.DB != nil {
		tdb.DB.Close()
	}
}

// CleanTables removes all data from tables (for test isolation)
func (tdb *TestDB) CleanTables(t *testing.T) {
	_, err := tdb.DB.Exec("TRUNCATE TABLE otp_codes, users RESTART IDENTITY CASCADE")
	require.NoError(t, err, "Failed to clean test tables")
}

// CreateTestAccount creates an account with the given phone, status and password
func (tdb *TestDB) CreateTestAccount(t *testing.T, phone string, status entity.AccountStatus, password string) *entity.Account {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	account, err := repository.NewAccountRepository(tdb.DB).Create(context.Background(), &entity.Account{
		Name:         "Test Account",
		Phone:        phone,
		PasswordHash: string(hash),
		Status:       status,
	})
	require.NoError(t, err, "Failed to create test account")

	return account
}

// ExpireOTPs moves every live code for phone into the past
func (tdb *TestDB) ExpireOTPs(t *testing.T, phone string) {
	_, err := tdb.DB.Exec(
		"UPDATE otp_codes SET expires_at = NOW() - INTERVAL '1 minute' WHERE phone = $1", phone)
	require.NoError(t, err, "Failed to expire OTPs")
}

// GetTestLogger creates a test logger
func GetTestLogger() *logger.Logger {
	log, err := logger.New("debug", "development")
	if err != nil {
		panic(fmt.Sprintf("Failed to create test logger: %v", err))
	}
	return log
}

// AssertLastLoginUpdated asserts that the account's last login timestamp was recently updated
func (tdb *TestDB) AssertLastLoginUpdated(t *testing.T, phone string, within time.Duration) {
	var lastLoginAt *time.Time
	err := tdb.DB.Get(&lastLoginAt, "SELECT last_login_at FROM users WHERE phone = $1", phone)
	require.NoError(t, err, "Failed to get last login time")
	require.NotNil(t, lastLoginAt, "Last login should be set")

	timeSinceLogin := time.Since(*lastLoginAt)
	require.True(t, timeSinceLogin <= within,
		"Last login should be within %v, but was %v ago", within, timeSinceLogin)
}

// GetActiveOTPCount returns the number of live (unused, unverified, non-expired) codes
func (tdb *TestDB) GetActiveOTPCount(t *testing.T, phone string, purpose entity.OTPPurpose) int {
	var count int
	err := tdb.DB.Get(&count,
		`SELECT COUNT(*) FROM otp_codes
		 WHERE phone = $1 AND type = $2 AND is_used = FALSE AND verified_at IS NULL AND expires_at > NOW()`,
		phone, purpose)
	require.NoError(t, err, "Failed to count active OTPs")
	return count
}

// GetVerifiedOTPCount returns the number of verified codes for phone
func (tdb *TestDB) GetVerifiedOTPCount(t *testing.T, phone string) int {
	var count int
	err := tdb.DB.Get(&count, "SELECT COUNT(*) FROM otp_codes WHERE phone = $1 AND verified_at IS NOT NULL", phone)
	require.NoError(t, err, "Failed to count verified OTPs")
	return count
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
