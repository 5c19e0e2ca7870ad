package config // package config loads application configuration from environment variables

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "strconv" // strconv converts strings to other types
    "strings"
    "time"

    "github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Required values are enforced by must(); the
// remaining ones fall back to defaults suitable for local development.
type Config struct {
    Env            string // application environment (e.g. "dev", "prod")
    Port           string // HTTP port to listen on
    DBUser         string // database username
    DBPass         string // database password (optional)
    DBHost         string // database host address
    DBPort         string // database port number
    DBName         string // database name
    JWTSecret      string // secret used to sign JWTs
    AccessTTLMin   int    // access token time‑to‑live in minutes
    RefreshTTLDays int    // refresh token time‑to‑live in days
    BcryptCost     int    // bcrypt cost for password hashing

    LogLevel       string        // logrus level name
    MigrateOnStart bool          // apply embedded migrations during startup
    AdminEmail     string        // bootstrap admin account (optional)
    AdminPassword  string        // bootstrap admin password (optional)
    CartTTL        time.Duration // inactivity lifetime of a cart
    CoverDir       string        // directory where uploaded covers are written
    CoverBaseURL   string        // public URL prefix for uploaded covers
    CoverMaxBytes  int64         // upload size limit for covers
    LowStockLevel  int           // stock at or below which a book counts as low
    MongoURI       string        // audit sink; empty disables mongo auditing
    MongoDB        string        // audit database name
    AMQPURL        string        // RabbitMQ connection string
    OrderConsumer  bool          // run the order log consumer in-process
    OrderLogPath   string        // file the order consumer appends to
    CronTokenPurge string        // cron spec for refresh token purging
    CronLowStock   string        // cron spec for the low stock gauge refresh
}

// Load reads configuration values from environment variables and returns a
// Config.  A .env file in the working directory is loaded first when
// present; real environment variables take precedence over it.
func Load() Config {
    if err := godotenv.Load(); err != nil {
        log.Println("no .env file found, using environment variables")
    }
    return Config{
        Env:            must("APP_ENV"),                   // environment (dev/test/prod)
        Port:           must("APP_PORT"),                  // port to bind the HTTP server
        DBUser:         must("DB_USER"),                   // database user
        DBPass:         os.Getenv("DB_PASS"),              // database password (empty allowed)
        DBHost:         must("DB_HOST"),                   // database host
        DBPort:         must("DB_PORT"),                   // database port
        DBName:         must("DB_NAME"),                   // database name
        JWTSecret:      must("JWT_SECRET"),                // secret used for signing JWTs
        AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),   // TTL for access tokens in minutes
        RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"), // TTL for refresh tokens in days
        BcryptCost:     mustInt("BCRYPT_COST"),            // bcrypt cost factor

        LogLevel:       envStr("LOG_LEVEL", "info"),
        MigrateOnStart: envBool("MIGRATE_ON_START", true),
        AdminEmail:     strings.ToLower(strings.TrimSpace(os.Getenv("ADMIN_EMAIL"))),
        AdminPassword:  os.Getenv("ADMIN_PASSWORD"),
        CartTTL:        envDur("CART_TTL", 720*time.Hour),
        CoverDir:       envStr("COVER_DIR", "uploads/covers"),
        CoverBaseURL:   envStr("COVER_BASE_URL", "/covers"),
        CoverMaxBytes:  int64(envInt("COVER_MAX_BYTES", 2<<20)),
        LowStockLevel:  envInt("LOW_STOCK_LEVEL", 5),
        MongoURI:       os.Getenv("MONGO_URI"),
        MongoDB:        envStr("MONGO_DB", "bookstore"),
        AMQPURL:        AMQPURL(),
        OrderConsumer:  envBool("ORDER_CONSUMER_ENABLED", false),
        OrderLogPath:   envStr("ORDER_LOG_PATH", "logs/orders.log"),
        CronTokenPurge: envStr("CRON_TOKEN_PURGE", "@every 1h"),
        CronLowStock:   envStr("CRON_LOW_STOCK", "@every 5m"),
    }
}

// IsProd reports whether the service runs with production settings.
func (c Config) IsProd() bool { return strings.EqualFold(c.Env, "prod") }

// AMQPURL resolves the broker URL from RABBITMQ_URL or AMQP_URL.  An empty
// result means no broker: events are dropped and the consumer stays off.
func AMQPURL() string {
    if url := os.Getenv("RABBITMQ_URL"); url != "" {
        return url
    }
    if url := os.Getenv("AMQP_URL"); url != "" {
        return url
    }
    return ""
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
    s := must(key)
    n, err := strconv.Atoi(s)
    if err != nil {
        log.Fatalf("invalid int for %s: %q", key, s)
    }
    return n
}
