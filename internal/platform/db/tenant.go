package db

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/clinrx/clinrx/internal/platform/api"
)

type contextKey string

const (
	SchemaKey contextKey = "schema"
	DBConnKey contextKey = "db_conn"
	DBTxKey   contextKey = "db_tx"
)

// PublicSchema holds the cross-tenant tables (substances, relations, users).
const PublicSchema = "public"

var schemaPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// ValidSchema reports whether name can be used as a hospital schema.
func ValidSchema(name string) bool {
	return schemaPattern.MatchString(name) && name != PublicSchema
}

// TenantMiddleware pins a pooled connection to the hospital schema of the
// authenticated user for the lifetime of the request.
func TenantMiddleware(pool *pgxpool.Pool, defaultSchema string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			schema := extractSchema(c, defaultSchema)

			if !ValidSchema(schema) {
				return api.NewValidationError("invalid schema", "errors.invalidSchema", 400)
			}

			ctx := c.Request().Context()
			conn, err := pool.Acquire(ctx)
			if err != nil {
				return api.NewValidationError("database unavailable", "errors.databaseUnavailable", 503)
			}
			defer conn.Release()

			// schema is validated above; identifiers cannot be bound as parameters
			if _, err = conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s, public", schema)); err != nil {
				return fmt.Errorf("set search_path: %w", err)
			}
			defer func() {
				_, _ = conn.Exec(context.Background(), "RESET search_path")
			}()

			ctx = context.WithValue(ctx, SchemaKey, schema)
			ctx = context.WithValue(ctx, DBConnKey, conn)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("schema", schema)

			return next(c)
		}
	}
}

func extractSchema(c echo.Context, defaultSchema string) string {
	// 1. JWT claim (set by auth middleware)
	if s, ok := c.Get("jwt_schema").(string); ok && s != "" {
		return s
	}

	// 2. X-Schema header, only honoured when no token carried a schema
	if s := c.Request().Header.Get("X-Schema"); s != "" {
		return s
	}

	return defaultSchema
}

// ConnFromContext retrieves the schema-scoped database connection from context.
func ConnFromContext(ctx context.Context) *pgxpool.Conn {
	conn, _ := ctx.Value(DBConnKey).(*pgxpool.Conn)
	return conn
}

// SchemaFromContext retrieves the hospital schema from context.
func SchemaFromContext(ctx context.Context) string {
	s, _ := ctx.Value(SchemaKey).(string)
	return s
}

// WithSchema returns a context carrying schema. Used by background callers and tests.
func WithSchema(ctx context.Context, schema string) context.Context {
	return context.WithValue(ctx, SchemaKey, schema)
}

// CreateTenantSchema creates a new hospital schema and runs the tenant migrations
// from migrationsDir against it. Migrations are skipped when migrationsDir is empty.
func CreateTenantSchema(ctx context.Context, pool *pgxpool.Pool, schema string, migrationsDir string) error {
	if !ValidSchema(schema) {
		return fmt.Errorf("invalid schema: %s", schema)
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err = conn.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema)); err != nil {
		return fmt.Errorf("create schema %s: %w", schema, err)
	}

	if migrationsDir != "" {
		migrator := NewMigrator(pool, migrationsDir)
		if _, err := migrator.Up(ctx, schema); err != nil {
			return fmt.Errorf("run migrations for %s: %w", schema, err)
		}
	}

	return nil
}
