package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pulseboard/tenancy/internal/domain"
	"github.com/pulseboard/tenancy/internal/domain/tenant"
	"github.com/pulseboard/tenancy/internal/port/tenantstore"
)

// Store implements tenantstore.Store using PostgreSQL. Tenant documents are
// one row each; the map-valued fields live in JSONB columns so Update can do
// document-level (not deep) merges, matching last-writer-wins semantics.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Get(ctx context.Context, id string) (*tenant.Tenant, error) {
	var t tenant.Tenant
	var settingsJSON, usageJSON, featuresJSON, limitsJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, owner_id, owner_email, owner_name, status, role,
		        settings, usage, features, limits, initialized, created_at
		 FROM tenants WHERE id = $1`, id,
	).Scan(&t.ID, &t.OwnerID, &t.OwnerEmail, &t.OwnerName, &t.Status, &t.Role,
		&settingsJSON, &usageJSON, &featuresJSON, &limitsJSON, &t.Initialized, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get tenant %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get tenant %s: %w", id, classify(err))
	}

	_ = json.Unmarshal(settingsJSON, &t.Settings)
	_ = json.Unmarshal(usageJSON, &t.Usage)
	_ = json.Unmarshal(featuresJSON, &t.Features)
	_ = json.Unmarshal(limitsJSON, &t.Limits)
	return &t, nil
}

func (s *Store) Create(ctx context.Context, t *tenant.Tenant) error {
	settingsJSON, _ := json.Marshal(orEmpty(t.Settings))
	usageJSON, _ := json.Marshal(orEmpty(t.Usage))
	featuresJSON, _ := json.Marshal(orEmpty(t.Features))
	limitsJSON, _ := json.Marshal(orEmpty(t.Limits))

	_, err := s.pool.Exec(ctx,
		`INSERT INTO tenants (id, owner_id, owner_email, owner_name, status, role,
		                      settings, usage, features, limits, initialized)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		t.ID, t.OwnerID, t.OwnerEmail, t.OwnerName, t.Status, t.Role,
		settingsJSON, usageJSON, featuresJSON, limitsJSON, t.Initialized)
	if err != nil {
		return fmt.Errorf("create tenant %s: %w", t.ID, classify(err))
	}
	return nil
}

func (s *Store) Update(ctx context.Context, id string, patch tenantstore.Patch) error {
	set := ""
	args := []any{id}
	add := func(col string, val any) {
		args = append(args, val)
		if set != "" {
			set += ", "
		}
		set += fmt.Sprintf("%s = $%d", col, len(args))
	}

	if patch.Settings != nil {
		b, _ := json.Marshal(patch.Settings)
		add("settings", b)
	}
	if patch.Usage != nil {
		b, _ := json.Marshal(patch.Usage)
		add("usage", b)
	}
	if patch.Initialized != nil {
		add("initialized", *patch.Initialized)
	}
	if set == "" {
		return nil
	}

	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf("UPDATE tenants SET %s WHERE id = $1", set), args...)
	if err != nil {
		return fmt.Errorf("update tenant %s: %w", id, classify(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update tenant %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) EnsureCollection(ctx context.Context, tenantID, name string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tenant_collections (tenant_id, name) VALUES ($1, $2)
		 ON CONFLICT (tenant_id, name) DO NOTHING`,
		tenantID, name)
	if err != nil {
		return fmt.Errorf("ensure collection %s/%s: %w", tenantID, name, classify(err))
	}
	return nil
}

// orEmpty keeps JSONB columns as {} rather than SQL NULL for nil maps.
func orEmpty[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return map[K]V{}
	}
	return m
}

// classify maps driver errors onto the domain sentinels the resolver's retry
// policy keys on. Unrecognized errors pass through unwrapped.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "42501" || pgErr.Code == "28000" || pgErr.Code == "28P01":
			// insufficient_privilege / invalid_authorization / bad password
			return fmt.Errorf("%w: %s", domain.ErrPermissionDenied, pgErr.Message)
		case len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08", pgErr.Code == "57P01", pgErr.Code == "53300":
			// connection exception class, admin_shutdown, too_many_connections
			return fmt.Errorf("%w: %s", domain.ErrUnavailable, pgErr.Message)
		}
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	if errors.As(err, new(*pgconn.ConnectError)) {
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	return err
}
